package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-crm-api/internal/models"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
)

type timesheetRepository interface {
	List(ctx context.Context, filter models.ListFilter) ([]models.Timesheet, int, error)
	FindByID(ctx context.Context, id string) (*models.Timesheet, error)
	Create(ctx context.Context, entry *models.Timesheet) error
	Update(ctx context.Context, entry *models.Timesheet) error
	Delete(ctx context.Context, id string) error
}

// TimesheetService manages logged hours. Users who cannot manage other users
// only see and change their own entries.
type TimesheetService struct {
	repo      timesheetRepository
	users     userFinder
	audit     auditRecorder
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTimesheetService constructs a TimesheetService.
func NewTimesheetService(repo timesheetRepository, users userFinder, audit auditRecorder, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *TimesheetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = models.NewValidator()
	}
	return &TimesheetService{repo: repo, users: users, audit: audit, cache: cache, validator: validate, logger: logger}
}

// List returns a page of entries, scoped to the actor unless they manage users.
func (s *TimesheetService) List(ctx context.Context, filter models.ListFilter, actor models.Actor) ([]models.Timesheet, *models.Pagination, error) {
	if !managesOthers(actor) {
		filter.UserID = actor.UserID
	}
	filter.Page, filter.PageSize = listWindow(filter.Page, filter.PageSize)
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internal(err, "failed to list timesheets")
	}
	return entries, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one entry the actor may see.
func (s *TimesheetService) Get(ctx context.Context, id string, actor models.Actor) (*models.Timesheet, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupFailed(err, "timesheet")
	}
	if !managesOthers(actor) && entry.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timesheet not found")
	}
	return entry, nil
}

// Create logs hours for the actor, or for req.UserID when the actor manages users.
func (s *TimesheetService) Create(ctx context.Context, req models.TimesheetRequest, actor models.Actor) (*models.Timesheet, error) {
	req.Normalize()
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid timesheet payload")
	}

	owner := actor.UserID
	if req.UserID != "" && req.UserID != actor.UserID {
		if !managesOthers(actor) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot log hours for another user")
		}
		if s.users != nil {
			if _, err := s.users.FindByID(ctx, req.UserID); err != nil {
				return nil, lookupFailed(err, "user")
			}
		}
		owner = req.UserID
	}

	entry := &models.Timesheet{UserID: owner}
	req.Apply(entry)
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, internal(err, "failed to create timesheet")
	}

	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCreate, models.EntityTimesheets, entry.ID, nil, entry)
	invalidateEntity(ctx, s.cache, s.logger, models.EntityTimesheets)
	return entry, nil
}

// Update edits an entry the actor may change.
func (s *TimesheetService) Update(ctx context.Context, id string, req models.TimesheetRequest, actor models.Actor) (*models.Timesheet, error) {
	req.Normalize()
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid timesheet payload")
	}
	existing, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	before := *existing
	req.Apply(existing)
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, lookupFailed(err, "timesheet")
	}

	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionUpdate, models.EntityTimesheets, id, before, existing)
	invalidateEntity(ctx, s.cache, s.logger, models.EntityTimesheets)
	return existing, nil
}

// Delete removes an entry the actor may change.
func (s *TimesheetService) Delete(ctx context.Context, id string, actor models.Actor) error {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return lookupFailed(err, "timesheet")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionDelete, models.EntityTimesheets, id, nil, nil)
	invalidateEntity(ctx, s.cache, s.logger, models.EntityTimesheets)
	return nil
}

func managesOthers(actor models.Actor) bool {
	return models.CapabilitiesFor(actor.Role).CanAccessUsers
}
