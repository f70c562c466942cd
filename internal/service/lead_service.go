package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-crm-api/internal/models"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
	"github.com/noah-isme/edu-crm-api/pkg/spreadsheet"
)

type leadRepository interface {
	List(ctx context.Context, filter models.ListFilter) ([]models.Lead, int, error)
	ListRecent(ctx context.Context, limit int) ([]models.Lead, error)
	FindByID(ctx context.Context, id string) (*models.Lead, error)
	Create(ctx context.Context, lead *models.Lead) error
	Update(ctx context.Context, lead *models.Lead) error
	UpdateStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) error
}

type agencyFinder interface {
	FindByID(ctx context.Context, id string) (*models.Agency, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// LeadServiceParams groups LeadService dependencies.
type LeadServiceParams struct {
	Repo      leadRepository
	Agencies  agencyFinder
	Users     userFinder
	Audit     auditRecorder
	Cache     cacheInvalidator
	Validator *validator.Validate
	Logger    *zap.Logger
}

// LeadService manages the lead pipeline.
type LeadService struct {
	repo      leadRepository
	agencies  agencyFinder
	users     userFinder
	audit     auditRecorder
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLeadService constructs a LeadService.
func NewLeadService(p LeadServiceParams) *LeadService {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Validator == nil {
		p.Validator = models.NewValidator()
	}
	return &LeadService{
		repo:      p.Repo,
		agencies:  p.Agencies,
		users:     p.Users,
		audit:     p.Audit,
		cache:     p.Cache,
		validator: p.Validator,
		logger:    p.Logger,
	}
}

// List returns a page of leads.
func (s *LeadService) List(ctx context.Context, filter models.ListFilter) ([]models.Lead, *models.Pagination, error) {
	filter.Page, filter.PageSize = listWindow(filter.Page, filter.PageSize)
	leads, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internal(err, "failed to list leads")
	}
	return leads, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// ListRecent loads the most recently updated leads for the table view.
func (s *LeadService) ListRecent(ctx context.Context, limit int) ([]models.Lead, error) {
	leads, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, internal(err, "failed to load leads")
	}
	return leads, nil
}

// Get returns one lead; populate expands the agency and the assignee.
func (s *LeadService) Get(ctx context.Context, id string, populate bool) (*models.Lead, error) {
	lead, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupFailed(err, "lead")
	}
	if populate {
		s.populate(ctx, lead)
	}
	return lead, nil
}

// Create validates and stores a new lead.
func (s *LeadService) Create(ctx context.Context, req models.LeadRequest, actor models.Actor) (*models.Lead, error) {
	req.Normalize()
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid lead payload")
	}
	if err := s.checkRelations(ctx, req); err != nil {
		return nil, err
	}

	lead := &models.Lead{}
	req.Apply(lead)
	if err := s.repo.Create(ctx, lead); err != nil {
		return nil, internal(err, "failed to create lead")
	}

	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCreate, models.EntityLeads, lead.ID, nil, lead)
	invalidateEntity(ctx, s.cache, s.logger, models.EntityLeads)
	return lead, nil
}

// Update replaces the editable fields of a lead.
func (s *LeadService) Update(ctx context.Context, id string, req models.LeadRequest, actor models.Actor) (*models.Lead, error) {
	req.Normalize()
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid lead payload")
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupFailed(err, "lead")
	}
	if err := s.checkRelations(ctx, req); err != nil {
		return nil, err
	}

	before := *existing
	req.Apply(existing)
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, lookupFailed(err, "lead")
	}

	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionUpdate, models.EntityLeads, id, before, existing)
	invalidateEntity(ctx, s.cache, s.logger, models.EntityLeads)
	return existing, nil
}

// Delete removes a lead.
func (s *LeadService) Delete(ctx context.Context, id string, actor models.Actor) error {
	if err := s.BulkDelete(ctx, id); err != nil {
		return err
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionDelete, models.EntityLeads, id, nil, nil)
	invalidateEntity(ctx, s.cache, s.logger, models.EntityLeads)
	return nil
}

// BulkDelete removes one lead without auditing or cache invalidation.
func (s *LeadService) BulkDelete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return lookupFailed(err, "lead")
	}
	return nil
}

// BulkSetStatus changes the status of one lead without auditing or cache invalidation.
func (s *LeadService) BulkSetStatus(ctx context.Context, id, status string) error {
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return lookupFailed(err, "lead")
	}
	return nil
}

// ImportRow validates one spreadsheet row and creates a lead unless dryRun is set.
func (s *LeadService) ImportRow(ctx context.Context, row spreadsheet.Row, dryRun bool) error {
	req := models.LeadRequest{
		Name:    row.Get("Name"),
		Email:   row.Get("Email"),
		Phone:   row.Get("Phone"),
		Country: row.Get("Country"),
		Source:  row.Get("Source"),
		Course:  row.Get("Course"),
		Notes:   row.Get("Notes"),
	}
	if raw := row.Get("Status"); raw != "" {
		status, ok := models.CanonicalStatus(models.LeadStatuses, raw)
		if !ok {
			return appErrors.Validation(fmt.Sprintf("unknown lead status %q", raw))
		}
		req.Status = status
	}
	enquiry, ok := row.Date("EnquiryDate")
	if !ok {
		return appErrors.Validation(fmt.Sprintf("EnquiryDate %q is not a date", row.Get("EnquiryDate")))
	}
	req.EnquiryDate = enquiry

	req.Normalize()
	if err := s.validator.Struct(req); err != nil {
		return invalid(err, "invalid row")
	}
	if dryRun {
		return nil
	}
	lead := &models.Lead{}
	req.Apply(lead)
	if err := s.repo.Create(ctx, lead); err != nil {
		return internal(err, "failed to create lead")
	}
	return nil
}

func (s *LeadService) checkRelations(ctx context.Context, req models.LeadRequest) error {
	if req.AgencyID != nil && s.agencies != nil {
		if _, err := s.agencies.FindByID(ctx, *req.AgencyID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Validation("AgencyID does not reference an agency")
			}
			return internal(err, "failed to check agency")
		}
	}
	if req.AssignedTo != nil && s.users != nil {
		if _, err := s.users.FindByID(ctx, *req.AssignedTo); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Validation("AssignedTo does not reference a user")
			}
			return internal(err, "failed to check assignee")
		}
	}
	return nil
}

func (s *LeadService) populate(ctx context.Context, lead *models.Lead) {
	if lead.AgencyID != nil && s.agencies != nil {
		agency, err := s.agencies.FindByID(ctx, *lead.AgencyID)
		if err == nil {
			lead.Agency = agency
		} else if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to populate lead agency", zap.String("lead_id", lead.ID), zap.Error(err))
		}
	}
	if lead.AssignedTo != nil && s.users != nil {
		user, err := s.users.FindByID(ctx, *lead.AssignedTo)
		if err == nil {
			lead.Assignee = &models.UserInfo{ID: user.ID, Email: user.Email, FullName: user.FullName, Role: user.Role}
		} else if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to populate lead assignee", zap.String("lead_id", lead.ID), zap.Error(err))
		}
	}
}
