package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-crm-api/internal/models"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
	"github.com/noah-isme/edu-crm-api/pkg/spreadsheet"
)

type agencyRepository interface {
	List(ctx context.Context, filter models.ListFilter) ([]models.Agency, int, error)
	ListRecent(ctx context.Context, limit int) ([]models.Agency, error)
	FindByID(ctx context.Context, id string) (*models.Agency, error)
	Create(ctx context.Context, agency *models.Agency) error
	Update(ctx context.Context, agency *models.Agency) error
	UpdateStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) error
}

// AgencyService manages partner agencies.
type AgencyService struct {
	repo      agencyRepository
	audit     auditRecorder
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAgencyService constructs an AgencyService.
func NewAgencyService(repo agencyRepository, audit auditRecorder, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *AgencyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = models.NewValidator()
	}
	return &AgencyService{repo: repo, audit: audit, cache: cache, validator: validate, logger: logger}
}

// List returns a page of agencies.
func (s *AgencyService) List(ctx context.Context, filter models.ListFilter) ([]models.Agency, *models.Pagination, error) {
	filter.Page, filter.PageSize = listWindow(filter.Page, filter.PageSize)
	agencies, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internal(err, "failed to list agencies")
	}
	return agencies, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// ListRecent loads the most recently updated agencies for the table view.
func (s *AgencyService) ListRecent(ctx context.Context, limit int) ([]models.Agency, error) {
	agencies, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, internal(err, "failed to load agencies")
	}
	return agencies, nil
}

// Get returns one agency.
func (s *AgencyService) Get(ctx context.Context, id string) (*models.Agency, error) {
	agency, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupFailed(err, "agency")
	}
	return agency, nil
}

// Create validates and stores a new agency.
func (s *AgencyService) Create(ctx context.Context, req models.AgencyRequest, actor models.Actor) (*models.Agency, error) {
	req.Normalize()
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid agency payload")
	}
	agency := &models.Agency{}
	req.Apply(agency)
	if err := s.repo.Create(ctx, agency); err != nil {
		return nil, internal(err, "failed to create agency")
	}

	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCreate, models.EntityAgencies, agency.ID, nil, agency)
	invalidateEntity(ctx, s.cache, s.logger, models.EntityAgencies)
	return agency, nil
}

// Update replaces the editable fields of an agency.
func (s *AgencyService) Update(ctx context.Context, id string, req models.AgencyRequest, actor models.Actor) (*models.Agency, error) {
	req.Normalize()
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid agency payload")
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupFailed(err, "agency")
	}
	before := *existing
	req.Apply(existing)
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, lookupFailed(err, "agency")
	}

	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionUpdate, models.EntityAgencies, id, before, existing)
	invalidateEntity(ctx, s.cache, s.logger, models.EntityAgencies)
	return existing, nil
}

// Delete removes an agency. Linked leads and students lose the reference.
func (s *AgencyService) Delete(ctx context.Context, id string, actor models.Actor) error {
	if err := s.BulkDelete(ctx, id); err != nil {
		return err
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionDelete, models.EntityAgencies, id, nil, nil)
	invalidateEntity(ctx, s.cache, s.logger, models.EntityAgencies)
	// Leads and students embed the agency id.
	invalidateEntity(ctx, s.cache, s.logger, models.EntityLeads)
	invalidateEntity(ctx, s.cache, s.logger, models.EntityStudents)
	return nil
}

// BulkDelete removes one agency without auditing or cache invalidation.
func (s *AgencyService) BulkDelete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return lookupFailed(err, "agency")
	}
	return nil
}

// BulkSetStatus changes the status of one agency without auditing or cache invalidation.
func (s *AgencyService) BulkSetStatus(ctx context.Context, id, status string) error {
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return lookupFailed(err, "agency")
	}
	return nil
}

// ImportRow validates one spreadsheet row and creates an agency unless dryRun is set.
func (s *AgencyService) ImportRow(ctx context.Context, row spreadsheet.Row, dryRun bool) error {
	req := models.AgencyRequest{
		Name:          row.Get("Name"),
		ContactPerson: row.Get("ContactPerson"),
		Email:         row.Get("Email"),
		Phone:         row.Get("Phone"),
		Country:       row.Get("Country"),
	}
	if raw := row.Get("Status"); raw != "" {
		status, ok := models.CanonicalStatus(models.AgencyStatuses, raw)
		if !ok {
			return appErrors.Validation(fmt.Sprintf("unknown agency status %q", raw))
		}
		req.Status = status
	}
	rate, ok := row.Float("CommissionRate")
	if !ok {
		return appErrors.Validation(fmt.Sprintf("CommissionRate %q is not a number", row.Get("CommissionRate")))
	}
	req.CommissionRate = rate

	req.Normalize()
	if err := s.validator.Struct(req); err != nil {
		return invalid(err, "invalid row")
	}
	if dryRun {
		return nil
	}
	agency := &models.Agency{}
	req.Apply(agency)
	if err := s.repo.Create(ctx, agency); err != nil {
		return internal(err, "failed to create agency")
	}
	return nil
}
