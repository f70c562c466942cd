package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-crm-api/internal/models"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
	"github.com/noah-isme/edu-crm-api/pkg/table"
)

type bulkTarget interface {
	BulkDelete(ctx context.Context, id string) error
	BulkSetStatus(ctx context.Context, id, status string) error
}

type idLister interface {
	IDs(ctx context.Context) ([]string, error)
}

type bulkMetrics interface {
	RecordBulk(entity, action string, succeeded, failed int)
}

// BulkEntity registers one entity for bulk actions.
type BulkEntity struct {
	Target   bulkTarget
	Current  idLister
	Statuses []string
}

// BulkService applies delete and status actions to a selection.
type BulkService struct {
	entities  map[string]BulkEntity
	audit     auditRecorder
	cache     cacheInvalidator
	metrics   bulkMetrics
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBulkService constructs a BulkService.
func NewBulkService(entities map[string]BulkEntity, audit auditRecorder, cache cacheInvalidator, metrics bulkMetrics, validate *validator.Validate, logger *zap.Logger) *BulkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = models.NewValidator()
	}
	return &BulkService{entities: entities, audit: audit, cache: cache, metrics: metrics, validator: validate, logger: logger}
}

// Apply runs the action once per selected id. Ids missing from the current list
// are pruned first. Failures are reported per id and never roll back earlier ones.
func (s *BulkService) Apply(ctx context.Context, entity string, req models.BulkRequest, actor models.Actor) (*models.BulkResult, error) {
	target, ok := s.entities[entity]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("bulk actions are not available for %s", entity))
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid bulk payload")
	}

	status := ""
	if req.Action == models.BulkActionStatus {
		canonical, ok := models.CanonicalStatus(target.Statuses, req.Status)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("status %q is not allowed", req.Status))
		}
		status = canonical
	}

	present, err := target.Current.IDs(ctx)
	if err != nil {
		return nil, err
	}
	requested := table.NewSelection(req.IDs...)
	selection := requested.Prune(present)

	result := &models.BulkResult{
		Action:    req.Action,
		Requested: len(requested),
		Pruned:    len(requested) - len(selection),
		Errors:    []models.RowError{},
	}
	for _, id := range selection.IDs() {
		var opErr error
		switch req.Action {
		case models.BulkActionDelete:
			opErr = target.Target.BulkDelete(ctx, id)
		case models.BulkActionStatus:
			opErr = target.Target.BulkSetStatus(ctx, id, status)
		}
		if opErr != nil {
			result.Failed++
			result.Errors = append(result.Errors, models.RowError{ID: id, Message: appErrors.FromError(opErr).Message})
			s.logger.Warn("bulk item failed", zap.String("entity", entity), zap.String("id", id), zap.Error(opErr))
			continue
		}
		result.Succeeded++
	}

	if result.Succeeded > 0 {
		invalidateEntity(ctx, s.cache, s.logger, entity)
		if entity == models.EntityAgencies && req.Action == models.BulkActionDelete {
			invalidateEntity(ctx, s.cache, s.logger, models.EntityLeads)
			invalidateEntity(ctx, s.cache, s.logger, models.EntityStudents)
		}
	}
	if s.metrics != nil {
		s.metrics.RecordBulk(entity, req.Action, result.Succeeded, result.Failed)
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionBulk, entity, "", nil, map[string]interface{}{
		"action":    req.Action,
		"status":    status,
		"ids":       selection.IDs(),
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	})
	return result, nil
}
