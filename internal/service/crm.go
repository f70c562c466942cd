package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-crm-api/internal/models"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
)

const (
	defaultListPageSize = 25
	maxListPageSize     = 1000
)

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// TableCacheKey is the cache key holding the record list of an entity table.
func TableCacheKey(entity string) string {
	return "table:" + entity
}

const dashboardCacheKey = "dashboard:summary"

// recordAudit writes an audit entry; failures are logged and swallowed.
func recordAudit(ctx context.Context, repo auditRecorder, logger *zap.Logger, actor models.Actor, action, resource, resourceID string, oldValues, newValues interface{}) {
	if repo == nil {
		return
	}
	entry := &models.AuditLog{
		Action:    action,
		Resource:  resource,
		IPAddress: actor.IP,
		UserAgent: actor.UserAgent,
	}
	if actor.UserID != "" {
		userID := actor.UserID
		entry.UserID = &userID
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if oldValues != nil {
		entry.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		entry.NewValues, _ = json.Marshal(newValues)
	}
	if err := repo.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", action), zap.String("resource", resource), zap.Error(err))
	}
}

// invalidateEntity drops the entity's table cache and the dashboard summary.
func invalidateEntity(ctx context.Context, cache cacheInvalidator, logger *zap.Logger, entity string) {
	if cache == nil {
		return
	}
	for _, pattern := range []string{TableCacheKey(entity) + "*", dashboardCacheKey + "*"} {
		if err := cache.Invalidate(ctx, pattern); err != nil {
			logger.Warn("failed to invalidate cache", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}

// invalid wraps a validator failure into a 400 listing each offending field.
func invalid(err error, message string) error {
	fields := validationFields(err)
	if len(fields) > 0 {
		reasons := make([]string, len(fields))
		for i, f := range fields {
			reasons[i] = f.Field + " " + f.Reason
		}
		message += ": " + strings.Join(reasons, "; ")
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message).WithFields(fields...)
}

func validationFields(err error) []appErrors.FieldError {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	out := make([]appErrors.FieldError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		reason := fmt.Sprintf("failed %s", fe.Tag())
		switch fe.Tag() {
		case "required", "required_if":
			reason = "is required"
		case "email":
			reason = "must be a valid email"
		case "leadstatus", "studentstatus", "agencystatus", "crmrole", "oneof":
			reason = fmt.Sprintf("%q is not allowed", fe.Value())
		}
		out = append(out, appErrors.FieldError{Field: fe.Field(), Reason: reason})
	}
	return out
}

// lookupFailed maps a repository read or write error to NotFound or Internal.
func lookupFailed(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, what+" not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load "+what)
}

func internal(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// listWindow clamps paging the same way the repositories do.
func listWindow(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultListPageSize
	}
	if size > maxListPageSize {
		size = maxListPageSize
	}
	return page, size
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
