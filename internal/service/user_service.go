package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/edu-crm-api/internal/models"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	ListRecent(ctx context.Context, limit int) ([]models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UserService handles staff account management.
type UserService struct {
	repo      userRepository
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = models.NewValidator()
	}
	return &UserService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internal(err, "failed to list users")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > maxListPageSize {
		pageSize = 20
	}
	return users, models.NewPagination(page, pageSize, total), nil
}

// ListRecent loads the most recently updated users for the table view.
func (s *UserService) ListRecent(ctx context.Context, limit int) ([]models.User, error) {
	users, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, internal(err, "failed to load users")
	}
	return users, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupFailed(err, "user")
	}
	return user, nil
}

// Create adds a new user. Only a super admin may create another super admin.
func (s *UserService) Create(ctx context.Context, req models.CreateUserRequest, actor models.Actor) (*models.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	req.Role = models.UserRole(strings.TrimSpace(string(req.Role)))
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid create user payload")
	}
	if req.Role == models.RoleSuperAdmin && actor.Role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only a super admin can grant SUPERADMIN")
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, internal(err, "failed to check email uniqueness")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, internal(err, "failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		FullName:     req.FullName,
		Role:         req.Role,
		Active:       true,
		PasswordHash: string(passwordHash),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, internal(err, "failed to create user")
	}

	recordAudit(ctx, s.repo, s.logger, actor, models.AuditActionCreate, models.EntityUsers, user.ID, nil,
		map[string]interface{}{"id": user.ID, "email": user.Email, "role": user.Role})
	invalidateEntity(ctx, s.cache, s.logger, models.EntityUsers)
	return user, nil
}

// Update modifies name, role or active flag. Deactivation revokes the user's sessions.
func (s *UserService) Update(ctx context.Context, id string, req models.UpdateUserRequest, actor models.Actor) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalid(err, "invalid update payload")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupFailed(err, "user")
	}
	touchesSuper := user.Role == models.RoleSuperAdmin || (req.Role != nil && *req.Role == models.RoleSuperAdmin)
	if touchesSuper && actor.Role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only a super admin can change a super admin")
	}
	if id == actor.UserID && req.Active != nil && !*req.Active {
		return nil, appErrors.Validation("you cannot deactivate your own account")
	}

	before := map[string]interface{}{"full_name": user.FullName, "role": user.Role, "active": user.Active}
	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	wasActive := user.Active
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, lookupFailed(err, "user")
	}
	if wasActive && !user.Active {
		if err := s.repo.RevokeUserRefreshTokens(ctx, id); err != nil {
			s.logger.Warn("failed to revoke sessions of deactivated user", zap.String("user_id", id), zap.Error(err))
		}
	}

	recordAudit(ctx, s.repo, s.logger, actor, models.AuditActionUpdate, models.EntityUsers, id, before,
		map[string]interface{}{"full_name": user.FullName, "role": user.Role, "active": user.Active})
	invalidateEntity(ctx, s.cache, s.logger, models.EntityUsers)
	return user, nil
}

// Delete performs a soft delete (inactive) on a user.
func (s *UserService) Delete(ctx context.Context, id string, actor models.Actor) error {
	if id == actor.UserID {
		return appErrors.Validation("you cannot delete your own account")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupFailed(err, "user")
	}
	if user.Role == models.RoleSuperAdmin && actor.Role != models.RoleSuperAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only a super admin can remove a super admin")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return lookupFailed(err, "user")
	}
	if err := s.repo.RevokeUserRefreshTokens(ctx, id); err != nil {
		s.logger.Warn("failed to revoke sessions of deleted user", zap.String("user_id", id), zap.Error(err))
	}

	recordAudit(ctx, s.repo, s.logger, actor, models.AuditActionDelete, models.EntityUsers, id,
		map[string]interface{}{"active": user.Active}, map[string]interface{}{"active": false})
	invalidateEntity(ctx, s.cache, s.logger, models.EntityUsers)
	return nil
}
