package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/edu-crm-api/internal/models"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
)

type mockUserRepo struct {
	users     map[string]*models.User
	listCount int
	revoked   []string
	deleted   []string
	auditLogs []*models.AuditLog
}

func newMockUserRepo(users ...models.User) *mockUserRepo {
	m := &mockUserRepo{users: map[string]*models.User{}}
	for i := range users {
		u := users[i]
		m.users[u.ID] = &u
	}
	return m
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var users []models.User
	for _, u := range m.users {
		users = append(users, *u)
	}
	if m.listCount > 0 {
		return users, m.listCount, nil
	}
	return users, len(users), nil
}

func (m *mockUserRepo) ListRecent(ctx context.Context, limit int) ([]models.User, error) {
	users, _, err := m.List(ctx, models.UserFilter{})
	return users, err
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = "user-new"
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	u, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Active = false
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revoked = append(m.revoked, userID)
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

var (
	superActor = models.Actor{UserID: "root", Role: models.RoleSuperAdmin}
	adminActor = models.Actor{UserID: "admin-1", Role: models.RoleAdmin}
)

func TestUserServiceCreate(t *testing.T) {
	repo := newMockUserRepo()
	cache := &recordingInvalidator{}
	svc := NewUserService(repo, cache, nil, zap.NewNop())

	user, err := svc.Create(context.Background(), models.CreateUserRequest{
		Email:    " Nina@Example.com ",
		Password: "password123",
		FullName: " Nina Shah ",
		Role:     models.RoleCounsellor,
	}, adminActor)
	require.NoError(t, err)

	assert.Equal(t, "nina@example.com", user.Email)
	assert.Equal(t, "Nina Shah", user.FullName)
	assert.True(t, user.Active)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionCreate, repo.auditLogs[0].Action)
	assert.Contains(t, cache.patterns, TableCacheKey(models.EntityUsers)+"*")
}

func TestUserServiceCreateRejectsDuplicateEmail(t *testing.T) {
	repo := newMockUserRepo(models.User{ID: "u1", Email: "taken@example.com"})
	svc := NewUserService(repo, nil, nil, nil)

	_, err := svc.Create(context.Background(), models.CreateUserRequest{
		Email: "taken@example.com", Password: "password123", FullName: "Dup", Role: models.RoleAgent,
	}, adminActor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateValidation(t *testing.T) {
	svc := NewUserService(newMockUserRepo(), nil, nil, nil)

	_, err := svc.Create(context.Background(), models.CreateUserRequest{
		Email: "x@example.com", Password: "short", FullName: "X", Role: "JANITOR",
	}, adminActor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceOnlySuperAdminGrantsSuperAdmin(t *testing.T) {
	repo := newMockUserRepo(models.User{ID: "su", Email: "su@example.com", Role: models.RoleSuperAdmin, Active: true})
	svc := NewUserService(repo, nil, nil, nil)

	_, err := svc.Create(context.Background(), models.CreateUserRequest{
		Email: "new@example.com", Password: "password123", FullName: "New", Role: models.RoleSuperAdmin,
	}, adminActor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	name := "Renamed"
	_, err = svc.Update(context.Background(), "su", models.UpdateUserRequest{FullName: &name}, adminActor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	updated, err := svc.Update(context.Background(), "su", models.UpdateUserRequest{FullName: &name}, superActor)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.FullName)
}

func TestUserServiceDeactivateRevokesSessions(t *testing.T) {
	repo := newMockUserRepo(models.User{ID: "u2", Email: "c@example.com", Role: models.RoleCounsellor, Active: true})
	svc := NewUserService(repo, nil, nil, nil)

	inactive := false
	user, err := svc.Update(context.Background(), "u2", models.UpdateUserRequest{Active: &inactive}, adminActor)
	require.NoError(t, err)
	assert.False(t, user.Active)
	assert.Equal(t, []string{"u2"}, repo.revoked)
}

func TestUserServiceCannotDeactivateSelf(t *testing.T) {
	repo := newMockUserRepo(models.User{ID: "admin-1", Email: "a@example.com", Role: models.RoleAdmin, Active: true})
	svc := NewUserService(repo, nil, nil, nil)

	inactive := false
	_, err := svc.Update(context.Background(), "admin-1", models.UpdateUserRequest{Active: &inactive}, adminActor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	err = svc.Delete(context.Background(), "admin-1", adminActor)
	require.Error(t, err)
}

func TestUserServiceDelete(t *testing.T) {
	repo := newMockUserRepo(models.User{ID: "u3", Email: "d@example.com", Role: models.RoleAgent, Active: true})
	svc := NewUserService(repo, nil, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "u3", adminActor))
	assert.Equal(t, []string{"u3"}, repo.deleted)
	assert.Equal(t, []string{"u3"}, repo.revoked)

	err := svc.Delete(context.Background(), "missing", adminActor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUserServiceListDefaultsPageSize(t *testing.T) {
	repo := newMockUserRepo(models.User{ID: "u1"}, models.User{ID: "u2"})
	repo.listCount = 45
	svc := NewUserService(repo, nil, nil, nil)

	users, page, err := svc.List(context.Background(), models.UserFilter{Page: 2})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Equal(t, 3, page.TotalPages)
}
