package service

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/edu-crm-api/internal/models"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
)

// memCredentials keeps users and refresh tokens in maps keyed the way the
// repository looks them up.
type memCredentials struct {
	users      map[string]*models.User
	tokens     map[string]*models.RefreshToken
	lookupErr  error
	audit      []*models.AuditLog
	lastLogin  map[string]time.Time
	endedFor   []string
	persistErr error
}

func newMemCredentials(users ...*models.User) *memCredentials {
	m := &memCredentials{
		users:     make(map[string]*models.User),
		tokens:    make(map[string]*models.RefreshToken),
		lastLogin: make(map[string]time.Time),
	}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memCredentials) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memCredentials) FindByID(_ context.Context, id string) (*models.User, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memCredentials) UpdateLastLogin(_ context.Context, id string, ts time.Time) error {
	m.lastLogin[id] = ts
	return nil
}

func (m *memCredentials) UpdatePassword(_ context.Context, id, hash string, _ time.Time) error {
	if u, ok := m.users[id]; ok {
		u.PasswordHash = hash
	}
	return nil
}

func (m *memCredentials) RevokeUserRefreshTokens(_ context.Context, userID string) error {
	m.endedFor = append(m.endedFor, userID)
	for _, t := range m.tokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func (m *memCredentials) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	if m.persistErr != nil {
		return m.persistErr
	}
	m.tokens[token.Token] = token
	return nil
}

func (m *memCredentials) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.tokens[token]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memCredentials) RevokeRefreshToken(_ context.Context, id string, at time.Time) error {
	for _, t := range m.tokens {
		if t.ID == id {
			t.Revoked, t.RevokedAt = true, &at
		}
	}
	return nil
}

func (m *memCredentials) CreateAuditLog(_ context.Context, entry *models.AuditLog) error {
	m.audit = append(m.audit, entry)
	return nil
}

type captureResetMail struct {
	to, link string
	err      error
}

func (c *captureResetMail) SendPasswordReset(_ context.Context, to, _ string, link string, _ time.Time) error {
	c.to, c.link = to, link
	return c.err
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func newTestAuth(store *memCredentials, mail resetMailer) *AuthService {
	return NewAuthService(store, mail, nil, nil, AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		ResetURL:           "https://crm.example.com/reset-password",
	})
}

func counsellor(t *testing.T) *models.User {
	return &models.User{ID: "c1", Email: "maya@agency.test", FullName: "Maya", PasswordHash: hashed(t, "password1"), Active: true, Role: models.RoleCounsellor}
}

func errCode(err error) string { return appErrors.FromError(err).Code }

func TestLoginOpensSession(t *testing.T) {
	store := newMemCredentials(counsellor(t))
	svc := newTestAuth(store, nil)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: " maya@agency.test", Password: "password1", IP: "10.0.0.9"})
	require.NoError(t, err)

	assert.NotEmpty(t, res.AccessToken)
	require.Contains(t, store.tokens, res.RefreshToken)
	assert.Equal(t, "10.0.0.9", store.tokens[res.RefreshToken].IPAddress)
	assert.Contains(t, store.lastLogin, "c1")
	assert.True(t, res.Capabilities.CanImport)
	assert.False(t, res.Capabilities.CanAccessUsers)
	require.Len(t, store.audit, 1)
	assert.Equal(t, models.AuditActionLogin, store.audit[0].Action)
}

func TestLoginRejections(t *testing.T) {
	inactive := counsellor(t)
	inactive.Active = false

	cases := []struct {
		name     string
		store    *memCredentials
		email    string
		password string
		code     string
	}{
		{"wrong password", newMemCredentials(counsellor(t)), "maya@agency.test", "nope", appErrors.ErrInvalidCredentials.Code},
		{"unknown email", newMemCredentials(), "ghost@agency.test", "password1", appErrors.ErrInvalidCredentials.Code},
		{"inactive", newMemCredentials(inactive), "maya@agency.test", "password1", appErrors.ErrInactiveAccount.Code},
		{"bad payload", newMemCredentials(), "not-an-email", "x", appErrors.ErrValidation.Code},
		{"store down", &memCredentials{lookupErr: errors.New("conn reset")}, "maya@agency.test", "password1", appErrors.ErrInternal.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newTestAuth(tc.store, nil).Login(context.Background(), models.LoginRequest{Email: tc.email, Password: tc.password})
			require.Error(t, err)
			assert.Equal(t, tc.code, errCode(err))
		})
	}
}

func TestLoginSingleSessionEndsOlderTokens(t *testing.T) {
	store := newMemCredentials(counsellor(t))
	svc := newTestAuth(store, nil)
	svc.cfg.SingleSession = true

	first, err := svc.Login(context.Background(), models.LoginRequest{Email: "maya@agency.test", Password: "password1"})
	require.NoError(t, err)
	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "maya@agency.test", Password: "password1"})
	require.NoError(t, err)

	assert.True(t, store.tokens[first.RefreshToken].Revoked)
}

func TestRefreshRotatesToken(t *testing.T) {
	store := newMemCredentials(counsellor(t))
	store.tokens["old"] = &models.RefreshToken{ID: "rt1", UserID: "c1", Token: "old", ExpiresAt: time.Now().Add(time.Hour)}
	svc := newTestAuth(store, nil)

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old"})
	require.NoError(t, err)

	assert.NotEqual(t, "old", res.RefreshToken)
	assert.True(t, store.tokens["old"].Revoked)
	assert.False(t, store.tokens[res.RefreshToken].Revoked)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old"})
	assert.Equal(t, appErrors.ErrUnauthorized.Code, errCode(err))
}

func TestRefreshRejectsExpiredAndUnknown(t *testing.T) {
	store := newMemCredentials(counsellor(t))
	store.tokens["stale"] = &models.RefreshToken{ID: "rt1", UserID: "c1", Token: "stale", ExpiresAt: time.Now().Add(-time.Minute)}
	svc := newTestAuth(store, nil)

	for _, token := range []string{"stale", "missing"} {
		_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: token})
		assert.Equal(t, appErrors.ErrUnauthorized.Code, errCode(err), token)
	}
}

func TestLogoutOnlyForOwner(t *testing.T) {
	store := newMemCredentials(counsellor(t))
	store.tokens["tok"] = &models.RefreshToken{ID: "rt1", UserID: "c1", Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}
	svc := newTestAuth(store, nil)

	err := svc.Logout(context.Background(), "tok", models.Actor{UserID: "someone-else"})
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(err))
	assert.False(t, store.tokens["tok"].Revoked)

	require.NoError(t, svc.Logout(context.Background(), "tok", models.Actor{UserID: "c1"}))
	assert.True(t, store.tokens["tok"].Revoked)
	assert.Equal(t, models.AuditActionLogout, store.audit[len(store.audit)-1].Action)
}

func TestChangePassword(t *testing.T) {
	store := newMemCredentials(counsellor(t))
	svc := newTestAuth(store, nil)

	err := svc.ChangePassword(context.Background(), "c1", models.ChangePasswordRequest{OldPassword: "wrong", NewPassword: "password2"})
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(err))

	require.NoError(t, svc.ChangePassword(context.Background(), "c1", models.ChangePasswordRequest{OldPassword: "password1", NewPassword: "password2"}))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(store.users["c1"].PasswordHash), []byte("password2")))
	assert.Equal(t, []string{"c1"}, store.endedFor)

	err = svc.ChangePassword(context.Background(), "nobody", models.ChangePasswordRequest{OldPassword: "x", NewPassword: "password2"})
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(err))
}

func TestValidateToken(t *testing.T) {
	svc := newTestAuth(newMemCredentials(), nil)
	admin := &models.User{ID: "a1", Email: "root@agency.test", Role: models.RoleAdmin}

	access, _, err := svc.signAccessToken(admin)
	require.NoError(t, err)
	claims, err := svc.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, "a1", claims.UserID)
	assert.True(t, claims.Capabilities().CanBulkEdit)

	_, err = svc.ValidateToken(access + "x")
	assert.Equal(t, appErrors.ErrUnauthorized.Code, errCode(err))

	reset, _, err := svc.signResetToken(&models.User{ID: "a1", PasswordHash: "hash"})
	require.NoError(t, err)
	_, err = svc.ValidateToken(reset)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, errCode(err))
}

func TestValidateTokenHonoursClock(t *testing.T) {
	svc := newTestAuth(newMemCredentials(), nil)
	svc.clock = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	access, _, err := svc.signAccessToken(&models.User{ID: "a1", Role: models.RoleAdmin})
	require.NoError(t, err)

	_, err = svc.ValidateToken(access)
	assert.Error(t, err)
}

func TestMeAndPermissions(t *testing.T) {
	agent := &models.User{ID: "g1", Email: "gil@partner.test", FullName: "Gil", Role: models.RoleAgent, Active: true}
	svc := newTestAuth(newMemCredentials(agent), nil)

	me, err := svc.Me(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "Gil", me.FullName)

	_, err = svc.Me(context.Background(), "gone")
	assert.Equal(t, appErrors.ErrUnauthorized.Code, errCode(err))

	perms := svc.Permissions(&models.JWTClaims{UserID: "g1", Role: models.RoleAgent})
	assert.True(t, perms.Capabilities.CanAccessLeads)
	assert.False(t, perms.Capabilities.CanAccessAgencies)
	assert.Equal(t, models.PermissionsResponse{}, svc.Permissions(nil))
}

func TestForgotPasswordIsSilentForUnknownEmail(t *testing.T) {
	mail := &captureResetMail{}
	svc := newTestAuth(newMemCredentials(), mail)

	require.NoError(t, svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "ghost@agency.test"}))
	assert.Empty(t, mail.link)
}

func TestForgotPasswordSurfacesQueueFailure(t *testing.T) {
	mail := &captureResetMail{err: errors.New("queue full")}
	svc := newTestAuth(newMemCredentials(counsellor(t)), mail)

	err := svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "maya@agency.test"})
	assert.Equal(t, appErrors.ErrInternal.Code, errCode(err))
}

func TestPasswordResetWorksOnce(t *testing.T) {
	store := newMemCredentials(counsellor(t))
	mail := &captureResetMail{}
	svc := newTestAuth(store, mail)

	require.NoError(t, svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "maya@agency.test"}))
	assert.Equal(t, "maya@agency.test", mail.to)
	link, err := url.Parse(mail.link)
	require.NoError(t, err)
	assert.Equal(t, "/reset-password", link.Path)
	token := link.Query().Get("token")
	require.NotEmpty(t, token)

	require.NoError(t, svc.ResetPassword(context.Background(), models.ConfirmResetPasswordRequest{Token: token, NewPassword: "brandnewpass"}))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(store.users["c1"].PasswordHash), []byte("brandnewpass")))
	assert.Equal(t, []string{"c1"}, store.endedFor)

	// the stamp no longer matches the new hash
	err = svc.ResetPassword(context.Background(), models.ConfirmResetPasswordRequest{Token: token, NewPassword: "anotherpass1"})
	assert.Equal(t, appErrors.ErrUnauthorized.Code, errCode(err))
}

func TestResetPasswordRejectsAccessTokens(t *testing.T) {
	user := counsellor(t)
	before := user.PasswordHash
	svc := newTestAuth(newMemCredentials(user), nil)
	access, _, err := svc.signAccessToken(user)
	require.NoError(t, err)

	err = svc.ResetPassword(context.Background(), models.ConfirmResetPasswordRequest{Token: access, NewPassword: "brandnewpass"})
	assert.Equal(t, appErrors.ErrUnauthorized.Code, errCode(err))
	assert.Equal(t, before, user.PasswordHash)
}

func TestResetLinkKeepsExistingQuery(t *testing.T) {
	svc := newTestAuth(newMemCredentials(), nil)
	svc.cfg.ResetURL = "https://crm.example.com/auth?step=reset"

	assert.Equal(t, "https://crm.example.com/auth?step=reset&token=a%2Bb", svc.resetLink("a+b"))
}
