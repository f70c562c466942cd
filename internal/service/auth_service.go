package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/edu-crm-api/internal/models"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
)

// credentialStore is the slice of the user repository the auth flows need.
type credentialStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type resetMailer interface {
	SendPasswordReset(ctx context.Context, to, fullName, link string, expiresAt time.Time) error
}

// AuthConfig carries token lifetimes and signing settings.
type AuthConfig struct {
	AccessTokenSecret  string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	ResetTokenExpiry   time.Duration
	// ResetURL is the dashboard page that accepts ?token=.
	ResetURL string
	Issuer   string
	Audience []string
	// SingleSession revokes older refresh tokens on every login.
	SingleSession bool
}

// AuthService runs the staff sign-in, session and password flows.
type AuthService struct {
	users    credentialStore
	mail     resetMailer
	validate *validator.Validate
	logger   *zap.Logger
	cfg      AuthConfig
	clock    func() time.Time
}

// NewAuthService wires the auth flows. A nil mailer disables reset mails.
func NewAuthService(users credentialStore, mail resetMailer, validate *validator.Validate, logger *zap.Logger, cfg AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = models.NewValidator()
	}
	if cfg.ResetTokenExpiry <= 0 {
		cfg.ResetTokenExpiry = 30 * time.Minute
	}
	return &AuthService{users: users, mail: mail, validate: validate, logger: logger, cfg: cfg, clock: time.Now}
}

// session is a freshly issued access/refresh pair.
type session struct {
	access   string
	refresh  string
	issuedAt time.Time
}

func (s *AuthService) now() time.Time { return s.clock().UTC() }

func (s *AuthService) expiresIn() int64 { return int64(s.cfg.AccessTokenExpiry.Seconds()) }

// Login checks credentials and opens a session for an active user.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, invalid(err, "invalid login payload")
	}

	badCredentials := appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(req.Email))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, badCredentials
	case err != nil:
		return nil, internal(err, "failed to fetch user")
	case !user.Active:
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, badCredentials
	}

	if s.cfg.SingleSession {
		if err := s.users.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
			s.logger.Warn("failed to end previous sessions", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	sess, err := s.openSession(ctx, user, req.IP, req.UserAgent)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateLastLogin(ctx, user.ID, sess.issuedAt); err != nil {
		s.logger.Warn("failed to stamp last login", zap.String("user_id", user.ID), zap.Error(err))
	}

	actor := models.Actor{UserID: user.ID, Role: user.Role, IP: req.IP, UserAgent: req.UserAgent}
	recordAudit(ctx, s.users, s.logger, actor, models.AuditActionLogin, models.EntityAuth, user.ID, nil, map[string]string{"status": "success"})

	return &models.LoginResponse{
		AccessToken:  sess.access,
		RefreshToken: sess.refresh,
		ExpiresIn:    s.expiresIn(),
		IssuedAt:     sess.issuedAt,
		User:         userInfo(user),
		Capabilities: models.CapabilitiesFor(user.Role),
	}, nil
}

// RefreshToken rotates a refresh token: the presented one is revoked and a new pair issued.
func (s *AuthService) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, invalid(err, "invalid refresh payload")
	}

	stored, err := s.users.FindRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, unauthorizedOr(err, "refresh token not found", "failed to fetch refresh token")
	}
	if !stored.Active(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token is expired or revoked")
	}

	user, err := s.users.FindByID(ctx, stored.UserID)
	if err != nil {
		return nil, unauthorizedOr(err, "associated user no longer exists", "failed to load user")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}

	if err := s.users.RevokeRefreshToken(ctx, stored.ID, s.now()); err != nil {
		s.logger.Warn("failed to revoke rotated refresh token", zap.String("token_id", stored.ID), zap.Error(err))
	}
	sess, err := s.openSession(ctx, user, req.IP, req.UserAgent)
	if err != nil {
		return nil, err
	}

	actor := models.Actor{UserID: user.ID, Role: user.Role, IP: req.IP, UserAgent: req.UserAgent}
	recordAudit(ctx, s.users, s.logger, actor, models.AuditActionLogin, models.EntityAuth, user.ID, nil, map[string]string{"refresh": "rotated"})

	return &models.RefreshTokenResponse{
		AccessToken:  sess.access,
		RefreshToken: sess.refresh,
		ExpiresIn:    s.expiresIn(),
		IssuedAt:     sess.issuedAt,
	}, nil
}

// Logout revokes a refresh token owned by the actor.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, actor models.Actor) error {
	stored, err := s.users.FindRefreshToken(ctx, refreshToken)
	if err != nil {
		return unauthorizedOr(err, "refresh token not found", "failed to load refresh token")
	}
	if stored.UserID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "token does not belong to user")
	}
	if err := s.users.RevokeRefreshToken(ctx, stored.ID, s.now()); err != nil {
		return internal(err, "failed to revoke refresh token")
	}
	recordAudit(ctx, s.users, s.logger, actor, models.AuditActionLogout, models.EntityAuth, actor.UserID, nil, map[string]string{"status": "logout"})
	return nil
}

// ChangePassword replaces the password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return invalid(err, "invalid change password payload")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return lookupFailed(err, "user")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)) != nil {
		return appErrors.Clone(appErrors.ErrForbidden, "old password does not match")
	}
	return s.setPassword(ctx, user, req.NewPassword, models.AuditActionPasswordChange)
}

// Me returns the profile behind an access token.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, unauthorizedOr(err, "user no longer exists", "failed to load user")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}
	info := userInfo(user)
	return &info, nil
}

// Permissions derives the capability set of the token holder.
func (s *AuthService) Permissions(claims *models.JWTClaims) models.PermissionsResponse {
	if claims == nil {
		return models.PermissionsResponse{}
	}
	return models.PermissionsResponse{Role: claims.Role, Capabilities: claims.Capabilities()}
}

// ForgotPassword mails a short-lived reset link. Unknown or inactive accounts
// get the same silent success so the endpoint cannot be used to probe emails.
func (s *AuthService) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return invalid(err, "invalid forgot password payload")
	}

	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(req.Email))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.Info("password reset requested for unknown email")
		return nil
	case err != nil:
		return internal(err, "failed to fetch user")
	case !user.Active:
		s.logger.Info("password reset requested for inactive account", zap.String("user_id", user.ID))
		return nil
	}

	token, expiresAt, err := s.signResetToken(user)
	if err != nil {
		return internal(err, "failed to create reset token")
	}
	if s.mail == nil {
		s.logger.Warn("password reset mail skipped, no mailer configured", zap.String("user_id", user.ID))
		return nil
	}
	if err := s.mail.SendPasswordReset(ctx, user.Email, user.FullName, s.resetLink(token), expiresAt); err != nil {
		return internal(err, "failed to queue reset mail")
	}
	return nil
}

// ResetPassword sets a new password from a reset token. The token is bound to
// the password hash it was issued against, so it works once.
func (s *AuthService) ResetPassword(ctx context.Context, req models.ConfirmResetPasswordRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return invalid(err, "invalid reset password payload")
	}

	expired := appErrors.Clone(appErrors.ErrUnauthorized, "reset link is invalid or expired")
	claims, err := s.parseToken(req.Token)
	if err != nil || claims.Purpose != models.TokenPurposeReset {
		return expired
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return expired
		}
		return internal(err, "failed to load user")
	}
	if !user.Active || claims.PasswordStamp != passwordStamp(user.PasswordHash) {
		return expired
	}
	return s.setPassword(ctx, user, req.NewPassword, models.AuditActionPasswordReset)
}

// openSession signs an access token and persists a new refresh token for user.
func (s *AuthService) openSession(ctx context.Context, user *models.User, ip, userAgent string) (*session, error) {
	access, _, err := s.signAccessToken(user)
	if err != nil {
		return nil, internal(err, "failed to create access token")
	}
	secret, err := randomToken()
	if err != nil {
		return nil, internal(err, "failed to create refresh token")
	}
	issuedAt := s.now()
	refresh := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     secret,
		ExpiresAt: issuedAt.Add(s.cfg.RefreshTokenExpiry),
		CreatedAt: issuedAt,
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if err := s.users.CreateRefreshToken(ctx, refresh); err != nil {
		return nil, internal(err, "failed to persist refresh token")
	}
	return &session{access: access, refresh: refresh.Token, issuedAt: issuedAt}, nil
}

// setPassword hashes and stores a new password, then ends every open session.
func (s *AuthService) setPassword(ctx context.Context, user *models.User, password, action string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return internal(err, "failed to hash password")
	}
	if err := s.users.UpdatePassword(ctx, user.ID, string(hash), s.now()); err != nil {
		return internal(err, "failed to update password")
	}
	if err := s.users.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
		s.logger.Warn("failed to end sessions after password update", zap.String("user_id", user.ID), zap.Error(err))
	}
	actor := models.Actor{UserID: user.ID, Role: user.Role}
	recordAudit(ctx, s.users, s.logger, actor, action, models.EntityAuth, user.ID, nil, map[string]string{"status": action})
	return nil
}

// unauthorizedOr maps a missing row to 401 and anything else to 500.
func unauthorizedOr(err error, missing, failed string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrUnauthorized, missing)
	}
	return internal(err, failed)
}

func userInfo(user *models.User) models.UserInfo {
	return models.UserInfo{ID: user.ID, Email: user.Email, FullName: user.FullName, Role: user.Role}
}
