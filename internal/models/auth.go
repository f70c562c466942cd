package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the issued tokens, the user and their capabilities.
type LoginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	User         UserInfo     `json:"user"`
	Capabilities Capabilities `json:"capabilities"`
	IssuedAt     time.Time    `json:"issued_at"`
}

// RefreshTokenRequest exchanges a refresh token for a new access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// RefreshTokenResponse returns the refreshed tokens.
type RefreshTokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// ChangePasswordRequest payload for updating password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// ForgotPasswordRequest starts the reset flow for an email address.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ConfirmResetPasswordRequest completes reset flow.
type ConfirmResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}

// PermissionsResponse is returned by the permissions endpoint.
type PermissionsResponse struct {
	Role         UserRole     `json:"role"`
	Capabilities Capabilities `json:"capabilities"`
}

// TokenPurpose separates access tokens from password reset tokens.
type TokenPurpose string

const (
	TokenPurposeAccess TokenPurpose = "access"
	TokenPurposeReset  TokenPurpose = "reset"
)

// JWTClaims represents the JWT payload for access and reset tokens.
type JWTClaims struct {
	UserID   string       `json:"user_id"`
	Role     UserRole     `json:"role"`
	Email    string       `json:"email"`
	FullName string       `json:"full_name"`
	Purpose  TokenPurpose `json:"purpose,omitempty"`
	// PasswordStamp ties a reset token to the password it was issued against.
	PasswordStamp string `json:"pws,omitempty"`
	jwt.RegisteredClaims
}

// Capabilities derives the permission set carried by the claims.
func (c *JWTClaims) Capabilities() Capabilities {
	if c == nil {
		return Capabilities{}
	}
	return CapabilitiesFor(c.Role)
}

// Actor converts claims plus request metadata into an audit actor.
func (c *JWTClaims) Actor(ip, userAgent string) Actor {
	if c == nil {
		return Actor{IP: ip, UserAgent: userAgent}
	}
	return Actor{UserID: c.UserID, Role: c.Role, IP: ip, UserAgent: userAgent}
}
