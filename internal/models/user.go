package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleCounsellor UserRole = "COUNSELLOR"
	RoleAgent      UserRole = "AGENT"
)

// Roles lists every assignable role.
var Roles = []UserRole{RoleSuperAdmin, RoleAdmin, RoleCounsellor, RoleAgent}

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// RecordID implements table.Record.
func (u User) RecordID() string { return u.ID }

// Field implements table.Record.
func (u User) Field(key string) interface{} {
	switch key {
	case "id":
		return u.ID
	case "Email":
		return u.Email
	case "FullName", "Name":
		return u.FullName
	case "Role", "Status":
		return string(u.Role)
	case "Active":
		return u.Active
	case "LastLogin":
		return u.LastLogin
	case "createdAt":
		return u.CreatedAt
	case "updatedAt":
		return u.UpdatedAt
	}
	return nil
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CreateUserRequest is the admin payload for adding a user.
type CreateUserRequest struct {
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=8"`
	FullName string   `json:"full_name" validate:"required"`
	Role     UserRole `json:"role" validate:"required,crmrole"`
}

// UpdateUserRequest carries optional user changes.
type UpdateUserRequest struct {
	FullName *string   `json:"full_name" validate:"omitempty,min=1"`
	Role     *UserRole `json:"role" validate:"omitempty,crmrole"`
	Active   *bool     `json:"active"`
}
