package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-crm-api/internal/models"
)

const userColumns = `id, email, password_hash, full_name, role, active, last_login, created_at, updated_at`

var userList = listColumns{
	search: []string{"email", "full_name"},
	status: "role",
	sorts: map[string]string{
		"email":     "email",
		"fullname":  "full_name",
		"role":      "role",
		"active":    "active",
		"lastlogin": "last_login",
		"createdat": "created_at",
		"updatedat": "updated_at",
	},
	sortBy: "created_at",
}

// UserRepository stores staff accounts, their refresh tokens and the audit trail.
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail matches case-insensitively. A miss wraps sql.ErrNoRows.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "LOWER(email) = LOWER($1)", email)
}

// FindByID returns the account with id, active or not.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, "id = $1", id)
}

func (r *UserRepository) findOne(ctx context.Context, cond string, arg interface{}) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE %s LIMIT 1", userColumns, cond)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, arg); err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// List pages through users. Role reuses the shared status column slot.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	shared := models.ListFilter{Search: filter.Search, SortBy: filter.SortBy, SortOrder: filter.SortOrder}
	if filter.Role != nil {
		shared.Status = string(*filter.Role)
	}
	where, args := userList.where(shared)
	if filter.Active != nil {
		where += fmt.Sprintf(" AND active = $%d", len(args)+1)
		args = append(args, *filter.Active)
	}
	_, size, offset := window(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM users WHERE %s ORDER BY %s LIMIT %d OFFSET %d", userColumns, where, userList.order(shared), size, offset)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM users WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return users, total, nil
}

// ListRecent feeds the users table, most recently updated first.
func (r *UserRepository) ListRecent(ctx context.Context, limit int) ([]models.User, error) {
	_, size, _ := window(1, limit)
	query := fmt.Sprintf("SELECT %s FROM users ORDER BY updated_at DESC LIMIT %d", userColumns, size)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("list recent users: %w", err)
	}
	return users, nil
}

// Create assigns an id when missing and stamps both timestamps.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, email, password_hash, full_name, role, active, created_at, updated_at)
		VALUES (:id, :email, :password_hash, :full_name, :role, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update writes the admin-editable fields: name, role and active flag.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET full_name = :full_name, role = :role, active = :active, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, user)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return expectAffected(res, "update user")
}

// Delete deactivates the account; rows stay for audit and timesheet history.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.touch(ctx, "delete user", "active = FALSE", id)
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1`, id, ts)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = $3, updated_at = $2 WHERE id = $1`, id, updatedAt, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return expectAffected(res, "update password")
}

// touch applies set to one user and bumps updated_at.
func (r *UserRepository) touch(ctx context.Context, op, set, id string) error {
	res, err := r.db.ExecContext(ctx, fmt.Sprintf("UPDATE users SET %s, updated_at = $2 WHERE id = $1", set), id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(res, op)
}
