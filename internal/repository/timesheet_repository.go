package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-crm-api/internal/models"
)

const timesheetColumns = `id, user_id, date, hours, task, notes, created_at, updated_at`

var timesheetList = listColumns{
	search: []string{"task", "notes"},
	user:   "user_id",
	date:   "date",
	sorts: map[string]string{
		"date":      "date",
		"hours":     "hours",
		"task":      "task",
		"createdat": "created_at",
		"updatedat": "updated_at",
	},
	sortBy: "date",
}

// TimesheetRepository manages persistence for logged working hours.
type TimesheetRepository struct {
	db *sqlx.DB
}

// NewTimesheetRepository constructs a TimesheetRepository.
func NewTimesheetRepository(db *sqlx.DB) *TimesheetRepository {
	return &TimesheetRepository{db: db}
}

// List returns timesheet entries matching the filter. UserID scopes to one user.
func (r *TimesheetRepository) List(ctx context.Context, filter models.ListFilter) ([]models.Timesheet, int, error) {
	where, args := timesheetList.where(filter)
	_, size, offset := window(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM timesheets WHERE %s ORDER BY %s LIMIT %d OFFSET %d", timesheetColumns, where, timesheetList.order(filter), size, offset)
	var entries []models.Timesheet
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list timesheets: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM timesheets WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count timesheets: %w", err)
	}
	return entries, total, nil
}

// FindByID fetches one timesheet entry.
func (r *TimesheetRepository) FindByID(ctx context.Context, id string) (*models.Timesheet, error) {
	query := fmt.Sprintf("SELECT %s FROM timesheets WHERE id = $1", timesheetColumns)
	var entry models.Timesheet
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find timesheet: %w", err)
	}
	return &entry, nil
}

// Create inserts a timesheet entry.
func (r *TimesheetRepository) Create(ctx context.Context, entry *models.Timesheet) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	const query = `INSERT INTO timesheets (id, user_id, date, hours, task, notes, created_at, updated_at)
        VALUES (:id, :user_id, :date, :hours, :task, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create timesheet: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of an entry. The owner never changes.
func (r *TimesheetRepository) Update(ctx context.Context, entry *models.Timesheet) error {
	entry.UpdatedAt = time.Now().UTC()
	const query = `UPDATE timesheets SET date = :date, hours = :hours, task = :task, notes = :notes, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, entry)
	if err != nil {
		return fmt.Errorf("update timesheet: %w", err)
	}
	return expectAffected(res, "update timesheet")
}

// Delete removes a timesheet entry.
func (r *TimesheetRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM timesheets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete timesheet: %w", err)
	}
	return expectAffected(res, "delete timesheet")
}
