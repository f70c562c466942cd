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

const leadColumns = `id, name, email, phone, status, country, source, course, notes, agency_id, assigned_to, enquiry_date, created_at, updated_at`

var leadList = listColumns{
	search:  []string{"name", "email", "phone", "course", "source"},
	status:  "status",
	country: "country",
	agency:  "agency_id",
	user:    "assigned_to",
	date:    "enquiry_date",
	sorts: map[string]string{
		"name":        "name",
		"email":       "email",
		"status":      "status",
		"country":     "country",
		"source":      "source",
		"enquirydate": "enquiry_date",
		"createdat":   "created_at",
		"updatedat":   "updated_at",
	},
	sortBy: "created_at",
}

// LeadRepository manages persistence for leads.
type LeadRepository struct {
	db *sqlx.DB
}

// NewLeadRepository constructs a LeadRepository.
func NewLeadRepository(db *sqlx.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// List returns leads matching the filter with the total count.
func (r *LeadRepository) List(ctx context.Context, filter models.ListFilter) ([]models.Lead, int, error) {
	where, args := leadList.where(filter)
	_, size, offset := window(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM leads WHERE %s ORDER BY %s LIMIT %d OFFSET %d", leadColumns, where, leadList.order(filter), size, offset)
	var leads []models.Lead
	if err := r.db.SelectContext(ctx, &leads, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM leads WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", err)
	}
	return leads, total, nil
}

// ListRecent returns up to limit leads, most recently updated first.
func (r *LeadRepository) ListRecent(ctx context.Context, limit int) ([]models.Lead, error) {
	_, size, _ := window(1, limit)
	query := fmt.Sprintf("SELECT %s FROM leads ORDER BY updated_at DESC LIMIT %d", leadColumns, size)
	var leads []models.Lead
	if err := r.db.SelectContext(ctx, &leads, query); err != nil {
		return nil, fmt.Errorf("list recent leads: %w", err)
	}
	return leads, nil
}

// FindByID fetches a lead by id.
func (r *LeadRepository) FindByID(ctx context.Context, id string) (*models.Lead, error) {
	query := fmt.Sprintf("SELECT %s FROM leads WHERE id = $1", leadColumns)
	var lead models.Lead
	if err := r.db.GetContext(ctx, &lead, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find lead: %w", err)
	}
	return &lead, nil
}

// Create inserts a lead.
func (r *LeadRepository) Create(ctx context.Context, lead *models.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now
	const query = `INSERT INTO leads (id, name, email, phone, status, country, source, course, notes, agency_id, assigned_to, enquiry_date, created_at, updated_at)
        VALUES (:id, :name, :email, :phone, :status, :country, :source, :course, :notes, :agency_id, :assigned_to, :enquiry_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lead); err != nil {
		return fmt.Errorf("create lead: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of a lead.
func (r *LeadRepository) Update(ctx context.Context, lead *models.Lead) error {
	lead.UpdatedAt = time.Now().UTC()
	const query = `UPDATE leads SET name = :name, email = :email, phone = :phone, status = :status, country = :country, source = :source, course = :course, notes = :notes, agency_id = :agency_id, assigned_to = :assigned_to, enquiry_date = :enquiry_date, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, lead)
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	return expectAffected(res, "update lead")
}

// UpdateStatus sets the status of one lead.
func (r *LeadRepository) UpdateStatus(ctx context.Context, id, status string) error {
	const query = `UPDATE leads SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update lead status: %w", err)
	}
	return expectAffected(res, "update lead status")
}

// Delete removes a lead.
func (r *LeadRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}
	return expectAffected(res, "delete lead")
}

// expectAffected returns sql.ErrNoRows when a write touched nothing.
func expectAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
