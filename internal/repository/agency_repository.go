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

const agencyColumns = `id, name, contact_person, email, phone, country, status, commission_rate, created_at, updated_at`

var agencyList = listColumns{
	search:  []string{"name", "contact_person", "email", "phone"},
	status:  "status",
	country: "country",
	sorts: map[string]string{
		"name":           "name",
		"contactperson":  "contact_person",
		"email":          "email",
		"status":         "status",
		"country":        "country",
		"commissionrate": "commission_rate",
		"createdat":      "created_at",
		"updatedat":      "updated_at",
	},
	sortBy: "created_at",
	date:   "created_at",
}

// AgencyRepository manages persistence for partner agencies.
type AgencyRepository struct {
	db *sqlx.DB
}

// NewAgencyRepository constructs an AgencyRepository.
func NewAgencyRepository(db *sqlx.DB) *AgencyRepository {
	return &AgencyRepository{db: db}
}

// List returns agencies matching the filter with the total count.
func (r *AgencyRepository) List(ctx context.Context, filter models.ListFilter) ([]models.Agency, int, error) {
	where, args := agencyList.where(filter)
	_, size, offset := window(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM agencies WHERE %s ORDER BY %s LIMIT %d OFFSET %d", agencyColumns, where, agencyList.order(filter), size, offset)
	var agencies []models.Agency
	if err := r.db.SelectContext(ctx, &agencies, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list agencies: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM agencies WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count agencies: %w", err)
	}
	return agencies, total, nil
}

// ListRecent returns up to limit agencies, most recently updated first.
func (r *AgencyRepository) ListRecent(ctx context.Context, limit int) ([]models.Agency, error) {
	_, size, _ := window(1, limit)
	query := fmt.Sprintf("SELECT %s FROM agencies ORDER BY updated_at DESC LIMIT %d", agencyColumns, size)
	var agencies []models.Agency
	if err := r.db.SelectContext(ctx, &agencies, query); err != nil {
		return nil, fmt.Errorf("list recent agencies: %w", err)
	}
	return agencies, nil
}

// FindByID fetches an agency by id.
func (r *AgencyRepository) FindByID(ctx context.Context, id string) (*models.Agency, error) {
	query := fmt.Sprintf("SELECT %s FROM agencies WHERE id = $1", agencyColumns)
	var agency models.Agency
	if err := r.db.GetContext(ctx, &agency, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find agency: %w", err)
	}
	return &agency, nil
}

// Create inserts an agency.
func (r *AgencyRepository) Create(ctx context.Context, agency *models.Agency) error {
	if agency.ID == "" {
		agency.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if agency.CreatedAt.IsZero() {
		agency.CreatedAt = now
	}
	agency.UpdatedAt = now
	const query = `INSERT INTO agencies (id, name, contact_person, email, phone, country, status, commission_rate, created_at, updated_at)
        VALUES (:id, :name, :contact_person, :email, :phone, :country, :status, :commission_rate, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, agency); err != nil {
		return fmt.Errorf("create agency: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of an agency.
func (r *AgencyRepository) Update(ctx context.Context, agency *models.Agency) error {
	agency.UpdatedAt = time.Now().UTC()
	const query = `UPDATE agencies SET name = :name, contact_person = :contact_person, email = :email, phone = :phone, country = :country, status = :status, commission_rate = :commission_rate, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, agency)
	if err != nil {
		return fmt.Errorf("update agency: %w", err)
	}
	return expectAffected(res, "update agency")
}

// UpdateStatus sets the status of one agency.
func (r *AgencyRepository) UpdateStatus(ctx context.Context, id, status string) error {
	const query = `UPDATE agencies SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update agency status: %w", err)
	}
	return expectAffected(res, "update agency status")
}

// Delete removes an agency. Leads and students keep their rows with a null agency.
func (r *AgencyRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM agencies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete agency: %w", err)
	}
	return expectAffected(res, "delete agency")
}
