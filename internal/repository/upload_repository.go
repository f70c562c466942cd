package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/edu-crm-api/internal/models"
)

const uploadColumns = `id, name, path, mime, size, uploaded_by, created_at`

// UploadRepository stores metadata for uploaded files.
type UploadRepository struct {
	db *sqlx.DB
}

// NewUploadRepository constructs an UploadRepository.
func NewUploadRepository(db *sqlx.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

// Create inserts file metadata.
func (r *UploadRepository) Create(ctx context.Context, file *models.UploadedFile) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO uploaded_files (id, name, path, mime, size, uploaded_by, created_at)
        VALUES (:id, :name, :path, :mime, :size, :uploaded_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, file); err != nil {
		return fmt.Errorf("create uploaded file: %w", err)
	}
	return nil
}

// FindByID fetches file metadata by id.
func (r *UploadRepository) FindByID(ctx context.Context, id string) (*models.UploadedFile, error) {
	query := fmt.Sprintf("SELECT %s FROM uploaded_files WHERE id = $1", uploadColumns)
	var file models.UploadedFile
	if err := r.db.GetContext(ctx, &file, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find uploaded file: %w", err)
	}
	return &file, nil
}

// FindByIDs returns the files among ids that exist. Order is not guaranteed.
func (r *UploadRepository) FindByIDs(ctx context.Context, ids []string) ([]models.UploadedFile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM uploaded_files WHERE id = ANY($1)", uploadColumns)
	var files []models.UploadedFile
	if err := r.db.SelectContext(ctx, &files, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find uploaded files: %w", err)
	}
	return files, nil
}

// Delete removes file metadata. Student links cascade.
func (r *UploadRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM uploaded_files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete uploaded file: %w", err)
	}
	return expectAffected(res, "delete uploaded file")
}
