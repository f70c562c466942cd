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

const studentColumns = `id, name, email, phone, status, country, course, intake, passport_number, agency_id, date_of_birth, created_at, updated_at`

var studentList = listColumns{
	search:  []string{"name", "email", "phone", "course", "passport_number"},
	status:  "status",
	country: "country",
	agency:  "agency_id",
	date:    "created_at",
	sorts: map[string]string{
		"name":           "name",
		"email":          "email",
		"status":         "status",
		"country":        "country",
		"course":         "course",
		"intake":         "intake",
		"passportnumber": "passport_number",
		"createdat":      "created_at",
		"updatedat":      "updated_at",
	},
	sortBy: "created_at",
}

// StudentRepository manages persistence for student records and their documents.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.ListFilter) ([]models.Student, int, error) {
	where, args := studentList.where(filter)
	_, size, offset := window(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM students WHERE %s ORDER BY %s LIMIT %d OFFSET %d", studentColumns, where, studentList.order(filter), size, offset)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// ListRecent returns up to limit students, most recently updated first.
func (r *StudentRepository) ListRecent(ctx context.Context, limit int) ([]models.Student, error) {
	_, size, _ := window(1, limit)
	query := fmt.Sprintf("SELECT %s FROM students ORDER BY updated_at DESC LIMIT %d", studentColumns, size)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list recent students: %w", err)
	}
	return students, nil
}

// FindByID fetches a student by id.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, name, email, phone, status, country, course, intake, passport_number, agency_id, date_of_birth, created_at, updated_at)
        VALUES (:id, :name, :email, :phone, :status, :country, :course, :intake, :passport_number, :agency_id, :date_of_birth, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET name = :name, email = :email, phone = :phone, status = :status, country = :country, course = :course, intake = :intake, passport_number = :passport_number, agency_id = :agency_id, date_of_birth = :date_of_birth, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return expectAffected(res, "update student")
}

// UpdateStatus sets the status of one student.
func (r *StudentRepository) UpdateStatus(ctx context.Context, id, status string) error {
	const query = `UPDATE students SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update student status: %w", err)
	}
	return expectAffected(res, "update student status")
}

// Delete removes a student. Document links cascade; the files stay.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return expectAffected(res, "delete student")
}

// ReplaceDocuments swaps the student's attached files for fileIDs within a transaction.
func (r *StudentRepository) ReplaceDocuments(ctx context.Context, studentID string, fileIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace student documents: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM student_documents WHERE student_id = $1`, studentID); err != nil {
		return fmt.Errorf("clear student documents: %w", err)
	}
	for _, fileID := range fileIDs {
		if _, err = tx.ExecContext(ctx, `INSERT INTO student_documents (student_id, file_id) VALUES ($1, $2)`, studentID, fileID); err != nil {
			return fmt.Errorf("insert student document: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace student documents: %w", err)
	}
	return nil
}

// ListDocuments returns the files attached to a student, oldest first.
func (r *StudentRepository) ListDocuments(ctx context.Context, studentID string) ([]models.UploadedFile, error) {
	const query = `SELECT f.id, f.name, f.path, f.mime, f.size, f.uploaded_by, f.created_at
        FROM uploaded_files f JOIN student_documents d ON d.file_id = f.id
        WHERE d.student_id = $1 ORDER BY f.created_at ASC`
	var files []models.UploadedFile
	if err := r.db.SelectContext(ctx, &files, query, studentID); err != nil {
		return nil, fmt.Errorf("list student documents: %w", err)
	}
	return files, nil
}
