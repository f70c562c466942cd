package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-crm-api/internal/models"
	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
	"github.com/noah-isme/edu-crm-api/pkg/spreadsheet"
)

type studentRepository interface {
	List(ctx context.Context, filter models.ListFilter) ([]models.Student, int, error)
	ListRecent(ctx context.Context, limit int) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	UpdateStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) error
	ReplaceDocuments(ctx context.Context, studentID string, fileIDs []string) error
	ListDocuments(ctx context.Context, studentID string) ([]models.UploadedFile, error)
}

type fileLookup interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.UploadedFile, error)
}

type fileSigner interface {
	SignFiles(files []models.UploadedFile) []models.UploadedFile
}

// StudentServiceParams groups StudentService dependencies.
type StudentServiceParams struct {
	Repo      studentRepository
	Agencies  agencyFinder
	Files     fileLookup
	Signer    fileSigner
	Audit     auditRecorder
	Cache     cacheInvalidator
	Validator *validator.Validate
	Logger    *zap.Logger
}

// StudentService manages students and their attached documents.
type StudentService struct {
	repo      studentRepository
	agencies  agencyFinder
	files     fileLookup
	signer    fileSigner
	audit     auditRecorder
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs a StudentService.
func NewStudentService(p StudentServiceParams) *StudentService {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Validator == nil {
		p.Validator = models.NewValidator()
	}
	return &StudentService{
		repo:      p.Repo,
		agencies:  p.Agencies,
		files:     p.Files,
		signer:    p.Signer,
		audit:     p.Audit,
		cache:     p.Cache,
		validator: p.Validator,
		logger:    p.Logger,
	}
}

// List returns a page of students.
func (s *StudentService) List(ctx context.Context, filter models.ListFilter) ([]models.Student, *models.Pagination, error) {
	filter.Page, filter.PageSize = listWindow(filter.Page, filter.PageSize)
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internal(err, "failed to list students")
	}
	return students, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// ListRecent loads the most recently updated students for the table view.
func (s *StudentService) ListRecent(ctx context.Context, limit int) ([]models.Student, error) {
	students, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, internal(err, "failed to load students")
	}
	return students, nil
}

// Get returns one student; populate expands the agency and the signed documents.
func (s *StudentService) Get(ctx context.Context, id string, populate bool) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupFailed(err, "student")
	}
	if !populate {
		return student, nil
	}
	if student.AgencyID != nil && s.agencies != nil {
		agency, err := s.agencies.FindByID(ctx, *student.AgencyID)
		if err == nil {
			student.Agency = agency
		} else if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to populate student agency", zap.String("student_id", id), zap.Error(err))
		}
	}
	docs, err := s.repo.ListDocuments(ctx, id)
	if err != nil {
		return nil, internal(err, "failed to load student documents")
	}
	if s.signer != nil {
		docs = s.signer.SignFiles(docs)
	}
	student.Documents = docs
	return student, nil
}

// Create validates and stores a new student, attaching Documents when given.
func (s *StudentService) Create(ctx context.Context, req models.StudentRequest, actor models.Actor) (*models.Student, error) {
	req.Normalize()
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}
	student := &models.Student{}
	req.Apply(student)
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, internal(err, "failed to create student")
	}
	if len(req.Documents) > 0 {
		if err := s.repo.ReplaceDocuments(ctx, student.ID, req.Documents); err != nil {
			return nil, internal(err, "failed to attach student documents")
		}
	}

	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCreate, models.EntityStudents, student.ID, nil, req)
	invalidateEntity(ctx, s.cache, s.logger, models.EntityStudents)
	return student, nil
}

// Update replaces the editable fields of a student. A non-nil Documents list
// replaces the attached files; an empty list detaches them all.
func (s *StudentService) Update(ctx context.Context, id string, req models.StudentRequest, actor models.Actor) (*models.Student, error) {
	req.Normalize()
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupFailed(err, "student")
	}
	before := *existing
	req.Apply(existing)
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, lookupFailed(err, "student")
	}
	if req.Documents != nil {
		if err := s.repo.ReplaceDocuments(ctx, id, req.Documents); err != nil {
			return nil, internal(err, "failed to replace student documents")
		}
	}

	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionUpdate, models.EntityStudents, id, before, req)
	invalidateEntity(ctx, s.cache, s.logger, models.EntityStudents)
	return existing, nil
}

// Delete removes a student.
func (s *StudentService) Delete(ctx context.Context, id string, actor models.Actor) error {
	if err := s.BulkDelete(ctx, id); err != nil {
		return err
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionDelete, models.EntityStudents, id, nil, nil)
	invalidateEntity(ctx, s.cache, s.logger, models.EntityStudents)
	return nil
}

// BulkDelete removes one student without auditing or cache invalidation.
func (s *StudentService) BulkDelete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return lookupFailed(err, "student")
	}
	return nil
}

// BulkSetStatus changes the status of one student without auditing or cache invalidation.
func (s *StudentService) BulkSetStatus(ctx context.Context, id, status string) error {
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return lookupFailed(err, "student")
	}
	return nil
}

// ImportRow validates one spreadsheet row and creates a student unless dryRun is set.
func (s *StudentService) ImportRow(ctx context.Context, row spreadsheet.Row, dryRun bool) error {
	req := models.StudentRequest{
		Name:           row.Get("Name"),
		Email:          row.Get("Email"),
		Phone:          row.Get("Phone"),
		Country:        row.Get("Country"),
		Course:         row.Get("Course"),
		Intake:         row.Get("Intake"),
		PassportNumber: row.Get("PassportNumber"),
	}
	if raw := row.Get("Status"); raw != "" {
		status, ok := models.CanonicalStatus(models.StudentStatuses, raw)
		if !ok {
			return appErrors.Validation(fmt.Sprintf("unknown student status %q", raw))
		}
		req.Status = status
	}
	dob, ok := row.Date("DateOfBirth")
	if !ok {
		return appErrors.Validation(fmt.Sprintf("DateOfBirth %q is not a date", row.Get("DateOfBirth")))
	}
	req.DateOfBirth = dob

	req.Normalize()
	if err := s.validator.Struct(req); err != nil {
		return invalid(err, "invalid row")
	}
	if dryRun {
		return nil
	}
	student := &models.Student{}
	req.Apply(student)
	if err := s.repo.Create(ctx, student); err != nil {
		return internal(err, "failed to create student")
	}
	return nil
}

func (s *StudentService) validate(ctx context.Context, req models.StudentRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return invalid(err, "invalid student payload")
	}
	if req.AgencyID != nil && s.agencies != nil {
		if _, err := s.agencies.FindByID(ctx, *req.AgencyID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Validation("AgencyID does not reference an agency")
			}
			return internal(err, "failed to check agency")
		}
	}
	if len(req.Documents) == 0 || s.files == nil {
		return nil
	}
	found, err := s.files.FindByIDs(ctx, req.Documents)
	if err != nil {
		return internal(err, "failed to check documents")
	}
	known := make(map[string]struct{}, len(found))
	for _, f := range found {
		known[f.ID] = struct{}{}
	}
	var missing []string
	for _, id := range req.Documents {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return appErrors.Validation("unknown document ids: " + strings.Join(missing, ", "))
	}
	return nil
}
