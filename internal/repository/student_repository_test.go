package repository

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-crm-api/internal/models"
)

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(strings.Split(studentColumns, ", ")).
		AddRow("s1", "Student", "s@example.com", "123", models.StudentStatusEnrolled, "India", "BSc", "2024 T1", "X123", "a1", now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + studentColumns + " FROM students WHERE 1=1 ORDER BY created_at DESC LIMIT 25 OFFSET 0")).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.ListFilter{})
	require.NoError(t, err)
	require.Len(t, students, 1)
	require.NotNil(t, students[0].AgencyID)
	assert.Equal(t, "a1", *students[0].AgencyID)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), &models.Student{Name: "Student", Status: models.StudentStatusApplied})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryReplaceDocuments(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM student_documents WHERE student_id = $1")).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student_documents (student_id, file_id) VALUES ($1, $2)")).
		WithArgs("s1", "f1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student_documents (student_id, file_id) VALUES ($1, $2)")).
		WithArgs("s1", "f2").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ReplaceDocuments(context.Background(), "s1", []string{"f1", "f2"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryReplaceDocumentsRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM student_documents").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO student_documents").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.ReplaceDocuments(context.Background(), "s1", []string{"missing"})
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListDocuments(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "path", "mime", "size", "uploaded_by", "created_at"}).
		AddRow("f1", "passport.pdf", "2024/05/f1.pdf", "application/pdf", 2048, "u1", time.Now())
	mock.ExpectQuery("FROM uploaded_files f JOIN student_documents d").WithArgs("s1").WillReturnRows(rows)

	files, err := repo.ListDocuments(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "passport.pdf", files[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
