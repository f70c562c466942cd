package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-crm-api/internal/models"
)

func TestUploadRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUploadRepository(db)

	mock.ExpectExec("INSERT INTO uploaded_files").WillReturnResult(sqlmock.NewResult(1, 1))

	file := &models.UploadedFile{Name: "offer.pdf", Path: "2024/05/x.pdf", Mime: "application/pdf", Size: 10}
	require.NoError(t, repo.Create(context.Background(), file))
	assert.NotEmpty(t, file.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadRepositoryFindByIDs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUploadRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "path", "mime", "size", "uploaded_by", "created_at"}).
		AddRow("f1", "offer.pdf", "x.pdf", "application/pdf", 10, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + uploadColumns + " FROM uploaded_files WHERE id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	files, err := repo.FindByIDs(context.Background(), []string{"f1", "f2"})
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadRepositoryFindByIDsEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUploadRepository(db)

	files, err := repo.FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, files)
	assert.NoError(t, mock.ExpectationsWereMet())
}
