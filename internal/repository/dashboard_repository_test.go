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

func TestDashboardRepositoryTotals(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDashboardRepository(db)

	rows := sqlmock.NewRows([]string{"total_leads", "total_students", "total_agencies", "active_agencies", "total_users"}).
		AddRow(40, 12, 5, 4, 7)
	mock.ExpectQuery("SELECT").WithArgs(models.AgencyStatusActive).WillReturnRows(rows)

	var summary models.DashboardSummary
	require.NoError(t, repo.Totals(context.Background(), &summary))
	assert.Equal(t, 40, summary.TotalLeads)
	assert.Equal(t, 12, summary.TotalStudents)
	assert.Equal(t, 4, summary.ActiveAgencies)
	assert.Equal(t, 7, summary.TotalUsers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDashboardRepositoryLeadsByStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDashboardRepository(db)

	rows := sqlmock.NewRows([]string{"label", "count"}).
		AddRow(models.LeadStatusNew, 3).
		AddRow(models.LeadStatusConverted, 1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT TRIM(status) AS label, COUNT(*) AS count FROM leads GROUP BY TRIM(status)")).WillReturnRows(rows)

	buckets, err := repo.LeadsByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.CountBucket{{Label: models.LeadStatusNew, Count: 3}, {Label: models.LeadStatusConverted, Count: 1}}, buckets)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDashboardRepositoryTimesheetHours(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDashboardRepository(db)

	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"user_id", "full_name", "hours"}).AddRow("u1", "Casey", 37.5)
	mock.ExpectQuery("FROM timesheets t JOIN users u").WithArgs(since).WillReturnRows(rows)

	buckets, err := repo.TimesheetHours(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.InDelta(t, 37.5, buckets[0].Hours, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}
