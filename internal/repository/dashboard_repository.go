package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-crm-api/internal/models"
)

// DashboardRepository runs the aggregate queries behind the dashboard charts.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs a DashboardRepository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

type dashboardTotals struct {
	Leads          int `db:"total_leads"`
	Students       int `db:"total_students"`
	Agencies       int `db:"total_agencies"`
	ActiveAgencies int `db:"active_agencies"`
	Users          int `db:"total_users"`
}

// Totals fills the headline counters of summary.
func (r *DashboardRepository) Totals(ctx context.Context, summary *models.DashboardSummary) error {
	const query = `SELECT
        (SELECT COUNT(*) FROM leads) AS total_leads,
        (SELECT COUNT(*) FROM students) AS total_students,
        (SELECT COUNT(*) FROM agencies) AS total_agencies,
        (SELECT COUNT(*) FROM agencies WHERE TRIM(status) = $1) AS active_agencies,
        (SELECT COUNT(*) FROM users WHERE active = TRUE) AS total_users`
	var totals dashboardTotals
	if err := r.db.GetContext(ctx, &totals, query, models.AgencyStatusActive); err != nil {
		return fmt.Errorf("dashboard totals: %w", err)
	}
	summary.TotalLeads = totals.Leads
	summary.TotalStudents = totals.Students
	summary.TotalAgencies = totals.Agencies
	summary.ActiveAgencies = totals.ActiveAgencies
	summary.TotalUsers = totals.Users
	return nil
}

// LeadsByStatus counts leads per trimmed status.
func (r *DashboardRepository) LeadsByStatus(ctx context.Context) ([]models.CountBucket, error) {
	const query = `SELECT TRIM(status) AS label, COUNT(*) AS count FROM leads GROUP BY TRIM(status) ORDER BY count DESC, label ASC`
	return r.buckets(ctx, "leads by status", query)
}

// LeadsByCountry counts leads for the top limit countries. Blank countries are "Unknown".
func (r *DashboardRepository) LeadsByCountry(ctx context.Context, limit int) ([]models.CountBucket, error) {
	query := fmt.Sprintf(`SELECT COALESCE(NULLIF(TRIM(country), ''), 'Unknown') AS label, COUNT(*) AS count
        FROM leads GROUP BY 1 ORDER BY count DESC, label ASC LIMIT %d`, limit)
	return r.buckets(ctx, "leads by country", query)
}

// StudentsByStatus counts students per trimmed status.
func (r *DashboardRepository) StudentsByStatus(ctx context.Context) ([]models.CountBucket, error) {
	const query = `SELECT TRIM(status) AS label, COUNT(*) AS count FROM students GROUP BY TRIM(status) ORDER BY count DESC, label ASC`
	return r.buckets(ctx, "students by status", query)
}

// LeadsByMonth counts leads per enquiry month (creation month when unset) since the given time.
func (r *DashboardRepository) LeadsByMonth(ctx context.Context, since time.Time) ([]models.CountBucket, error) {
	const query = `SELECT TO_CHAR(DATE_TRUNC('month', COALESCE(enquiry_date, created_at)), 'YYYY-MM') AS label, COUNT(*) AS count
        FROM leads WHERE COALESCE(enquiry_date, created_at) >= $1 GROUP BY 1 ORDER BY label ASC`
	return r.buckets(ctx, "leads by month", query, since)
}

// TimesheetHours sums hours per user since the given day.
func (r *DashboardRepository) TimesheetHours(ctx context.Context, since time.Time) ([]models.HoursBucket, error) {
	const query = `SELECT t.user_id, u.full_name, COALESCE(SUM(t.hours), 0) AS hours
        FROM timesheets t JOIN users u ON u.id = t.user_id
        WHERE t.date >= $1 GROUP BY t.user_id, u.full_name ORDER BY hours DESC`
	var buckets []models.HoursBucket
	if err := r.db.SelectContext(ctx, &buckets, query, since); err != nil {
		return nil, fmt.Errorf("timesheet hours: %w", err)
	}
	return buckets, nil
}

func (r *DashboardRepository) buckets(ctx context.Context, name, query string, args ...interface{}) ([]models.CountBucket, error) {
	var buckets []models.CountBucket
	if err := r.db.SelectContext(ctx, &buckets, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return buckets, nil
}
