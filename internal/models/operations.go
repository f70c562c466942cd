package models

// RowError reports a failure on one import row or bulk id.
type RowError struct {
	Row     int    `json:"row,omitempty"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

// ImportResult tallies a spreadsheet import. Rows are 1-based and count the header.
type ImportResult struct {
	Total    int        `json:"total"`
	Created  int        `json:"created"`
	Failed   int        `json:"failed"`
	Skipped  int        `json:"skipped"`
	Errors   []RowError `json:"errors"`
	Unmapped []string   `json:"unmapped"`
	DryRun   bool       `json:"dry_run"`
}

// Bulk action names.
const (
	BulkActionDelete = "delete"
	BulkActionStatus = "status"
)

// BulkRequest applies one action to a selection of ids.
type BulkRequest struct {
	Action string   `json:"action" validate:"required,oneof=delete status"`
	IDs    []string `json:"ids" validate:"required,min=1,dive,required"`
	Status string   `json:"status" validate:"required_if=Action status"`
}

// BulkResult tallies a bulk action. Pruned counts ids not present in the current list.
type BulkResult struct {
	Action    string     `json:"action"`
	Requested int        `json:"requested"`
	Pruned    int        `json:"pruned"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Errors    []RowError `json:"errors"`
}

// DashboardSummary feeds the dashboard charts.
type DashboardSummary struct {
	TotalLeads       int           `json:"total_leads"`
	TotalStudents    int           `json:"total_students"`
	TotalAgencies    int           `json:"total_agencies"`
	ActiveAgencies   int           `json:"active_agencies"`
	TotalUsers       int           `json:"total_users"`
	LeadsByStatus    []CountBucket `json:"leads_by_status"`
	LeadsByCountry   []CountBucket `json:"leads_by_country"`
	StudentsByStatus []CountBucket `json:"students_by_status"`
	LeadsByMonth     []CountBucket `json:"leads_by_month"`
	TimesheetHours   []HoursBucket `json:"timesheet_hours"`
	ConversionRate   float64       `json:"conversion_rate"`
}

// CountBucket is one chart bar.
type CountBucket struct {
	Label string `db:"label" json:"label"`
	Count int    `db:"count" json:"count"`
}

// HoursBucket sums logged hours per user.
type HoursBucket struct {
	UserID   string  `db:"user_id" json:"user_id"`
	FullName string  `db:"full_name" json:"full_name"`
	Hours    float64 `db:"hours" json:"hours"`
}
