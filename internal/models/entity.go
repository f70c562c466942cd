package models

// Resource names used in routes, cache keys and audit logs.
const (
	EntityLeads      = "leads"
	EntityStudents   = "students"
	EntityAgencies   = "agencies"
	EntityUsers      = "users"
	EntityTimesheets = "timesheets"
	EntityUploads    = "uploads"
	EntityAuth       = "auth"
)
