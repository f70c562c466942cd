package models

import (
	"strings"
	"time"
)

// Timesheet is one day of logged work by a staff user.
type Timesheet struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"UserID"`
	Date      time.Time `db:"date" json:"Date"`
	Hours     float64   `db:"hours" json:"Hours"`
	Task      string    `db:"task" json:"Task"`
	Notes     string    `db:"notes" json:"Notes"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// RecordID implements table.Record.
func (t Timesheet) RecordID() string { return t.ID }

// Field implements table.Record.
func (t Timesheet) Field(key string) interface{} {
	switch key {
	case "id":
		return t.ID
	case "UserID":
		return t.UserID
	case "Date":
		return t.Date
	case "Hours":
		return t.Hours
	case "Task":
		return t.Task
	case "Notes":
		return t.Notes
	case "createdAt":
		return t.CreatedAt
	case "updatedAt":
		return t.UpdatedAt
	}
	return nil
}

// TimesheetRequest is the create/update payload for a timesheet entry.
// UserID is only honoured for users who may manage other users.
type TimesheetRequest struct {
	UserID string    `json:"UserID"`
	Date   time.Time `json:"Date" validate:"required"`
	Hours  float64   `json:"Hours" validate:"gt=0,lte=24"`
	Task   string    `json:"Task" validate:"required,max=200"`
	Notes  string    `json:"Notes"`
}

// Normalize trims text and drops the time of day.
func (r *TimesheetRequest) Normalize() {
	r.UserID = strings.TrimSpace(r.UserID)
	r.Task = strings.TrimSpace(r.Task)
	r.Notes = strings.TrimSpace(r.Notes)
	if !r.Date.IsZero() {
		y, m, d := r.Date.Date()
		r.Date = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
}

// Apply copies the request onto a timesheet.
func (r TimesheetRequest) Apply(t *Timesheet) {
	t.Date = r.Date
	t.Hours = r.Hours
	t.Task = r.Task
	t.Notes = r.Notes
}
