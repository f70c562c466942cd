package models

import (
	"strings"
	"time"
)

// Lead statuses in pipeline order.
const (
	LeadStatusNew         = "New Lead"
	LeadStatusContacted   = "Contacted"
	LeadStatusQualified   = "Qualified"
	LeadStatusApplication = "Application Submitted"
	LeadStatusConverted   = "Converted"
	LeadStatusLost        = "Lost"
)

// LeadStatuses lists valid lead statuses.
var LeadStatuses = []string{
	LeadStatusNew,
	LeadStatusContacted,
	LeadStatusQualified,
	LeadStatusApplication,
	LeadStatusConverted,
	LeadStatusLost,
}

// Lead is a prospective student enquiry.
type Lead struct {
	ID          string     `db:"id" json:"id"`
	Name        string     `db:"name" json:"Name"`
	Email       string     `db:"email" json:"Email"`
	Phone       string     `db:"phone" json:"Phone"`
	Status      string     `db:"status" json:"Status"`
	Country     string     `db:"country" json:"Country"`
	Source      string     `db:"source" json:"Source"`
	Course      string     `db:"course" json:"Course"`
	Notes       string     `db:"notes" json:"Notes"`
	AgencyID    *string    `db:"agency_id" json:"AgencyID,omitempty"`
	AssignedTo  *string    `db:"assigned_to" json:"AssignedTo,omitempty"`
	EnquiryDate *time.Time `db:"enquiry_date" json:"EnquiryDate,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`

	Agency   *Agency   `db:"-" json:"Agency,omitempty"`
	Assignee *UserInfo `db:"-" json:"Assignee,omitempty"`
}

// RecordID implements table.Record.
func (l Lead) RecordID() string { return l.ID }

// Field implements table.Record.
func (l Lead) Field(key string) interface{} {
	switch key {
	case "id":
		return l.ID
	case "Name":
		return l.Name
	case "Email":
		return l.Email
	case "Phone":
		return l.Phone
	case "Status":
		return l.Status
	case "Country":
		return l.Country
	case "Source":
		return l.Source
	case "Course":
		return l.Course
	case "Notes":
		return l.Notes
	case "AgencyID":
		return l.AgencyID
	case "AssignedTo":
		return l.AssignedTo
	case "EnquiryDate":
		return l.EnquiryDate
	case "createdAt":
		return l.CreatedAt
	case "updatedAt":
		return l.UpdatedAt
	}
	return nil
}

// LeadRequest is the create/update payload for a lead.
type LeadRequest struct {
	Name        string     `json:"Name" validate:"required,max=200"`
	Email       string     `json:"Email" validate:"omitempty,email"`
	Phone       string     `json:"Phone" validate:"omitempty,max=50"`
	Status      string     `json:"Status" validate:"omitempty,leadstatus"`
	Country     string     `json:"Country" validate:"omitempty,max=100"`
	Source      string     `json:"Source" validate:"omitempty,max=100"`
	Course      string     `json:"Course" validate:"omitempty,max=200"`
	Notes       string     `json:"Notes"`
	AgencyID    *string    `json:"AgencyID"`
	AssignedTo  *string    `json:"AssignedTo"`
	EnquiryDate *time.Time `json:"EnquiryDate"`
}

// Normalize trims every text field and defaults the status.
func (r *LeadRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	r.Status = strings.TrimSpace(r.Status)
	if r.Status == "" {
		r.Status = LeadStatusNew
	}
	r.Country = strings.TrimSpace(r.Country)
	r.Source = strings.TrimSpace(r.Source)
	r.Course = strings.TrimSpace(r.Course)
	r.Notes = strings.TrimSpace(r.Notes)
	r.AgencyID = trimOptional(r.AgencyID)
	r.AssignedTo = trimOptional(r.AssignedTo)
}

// Apply copies the request onto a lead.
func (r LeadRequest) Apply(l *Lead) {
	l.Name = r.Name
	l.Email = r.Email
	l.Phone = r.Phone
	l.Status = r.Status
	l.Country = r.Country
	l.Source = r.Source
	l.Course = r.Course
	l.Notes = r.Notes
	l.AgencyID = r.AgencyID
	l.AssignedTo = r.AssignedTo
	l.EnquiryDate = r.EnquiryDate
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
