package models

import (
	"strings"
	"time"
)

const (
	AgencyStatusActive   = "Active"
	AgencyStatusInactive = "Inactive"
)

// AgencyStatuses lists valid agency statuses.
var AgencyStatuses = []string{AgencyStatusActive, AgencyStatusInactive}

// Agency is a recruitment partner that refers leads and students.
type Agency struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"Name"`
	ContactPerson  string    `db:"contact_person" json:"ContactPerson"`
	Email          string    `db:"email" json:"Email"`
	Phone          string    `db:"phone" json:"Phone"`
	Country        string    `db:"country" json:"Country"`
	Status         string    `db:"status" json:"Status"`
	CommissionRate *float64  `db:"commission_rate" json:"CommissionRate,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// RecordID implements table.Record.
func (a Agency) RecordID() string { return a.ID }

// Field implements table.Record.
func (a Agency) Field(key string) interface{} {
	switch key {
	case "id":
		return a.ID
	case "Name":
		return a.Name
	case "ContactPerson":
		return a.ContactPerson
	case "Email":
		return a.Email
	case "Phone":
		return a.Phone
	case "Country":
		return a.Country
	case "Status":
		return a.Status
	case "CommissionRate":
		return a.CommissionRate
	case "createdAt":
		return a.CreatedAt
	case "updatedAt":
		return a.UpdatedAt
	}
	return nil
}

// AgencyRequest is the create/update payload for an agency.
type AgencyRequest struct {
	Name           string   `json:"Name" validate:"required,max=200"`
	ContactPerson  string   `json:"ContactPerson" validate:"omitempty,max=200"`
	Email          string   `json:"Email" validate:"omitempty,email"`
	Phone          string   `json:"Phone" validate:"omitempty,max=50"`
	Country        string   `json:"Country" validate:"omitempty,max=100"`
	Status         string   `json:"Status" validate:"omitempty,agencystatus"`
	CommissionRate *float64 `json:"CommissionRate" validate:"omitempty,gte=0,lte=100"`
}

// Normalize trims text fields and defaults the status.
func (r *AgencyRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.ContactPerson = strings.TrimSpace(r.ContactPerson)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	r.Country = strings.TrimSpace(r.Country)
	r.Status = strings.TrimSpace(r.Status)
	if r.Status == "" {
		r.Status = AgencyStatusActive
	}
}

// Apply copies the request onto an agency.
func (r AgencyRequest) Apply(a *Agency) {
	a.Name = r.Name
	a.ContactPerson = r.ContactPerson
	a.Email = r.Email
	a.Phone = r.Phone
	a.Country = r.Country
	a.Status = r.Status
	a.CommissionRate = r.CommissionRate
}
