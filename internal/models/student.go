package models

import (
	"strings"
	"time"
)

// Student statuses in enrolment order.
const (
	StudentStatusApplied        = "Applied"
	StudentStatusOfferReceived  = "Offer Received"
	StudentStatusVisaProcessing = "Visa Processing"
	StudentStatusEnrolled       = "Enrolled"
	StudentStatusStudent        = "Student"
	StudentStatusWithdrawn      = "Withdrawn"
)

// StudentStatuses lists valid student statuses.
var StudentStatuses = []string{
	StudentStatusApplied,
	StudentStatusOfferReceived,
	StudentStatusVisaProcessing,
	StudentStatusEnrolled,
	StudentStatusStudent,
	StudentStatusWithdrawn,
}

// Student is an applicant or enrolled learner.
type Student struct {
	ID             string     `db:"id" json:"id"`
	Name           string     `db:"name" json:"Name"`
	Email          string     `db:"email" json:"Email"`
	Phone          string     `db:"phone" json:"Phone"`
	Status         string     `db:"status" json:"Status"`
	Country        string     `db:"country" json:"Country"`
	Course         string     `db:"course" json:"Course"`
	Intake         string     `db:"intake" json:"Intake"`
	PassportNumber string     `db:"passport_number" json:"PassportNumber"`
	AgencyID       *string    `db:"agency_id" json:"AgencyID,omitempty"`
	DateOfBirth    *time.Time `db:"date_of_birth" json:"DateOfBirth,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`

	Agency    *Agency        `db:"-" json:"Agency,omitempty"`
	Documents []UploadedFile `db:"-" json:"Documents,omitempty"`
}

// RecordID implements table.Record.
func (s Student) RecordID() string { return s.ID }

// Field implements table.Record.
func (s Student) Field(key string) interface{} {
	switch key {
	case "id":
		return s.ID
	case "Name":
		return s.Name
	case "Email":
		return s.Email
	case "Phone":
		return s.Phone
	case "Status":
		return s.Status
	case "Country":
		return s.Country
	case "Course":
		return s.Course
	case "Intake":
		return s.Intake
	case "PassportNumber":
		return s.PassportNumber
	case "AgencyID":
		return s.AgencyID
	case "DateOfBirth":
		return s.DateOfBirth
	case "createdAt":
		return s.CreatedAt
	case "updatedAt":
		return s.UpdatedAt
	}
	return nil
}

// StudentRequest is the create/update payload for a student.
// Documents, when present, replaces the attached file ids.
type StudentRequest struct {
	Name           string     `json:"Name" validate:"required,max=200"`
	Email          string     `json:"Email" validate:"omitempty,email"`
	Phone          string     `json:"Phone" validate:"omitempty,max=50"`
	Status         string     `json:"Status" validate:"omitempty,studentstatus"`
	Country        string     `json:"Country" validate:"omitempty,max=100"`
	Course         string     `json:"Course" validate:"omitempty,max=200"`
	Intake         string     `json:"Intake" validate:"omitempty,max=50"`
	PassportNumber string     `json:"PassportNumber" validate:"omitempty,max=50"`
	AgencyID       *string    `json:"AgencyID"`
	DateOfBirth    *time.Time `json:"DateOfBirth"`
	Documents      []string   `json:"Documents" validate:"omitempty,dive,required"`
}

// Normalize trims text fields and defaults the status.
func (r *StudentRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	r.Status = strings.TrimSpace(r.Status)
	if r.Status == "" {
		r.Status = StudentStatusApplied
	}
	r.Country = strings.TrimSpace(r.Country)
	r.Course = strings.TrimSpace(r.Course)
	r.Intake = strings.TrimSpace(r.Intake)
	r.PassportNumber = strings.ToUpper(strings.TrimSpace(r.PassportNumber))
	r.AgencyID = trimOptional(r.AgencyID)
	if r.Documents != nil {
		ids := make([]string, 0, len(r.Documents))
		seen := make(map[string]struct{}, len(r.Documents))
		for _, id := range r.Documents {
			id = strings.TrimSpace(id)
			if _, dup := seen[id]; dup || id == "" {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
		r.Documents = ids
	}
}

// Apply copies the request onto a student.
func (r StudentRequest) Apply(s *Student) {
	s.Name = r.Name
	s.Email = r.Email
	s.Phone = r.Phone
	s.Status = r.Status
	s.Country = r.Country
	s.Course = r.Course
	s.Intake = r.Intake
	s.PassportNumber = r.PassportNumber
	s.AgencyID = r.AgencyID
	s.DateOfBirth = r.DateOfBirth
}
