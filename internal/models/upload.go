package models

import "time"

// UploadedFile is a stored upload. URL is a signed download link filled at read time.
type UploadedFile struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Path       string    `db:"path" json:"-"`
	Mime       string    `db:"mime" json:"mime"`
	Size       int64     `db:"size" json:"size"`
	UploadedBy *string   `db:"uploaded_by" json:"-"`
	URL        string    `db:"-" json:"url"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
