package models

import "time"

// Batch is an intake cohort, optionally scoped to a course.
type Batch struct {
	ID        string     `db:"id" json:"id"`
	CourseID  *string    `db:"course_id" json:"course_id,omitempty"`
	Name      string     `db:"name" json:"name"`
	StartDate *time.Time `db:"start_date" json:"start_date,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// BatchFilter narrows batch listings.
type BatchFilter struct {
	CourseID string
	Page     int
	PageSize int
}
