package models

import "time"

// Course is an academic programme owning an ordered module catalog.
type Course struct {
	ID             string    `db:"id" json:"id"`
	Code           string    `db:"code" json:"code"`
	Name           string    `db:"name" json:"name"`
	Credits        int       `db:"credits" json:"credits"`
	DurationMonths int       `db:"duration_months" json:"duration_months"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// CourseFilter defines filter criteria for listing courses.
type CourseFilter struct {
	Search   string
	Page     int
	PageSize int
}

// ModuleEntry is one module of a course. Sequential modules carry a
// positive sequence number; non-sequential modules never do.
type ModuleEntry struct {
	ID             string    `db:"id" json:"id"`
	CourseID       string    `db:"course_id" json:"course_id"`
	Name           string    `db:"name" json:"name"`
	IsSequential   bool      `db:"is_sequential" json:"is_sequential"`
	SequenceNumber *int      `db:"sequence_number" json:"sequence_number,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Sequence returns the sequence number, or 0 for non-sequential modules.
func (m ModuleEntry) Sequence() int {
	if !m.IsSequential || m.SequenceNumber == nil {
		return 0
	}
	return *m.SequenceNumber
}

// CourseDetail bundles a course with its module catalog.
type CourseDetail struct {
	Course
	Modules []ModuleEntry `json:"modules"`
}
