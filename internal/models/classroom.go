package models

import "time"

// Classroom is the enrollment and grading unit for one module of one course intake.
type Classroom struct {
	ID          string    `db:"id" json:"id"`
	CourseID    string    `db:"course_id" json:"course_id"`
	BatchID     string    `db:"batch_id" json:"batch_id"`
	ModuleID    string    `db:"module_id" json:"module_id"`
	Name        string    `db:"name" json:"name"`
	Month       string    `db:"month" json:"month"`
	Capacity    *int      `db:"capacity" json:"capacity,omitempty"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ClassroomDetail extends Classroom with populated references.
type ClassroomDetail struct {
	Classroom
	CourseCode     string  `db:"course_code" json:"course_code"`
	CourseName     string  `db:"course_name" json:"course_name"`
	BatchName      string  `db:"batch_name" json:"batch_name"`
	ModuleName     string  `db:"module_name" json:"module_name"`
	IsSequential   bool    `db:"is_sequential" json:"is_sequential"`
	SequenceNumber *int    `db:"sequence_number" json:"sequence_number,omitempty"`
	ExamID         *string `db:"exam_id" json:"exam_id,omitempty"`
	StudentCount   int     `db:"student_count" json:"student_count"`
}

// ClassroomFilter defines filter criteria for listing classrooms. When both
// CourseID and EnrollmentID are set the listing is narrowed by the progression gate.
type ClassroomFilter struct {
	CourseID     string
	BatchID      string
	ModuleID     string
	EnrollmentID string
	Page         int
	PageSize     int
}
