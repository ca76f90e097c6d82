package models

import "time"

// Enrollment links a student to a course intake. Course and batch are fixed
// at creation; the batch only changes through a recorded transfer.
type Enrollment struct {
	ID             string          `db:"id" json:"id"`
	StudentID      string          `db:"student_id" json:"student_id"`
	CourseID       string          `db:"course_id" json:"course_id"`
	BatchID        string          `db:"batch_id" json:"batch_id"`
	EnrollmentDate time.Time       `db:"enrollment_date" json:"enrollment_date"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	BatchTransfers []BatchTransfer `json:"batch_transfers,omitempty"`
}

// BatchTransfer is an append-only record of a batch/classroom move.
type BatchTransfer struct {
	ID            string    `db:"id" json:"id"`
	EnrollmentID  string    `db:"enrollment_id" json:"enrollment_id"`
	FromBatchID   string    `db:"from_batch_id" json:"from_batch_id"`
	ToBatchID     string    `db:"to_batch_id" json:"to_batch_id"`
	ToClassroomID *string   `db:"to_classroom_id" json:"to_classroom_id,omitempty"`
	Reason        string    `db:"reason" json:"reason"`
	TransferredAt time.Time `db:"transferred_at" json:"transferred_at"`
}

// EnrollmentDetail enriches Enrollment with student, course and batch info.
type EnrollmentDetail struct {
	Enrollment
	RegistrationNo string `db:"registration_no" json:"registration_no"`
	StudentName    string `db:"student_name" json:"student_name"`
	CourseCode     string `db:"course_code" json:"course_code"`
	CourseName     string `db:"course_name" json:"course_name"`
	BatchName      string `db:"batch_name" json:"batch_name"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	BatchID   string
	Page      int
	PageSize  int
}
