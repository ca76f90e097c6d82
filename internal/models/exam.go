package models

import "time"

// PassMark is the lowest mark that counts as a pass.
const PassMark = 40.0

// TakeType classifies an exam attempt.
type TakeType string

const (
	TakeFresh       TakeType = "fresh"
	TakeResit       TakeType = "resit"
	TakeResitRetake TakeType = "resit-retake"
)

// Valid reports whether the take type is known.
func (t TakeType) Valid() bool {
	switch t {
	case TakeFresh, TakeResit, TakeResitRetake:
		return true
	}
	return false
}

// Exam is created alongside its classroom; one per classroom.
type Exam struct {
	ID          string    `db:"id" json:"id"`
	ClassroomID string    `db:"classroom_id" json:"classroom_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ExamMark groups every take of one student for one exam.
type ExamMark struct {
	ID        string    `db:"id" json:"id"`
	ExamID    string    `db:"exam_id" json:"exam_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	Takes     []Take    `json:"takes"`
}

// Take is one graded (or still ungraded) attempt. Type and existence are
// immutable once created; only the mark can be corrected.
type Take struct {
	ID         string    `db:"id" json:"id"`
	ExamMarkID string    `db:"exam_mark_id" json:"exam_mark_id"`
	Type       TakeType  `db:"take_type" json:"type"`
	Mark       *float64  `db:"mark" json:"mark"`
	Passed     *bool     `db:"passed" json:"passed"`
	Position   int       `db:"position" json:"position"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Graded reports whether a mark has been recorded.
func (t Take) Graded() bool {
	return t.Mark != nil
}

// Grade records a mark and derives the pass flag.
func (t *Take) Grade(mark float64) {
	passed := mark >= PassMark
	t.Mark = &mark
	t.Passed = &passed
}

// HasFresh reports whether the fresh take already exists.
func (m ExamMark) HasFresh() bool {
	for _, take := range m.Takes {
		if take.Type == TakeFresh {
			return true
		}
	}
	return false
}

// ExamSheetRow is one classroom member with their takes.
type ExamSheetRow struct {
	StudentID        string           `db:"student_id" json:"student_id"`
	RegistrationNo   string           `db:"registration_no" json:"registration_no"`
	StudentName      string           `db:"student_name" json:"student_name"`
	MembershipID     string           `db:"membership_id" json:"membership_id"`
	MembershipStatus MembershipStatus `db:"membership_status" json:"membership_status"`
	ExamMarkID       *string          `json:"exam_mark_id,omitempty"`
	Takes            []Take           `json:"takes"`
}

// ExamSheet is the grading view of a classroom exam.
type ExamSheet struct {
	Exam      Exam           `json:"exam"`
	Classroom Classroom      `json:"classroom"`
	Rows      []ExamSheetRow `json:"rows"`
}
