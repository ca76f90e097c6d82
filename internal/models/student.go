package models

import "time"

// StudentStatus is the coarse registration progress of a student.
type StudentStatus string

const (
	StudentPending    StudentStatus = "pending"
	StudentIncomplete StudentStatus = "incomplete"
	StudentCompleted  StudentStatus = "completed"
	StudentHold       StudentStatus = "hold"
)

// Student aggregates personal, academic and emergency contact data.
type Student struct {
	ID                    string        `db:"id" json:"id"`
	RegistrationNo        string        `db:"registration_no" json:"registration_no"`
	FirstName             string        `db:"first_name" json:"first_name"`
	LastName              string        `db:"last_name" json:"last_name"`
	NIC                   string        `db:"nic" json:"nic"`
	DOB                   *time.Time    `db:"dob" json:"dob,omitempty"`
	Address               string        `db:"address" json:"address"`
	Mobile                string        `db:"mobile" json:"mobile"`
	HomeContact           *string       `db:"home_contact" json:"home_contact,omitempty"`
	Email                 string        `db:"email" json:"email"`
	Qualification         *string       `db:"qualification" json:"qualification,omitempty"`
	EmergencyName         *string       `db:"emergency_name" json:"emergency_name,omitempty"`
	EmergencyRelationship *string       `db:"emergency_relationship" json:"emergency_relationship,omitempty"`
	EmergencyContact      *string       `db:"emergency_contact" json:"emergency_contact,omitempty"`
	Status                StudentStatus `db:"status" json:"status"`
	CreatedAt             time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time     `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name.
func (s Student) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search   string
	Status   StudentStatus
	Page     int
	PageSize int
}

// RequiredDocument is an entry of the global document catalog.
type RequiredDocument struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	IsRequired bool      `db:"is_required" json:"is_required"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// StudentDocument records whether a student supplied a catalog document.
type StudentDocument struct {
	StudentID  string `db:"student_id" json:"student_id"`
	DocumentID string `db:"document_id" json:"document_id"`
	Provided   bool   `db:"provided" json:"provided"`
}

// CompletionSteps is the breakdown behind a student's status.
type CompletionSteps struct {
	PersonalDetails  bool          `json:"step1_personal_details"`
	Enrollment       bool          `json:"step2_enrollment"`
	AcademicDetails  bool          `json:"step3_academic_details"`
	Documents        bool          `json:"step4_documents"`
	EmergencyContact bool          `json:"step5_emergency_contact"`
	Overall          StudentStatus `json:"overall_status"`
}
