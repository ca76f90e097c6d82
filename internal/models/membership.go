package models

import (
	"strings"
	"time"
)

// MembershipStatus is the lifecycle status of a classroom membership.
type MembershipStatus string

const (
	MembershipActive      MembershipStatus = "active"
	MembershipHold        MembershipStatus = "hold"
	MembershipPass        MembershipStatus = "pass"
	MembershipFail        MembershipStatus = "fail"
	MembershipTransferred MembershipStatus = "transferred"
)

// legacyDropped is the old spelling of MembershipTransferred.
const legacyDropped = "dropped"

// ParseMembershipStatus normalises user input, folding "dropped" into "transferred".
func ParseMembershipStatus(raw string) (MembershipStatus, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == legacyDropped {
		return MembershipTransferred, true
	}
	switch status := MembershipStatus(value); status {
	case MembershipActive, MembershipHold, MembershipPass, MembershipFail, MembershipTransferred:
		return status, true
	}
	return "", false
}

// StatusFromResult maps a graded take onto the membership status.
func StatusFromResult(passed bool) MembershipStatus {
	if passed {
		return MembershipPass
	}
	return MembershipFail
}

// ClassroomStudent links an enrollment to a classroom.
type ClassroomStudent struct {
	ID           string           `db:"id" json:"id"`
	ClassroomID  string           `db:"classroom_id" json:"classroom_id"`
	EnrollmentID string           `db:"enrollment_id" json:"enrollment_id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	Status       MembershipStatus `db:"status" json:"status"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// ClassroomStudentDetail adds student and classroom names for listings.
type ClassroomStudentDetail struct {
	ClassroomStudent
	RegistrationNo string `db:"registration_no" json:"registration_no"`
	StudentName    string `db:"student_name" json:"student_name"`
	ClassroomName  string `db:"classroom_name" json:"classroom_name"`
}
