package models

import (
	"encoding/json"
	"time"
)

// Activity actions recorded after successful mutations.
const (
	ActivityClassroomCreate    = "CLASSROOM_CREATE"
	ActivityClassroomDelete    = "CLASSROOM_DELETE"
	ActivityEnrollmentCreate   = "ENROLLMENT_CREATE"
	ActivityEnrollmentTransfer = "ENROLLMENT_TRANSFER"
	ActivityMembershipCreate   = "MEMBERSHIP_CREATE"
	ActivityMembershipStatus   = "MEMBERSHIP_STATUS"
	ActivityMarkAdd            = "EXAM_MARK_ADD"
	ActivityMarkUpdate         = "EXAM_MARK_UPDATE"
	ActivityStudentCreate      = "STUDENT_CREATE"
	ActivityStudentUpdate      = "STUDENT_UPDATE"
	ActivityCourseCreate       = "COURSE_CREATE"
	ActivityModuleCreate       = "MODULE_CREATE"
	ActivityBatchCreate        = "BATCH_CREATE"
)

// ActivityLog is a fire-and-forget trail entry of a mutating request.
type ActivityLog struct {
	ID        string          `db:"id" json:"id"`
	UserID    *string         `db:"user_id" json:"user_id,omitempty"`
	Action    string          `db:"action" json:"action"`
	Entity    string          `db:"entity" json:"entity"`
	EntityID  *string         `db:"entity_id" json:"entity_id,omitempty"`
	Details   json.RawMessage `db:"details" json:"details,omitempty"`
	IPAddress string          `db:"ip_address" json:"ip_address"`
	UserAgent string          `db:"user_agent" json:"user_agent"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
