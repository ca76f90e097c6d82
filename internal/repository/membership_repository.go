package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Isurika-2001/university-management-system-sub001/internal/models"
)

const membershipColumns = `id, classroom_id, enrollment_id, student_id, status, created_at, updated_at`

// MembershipRepository persists classroom memberships.
type MembershipRepository struct {
	db *sqlx.DB
}

// NewMembershipRepository constructs the repository.
func NewMembershipRepository(db *sqlx.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// Create persists a membership.
func (r *MembershipRepository) Create(ctx context.Context, membership *models.ClassroomStudent) error {
	if membership.ID == "" {
		membership.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	membership.CreatedAt, membership.UpdatedAt = now, now
	if membership.Status == "" {
		membership.Status = models.MembershipActive
	}
	const query = `INSERT INTO classroom_students (` + membershipColumns + `)
        VALUES (:id, :classroom_id, :enrollment_id, :student_id, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, membership); err != nil {
		return fmt.Errorf("create membership: %w", err)
	}
	return nil
}

// Delete removes a membership. Only used to compensate failed workflows.
func (r *MembershipRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM classroom_students WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	return nil
}

// FindByID returns a membership.
func (r *MembershipRepository) FindByID(ctx context.Context, id string) (*models.ClassroomStudent, error) {
	var membership models.ClassroomStudent
	if err := r.db.GetContext(ctx, &membership, `SELECT `+membershipColumns+` FROM classroom_students WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &membership, nil
}

// FindByClassroomAndEnrollment returns the membership for the unique pair.
func (r *MembershipRepository) FindByClassroomAndEnrollment(ctx context.Context, classroomID, enrollmentID string) (*models.ClassroomStudent, error) {
	var membership models.ClassroomStudent
	const query = `SELECT ` + membershipColumns + ` FROM classroom_students WHERE classroom_id = $1 AND enrollment_id = $2`
	if err := r.db.GetContext(ctx, &membership, query, classroomID, enrollmentID); err != nil {
		return nil, err
	}
	return &membership, nil
}

// FindCurrentByClassroomAndStudent returns the student's non-transferred membership of a classroom.
func (r *MembershipRepository) FindCurrentByClassroomAndStudent(ctx context.Context, classroomID, studentID string) (*models.ClassroomStudent, error) {
	var membership models.ClassroomStudent
	const query = `SELECT ` + membershipColumns + ` FROM classroom_students
        WHERE classroom_id = $1 AND student_id = $2 AND status <> $3 ORDER BY created_at DESC LIMIT 1`
	if err := r.db.GetContext(ctx, &membership, query, classroomID, studentID, models.MembershipTransferred); err != nil {
		return nil, err
	}
	return &membership, nil
}

// ListByEnrollment returns memberships of an enrollment, optionally restricted to statuses.
func (r *MembershipRepository) ListByEnrollment(ctx context.Context, enrollmentID string, statuses ...models.MembershipStatus) ([]models.ClassroomStudent, error) {
	query := `SELECT ` + membershipColumns + ` FROM classroom_students WHERE enrollment_id = ?`
	args := []interface{}{enrollmentID}
	if len(statuses) > 0 {
		query += ` AND status IN (?)`
		args = append(args, statuses)
	}
	query, args, err := sqlx.In(query+` ORDER BY created_at ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("build membership query: %w", err)
	}
	var memberships []models.ClassroomStudent
	if err := r.db.SelectContext(ctx, &memberships, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list enrollment memberships: %w", err)
	}
	return memberships, nil
}

// ListByClassroom returns members of a classroom with student names.
func (r *MembershipRepository) ListByClassroom(ctx context.Context, classroomID string) ([]models.ClassroomStudentDetail, error) {
	const query = `SELECT cs.id, cs.classroom_id, cs.enrollment_id, cs.student_id, cs.status, cs.created_at, cs.updated_at,
        s.registration_no, TRIM(s.first_name || ' ' || s.last_name) AS student_name, cl.name AS classroom_name
        FROM classroom_students cs
        JOIN students s ON s.id = cs.student_id
        JOIN classrooms cl ON cl.id = cs.classroom_id
        WHERE cs.classroom_id = $1 ORDER BY s.registration_no ASC`
	var members []models.ClassroomStudentDetail
	if err := r.db.SelectContext(ctx, &members, query, classroomID); err != nil {
		return nil, fmt.Errorf("list classroom members: %w", err)
	}
	return members, nil
}

// CountByClassroom counts memberships referencing a classroom, whatever their status.
func (r *MembershipRepository) CountByClassroom(ctx context.Context, classroomID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM classroom_students WHERE classroom_id = $1`, classroomID); err != nil {
		return 0, fmt.Errorf("count classroom members: %w", err)
	}
	return count, nil
}

// UpdateStatus sets the status of a single membership.
func (r *MembershipRepository) UpdateStatus(ctx context.Context, id string, status models.MembershipStatus) error {
	const query = `UPDATE classroom_students SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update membership status: %w", err)
	}
	return nil
}
