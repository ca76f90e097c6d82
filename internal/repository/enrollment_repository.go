package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Isurika-2001/university-management-system-sub001/internal/models"
)

const enrollmentDetailSelect = `SELECT e.id, e.student_id, e.course_id, e.batch_id, e.enrollment_date, e.created_at,
        s.registration_no, TRIM(s.first_name || ' ' || s.last_name) AS student_name,
        co.code AS course_code, co.name AS course_name, b.name AS batch_name
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN courses co ON co.id = e.course_id
        JOIN batches b ON b.id = e.batch_id`

// EnrollmentRepository handles persistence of enrollments and their transfer log.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var conditions []string
	var args []interface{}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.BatchID != "" {
		conditions = append(conditions, fmt.Sprintf("e.batch_id = $%d", len(args)+1))
		args = append(args, filter.BatchID)
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	p := models.NewPagination(filter.Page, filter.PageSize, 0)

	query := fmt.Sprintf("%s%s ORDER BY e.enrollment_date DESC LIMIT %d OFFSET %d", enrollmentDetailSelect, clause, p.PageSize, (p.Page-1)*p.PageSize)
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM enrollments e"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, batch_id, enrollment_date, created_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with contextual info and its transfer log.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, enrollmentDetailSelect+" WHERE e.id = $1", id); err != nil {
		return nil, err
	}
	transfers, err := r.ListTransfers(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.BatchTransfers = transfers
	return &detail, nil
}

// ListByStudent returns all enrollments of a student.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, batch_id, enrollment_date, created_at FROM enrollments WHERE student_id = $1 ORDER BY enrollment_date ASC`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// Exists checks whether the student already holds an enrollment for the course intake.
func (r *EnrollmentRepository) Exists(ctx context.Context, studentID, courseID, batchID string) (bool, error) {
	const query = "SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND batch_id = $3 LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID, batchID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrollmentDate.IsZero() {
		enrollment.EnrollmentDate = now
	}
	enrollment.CreatedAt = now
	const query = `INSERT INTO enrollments (id, student_id, course_id, batch_id, enrollment_date, created_at)
        VALUES (:id, :student_id, :course_id, :batch_id, :enrollment_date, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Delete removes an enrollment. Only used to compensate a failed enrollment.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return nil
}

// UpdateBatch moves an enrollment to another batch.
func (r *EnrollmentRepository) UpdateBatch(ctx context.Context, id, batchID string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE enrollments SET batch_id = $2 WHERE id = $1`, id, batchID); err != nil {
		return fmt.Errorf("update enrollment batch: %w", err)
	}
	return nil
}

// AppendTransfer appends an entry to the transfer log.
func (r *EnrollmentRepository) AppendTransfer(ctx context.Context, transfer *models.BatchTransfer) error {
	if transfer.ID == "" {
		transfer.ID = uuid.NewString()
	}
	if transfer.TransferredAt.IsZero() {
		transfer.TransferredAt = time.Now().UTC()
	}
	const query = `INSERT INTO batch_transfers (id, enrollment_id, from_batch_id, to_batch_id, to_classroom_id, reason, transferred_at)
        VALUES (:id, :enrollment_id, :from_batch_id, :to_batch_id, :to_classroom_id, :reason, :transferred_at)`
	if _, err := r.db.NamedExecContext(ctx, query, transfer); err != nil {
		return fmt.Errorf("append batch transfer: %w", err)
	}
	return nil
}

// ListTransfers returns the transfer log in the order it was written.
func (r *EnrollmentRepository) ListTransfers(ctx context.Context, enrollmentID string) ([]models.BatchTransfer, error) {
	const query = `SELECT id, enrollment_id, from_batch_id, to_batch_id, to_classroom_id, reason, transferred_at
        FROM batch_transfers WHERE enrollment_id = $1 ORDER BY transferred_at ASC, seq ASC`
	var transfers []models.BatchTransfer
	if err := r.db.SelectContext(ctx, &transfers, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list batch transfers: %w", err)
	}
	return transfers, nil
}
