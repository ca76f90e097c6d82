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
	"github.com/Isurika-2001/university-management-system-sub001/pkg/database"
)

const classroomDetailSelect = `SELECT cl.id, cl.course_id, cl.batch_id, cl.module_id, cl.name, cl.month, cl.capacity, cl.description, cl.created_at, cl.updated_at,
        co.code AS course_code, co.name AS course_name, b.name AS batch_name, m.name AS module_name,
        m.is_sequential, m.sequence_number, e.id AS exam_id,
        (SELECT COUNT(*) FROM classroom_students cs WHERE cs.classroom_id = cl.id) AS student_count
        FROM classrooms cl
        JOIN courses co ON co.id = cl.course_id
        JOIN batches b ON b.id = cl.batch_id
        JOIN course_modules m ON m.id = cl.module_id
        LEFT JOIN exams e ON e.classroom_id = cl.id`

// ClassroomRepository manages persistence for classrooms.
type ClassroomRepository struct {
	db *sqlx.DB
}

// NewClassroomRepository constructs a new classroom repository.
func NewClassroomRepository(db *sqlx.DB) *ClassroomRepository {
	return &ClassroomRepository{db: db}
}

func classroomConditions(filter models.ClassroomFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("cl.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.BatchID != "" {
		conditions = append(conditions, fmt.Sprintf("cl.batch_id = $%d", len(args)+1))
		args = append(args, filter.BatchID)
	}
	if filter.ModuleID != "" {
		conditions = append(conditions, fmt.Sprintf("cl.module_id = $%d", len(args)+1))
		args = append(args, filter.ModuleID)
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// List returns a page of classrooms with populated references.
func (r *ClassroomRepository) List(ctx context.Context, filter models.ClassroomFilter) ([]models.ClassroomDetail, int, error) {
	clause, args := classroomConditions(filter)
	p := models.NewPagination(filter.Page, filter.PageSize, 0)
	query := fmt.Sprintf("%s%s ORDER BY cl.created_at DESC LIMIT %d OFFSET %d", classroomDetailSelect, clause, p.PageSize, (p.Page-1)*p.PageSize)

	var classrooms []models.ClassroomDetail
	if err := r.db.SelectContext(ctx, &classrooms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classrooms: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM classrooms cl"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count classrooms: %w", err)
	}
	return classrooms, total, nil
}

// ListAll returns every classroom matching the filter without paging.
func (r *ClassroomRepository) ListAll(ctx context.Context, filter models.ClassroomFilter) ([]models.ClassroomDetail, error) {
	clause, args := classroomConditions(filter)
	var classrooms []models.ClassroomDetail
	if err := r.db.SelectContext(ctx, &classrooms, classroomDetailSelect+clause+" ORDER BY cl.created_at DESC", args...); err != nil {
		return nil, fmt.Errorf("list classrooms: %w", err)
	}
	return classrooms, nil
}

// ListByCourse returns bare classroom rows of a course, used for classroom→module lookups.
func (r *ClassroomRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Classroom, error) {
	const query = `SELECT id, course_id, batch_id, module_id, name, month, capacity, description, created_at, updated_at FROM classrooms WHERE course_id = $1`
	var classrooms []models.Classroom
	if err := r.db.SelectContext(ctx, &classrooms, query, courseID); err != nil {
		return nil, fmt.Errorf("list course classrooms: %w", err)
	}
	return classrooms, nil
}

// FindByID returns a classroom record by ID.
func (r *ClassroomRepository) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	const query = `SELECT id, course_id, batch_id, module_id, name, month, capacity, description, created_at, updated_at FROM classrooms WHERE id = $1`
	var classroom models.Classroom
	if err := r.db.GetContext(ctx, &classroom, query, id); err != nil {
		return nil, err
	}
	return &classroom, nil
}

// FindDetailByID returns a classroom with populated references.
func (r *ClassroomRepository) FindDetailByID(ctx context.Context, id string) (*models.ClassroomDetail, error) {
	var detail models.ClassroomDetail
	if err := r.db.GetContext(ctx, &detail, classroomDetailSelect+" WHERE cl.id = $1", id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByTriple returns the classroom occupying a (course, batch, module) slot.
func (r *ClassroomRepository) FindByTriple(ctx context.Context, courseID, batchID, moduleID string) (*models.Classroom, error) {
	const query = `SELECT id, course_id, batch_id, module_id, name, month, capacity, description, created_at, updated_at
        FROM classrooms WHERE course_id = $1 AND batch_id = $2 AND module_id = $3`
	var classroom models.Classroom
	if err := r.db.GetContext(ctx, &classroom, query, courseID, batchID, moduleID); err != nil {
		return nil, err
	}
	return &classroom, nil
}

// ExistsByName checks if a classroom with the same name already exists.
func (r *ClassroomRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists int
	if err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM classrooms WHERE name = $1 LIMIT 1", name); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check classroom name: %w", err)
	}
	return true, nil
}

// Create persists a classroom record.
func (r *ClassroomRepository) Create(ctx context.Context, classroom *models.Classroom) error {
	if classroom.ID == "" {
		classroom.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if classroom.CreatedAt.IsZero() {
		classroom.CreatedAt = now
	}
	classroom.UpdatedAt = now
	const query = `INSERT INTO classrooms (id, course_id, batch_id, module_id, name, month, capacity, description, created_at, updated_at)
        VALUES (:id, :course_id, :batch_id, :module_id, :name, :month, :capacity, :description, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, classroom); err != nil {
		return fmt.Errorf("create classroom: %w", err)
	}
	return nil
}

// Delete removes a classroom together with its exam, marks and takes.
// Children go first so no mark ever references a vanished exam.
func (r *ClassroomRepository) Delete(ctx context.Context, id string) error {
	steps := []struct {
		label string
		query string
	}{
		{"takes", `DELETE FROM exam_mark_takes WHERE exam_mark_id IN (SELECT em.id FROM exam_marks em JOIN exams e ON e.id = em.exam_id WHERE e.classroom_id = $1)`},
		{"marks", `DELETE FROM exam_marks WHERE exam_id IN (SELECT id FROM exams WHERE classroom_id = $1)`},
		{"exam", `DELETE FROM exams WHERE classroom_id = $1`},
		{"classroom", `DELETE FROM classrooms WHERE id = $1`},
	}
	return database.WithTx(ctx, r.db, "delete classroom", func(tx *sqlx.Tx) error {
		for _, step := range steps {
			if _, err := tx.ExecContext(ctx, step.query, id); err != nil {
				return fmt.Errorf("delete classroom %s: %w", step.label, err)
			}
		}
		return nil
	})
}

// ListWithoutExam returns classrooms whose companion exam is missing.
func (r *ClassroomRepository) ListWithoutExam(ctx context.Context, limit int) ([]models.Classroom, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT cl.id, cl.course_id, cl.batch_id, cl.module_id, cl.name, cl.month, cl.capacity, cl.description, cl.created_at, cl.updated_at
        FROM classrooms cl LEFT JOIN exams e ON e.classroom_id = cl.id WHERE e.id IS NULL ORDER BY cl.created_at ASC LIMIT %d`, limit)
	var classrooms []models.Classroom
	if err := r.db.SelectContext(ctx, &classrooms, query); err != nil {
		return nil, fmt.Errorf("list classrooms without exam: %w", err)
	}
	return classrooms, nil
}
