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

// CourseRepository manages courses and their module catalog.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses matching the filter.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	base := "FROM courses WHERE 1=1"
	var args []interface{}
	if filter.Search != "" {
		base += fmt.Sprintf(" AND (LOWER(code) LIKE $%d OR LOWER(name) LIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	p := models.NewPagination(filter.Page, filter.PageSize, 0)
	offset := (p.Page - 1) * p.PageSize

	query := fmt.Sprintf("SELECT id, code, name, credits, duration_months, created_at, updated_at %s ORDER BY code ASC LIMIT %d OFFSET %d", base, p.PageSize, offset)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID returns a course by ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, code, name, credits, duration_months, created_at, updated_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// ExistsByCode checks for a course code collision.
func (r *CourseRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var exists int
	if err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM courses WHERE LOWER(code) = LOWER($1) LIMIT 1", code); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course code: %w", err)
	}
	return true, nil
}

// Create persists a course together with its initial module catalog.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course, modules []models.ModuleEntry) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now

	const query = `INSERT INTO courses (id, code, name, credits, duration_months, created_at, updated_at)
        VALUES (:id, :code, :name, :credits, :duration_months, :created_at, :updated_at)`
	return database.WithTx(ctx, r.db, "create course", func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, query, course); err != nil {
			return fmt.Errorf("create course: %w", err)
		}
		for i := range modules {
			modules[i].CourseID = course.ID
			if err := insertModule(ctx, tx, &modules[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListModules returns the full catalog of a course, sequential modules first in order.
func (r *CourseRepository) ListModules(ctx context.Context, courseID string) ([]models.ModuleEntry, error) {
	const query = `SELECT id, course_id, name, is_sequential, sequence_number, created_at FROM course_modules
        WHERE course_id = $1 ORDER BY is_sequential DESC, sequence_number ASC NULLS LAST, name ASC`
	var modules []models.ModuleEntry
	if err := r.db.SelectContext(ctx, &modules, query, courseID); err != nil {
		return nil, fmt.Errorf("list course modules: %w", err)
	}
	return modules, nil
}

// FindModule returns a module entry scoped to its course.
func (r *CourseRepository) FindModule(ctx context.Context, courseID, moduleID string) (*models.ModuleEntry, error) {
	const query = `SELECT id, course_id, name, is_sequential, sequence_number, created_at FROM course_modules WHERE id = $1 AND course_id = $2`
	var module models.ModuleEntry
	if err := r.db.GetContext(ctx, &module, query, moduleID, courseID); err != nil {
		return nil, err
	}
	return &module, nil
}

// ModuleConflict reports whether the name or the sequence number is taken within the course.
func (r *CourseRepository) ModuleConflict(ctx context.Context, courseID, name string, sequence *int) (nameTaken bool, sequenceTaken bool, err error) {
	const query = `SELECT
        COALESCE(BOOL_OR(LOWER(name) = LOWER($2)), FALSE) AS name_taken,
        COALESCE(BOOL_OR(is_sequential AND sequence_number = $3), FALSE) AS sequence_taken
        FROM course_modules WHERE course_id = $1`
	var row struct {
		NameTaken     bool `db:"name_taken"`
		SequenceTaken bool `db:"sequence_taken"`
	}
	if err := r.db.GetContext(ctx, &row, query, courseID, name, sequence); err != nil {
		return false, false, fmt.Errorf("check module conflict: %w", err)
	}
	return row.NameTaken, row.SequenceTaken, nil
}

// CreateModule persists a module entry.
func (r *CourseRepository) CreateModule(ctx context.Context, module *models.ModuleEntry) error {
	return insertModule(ctx, r.db, module)
}

func insertModule(ctx context.Context, exec sqlx.ExtContext, module *models.ModuleEntry) error {
	if module.ID == "" {
		module.ID = uuid.NewString()
	}
	if module.CreatedAt.IsZero() {
		module.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO course_modules (id, course_id, name, is_sequential, sequence_number, created_at)
        VALUES (:id, :course_id, :name, :is_sequential, :sequence_number, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, module); err != nil {
		return fmt.Errorf("create course module %q: %w", module.Name, err)
	}
	return nil
}
