package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Isurika-2001/university-management-system-sub001/internal/models"
	"github.com/Isurika-2001/university-management-system-sub001/pkg/database"
)

const takeColumns = `id, exam_mark_id, take_type, mark, passed, position, created_at, updated_at`

// ExamRepository persists exams, exam marks and their takes.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs the repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// Create persists the exam of a classroom.
func (r *ExamRepository) Create(ctx context.Context, exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	if exam.CreatedAt.IsZero() {
		exam.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO exams (id, classroom_id, created_at) VALUES (:id, :classroom_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}
	return nil
}

// FindByID returns an exam.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, `SELECT id, classroom_id, created_at FROM exams WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// FindByClassroom returns the exam attached to a classroom.
func (r *ExamRepository) FindByClassroom(ctx context.Context, classroomID string) (*models.Exam, error) {
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, `SELECT id, classroom_id, created_at FROM exams WHERE classroom_id = $1`, classroomID); err != nil {
		return nil, err
	}
	return &exam, nil
}

// FindMark returns the mark row of a student for an exam, takes included.
func (r *ExamRepository) FindMark(ctx context.Context, examID, studentID string) (*models.ExamMark, error) {
	var mark models.ExamMark
	const query = `SELECT id, exam_id, student_id, created_at, updated_at FROM exam_marks WHERE exam_id = $1 AND student_id = $2`
	if err := r.db.GetContext(ctx, &mark, query, examID, studentID); err != nil {
		return nil, err
	}
	takes, err := r.takesFor(ctx, []string{mark.ID})
	if err != nil {
		return nil, err
	}
	mark.Takes = takes[mark.ID]
	return &mark, nil
}

// FindMarkByID returns a mark row by ID, takes included.
func (r *ExamRepository) FindMarkByID(ctx context.Context, id string) (*models.ExamMark, error) {
	var mark models.ExamMark
	if err := r.db.GetContext(ctx, &mark, `SELECT id, exam_id, student_id, created_at, updated_at FROM exam_marks WHERE id = $1`, id); err != nil {
		return nil, err
	}
	takes, err := r.takesFor(ctx, []string{mark.ID})
	if err != nil {
		return nil, err
	}
	mark.Takes = takes[mark.ID]
	return &mark, nil
}

// ListMarksByExam returns every mark row of an exam with takes.
func (r *ExamRepository) ListMarksByExam(ctx context.Context, examID string) ([]models.ExamMark, error) {
	var marks []models.ExamMark
	if err := r.db.SelectContext(ctx, &marks, `SELECT id, exam_id, student_id, created_at, updated_at FROM exam_marks WHERE exam_id = $1`, examID); err != nil {
		return nil, fmt.Errorf("list exam marks: %w", err)
	}
	if len(marks) == 0 {
		return marks, nil
	}
	ids := make([]string, len(marks))
	for i := range marks {
		ids[i] = marks[i].ID
	}
	takes, err := r.takesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range marks {
		marks[i].Takes = takes[marks[i].ID]
	}
	return marks, nil
}

func (r *ExamRepository) takesFor(ctx context.Context, markIDs []string) (map[string][]models.Take, error) {
	query, args, err := sqlx.In(`SELECT `+takeColumns+` FROM exam_mark_takes WHERE exam_mark_id IN (?) ORDER BY position ASC`, markIDs)
	if err != nil {
		return nil, fmt.Errorf("build takes query: %w", err)
	}
	var takes []models.Take
	if err := r.db.SelectContext(ctx, &takes, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list takes: %w", err)
	}
	result := make(map[string][]models.Take, len(markIDs))
	for _, take := range takes {
		result[take.ExamMarkID] = append(result[take.ExamMarkID], take)
	}
	return result, nil
}

// CreateMark inserts a mark row with its first take atomically.
func (r *ExamRepository) CreateMark(ctx context.Context, mark *models.ExamMark, take *models.Take) error {
	now := time.Now().UTC()
	if mark.ID == "" {
		mark.ID = uuid.NewString()
	}
	mark.CreatedAt, mark.UpdatedAt = now, now
	if take.ID == "" {
		take.ID = uuid.NewString()
	}
	take.ExamMarkID = mark.ID
	take.Position = 1
	take.CreatedAt, take.UpdatedAt = now, now

	err := database.WithTx(ctx, r.db, "create exam mark", func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO exam_marks (id, exam_id, student_id, created_at, updated_at)
        VALUES (:id, :exam_id, :student_id, :created_at, :updated_at)`, mark); err != nil {
			return fmt.Errorf("create exam mark: %w", err)
		}
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO exam_mark_takes (`+takeColumns+`)
        VALUES (:id, :exam_mark_id, :take_type, :mark, :passed, :position, :created_at, :updated_at)`, take); err != nil {
			return fmt.Errorf("create first take: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	mark.Takes = []models.Take{*take}
	return nil
}

// AppendTake adds a take after the existing ones of a mark row and touches
// the row in the same transaction.
func (r *ExamRepository) AppendTake(ctx context.Context, take *models.Take) error {
	now := time.Now().UTC()
	if take.ID == "" {
		take.ID = uuid.NewString()
	}
	take.CreatedAt, take.UpdatedAt = now, now
	const query = `INSERT INTO exam_mark_takes (` + takeColumns + `)
        SELECT $1, $2, $3, $4, $5, COALESCE(MAX(position), 0) + 1, $6, $6 FROM exam_mark_takes WHERE exam_mark_id = $2
        RETURNING position`
	return database.WithTx(ctx, r.db, "append take", func(tx *sqlx.Tx) error {
		if err := tx.QueryRowxContext(ctx, query, take.ID, take.ExamMarkID, take.Type, take.Mark, take.Passed, now).Scan(&take.Position); err != nil {
			return fmt.Errorf("append take: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE exam_marks SET updated_at = $2 WHERE id = $1`, take.ExamMarkID, now); err != nil {
			return fmt.Errorf("touch exam mark: %w", err)
		}
		return nil
	})
}

// UpdateTakeMark stores a corrected mark and pass flag for one take.
func (r *ExamRepository) UpdateTakeMark(ctx context.Context, take *models.Take) error {
	take.UpdatedAt = time.Now().UTC()
	const query = `UPDATE exam_mark_takes SET mark = $3, passed = $4, updated_at = $5 WHERE id = $1 AND exam_mark_id = $2`
	if _, err := r.db.ExecContext(ctx, query, take.ID, take.ExamMarkID, take.Mark, take.Passed, take.UpdatedAt); err != nil {
		return fmt.Errorf("update take mark: %w", err)
	}
	return nil
}
