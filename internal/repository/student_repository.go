package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Isurika-2001/university-management-system-sub001/internal/models"
	"github.com/Isurika-2001/university-management-system-sub001/pkg/database"
)

const studentColumns = `id, registration_no, first_name, last_name, nic, dob, address, mobile, home_contact, email,
        qualification, emergency_name, emergency_relationship, emergency_contact, status, created_at, updated_at`

// StudentRepository handles persistence for students and their documents.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates a new repository instance.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students filtered by search and status.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var conditions []string
	var args []interface{}
	if filter.Search != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(registration_no ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d OR nic ILIKE $%d)", idx, idx, idx, idx))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	p := models.NewPagination(filter.Page, filter.PageSize, 0)

	query := fmt.Sprintf("SELECT %s FROM students%s ORDER BY created_at DESC LIMIT %d OFFSET %d", studentColumns, clause, p.PageSize, (p.Page-1)*p.PageSize)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID retrieves a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, "SELECT "+studentColumns+" FROM students WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &student, nil
}

// Create inserts a new student.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt, student.UpdatedAt = now, now
	if student.Status == "" {
		student.Status = models.StudentPending
	}
	const query = `INSERT INTO students (` + studentColumns + `)
        VALUES (:id, :registration_no, :first_name, :last_name, :nic, :dob, :address, :mobile, :home_contact, :email,
        :qualification, :emergency_name, :emergency_relationship, :emergency_contact, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies a student's profile. Status is written separately.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET first_name = :first_name, last_name = :last_name, nic = :nic, dob = :dob,
        address = :address, mobile = :mobile, home_contact = :home_contact, email = :email, qualification = :qualification,
        emergency_name = :emergency_name, emergency_relationship = :emergency_relationship, emergency_contact = :emergency_contact,
        updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// UpdateStatus persists the derived completion status.
func (r *StudentRepository) UpdateStatus(ctx context.Context, id string, status models.StudentStatus) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE students SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update student status: %w", err)
	}
	return nil
}

// ListDocuments returns the documents a student has recorded.
func (r *StudentRepository) ListDocuments(ctx context.Context, studentID string) ([]models.StudentDocument, error) {
	var docs []models.StudentDocument
	const query = `SELECT student_id, document_id, provided FROM student_documents WHERE student_id = $1`
	if err := r.db.SelectContext(ctx, &docs, query, studentID); err != nil {
		return nil, fmt.Errorf("list student documents: %w", err)
	}
	return docs, nil
}

// UpsertDocuments records provided flags for a student in one transaction.
func (r *StudentRepository) UpsertDocuments(ctx context.Context, studentID string, docs []models.StudentDocument) error {
	const query = `INSERT INTO student_documents (student_id, document_id, provided) VALUES ($1, $2, $3)
        ON CONFLICT (student_id, document_id) DO UPDATE SET provided = EXCLUDED.provided`
	return database.WithTx(ctx, r.db, "upsert student documents", func(tx *sqlx.Tx) error {
		for _, doc := range docs {
			if _, err := tx.ExecContext(ctx, query, studentID, doc.DocumentID, doc.Provided); err != nil {
				return fmt.Errorf("upsert student document %s: %w", doc.DocumentID, err)
			}
		}
		return nil
	})
}
