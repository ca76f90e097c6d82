package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Isurika-2001/university-management-system-sub001/internal/models"
	"github.com/Isurika-2001/university-management-system-sub001/pkg/database"
	appErrors "github.com/Isurika-2001/university-management-system-sub001/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	UpdateStatus(ctx context.Context, id string, status models.StudentStatus) error
	ListDocuments(ctx context.Context, studentID string) ([]models.StudentDocument, error)
	UpsertDocuments(ctx context.Context, studentID string, docs []models.StudentDocument) error
}

type studentEnrollmentLister interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
}

type requiredDocumentLister interface {
	List(ctx context.Context, requiredOnly bool) ([]models.RequiredDocument, error)
}

// StudentProfile carries the editable student fields.
type StudentProfile struct {
	FirstName             string     `json:"first_name" validate:"required,max=100"`
	LastName              string     `json:"last_name" validate:"omitempty,max=100"`
	NIC                   string     `json:"nic" validate:"omitempty,max=20"`
	DOB                   *time.Time `json:"dob"`
	Address               string     `json:"address"`
	Mobile                string     `json:"mobile" validate:"omitempty,max=20"`
	HomeContact           *string    `json:"home_contact"`
	Email                 string     `json:"email" validate:"omitempty,email"`
	Qualification         *string    `json:"qualification"`
	EmergencyName         *string    `json:"emergency_name"`
	EmergencyRelationship *string    `json:"emergency_relationship"`
	EmergencyContact      *string    `json:"emergency_contact"`
}

// CreateStudentRequest holds payload for creating students.
type CreateStudentRequest struct {
	StudentProfile
}

// UpdateStudentRequest holds payload for updating students. Hold places or
// releases a manual hold; nil leaves it untouched.
type UpdateStudentRequest struct {
	StudentProfile
	Hold *bool `json:"hold"`
}

// DocumentUpdate is one provided flag of a catalog document.
type DocumentUpdate struct {
	DocumentID string `json:"document_id" validate:"required"`
	Provided   bool   `json:"provided"`
}

// UpdateDocumentsRequest replaces provided flags for the listed documents.
type UpdateDocumentsRequest struct {
	Documents []DocumentUpdate `json:"documents" validate:"required,min=1,dive"`
}

// StudentDetail is a student together with the live completion breakdown.
type StudentDetail struct {
	models.Student
	Completion models.CompletionSteps   `json:"completion"`
	Documents  []models.StudentDocument `json:"documents"`
}

// StudentService handles student use-cases.
type StudentService struct {
	repo        studentRepository
	enrollments studentEnrollmentLister
	documents   requiredDocumentLister
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, enrollments studentEnrollmentLister, documents requiredDocumentLister, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, enrollments: enrollments, documents: documents, validator: validate, logger: logger, now: time.Now}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list students")
	}
	return students, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a student with its completion breakdown recomputed on demand.
func (s *StudentService) Get(ctx context.Context, id string) (*StudentDetail, error) {
	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	steps, provided, err := s.completion(ctx, student)
	if err != nil {
		return nil, err
	}
	steps.Overall = resolveStudentStatus(student.Status, steps.Overall)
	return &StudentDetail{Student: *student, Completion: steps, Documents: provided}, nil
}

// Completion returns only the completion breakdown.
func (s *StudentService) Completion(ctx context.Context, id string) (*models.CompletionSteps, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &detail.Completion, nil
}

// Create registers a new student and stores its initial status.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid student payload")
	}
	student := &models.Student{RegistrationNo: s.registrationNo()}
	applyProfile(student, req.StudentProfile)

	if err := s.repo.Create(ctx, student); err != nil {
		if _, ok := database.IsUniqueViolation(err); ok {
			return nil, appErrors.Clone(appErrors.ErrConflict, "registration number already used, retry")
		}
		return nil, appErrors.Internal(err, "failed to create student")
	}
	if status, err := s.RecomputeStatus(ctx, student.ID); err != nil {
		s.logger.Warn("student status recompute failed", zap.String("student_id", student.ID), zap.Error(err))
	} else {
		student.Status = status
	}
	return student, nil
}

// Update modifies an existing student record and refreshes its status.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid student payload")
	}
	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	applyProfile(student, req.StudentProfile)
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Internal(err, "failed to update student")
	}

	if req.Hold != nil {
		status := models.StudentPending
		if *req.Hold {
			status = models.StudentHold
		}
		if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
			return nil, appErrors.Internal(err, "failed to update student hold")
		}
		student.Status = status
	}
	if student.Status != models.StudentHold {
		status, err := s.RecomputeStatus(ctx, id)
		if err != nil {
			return nil, err
		}
		student.Status = status
	}
	return student, nil
}

// UpdateDocuments records provided documents and refreshes the status.
func (s *StudentService) UpdateDocuments(ctx context.Context, id string, req UpdateDocumentsRequest) (*StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid documents payload")
	}
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	docs := make([]models.StudentDocument, 0, len(req.Documents))
	for _, doc := range req.Documents {
		docs = append(docs, models.StudentDocument{StudentID: id, DocumentID: doc.DocumentID, Provided: doc.Provided})
	}
	if err := s.repo.UpsertDocuments(ctx, id, docs); err != nil {
		return nil, appErrors.Internal(err, "failed to update student documents")
	}
	if _, err := s.RecomputeStatus(ctx, id); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// RecomputeStatus derives and persists the completion status of a student.
func (s *StudentService) RecomputeStatus(ctx context.Context, id string) (models.StudentStatus, error) {
	student, err := s.load(ctx, id)
	if err != nil {
		return "", err
	}
	steps, _, err := s.completion(ctx, student)
	if err != nil {
		return "", err
	}
	status := resolveStudentStatus(student.Status, steps.Overall)
	if status == student.Status {
		return status, nil
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return "", appErrors.Internal(err, "failed to store student status")
	}
	return status, nil
}

func (s *StudentService) completion(ctx context.Context, student *models.Student) (models.CompletionSteps, []models.StudentDocument, error) {
	enrollments, err := s.enrollments.ListByStudent(ctx, student.ID)
	if err != nil {
		return models.CompletionSteps{}, nil, appErrors.Internal(err, "failed to load student enrollments")
	}
	catalog, err := s.documents.List(ctx, true)
	if err != nil {
		return models.CompletionSteps{}, nil, appErrors.Internal(err, "failed to load required documents")
	}
	provided, err := s.repo.ListDocuments(ctx, student.ID)
	if err != nil {
		return models.CompletionSteps{}, nil, appErrors.Internal(err, "failed to load student documents")
	}
	return ComputeCompletionStatus(*student, len(enrollments), catalog, provided), provided, nil
}

func (s *StudentService) load(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Internal(err, "failed to load student")
	}
	return student, nil
}

func (s *StudentService) registrationNo() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("UMS-%d-%s", s.now().Year(), suffix)
}

func applyProfile(student *models.Student, profile StudentProfile) {
	student.FirstName = strings.TrimSpace(profile.FirstName)
	student.LastName = strings.TrimSpace(profile.LastName)
	student.NIC = strings.TrimSpace(profile.NIC)
	student.DOB = profile.DOB
	student.Address = profile.Address
	student.Mobile = profile.Mobile
	student.HomeContact = profile.HomeContact
	student.Email = strings.TrimSpace(profile.Email)
	student.Qualification = profile.Qualification
	student.EmergencyName = profile.EmergencyName
	student.EmergencyRelationship = profile.EmergencyRelationship
	student.EmergencyContact = profile.EmergencyContact
}
