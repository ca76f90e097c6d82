package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Isurika-2001/university-management-system-sub001/internal/models"
	"github.com/Isurika-2001/university-management-system-sub001/pkg/database"
	appErrors "github.com/Isurika-2001/university-management-system-sub001/pkg/errors"
)

type classroomRepository interface {
	List(ctx context.Context, filter models.ClassroomFilter) ([]models.ClassroomDetail, int, error)
	ListAll(ctx context.Context, filter models.ClassroomFilter) ([]models.ClassroomDetail, error)
	FindByID(ctx context.Context, id string) (*models.Classroom, error)
	FindDetailByID(ctx context.Context, id string) (*models.ClassroomDetail, error)
	FindByTriple(ctx context.Context, courseID, batchID, moduleID string) (*models.Classroom, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, classroom *models.Classroom) error
	Delete(ctx context.Context, id string) error
	ListWithoutExam(ctx context.Context, limit int) ([]models.Classroom, error)
}

type courseModuleReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindModule(ctx context.Context, courseID, moduleID string) (*models.ModuleEntry, error)
}

type batchReader interface {
	FindByID(ctx context.Context, id string) (*models.Batch, error)
}

type examCreator interface {
	Create(ctx context.Context, exam *models.Exam) error
}

type classroomMemberReader interface {
	CountByClassroom(ctx context.Context, classroomID string) (int, error)
	ListByClassroom(ctx context.Context, classroomID string) ([]models.ClassroomStudentDetail, error)
	ListByEnrollment(ctx context.Context, enrollmentID string, statuses ...models.MembershipStatus) ([]models.ClassroomStudent, error)
}

type enrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

type progressionGate interface {
	FilterBySequentialCompletion(ctx context.Context, modules []models.ModuleEntry, enrollmentID, courseID string) ([]models.ModuleEntry, GateResult)
}

// CreateClassroomRequest is the payload for creating a classroom.
type CreateClassroomRequest struct {
	CourseID    string `json:"course_id" validate:"required"`
	BatchID     string `json:"batch_id" validate:"required"`
	ModuleID    string `json:"module_id" validate:"required"`
	Month       string `json:"month" validate:"required,max=20"`
	Capacity    *int   `json:"capacity" validate:"omitempty,gt=0"`
	Description string `json:"description" validate:"max=500"`
}

// ClassroomService manages classrooms and their companion exams.
type ClassroomService struct {
	repo        classroomRepository
	courses     courseModuleReader
	batches     batchReader
	exams       examCreator
	members     classroomMemberReader
	enrollments enrollmentReader
	gate        progressionGate
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewClassroomService constructs the classroom registry.
func NewClassroomService(repo classroomRepository, courses courseModuleReader, batches batchReader, exams examCreator, members classroomMemberReader, enrollments enrollmentReader, gate progressionGate, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ClassroomService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassroomService{
		repo:        repo,
		courses:     courses,
		batches:     batches,
		exams:       exams,
		members:     members,
		enrollments: enrollments,
		gate:        gate,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// ClassroomName derives the display name of a classroom.
func ClassroomName(courseCode, batchName, month string) string {
	return fmt.Sprintf("%s-%s-%s", courseCode, strings.ReplaceAll(batchName, " ", "-"), month)
}

// Create registers a classroom for a (course, batch, module) slot and spawns its exam.
func (s *ClassroomService) Create(ctx context.Context, req CreateClassroomRequest) (*models.ClassroomDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid classroom payload")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		return nil, notFoundOrInternal(err, "course not found", "failed to load course")
	}
	batch, err := s.batches.FindByID(ctx, req.BatchID)
	if err != nil {
		return nil, notFoundOrInternal(err, "batch not found", "failed to load batch")
	}
	module, err := s.courses.FindModule(ctx, req.CourseID, req.ModuleID)
	if err != nil {
		return nil, notFoundOrInternal(err, "module not found in course", "failed to load module")
	}

	existing, err := s.repo.FindByTriple(ctx, course.ID, batch.ID, module.ID)
	switch {
	case err == nil:
		return nil, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("a classroom for module %q already exists in batch %s (%s)", module.Name, batch.Name, existing.Name))
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Internal(err, "failed to check classroom slot")
	}

	name := ClassroomName(course.Code, batch.Name, strings.TrimSpace(req.Month))
	taken, err := s.repo.ExistsByName(ctx, name)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check classroom name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("classroom %s already exists", name))
	}

	classroom := &models.Classroom{
		CourseID:    course.ID,
		BatchID:     batch.ID,
		ModuleID:    module.ID,
		Name:        name,
		Month:       strings.TrimSpace(req.Month),
		Capacity:    req.Capacity,
		Description: req.Description,
	}
	if err := s.repo.Create(ctx, classroom); err != nil {
		if constraint, ok := database.IsUniqueViolation(err); ok {
			return nil, appErrors.Clone(appErrors.ErrConflict, conflictMessage(constraint, "classroom already exists"))
		}
		return nil, appErrors.Internal(err, "failed to create classroom")
	}

	detail := &models.ClassroomDetail{
		Classroom:      *classroom,
		CourseCode:     course.Code,
		CourseName:     course.Name,
		BatchName:      batch.Name,
		ModuleName:     module.Name,
		IsSequential:   module.IsSequential,
		SequenceNumber: module.SequenceNumber,
	}
	exam := &models.Exam{ClassroomID: classroom.ID}
	if err := s.exams.Create(ctx, exam); err != nil {
		// the reconciler backfills the exam later
		s.metrics.IncExamAutocreateFailure()
		s.logger.Error("classroom created without exam",
			zap.String("classroom_id", classroom.ID),
			zap.Error(err),
		)
		return detail, nil
	}
	detail.ExamID = &exam.ID
	return detail, nil
}

// Get returns a classroom with populated references.
func (s *ClassroomService) Get(ctx context.Context, id string) (*models.ClassroomDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "classroom not found", "failed to load classroom")
	}
	return detail, nil
}

// List returns classrooms. When both a course and an enrollment are given the
// result only holds classrooms the enrollment may join next, and the gate
// result tells whether that progress could be determined.
func (s *ClassroomService) List(ctx context.Context, filter models.ClassroomFilter) ([]models.ClassroomDetail, *models.Pagination, GateResult, error) {
	if filter.CourseID == "" || filter.EnrollmentID == "" {
		classrooms, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, nil, GateResult{}, appErrors.Internal(err, "failed to list classrooms")
		}
		return classrooms, models.NewPagination(filter.Page, filter.PageSize, total), GateResult{}, nil
	}

	enrollment, err := s.enrollment(ctx, filter.EnrollmentID)
	if err != nil {
		return nil, nil, GateResult{}, err
	}
	if enrollment.CourseID != filter.CourseID {
		return nil, nil, GateResult{}, appErrors.Clone(appErrors.ErrValidation, "enrollment does not belong to the requested course")
	}
	eligible, gate, err := s.eligible(ctx, filter)
	if err != nil {
		return nil, nil, GateResult{}, err
	}
	pagination := models.NewPagination(filter.Page, filter.PageSize, len(eligible))
	start := (pagination.Page - 1) * pagination.PageSize
	if start > len(eligible) {
		start = len(eligible)
	}
	end := start + pagination.PageSize
	if end > len(eligible) {
		end = len(eligible)
	}
	return eligible[start:end], pagination, gate, nil
}

// EligibleForEnrollment lists classrooms of the enrollment's course it may
// join or transfer into, optionally limited to one batch.
func (s *ClassroomService) EligibleForEnrollment(ctx context.Context, enrollmentID, batchID string) ([]models.ClassroomDetail, GateResult, error) {
	enrollment, err := s.enrollment(ctx, enrollmentID)
	if err != nil {
		return nil, GateResult{}, err
	}
	return s.eligible(ctx, models.ClassroomFilter{CourseID: enrollment.CourseID, BatchID: batchID, EnrollmentID: enrollment.ID})
}

func (s *ClassroomService) eligible(ctx context.Context, filter models.ClassroomFilter) ([]models.ClassroomDetail, GateResult, error) {
	classrooms, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		return nil, GateResult{}, appErrors.Internal(err, "failed to list classrooms")
	}

	seen := make(map[string]struct{})
	modules := make([]models.ModuleEntry, 0, len(classrooms))
	for _, classroom := range classrooms {
		if _, ok := seen[classroom.ModuleID]; ok {
			continue
		}
		seen[classroom.ModuleID] = struct{}{}
		modules = append(modules, models.ModuleEntry{
			ID:             classroom.ModuleID,
			CourseID:       classroom.CourseID,
			Name:           classroom.ModuleName,
			IsSequential:   classroom.IsSequential,
			SequenceNumber: classroom.SequenceNumber,
		})
	}
	open, gate := s.gate.FilterBySequentialCompletion(ctx, modules, filter.EnrollmentID, filter.CourseID)
	openModules := make(map[string]struct{}, len(open))
	for _, module := range open {
		openModules[module.ID] = struct{}{}
	}

	memberships, err := s.members.ListByEnrollment(ctx, filter.EnrollmentID)
	if err != nil {
		return nil, GateResult{}, appErrors.Internal(err, "failed to load enrollment classrooms")
	}
	joined := make(map[string]struct{}, len(memberships))
	for _, membership := range memberships {
		joined[membership.ClassroomID] = struct{}{}
	}

	result := make([]models.ClassroomDetail, 0, len(classrooms))
	for _, classroom := range classrooms {
		if _, ok := openModules[classroom.ModuleID]; !ok {
			continue
		}
		if _, ok := joined[classroom.ID]; ok {
			continue
		}
		result = append(result, classroom)
	}
	return result, gate, nil
}

// Delete removes a classroom that no longer has members, along with its exam and marks.
func (s *ClassroomService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return notFoundOrInternal(err, "classroom not found", "failed to load classroom")
	}
	count, err := s.members.CountByClassroom(ctx, id)
	if err != nil {
		return appErrors.Internal(err, "failed to count classroom students")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("classroom still has %d student(s); remove them from the classroom before deleting it", count))
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to delete classroom")
	}
	return nil
}

// Students lists the members of a classroom.
func (s *ClassroomService) Students(ctx context.Context, id string) ([]models.ClassroomStudentDetail, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, notFoundOrInternal(err, "classroom not found", "failed to load classroom")
	}
	members, err := s.members.ListByClassroom(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list classroom students")
	}
	return members, nil
}

// ReconcileExams creates the exam of classrooms that lack one and returns how many were created.
func (s *ClassroomService) ReconcileExams(ctx context.Context, limit int) (int, error) {
	classrooms, err := s.repo.ListWithoutExam(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list classrooms without exam: %w", err)
	}
	created := 0
	for _, classroom := range classrooms {
		if err := s.exams.Create(ctx, &models.Exam{ClassroomID: classroom.ID}); err != nil {
			if _, ok := database.IsUniqueViolation(err); ok {
				continue
			}
			s.logger.Warn("exam backfill failed", zap.String("classroom_id", classroom.ID), zap.Error(err))
			continue
		}
		created++
	}
	s.metrics.AddExamsReconciled(created)
	return created, nil
}

func (s *ClassroomService) enrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "enrollment not found", "failed to load enrollment")
	}
	return enrollment, nil
}

func notFoundOrInternal(err error, notFound, internal string) *appErrors.Error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Internal(err, internal)
}
