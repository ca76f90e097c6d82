package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Isurika-2001/university-management-system-sub001/internal/models"
	"github.com/Isurika-2001/university-management-system-sub001/pkg/database"
	appErrors "github.com/Isurika-2001/university-management-system-sub001/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	Exists(ctx context.Context, studentID, courseID, batchID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, id string) error
	UpdateBatch(ctx context.Context, id, batchID string) error
	AppendTransfer(ctx context.Context, transfer *models.BatchTransfer) error
}

type membershipRepository interface {
	Create(ctx context.Context, membership *models.ClassroomStudent) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*models.ClassroomStudent, error)
	FindByClassroomAndEnrollment(ctx context.Context, classroomID, enrollmentID string) (*models.ClassroomStudent, error)
	ListByEnrollment(ctx context.Context, enrollmentID string, statuses ...models.MembershipStatus) ([]models.ClassroomStudent, error)
	UpdateStatus(ctx context.Context, id string, status models.MembershipStatus) error
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type classroomReader interface {
	FindByID(ctx context.Context, id string) (*models.Classroom, error)
}

type studentStatusRecomputer interface {
	RecomputeStatus(ctx context.Context, id string) (models.StudentStatus, error)
}

// EnrollRequest is the payload for enrolling a student into a course intake.
type EnrollRequest struct {
	StudentID      string     `json:"student_id" validate:"required"`
	CourseID       string     `json:"course_id" validate:"required"`
	BatchID        string     `json:"batch_id" validate:"required"`
	ClassroomID    *string    `json:"classroom_id" validate:"omitempty"`
	EnrollmentDate *time.Time `json:"enrollment_date"`
}

// TransferRequest moves an enrollment to another batch and optionally into a classroom of it.
type TransferRequest struct {
	BatchID     string  `json:"batch_id" validate:"required"`
	ClassroomID *string `json:"classroom_id" validate:"omitempty"`
	Reason      string  `json:"reason" validate:"max=500"`
}

// AddToClassroomRequest joins an enrollment to a classroom.
type AddToClassroomRequest struct {
	ClassroomID string `json:"classroom_id" validate:"required"`
}

// UpdateMembershipStatusRequest changes a membership status manually.
type UpdateMembershipStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// EnrollmentService coordinates enrollments, transfers and classroom memberships.
type EnrollmentService struct {
	repo        enrollmentRepository
	memberships membershipRepository
	students    studentReader
	courses     courseModuleReader
	batches     batchReader
	classrooms  classroomReader
	gate        progressionGate
	status      studentStatusRecomputer
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// EnrollmentServiceDeps groups the collaborators of EnrollmentService.
type EnrollmentServiceDeps struct {
	Repo        enrollmentRepository
	Memberships membershipRepository
	Students    studentReader
	Courses     courseModuleReader
	Batches     batchReader
	Classrooms  classroomReader
	Gate        progressionGate
	Status      studentStatusRecomputer
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// NewEnrollmentService constructs the enrollment service.
func NewEnrollmentService(deps EnrollmentServiceDeps) *EnrollmentService {
	if deps.Validator == nil {
		deps.Validator = NewValidator()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:        deps.Repo,
		memberships: deps.Memberships,
		students:    deps.Students,
		courses:     deps.Courses,
		batches:     deps.Batches,
		classrooms:  deps.Classrooms,
		gate:        deps.Gate,
		status:      deps.Status,
		metrics:     deps.Metrics,
		validator:   deps.Validator,
		logger:      deps.Logger,
	}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list enrollments")
	}
	return enrollments, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns an enrollment with its transfer history.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "enrollment not found", "failed to load enrollment")
	}
	return detail, nil
}

// Enroll creates the enrollment, joins the optional initial classroom and
// refreshes the student's completion status.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid enrollment payload")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		return nil, notFoundOrInternal(err, "student not found", "failed to load student")
	}
	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		return nil, notFoundOrInternal(err, "course not found", "failed to load course")
	}
	batch, err := s.batches.FindByID(ctx, req.BatchID)
	if err != nil {
		return nil, notFoundOrInternal(err, "batch not found", "failed to load batch")
	}
	if batch.CourseID != nil && *batch.CourseID != req.CourseID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "batch belongs to a different course")
	}

	exists, err := s.repo.Exists(ctx, req.StudentID, req.CourseID, req.BatchID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this course batch")
	}

	var classroom *models.Classroom
	if req.ClassroomID != nil && *req.ClassroomID != "" {
		classroom, err = s.classroom(ctx, *req.ClassroomID)
		if err != nil {
			return nil, err
		}
		if classroom.CourseID != req.CourseID || classroom.BatchID != req.BatchID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "classroom does not belong to the enrolled course batch")
		}
		// a new enrollment has no progress yet
		if err := s.checkGate(ctx, "", req.CourseID, classroom); err != nil {
			return nil, err
		}
	}

	enrollment := &models.Enrollment{StudentID: req.StudentID, CourseID: req.CourseID, BatchID: req.BatchID}
	if req.EnrollmentDate != nil {
		enrollment.EnrollmentDate = *req.EnrollmentDate
	}
	var membership *models.ClassroomStudent

	flow := newSaga("enroll", s.metrics, s.logger).
		Step("create-enrollment",
			func(ctx context.Context) error { return s.repo.Create(ctx, enrollment) },
			func(ctx context.Context) error { return s.repo.Delete(ctx, enrollment.ID) },
		)
	if classroom != nil {
		flow.Step("join-classroom",
			func(ctx context.Context) error {
				membership = &models.ClassroomStudent{
					ClassroomID:  classroom.ID,
					EnrollmentID: enrollment.ID,
					StudentID:    enrollment.StudentID,
					Status:       models.MembershipActive,
				}
				return s.memberships.Create(ctx, membership)
			},
			func(ctx context.Context) error { return s.memberships.Delete(ctx, membership.ID) },
		)
	}
	if err := flow.Run(ctx); err != nil {
		if constraint, ok := database.IsUniqueViolation(err); ok {
			return nil, appErrors.Clone(appErrors.ErrConflict, conflictMessage(constraint, "enrollment already exists"))
		}
		return nil, appErrors.Internal(err, "failed to enroll student")
	}

	s.recomputeStatus(ctx, enrollment.StudentID)
	return s.Get(ctx, enrollment.ID)
}

// Transfer moves an enrollment to another batch. Current memberships are
// marked transferred and, when a classroom is given, a new active membership
// is opened there. The move is appended to the transfer log.
func (s *EnrollmentService) Transfer(ctx context.Context, enrollmentID string, req TransferRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid transfer payload")
	}
	enrollment, err := s.enrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	batch, err := s.batches.FindByID(ctx, req.BatchID)
	if err != nil {
		return nil, notFoundOrInternal(err, "batch not found", "failed to load batch")
	}
	if batch.CourseID != nil && *batch.CourseID != enrollment.CourseID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target batch belongs to a different course")
	}
	hasClassroom := req.ClassroomID != nil && *req.ClassroomID != ""
	if batch.ID == enrollment.BatchID && !hasClassroom {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollment is already in this batch")
	}

	var target *models.Classroom
	if hasClassroom {
		target, err = s.classroom(ctx, *req.ClassroomID)
		if err != nil {
			return nil, err
		}
		if target.CourseID != enrollment.CourseID || target.BatchID != batch.ID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "target classroom does not belong to the target batch of this course")
		}
		if err := s.ensureNotMember(ctx, target.ID, enrollment.ID); err != nil {
			return nil, err
		}
		if err := s.checkGate(ctx, enrollment.ID, enrollment.CourseID, target); err != nil {
			return nil, err
		}
	}

	current, err := s.memberships.ListByEnrollment(ctx, enrollment.ID, models.MembershipActive, models.MembershipHold)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load current classrooms")
	}

	previousBatch := enrollment.BatchID
	var joined *models.ClassroomStudent
	marked := make([]models.ClassroomStudent, 0, len(current))

	flow := newSaga("transfer", s.metrics, s.logger).
		Step("mark-transferred",
			func(ctx context.Context) error {
				for _, membership := range current {
					if err := s.memberships.UpdateStatus(ctx, membership.ID, models.MembershipTransferred); err != nil {
						return fmt.Errorf("mark membership %s transferred: %w", membership.ID, err)
					}
					marked = append(marked, membership)
				}
				return nil
			},
			func(ctx context.Context) error {
				var errs []error
				for _, membership := range marked {
					if err := s.memberships.UpdateStatus(ctx, membership.ID, membership.Status); err != nil {
						errs = append(errs, err)
					}
				}
				return errors.Join(errs...)
			},
		).
		Step("update-batch",
			func(ctx context.Context) error { return s.repo.UpdateBatch(ctx, enrollment.ID, batch.ID) },
			func(ctx context.Context) error { return s.repo.UpdateBatch(ctx, enrollment.ID, previousBatch) },
		)
	if target != nil {
		flow.Step("join-classroom",
			func(ctx context.Context) error {
				joined = &models.ClassroomStudent{
					ClassroomID:  target.ID,
					EnrollmentID: enrollment.ID,
					StudentID:    enrollment.StudentID,
					Status:       models.MembershipActive,
				}
				return s.memberships.Create(ctx, joined)
			},
			func(ctx context.Context) error { return s.memberships.Delete(ctx, joined.ID) },
		)
	}
	flow.Step("log-transfer",
		func(ctx context.Context) error {
			transfer := &models.BatchTransfer{
				EnrollmentID: enrollment.ID,
				FromBatchID:  previousBatch,
				ToBatchID:    batch.ID,
				Reason:       strings.TrimSpace(req.Reason),
			}
			if target != nil {
				transfer.ToClassroomID = &target.ID
			}
			return s.repo.AppendTransfer(ctx, transfer)
		},
		nil,
	)

	if err := flow.Run(ctx); err != nil {
		if constraint, ok := database.IsUniqueViolation(err); ok {
			return nil, appErrors.Clone(appErrors.ErrConflict, conflictMessage(constraint, "transfer conflicts with an existing record"))
		}
		return nil, appErrors.Internal(err, "failed to transfer enrollment")
	}
	return s.Get(ctx, enrollment.ID)
}

// AddToClassroom opens an active membership for the enrollment in a classroom
// of its course, provided the progression gate allows the module.
func (s *EnrollmentService) AddToClassroom(ctx context.Context, enrollmentID string, req AddToClassroomRequest) (*models.ClassroomStudent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid classroom membership payload")
	}
	enrollment, err := s.enrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	classroom, err := s.classroom(ctx, req.ClassroomID)
	if err != nil {
		return nil, err
	}
	if classroom.CourseID != enrollment.CourseID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "classroom belongs to a different course")
	}
	if err := s.ensureNotMember(ctx, classroom.ID, enrollment.ID); err != nil {
		return nil, err
	}
	if err := s.checkGate(ctx, enrollment.ID, enrollment.CourseID, classroom); err != nil {
		return nil, err
	}

	membership := &models.ClassroomStudent{
		ClassroomID:  classroom.ID,
		EnrollmentID: enrollment.ID,
		StudentID:    enrollment.StudentID,
		Status:       models.MembershipActive,
	}
	if err := s.memberships.Create(ctx, membership); err != nil {
		if constraint, ok := database.IsUniqueViolation(err); ok {
			return nil, appErrors.Clone(appErrors.ErrConflict, conflictMessage(constraint, "enrollment already belongs to this classroom"))
		}
		return nil, appErrors.Internal(err, "failed to add enrollment to classroom")
	}
	return membership, nil
}

// Memberships lists the classroom memberships of an enrollment.
func (s *EnrollmentService) Memberships(ctx context.Context, enrollmentID string) ([]models.ClassroomStudent, error) {
	if _, err := s.enrollment(ctx, enrollmentID); err != nil {
		return nil, err
	}
	memberships, err := s.memberships.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list memberships")
	}
	return memberships, nil
}

// UpdateMembershipStatus applies a manual status. Pass and fail are only ever
// derived from grading.
func (s *EnrollmentService) UpdateMembershipStatus(ctx context.Context, id string, req UpdateMembershipStatusRequest) (*models.ClassroomStudent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid membership status payload")
	}
	status, ok := models.ParseMembershipStatus(req.Status)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown membership status %q", req.Status))
	}
	switch status {
	case models.MembershipActive, models.MembershipHold, models.MembershipTransferred:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("status %s is set by grading and cannot be assigned manually", status))
	}

	membership, err := s.memberships.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "membership not found", "failed to load membership")
	}
	if membership.Status == status {
		return membership, nil
	}
	if err := s.memberships.UpdateStatus(ctx, id, status); err != nil {
		return nil, appErrors.Internal(err, "failed to update membership status")
	}
	membership.Status = status
	return membership, nil
}

func (s *EnrollmentService) checkGate(ctx context.Context, enrollmentID, courseID string, classroom *models.Classroom) error {
	module, err := s.courses.FindModule(ctx, classroom.CourseID, classroom.ModuleID)
	if err != nil {
		return notFoundOrInternal(err, "classroom module not found", "failed to load classroom module")
	}
	open, gate := s.gate.FilterBySequentialCompletion(ctx, []models.ModuleEntry{*module}, enrollmentID, courseID)
	if len(open) == 0 && gate.Indeterminate {
		return appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("progression for module %q could not be determined, try again later", module.Name))
	}
	if len(open) == 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("module %q is not open yet; the previous sequential module must be passed first", module.Name))
	}
	return nil
}

func (s *EnrollmentService) ensureNotMember(ctx context.Context, classroomID, enrollmentID string) error {
	_, err := s.memberships.FindByClassroomAndEnrollment(ctx, classroomID, enrollmentID)
	switch {
	case err == nil:
		return appErrors.Clone(appErrors.ErrConflict, "enrollment already belongs to this classroom")
	case errors.Is(err, sql.ErrNoRows):
		return nil
	default:
		return appErrors.Internal(err, "failed to check classroom membership")
	}
}

func (s *EnrollmentService) recomputeStatus(ctx context.Context, studentID string) {
	if s.status == nil {
		return
	}
	if _, err := s.status.RecomputeStatus(ctx, studentID); err != nil {
		s.logger.Warn("student status not recomputed after enrollment",
			zap.String("student_id", studentID),
			zap.Error(err),
		)
	}
}

func (s *EnrollmentService) enrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "enrollment not found", "failed to load enrollment")
	}
	return enrollment, nil
}

func (s *EnrollmentService) classroom(ctx context.Context, id string) (*models.Classroom, error) {
	classroom, err := s.classrooms.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "classroom not found", "failed to load classroom")
	}
	return classroom, nil
}
