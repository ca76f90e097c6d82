package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Isurika-2001/university-management-system-sub001/internal/models"
	"github.com/Isurika-2001/university-management-system-sub001/pkg/database"
	appErrors "github.com/Isurika-2001/university-management-system-sub001/pkg/errors"
)

type examRepository interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	FindByClassroom(ctx context.Context, classroomID string) (*models.Exam, error)
	FindMark(ctx context.Context, examID, studentID string) (*models.ExamMark, error)
	FindMarkByID(ctx context.Context, id string) (*models.ExamMark, error)
	ListMarksByExam(ctx context.Context, examID string) ([]models.ExamMark, error)
	CreateMark(ctx context.Context, mark *models.ExamMark, take *models.Take) error
	AppendTake(ctx context.Context, take *models.Take) error
	UpdateTakeMark(ctx context.Context, take *models.Take) error
}

type gradedMembershipStore interface {
	FindCurrentByClassroomAndStudent(ctx context.Context, classroomID, studentID string) (*models.ClassroomStudent, error)
	ListByClassroom(ctx context.Context, classroomID string) ([]models.ClassroomStudentDetail, error)
	UpdateStatus(ctx context.Context, id string, status models.MembershipStatus) error
}

// AddMarkRequest records a take for a student. TakeType defaults to fresh and
// Mark may be omitted to register an ungraded attempt.
type AddMarkRequest struct {
	StudentID string   `json:"student_id" validate:"required"`
	TakeType  string   `json:"take_type" validate:"omitempty,oneof=fresh resit resit-retake"`
	Mark      *float64 `json:"mark" validate:"omitempty,gte=0,lte=100"`
}

// UpdateMarkRequest corrects the mark of one take.
type UpdateMarkRequest struct {
	Mark *float64 `json:"mark" validate:"required,gte=0,lte=100"`
}

// ExamService is the exam and marks ledger.
type ExamService struct {
	repo        examRepository
	memberships gradedMembershipStore
	classrooms  classroomReader
	students    studentReader
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewExamService constructs the marks ledger.
func NewExamService(repo examRepository, memberships gradedMembershipStore, classrooms classroomReader, students studentReader, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ExamService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamService{repo: repo, memberships: memberships, classrooms: classrooms, students: students, metrics: metrics, validator: validate, logger: logger}
}

// AddMark appends a take to the student's marks for the exam, creating the
// mark row on the first take. Graded takes propagate pass or fail onto the
// student's membership of the exam's classroom.
func (s *ExamService) AddMark(ctx context.Context, examID string, req AddMarkRequest) (*models.ExamMark, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid mark payload")
	}
	takeType := models.TakeFresh
	if req.TakeType != "" {
		takeType = models.TakeType(req.TakeType)
	}

	exam, err := s.repo.FindByID(ctx, examID)
	if err != nil {
		return nil, notFoundOrInternal(err, "exam not found", "failed to load exam")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		return nil, notFoundOrInternal(err, "student not found", "failed to load student")
	}

	take := &models.Take{Type: takeType}
	if req.Mark != nil {
		take.Grade(*req.Mark)
	}

	mark, err := s.repo.FindMark(ctx, exam.ID, req.StudentID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		mark = &models.ExamMark{ExamID: exam.ID, StudentID: req.StudentID}
		if err := s.repo.CreateMark(ctx, mark, take); err != nil {
			return nil, s.writeError(err, "failed to record mark")
		}
	case err != nil:
		return nil, appErrors.Internal(err, "failed to load marks")
	default:
		if takeType == models.TakeFresh && mark.HasFresh() {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a fresh take already exists for this student, record a resit instead")
		}
		take.ExamMarkID = mark.ID
		if err := s.repo.AppendTake(ctx, take); err != nil {
			return nil, s.writeError(err, "failed to record take")
		}
		mark.Takes = append(mark.Takes, *take)
	}

	s.metrics.RecordTake(string(take.Type), take.Passed)
	if take.Graded() {
		if err := s.propagate(ctx, exam.ClassroomID, mark.StudentID, *take.Passed); err != nil {
			return nil, err
		}
	}
	return mark, nil
}

// UpdateMark regrades one take and propagates its result.
func (s *ExamService) UpdateMark(ctx context.Context, examMarkID, takeID string, req UpdateMarkRequest) (*models.ExamMark, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "a numeric mark between 0 and 100 is required")
	}
	mark, err := s.repo.FindMarkByID(ctx, examMarkID)
	if err != nil {
		return nil, notFoundOrInternal(err, "exam mark not found", "failed to load exam mark")
	}
	index := -1
	for i := range mark.Takes {
		if mark.Takes[i].ID == takeID {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "take not found")
	}
	exam, err := s.repo.FindByID(ctx, mark.ExamID)
	if err != nil {
		return nil, notFoundOrInternal(err, "exam not found", "failed to load exam")
	}

	take := mark.Takes[index]
	take.Grade(*req.Mark)
	if err := s.repo.UpdateTakeMark(ctx, &take); err != nil {
		return nil, appErrors.Internal(err, "failed to update take")
	}
	mark.Takes[index] = take

	s.metrics.RecordTake(string(take.Type), take.Passed)
	if err := s.propagate(ctx, exam.ClassroomID, mark.StudentID, *take.Passed); err != nil {
		return nil, err
	}
	return mark, nil
}

// Sheet returns the grading view of a classroom: every member with their
// takes, led by an ungraded fresh placeholder when no fresh take is recorded.
func (s *ExamService) Sheet(ctx context.Context, classroomID string) (*models.ExamSheet, error) {
	classroom, err := s.classrooms.FindByID(ctx, classroomID)
	if err != nil {
		return nil, notFoundOrInternal(err, "classroom not found", "failed to load classroom")
	}
	exam, err := s.repo.FindByClassroom(ctx, classroom.ID)
	if err != nil {
		return nil, notFoundOrInternal(err, "exam not found for classroom", "failed to load exam")
	}
	members, err := s.memberships.ListByClassroom(ctx, classroom.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list classroom students")
	}
	marks, err := s.repo.ListMarksByExam(ctx, exam.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list marks")
	}
	byStudent := make(map[string]models.ExamMark, len(marks))
	for _, mark := range marks {
		byStudent[mark.StudentID] = mark
	}

	rows := make([]models.ExamSheetRow, 0, len(members))
	for _, member := range members {
		row := models.ExamSheetRow{
			StudentID:        member.StudentID,
			RegistrationNo:   member.RegistrationNo,
			StudentName:      member.StudentName,
			MembershipID:     member.ID,
			MembershipStatus: member.Status,
		}
		placeholder := models.Take{Type: models.TakeFresh}
		if mark, ok := byStudent[member.StudentID]; ok && len(mark.Takes) > 0 {
			markID := mark.ID
			row.ExamMarkID = &markID
			row.Takes = mark.Takes
			if !mark.HasFresh() {
				row.Takes = append([]models.Take{placeholder}, mark.Takes...)
			}
		} else {
			placeholder.Position = 1
			row.Takes = []models.Take{placeholder}
		}
		rows = append(rows, row)
	}
	return &models.ExamSheet{Exam: *exam, Classroom: *classroom, Rows: rows}, nil
}

// propagate writes the result of a graded take onto the student's current
// membership of the classroom.
func (s *ExamService) propagate(ctx context.Context, classroomID, studentID string, passed bool) error {
	membership, err := s.memberships.FindCurrentByClassroomAndStudent(ctx, classroomID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("graded student has no membership in classroom",
				zap.String("classroom_id", classroomID),
				zap.String("student_id", studentID),
			)
			return nil
		}
		return appErrors.Internal(err, "failed to load classroom membership")
	}
	status := models.StatusFromResult(passed)
	if membership.Status == status {
		return nil
	}
	if err := s.memberships.UpdateStatus(ctx, membership.ID, status); err != nil {
		return appErrors.Internal(err, fmt.Sprintf("failed to mark membership %s", status))
	}
	return nil
}

func (s *ExamService) writeError(err error, message string) error {
	if constraint, ok := database.IsUniqueViolation(err); ok {
		return appErrors.Clone(appErrors.ErrConflict, conflictMessage(constraint, "marks already recorded"))
	}
	return appErrors.Internal(err, message)
}
