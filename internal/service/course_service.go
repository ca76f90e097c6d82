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
	"github.com/Isurika-2001/university-management-system-sub001/pkg/cache"
	"github.com/Isurika-2001/university-management-system-sub001/pkg/database"
	appErrors "github.com/Isurika-2001/university-management-system-sub001/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, course *models.Course, modules []models.ModuleEntry) error
	ListModules(ctx context.Context, courseID string) ([]models.ModuleEntry, error)
	FindModule(ctx context.Context, courseID, moduleID string) (*models.ModuleEntry, error)
	ModuleConflict(ctx context.Context, courseID, name string, sequence *int) (bool, bool, error)
	CreateModule(ctx context.Context, module *models.ModuleEntry) error
}

// ModuleRequest describes one module entry of a course.
type ModuleRequest struct {
	Name           string `json:"name" validate:"required,max=150"`
	IsSequential   bool   `json:"is_sequential"`
	SequenceNumber *int   `json:"sequence_number" validate:"omitempty,gt=0"`
}

// CreateCourseRequest is the payload for creating a course.
type CreateCourseRequest struct {
	Code           string          `json:"code" validate:"required,max=20"`
	Name           string          `json:"name" validate:"required,max=150"`
	Credits        int             `json:"credits" validate:"gte=0"`
	DurationMonths int             `json:"duration_months" validate:"gte=0"`
	Modules        []ModuleRequest `json:"modules" validate:"dive"`
}

// CourseService manages courses and their module catalogs.
type CourseService struct {
	repo       courseRepository
	cache      *CacheService
	catalogTTL time.Duration
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewCourseService constructs the course service. A nil cache disables catalog caching.
func NewCourseService(repo courseRepository, cacheSvc *CacheService, catalogTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, cache: cacheSvc, catalogTTL: catalogTTL, validator: validate, logger: logger}
}

func catalogKey(courseID string) string {
	return cache.Key("catalog", courseID)
}

// List returns courses with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list courses")
	}
	return courses, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a course with its module catalog.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseDetail, error) {
	course, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	modules, err := s.Modules(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load course modules")
	}
	return &models.CourseDetail{Course: *course, Modules: modules}, nil
}

// Create registers a course and its initial modules atomically.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.CourseDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid course payload")
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	exists, err := s.repo.ExistsByCode(ctx, code)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to validate course code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("course code %s already exists", code))
	}

	modules := make([]models.ModuleEntry, 0, len(req.Modules))
	names := make(map[string]struct{}, len(req.Modules))
	sequences := make(map[int]string, len(req.Modules))
	for _, item := range req.Modules {
		module, err := moduleFromRequest(item)
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(module.Name)
		if _, dup := names[key]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("module %q is listed twice", module.Name))
		}
		names[key] = struct{}{}
		if seq := module.Sequence(); seq > 0 {
			if other, dup := sequences[seq]; dup {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("modules %q and %q share sequence number %d", other, module.Name, seq))
			}
			sequences[seq] = module.Name
		}
		modules = append(modules, module)
	}

	course := &models.Course{Code: code, Name: strings.TrimSpace(req.Name), Credits: req.Credits, DurationMonths: req.DurationMonths}
	if err := s.repo.Create(ctx, course, modules); err != nil {
		if constraint, ok := database.IsUniqueViolation(err); ok {
			return nil, appErrors.Clone(appErrors.ErrConflict, conflictMessage(constraint, "course already exists"))
		}
		return nil, appErrors.Internal(err, "failed to create course")
	}
	return &models.CourseDetail{Course: *course, Modules: modules}, nil
}

// AddModule appends a module to a course catalog.
func (s *CourseService) AddModule(ctx context.Context, courseID string, req ModuleRequest) (*models.ModuleEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid module payload")
	}
	module, err := moduleFromRequest(req)
	if err != nil {
		return nil, err
	}
	if _, err := s.find(ctx, courseID); err != nil {
		return nil, err
	}

	nameTaken, sequenceTaken, err := s.repo.ModuleConflict(ctx, courseID, module.Name, module.SequenceNumber)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to validate module")
	}
	if nameTaken {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("module %q already exists in this course", module.Name))
	}
	if sequenceTaken {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("sequence number %d is already used in this course", module.Sequence()))
	}

	module.CourseID = courseID
	if err := s.repo.CreateModule(ctx, &module); err != nil {
		if constraint, ok := database.IsUniqueViolation(err); ok {
			return nil, appErrors.Clone(appErrors.ErrConflict, conflictMessage(constraint, "module already exists"))
		}
		return nil, appErrors.Internal(err, "failed to create module")
	}
	if err := s.cache.Delete(ctx, catalogKey(courseID)); err != nil {
		s.logger.Warn("catalog cache not invalidated", zap.String("course_id", courseID), zap.Error(err))
	}
	return &module, nil
}

// Modules returns the module catalog of a course, served from cache when possible.
func (s *CourseService) Modules(ctx context.Context, courseID string) ([]models.ModuleEntry, error) {
	var modules []models.ModuleEntry
	if hit, err := s.cache.Get(ctx, catalogKey(courseID), &modules); err == nil && hit {
		return modules, nil
	}
	modules, err := s.repo.ListModules(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if modules == nil {
		modules = []models.ModuleEntry{}
	}
	_ = s.cache.Set(ctx, catalogKey(courseID), modules, s.catalogTTL)
	return modules, nil
}

// FindModule returns a module of the course or NotFound.
func (s *CourseService) FindModule(ctx context.Context, courseID, moduleID string) (*models.ModuleEntry, error) {
	module, err := s.repo.FindModule(ctx, courseID, moduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found in course")
		}
		return nil, appErrors.Internal(err, "failed to load module")
	}
	return module, nil
}

func (s *CourseService) find(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}
	return course, nil
}

// moduleFromRequest enforces that a sequence number is present exactly when
// the module is sequential.
func moduleFromRequest(req ModuleRequest) (models.ModuleEntry, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return models.ModuleEntry{}, appErrors.Clone(appErrors.ErrValidation, "module name is required")
	}
	if req.IsSequential && req.SequenceNumber == nil {
		return models.ModuleEntry{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("sequential module %q needs a sequence number", name))
	}
	if !req.IsSequential && req.SequenceNumber != nil {
		return models.ModuleEntry{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("module %q is not sequential and cannot have a sequence number", name))
	}
	if req.SequenceNumber != nil && *req.SequenceNumber < 1 {
		return models.ModuleEntry{}, appErrors.Clone(appErrors.ErrValidation, "sequence number must be positive")
	}
	return models.ModuleEntry{Name: name, IsSequential: req.IsSequential, SequenceNumber: req.SequenceNumber}, nil
}

func conflictMessage(constraint, fallback string) string {
	switch constraint {
	case "courses_code_key":
		return "course code already exists"
	case "course_modules_course_name_key":
		return "module name already exists in this course"
	case "course_modules_course_sequence_key":
		return "sequence number is already used in this course"
	case "classrooms_course_batch_module_key":
		return "a classroom already exists for this module in the batch"
	case "exams_classroom_id_key":
		return "the classroom already has an exam"
	case "enrollments_student_course_batch_key":
		return "student is already enrolled in this course batch"
	case "classroom_students_classroom_enrollment_key":
		return "enrollment already belongs to this classroom"
	case "exam_mark_takes_single_fresh_key":
		return "a fresh take already exists for this student"
	case "exam_marks_exam_student_key":
		return "marks already recorded for this student, add a take instead"
	}
	return fallback
}
