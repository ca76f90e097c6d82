package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Isurika-2001/university-management-system-sub001/internal/models"
)

type moduleCatalog interface {
	Modules(ctx context.Context, courseID string) ([]models.ModuleEntry, error)
}

type courseClassroomLister interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Classroom, error)
}

type enrollmentMembershipLister interface {
	ListByEnrollment(ctx context.Context, enrollmentID string, statuses ...models.MembershipStatus) ([]models.ClassroomStudent, error)
}

// GateResult is the outcome of a progression lookup. An indeterminate result
// carries the lookup error and must be read as zero completed modules.
type GateResult struct {
	Completed     int
	Indeterminate bool
	Err           error
}

// Value returns the completed sequence number to gate on.
func (r GateResult) Value() int {
	if r.Indeterminate {
		return 0
	}
	return r.Completed
}

// HighestCompleted returns the largest sequence number among sequential
// modules whose classroom the enrollment has passed, or 0.
func HighestCompleted(catalog []models.ModuleEntry, classrooms []models.Classroom, passed []models.ClassroomStudent) int {
	sequenceByModule := make(map[string]int, len(catalog))
	for _, module := range catalog {
		if seq := module.Sequence(); seq > 0 {
			sequenceByModule[module.ID] = seq
		}
	}
	moduleByClassroom := make(map[string]string, len(classrooms))
	for _, classroom := range classrooms {
		moduleByClassroom[classroom.ID] = classroom.ModuleID
	}

	highest := 0
	for _, membership := range passed {
		if membership.Status != models.MembershipPass {
			continue
		}
		moduleID, ok := moduleByClassroom[membership.ClassroomID]
		if !ok {
			continue
		}
		if seq := sequenceByModule[moduleID]; seq > highest {
			highest = seq
		}
	}
	return highest
}

// MaxSequence returns the largest sequence number of the catalog, 0 when no
// module is sequential.
func MaxSequence(catalog []models.ModuleEntry) int {
	maxSeq := 0
	for _, module := range catalog {
		if seq := module.Sequence(); seq > maxSeq {
			maxSeq = seq
		}
	}
	return maxSeq
}

// FilterModules narrows modules to the ones currently open to a student.
//
// Without sequential modules in the catalog every module is open. Without an
// enrollment only the first sequential module is open. Once the whole chain
// is passed every module is open. Otherwise only the next sequential module
// is open; non-sequential modules stay closed until the chain is complete.
func FilterModules(modules, catalog []models.ModuleEntry, enrolled bool, highest int) []models.ModuleEntry {
	maxSeq := MaxSequence(catalog)
	if maxSeq == 0 {
		return modules
	}

	next := 1
	if enrolled {
		if highest >= maxSeq {
			return modules
		}
		next = highest + 1
	}
	for _, module := range modules {
		if module.Sequence() == next {
			return []models.ModuleEntry{module}
		}
	}
	return []models.ModuleEntry{}
}

// ProgressionService computes which modules an enrollment may join next.
type ProgressionService struct {
	catalog     moduleCatalog
	classrooms  courseClassroomLister
	memberships enrollmentMembershipLister
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewProgressionService constructs the progression gate.
func NewProgressionService(catalog moduleCatalog, classrooms courseClassroomLister, memberships enrollmentMembershipLister, metrics *MetricsService, logger *zap.Logger) *ProgressionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressionService{catalog: catalog, classrooms: classrooms, memberships: memberships, metrics: metrics, logger: logger}
}

// HighestCompletedSequential loads the data behind HighestCompleted. Lookup
// failures never escape: they produce an indeterminate result.
func (s *ProgressionService) HighestCompletedSequential(ctx context.Context, enrollmentID, courseID string) GateResult {
	catalog, err := s.catalog.Modules(ctx, courseID)
	if err != nil {
		return s.degraded(enrollmentID, courseID, fmt.Errorf("load module catalog: %w", err))
	}
	return s.highestCompleted(ctx, enrollmentID, courseID, catalog)
}

func (s *ProgressionService) highestCompleted(ctx context.Context, enrollmentID, courseID string, catalog []models.ModuleEntry) GateResult {
	classrooms, err := s.classrooms.ListByCourse(ctx, courseID)
	if err != nil {
		return s.degraded(enrollmentID, courseID, fmt.Errorf("load course classrooms: %w", err))
	}
	passed, err := s.memberships.ListByEnrollment(ctx, enrollmentID, models.MembershipPass)
	if err != nil {
		return s.degraded(enrollmentID, courseID, fmt.Errorf("load passed memberships: %w", err))
	}
	return GateResult{Completed: HighestCompleted(catalog, classrooms, passed)}
}

// FilterBySequentialCompletion applies FilterModules for an enrollment, or for
// no enrollment when enrollmentID is empty.
func (s *ProgressionService) FilterBySequentialCompletion(ctx context.Context, modules []models.ModuleEntry, enrollmentID, courseID string) ([]models.ModuleEntry, GateResult) {
	catalog, err := s.catalog.Modules(ctx, courseID)
	if err != nil {
		// the candidates still carry their own sequence data
		result := s.degraded(enrollmentID, courseID, fmt.Errorf("load module catalog: %w", err))
		return FilterModules(modules, modules, enrollmentID != "", result.Value()), result
	}
	if MaxSequence(catalog) == 0 {
		return modules, GateResult{}
	}
	if enrollmentID == "" {
		return FilterModules(modules, catalog, false, 0), GateResult{}
	}
	result := s.highestCompleted(ctx, enrollmentID, courseID, catalog)
	return FilterModules(modules, catalog, true, result.Value()), result
}

func (s *ProgressionService) degraded(enrollmentID, courseID string, err error) GateResult {
	s.logger.Warn("progression gate indeterminate, treating as no progress",
		zap.String("enrollment_id", enrollmentID),
		zap.String("course_id", courseID),
		zap.Error(err),
	)
	s.metrics.IncGateDegraded()
	return GateResult{Indeterminate: true, Err: err}
}
