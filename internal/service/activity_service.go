package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Isurika-2001/university-management-system-sub001/internal/models"
	"github.com/Isurika-2001/university-management-system-sub001/pkg/jobs"
)

const activityJobType = "activity.log"

type activityWriter interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
}

type activityQueue interface {
	Start(ctx context.Context)
	Stop()
	TryEnqueue(job jobs.Job) error
}

// ActivityService records activity log entries in the background. Recording
// never blocks or fails the caller.
type ActivityService struct {
	repo    activityWriter
	queue   activityQueue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewActivityService builds the service and its worker queue.
func NewActivityService(repo activityWriter, metrics *MetricsService, cfg jobs.QueueConfig, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ActivityService{repo: repo, metrics: metrics, logger: logger}
	cfg.Logger = logger
	cfg.OnDrop = func(job jobs.Job, err error) {
		svc.metrics.IncActivityDropped()
	}
	svc.queue = jobs.NewQueue("activity", svc.handle, cfg)
	return svc
}

// Start launches the queue workers.
func (s *ActivityService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *ActivityService) Stop() {
	s.queue.Stop()
}

// Record enqueues an entry. A full or stopped queue drops the entry.
func (s *ActivityService) Record(entry models.ActivityLog) {
	if s == nil {
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: activityJobType, Payload: entry}
	if err := s.queue.TryEnqueue(job); err != nil {
		s.metrics.IncActivityDropped()
		s.logger.Warn("activity entry dropped",
			zap.String("action", entry.Action),
			zap.String("entity", entry.Entity),
			zap.Error(err),
		)
	}
}

func (s *ActivityService) handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(models.ActivityLog)
	if !ok {
		return fmt.Errorf("unexpected activity payload %T", job.Payload)
	}
	return s.repo.Create(ctx, &entry)
}
