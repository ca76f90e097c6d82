package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const reconcileBatchSize = 200

type examBackfiller interface {
	ReconcileExams(ctx context.Context, limit int) (int, error)
}

// ExamReconciler periodically creates exams for classrooms whose exam was
// not created alongside them.
type ExamReconciler struct {
	cron    *cron.Cron
	spec    string
	target  examBackfiller
	timeout time.Duration
	logger  *zap.Logger
}

// NewExamReconciler schedules target on a six-field cron spec (seconds first).
func NewExamReconciler(target examBackfiller, spec string, logger *zap.Logger) *ExamReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamReconciler{
		cron:    cron.New(cron.WithSeconds()),
		spec:    spec,
		target:  target,
		timeout: time.Minute,
		logger:  logger,
	}
}

// Start registers the job and starts the scheduler.
func (r *ExamReconciler) Start() error {
	if _, err := r.cron.AddFunc(r.spec, func() { r.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("schedule exam reconcile %q: %w", r.spec, err)
	}
	r.cron.Start()
	r.logger.Info("exam reconciler started", zap.String("spec", r.spec))
	return nil
}

// Stop waits for a running reconcile to finish.
func (r *ExamReconciler) Stop() {
	<-r.cron.Stop().Done()
	r.logger.Info("exam reconciler stopped")
}

// RunOnce backfills one batch of missing exams.
func (r *ExamReconciler) RunOnce(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	created, err := r.target.ReconcileExams(ctx, reconcileBatchSize)
	if err != nil {
		r.logger.Error("exam reconcile failed", zap.Error(err))
		return 0
	}
	if created > 0 {
		r.logger.Info("missing exams created", zap.Int("count", created))
	}
	return created
}
