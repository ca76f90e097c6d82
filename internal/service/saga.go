package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// sagaStep is one forward action of a multi-step workflow. Compensate is
// optional and undoes Run once a later step fails.
type sagaStep struct {
	Name       string
	Run        func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// saga runs steps in order and compensates completed steps in reverse order
// when one fails. Compensation ignores cancellation of the request context.
type saga struct {
	name    string
	steps   []sagaStep
	metrics *MetricsService
	logger  *zap.Logger
}

func newSaga(name string, metrics *MetricsService, logger *zap.Logger) *saga {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &saga{name: name, metrics: metrics, logger: logger}
}

func (s *saga) Step(name string, run, compensate func(ctx context.Context) error) *saga {
	s.steps = append(s.steps, sagaStep{Name: name, Run: run, Compensate: compensate})
	return s
}

// Run executes the saga and returns the error of the failing step.
func (s *saga) Run(ctx context.Context) error {
	for i, step := range s.steps {
		if err := step.Run(ctx); err != nil {
			s.compensate(context.WithoutCancel(ctx), i, step.Name, err)
			return err
		}
	}
	return nil
}

func (s *saga) compensate(ctx context.Context, failed int, failedStep string, cause error) {
	s.logger.Warn("saga step failed, compensating",
		zap.String("saga", s.name),
		zap.String("step", failedStep),
		zap.Error(cause),
	)
	for i := failed - 1; i >= 0; i-- {
		step := s.steps[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			s.metrics.RecordCompensation(s.name, false)
			s.logger.Error("saga compensation failed",
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Error(fmt.Errorf("compensate %s: %w", step.Name, err)),
			)
			continue
		}
		s.metrics.RecordCompensation(s.name, true)
	}
}
