package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Isurika-2001/university-management-system-sub001/internal/models"
	appErrors "github.com/Isurika-2001/university-management-system-sub001/pkg/errors"
)

type batchRepository interface {
	List(ctx context.Context, filter models.BatchFilter) ([]models.Batch, int, error)
	FindByID(ctx context.Context, id string) (*models.Batch, error)
	Create(ctx context.Context, batch *models.Batch) error
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// CreateBatchRequest is the payload for creating an intake.
type CreateBatchRequest struct {
	Name      string     `json:"name" validate:"required,max=100"`
	CourseID  *string    `json:"course_id" validate:"omitempty,uuid"`
	StartDate *time.Time `json:"start_date"`
}

// BatchService manages intakes.
type BatchService struct {
	repo      batchRepository
	courses   courseReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBatchService constructs the batch service.
func NewBatchService(repo batchRepository, courses courseReader, validate *validator.Validate, logger *zap.Logger) *BatchService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchService{repo: repo, courses: courses, validator: validate, logger: logger}
}

// List returns batches with pagination metadata.
func (s *BatchService) List(ctx context.Context, filter models.BatchFilter) ([]models.Batch, *models.Pagination, error) {
	batches, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list batches")
	}
	return batches, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Create registers a batch, checking the course when one is given.
func (s *BatchService) Create(ctx context.Context, req CreateBatchRequest) (*models.Batch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid batch payload")
	}
	if req.CourseID != nil {
		if _, err := s.courses.FindByID(ctx, *req.CourseID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
			}
			return nil, appErrors.Internal(err, "failed to load course")
		}
	}
	batch := &models.Batch{Name: strings.TrimSpace(req.Name), CourseID: req.CourseID, StartDate: req.StartDate}
	if err := s.repo.Create(ctx, batch); err != nil {
		return nil, appErrors.Internal(err, "failed to create batch")
	}
	return batch, nil
}
