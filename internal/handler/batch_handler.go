package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Isurika-2001/university-management-system-sub001/internal/middleware"
	"github.com/Isurika-2001/university-management-system-sub001/internal/models"
	"github.com/Isurika-2001/university-management-system-sub001/internal/service"
	"github.com/Isurika-2001/university-management-system-sub001/pkg/response"
)

type batchService interface {
	List(ctx context.Context, filter models.BatchFilter) ([]models.Batch, *models.Pagination, error)
	Create(ctx context.Context, req service.CreateBatchRequest) (*models.Batch, error)
}

// BatchHandler exposes intake endpoints.
type BatchHandler struct {
	batches batchService
}

// NewBatchHandler constructs BatchHandler.
func NewBatchHandler(batches batchService) *BatchHandler {
	return &BatchHandler{batches: batches}
}

// List godoc
// @Summary List batches
// @Tags Batches
// @Produce json
// @Param courseId query string false "Filter by course"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /batches [get]
func (h *BatchHandler) List(c *gin.Context) {
	filter := models.BatchFilter{CourseID: c.Query("courseId")}
	filter.Page, filter.PageSize = pageQuery(c)

	batches, pagination, err := h.batches.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batches, pagination)
}

// Create godoc
// @Summary Create batch
// @Tags Batches
// @Accept json
// @Produce json
// @Param payload body service.CreateBatchRequest true "Batch payload"
// @Success 201 {object} response.Envelope
// @Router /batches [post]
func (h *BatchHandler) Create(c *gin.Context) {
	var req service.CreateBatchRequest
	if !bindJSON(c, &req) {
		return
	}
	batch, err := h.batches.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetActivityEntity(c, batch.ID)
	response.Created(c, batch)
}
