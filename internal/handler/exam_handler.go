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

type examLedger interface {
	AddMark(ctx context.Context, examID string, req service.AddMarkRequest) (*models.ExamMark, error)
	UpdateMark(ctx context.Context, examMarkID, takeID string, req service.UpdateMarkRequest) (*models.ExamMark, error)
}

// ExamHandler exposes the marks ledger.
type ExamHandler struct {
	exams examLedger
}

// NewExamHandler constructs ExamHandler.
func NewExamHandler(exams examLedger) *ExamHandler {
	return &ExamHandler{exams: exams}
}

// AddMark godoc
// @Summary Record a take for a student
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param payload body service.AddMarkRequest true "Take payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /exams/{id}/marks [post]
func (h *ExamHandler) AddMark(c *gin.Context) {
	var req service.AddMarkRequest
	if !bindJSON(c, &req) {
		return
	}
	mark, err := h.exams.AddMark(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetActivityEntity(c, mark.ID)
	response.Created(c, mark)
}

// UpdateMark godoc
// @Summary Correct the mark of a take
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Exam mark ID"
// @Param takeId path string true "Take ID"
// @Param payload body service.UpdateMarkRequest true "Mark payload"
// @Success 200 {object} response.Envelope
// @Router /exam-marks/{id}/takes/{takeId} [put]
func (h *ExamHandler) UpdateMark(c *gin.Context) {
	var req service.UpdateMarkRequest
	if !bindJSON(c, &req) {
		return
	}
	mark, err := h.exams.UpdateMark(c.Request.Context(), c.Param("id"), c.Param("takeId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mark, nil)
}
