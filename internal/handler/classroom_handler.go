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

type classroomService interface {
	Create(ctx context.Context, req service.CreateClassroomRequest) (*models.ClassroomDetail, error)
	Get(ctx context.Context, id string) (*models.ClassroomDetail, error)
	List(ctx context.Context, filter models.ClassroomFilter) ([]models.ClassroomDetail, *models.Pagination, service.GateResult, error)
	Delete(ctx context.Context, id string) error
	Students(ctx context.Context, id string) ([]models.ClassroomStudentDetail, error)
}

type examSheetReader interface {
	Sheet(ctx context.Context, classroomID string) (*models.ExamSheet, error)
}

// ClassroomHandler exposes classroom registry endpoints.
type ClassroomHandler struct {
	classrooms classroomService
	exams      examSheetReader
}

// NewClassroomHandler constructs ClassroomHandler.
func NewClassroomHandler(classrooms classroomService, exams examSheetReader) *ClassroomHandler {
	return &ClassroomHandler{classrooms: classrooms, exams: exams}
}

// List godoc
// @Summary List classrooms
// @Description When both courseId and enrollmentId are given only classrooms the enrollment may join next are returned.
// @Tags Classrooms
// @Produce json
// @Param courseId query string false "Filter by course"
// @Param batchId query string false "Filter by batch"
// @Param moduleId query string false "Filter by module"
// @Param enrollmentId query string false "Apply the progression gate for this enrollment"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /classrooms [get]
func (h *ClassroomHandler) List(c *gin.Context) {
	filter := models.ClassroomFilter{
		CourseID:     c.Query("courseId"),
		BatchID:      c.Query("batchId"),
		ModuleID:     c.Query("moduleId"),
		EnrollmentID: c.Query("enrollmentId"),
	}
	filter.Page, filter.PageSize = pageQuery(c)

	classrooms, pagination, gate, err := h.classrooms.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	if gate.Indeterminate {
		middleware.SetMeta(c, "progression_indeterminate", true)
	}
	response.JSON(c, http.StatusOK, classrooms, pagination, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get classroom
// @Tags Classrooms
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id} [get]
func (h *ClassroomHandler) Get(c *gin.Context) {
	classroom, err := h.classrooms.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classroom, nil)
}

// Create godoc
// @Summary Create classroom
// @Description Creates the classroom of a (course, batch, module) slot together with its exam.
// @Tags Classrooms
// @Accept json
// @Produce json
// @Param payload body service.CreateClassroomRequest true "Classroom payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /classrooms [post]
func (h *ClassroomHandler) Create(c *gin.Context) {
	var req service.CreateClassroomRequest
	if !bindJSON(c, &req) {
		return
	}
	classroom, err := h.classrooms.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetActivityEntity(c, classroom.ID)
	response.Created(c, classroom)
}

// Delete godoc
// @Summary Delete classroom
// @Description Only classrooms without students can be deleted; the exam and its marks go with it.
// @Tags Classrooms
// @Param id path string true "Classroom ID"
// @Success 204
// @Failure 412 {object} response.Envelope
// @Router /classrooms/{id} [delete]
func (h *ClassroomHandler) Delete(c *gin.Context) {
	if err := h.classrooms.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Students godoc
// @Summary List classroom students
// @Tags Classrooms
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/students [get]
func (h *ClassroomHandler) Students(c *gin.Context) {
	students, err := h.classrooms.Students(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}

// ExamSheet godoc
// @Summary Get the exam sheet of a classroom
// @Tags Exams
// @Produce json
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id}/exam [get]
func (h *ClassroomHandler) ExamSheet(c *gin.Context) {
	sheet, err := h.exams.Sheet(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, nil)
}
