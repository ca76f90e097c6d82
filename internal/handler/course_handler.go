package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Isurika-2001/university-management-system-sub001/internal/middleware"
	"github.com/Isurika-2001/university-management-system-sub001/internal/models"
	"github.com/Isurika-2001/university-management-system-sub001/internal/service"
	"github.com/Isurika-2001/university-management-system-sub001/pkg/response"
)

type courseService interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.CourseDetail, error)
	Create(ctx context.Context, req service.CreateCourseRequest) (*models.CourseDetail, error)
	AddModule(ctx context.Context, courseID string, req service.ModuleRequest) (*models.ModuleEntry, error)
	Modules(ctx context.Context, courseID string) ([]models.ModuleEntry, error)
}

type moduleGate interface {
	FilterBySequentialCompletion(ctx context.Context, modules []models.ModuleEntry, enrollmentID, courseID string) ([]models.ModuleEntry, service.GateResult)
}

// CourseHandler exposes course and module catalog endpoints.
type CourseHandler struct {
	courses courseService
	gate    moduleGate
}

// NewCourseHandler constructs CourseHandler.
func NewCourseHandler(courses courseService, gate moduleGate) *CourseHandler {
	return &CourseHandler{courses: courses, gate: gate}
}

// List godoc
// @Summary List courses
// @Tags Courses
// @Produce json
// @Param search query string false "Search by code or name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	filter := models.CourseFilter{Search: strings.TrimSpace(c.Query("search"))}
	filter.Page, filter.PageSize = pageQuery(c)

	courses, pagination, err := h.courses.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, pagination)
}

// Get godoc
// @Summary Get course with its modules
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	course, err := h.courses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Create godoc
// @Summary Create course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body service.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var req service.CreateCourseRequest
	if !bindJSON(c, &req) {
		return
	}
	course, err := h.courses.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetActivityEntity(c, course.ID)
	response.Created(c, course)
}

// AddModule godoc
// @Summary Add a module to a course
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.ModuleRequest true "Module payload"
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/modules [post]
func (h *CourseHandler) AddModule(c *gin.Context) {
	var req service.ModuleRequest
	if !bindJSON(c, &req) {
		return
	}
	module, err := h.courses.AddModule(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetActivityEntity(c, module.ID)
	response.Created(c, module)
}

// Modules godoc
// @Summary List course modules
// @Description With enrollmentId only the modules the enrollment may take next are returned.
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Param enrollmentId query string false "Restrict to modules open to this enrollment"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/modules [get]
func (h *CourseHandler) Modules(c *gin.Context) {
	courseID := c.Param("id")
	modules, err := h.courses.Modules(c.Request.Context(), courseID)
	if err != nil {
		response.Error(c, err)
		return
	}

	if enrollmentID := c.Query("enrollmentId"); enrollmentID != "" && h.gate != nil {
		open, result := h.gate.FilterBySequentialCompletion(c.Request.Context(), modules, enrollmentID, courseID)
		modules = open
		if result.Indeterminate {
			middleware.SetMeta(c, "progression_indeterminate", true)
		}
	}
	response.JSON(c, http.StatusOK, modules, nil, middleware.ExtractMeta(c))
}
