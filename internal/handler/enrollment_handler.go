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

type enrollmentService interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	Enroll(ctx context.Context, req service.EnrollRequest) (*models.EnrollmentDetail, error)
	Transfer(ctx context.Context, enrollmentID string, req service.TransferRequest) (*models.EnrollmentDetail, error)
	AddToClassroom(ctx context.Context, enrollmentID string, req service.AddToClassroomRequest) (*models.ClassroomStudent, error)
	Memberships(ctx context.Context, enrollmentID string) ([]models.ClassroomStudent, error)
	UpdateMembershipStatus(ctx context.Context, id string, req service.UpdateMembershipStatusRequest) (*models.ClassroomStudent, error)
}

type eligibleClassroomLister interface {
	EligibleForEnrollment(ctx context.Context, enrollmentID, batchID string) ([]models.ClassroomDetail, service.GateResult, error)
}

// EnrollmentHandler exposes enrollment, transfer and membership endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
	classrooms  eligibleClassroomLister
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService, classrooms eligibleClassroomLister) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, classrooms: classrooms}
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param courseId query string false "Filter by course"
// @Param batchId query string false "Filter by batch"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	filter := models.EnrollmentFilter{
		StudentID: c.Query("studentId"),
		CourseID:  c.Query("courseId"),
		BatchID:   c.Query("batchId"),
	}
	filter.Page, filter.PageSize = pageQuery(c)

	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Get godoc
// @Summary Get enrollment with its transfer history
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	enrollment, err := h.enrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Enroll godoc
// @Summary Enroll a student
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var req service.EnrollRequest
	if !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.enrollments.Enroll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetActivityEntity(c, enrollment.ID)
	response.Created(c, enrollment)
}

// Transfer godoc
// @Summary Transfer an enrollment to another batch
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.TransferRequest true "Transfer payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/transfer [post]
func (h *EnrollmentHandler) Transfer(c *gin.Context) {
	var req service.TransferRequest
	if !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.enrollments.Transfer(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// AddToClassroom godoc
// @Summary Add an enrollment to a classroom
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.AddToClassroomRequest true "Classroom payload"
// @Success 201 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /enrollments/{id}/classrooms [post]
func (h *EnrollmentHandler) AddToClassroom(c *gin.Context) {
	var req service.AddToClassroomRequest
	if !bindJSON(c, &req) {
		return
	}
	membership, err := h.enrollments.AddToClassroom(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetActivityEntity(c, membership.ID)
	response.Created(c, membership)
}

// Memberships godoc
// @Summary List the classrooms of an enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/classrooms [get]
func (h *EnrollmentHandler) Memberships(c *gin.Context) {
	memberships, err := h.enrollments.Memberships(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, memberships, nil)
}

// EligibleClassrooms godoc
// @Summary List classrooms an enrollment may join next
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param batchId query string false "Restrict to one batch"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/eligible-classrooms [get]
func (h *EnrollmentHandler) EligibleClassrooms(c *gin.Context) {
	classrooms, gate, err := h.classrooms.EligibleForEnrollment(c.Request.Context(), c.Param("id"), c.Query("batchId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if gate.Indeterminate {
		middleware.SetMeta(c, "progression_indeterminate", true)
	}
	response.JSON(c, http.StatusOK, classrooms, nil, middleware.ExtractMeta(c))
}

// UpdateMembershipStatus godoc
// @Summary Change a classroom membership status
// @Description Accepts active, hold and transferred; dropped is stored as transferred.
// @Tags Memberships
// @Accept json
// @Produce json
// @Param id path string true "Membership ID"
// @Param payload body service.UpdateMembershipStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /memberships/{id}/status [patch]
func (h *EnrollmentHandler) UpdateMembershipStatus(c *gin.Context) {
	var req service.UpdateMembershipStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	membership, err := h.enrollments.UpdateMembershipStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, membership, nil)
}
