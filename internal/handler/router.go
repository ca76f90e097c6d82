package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Isurika-2001/university-management-system-sub001/internal/middleware"
	"github.com/Isurika-2001/university-management-system-sub001/internal/models"
)

// Handlers bundles every API handler mounted under the API prefix.
type Handlers struct {
	Courses     *CourseHandler
	Batches     *BatchHandler
	Classrooms  *ClassroomHandler
	Enrollments *EnrollmentHandler
	Exams       *ExamHandler
	Students    *StudentHandler
}

// RegisterRoutes mounts the API on group. Every route requires a valid token.
func RegisterRoutes(group *gin.RouterGroup, h Handlers, auth middleware.TokenValidator, activity middleware.ActivityRecorder) {
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleAcademic)
	admin := middleware.RequireRoles(models.RoleAdmin)
	track := func(action, entity string) gin.HandlerFunc {
		return middleware.Activity(activity, action, entity)
	}

	api := group.Group("")
	api.Use(middleware.JWT(auth))

	courses := api.Group("/courses")
	courses.GET("", h.Courses.List)
	courses.GET("/:id", h.Courses.Get)
	courses.GET("/:id/modules", h.Courses.Modules)
	courses.POST("", admin, track(models.ActivityCourseCreate, "course"), h.Courses.Create)
	courses.POST("/:id/modules", admin, track(models.ActivityModuleCreate, "course_module"), h.Courses.AddModule)

	batches := api.Group("/batches")
	batches.GET("", h.Batches.List)
	batches.POST("", admin, track(models.ActivityBatchCreate, "batch"), h.Batches.Create)

	classrooms := api.Group("/classrooms")
	classrooms.GET("", h.Classrooms.List)
	classrooms.GET("/:id", h.Classrooms.Get)
	classrooms.GET("/:id/students", staff, h.Classrooms.Students)
	classrooms.GET("/:id/exam", staff, h.Classrooms.ExamSheet)
	classrooms.POST("", admin, track(models.ActivityClassroomCreate, "classroom"), h.Classrooms.Create)
	classrooms.DELETE("/:id", admin, track(models.ActivityClassroomDelete, "classroom"), h.Classrooms.Delete)

	enrollments := api.Group("/enrollments", staff)
	enrollments.GET("", h.Enrollments.List)
	enrollments.GET("/:id", h.Enrollments.Get)
	enrollments.GET("/:id/classrooms", h.Enrollments.Memberships)
	enrollments.GET("/:id/eligible-classrooms", h.Enrollments.EligibleClassrooms)
	enrollments.POST("", track(models.ActivityEnrollmentCreate, "enrollment"), h.Enrollments.Enroll)
	enrollments.POST("/:id/transfer", track(models.ActivityEnrollmentTransfer, "enrollment"), h.Enrollments.Transfer)
	enrollments.POST("/:id/classrooms", track(models.ActivityMembershipCreate, "classroom_student"), h.Enrollments.AddToClassroom)

	api.PATCH("/memberships/:id/status", staff, track(models.ActivityMembershipStatus, "classroom_student"), h.Enrollments.UpdateMembershipStatus)

	api.POST("/exams/:id/marks", staff, track(models.ActivityMarkAdd, "exam_mark"), h.Exams.AddMark)
	api.PUT("/exam-marks/:id/takes/:takeId", staff, track(models.ActivityMarkUpdate, "exam_mark"), h.Exams.UpdateMark)

	students := api.Group("/students")
	students.GET("", staff, h.Students.List)
	students.GET("/:id", middleware.RBAC(string(models.RoleAdmin), string(models.RoleAcademic), middleware.RoleSelf), h.Students.Get)
	students.GET("/:id/completion", middleware.RBAC(string(models.RoleAdmin), string(models.RoleAcademic), middleware.RoleSelf), h.Students.Completion)
	students.POST("", staff, track(models.ActivityStudentCreate, "student"), h.Students.Create)
	students.PUT("/:id", staff, track(models.ActivityStudentUpdate, "student"), h.Students.Update)
	students.PUT("/:id/documents", staff, track(models.ActivityStudentUpdate, "student"), h.Students.UpdateDocuments)
}
