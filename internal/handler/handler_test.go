package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Isurika-2001/university-management-system-sub001/internal/models"
	appErrors "github.com/Isurika-2001/university-management-system-sub001/pkg/errors"
)

func TestCourseHandlerModulesAppliesGate(t *testing.T) {
	catalog := []models.ModuleEntry{{ID: "m1"}, {ID: "m2"}, {ID: "m3"}}
	gate := &gateMock{open: catalog[:1], indeterminate: true}
	handler := NewCourseHandler(&courseServiceMock{modules: catalog}, gate)

	c, w := newTestContext(http.MethodGet, "/courses/c1/modules?enrollmentId=e1", nil)
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	handler.Modules(c)

	require.Equal(t, http.StatusOK, w.Code)
	env := decode(w)
	var modules []models.ModuleEntry
	require.NoError(t, json.Unmarshal(env.Data, &modules))
	assert.Len(t, modules, 1)
	assert.Equal(t, "e1", gate.enrollmentID)
	assert.Equal(t, true, env.Meta["progression_indeterminate"])
}

func TestCourseHandlerModulesWithoutEnrollment(t *testing.T) {
	catalog := []models.ModuleEntry{{ID: "m1"}, {ID: "m2"}}
	gate := &gateMock{}
	handler := NewCourseHandler(&courseServiceMock{modules: catalog}, gate)

	c, w := newTestContext(http.MethodGet, "/courses/c1/modules", nil)
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	handler.Modules(c)

	require.Equal(t, http.StatusOK, w.Code)
	var modules []models.ModuleEntry
	require.NoError(t, json.Unmarshal(decode(w).Data, &modules))
	assert.Len(t, modules, 2)
	assert.Empty(t, gate.enrollmentID)
}

func TestCourseHandlerCreate(t *testing.T) {
	svc := &courseServiceMock{}
	handler := NewCourseHandler(svc, nil)

	c, w := newTestContext(http.MethodPost, "/courses", `{"code":"CS","name":"Computing","modules":[{"name":"Foundations","is_sequential":true,"sequence_number":1}]}`)
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, svc.created)
	require.Len(t, svc.created.Modules, 1)
	assert.Equal(t, 1, *svc.created.Modules[0].SequenceNumber)

	c, w = newTestContext(http.MethodPost, "/courses", `{"code":`)
	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCourseHandlerListPaging(t *testing.T) {
	svc := &courseServiceMock{}
	handler := NewCourseHandler(svc, nil)

	c, w := newTestContext(http.MethodGet, "/courses?search=+comp+&page=2&limit=abc", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "comp", svc.lastFilter.Search)
	assert.Equal(t, 2, svc.lastFilter.Page)
	assert.Equal(t, 20, svc.lastFilter.PageSize)
}

func TestClassroomHandlerListPassesGateFilter(t *testing.T) {
	svc := &classroomServiceMock{}
	handler := NewClassroomHandler(svc, &examServiceMock{})

	c, w := newTestContext(http.MethodGet, "/classrooms?courseId=c1&enrollmentId=e1&batchId=b1", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ClassroomFilter{CourseID: "c1", BatchID: "b1", EnrollmentID: "e1", Page: 1, PageSize: 20}, svc.lastFilter)
	assert.NotContains(t, decode(w).Meta, "progression_indeterminate")
}

func TestClassroomHandlerListFlagsIndeterminateGate(t *testing.T) {
	svc := &classroomServiceMock{indeterminate: true}
	handler := NewClassroomHandler(svc, &examServiceMock{})

	c, w := newTestContext(http.MethodGet, "/classrooms?courseId=c1&enrollmentId=e1", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(w).Meta["progression_indeterminate"])
}

func TestClassroomHandlerCreateConflict(t *testing.T) {
	svc := &classroomServiceMock{createErr: appErrors.Clone(appErrors.ErrConflict, "a classroom already exists for this course, batch and module")}
	handler := NewClassroomHandler(svc, &examServiceMock{})

	c, w := newTestContext(http.MethodPost, "/classrooms", map[string]string{"course_id": "c1", "batch_id": "b1", "module_id": "m1", "month": "Jan"})
	handler.Create(c)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, appErrors.ErrConflict.Code, decode(w).Error.Code)
}

func TestClassroomHandlerDeleteGuard(t *testing.T) {
	svc := &classroomServiceMock{deleteErr: appErrors.Clone(appErrors.ErrPreconditionFailed, "classroom still has 2 student(s)")}
	handler := NewClassroomHandler(svc, &examServiceMock{})

	c, w := newTestContext(http.MethodDelete, "/classrooms/cl-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "cl-1"}}
	handler.Delete(c)

	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Equal(t, "cl-1", svc.deleted)
	assert.Contains(t, decode(w).Message, "2 student(s)")
}

func TestClassroomHandlerExamSheet(t *testing.T) {
	sheet := &models.ExamSheet{Exam: models.Exam{ID: "exam-1", ClassroomID: "cl-1"}}
	handler := NewClassroomHandler(&classroomServiceMock{}, &examServiceMock{sheet: sheet})

	c, w := newTestContext(http.MethodGet, "/classrooms/cl-1/exam", nil)
	c.Params = gin.Params{{Key: "id", Value: "cl-1"}}
	handler.ExamSheet(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decode(w).Data), "exam-1")
}

func TestEnrollmentHandlerTransfer(t *testing.T) {
	svc := &enrollmentServiceMock{}
	handler := NewEnrollmentHandler(svc, svc)

	c, w := newTestContext(http.MethodPost, "/enrollments/e1/transfer", map[string]string{"batch_id": "b2", "classroom_id": "cl-9", "reason": "moved intake"})
	c.Params = gin.Params{{Key: "id", Value: "e1"}}
	handler.Transfer(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "e1", svc.transferID)
	assert.Equal(t, "b2", svc.transfer.BatchID)
	require.NotNil(t, svc.transfer.ClassroomID)
	assert.Equal(t, "cl-9", *svc.transfer.ClassroomID)
}

func TestEnrollmentHandlerAddToClassroomLocked(t *testing.T) {
	svc := &enrollmentServiceMock{addErr: appErrors.Clone(appErrors.ErrPreconditionFailed, "module is locked until the previous sequential module is passed")}
	handler := NewEnrollmentHandler(svc, svc)

	c, w := newTestContext(http.MethodPost, "/enrollments/e1/classrooms", map[string]string{"classroom_id": "cl-3"})
	c.Params = gin.Params{{Key: "id", Value: "e1"}}
	handler.AddToClassroom(c)

	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, decode(w).Error.Code)
}

func TestEnrollmentHandlerEligibleClassrooms(t *testing.T) {
	svc := &enrollmentServiceMock{}
	handler := NewEnrollmentHandler(svc, svc)

	c, w := newTestContext(http.MethodGet, "/enrollments/e1/eligible-classrooms?batchId=b1", nil)
	c.Params = gin.Params{{Key: "id", Value: "e1"}}
	handler.EligibleClassrooms(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "e1", svc.eligibleFor)
	assert.Equal(t, "b1", svc.batchID)
}

func TestEnrollmentHandlerEligibleClassroomsFlagsIndeterminateGate(t *testing.T) {
	svc := &enrollmentServiceMock{indeterminate: true}
	handler := NewEnrollmentHandler(svc, svc)

	c, w := newTestContext(http.MethodGet, "/enrollments/e1/eligible-classrooms", nil)
	c.Params = gin.Params{{Key: "id", Value: "e1"}}
	handler.EligibleClassrooms(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(w).Meta["progression_indeterminate"])
}

func TestEnrollmentHandlerUpdateMembershipStatus(t *testing.T) {
	svc := &enrollmentServiceMock{}
	handler := NewEnrollmentHandler(svc, svc)

	c, w := newTestContext(http.MethodPatch, "/memberships/ms-1/status", map[string]string{"status": "dropped"})
	c.Params = gin.Params{{Key: "id", Value: "ms-1"}}
	handler.UpdateMembershipStatus(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ms-1", svc.statusID)
	assert.Equal(t, "dropped", svc.status)
}

func TestExamHandlerAddMark(t *testing.T) {
	svc := &examServiceMock{}
	handler := NewExamHandler(svc)

	c, w := newTestContext(http.MethodPost, "/exams/exam-1/marks", `{"student_id":"s1","take_type":"resit","mark":55}`)
	c.Params = gin.Params{{Key: "id", Value: "exam-1"}}
	handler.AddMark(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "exam-1", svc.lastExam)
	assert.Equal(t, "resit", svc.lastAdd.TakeType)
	require.NotNil(t, svc.lastAdd.Mark)
	assert.Equal(t, 55.0, *svc.lastAdd.Mark)
}

func TestExamHandlerAddMarkSecondFresh(t *testing.T) {
	svc := &examServiceMock{addErr: appErrors.Clone(appErrors.ErrConflict, "a fresh take already exists for this student, record a resit instead")}
	handler := NewExamHandler(svc)

	c, w := newTestContext(http.MethodPost, "/exams/exam-1/marks", `{"student_id":"s1","mark":30}`)
	c.Params = gin.Params{{Key: "id", Value: "exam-1"}}
	handler.AddMark(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestExamHandlerUpdateMark(t *testing.T) {
	svc := &examServiceMock{}
	handler := NewExamHandler(svc)

	c, w := newTestContext(http.MethodPut, "/exam-marks/mark-1/takes/take-2", `{"mark":72.5}`)
	c.Params = gin.Params{{Key: "id", Value: "mark-1"}, {Key: "takeId", Value: "take-2"}}
	handler.UpdateMark(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "mark-1", svc.lastExam)
	assert.Equal(t, "take-2", svc.lastTake)
}

func TestStudentHandlerGetNotFound(t *testing.T) {
	handler := NewStudentHandler(&studentServiceMock{getErr: appErrors.Clone(appErrors.ErrNotFound, "student not found")})

	c, w := newTestContext(http.MethodGet, "/students/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStudentHandlerListFilters(t *testing.T) {
	svc := &studentServiceMock{}
	handler := NewStudentHandler(svc)

	c, w := newTestContext(http.MethodGet, "/students?status=hold&search=nimali", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StudentHold, svc.lastFilter.Status)
	assert.Equal(t, "nimali", svc.lastFilter.Search)
}

func TestMetricsHandlerReady(t *testing.T) {
	handler := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"postgres": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
	})

	c, w := newTestContext(http.MethodGet, "/ready", nil)
	handler.Ready(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	healthy := NewMetricsHandler(nil, map[string]ReadinessCheck{"postgres": func(ctx context.Context) error { return nil }})
	c, w = newTestContext(http.MethodGet, "/ready", nil)
	healthy.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

type tokenStub map[string]*models.JWTClaims

func (s tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type activitySink struct {
	mu      sync.Mutex
	entries []models.ActivityLog
}

func (s *activitySink) Record(entry models.ActivityLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func newTestRouter(sink *activitySink) *gin.Engine {
	gin.SetMode(gin.TestMode)
	enrollments := &enrollmentServiceMock{}
	exams := &examServiceMock{}
	router := gin.New()
	RegisterRoutes(router.Group("/api/v1"), Handlers{
		Courses:     NewCourseHandler(&courseServiceMock{}, &gateMock{}),
		Batches:     NewBatchHandler(nil),
		Classrooms:  NewClassroomHandler(&classroomServiceMock{}, exams),
		Enrollments: NewEnrollmentHandler(enrollments, enrollments),
		Exams:       NewExamHandler(exams),
		Students:    NewStudentHandler(&studentServiceMock{}),
	}, tokenStub{
		"admin":   {UserID: "u-admin", Role: models.RoleAdmin},
		"student": {UserID: "s1", Role: models.RoleStudent},
	}, sink)
	return router
}

func routerRequest(router *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRoutesRequireToken(t *testing.T) {
	router := newTestRouter(&activitySink{})

	assert.Equal(t, http.StatusUnauthorized, routerRequest(router, http.MethodGet, "/api/v1/classrooms", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, routerRequest(router, http.MethodGet, "/api/v1/classrooms", "forged", "").Code)
	assert.Equal(t, http.StatusOK, routerRequest(router, http.MethodGet, "/api/v1/classrooms", "student", "").Code)
}

func TestRoutesEnforceRoles(t *testing.T) {
	router := newTestRouter(&activitySink{})

	assert.Equal(t, http.StatusForbidden, routerRequest(router, http.MethodPost, "/api/v1/exams/exam-1/marks", "student", `{"student_id":"s1","mark":90}`).Code)
	assert.Equal(t, http.StatusOK, routerRequest(router, http.MethodGet, "/api/v1/students/s1", "student", "").Code)
	assert.Equal(t, http.StatusForbidden, routerRequest(router, http.MethodGet, "/api/v1/students/s2", "student", "").Code)
}

func TestRoutesRecordActivity(t *testing.T) {
	sink := &activitySink{}
	router := newTestRouter(sink)

	w := routerRequest(router, http.MethodPost, "/api/v1/classrooms", "admin", `{"course_id":"c1","batch_id":"b1","module_id":"m1","month":"Jan"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = routerRequest(router, http.MethodPatch, "/api/v1/memberships/ms-1/status", "admin", `{"status":"hold"}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, sink.entries, 2)
	assert.Equal(t, models.ActivityClassroomCreate, sink.entries[0].Action)
	assert.Equal(t, "cl-new", *sink.entries[0].EntityID)
	assert.Equal(t, "u-admin", *sink.entries[0].UserID)
	assert.Equal(t, "ms-1", *sink.entries[1].EntityID)
}
