package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"

	"github.com/Isurika-2001/university-management-system-sub001/internal/models"
	"github.com/Isurika-2001/university-management-system-sub001/internal/service"
)

func newTestContext(method, target string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		payload, _ := json.Marshal(v)
		reader = bytes.NewReader(payload)
	}
	req, _ := http.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    json.RawMessage        `json:"data"`
	Meta    map[string]interface{} `json:"meta"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decode(w *httptest.ResponseRecorder) envelope {
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return env
}

type courseServiceMock struct {
	modules    []models.ModuleEntry
	created    *service.CreateCourseRequest
	lastFilter models.CourseFilter
	err        error
}

func (m *courseServiceMock) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	m.lastFilter = filter
	return []models.Course{{ID: "c1"}}, models.NewPagination(filter.Page, filter.PageSize, 1), m.err
}

func (m *courseServiceMock) Get(ctx context.Context, id string) (*models.CourseDetail, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.CourseDetail{Course: models.Course{ID: id}, Modules: m.modules}, nil
}

func (m *courseServiceMock) Create(ctx context.Context, req service.CreateCourseRequest) (*models.CourseDetail, error) {
	m.created = &req
	if m.err != nil {
		return nil, m.err
	}
	return &models.CourseDetail{Course: models.Course{ID: "c-new", Code: req.Code}}, nil
}

func (m *courseServiceMock) AddModule(ctx context.Context, courseID string, req service.ModuleRequest) (*models.ModuleEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.ModuleEntry{ID: "m-new", CourseID: courseID, Name: req.Name}, nil
}

func (m *courseServiceMock) Modules(ctx context.Context, courseID string) ([]models.ModuleEntry, error) {
	return m.modules, m.err
}

type gateMock struct {
	open          []models.ModuleEntry
	indeterminate bool
	enrollmentID  string
}

func (g *gateMock) FilterBySequentialCompletion(ctx context.Context, modules []models.ModuleEntry, enrollmentID, courseID string) ([]models.ModuleEntry, service.GateResult) {
	g.enrollmentID = enrollmentID
	return g.open, service.GateResult{Indeterminate: g.indeterminate}
}

type classroomServiceMock struct {
	lastFilter    models.ClassroomFilter
	indeterminate bool
	createErr     error
	deleteErr     error
	deleted       string
}

func (m *classroomServiceMock) Create(ctx context.Context, req service.CreateClassroomRequest) (*models.ClassroomDetail, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	examID := "exam-1"
	return &models.ClassroomDetail{Classroom: models.Classroom{ID: "cl-new", CourseID: req.CourseID}, ExamID: &examID}, nil
}

func (m *classroomServiceMock) Get(ctx context.Context, id string) (*models.ClassroomDetail, error) {
	return &models.ClassroomDetail{Classroom: models.Classroom{ID: id}}, nil
}

func (m *classroomServiceMock) List(ctx context.Context, filter models.ClassroomFilter) ([]models.ClassroomDetail, *models.Pagination, service.GateResult, error) {
	m.lastFilter = filter
	return []models.ClassroomDetail{}, models.NewPagination(filter.Page, filter.PageSize, 0), service.GateResult{Indeterminate: m.indeterminate}, nil
}

func (m *classroomServiceMock) Delete(ctx context.Context, id string) error {
	m.deleted = id
	return m.deleteErr
}

func (m *classroomServiceMock) Students(ctx context.Context, id string) ([]models.ClassroomStudentDetail, error) {
	return []models.ClassroomStudentDetail{}, nil
}

type examServiceMock struct {
	sheet     *models.ExamSheet
	addErr    error
	lastExam  string
	lastTake  string
	lastAdd   service.AddMarkRequest
	updateErr error
}

func (m *examServiceMock) Sheet(ctx context.Context, classroomID string) (*models.ExamSheet, error) {
	return m.sheet, nil
}

func (m *examServiceMock) AddMark(ctx context.Context, examID string, req service.AddMarkRequest) (*models.ExamMark, error) {
	m.lastExam = examID
	m.lastAdd = req
	if m.addErr != nil {
		return nil, m.addErr
	}
	return &models.ExamMark{ID: "mark-1", ExamID: examID, StudentID: req.StudentID}, nil
}

func (m *examServiceMock) UpdateMark(ctx context.Context, examMarkID, takeID string, req service.UpdateMarkRequest) (*models.ExamMark, error) {
	m.lastExam = examMarkID
	m.lastTake = takeID
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return &models.ExamMark{ID: examMarkID}, nil
}

type enrollmentServiceMock struct {
	transferID    string
	transfer      service.TransferRequest
	addErr        error
	statusID      string
	status        string
	eligibleFor   string
	batchID       string
	indeterminate bool
}

func (m *enrollmentServiceMock) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	return []models.EnrollmentDetail{}, models.NewPagination(filter.Page, filter.PageSize, 0), nil
}

func (m *enrollmentServiceMock) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	return &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: id}}, nil
}

func (m *enrollmentServiceMock) Enroll(ctx context.Context, req service.EnrollRequest) (*models.EnrollmentDetail, error) {
	return &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: "e-new", StudentID: req.StudentID}}, nil
}

func (m *enrollmentServiceMock) Transfer(ctx context.Context, enrollmentID string, req service.TransferRequest) (*models.EnrollmentDetail, error) {
	m.transferID = enrollmentID
	m.transfer = req
	return &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: enrollmentID, BatchID: req.BatchID}}, nil
}

func (m *enrollmentServiceMock) AddToClassroom(ctx context.Context, enrollmentID string, req service.AddToClassroomRequest) (*models.ClassroomStudent, error) {
	if m.addErr != nil {
		return nil, m.addErr
	}
	return &models.ClassroomStudent{ID: "membership-1", EnrollmentID: enrollmentID, ClassroomID: req.ClassroomID, Status: models.MembershipActive}, nil
}

func (m *enrollmentServiceMock) Memberships(ctx context.Context, enrollmentID string) ([]models.ClassroomStudent, error) {
	return []models.ClassroomStudent{}, nil
}

func (m *enrollmentServiceMock) UpdateMembershipStatus(ctx context.Context, id string, req service.UpdateMembershipStatusRequest) (*models.ClassroomStudent, error) {
	m.statusID = id
	m.status = req.Status
	return &models.ClassroomStudent{ID: id, Status: models.MembershipTransferred}, nil
}

func (m *enrollmentServiceMock) EligibleForEnrollment(ctx context.Context, enrollmentID, batchID string) ([]models.ClassroomDetail, service.GateResult, error) {
	m.eligibleFor = enrollmentID
	m.batchID = batchID
	return []models.ClassroomDetail{{Classroom: models.Classroom{ID: "cl-2"}}}, service.GateResult{Indeterminate: m.indeterminate}, nil
}

type studentServiceMock struct {
	lastFilter models.StudentFilter
	getErr     error
}

func (m *studentServiceMock) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	m.lastFilter = filter
	return []models.Student{}, models.NewPagination(filter.Page, filter.PageSize, 0), nil
}

func (m *studentServiceMock) Get(ctx context.Context, id string) (*service.StudentDetail, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &service.StudentDetail{Student: models.Student{ID: id}}, nil
}

func (m *studentServiceMock) Completion(ctx context.Context, id string) (*models.CompletionSteps, error) {
	return &models.CompletionSteps{Overall: models.StudentIncomplete}, nil
}

func (m *studentServiceMock) Create(ctx context.Context, req service.CreateStudentRequest) (*models.Student, error) {
	return &models.Student{ID: "s-new"}, nil
}

func (m *studentServiceMock) Update(ctx context.Context, id string, req service.UpdateStudentRequest) (*models.Student, error) {
	return &models.Student{ID: id}, nil
}

func (m *studentServiceMock) UpdateDocuments(ctx context.Context, id string, req service.UpdateDocumentsRequest) (*service.StudentDetail, error) {
	return &service.StudentDetail{Student: models.Student{ID: id}}, nil
}
