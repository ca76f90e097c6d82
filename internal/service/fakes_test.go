package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/lib/pq"

	"github.com/Isurika-2001/university-management-system-sub001/internal/models"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func floatPtr(v float64) *float64 { return &v }

func uniqueViolation(constraint string) error {
	return fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: constraint})
}

type fakeCourses struct {
	courses    map[string]models.Course
	modules    map[string][]models.ModuleEntry
	modulesErr error
}

func (f *fakeCourses) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := f.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCourses) FindModule(ctx context.Context, courseID, moduleID string) (*models.ModuleEntry, error) {
	for _, m := range f.modules[courseID] {
		if m.ID == moduleID {
			module := m
			return &module, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCourses) Modules(ctx context.Context, courseID string) ([]models.ModuleEntry, error) {
	if f.modulesErr != nil {
		return nil, f.modulesErr
	}
	return f.modules[courseID], nil
}

type fakeBatches struct {
	batches map[string]models.Batch
}

func (f *fakeBatches) FindByID(ctx context.Context, id string) (*models.Batch, error) {
	if b, ok := f.batches[id]; ok {
		return &b, nil
	}
	return nil, sql.ErrNoRows
}

type fakeClassrooms struct {
	items   map[string]models.ClassroomDetail
	order   []string
	deleted []string
	seq     int
	listErr error
}

func newFakeClassrooms(items ...models.ClassroomDetail) *fakeClassrooms {
	f := &fakeClassrooms{items: make(map[string]models.ClassroomDetail)}
	for _, item := range items {
		f.items[item.ID] = item
		f.order = append(f.order, item.ID)
	}
	return f
}

func (f *fakeClassrooms) all(filter models.ClassroomFilter) []models.ClassroomDetail {
	var result []models.ClassroomDetail
	for _, id := range f.order {
		item, ok := f.items[id]
		if !ok {
			continue
		}
		if filter.CourseID != "" && item.CourseID != filter.CourseID {
			continue
		}
		if filter.BatchID != "" && item.BatchID != filter.BatchID {
			continue
		}
		if filter.ModuleID != "" && item.ModuleID != filter.ModuleID {
			continue
		}
		result = append(result, item)
	}
	return result
}

func (f *fakeClassrooms) List(ctx context.Context, filter models.ClassroomFilter) ([]models.ClassroomDetail, int, error) {
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	items := f.all(filter)
	return items, len(items), nil
}

func (f *fakeClassrooms) ListAll(ctx context.Context, filter models.ClassroomFilter) ([]models.ClassroomDetail, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.all(filter), nil
}

func (f *fakeClassrooms) ListByCourse(ctx context.Context, courseID string) ([]models.Classroom, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var result []models.Classroom
	for _, item := range f.all(models.ClassroomFilter{CourseID: courseID}) {
		result = append(result, item.Classroom)
	}
	return result, nil
}

func (f *fakeClassrooms) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	if item, ok := f.items[id]; ok {
		return &item.Classroom, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeClassrooms) FindDetailByID(ctx context.Context, id string) (*models.ClassroomDetail, error) {
	if item, ok := f.items[id]; ok {
		return &item, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeClassrooms) FindByTriple(ctx context.Context, courseID, batchID, moduleID string) (*models.Classroom, error) {
	for _, item := range f.items {
		if item.CourseID == courseID && item.BatchID == batchID && item.ModuleID == moduleID {
			return &item.Classroom, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeClassrooms) ExistsByName(ctx context.Context, name string) (bool, error) {
	for _, item := range f.items {
		if item.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeClassrooms) Create(ctx context.Context, classroom *models.Classroom) error {
	if _, err := f.FindByTriple(ctx, classroom.CourseID, classroom.BatchID, classroom.ModuleID); err == nil {
		return uniqueViolation("classrooms_course_batch_module_key")
	}
	f.seq++
	classroom.ID = fmt.Sprintf("classroom-%d", f.seq)
	f.items[classroom.ID] = models.ClassroomDetail{Classroom: *classroom}
	f.order = append(f.order, classroom.ID)
	return nil
}

func (f *fakeClassrooms) Delete(ctx context.Context, id string) error {
	delete(f.items, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeClassrooms) ListWithoutExam(ctx context.Context, limit int) ([]models.Classroom, error) {
	var result []models.Classroom
	for _, id := range f.order {
		item, ok := f.items[id]
		if ok && item.ExamID == nil {
			result = append(result, item.Classroom)
		}
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

type fakeMemberships struct {
	items     []*models.ClassroomStudent
	seq       int
	createErr error
	updateErr error
	listErr   error
	updates   []models.MembershipStatus
}

func (f *fakeMemberships) add(classroomID, enrollmentID, studentID string, status models.MembershipStatus) *models.ClassroomStudent {
	f.seq++
	m := &models.ClassroomStudent{
		ID:           fmt.Sprintf("membership-%d", f.seq),
		ClassroomID:  classroomID,
		EnrollmentID: enrollmentID,
		StudentID:    studentID,
		Status:       status,
	}
	f.items = append(f.items, m)
	return m
}

func (f *fakeMemberships) Create(ctx context.Context, membership *models.ClassroomStudent) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, m := range f.items {
		if m.ClassroomID == membership.ClassroomID && m.EnrollmentID == membership.EnrollmentID {
			return uniqueViolation("classroom_students_classroom_enrollment_key")
		}
	}
	created := f.add(membership.ClassroomID, membership.EnrollmentID, membership.StudentID, membership.Status)
	membership.ID = created.ID
	return nil
}

func (f *fakeMemberships) Delete(ctx context.Context, id string) error {
	for i, m := range f.items {
		if m.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeMemberships) FindByID(ctx context.Context, id string) (*models.ClassroomStudent, error) {
	for _, m := range f.items {
		if m.ID == id {
			found := *m
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeMemberships) FindByClassroomAndEnrollment(ctx context.Context, classroomID, enrollmentID string) (*models.ClassroomStudent, error) {
	for _, m := range f.items {
		if m.ClassroomID == classroomID && m.EnrollmentID == enrollmentID {
			found := *m
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeMemberships) FindCurrentByClassroomAndStudent(ctx context.Context, classroomID, studentID string) (*models.ClassroomStudent, error) {
	for i := len(f.items) - 1; i >= 0; i-- {
		m := f.items[i]
		if m.ClassroomID == classroomID && m.StudentID == studentID && m.Status != models.MembershipTransferred {
			found := *m
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeMemberships) ListByEnrollment(ctx context.Context, enrollmentID string, statuses ...models.MembershipStatus) ([]models.ClassroomStudent, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var result []models.ClassroomStudent
	for _, m := range f.items {
		if m.EnrollmentID != enrollmentID {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, m.Status) {
			continue
		}
		result = append(result, *m)
	}
	return result, nil
}

func containsStatus(statuses []models.MembershipStatus, status models.MembershipStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (f *fakeMemberships) ListByClassroom(ctx context.Context, classroomID string) ([]models.ClassroomStudentDetail, error) {
	var result []models.ClassroomStudentDetail
	for _, m := range f.items {
		if m.ClassroomID == classroomID {
			result = append(result, models.ClassroomStudentDetail{ClassroomStudent: *m, StudentName: "Student " + m.StudentID})
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].StudentID < result[j].StudentID })
	return result, nil
}

func (f *fakeMemberships) CountByClassroom(ctx context.Context, classroomID string) (int, error) {
	count := 0
	for _, m := range f.items {
		if m.ClassroomID == classroomID {
			count++
		}
	}
	return count, nil
}

func (f *fakeMemberships) UpdateStatus(ctx context.Context, id string, status models.MembershipStatus) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	for _, m := range f.items {
		if m.ID == id {
			m.Status = status
			f.updates = append(f.updates, status)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeMemberships) status(id string) models.MembershipStatus {
	for _, m := range f.items {
		if m.ID == id {
			return m.Status
		}
	}
	return ""
}
