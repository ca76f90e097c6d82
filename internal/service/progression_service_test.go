package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Isurika-2001/university-management-system-sub001/internal/models"
)

func scenarioCatalog() []models.ModuleEntry {
	return []models.ModuleEntry{
		{ID: "m1", CourseID: "c1", Name: "Foundations", IsSequential: true, SequenceNumber: intPtr(1)},
		{ID: "m2", CourseID: "c1", Name: "Applied", IsSequential: true, SequenceNumber: intPtr(2)},
		{ID: "m3", CourseID: "c1", Name: "Elective"},
	}
}

func scenarioClassrooms() *fakeClassrooms {
	return newFakeClassrooms(
		models.ClassroomDetail{Classroom: models.Classroom{ID: "cl-m1", CourseID: "c1", BatchID: "b1", ModuleID: "m1"}},
		models.ClassroomDetail{Classroom: models.Classroom{ID: "cl-m2", CourseID: "c1", BatchID: "b1", ModuleID: "m2"}},
		models.ClassroomDetail{Classroom: models.Classroom{ID: "cl-m3", CourseID: "c1", BatchID: "b1", ModuleID: "m3"}},
	)
}

func moduleIDs(modules []models.ModuleEntry) []string {
	ids := make([]string, 0, len(modules))
	for _, m := range modules {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestFilterModulesSequentialScenario(t *testing.T) {
	courses := &fakeCourses{modules: map[string][]models.ModuleEntry{"c1": scenarioCatalog()}}
	members := &fakeMemberships{}
	svc := NewProgressionService(courses, scenarioClassrooms(), members, nil, zap.NewNop())
	ctx := context.Background()

	open, result := svc.FilterBySequentialCompletion(ctx, scenarioCatalog(), "e1", "c1")
	assert.False(t, result.Indeterminate)
	assert.Equal(t, []string{"m1"}, moduleIDs(open))

	m1 := members.add("cl-m1", "e1", "s1", models.MembershipActive)
	require.NoError(t, members.UpdateStatus(ctx, m1.ID, models.MembershipPass))
	open, _ = svc.FilterBySequentialCompletion(ctx, scenarioCatalog(), "e1", "c1")
	assert.Equal(t, []string{"m2"}, moduleIDs(open))

	members.add("cl-m2", "e1", "s1", models.MembershipPass)
	open, result = svc.FilterBySequentialCompletion(ctx, scenarioCatalog(), "e1", "c1")
	assert.Equal(t, 2, result.Value())
	assert.Equal(t, []string{"m1", "m2", "m3"}, moduleIDs(open))
}

func TestFilterModulesWithoutEnrollmentOpensFirstModule(t *testing.T) {
	open := FilterModules(scenarioCatalog(), scenarioCatalog(), false, 0)
	assert.Equal(t, []string{"m1"}, moduleIDs(open))
}

func TestFilterModulesSingleNextModule(t *testing.T) {
	catalog := []models.ModuleEntry{
		{ID: "a", IsSequential: true, SequenceNumber: intPtr(1)},
		{ID: "b", IsSequential: true, SequenceNumber: intPtr(2)},
		{ID: "c", IsSequential: true, SequenceNumber: intPtr(3)},
		{ID: "d", IsSequential: true, SequenceNumber: intPtr(4)},
		{ID: "x"},
	}
	for highest := 1; highest < 4; highest++ {
		open := FilterModules(catalog, catalog, true, highest)
		require.Len(t, open, 1)
		assert.Equal(t, highest+1, open[0].Sequence())
	}
}

func TestFilterModulesFullUnlock(t *testing.T) {
	catalog := scenarioCatalog()
	for _, highest := range []int{2, 3, 10} {
		assert.Equal(t, catalog, FilterModules(catalog, catalog, true, highest))
	}
}

func TestFilterModulesMissingNextModuleReturnsEmpty(t *testing.T) {
	catalog := scenarioCatalog()
	candidates := []models.ModuleEntry{catalog[0], catalog[2]}
	open := FilterModules(candidates, catalog, true, 1)
	assert.NotNil(t, open)
	assert.Empty(t, open)
}

func TestFilterModulesPassthroughWithoutSequentialModules(t *testing.T) {
	catalog := []models.ModuleEntry{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}}
	for _, enrolled := range []bool{true, false} {
		for _, highest := range []int{0, 1, 5} {
			assert.Equal(t, catalog, FilterModules(catalog, catalog, enrolled, highest))
		}
	}

	svc := NewProgressionService(&fakeCourses{modules: map[string][]models.ModuleEntry{"c2": catalog}}, newFakeClassrooms(), &fakeMemberships{}, nil, nil)
	open, result := svc.FilterBySequentialCompletion(context.Background(), catalog, "", "c2")
	assert.Equal(t, catalog, open)
	assert.False(t, result.Indeterminate)
}

func TestHighestCompletedIsMonotonicAndBounded(t *testing.T) {
	catalog := scenarioCatalog()
	classrooms := []models.Classroom{
		{ID: "cl-m1", ModuleID: "m1"},
		{ID: "cl-m2", ModuleID: "m2"},
		{ID: "cl-m3", ModuleID: "m3"},
	}
	history := []models.ClassroomStudent{
		{ClassroomID: "cl-m3", Status: models.MembershipPass},
		{ClassroomID: "cl-m1", Status: models.MembershipPass},
		{ClassroomID: "cl-m2", Status: models.MembershipFail},
		{ClassroomID: "cl-m2", Status: models.MembershipPass},
		{ClassroomID: "unknown", Status: models.MembershipPass},
	}
	previous := 0
	for i := range history {
		highest := HighestCompleted(catalog, classrooms, history[:i+1])
		assert.GreaterOrEqual(t, highest, previous)
		assert.LessOrEqual(t, highest, MaxSequence(catalog))
		previous = highest
	}
	assert.Equal(t, 2, previous)
}

func TestHighestCompletedSequentialDegradesOnLookupFailure(t *testing.T) {
	metrics := NewMetricsService()
	classrooms := scenarioClassrooms()
	classrooms.listErr = errors.New("connection reset")
	courses := &fakeCourses{modules: map[string][]models.ModuleEntry{"c1": scenarioCatalog()}}
	members := &fakeMemberships{}
	members.add("cl-m1", "e1", "s1", models.MembershipPass)
	svc := NewProgressionService(courses, classrooms, members, metrics, zap.NewNop())

	result := svc.HighestCompletedSequential(context.Background(), "e1", "c1")
	assert.True(t, result.Indeterminate)
	assert.Error(t, result.Err)
	assert.Equal(t, 0, result.Value())

	open, _ := svc.FilterBySequentialCompletion(context.Background(), scenarioCatalog(), "e1", "c1")
	assert.Equal(t, []string{"m1"}, moduleIDs(open))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.gateDegraded))
}

func TestFilterBySequentialCompletionFallsBackToCandidatesWhenCatalogFails(t *testing.T) {
	courses := &fakeCourses{modulesErr: errors.New("cache and db down")}
	svc := NewProgressionService(courses, scenarioClassrooms(), &fakeMemberships{}, nil, nil)

	open, result := svc.FilterBySequentialCompletion(context.Background(), scenarioCatalog(), "e1", "c1")
	assert.True(t, result.Indeterminate)
	assert.Equal(t, []string{"m1"}, moduleIDs(open))
}
