package service

import (
	"strings"

	"github.com/Isurika-2001/university-management-system-sub001/internal/models"
)

func present(value string) bool {
	return strings.TrimSpace(value) != ""
}

func presentPtr(value *string) bool {
	return value != nil && present(*value)
}

// ComputeCompletionStatus folds the five registration steps of a student
// into an overall status. Only documents flagged as required count.
func ComputeCompletionStatus(student models.Student, enrollments int, catalog []models.RequiredDocument, provided []models.StudentDocument) models.CompletionSteps {
	steps := models.CompletionSteps{
		PersonalDetails: present(student.FirstName) && present(student.LastName) && present(student.NIC) &&
			student.DOB != nil && present(student.Address) && present(student.Mobile),
		Enrollment:      enrollments > 0,
		AcademicDetails: presentPtr(student.Qualification),
		EmergencyContact: presentPtr(student.EmergencyName) && presentPtr(student.EmergencyRelationship) &&
			presentPtr(student.EmergencyContact),
	}

	supplied := make(map[string]bool, len(provided))
	for _, doc := range provided {
		if doc.Provided {
			supplied[doc.DocumentID] = true
		}
	}
	steps.Documents = true
	for _, doc := range catalog {
		if doc.IsRequired && !supplied[doc.ID] {
			steps.Documents = false
			break
		}
	}

	switch {
	case steps.PersonalDetails && steps.Enrollment && steps.AcademicDetails && steps.Documents && steps.EmergencyContact:
		steps.Overall = models.StudentCompleted
	case steps.PersonalDetails && steps.Enrollment:
		steps.Overall = models.StudentIncomplete
	default:
		steps.Overall = models.StudentPending
	}
	return steps
}

// resolveStudentStatus keeps a manual hold in place of the computed status.
func resolveStudentStatus(current, computed models.StudentStatus) models.StudentStatus {
	if current == models.StudentHold {
		return models.StudentHold
	}
	return computed
}
