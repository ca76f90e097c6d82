package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Isurika-2001/university-management-system-sub001/internal/models"
)

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryExists(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND batch_id = $3")).
		WithArgs("student-1", "course-1", "batch-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND batch_id = $3")).
		WithArgs("student-1", "course-1", "batch-2").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}))

	exists, err := repo.Exists(context.Background(), "student-1", "course-1", "batch-1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists(context.Background(), "student-1", "course-1", "batch-2")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDefaultsDate(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").
		WithArgs(sqlmock.AnyArg(), "student-1", "course-1", "batch-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	enrollment := &models.Enrollment{StudentID: "student-1", CourseID: "course-1", BatchID: "batch-1"}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.False(t, enrollment.EnrollmentDate.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindDetailIncludesTransfers(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.id = $1")).
		WithArgs("enrollment-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "course_id", "batch_id", "enrollment_date", "created_at", "registration_no", "student_name", "course_code", "course_name", "batch_name"}).
			AddRow("enrollment-1", "student-1", "course-1", "batch-2", now, now, "REG-1", "Ada Lovelace", "CS", "Computing", "Feb 2024"))
	mock.ExpectQuery("FROM batch_transfers WHERE enrollment_id = \\$1 ORDER BY transferred_at ASC, seq ASC").
		WithArgs("enrollment-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "enrollment_id", "from_batch_id", "to_batch_id", "to_classroom_id", "reason", "transferred_at"}).
			AddRow("transfer-1", "enrollment-1", "batch-1", "batch-2", nil, "schedule clash", now))

	detail, err := repo.FindDetailByID(context.Background(), "enrollment-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", detail.StudentName)
	require.Len(t, detail.BatchTransfers, 1)
	assert.Equal(t, "batch-1", detail.BatchTransfers[0].FromBatchID)
	assert.Nil(t, detail.BatchTransfers[0].ToClassroomID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryAppendTransfer(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	classroomID := "room-2"
	mock.ExpectExec("INSERT INTO batch_transfers").
		WithArgs(sqlmock.AnyArg(), "enrollment-1", "batch-1", "batch-2", classroomID, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	transfer := &models.BatchTransfer{EnrollmentID: "enrollment-1", FromBatchID: "batch-1", ToBatchID: "batch-2", ToClassroomID: &classroomID}
	require.NoError(t, repo.AppendTransfer(context.Background(), transfer))
	assert.False(t, transfer.TransferredAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
