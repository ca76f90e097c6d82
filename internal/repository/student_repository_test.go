package repository

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Isurika-2001/university-management-system-sub001/internal/models"
)

func newStudentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestStudentRepositoryListWithSearch(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "registration_no", "first_name", "last_name", "nic", "dob", "address", "mobile", "home_contact", "email",
		"qualification", "emergency_name", "emergency_relationship", "emergency_contact", "status", "created_at", "updated_at"}).
		AddRow("student-1", "REG-1", "Ada", "Lovelace", "901234567V", nil, "Street", "0771234567", nil, "ada@example.com", nil, nil, nil, nil, "pending", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE (registration_no ILIKE $1 OR first_name ILIKE $1 OR last_name ILIKE $1 OR nic ILIKE $1) AND status = $2 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("%ada%", "pending").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE")).
		WithArgs("%ada%", "pending").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{Search: "ada", Status: models.StudentPending})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "Ada Lovelace", students[0].FullName())
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	args := make([]driver.Value, 17)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	mock.ExpectExec("INSERT INTO students").WithArgs(args...).WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{RegistrationNo: "REG-1", FirstName: "Ada"}
	require.NoError(t, repo.Create(context.Background(), student))
	assert.Equal(t, models.StudentPending, student.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpsertDocuments(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO student_documents .* ON CONFLICT").WithArgs("student-1", "doc-1", true).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO student_documents .* ON CONFLICT").WithArgs("student-1", "doc-2", false).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.UpsertDocuments(context.Background(), "student-1", []models.StudentDocument{
		{DocumentID: "doc-1", Provided: true},
		{DocumentID: "doc-2", Provided: false},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpsertDocumentsRollsBack(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO student_documents").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.UpsertDocuments(context.Background(), "student-1", []models.StudentDocument{{DocumentID: "doc-1", Provided: true}})
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}
