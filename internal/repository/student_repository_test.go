package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-admissions-api/internal/models"
)

func enrollingStudent() *models.Student {
	now := time.Now().UTC()
	return &models.Student{
		ApplicationID:      "app-1",
		StudentNo:          "SK20260042",
		InstitutionalEmail: "lina.karim@student.skyline.edu",
		ProgramID:          "prog-1",
		StartDate:          now,
		ExpectedGradDate:   now.AddDate(3, 0, 0),
	}
}

func TestCreateEnrolled(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO students`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE applications SET status`).
		WithArgs("app-1", models.ApplicationStatusPaymentSubmitted, models.ApplicationStatusEnrolled, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	student := enrollingStudent()
	err := repo.CreateEnrolled(context.Background(), student, models.ApplicationStatusPaymentSubmitted)
	require.NoError(t, err)

	assert.NotEmpty(t, student.ID)
	assert.Equal(t, models.EnrollmentStatusActive, student.EnrollmentStatus)
	assert.Equal(t, models.LMSSyncPending, student.LMSSyncStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEnrolledStatusConflictRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO students`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE applications SET status`).
		WithArgs("app-1", models.ApplicationStatusPaymentSubmitted, models.ApplicationStatusEnrolled, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.CreateEnrolled(context.Background(), enrollingStudent(), models.ApplicationStatusPaymentSubmitted)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStatusConflict))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEnrolledUniqueViolationRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO students`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "students_application_id_key"})
	mock.ExpectRollback()

	err := repo.CreateEnrolled(context.Background(), enrollingStudent(), models.ApplicationStatusPaymentSubmitted)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err, "students_application_id_key"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmailExists(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStudentRepository(db)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("lina.karim@student.skyline.edu").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.EmailExists(context.Background(), "lina.karim@student.skyline.edu")
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	base := &pq.Error{Code: "23505", Constraint: "students_institutional_email_key"}

	assert.True(t, IsUniqueViolation(base, ""))
	assert.True(t, IsUniqueViolation(base, "students_institutional_email_key"))
	assert.False(t, IsUniqueViolation(base, "students_application_id_key"))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}, ""))
	assert.False(t, IsUniqueViolation(errors.New("plain"), ""))
	assert.False(t, IsUniqueViolation(nil, ""))
}
