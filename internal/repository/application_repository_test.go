package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-admissions-api/internal/models"
)

func TestApplicationUpdateStatusIf(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApplicationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE applications SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`)).
		WithArgs("app-1", models.ApplicationStatusSubmitted, models.ApplicationStatusUnderReview, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := repo.UpdateStatusIf(context.Background(), "app-1", models.ApplicationStatusSubmitted, models.ApplicationStatusUnderReview)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationUpdateStatusIfStale(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApplicationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE applications SET status = $3`)).
		WithArgs("app-1", models.ApplicationStatusSubmitted, models.ApplicationStatusUnderReview, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	affected, err := repo.UpdateStatusIf(context.Background(), "app-1", models.ApplicationStatusSubmitted, models.ApplicationStatusUnderReview)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationForceStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApplicationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE applications SET status = $2, updated_at = $3 WHERE id = $1`)).
		WithArgs("app-1", models.ApplicationStatusEnrolled, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ForceStatus(context.Background(), "app-1", models.ApplicationStatusEnrolled)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationSetDocumentFlags(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewApplicationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE applications SET admission_letter_generated = $2, receipt_generated = $3, updated_at = $4 WHERE id = $1`)).
		WithArgs("app-1", true, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetDocumentFlags(context.Background(), "app-1", true, false)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
