package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-admissions-api/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestOfferRespondIfPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOfferRepository(db)
	respondedAt := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE offers SET status = $2, responded_at = $3, updated_at = $3 WHERE id = $1 AND status = $4`)).
		WithArgs("offer-1", models.OfferStatusAccepted, respondedAt, models.OfferStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := repo.RespondIfPending(context.Background(), "offer-1", models.OfferStatusAccepted, respondedAt)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferRespondIfPendingAlreadyResponded(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOfferRepository(db)
	respondedAt := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE offers SET status = $2`)).
		WithArgs("offer-1", models.OfferStatusRejected, respondedAt, models.OfferStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	affected, err := repo.RespondIfPending(context.Background(), "offer-1", models.OfferStatusRejected, respondedAt)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferSetLetterURL(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOfferRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE offers SET offer_letter_url = $2, updated_at = $3 WHERE id = $1`)).
		WithArgs("offer-1", "offer-letters/offer_app-1.pdf", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetLetterURL(context.Background(), "offer-1", "offer_letter_url", "offer-letters/offer_app-1.pdf")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferSetLetterURLUnknownColumn(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewOfferRepository(db)

	err := repo.SetLetterURL(context.Background(), "offer-1", "receipt_url", "x")
	require.Error(t, err)
}
