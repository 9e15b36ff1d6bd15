package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindRefreshToken(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "user_id", "token", "expires_at", "created_at", "revoked_at", "ip_address", "user_agent"}).
		AddRow("rt-1", "user-1", "opaque", now.Add(time.Hour), now, nil, "10.0.0.1", "cli")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, token, expires_at, created_at, revoked_at, ip_address, user_agent
        FROM refresh_tokens WHERE token = $1`)).
		WithArgs("opaque").
		WillReturnRows(rows)

	rt, err := repo.FindRefreshToken(context.Background(), "opaque")
	require.NoError(t, err)
	assert.Equal(t, "rt-1", rt.ID)
	assert.Nil(t, rt.RevokedAt)
	assert.True(t, rt.Live(now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeRefreshTokenStampsOnlyLiveSessions(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	revokedAt := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE refresh_tokens SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`)).
		WithArgs("rt-1", revokedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RevokeRefreshToken(context.Background(), "rt-1", revokedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeUserRefreshTokens(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE refresh_tokens SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`)).
		WithArgs("user-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.RevokeUserRefreshTokens(context.Background(), "user-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
