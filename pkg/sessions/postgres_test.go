package sessions

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/roster/pkg/auth"
)

func newMockRepository(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

func TestPostgresRepository_Insert(t *testing.T) {
	repo, mock, db := newMockRepository(t)
	defer db.Close()

	now := time.Now()
	s := &auth.Session{MemberID: 42, TokenHash: "abc123", CreatedAt: now, ExpiresAt: now.Add(Lifetime)}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO sessions (member_id, token_hash, created_at, expires_at)`)).
		WithArgs(int64(42), "abc123", now, now.Add(Lifetime)).
		WillReturnRows(sqlmock.NewRows([]string{"session_id"}).AddRow(int64(5)))

	require.NoError(t, repo.Insert(context.Background(), s))
	assert.Equal(t, int64(5), s.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_FindMemberByTokenHash(t *testing.T) {
	repo, mock, db := newMockRepository(t)
	defer db.Close()
	ctx := context.Background()
	now := time.Now()

	query := regexp.QuoteMeta(`INNER JOIN sessions s ON m.member_id = s.member_id
		WHERE s.token_hash = $1 AND s.expires_at > $2`)

	t.Run("live session", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{
			"member_id", "roll_no", "name", "email", "year", "hostel",
			"discord_id", "track", "github_user", "role", "created_at", "updated_at",
		}).AddRow(int64(42), nil, "Mona", "mona@example.com", nil, nil, nil, nil, "octocat", "Member", now, now)

		mock.ExpectQuery(query).WithArgs("digest", now).WillReturnRows(rows)

		m, err := repo.FindMemberByTokenHash(ctx, "digest", now)
		require.NoError(t, err)
		assert.Equal(t, int64(42), m.ID)
		assert.Equal(t, auth.RoleMember, m.Role)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no match", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("digest", now).WillReturnError(sql.ErrNoRows)

		_, err := repo.FindMemberByTokenHash(ctx, "digest", now)
		assert.ErrorIs(t, err, ErrSessionNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("digest", now).WillReturnError(errors.New("timeout"))

		_, err := repo.FindMemberByTokenHash(ctx, "digest", now)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrSessionNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRepository_DeleteByTokenHash(t *testing.T) {
	repo, mock, db := newMockRepository(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM sessions WHERE token_hash = $1`)).
		WithArgs("digest").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.DeleteByTokenHash(context.Background(), "digest"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_DeleteExpired(t *testing.T) {
	repo, mock, db := newMockRepository(t)
	defer db.Close()
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM sessions WHERE expires_at <= $1`)).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	removed, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)
	require.NoError(t, mock.ExpectationsWereMet())
}
