package members

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/roster/pkg/auth"
)

func newMockRepository(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

func memberRows() *sqlmock.Rows {
	return sqlmock.NewRows(columns)
}

func TestColumns(t *testing.T) {
	assert.Equal(t,
		"member_id, roll_no, name, email, year, hostel, discord_id, track, github_user, role, created_at, updated_at",
		Columns(""))
	assert.Contains(t, Columns("m"), "m.member_id, m.roll_no")
	assert.Contains(t, Columns("m"), "m.updated_at")
}

func TestPostgresRepository_GetByGitHubUser(t *testing.T) {
	repo, mock, db := newMockRepository(t)
	defer db.Close()
	ctx := context.Background()
	now := time.Now()

	t.Run("found", func(t *testing.T) {
		rows := memberRows().AddRow(
			int64(3), "AM.EN.U4CSE21001", "Mona", "mona@example.com", int64(2), nil,
			nil, "Systems", "octocat", "Admin", now, now,
		)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM members WHERE github_user = $1`)).
			WithArgs("octocat").
			WillReturnRows(rows)

		m, err := repo.GetByGitHubUser(ctx, "octocat")
		require.NoError(t, err)
		assert.Equal(t, int64(3), m.ID)
		assert.Equal(t, "Mona", m.Name)
		assert.Equal(t, auth.RoleAdmin, m.Role)
		require.NotNil(t, m.GitHubUser)
		assert.Equal(t, "octocat", *m.GitHubUser)
		require.NotNil(t, m.Year)
		assert.Equal(t, int32(2), *m.Year)
		assert.Nil(t, m.Hostel)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM members WHERE github_user = $1`)).
			WithArgs("ghost").
			WillReturnRows(memberRows())

		_, err := repo.GetByGitHubUser(ctx, "ghost")
		assert.ErrorIs(t, err, ErrMemberNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM members WHERE github_user = $1`)).
			WithArgs("octocat").
			WillReturnError(errors.New("connection reset"))

		_, err := repo.GetByGitHubUser(ctx, "octocat")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrMemberNotFound)
		assert.Contains(t, err.Error(), "failed to get member by github user")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRepository_GetByID(t *testing.T) {
	repo, mock, db := newMockRepository(t)
	defer db.Close()
	now := time.Now()

	rows := memberRows().AddRow(
		int64(9), nil, "Hubot", "hubot@example.com", nil, nil,
		nil, nil, nil, "Member", now, now,
	)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM members WHERE member_id = $1`)).
		WithArgs(int64(9)).
		WillReturnRows(rows)

	m, err := repo.GetByID(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleMember, m.Role)
	assert.Nil(t, m.GitHubUser)
	assert.Nil(t, m.RollNo)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Create(t *testing.T) {
	repo, mock, db := newMockRepository(t)
	defer db.Close()
	ctx := context.Background()
	now := time.Now()
	gh := "octocat"

	t.Run("success", func(t *testing.T) {
		m := &auth.Member{Name: "Mona", Email: "mona@example.com", GitHubUser: &gh, Role: auth.RoleMember}

		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO members (name, email, github_user, role)`)).
			WithArgs("Mona", "mona@example.com", &gh, auth.RoleMember).
			WillReturnRows(sqlmock.NewRows([]string{"member_id", "created_at", "updated_at"}).AddRow(int64(11), now, now))

		require.NoError(t, repo.Create(ctx, m))
		assert.Equal(t, int64(11), m.ID)
		assert.Equal(t, now, m.CreatedAt)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation", func(t *testing.T) {
		m := &auth.Member{Name: "Mona", Email: "mona@example.com", GitHubUser: &gh, Role: auth.RoleMember}

		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO members`)).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "members_github_user_key"})

		err := repo.Create(ctx, m)
		assert.ErrorIs(t, err, ErrDuplicateMember)
		assert.Contains(t, err.Error(), "members_github_user_key")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
