package sessions

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/roster/pkg/auth"
	"github.com/platinummonkey/roster/pkg/members"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert stores a session and fills in its id
func (r *PostgresRepository) Insert(ctx context.Context, s *auth.Session) error {
	query := `
		INSERT INTO sessions (member_id, token_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING session_id
	`
	err := r.db.QueryRowContext(ctx, query, s.MemberID, s.TokenHash, s.CreatedAt, s.ExpiresAt).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// FindMemberByTokenHash joins a live session to its member
func (r *PostgresRepository) FindMemberByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*auth.Member, error) {
	query := `
		SELECT ` + members.Columns("m") + `
		FROM members m
		INNER JOIN sessions s ON m.member_id = s.member_id
		WHERE s.token_hash = $1 AND s.expires_at > $2
	`
	m, err := members.Scan(r.db.QueryRowContext(ctx, query, tokenHash, now))
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	return m, nil
}

// DeleteByTokenHash removes the session with the given digest, if any
func (r *PostgresRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions with expires_at at or before now
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}
