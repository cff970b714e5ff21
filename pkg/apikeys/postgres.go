package apikeys

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/roster/pkg/auth"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert stores a key and fills in its id
func (r *PostgresRepository) Insert(ctx context.Context, key *auth.APIKey) error {
	query := `
		INSERT INTO api_keys (name, key_hash, created_by, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING api_key_id
	`
	err := r.db.QueryRowContext(ctx, query, key.Name, key.KeyHash, key.CreatedBy, key.CreatedAt).Scan(&key.ID)
	if err != nil {
		return fmt.Errorf("failed to insert api key: %w", err)
	}
	return nil
}

// ListAll returns every stored key, oldest first
func (r *PostgresRepository) ListAll(ctx context.Context) ([]auth.APIKey, error) {
	query := `
		SELECT api_key_id, name, key_hash, created_by, created_at, last_used_at
		FROM api_keys
		ORDER BY api_key_id ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	var keys []auth.APIKey
	for rows.Next() {
		var key auth.APIKey
		var createdBy sql.NullInt64
		var lastUsed sql.NullTime
		if err := rows.Scan(&key.ID, &key.Name, &key.KeyHash, &createdBy, &key.CreatedAt, &lastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		if createdBy.Valid {
			key.CreatedBy = &createdBy.Int64
		}
		if lastUsed.Valid {
			key.LastUsedAt = &lastUsed.Time
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate api keys: %w", err)
	}

	return keys, nil
}

// Delete removes a key by id, if present
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM api_keys WHERE api_key_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	return nil
}

// TouchLastUsed records when a key was last presented
func (r *PostgresRepository) TouchLastUsed(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = $1 WHERE api_key_id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("failed to update api key last used: %w", err)
	}
	return nil
}
