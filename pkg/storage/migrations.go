package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the schema for members, sessions and API keys
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create role_type enum",
			SQL: `
				DO $$ BEGIN
					CREATE TYPE role_type AS ENUM ('Admin', 'Member', 'Bot');
				EXCEPTION
					WHEN duplicate_object THEN NULL;
				END $$;
			`,
		},
		{
			Version:     2,
			Description: "Create members table",
			SQL: `
				CREATE TABLE IF NOT EXISTS members (
					member_id BIGSERIAL PRIMARY KEY,
					roll_no VARCHAR(32) UNIQUE,
					name TEXT NOT NULL,
					email TEXT NOT NULL UNIQUE,
					year INT,
					hostel TEXT,
					discord_id TEXT UNIQUE,
					track TEXT,
					github_user TEXT UNIQUE,
					role role_type NOT NULL DEFAULT 'Member',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     3,
			Description: "Create sessions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS sessions (
					session_id BIGSERIAL PRIMARY KEY,
					member_id BIGINT NOT NULL REFERENCES members(member_id) ON DELETE CASCADE,
					token_hash CHAR(64) NOT NULL UNIQUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMPTZ NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_sessions_member_id ON sessions(member_id);
				CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
			`,
		},
		{
			Version:     4,
			Description: "Create api_keys table",
			SQL: `
				CREATE TABLE IF NOT EXISTS api_keys (
					api_key_id BIGSERIAL PRIMARY KEY,
					name TEXT NOT NULL,
					key_hash TEXT NOT NULL,
					created_by BIGINT REFERENCES members(member_id) ON DELETE SET NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					last_used_at TIMESTAMPTZ
				);
			`,
		},
	}
}

// RunMigrations applies pending migrations, each in its own transaction
func RunMigrations(ctx context.Context, db *sql.DB, logger logrus.FieldLogger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		logger.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		}).Info("running migration")

		if err := apply(ctx, db, migration); err != nil {
			return err
		}
	}

	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	versions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		versions[version] = true
	}
	return versions, rows.Err()
}

func apply(ctx context.Context, db *sql.DB, migration Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Description, err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
		migration.Version, migration.Description,
	); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
	}
	return nil
}
