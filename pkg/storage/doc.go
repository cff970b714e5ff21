// Package storage opens the Postgres pool and Redis client and owns the
// schema migrations for members, sessions and API keys.
//
//	db, err := storage.OpenPostgres(ctx, storage.ConnectionConfig{URL: url, MaxConns: 10})
//	err = storage.RunMigrations(ctx, db, logger)
//
// Repositories live with their packages (members, sessions, apikeys).
package storage
