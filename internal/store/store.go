// Package store provides PostgreSQL persistence for canonical job records
// and request logs.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool. Connections are scoped per
// operation by the pool; no long-lived transactions are held.
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database.
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// EnsureSchema creates the tables this service owns if they do not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS jobs (
			fingerprint       TEXT PRIMARY KEY,
			title             TEXT NOT NULL,
			company           TEXT NOT NULL,
			location          TEXT NOT NULL DEFAULT '',
			description       TEXT NOT NULL DEFAULT '',
			url               TEXT NOT NULL DEFAULT '',
			job_type          TEXT NOT NULL DEFAULT '',
			is_remote         BOOLEAN,
			posted_at         TIMESTAMPTZ,
			source_id         TEXT NOT NULL,
			source_native_key TEXT NOT NULL,
			first_seen_at     TIMESTAMPTZ NOT NULL,
			last_seen_at      TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create jobs table: %w", err)
	}

	_, err = db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS request_logs (
			request_id   UUID PRIMARY KEY,
			method       TEXT NOT NULL,
			path         TEXT NOT NULL,
			query_params JSONB,
			client_ip    TEXT NOT NULL DEFAULT '',
			status       INT NOT NULL,
			duration_ms  DOUBLE PRECISION NOT NULL,
			user_agent   TEXT NOT NULL DEFAULT '',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create request_logs table: %w", err)
	}

	return nil
}
