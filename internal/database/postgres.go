// Package database opens the PostgreSQL pool and creates the import schema.
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pool and verifies it with a ping
func Connect(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return pool, nil
}

var migrations = []struct {
	name  string
	query string
}{
	{
		name: "staging_data",
		query: `
	CREATE TABLE IF NOT EXISTS staging_data (
		id UUID PRIMARY KEY,
		filename VARCHAR(255) NOT NULL,
		module VARCHAR(64) NOT NULL,
		record_count INTEGER NOT NULL,
		data jsonb NOT NULL,
		status VARCHAR(20) NOT NULL CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
		checksum VARCHAR(32),
		errors jsonb NOT NULL DEFAULT '[]'::jsonb,
		created_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ
	);`,
	},
	{
		name: "import_logs",
		query: `
	CREATE TABLE IF NOT EXISTS import_logs (
		id UUID PRIMARY KEY,
		seq BIGSERIAL NOT NULL,
		staging_id UUID REFERENCES staging_data(id) ON DELETE SET NULL,
		filename VARCHAR(255) NOT NULL,
		module VARCHAR(64) NOT NULL,
		endpoint VARCHAR(255) NOT NULL,
		method VARCHAR(10) NOT NULL,
		record_count INTEGER NOT NULL,
		success_count INTEGER NOT NULL,
		failure_count INTEGER NOT NULL,
		status VARCHAR(20) NOT NULL CHECK (status IN ('success', 'failed', 'processing')),
		erpnext_response jsonb,
		errors jsonb,
		response_time BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		CHECK (success_count + failure_count = record_count)
	);`,
	},
	{
		name:  "import_logs_seq",
		query: `ALTER TABLE import_logs ADD COLUMN IF NOT EXISTS seq BIGSERIAL NOT NULL;`,
	},
	{
		name:  "import_logs_created_at_idx",
		query: `CREATE INDEX IF NOT EXISTS import_logs_created_at_idx ON import_logs (created_at DESC);`,
	},
	{
		name:  "import_logs_staging_id_idx",
		query: `CREATE INDEX IF NOT EXISTS import_logs_staging_id_idx ON import_logs (staging_id, seq);`,
	},
	{
		name: "settings",
		query: `
	CREATE TABLE IF NOT EXISTS settings (
		key VARCHAR(100) PRIMARY KEY,
		value TEXT NOT NULL,
		description TEXT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	},
}

// Migrate creates the tables when they do not exist
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, m := range migrations {
		if _, err := pool.Exec(ctx, m.query); err != nil {
			return fmt.Errorf("error creating %s: %w", m.name, err)
		}
	}
	return nil
}
