package database

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// migration is one schema step, applied in order and tracked in
// schema_migrations.
type migration struct {
	version string
	sql     string
}

var migrations = []migration{
	{
		version: "001_sources",
		sql: `
			CREATE TABLE IF NOT EXISTS sources (
				id UUID PRIMARY KEY,
				name TEXT NOT NULL,
				url TEXT NOT NULL,
				mode TEXT NOT NULL,
				health_status TEXT NOT NULL DEFAULT 'healthy',
				consecutive_failures INTEGER NOT NULL DEFAULT 0,
				last_fetched_at TIMESTAMPTZ,
				last_error_at TIMESTAMPTZ,
				last_error TEXT NOT NULL DEFAULT '',
				active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)
		`,
	},
	{
		version: "002_content_items",
		sql: `
			CREATE TABLE IF NOT EXISTS content_items (
				id UUID PRIMARY KEY,
				source_id UUID NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
				title TEXT NOT NULL,
				url TEXT NOT NULL,
				raw_content TEXT NOT NULL DEFAULT '',
				published_at TIMESTAMPTZ NOT NULL,
				fetched_at TIMESTAMPTZ NOT NULL,
				tags JSONB,
				score DOUBLE PRECISION,
				summary TEXT,
				key_points JSONB,
				embedding JSONB,
				processed_at TIMESTAMPTZ,
				step_log JSONB,
				UNIQUE (source_id, url)
			);
			CREATE INDEX IF NOT EXISTS idx_content_items_pending
				ON content_items (fetched_at) WHERE processed_at IS NULL
		`,
	},
	{
		version: "003_run_records",
		sql: `
			CREATE TABLE IF NOT EXISTS run_records (
				id UUID PRIMARY KEY,
				kind TEXT NOT NULL,
				status TEXT NOT NULL,
				label TEXT NOT NULL,
				started_at TIMESTAMPTZ NOT NULL,
				finished_at TIMESTAMPTZ,
				meta JSONB
			);
			CREATE INDEX IF NOT EXISTS idx_run_records_started
				ON run_records (started_at DESC)
		`,
	},
	{
		version: "004_schedules",
		sql: `
			CREATE TABLE IF NOT EXISTS schedules (
				family TEXT PRIMARY KEY,
				enabled BOOLEAN NOT NULL DEFAULT TRUE,
				preset TEXT NOT NULL DEFAULT '',
				interval_seconds BIGINT NOT NULL DEFAULT 0,
				time_of_day TEXT NOT NULL DEFAULT '',
				batch_size INTEGER NOT NULL DEFAULT 0,
				lookback_seconds BIGINT NOT NULL DEFAULT 0,
				last_run_at TIMESTAMPTZ
			)
		`,
	},
	{
		version: "005_digests",
		sql: `
			CREATE TABLE IF NOT EXISTS digests (
				id UUID PRIMARY KEY,
				generated_at TIMESTAMPTZ NOT NULL,
				item_count INTEGER NOT NULL,
				body TEXT NOT NULL
			)
		`,
	},
	{
		version: "006_ingestion_errors",
		sql: `
			CREATE TABLE IF NOT EXISTS ingestion_errors (
				id UUID PRIMARY KEY,
				source_id UUID,
				error_type TEXT NOT NULL,
				url TEXT NOT NULL DEFAULT '',
				error_msg TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)
		`,
	},
}

// RunMigrations applies all pending schema migrations in order.
func RunMigrations(db *sql.DB, logger *slog.Logger) error {
	logger.Info("checking for pending database migrations")

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate applied migrations: %w", err)
	}

	pending := 0
	for _, m := range migrations {
		if applied[m.version] {
			continue
		}

		logger.Info("applying migration", "version", m.version)
		if _, err := db.Exec(m.sql); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.version, err)
		}
		if _, err := db.Exec("INSERT INTO schema_migrations (version) VALUES ($1)", m.version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", m.version, err)
		}
		pending++
	}

	if pending > 0 {
		logger.Info("migrations applied", "count", pending)
	} else {
		logger.Info("database schema up to date")
	}
	return nil
}
