package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/briefwire/briefwire/internal/models"
	"github.com/google/uuid"
)

// --- schedules ---

func (s *PostgresStore) GetSchedule(ctx context.Context, family models.TaskFamily) (*models.ScheduleConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT family, enabled, preset, interval_seconds, time_of_day, batch_size, lookback_seconds, last_run_at
		FROM schedules WHERE family = $1
	`, family)
	cfg, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return cfg, nil
}

func (s *PostgresStore) UpsertSchedule(ctx context.Context, cfg models.ScheduleConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schedules (family, enabled, preset, interval_seconds, time_of_day, batch_size, lookback_seconds, last_run_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (family) DO UPDATE
		SET enabled = $2, preset = $3, interval_seconds = $4, time_of_day = $5,
			batch_size = $6, lookback_seconds = $7, last_run_at = $8
	`, cfg.Family, cfg.Enabled, cfg.Preset, int64(cfg.Interval.Seconds()), cfg.TimeOfDay,
		cfg.BatchSize, int64(cfg.Lookback.Seconds()), cfg.LastRunAt)
	if err != nil {
		return fmt.Errorf("upsert schedule: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSchedules(ctx context.Context) ([]models.ScheduleConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT family, enabled, preset, interval_seconds, time_of_day, batch_size, lookback_seconds, last_run_at
		FROM schedules ORDER BY family
	`)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	schedules := []models.ScheduleConfig{}
	for rows.Next() {
		cfg, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, *cfg)
	}
	return schedules, rows.Err()
}

func scanSchedule(row rowScanner) (*models.ScheduleConfig, error) {
	var (
		cfg             models.ScheduleConfig
		intervalSeconds int64
		lookbackSeconds int64
	)
	err := row.Scan(&cfg.Family, &cfg.Enabled, &cfg.Preset, &intervalSeconds,
		&cfg.TimeOfDay, &cfg.BatchSize, &lookbackSeconds, &cfg.LastRunAt)
	if err != nil {
		return nil, err
	}
	cfg.Interval = time.Duration(intervalSeconds) * time.Second
	cfg.Lookback = time.Duration(lookbackSeconds) * time.Second
	return &cfg, nil
}

// --- digests ---

func (s *PostgresStore) StoreDigest(ctx context.Context, d models.Digest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO digests (id, generated_at, item_count, body)
		VALUES ($1, $2, $3, $4)
	`, d.ID, d.GeneratedAt, d.ItemCount, d.Body)
	if err != nil {
		return fmt.Errorf("insert digest: %w", err)
	}
	return nil
}

func (s *PostgresStore) LatestDigest(ctx context.Context) (*models.Digest, error) {
	var d models.Digest
	err := s.db.QueryRowContext(ctx, `
		SELECT id, generated_at, item_count, body
		FROM digests ORDER BY generated_at DESC LIMIT 1
	`).Scan(&d.ID, &d.GeneratedAt, &d.ItemCount, &d.Body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest digest: %w", err)
	}
	return &d, nil
}

// --- ingestion errors ---

func (s *PostgresStore) RecordError(ctx context.Context, e models.IngestionError) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	var sourceID any
	if e.SourceID != "" {
		sourceID = e.SourceID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingestion_errors (id, source_id, error_type, url, error_msg, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, sourceID, e.ErrorType, e.URL, e.ErrorMsg, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert ingestion error: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListErrors(ctx context.Context, limit int) ([]models.IngestionError, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(source_id::text, ''), error_type, url, error_msg, created_at
		FROM ingestion_errors ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list ingestion errors: %w", err)
	}
	defer rows.Close()

	errors := []models.IngestionError{}
	for rows.Next() {
		var e models.IngestionError
		if err := rows.Scan(&e.ID, &e.SourceID, &e.ErrorType, &e.URL, &e.ErrorMsg, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ingestion error: %w", err)
		}
		errors = append(errors, e)
	}
	return errors, rows.Err()
}
