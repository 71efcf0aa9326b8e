package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/briefwire/briefwire/internal/ledger"
	"github.com/briefwire/briefwire/internal/models"
)

func (s *PostgresStore) CreateRun(ctx context.Context, rec models.RunRecord) error {
	meta, err := marshalRunMeta(rec.Meta)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO run_records (id, kind, status, label, started_at, finished_at, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.Kind, rec.Status, rec.Label, rec.StartedAt, rec.FinishedAt, meta)
	if err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, status, label, started_at, finished_at, meta
		FROM run_records WHERE id = $1
	`, id)
	rec, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) UpdateRun(ctx context.Context, rec models.RunRecord) error {
	meta, err := marshalRunMeta(rec.Meta)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE run_records
		SET status = $2, finished_at = $3, meta = $4
		WHERE id = $1
	`, rec.ID, rec.Status, rec.FinishedAt, meta)
	if err != nil {
		return fmt.Errorf("update run record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter ledger.RunFilter) ([]models.RunRecord, error) {
	query := `
		SELECT id, kind, status, label, started_at, finished_at, meta
		FROM run_records
		WHERE 1=1
	`
	args := []any{}
	argPos := 1

	if filter.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argPos)
		args = append(args, filter.Kind)
		argPos++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, filter.Status)
		argPos++
	}

	query += " ORDER BY started_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d", argPos)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list run records: %w", err)
	}
	defer rows.Close()

	records := []models.RunRecord{}
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func marshalRunMeta(meta models.RunMeta) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal run meta: %w", err)
	}
	return raw, nil
}

func scanRun(row rowScanner) (*models.RunRecord, error) {
	var (
		rec models.RunRecord
		raw []byte
	)
	err := row.Scan(&rec.ID, &rec.Kind, &rec.Status, &rec.Label, &rec.StartedAt, &rec.FinishedAt, &raw)
	if err != nil {
		return nil, err
	}
	meta, err := models.DecodeRunMeta(rec.Kind, raw)
	if err != nil {
		return nil, fmt.Errorf("decode run meta: %w", err)
	}
	rec.Meta = meta
	return &rec, nil
}
