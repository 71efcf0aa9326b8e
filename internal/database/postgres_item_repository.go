package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/briefwire/briefwire/internal/models"
)

const itemColumns = `id, source_id, title, url, raw_content, published_at, fetched_at,
	tags, score, summary, key_points, embedding, processed_at, step_log`

func (s *PostgresStore) InsertItem(ctx context.Context, item models.ContentItem) error {
	tags, keyPoints, embedding, stepLog, err := marshalItemJSON(item)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO content_items (id, source_id, title, url, raw_content, published_at,
			fetched_at, tags, score, summary, key_points, embedding, processed_at, step_log)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, item.ID, item.SourceID, item.Title, item.URL, item.RawContent, item.PublishedAt,
		item.FetchedAt, tags, item.Score, item.Summary, keyPoints, embedding, item.ProcessedAt, stepLog)
	if err != nil {
		return fmt.Errorf("insert content item: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetItem(ctx context.Context, id string) (*models.ContentItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM content_items WHERE id = $1`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get content item: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ItemExists(ctx context.Context, sourceID, url string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM content_items WHERE source_id = $1 AND url = $2)`,
		sourceID, url).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check item existence: %w", err)
	}
	return exists, nil
}

// ListPendingItems returns unprocessed items oldest-fetched-first, so a
// flood of new content cannot starve the older backlog.
func (s *PostgresStore) ListPendingItems(ctx context.Context, limit int) ([]models.ContentItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM content_items
		WHERE processed_at IS NULL
		ORDER BY fetched_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

func (s *PostgresStore) CountPendingItems(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM content_items WHERE processed_at IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending items: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) UpdateItem(ctx context.Context, item models.ContentItem) error {
	tags, keyPoints, embedding, stepLog, err := marshalItemJSON(item)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE content_items
		SET tags = $2, score = $3, summary = $4, key_points = $5, embedding = $6,
			processed_at = $7, step_log = $8
		WHERE id = $1
	`, item.ID, tags, item.Score, item.Summary, keyPoints, embedding, item.ProcessedAt, stepLog)
	if err != nil {
		return fmt.Errorf("update content item: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListProcessedSince(ctx context.Context, since time.Time, limit int) ([]models.ContentItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM content_items
		WHERE processed_at > $1
		ORDER BY score DESC NULLS LAST
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list processed items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

func marshalItemJSON(item models.ContentItem) (tags, keyPoints, embedding, stepLog []byte, err error) {
	if item.Tags != nil {
		if tags, err = json.Marshal(item.Tags); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal tags: %w", err)
		}
	}
	if item.KeyPoints != nil {
		if keyPoints, err = json.Marshal(item.KeyPoints); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal key points: %w", err)
		}
	}
	if item.Embedding != nil {
		if embedding, err = json.Marshal(item.Embedding); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal embedding: %w", err)
		}
	}
	if item.StepLog != nil {
		if stepLog, err = json.Marshal(item.StepLog); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal step log: %w", err)
		}
	}
	return tags, keyPoints, embedding, stepLog, nil
}

func scanItem(row rowScanner) (*models.ContentItem, error) {
	var (
		item      models.ContentItem
		tags      []byte
		keyPoints []byte
		embedding []byte
		stepLog   []byte
	)
	err := row.Scan(
		&item.ID, &item.SourceID, &item.Title, &item.URL, &item.RawContent,
		&item.PublishedAt, &item.FetchedAt, &tags, &item.Score, &item.Summary,
		&keyPoints, &embedding, &item.ProcessedAt, &stepLog,
	)
	if err != nil {
		return nil, err
	}

	for _, f := range []struct {
		raw []byte
		dst any
	}{
		{tags, &item.Tags},
		{keyPoints, &item.KeyPoints},
		{embedding, &item.Embedding},
		{stepLog, &item.StepLog},
	} {
		if len(f.raw) > 0 {
			if err := json.Unmarshal(f.raw, f.dst); err != nil {
				return nil, fmt.Errorf("unmarshal item field: %w", err)
			}
		}
	}
	return &item, nil
}

func collectItems(rows *sql.Rows) ([]models.ContentItem, error) {
	items := []models.ContentItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan content item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}
