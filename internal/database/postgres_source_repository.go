package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/briefwire/briefwire/internal/models"
	"github.com/google/uuid"
)

// PostgresStore implements every repository contract over a single
// Postgres connection pool. Methods are grouped per concern across the
// postgres_*.go files.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const sourceColumns = `id, name, url, mode, health_status, consecutive_failures,
	last_fetched_at, last_error_at, last_error, active, created_at`

func (s *PostgresStore) CreateSource(ctx context.Context, src models.Source) error {
	if src.ID == "" {
		src.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (id, name, url, mode, health_status, consecutive_failures,
			last_fetched_at, last_error_at, last_error, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, src.ID, src.Name, src.URL, src.Mode, src.HealthStatus, src.ConsecutiveFailures,
		src.LastFetchedAt, src.LastErrorAt, src.LastError, src.Active, src.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSource(ctx context.Context, id string) (*models.Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id)
	src, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}
	return src, nil
}

func (s *PostgresStore) ListSources(ctx context.Context, includeInactive bool) ([]models.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources`
	if !includeInactive {
		query += ` WHERE active`
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	sources := []models.Source{}
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, *src)
	}
	return sources, rows.Err()
}

func (s *PostgresStore) UpdateSource(ctx context.Context, src models.Source) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sources
		SET name = $2, url = $3, mode = $4, health_status = $5, consecutive_failures = $6,
			last_fetched_at = $7, last_error_at = $8, last_error = $9, active = $10
		WHERE id = $1
	`, src.ID, src.Name, src.URL, src.Mode, src.HealthStatus, src.ConsecutiveFailures,
		src.LastFetchedAt, src.LastErrorAt, src.LastError, src.Active)
	if err != nil {
		return fmt.Errorf("update source: %w", err)
	}
	return nil
}

// DeleteSource removes the source; content items cascade through the
// foreign key.
func (s *PostgresStore) DeleteSource(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*models.Source, error) {
	var src models.Source
	err := row.Scan(
		&src.ID, &src.Name, &src.URL, &src.Mode, &src.HealthStatus, &src.ConsecutiveFailures,
		&src.LastFetchedAt, &src.LastErrorAt, &src.LastError, &src.Active, &src.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &src, nil
}
