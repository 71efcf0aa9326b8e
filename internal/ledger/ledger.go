// Package ledger keeps the append-only record of task executions. Every
// fetch, pipeline and digest run begins here, is updated in place while it
// progresses, and is finalized exactly once with a terminal status. The
// dashboard and retry decisions read from it; nothing deletes from it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/briefwire/briefwire/internal/models"
	"github.com/google/uuid"
)

// ErrUnknownRun is returned in strict mode when an update or finish
// references a run ID the store has never seen. This is a caller bug, not
// an operational failure.
var ErrUnknownRun = errors.New("unknown run id")

// RunRepository is the minimal persistence contract the ledger needs.
type RunRepository interface {
	CreateRun(ctx context.Context, rec models.RunRecord) error
	GetRun(ctx context.Context, id string) (*models.RunRecord, error)
	UpdateRun(ctx context.Context, rec models.RunRecord) error
	ListRuns(ctx context.Context, filter RunFilter) ([]models.RunRecord, error)
}

// RunFilter narrows a ledger query. Zero values mean "no constraint".
type RunFilter struct {
	Kind   models.RunKind
	Status models.RunStatus
	Limit  int
}

// Ledger records task executions through a RunRepository. In strict mode
// (tests, development) bookkeeping defects surface as errors; otherwise
// they are logged and absorbed so a defective caller cannot take down the
// pipeline.
type Ledger struct {
	repo   RunRepository
	logger *slog.Logger
	strict bool
	now    func() time.Time
}

// New creates a ledger over the given repository.
func New(repo RunRepository, logger *slog.Logger, strict bool) *Ledger {
	return &Ledger{repo: repo, logger: logger, strict: strict, now: time.Now}
}

// Begin opens a new run record with status running and returns its ID.
func (l *Ledger) Begin(ctx context.Context, kind models.RunKind, label string, meta models.RunMeta) (string, error) {
	rec := models.RunRecord{
		ID:        uuid.New().String(),
		Kind:      kind,
		Status:    models.RunStatusRunning,
		Label:     label,
		StartedAt: l.now(),
		Meta:      meta,
	}
	if err := l.repo.CreateRun(ctx, rec); err != nil {
		return "", fmt.Errorf("create run record: %w", err)
	}
	return rec.ID, nil
}

// Update replaces the run's meta while it is still running. The run's
// status and timestamps are untouched. Updates on finalized or unknown
// runs are bookkeeping defects.
func (l *Ledger) Update(ctx context.Context, runID string, meta models.RunMeta) error {
	rec, err := l.repo.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", runID, err)
	}
	if rec == nil {
		return l.defect(runID, "update of unknown run")
	}
	if rec.FinishedAt != nil {
		return l.defect(runID, "update of finalized run")
	}

	rec.Meta = meta
	if err := l.repo.UpdateRun(ctx, *rec); err != nil {
		return fmt.Errorf("update run %s: %w", runID, err)
	}
	return nil
}

// Finish finalizes the run with a terminal status. It is idempotent: a
// second call on an already-finished record is a no-op, preserving the
// first call's status and timestamp.
func (l *Ledger) Finish(ctx context.Context, runID string, status models.RunStatus, meta models.RunMeta) error {
	if !status.Terminal() {
		return l.defect(runID, fmt.Sprintf("finish with non-terminal status %q", status))
	}

	rec, err := l.repo.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", runID, err)
	}
	if rec == nil {
		return l.defect(runID, "finish of unknown run")
	}
	if rec.FinishedAt != nil {
		return nil
	}

	finished := l.now()
	rec.FinishedAt = &finished
	rec.Status = status
	if meta != nil {
		rec.Meta = meta
	}
	if err := l.repo.UpdateRun(ctx, *rec); err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	return nil
}

// Query returns run records newest-first, optionally filtered by kind and
// status.
func (l *Ledger) Query(ctx context.Context, filter RunFilter) ([]models.RunRecord, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 500 {
		filter.Limit = 500
	}
	return l.repo.ListRuns(ctx, filter)
}

// Get returns a single run record, or nil when it does not exist.
func (l *Ledger) Get(ctx context.Context, runID string) (*models.RunRecord, error) {
	return l.repo.GetRun(ctx, runID)
}

func (l *Ledger) defect(runID, msg string) error {
	if l.strict {
		return fmt.Errorf("%s %s: %w", msg, runID, ErrUnknownRun)
	}
	l.logger.Warn("ledger bookkeeping defect absorbed", "run_id", runID, "defect", msg)
	return nil
}
