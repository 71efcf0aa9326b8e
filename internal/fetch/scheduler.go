// Package fetch decides which sources are due, runs their extraction under
// a bounded worker pool, and converts every outcome into ledger records
// and source health transitions. A single source's failure never aborts
// the surrounding batch.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/briefwire/briefwire/internal/health"
	"github.com/briefwire/briefwire/internal/ledger"
	"github.com/briefwire/briefwire/internal/metrics"
	"github.com/briefwire/briefwire/internal/models"
	"github.com/briefwire/briefwire/internal/scheduler"
	"github.com/google/uuid"
)

// SourceRepository is the persistence contract for sources.
type SourceRepository interface {
	ListSources(ctx context.Context, includeInactive bool) ([]models.Source, error)
	GetSource(ctx context.Context, id string) (*models.Source, error)
	UpdateSource(ctx context.Context, src models.Source) error
}

// ItemWriter stores fetched content items.
type ItemWriter interface {
	InsertItem(ctx context.Context, item models.ContentItem) error
	ItemExists(ctx context.Context, sourceID, url string) (bool, error)
}

// ErrorRecorder keeps the operator-visible ingestion error trail.
type ErrorRecorder interface {
	RecordError(ctx context.Context, e models.IngestionError) error
}

// Config tunes the fetch scheduler.
type Config struct {
	Concurrency int           // max simultaneous source fetches
	Timeout     time.Duration // per-source extraction timeout
}

// DefaultConfig returns the standard fetch tuning.
func DefaultConfig() Config {
	return Config{Concurrency: 6, Timeout: 30 * time.Second}
}

// Outcome is the result of one source fetch.
type Outcome struct {
	Inserted int
	Skipped  int
	Err      error
}

// Scheduler selects due sources and runs fetches over them with bounded
// concurrency, recording every attempt in the ledger and applying the
// health transition after each one.
type Scheduler struct {
	sources    SourceRepository
	items      ItemWriter
	errs       ErrorRecorder
	led        *ledger.Ledger
	extractors map[models.ExtractionMode]Extractor
	thresholds health.Thresholds
	collector  *metrics.Collector
	logger     *slog.Logger
	cfg        Config

	// One pool for the whole scheduler: manual triggers and scheduled
	// ticks share the same concurrency cap.
	semaphore chan struct{}

	mu       sync.Mutex
	forced   map[string]bool // sources force-included despite being dead
	inflight map[string]bool // sources currently being fetched
}

// NewScheduler creates a fetch scheduler.
func NewScheduler(
	sources SourceRepository,
	items ItemWriter,
	errs ErrorRecorder,
	led *ledger.Ledger,
	extractors []Extractor,
	thresholds health.Thresholds,
	collector *metrics.Collector,
	logger *slog.Logger,
	cfg Config,
) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	byMode := make(map[models.ExtractionMode]Extractor, len(extractors))
	for _, ex := range extractors {
		byMode[ex.Mode()] = ex
	}

	return &Scheduler{
		sources:    sources,
		items:      items,
		errs:       errs,
		led:        led,
		extractors: byMode,
		thresholds: thresholds,
		collector:  collector,
		logger:     logger,
		cfg:        cfg,
		semaphore:  make(chan struct{}, cfg.Concurrency),
		forced:     make(map[string]bool),
		inflight:   make(map[string]bool),
	}
}

// RetrySource marks a source for force-inclusion in the next fetch
// selection, re-entering dead sources into the normal health transition.
func (s *Scheduler) RetrySource(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forced[sourceID] = true
}

// SelectDue returns active sources due for a fetch at now, oldest-due
// first. Dead sources are excluded unless an operator forced a retry.
func (s *Scheduler) SelectDue(ctx context.Context, now time.Time, interval time.Duration) ([]models.Source, error) {
	all, err := s.sources.ListSources(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	s.mu.Lock()
	forced := make(map[string]bool, len(s.forced))
	for id := range s.forced {
		forced[id] = true
	}
	s.mu.Unlock()

	due := make([]models.Source, 0, len(all))
	for _, src := range all {
		if src.HealthStatus == models.HealthDead && !forced[src.ID] {
			continue
		}
		if forced[src.ID] || src.NeverFetched() || !now.Before(src.DueAt(interval)) {
			due = append(due, src)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].DueAt(interval).Before(due[j].DueAt(interval))
	})
	return due, nil
}

// RunBatch fetches the given sources through the worker pool, wrapping the
// batch in a fetch-batch ledger record. The batch registers a cancellation
// token under its run ID so an operator can stop it; a cancelled batch
// finalizes as stopped with the already-completed fetches intact.
func (s *Scheduler) RunBatch(ctx context.Context, sources []models.Source, runs *scheduler.State) (string, models.FetchMeta, error) {
	runID, err := s.led.Begin(ctx, models.RunKindFetchBatch,
		fmt.Sprintf("Fetch %d sources", len(sources)),
		models.NewFetchBatchMeta(len(sources)))
	if err != nil {
		return "", models.FetchMeta{}, err
	}

	var cancel *scheduler.Cancellation
	if runs != nil {
		cancel = runs.Register(runID)
		defer runs.Unregister(runID)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		meta    = models.NewFetchBatchMeta(len(sources))
		stopped bool
	)

	for _, src := range sources {
		wg.Add(1)
		go func(src models.Source) {
			defer wg.Done()

			s.semaphore <- struct{}{}
			defer func() { <-s.semaphore }()

			// Cooperative stop: sources not yet started stay untouched.
			if cancel.Stopped() {
				mu.Lock()
				stopped = true
				mu.Unlock()
				return
			}

			outcome := s.FetchSource(ctx, src)

			mu.Lock()
			meta.Inserted += outcome.Inserted
			meta.Skipped += outcome.Skipped
			if outcome.Err != nil {
				meta.Failed++
			}
			mu.Unlock()
		}(src)
	}

	wg.Wait()

	status := models.RunStatusSuccess
	switch {
	case stopped:
		status = models.RunStatusStopped
	case meta.Failed > 0:
		status = models.RunStatusWarning
	}

	if err := s.led.Finish(ctx, runID, status, meta); err != nil {
		s.logger.Error("failed to finalize fetch batch record", "run_id", runID, "error", err)
	}
	return runID, meta, nil
}

// RunDue selects the sources due at now and fetches them. This is the
// entry point shared by the scheduler tick and the manual trigger.
func (s *Scheduler) RunDue(ctx context.Context, interval time.Duration, runs *scheduler.State) (string, models.FetchMeta, error) {
	due, err := s.SelectDue(ctx, time.Now(), interval)
	if err != nil {
		return "", models.FetchMeta{}, err
	}
	if len(due) == 0 {
		s.logger.Debug("no sources due for fetch")
		return "", models.FetchMeta{}, nil
	}
	return s.RunBatch(ctx, due, runs)
}

// FetchSource runs a single source fetch: ledger begin, extraction with
// timeout, item insertion, health transition, ledger finish. All failures
// are converted into the returned Outcome; nothing escapes.
func (s *Scheduler) FetchSource(ctx context.Context, src models.Source) Outcome {
	// Never two concurrent fetches for the same source: the health
	// transition must have a single writer.
	s.mu.Lock()
	if s.inflight[src.ID] {
		s.mu.Unlock()
		s.logger.Warn("fetch already in flight for source, skipping", "source", src.GetDisplayName())
		return Outcome{}
	}
	s.inflight[src.ID] = true
	delete(s.forced, src.ID)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inflight, src.ID)
		s.mu.Unlock()
	}()

	runID, err := s.led.Begin(ctx, models.RunKindFetchSource,
		fmt.Sprintf("Fetch: %s", src.GetDisplayName()),
		models.FetchMeta{SourceName: src.GetDisplayName()})
	if err != nil {
		s.logger.Error("failed to open fetch record", "source", src.GetDisplayName(), "error", err)
		return Outcome{Err: err}
	}

	outcome := s.extract(ctx, src)

	now := time.Now()
	s.thresholds.Apply(&src, outcome.Err == nil, errText(outcome.Err), now)
	if err := s.sources.UpdateSource(ctx, src); err != nil {
		s.logger.Error("failed to persist source health", "source", src.GetDisplayName(), "error", err)
	}

	meta := models.FetchMeta{
		SourceName: src.GetDisplayName(),
		Inserted:   outcome.Inserted,
		Skipped:    outcome.Skipped,
		Error:      errText(outcome.Err),
	}

	status := models.RunStatusSuccess
	switch {
	case outcome.Err != nil:
		status = models.RunStatusError
	case outcome.Skipped > 0:
		status = models.RunStatusWarning
	}

	if err := s.led.Finish(ctx, runID, status, meta); err != nil {
		s.logger.Error("failed to finalize fetch record", "run_id", runID, "error", err)
	}
	s.collector.ObserveFetch(string(status))

	if outcome.Err != nil {
		s.logger.Warn("source fetch failed",
			"source", src.GetDisplayName(),
			"consecutive_failures", src.ConsecutiveFailures,
			"health", src.HealthStatus,
			"error", outcome.Err,
		)
		if err := s.errs.RecordError(ctx, models.IngestionError{
			SourceID:  src.ID,
			ErrorType: "fetch_failed",
			URL:       src.URL,
			ErrorMsg:  outcome.Err.Error(),
			CreatedAt: now,
		}); err != nil {
			s.logger.Error("failed to record ingestion error", "error", err)
		}
	} else {
		s.logger.Info("source fetched",
			"source", src.GetDisplayName(),
			"inserted", outcome.Inserted,
			"skipped", outcome.Skipped,
		)
	}

	return outcome
}

// extract runs the strategy for the source's mode and stores new items,
// deduplicating by URL within the source.
func (s *Scheduler) extract(ctx context.Context, src models.Source) Outcome {
	extractor, ok := s.extractors[src.Mode]
	if !ok {
		return Outcome{Err: fmt.Errorf("no extractor configured for mode %q", src.Mode)}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	result, err := extractor.Extract(ctx, src)
	if err != nil {
		return Outcome{Err: err}
	}

	outcome := Outcome{Skipped: result.Skipped}
	for _, raw := range result.Items {
		exists, err := s.items.ItemExists(ctx, src.ID, raw.URL)
		if err != nil {
			return Outcome{Inserted: outcome.Inserted, Skipped: outcome.Skipped, Err: fmt.Errorf("check existing item: %w", err)}
		}
		if exists {
			// Already ingested on an earlier fetch; not a malformed skip.
			continue
		}

		item := models.ContentItem{
			ID:          uuid.New().String(),
			SourceID:    src.ID,
			Title:       raw.Title,
			URL:         raw.URL,
			RawContent:  raw.Content,
			PublishedAt: raw.PublishedAt,
			FetchedAt:   time.Now(),
		}
		if err := s.items.InsertItem(ctx, item); err != nil {
			return Outcome{Inserted: outcome.Inserted, Skipped: outcome.Skipped, Err: fmt.Errorf("insert item: %w", err)}
		}
		outcome.Inserted++
	}

	return outcome
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
