package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/briefwire/briefwire/internal/ledger"
	"github.com/briefwire/briefwire/internal/models"
	"github.com/briefwire/briefwire/internal/scheduler"
)

// CoordinatorConfig tunes batch runs.
type CoordinatorConfig struct {
	MaxItems    int // batch size cap
	Concurrency int // max items enriched simultaneously
}

// DefaultCoordinatorConfig returns the standard batch tuning.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{MaxItems: 25, Concurrency: 4}
}

// Coordinator selects a bounded batch of pending items and runs the stage
// runner over them with bounded concurrency, aggregating the outcome into
// one pipeline-batch ledger record.
type Coordinator struct {
	runner *Runner
	items  ItemRepository
	led    *ledger.Ledger
	logger *slog.Logger
	cfg    CoordinatorConfig

	// Shared across batches so a manual trigger cannot exceed the cap
	// while a scheduled batch is in flight.
	semaphore chan struct{}
}

// NewCoordinator creates a batch coordinator.
func NewCoordinator(runner *Runner, items ItemRepository, led *ledger.Ledger, logger *slog.Logger, cfg CoordinatorConfig) *Coordinator {
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultCoordinatorConfig().MaxItems
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultCoordinatorConfig().Concurrency
	}
	return &Coordinator{
		runner:    runner,
		items:     items,
		led:       led,
		logger:    logger,
		cfg:       cfg,
		semaphore: make(chan struct{}, cfg.Concurrency),
	}
}

// RunBatch processes up to maxItems pending items, oldest-fetched-first.
// maxItems <= 0 uses the configured batch size. The batch registers a
// cancellation token under its run ID; the token is checked between items,
// so a stopped batch finalizes as stopped, leaving in-flight items exactly
// as their last completed stage left them.
func (c *Coordinator) RunBatch(ctx context.Context, maxItems int, runs *scheduler.State) (string, models.BatchMeta, error) {
	if maxItems <= 0 {
		maxItems = c.cfg.MaxItems
	}

	pending, err := c.items.ListPendingItems(ctx, maxItems)
	if err != nil {
		return "", models.BatchMeta{}, fmt.Errorf("select pending items: %w", err)
	}
	if len(pending) == 0 {
		c.logger.Debug("no pending items for pipeline")
		return "", models.BatchMeta{}, nil
	}

	runID, err := c.led.Begin(ctx, models.RunKindPipelineBatch,
		fmt.Sprintf("Pipeline batch (%d items)", len(pending)),
		models.BatchMeta{Total: len(pending)})
	if err != nil {
		return "", models.BatchMeta{}, err
	}

	var cancel *scheduler.Cancellation
	if runs != nil {
		cancel = runs.Register(runID)
		defer runs.Unregister(runID)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		meta    = models.BatchMeta{Total: len(pending)}
		stopped bool
	)

	for _, item := range pending {
		wg.Add(1)
		go func(item models.ContentItem) {
			defer wg.Done()

			c.semaphore <- struct{}{}
			defer func() { <-c.semaphore }()

			// Items not yet started when the stop arrives remain pending
			// and untouched.
			if cancel.Stopped() {
				mu.Lock()
				stopped = true
				mu.Unlock()
				return
			}

			result := c.runner.RunItem(ctx, item)

			mu.Lock()
			if result.Processed {
				meta.Processed++
			}
			if result.Failed {
				meta.Failed++
			}
			mu.Unlock()
		}(item)
	}

	wg.Wait()

	status := models.RunStatusSuccess
	switch {
	case stopped:
		status = models.RunStatusStopped
	case meta.Failed > 0 && meta.Processed == 0:
		status = models.RunStatusError
	case meta.Failed > 0:
		status = models.RunStatusWarning
	}

	if err := c.led.Finish(ctx, runID, status, meta); err != nil {
		c.logger.Error("failed to finalize pipeline-batch record", "run_id", runID, "error", err)
	}

	c.logger.Info("pipeline batch complete",
		"run_id", runID,
		"total", meta.Total,
		"processed", meta.Processed,
		"failed", meta.Failed,
		"status", status,
	)
	return runID, meta, nil
}
