package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/briefwire/briefwire/internal/database"
	"github.com/briefwire/briefwire/internal/ledger"
	"github.com/briefwire/briefwire/internal/models"
	"github.com/briefwire/briefwire/internal/pipeline"
	"github.com/briefwire/briefwire/internal/scheduler"
)

func newCoordinator(store *database.MemoryStore, enricher pipeline.Enricher, cfg pipeline.CoordinatorConfig) (*pipeline.Coordinator, *ledger.Ledger) {
	led := ledger.New(store, discard(), true)
	runner := pipeline.NewRunner(enricher, store, led, nil, discard(), pipeline.RunnerConfig{})
	return pipeline.NewCoordinator(runner, store, led, discard(), cfg), led
}

func TestRunBatchAggregatesOutcome(t *testing.T) {
	store := database.NewMemoryStore()
	enricher := newStubEnricher()
	enricher.gradeErr["item-3"] = errors.New("timeout waiting for provider")
	coord, led := newCoordinator(store, enricher, pipeline.CoordinatorConfig{MaxItems: 10, Concurrency: 2})
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 1; i <= 5; i++ {
		newTestItem(store, "item-"+string(rune('0'+i)), base.Add(time.Duration(i)*time.Minute))
	}

	runID, meta, err := coord.RunBatch(ctx, 5, scheduler.NewState())
	if err != nil {
		t.Fatalf("RunBatch returned error: %v", err)
	}
	if meta.Total != 5 || meta.Processed != 4 || meta.Failed != 1 {
		t.Fatalf("expected total=5 processed=4 failed=1, got %+v", meta)
	}

	rec, _ := led.Get(ctx, runID)
	if rec.Status != models.RunStatusWarning {
		t.Errorf("expected warning status for partial failure, got %s", rec.Status)
	}

	// The failed item keeps its classify output and stays pending.
	failed, _ := store.GetItem(ctx, "item-item-3")
	if failed.ProcessedAt != nil {
		t.Error("failed item must remain pending")
	}
	if len(failed.Tags) == 0 {
		t.Error("failed item lost its classify output")
	}

	pending, _ := store.CountPendingItems(ctx)
	if pending != 1 {
		t.Errorf("expected 1 pending item, got %d", pending)
	}
}

func TestRunBatchConcurrencyNeverExceedsCap(t *testing.T) {
	store := database.NewMemoryStore()
	enricher := newStubEnricher()
	enricher.stageDelay = 2 * time.Millisecond
	limit := 3
	coord, _ := newCoordinator(store, enricher, pipeline.CoordinatorConfig{MaxItems: 50, Concurrency: limit})
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 20; i++ {
		newTestItem(store, "load-"+string(rune('a'+i)), base.Add(time.Duration(i)*time.Second))
	}

	_, meta, err := coord.RunBatch(ctx, 20, scheduler.NewState())
	if err != nil {
		t.Fatalf("RunBatch returned error: %v", err)
	}
	if meta.Processed != 20 {
		t.Fatalf("expected 20 processed, got %+v", meta)
	}
	if enricher.maxInFlight > limit {
		t.Errorf("in-flight enrichment calls exceeded cap: %d > %d", enricher.maxInFlight, limit)
	}
}

func TestRunBatchStopFinalizesAsStopped(t *testing.T) {
	store := database.NewMemoryStore()
	enricher := newStubEnricher()
	runs := scheduler.NewState()
	led := ledger.New(store, discard(), true)
	runner := pipeline.NewRunner(enricher, store, led, nil, discard(), pipeline.RunnerConfig{})
	// Concurrency 1 so items complete strictly one at a time.
	coord := pipeline.NewCoordinator(runner, store, led, discard(), pipeline.CoordinatorConfig{MaxItems: 10, Concurrency: 1})
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 10; i++ {
		newTestItem(store, "stop-"+string(rune('a'+i)), base.Add(time.Duration(i)*time.Second))
	}

	// Request the stop from inside the second item's final stage; every
	// item that has not started yet must be left untouched.
	completed := 0
	enricher.afterVectorize = func() {
		completed++
		if completed == 2 {
			running, _ := led.Query(ctx, ledger.RunFilter{
				Kind:   models.RunKindPipelineBatch,
				Status: models.RunStatusRunning,
			})
			if len(running) != 1 {
				t.Errorf("expected one running batch record, got %d", len(running))
				return
			}
			if !runs.Stop(running[0].ID) {
				t.Error("expected batch run to be registered for cancellation")
			}
		}
	}

	runID, meta, err := coord.RunBatch(ctx, 10, runs)
	if err != nil {
		t.Fatalf("RunBatch returned error: %v", err)
	}
	if meta.Processed != 2 {
		t.Fatalf("expected 2 items processed before stop, got %+v", meta)
	}

	rec, _ := led.Get(ctx, runID)
	if rec.Status != models.RunStatusStopped {
		t.Errorf("expected stopped status, got %s", rec.Status)
	}

	pending, _ := store.CountPendingItems(ctx)
	if pending != 8 {
		t.Errorf("expected 8 items still pending, got %d", pending)
	}
	if runs.RunningCount() != 0 {
		t.Errorf("expected run registry to be empty, got %d", runs.RunningCount())
	}
}

func TestRunBatchEmptyQueueOpensNoRecord(t *testing.T) {
	store := database.NewMemoryStore()
	coord, led := newCoordinator(store, newStubEnricher(), pipeline.CoordinatorConfig{})
	ctx := context.Background()

	runID, _, err := coord.RunBatch(ctx, 10, scheduler.NewState())
	if err != nil {
		t.Fatalf("RunBatch returned error: %v", err)
	}
	if runID != "" {
		t.Errorf("expected no run record for empty queue, got %s", runID)
	}

	recs, _ := led.Query(ctx, ledger.RunFilter{})
	if len(recs) != 0 {
		t.Errorf("expected empty ledger, got %d records", len(recs))
	}
}
