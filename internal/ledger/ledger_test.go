package ledger_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"log/slog"

	"github.com/briefwire/briefwire/internal/database"
	"github.com/briefwire/briefwire/internal/ledger"
	"github.com/briefwire/briefwire/internal/models"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBeginCreatesRunningRecord(t *testing.T) {
	store := database.NewMemoryStore()
	led := ledger.New(store, discard(), true)
	ctx := context.Background()

	id, err := led.Begin(ctx, models.RunKindFetchSource, "Fetch: Example Feed", models.FetchMeta{SourceName: "Example Feed"})
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}

	rec, err := led.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if rec == nil {
		t.Fatal("expected record, got nil")
	}
	if rec.Status != models.RunStatusRunning {
		t.Errorf("expected status running, got %s", rec.Status)
	}
	if rec.FinishedAt != nil {
		t.Error("expected nil FinishedAt for running record")
	}
	if rec.StartedAt.IsZero() {
		t.Error("expected StartedAt to be set")
	}
}

func TestFinishIsIdempotent(t *testing.T) {
	store := database.NewMemoryStore()
	led := ledger.New(store, discard(), true)
	ctx := context.Background()

	id, err := led.Begin(ctx, models.RunKindPipelineBatch, "Pipeline batch", models.BatchMeta{Total: 5})
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}

	if err := led.Finish(ctx, id, models.RunStatusSuccess, models.BatchMeta{Total: 5, Processed: 5}); err != nil {
		t.Fatalf("first Finish returned error: %v", err)
	}

	first, _ := led.Get(ctx, id)
	if first.Status != models.RunStatusSuccess || first.FinishedAt == nil {
		t.Fatalf("first finish not applied: %+v", first)
	}
	firstFinished := *first.FinishedAt

	time.Sleep(5 * time.Millisecond)

	// Second finish with a different status must be a no-op.
	if err := led.Finish(ctx, id, models.RunStatusError, models.BatchMeta{Total: 5, Failed: 5}); err != nil {
		t.Fatalf("second Finish returned error: %v", err)
	}

	second, _ := led.Get(ctx, id)
	if second.Status != models.RunStatusSuccess {
		t.Errorf("status changed by second finish: %s", second.Status)
	}
	if !second.FinishedAt.Equal(firstFinished) {
		t.Errorf("FinishedAt changed by second finish: %v != %v", second.FinishedAt, firstFinished)
	}
	if meta, ok := second.Meta.(models.BatchMeta); !ok || meta.Processed != 5 {
		t.Errorf("meta changed by second finish: %+v", second.Meta)
	}
}

func TestFinishRejectsNonTerminalStatus(t *testing.T) {
	store := database.NewMemoryStore()
	led := ledger.New(store, discard(), true)
	ctx := context.Background()

	id, _ := led.Begin(ctx, models.RunKindDigest, "Digest", models.DigestMeta{})
	if err := led.Finish(ctx, id, models.RunStatusRunning, nil); err == nil {
		t.Fatal("expected error for non-terminal finish status")
	}
}

func TestUnknownRunStrictVsLenient(t *testing.T) {
	ctx := context.Background()

	t.Run("strict surfaces the defect", func(t *testing.T) {
		led := ledger.New(database.NewMemoryStore(), discard(), true)

		err := led.Update(ctx, "no-such-run", models.ItemMeta{ItemID: "x"})
		if !errors.Is(err, ledger.ErrUnknownRun) {
			t.Fatalf("expected ErrUnknownRun, got %v", err)
		}

		err = led.Finish(ctx, "no-such-run", models.RunStatusError, nil)
		if !errors.Is(err, ledger.ErrUnknownRun) {
			t.Fatalf("expected ErrUnknownRun, got %v", err)
		}
	})

	t.Run("lenient absorbs the defect", func(t *testing.T) {
		led := ledger.New(database.NewMemoryStore(), discard(), false)

		if err := led.Update(ctx, "no-such-run", models.ItemMeta{ItemID: "x"}); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
		if err := led.Finish(ctx, "no-such-run", models.RunStatusError, nil); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
	})
}

func TestUpdateDoesNotChangeStatus(t *testing.T) {
	store := database.NewMemoryStore()
	led := ledger.New(store, discard(), true)
	ctx := context.Background()

	id, _ := led.Begin(ctx, models.RunKindPipelineItem, "Item", models.ItemMeta{ItemID: "i1"})
	if err := led.Update(ctx, id, models.ItemMeta{ItemID: "i1", Stage: "grade"}); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	rec, _ := led.Get(ctx, id)
	if rec.Status != models.RunStatusRunning {
		t.Errorf("Update changed status: %s", rec.Status)
	}
	if meta, ok := rec.Meta.(models.ItemMeta); !ok || meta.Stage != "grade" {
		t.Errorf("Update did not apply meta: %+v", rec.Meta)
	}
}

func TestQueryNewestFirstWithFilters(t *testing.T) {
	store := database.NewMemoryStore()
	led := ledger.New(store, discard(), true)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id, _ := led.Begin(ctx, models.RunKindFetchSource, "Fetch", models.FetchMeta{})
		ids = append(ids, id)
		time.Sleep(2 * time.Millisecond)
	}
	batchID, _ := led.Begin(ctx, models.RunKindPipelineBatch, "Batch", models.BatchMeta{})
	_ = led.Finish(ctx, batchID, models.RunStatusError, nil)

	all, err := led.Query(ctx, ledger.RunFilter{})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 records, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].StartedAt.After(all[i-1].StartedAt) {
			t.Fatal("records not ordered newest-first")
		}
	}

	fetches, _ := led.Query(ctx, ledger.RunFilter{Kind: models.RunKindFetchSource})
	if len(fetches) != 3 {
		t.Errorf("expected 3 fetch records, got %d", len(fetches))
	}

	failed, _ := led.Query(ctx, ledger.RunFilter{Status: models.RunStatusError})
	if len(failed) != 1 || failed[0].ID != batchID {
		t.Errorf("status filter returned wrong records: %+v", failed)
	}

	limited, _ := led.Query(ctx, ledger.RunFilter{Limit: 2})
	if len(limited) != 2 {
		t.Errorf("expected limit 2, got %d", len(limited))
	}
	_ = ids
}
