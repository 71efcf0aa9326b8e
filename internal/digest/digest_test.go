package digest_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"log/slog"

	"github.com/briefwire/briefwire/internal/database"
	"github.com/briefwire/briefwire/internal/digest"
	"github.com/briefwire/briefwire/internal/ledger"
	"github.com/briefwire/briefwire/internal/models"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func insertProcessedItem(t *testing.T, store *database.MemoryStore, id, title string, score float64, processedAt time.Time) {
	t.Helper()
	summary := "summary of " + title
	item := models.ContentItem{
		ID:          id,
		SourceID:    "src-1",
		Title:       title,
		URL:         "https://example.com/" + id,
		FetchedAt:   processedAt.Add(-time.Hour),
		Score:       &score,
		Summary:     &summary,
		ProcessedAt: &processedAt,
	}
	if err := store.InsertItem(context.Background(), item); err != nil {
		t.Fatal(err)
	}
}

func TestRunComposesDigestFromProcessedItems(t *testing.T) {
	store := database.NewMemoryStore()
	led := ledger.New(store, discard(), true)
	gen := digest.NewGenerator(store, store, led, discard())
	ctx := context.Background()

	now := time.Now()
	insertProcessedItem(t, store, "i1", "High scorer", 9.5, now.Add(-time.Hour))
	insertProcessedItem(t, store, "i2", "Low scorer", 2.0, now.Add(-2*time.Hour))

	if err := gen.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	d, err := store.LatestDigest(ctx)
	if err != nil || d == nil {
		t.Fatalf("expected stored digest, got %v (err %v)", d, err)
	}
	if d.ItemCount != 2 {
		t.Errorf("expected 2 items in digest, got %d", d.ItemCount)
	}
	if !strings.Contains(d.Body, "High scorer") || !strings.Contains(d.Body, "Low scorer") {
		t.Errorf("digest body missing items: %q", d.Body)
	}
	// Highest score first.
	if strings.Index(d.Body, "High scorer") > strings.Index(d.Body, "Low scorer") {
		t.Error("expected highest-scored item first in digest body")
	}

	runs, _ := led.Query(ctx, ledger.RunFilter{Kind: models.RunKindDigest})
	if len(runs) != 1 || runs[0].Status != models.RunStatusSuccess {
		t.Fatalf("expected one successful digest record, got %+v", runs)
	}
	meta, ok := runs[0].Meta.(models.DigestMeta)
	if !ok || meta.ItemCount != 2 {
		t.Errorf("unexpected digest meta: %+v", runs[0].Meta)
	}
}

func TestRunEmptyWindowFinalizesWithWarning(t *testing.T) {
	store := database.NewMemoryStore()
	led := ledger.New(store, discard(), true)
	gen := digest.NewGenerator(store, store, led, discard())
	ctx := context.Background()

	if err := gen.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	d, _ := store.LatestDigest(ctx)
	if d != nil {
		t.Errorf("expected no digest stored for empty window, got %+v", d)
	}

	runs, _ := led.Query(ctx, ledger.RunFilter{Kind: models.RunKindDigest})
	if len(runs) != 1 || runs[0].Status != models.RunStatusWarning {
		t.Fatalf("expected warning digest record, got %+v", runs)
	}
}

func TestRunWindowStartsAtLastDigest(t *testing.T) {
	store := database.NewMemoryStore()
	led := ledger.New(store, discard(), true)
	gen := digest.NewGenerator(store, store, led, discard())
	ctx := context.Background()

	now := time.Now()
	// The only processed item predates the last digest, so the new window
	// is empty.
	insertProcessedItem(t, store, "old", "Old news", 5, now.Add(-3*time.Hour))
	if err := store.StoreDigest(ctx, models.Digest{
		ID: "prev", GeneratedAt: now.Add(-time.Hour), ItemCount: 1, Body: "previous",
	}); err != nil {
		t.Fatal(err)
	}

	if err := gen.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	latest, _ := store.LatestDigest(ctx)
	if latest == nil || latest.ID != "prev" {
		t.Errorf("expected no new digest beyond the previous one, got %+v", latest)
	}

	runs, _ := led.Query(ctx, ledger.RunFilter{Kind: models.RunKindDigest})
	if len(runs) != 1 || runs[0].Status != models.RunStatusWarning {
		t.Fatalf("expected warning record for empty window, got %+v", runs)
	}
}
