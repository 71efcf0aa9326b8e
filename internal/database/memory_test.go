package database

import (
	"context"
	"testing"
	"time"

	"github.com/briefwire/briefwire/internal/models"
)

func TestDeleteSourceCascadesToItems(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.CreateSource(ctx, models.Source{ID: "s1", URL: "https://a.example", Active: true}); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateSource(ctx, models.Source{ID: "s2", URL: "https://b.example", Active: true}); err != nil {
		t.Fatal(err)
	}
	for i, sourceID := range []string{"s1", "s1", "s2"} {
		item := models.ContentItem{
			ID:       "i" + string(rune('1'+i)),
			SourceID: sourceID,
			URL:      "https://example.com/" + string(rune('1'+i)),
		}
		if err := store.InsertItem(ctx, item); err != nil {
			t.Fatal(err)
		}
	}

	if err := store.DeleteSource(ctx, "s1"); err != nil {
		t.Fatal(err)
	}

	if src, _ := store.GetSource(ctx, "s1"); src != nil {
		t.Error("expected source s1 deleted")
	}
	for _, id := range []string{"i1", "i2"} {
		if item, _ := store.GetItem(ctx, id); item != nil {
			t.Errorf("expected item %s cascaded away", id)
		}
	}
	if item, _ := store.GetItem(ctx, "i3"); item == nil {
		t.Error("item of surviving source was deleted")
	}
}

func TestListPendingItemsOldestFirstWithLimit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	processedAt := base.Add(30 * time.Minute)
	items := []models.ContentItem{
		{ID: "newest", SourceID: "s1", FetchedAt: base.Add(3 * time.Minute)},
		{ID: "oldest", SourceID: "s1", FetchedAt: base.Add(1 * time.Minute)},
		{ID: "middle", SourceID: "s1", FetchedAt: base.Add(2 * time.Minute)},
		{ID: "done", SourceID: "s1", FetchedAt: base, ProcessedAt: &processedAt},
	}
	for _, item := range items {
		if err := store.InsertItem(ctx, item); err != nil {
			t.Fatal(err)
		}
	}

	pending, err := store.ListPendingItems(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending items, got %d", len(pending))
	}
	for i, want := range []string{"oldest", "middle", "newest"} {
		if pending[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, pending[i].ID)
		}
	}

	limited, _ := store.ListPendingItems(ctx, 2)
	if len(limited) != 2 || limited[0].ID != "oldest" {
		t.Errorf("limit did not keep oldest-first order: %+v", limited)
	}
}

func TestListProcessedSinceOrdersByScore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	scores := map[string]float64{"low": 2, "high": 9, "mid": 5}
	for id, score := range scores {
		s := score
		at := now.Add(-time.Hour)
		item := models.ContentItem{ID: id, SourceID: "s1", Score: &s, ProcessedAt: &at, FetchedAt: at}
		if err := store.InsertItem(ctx, item); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.ListProcessedSince(ctx, now.Add(-2*time.Hour), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].ID != "high" || got[2].ID != "low" {
		ids := make([]string, 0, len(got))
		for _, item := range got {
			ids = append(ids, item.ID)
		}
		t.Errorf("expected score-descending order, got %v", ids)
	}

	none, _ := store.ListProcessedSince(ctx, now, 10)
	if len(none) != 0 {
		t.Errorf("expected empty window, got %d items", len(none))
	}
}
