package dashboard_test

import (
	"context"
	"io"
	"testing"
	"time"

	"log/slog"

	"github.com/briefwire/briefwire/internal/dashboard"
	"github.com/briefwire/briefwire/internal/database"
	"github.com/briefwire/briefwire/internal/ledger"
	"github.com/briefwire/briefwire/internal/models"
	"github.com/briefwire/briefwire/internal/scheduler"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDueCounter stands in for the fetch scheduler's due selection.
type fakeDueCounter struct {
	due []models.Source
}

func (f *fakeDueCounter) SelectDue(ctx context.Context, now time.Time, interval time.Duration) ([]models.Source, error) {
	return f.due, nil
}

func TestSnapshotProjectsOperationalState(t *testing.T) {
	store := database.NewMemoryStore()
	led := ledger.New(store, discard(), true)
	state := scheduler.NewState()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	lastFetched := now.Add(-10 * time.Minute)
	older := now.Add(-2 * time.Hour)
	for _, src := range []models.Source{
		{ID: "h1", URL: "https://h1.example", Active: true, HealthStatus: models.HealthHealthy, LastFetchedAt: &lastFetched, CreatedAt: older},
		{ID: "h2", URL: "https://h2.example", Active: true, HealthStatus: models.HealthHealthy, LastFetchedAt: &older, CreatedAt: older},
		{ID: "d1", URL: "https://d1.example", Active: true, HealthStatus: models.HealthDegraded, CreatedAt: older},
		{ID: "x1", URL: "https://x1.example", Active: false, HealthStatus: models.HealthDead, CreatedAt: older},
	} {
		if err := store.CreateSource(ctx, src); err != nil {
			t.Fatal(err)
		}
	}

	// Two pending items, one processed.
	processedAt := now.Add(-time.Hour)
	for _, item := range []models.ContentItem{
		{ID: "p1", SourceID: "h1", Title: "pending 1", URL: "https://h1.example/1", FetchedAt: older},
		{ID: "p2", SourceID: "h1", Title: "pending 2", URL: "https://h1.example/2", FetchedAt: older},
		{ID: "done", SourceID: "h2", Title: "done", URL: "https://h2.example/1", FetchedAt: older, ProcessedAt: &processedAt},
	} {
		if err := store.InsertItem(ctx, item); err != nil {
			t.Fatal(err)
		}
	}

	for _, cfg := range []models.ScheduleConfig{
		{Family: models.FamilyFetch, Enabled: true, Interval: 15 * time.Minute, LastRunAt: &lastFetched},
		{Family: models.FamilyPipeline, Enabled: false, Preset: "5m", Interval: 5 * time.Minute},
		{Family: models.FamilyDigest, Enabled: true, TimeOfDay: "07:00"},
	} {
		if err := store.UpsertSchedule(ctx, cfg); err != nil {
			t.Fatal(err)
		}
	}

	digestAt := now.Add(-5 * time.Hour)
	if err := store.StoreDigest(ctx, models.Digest{ID: "d", GeneratedAt: digestAt, ItemCount: 3, Body: "digest"}); err != nil {
		t.Fatal(err)
	}

	runID, _ := led.Begin(ctx, models.RunKindFetchSource, "Fetch: h1", models.FetchMeta{SourceName: "h1"})
	_ = led.Finish(ctx, runID, models.RunStatusSuccess, models.FetchMeta{SourceName: "h1", Inserted: 2})
	state.Register("in-flight-run")

	agg := dashboard.NewAggregator(store, store, store, store, led,
		&fakeDueCounter{due: []models.Source{{ID: "h2"}}}, state)

	snap, err := agg.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot returned error: %v", err)
	}

	if snap.Sources.Total != 4 || snap.Sources.Healthy != 2 || snap.Sources.Degraded != 1 || snap.Sources.Dead != 1 {
		t.Errorf("unexpected sources summary: %+v", snap.Sources)
	}
	if snap.Sources.LastFetchedAt == nil || !snap.Sources.LastFetchedAt.Equal(lastFetched) {
		t.Errorf("expected most recent fetch time, got %v", snap.Sources.LastFetchedAt)
	}
	if snap.Pipeline.Pending != 2 {
		t.Errorf("expected 2 pending items, got %d", snap.Pipeline.Pending)
	}
	if snap.FetchQueue.Pending != 1 || snap.FetchQueue.Running != 1 {
		t.Errorf("unexpected fetch queue: %+v", snap.FetchQueue)
	}
	if snap.Digest.LastGeneratedAt == nil || !snap.Digest.LastGeneratedAt.Equal(digestAt) {
		t.Errorf("unexpected digest timestamp: %v", snap.Digest.LastGeneratedAt)
	}
	if !snap.Digest.Enabled || snap.Digest.ScheduledTime != "07:00" {
		t.Errorf("unexpected digest status: %+v", snap.Digest)
	}

	if len(snap.RecentRuns) != 1 {
		t.Fatalf("expected 1 recent run, got %d", len(snap.RecentRuns))
	}
	run := snap.RecentRuns[0]
	if run.Kind != models.RunKindFetchSource || run.Status != models.RunStatusSuccess {
		t.Errorf("unexpected run view: %+v", run)
	}
	if run.Meta["inserted"] != 2 {
		t.Errorf("expected flattened meta with inserted=2, got %v", run.Meta)
	}

	if len(snap.ScheduledTasks) != 3 {
		t.Fatalf("expected 3 scheduled tasks, got %d", len(snap.ScheduledTasks))
	}
	byName := make(map[string]dashboard.ScheduledTask)
	for _, task := range snap.ScheduledTasks {
		byName[task.Name] = task
	}
	if byName["pipeline"].Status != "disabled" {
		t.Errorf("expected pipeline task disabled, got %+v", byName["pipeline"])
	}
	if byName["fetch"].NextRunAt == nil {
		t.Error("expected next run time for enabled interval schedule")
	}
	if byName["digest"].Frequency != "daily at 07:00" {
		t.Errorf("unexpected digest frequency: %q", byName["digest"].Frequency)
	}
}
