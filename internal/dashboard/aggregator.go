// Package dashboard projects the ledger, source health and queue depths
// into a single operational snapshot. It is a pure read computed on every
// call; consumers poll it and nothing here mutates state.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/briefwire/briefwire/internal/ledger"
	"github.com/briefwire/briefwire/internal/models"
	"github.com/briefwire/briefwire/internal/scheduler"
)

// SourceReader lists sources for the summary block.
type SourceReader interface {
	ListSources(ctx context.Context, includeInactive bool) ([]models.Source, error)
}

// QueueReader exposes pending-queue depths.
type QueueReader interface {
	CountPendingItems(ctx context.Context) (int, error)
}

// ScheduleReader lists the per-family schedules.
type ScheduleReader interface {
	ListSchedules(ctx context.Context) ([]models.ScheduleConfig, error)
	GetSchedule(ctx context.Context, family models.TaskFamily) (*models.ScheduleConfig, error)
}

// DigestReader reads the latest digest for the digest status block.
type DigestReader interface {
	LatestDigest(ctx context.Context) (*models.Digest, error)
}

// Snapshot is the operational state served to dashboard consumers.
type Snapshot struct {
	Sources        SourcesSummary   `json:"sources"`
	FetchQueue     FetchQueue       `json:"fetch_queue"`
	Pipeline       PipelineQueue    `json:"pipeline"`
	Digest         DigestStatus     `json:"digest"`
	RecentRuns     []RunView        `json:"recent_runs"`
	ScheduledTasks []ScheduledTask  `json:"scheduled_tasks"`
	GeneratedAt    time.Time        `json:"generated_at"`
}

// SourcesSummary counts sources by health classification.
type SourcesSummary struct {
	Total         int        `json:"total"`
	Healthy       int        `json:"healthy"`
	Degraded      int        `json:"degraded"`
	Dead          int        `json:"dead"`
	LastFetchedAt *time.Time `json:"last_fetched_at,omitempty"`
}

// FetchQueue reports fetch work state.
type FetchQueue struct {
	Pending int `json:"pending"` // sources currently due
	Running int `json:"running"` // in-flight tasks in the registry
}

// PipelineQueue reports enrichment backlog.
type PipelineQueue struct {
	Pending int `json:"pending"`
}

// DigestStatus reports the digest task state.
type DigestStatus struct {
	LastGeneratedAt *time.Time `json:"last_generated_at,omitempty"`
	Enabled         bool       `json:"enabled"`
	ScheduledTime   string     `json:"scheduled_time,omitempty"`
}

// ScheduledTask is one row of the scheduled-tasks table.
type ScheduledTask struct {
	Name      string     `json:"name"`
	Frequency string     `json:"frequency"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	Status    string     `json:"status"`
}

// RunView is a run record with its meta flattened for API consumers; the
// typed meta variants exist only inside the process.
type RunView struct {
	ID         string         `json:"id"`
	Kind       models.RunKind `json:"kind"`
	Status     models.RunStatus `json:"status"`
	Label      string         `json:"label"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// NewRunView flattens a run record for serialization.
func NewRunView(rec models.RunRecord) RunView {
	view := RunView{
		ID:         rec.ID,
		Kind:       rec.Kind,
		Status:     rec.Status,
		Label:      rec.Label,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
	}
	if rec.Meta != nil {
		view.Meta = rec.Meta.Map()
	}
	return view
}

// DueCounter reports how many sources are currently due for fetch.
type DueCounter interface {
	SelectDue(ctx context.Context, now time.Time, interval time.Duration) ([]models.Source, error)
}

// Aggregator computes dashboard snapshots.
type Aggregator struct {
	sources   SourceReader
	queue     QueueReader
	schedules ScheduleReader
	digests   DigestReader
	led       *ledger.Ledger
	due       DueCounter
	state     *scheduler.State
	now       func() time.Time
}

// NewAggregator creates a dashboard aggregator.
func NewAggregator(
	sources SourceReader,
	queue QueueReader,
	schedules ScheduleReader,
	digests DigestReader,
	led *ledger.Ledger,
	due DueCounter,
	state *scheduler.State,
) *Aggregator {
	return &Aggregator{
		sources:   sources,
		queue:     queue,
		schedules: schedules,
		digests:   digests,
		led:       led,
		due:       due,
		state:     state,
		now:       time.Now,
	}
}

// Snapshot assembles the full dashboard view. No caching: consumers poll,
// and the underlying reads are cheap.
func (a *Aggregator) Snapshot(ctx context.Context) (*Snapshot, error) {
	now := a.now()
	snap := &Snapshot{GeneratedAt: now}

	sources, err := a.sources.ListSources(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	for _, src := range sources {
		snap.Sources.Total++
		switch src.HealthStatus {
		case models.HealthDegraded:
			snap.Sources.Degraded++
		case models.HealthDead:
			snap.Sources.Dead++
		default:
			snap.Sources.Healthy++
		}
		if src.LastFetchedAt != nil &&
			(snap.Sources.LastFetchedAt == nil || src.LastFetchedAt.After(*snap.Sources.LastFetchedAt)) {
			snap.Sources.LastFetchedAt = src.LastFetchedAt
		}
	}

	pending, err := a.queue.CountPendingItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("count pending items: %w", err)
	}
	snap.Pipeline.Pending = pending
	snap.FetchQueue.Running = a.state.RunningCount()

	fetchCfg, err := a.schedules.GetSchedule(ctx, models.FamilyFetch)
	if err != nil {
		return nil, fmt.Errorf("load fetch schedule: %w", err)
	}
	if fetchCfg != nil {
		due, err := a.due.SelectDue(ctx, now, fetchCfg.EffectiveInterval())
		if err != nil {
			return nil, fmt.Errorf("select due sources: %w", err)
		}
		snap.FetchQueue.Pending = len(due)
	}

	if latest, err := a.digests.LatestDigest(ctx); err == nil && latest != nil {
		at := latest.GeneratedAt
		snap.Digest.LastGeneratedAt = &at
	}
	if digestCfg, err := a.schedules.GetSchedule(ctx, models.FamilyDigest); err == nil && digestCfg != nil {
		snap.Digest.Enabled = digestCfg.Enabled
		snap.Digest.ScheduledTime = digestCfg.TimeOfDay
	}

	recent, err := a.led.Query(ctx, ledger.RunFilter{Limit: 20})
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	snap.RecentRuns = make([]RunView, 0, len(recent))
	for _, rec := range recent {
		snap.RecentRuns = append(snap.RecentRuns, NewRunView(rec))
	}

	schedules, err := a.schedules.ListSchedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	snap.ScheduledTasks = make([]ScheduledTask, 0, len(schedules))
	for _, cfg := range schedules {
		task := ScheduledTask{
			Name:      string(cfg.Family),
			LastRunAt: cfg.LastRunAt,
			Status:    "enabled",
		}
		if !cfg.Enabled {
			task.Status = "disabled"
		}
		if cfg.TimeOfDay != "" {
			task.Frequency = "daily at " + cfg.TimeOfDay
		} else if cfg.Preset != "" {
			task.Frequency = cfg.Preset
		} else {
			task.Frequency = cfg.EffectiveInterval().String()
		}
		if cfg.Enabled && cfg.TimeOfDay == "" {
			if cfg.LastRunAt == nil {
				task.NextRunAt = &now
			} else {
				next := cfg.DueAt()
				task.NextRunAt = &next
			}
		}
		snap.ScheduledTasks = append(snap.ScheduledTasks, task)
	}

	return snap, nil
}
