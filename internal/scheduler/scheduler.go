// Package scheduler runs the timer-driven loops that decide when each task
// family (fetch, pipeline, digest) executes, and tracks cancellation
// tokens for in-flight runs. Manual operator triggers invoke the same run
// functions as the loops, so they share the same worker-pool bounds.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/briefwire/briefwire/internal/models"
)

// ScheduleStore reads and advances per-family schedule configuration.
type ScheduleStore interface {
	GetSchedule(ctx context.Context, family models.TaskFamily) (*models.ScheduleConfig, error)
	UpsertSchedule(ctx context.Context, cfg models.ScheduleConfig) error
}

// RunFunc executes one tick of a task family's work.
type RunFunc func(ctx context.Context) error

// TaskScheduler wakes on a short check interval and runs its task family
// when the schedule says it is due. Interval schedules fire when
// lastRun+interval has passed; time-of-day schedules fire once per day at
// the configured minute.
type TaskScheduler struct {
	family        models.TaskFamily
	store         ScheduleStore
	run           RunFunc
	logger        *slog.Logger
	checkInterval time.Duration
	stopChan      chan struct{}
	now           func() time.Time
}

// NewTaskScheduler creates a scheduler loop for one task family.
func NewTaskScheduler(family models.TaskFamily, store ScheduleStore, run RunFunc, logger *slog.Logger) *TaskScheduler {
	return &TaskScheduler{
		family:        family,
		store:         store,
		run:           run,
		logger:        logger,
		checkInterval: time.Minute,
		stopChan:      make(chan struct{}),
		now:           time.Now,
	}
}

// Start begins the scheduler loop. It blocks until Stop is called or the
// context is cancelled.
func (s *TaskScheduler) Start(ctx context.Context) {
	s.logger.Info("starting scheduler", "family", s.family, "check_interval", s.checkInterval)
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-s.stopChan:
			s.logger.Info("scheduler stopped", "family", s.family)
			return
		case <-ctx.Done():
			s.logger.Info("scheduler stopping, context cancelled", "family", s.family)
			return
		}
	}
}

// Stop terminates the scheduler loop.
func (s *TaskScheduler) Stop() {
	close(s.stopChan)
}

func (s *TaskScheduler) tick(ctx context.Context) {
	cfg, err := s.store.GetSchedule(ctx, s.family)
	if err != nil {
		s.logger.Error("failed to load schedule", "family", s.family, "error", err)
		return
	}
	if cfg == nil || !s.due(*cfg) {
		return
	}

	now := s.now()
	cfg.LastRunAt = &now
	if err := s.store.UpsertSchedule(ctx, *cfg); err != nil {
		s.logger.Error("failed to advance schedule", "family", s.family, "error", err)
		return
	}

	s.logger.Info("schedule due, running task", "family", s.family)
	if err := s.run(ctx); err != nil {
		s.logger.Error("scheduled run failed", "family", s.family, "error", err)
	}
}

func (s *TaskScheduler) due(cfg models.ScheduleConfig) bool {
	if !cfg.Enabled {
		return false
	}

	now := s.now()
	if cfg.TimeOfDay != "" {
		if now.Format("15:04") != cfg.TimeOfDay {
			return false
		}
		// At most once per day.
		if cfg.LastRunAt != nil {
			last := *cfg.LastRunAt
			if last.Year() == now.Year() && last.YearDay() == now.YearDay() {
				return false
			}
		}
		return true
	}

	return cfg.Due(now)
}
