package models

import (
	"fmt"
	"time"
)

// TaskFamily groups scheduled work by the scheduler that owns it.
type TaskFamily string

const (
	FamilyFetch    TaskFamily = "fetch"
	FamilyPipeline TaskFamily = "pipeline"
	FamilyDigest   TaskFamily = "digest"
)

// ScheduleConfig holds per-family scheduling parameters. Schedulers read
// it at decision time; it is written only through configuration updates.
type ScheduleConfig struct {
	Family    TaskFamily    `json:"family"`
	Enabled   bool          `json:"enabled"`
	Preset    string        `json:"preset,omitempty"` // e.g. "15m", "hourly", "6h"
	Interval  time.Duration `json:"interval"`
	TimeOfDay string        `json:"time_of_day,omitempty"` // "HH:MM", daily tasks only
	BatchSize int           `json:"batch_size,omitempty"`
	Lookback  time.Duration `json:"lookback,omitempty"`
	LastRunAt *time.Time    `json:"last_run_at,omitempty"`
}

// cadence presets accepted in Preset.
var presetIntervals = map[string]time.Duration{
	"5m":     5 * time.Minute,
	"15m":    15 * time.Minute,
	"30m":    30 * time.Minute,
	"hourly": time.Hour,
	"6h":     6 * time.Hour,
	"12h":    12 * time.Hour,
	"daily":  24 * time.Hour,
}

// ParsePreset resolves a cadence preset name to its interval. Unknown
// presets are also tried as a Go duration string ("90m").
func ParsePreset(preset string) (time.Duration, error) {
	if d, ok := presetIntervals[preset]; ok {
		return d, nil
	}
	if d, err := time.ParseDuration(preset); err == nil && d > 0 {
		return d, nil
	}
	return 0, fmt.Errorf("unknown cadence preset: %q", preset)
}

// EffectiveInterval returns the configured interval, resolving the preset
// when an explicit interval is not set.
func (c ScheduleConfig) EffectiveInterval() time.Duration {
	if c.Interval > 0 {
		return c.Interval
	}
	if d, err := ParsePreset(c.Preset); err == nil {
		return d
	}
	return 0
}

// DueAt returns when the family is next due. Daily time-of-day schedules
// are handled separately by the scheduler loop.
func (c ScheduleConfig) DueAt() time.Time {
	if c.LastRunAt == nil {
		return time.Time{}
	}
	return c.LastRunAt.Add(c.EffectiveInterval())
}

// Due reports whether an interval-based schedule should run at now.
func (c ScheduleConfig) Due(now time.Time) bool {
	if !c.Enabled {
		return false
	}
	if c.LastRunAt == nil {
		return true
	}
	return !now.Before(c.DueAt())
}

// Digest is the periodic roll-up of processed items. Delivery is an
// external concern; the core stores the composed payload for readers.
type Digest struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`
	ItemCount   int       `json:"item_count"`
	Body        string    `json:"body"`
}

// IngestionError is an operator-visible record of a fetch or parse
// failure, kept separate from the run ledger for error-centric queries.
type IngestionError struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"source_id,omitempty"`
	ErrorType string    `json:"error_type"` // e.g. "fetch_failed", "parse_failed"
	URL       string    `json:"url,omitempty"`
	ErrorMsg  string    `json:"error_msg"`
	CreatedAt time.Time `json:"created_at"`
}
