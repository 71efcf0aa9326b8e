package models

import (
	"time"
)

// Source represents a registered content origin (an RSS/Atom feed or a
// website fetched through the agent-based extractor).
type Source struct {
	ID                  string         `json:"id"`
	Name                string         `json:"name"`
	URL                 string         `json:"url"`
	Mode                ExtractionMode `json:"mode"`
	HealthStatus        HealthStatus   `json:"health_status"`
	ConsecutiveFailures uint           `json:"consecutive_failures"`
	LastFetchedAt       *time.Time     `json:"last_fetched_at,omitempty"`
	LastErrorAt         *time.Time     `json:"last_error_at,omitempty"`
	LastError           string         `json:"last_error,omitempty"`
	Active              bool           `json:"active"`
	CreatedAt           time.Time      `json:"created_at"`
}

// ExtractionMode selects the fetch strategy used for a source.
type ExtractionMode string

const (
	ExtractionModeFeed  ExtractionMode = "feed"  // RSS/Atom via feed parser
	ExtractionModeAgent ExtractionMode = "agent" // page scrape + readability extraction
)

// HealthStatus classifies a source by its recent fetch outcomes. It is
// derived from ConsecutiveFailures by the health tracker and never set
// directly.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthDead     HealthStatus = "dead"
)

// GetDisplayName returns a human-readable identifier for the source.
func (s *Source) GetDisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.URL
}

// NeverFetched reports whether the source has no recorded fetch attempt.
func (s *Source) NeverFetched() bool {
	return s.LastFetchedAt == nil
}

// DueAt returns the earliest time the source becomes due for a scheduled
// fetch given the fetch cadence interval.
func (s *Source) DueAt(interval time.Duration) time.Time {
	if s.LastFetchedAt == nil {
		return s.CreatedAt
	}
	return s.LastFetchedAt.Add(interval)
}
