package models

import (
	"time"
)

// ContentItem is a single ingested piece of content belonging to a Source.
// Enrichment fields stay nil until their pipeline stage completes; an item
// is pending for the pipeline iff ProcessedAt is nil.
type ContentItem struct {
	ID          string     `json:"id"`
	SourceID    string     `json:"source_id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	RawContent  string     `json:"raw_content"`
	PublishedAt time.Time  `json:"published_at"`
	FetchedAt   time.Time  `json:"fetched_at"`
	Tags        []string   `json:"tags,omitempty"`
	Score       *float64   `json:"score,omitempty"`
	Summary     *string    `json:"summary,omitempty"`
	KeyPoints   []string   `json:"key_points,omitempty"`
	Embedding   []float32  `json:"embedding,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	StepLog     []StepLog  `json:"step_log,omitempty"`
}

// Pending reports whether the item still needs a pipeline run.
func (c *ContentItem) Pending() bool {
	return c.ProcessedAt == nil
}

// StepStatus is the outcome of one pipeline stage attempt on one item.
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepError   StepStatus = "error"
	StepSkip    StepStatus = "skip"
)

// StepLog records one stage transition for an item. The UI renders the
// per-item step history from these entries.
type StepLog struct {
	Stage  string     `json:"stage"`
	Status StepStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
	At     time.Time  `json:"at"`
}

// RawItem is the extractor's view of a fetched entry before it becomes a
// stored ContentItem.
type RawItem struct {
	Title       string
	URL         string
	Content     string
	PublishedAt time.Time
}
