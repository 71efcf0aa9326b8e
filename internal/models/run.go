package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// RunKind identifies the task family a run record belongs to.
type RunKind string

const (
	RunKindFetchSource   RunKind = "fetch-source"
	RunKindFetchBatch    RunKind = "fetch-batch"
	RunKindPipelineItem  RunKind = "pipeline-item"
	RunKindPipelineBatch RunKind = "pipeline-batch"
	RunKindDigest        RunKind = "digest"
)

// RunStatus is the lifecycle state of a run record. A record is running
// iff FinishedAt is nil; every other status is terminal.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusWarning RunStatus = "warning"
	RunStatusError   RunStatus = "error"
	RunStatusStopped RunStatus = "stopped"
)

// Terminal reports whether the status finalizes a run.
func (s RunStatus) Terminal() bool {
	return s != RunStatusRunning
}

// RunRecord is one ledger entry describing a single task execution.
// Records are mutable while running and immutable once finalized.
type RunRecord struct {
	ID         string     `json:"id"`
	Kind       RunKind    `json:"kind"`
	Status     RunStatus  `json:"status"`
	Label      string     `json:"label"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Meta       RunMeta    `json:"meta,omitempty"`
}

// RunMeta is the kind-specific payload of a run record. Each kind has its
// own variant; the open map representation exists only at the
// serialization boundary (API responses, database storage).
type RunMeta interface {
	RunKind() RunKind
	// Map flattens the variant for the serialization boundary.
	Map() map[string]any
}

// FetchMeta describes a fetch-source or fetch-batch run.
type FetchMeta struct {
	SourceName string `json:"source_name,omitempty"`
	Inserted   int    `json:"inserted"`
	Skipped    int    `json:"skipped"`
	Sources    int    `json:"sources,omitempty"` // fetch-batch only
	Failed     int    `json:"failed,omitempty"`  // fetch-batch only
	Error      string `json:"error,omitempty"`
	batch      bool
}

// NewFetchBatchMeta returns a FetchMeta tagged as a fetch-batch payload.
func NewFetchBatchMeta(sources int) FetchMeta {
	return FetchMeta{Sources: sources, batch: true}
}

// AsBatch re-tags the meta as a fetch-batch payload, preserving counts.
func (m FetchMeta) AsBatch() FetchMeta {
	m.batch = true
	return m
}

func (m FetchMeta) RunKind() RunKind {
	if m.batch {
		return RunKindFetchBatch
	}
	return RunKindFetchSource
}

func (m FetchMeta) Map() map[string]any {
	out := map[string]any{"inserted": m.Inserted, "skipped": m.Skipped}
	if m.SourceName != "" {
		out["source_name"] = m.SourceName
	}
	if m.batch {
		out["sources"] = m.Sources
		out["failed"] = m.Failed
	}
	if m.Error != "" {
		out["error"] = m.Error
	}
	return out
}

// ItemMeta describes a pipeline-item run.
type ItemMeta struct {
	ItemID    string `json:"item_id"`
	ItemTitle string `json:"item_title,omitempty"`
	Stage     string `json:"stage,omitempty"` // current or failing stage
	Skipped   int    `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (m ItemMeta) RunKind() RunKind { return RunKindPipelineItem }

func (m ItemMeta) Map() map[string]any {
	out := map[string]any{"item_id": m.ItemID}
	if m.ItemTitle != "" {
		out["item_title"] = m.ItemTitle
	}
	if m.Stage != "" {
		out["stage"] = m.Stage
	}
	if m.Skipped > 0 {
		out["skipped"] = m.Skipped
	}
	if m.Error != "" {
		out["error"] = m.Error
	}
	return out
}

// BatchMeta describes a pipeline-batch run.
type BatchMeta struct {
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Error     string `json:"error,omitempty"`
}

func (m BatchMeta) RunKind() RunKind { return RunKindPipelineBatch }

func (m BatchMeta) Map() map[string]any {
	out := map[string]any{"total": m.Total, "processed": m.Processed, "failed": m.Failed}
	if m.Error != "" {
		out["error"] = m.Error
	}
	return out
}

// DigestMeta describes a digest run.
type DigestMeta struct {
	ItemCount int    `json:"item_count"`
	Error     string `json:"error,omitempty"`
}

func (m DigestMeta) RunKind() RunKind { return RunKindDigest }

func (m DigestMeta) Map() map[string]any {
	out := map[string]any{"item_count": m.ItemCount}
	if m.Error != "" {
		out["error"] = m.Error
	}
	return out
}

// DecodeRunMeta reconstructs the typed variant for a kind from its JSON
// representation. Used when loading records from storage.
func DecodeRunMeta(kind RunKind, raw []byte) (RunMeta, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	switch kind {
	case RunKindFetchSource:
		var m FetchMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	case RunKindFetchBatch:
		var m FetchMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		m.batch = true
		return m, nil
	case RunKindPipelineItem:
		var m ItemMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	case RunKindPipelineBatch:
		var m BatchMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	case RunKindDigest:
		var m DigestMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown run kind: %s", kind)
	}
}
