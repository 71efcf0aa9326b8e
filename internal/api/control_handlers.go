package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/briefwire/briefwire/internal/models"
	"github.com/briefwire/briefwire/internal/scheduler"
	"log/slog"
)

// FetchRunner triggers a fetch pass over the due sources.
type FetchRunner interface {
	RunDue(ctx context.Context, interval time.Duration, runs *scheduler.State) (string, models.FetchMeta, error)
}

// PipelineRunner triggers a pipeline batch over pending items.
type PipelineRunner interface {
	RunBatch(ctx context.Context, maxItems int, runs *scheduler.State) (string, models.BatchMeta, error)
}

// ControlHandlers is the operator control surface: manual task triggers
// and cooperative stop of in-flight runs. Triggered tasks run in the
// background and land in the run ledger like scheduled ones.
type ControlHandlers struct {
	fetcher   FetchRunner
	pipeline  PipelineRunner
	schedules scheduler.ScheduleStore
	runs      *scheduler.State
	logger    *slog.Logger

	// fallback cadence when no fetch schedule is stored
	fetchInterval time.Duration
}

// NewControlHandlers creates the manual trigger handlers.
func NewControlHandlers(fetcher FetchRunner, pipeline PipelineRunner, schedules scheduler.ScheduleStore, runs *scheduler.State, fetchInterval time.Duration, logger *slog.Logger) *ControlHandlers {
	return &ControlHandlers{
		fetcher:       fetcher,
		pipeline:      pipeline,
		schedules:     schedules,
		runs:          runs,
		logger:        logger,
		fetchInterval: fetchInterval,
	}
}

// TriggerFetch handles POST /api/control/run-fetch
func (h *ControlHandlers) TriggerFetch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	interval := h.fetchInterval
	if cfg, err := h.schedules.GetSchedule(r.Context(), models.FamilyFetch); err == nil && cfg != nil {
		if d := cfg.EffectiveInterval(); d > 0 {
			interval = d
		}
	}

	go func() {
		runID, meta, err := h.fetcher.RunDue(context.Background(), interval, h.runs)
		if err != nil {
			h.logger.Error("manual fetch run failed", "error", err)
			return
		}
		if runID == "" {
			h.logger.Info("manual fetch run: no sources due")
			return
		}
		h.logger.Info("manual fetch run complete",
			"run_id", runID,
			"inserted", meta.Inserted,
			"skipped", meta.Skipped,
			"failed", meta.Failed,
		)
	}()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{"triggered": true})
}

type triggerPipelineRequest struct {
	BatchSize int `json:"batch_size"`
}

// TriggerPipeline handles POST /api/control/run-pipeline
func (h *ControlHandlers) TriggerPipeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Body is optional; an absent or empty body uses the configured batch size.
	var req triggerPipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.BatchSize < 0 {
		http.Error(w, "batch_size must be positive", http.StatusBadRequest)
		return
	}

	go func() {
		runID, meta, err := h.pipeline.RunBatch(context.Background(), req.BatchSize, h.runs)
		if err != nil {
			h.logger.Error("manual pipeline run failed", "error", err)
			return
		}
		if runID == "" {
			h.logger.Info("manual pipeline run: no pending items")
			return
		}
		h.logger.Info("manual pipeline run complete",
			"run_id", runID,
			"processed", meta.Processed,
			"failed", meta.Failed,
		)
	}()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{"triggered": true})
}

type stopTaskRequest struct {
	RunID string `json:"run_id"`
}

// StopTask handles POST /api/control/stop
func (h *ControlHandlers) StopTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req stopTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RunID == "" {
		http.Error(w, "run_id is required", http.StatusBadRequest)
		return
	}

	if !h.runs.Stop(req.RunID) {
		http.Error(w, "No running task with that run ID", http.StatusNotFound)
		return
	}

	h.logger.Info("stop requested for running task", "run_id", req.RunID)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"run_id":  req.RunID,
		"stopped": true,
	})
}
