package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/briefwire/briefwire/internal/models"
	"log/slog"
)

// ScheduleRepository reads and writes per-family schedule configuration.
type ScheduleRepository interface {
	GetSchedule(ctx context.Context, family models.TaskFamily) (*models.ScheduleConfig, error)
	UpsertSchedule(ctx context.Context, cfg models.ScheduleConfig) error
	ListSchedules(ctx context.Context) ([]models.ScheduleConfig, error)
}

// ScheduleHandlers serves schedule configuration endpoints.
type ScheduleHandlers struct {
	repo   ScheduleRepository
	logger *slog.Logger
}

// NewScheduleHandlers creates the schedule config handlers.
func NewScheduleHandlers(repo ScheduleRepository, logger *slog.Logger) *ScheduleHandlers {
	return &ScheduleHandlers{repo: repo, logger: logger}
}

// ListSchedules handles GET /api/schedules
func (h *ScheduleHandlers) ListSchedules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	schedules, err := h.repo.ListSchedules(r.Context())
	if err != nil {
		h.logger.Error("failed to list schedules", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"schedules": schedules,
		"count":     len(schedules),
	})
}

type updateScheduleRequest struct {
	Enabled   *bool   `json:"enabled"`
	Preset    *string `json:"preset"`
	TimeOfDay *string `json:"time_of_day"`
	BatchSize *int    `json:"batch_size"`
}

// HandleScheduleByFamily handles GET/PUT /api/schedules/:family
func (h *ScheduleHandlers) HandleScheduleByFamily(w http.ResponseWriter, r *http.Request) {
	family := models.TaskFamily(pathSegment(r.URL.Path, 3))
	switch family {
	case models.FamilyFetch, models.FamilyPipeline, models.FamilyDigest:
	default:
		http.Error(w, "Unknown task family", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getSchedule(w, r, family)
	case http.MethodPut:
		h.updateSchedule(w, r, family)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ScheduleHandlers) getSchedule(w http.ResponseWriter, r *http.Request, family models.TaskFamily) {
	cfg, err := h.repo.GetSchedule(r.Context(), family)
	if err != nil {
		h.logger.Error("failed to get schedule", "family", family, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if cfg == nil {
		http.Error(w, "Schedule not configured", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(cfg)
}

// updateSchedule applies a partial schedule update, preserving the last
// run marker so a cadence change does not immediately re-fire the task.
func (h *ScheduleHandlers) updateSchedule(w http.ResponseWriter, r *http.Request, family models.TaskFamily) {
	var req updateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	cfg, err := h.repo.GetSchedule(r.Context(), family)
	if err != nil {
		h.logger.Error("failed to get schedule", "family", family, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if cfg == nil {
		cfg = &models.ScheduleConfig{Family: family}
	}

	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	if req.Preset != nil {
		interval, err := models.ParsePreset(*req.Preset)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		cfg.Preset = *req.Preset
		cfg.Interval = interval
		cfg.TimeOfDay = ""
	}
	if req.TimeOfDay != nil {
		if *req.TimeOfDay != "" {
			if _, err := time.Parse("15:04", *req.TimeOfDay); err != nil {
				http.Error(w, "time_of_day must be HH:MM", http.StatusBadRequest)
				return
			}
		}
		cfg.TimeOfDay = *req.TimeOfDay
	}
	if req.BatchSize != nil {
		if *req.BatchSize <= 0 {
			http.Error(w, "batch_size must be positive", http.StatusBadRequest)
			return
		}
		cfg.BatchSize = *req.BatchSize
	}

	if err := h.repo.UpsertSchedule(r.Context(), *cfg); err != nil {
		h.logger.Error("failed to update schedule", "family", family, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("schedule updated",
		"family", family,
		"enabled", cfg.Enabled,
		"preset", cfg.Preset,
		"time_of_day", cfg.TimeOfDay,
	)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(cfg)
}
