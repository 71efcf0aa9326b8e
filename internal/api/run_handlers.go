package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/briefwire/briefwire/internal/dashboard"
	"github.com/briefwire/briefwire/internal/ledger"
	"github.com/briefwire/briefwire/internal/models"
	"log/slog"
)

// ErrorLister reads the ingestion error trail.
type ErrorLister interface {
	ListErrors(ctx context.Context, limit int) ([]models.IngestionError, error)
}

// RunHandlers serves run ledger queries and the ingestion error trail.
type RunHandlers struct {
	led    *ledger.Ledger
	errs   ErrorLister
	logger *slog.Logger
}

// NewRunHandlers creates the ledger query handlers.
func NewRunHandlers(led *ledger.Ledger, errs ErrorLister, logger *slog.Logger) *RunHandlers {
	return &RunHandlers{led: led, errs: errs, logger: logger}
}

// ListRuns handles GET /api/runs?kind=&status=&limit=
func (h *RunHandlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filter := ledger.RunFilter{
		Kind:   models.RunKind(r.URL.Query().Get("kind")),
		Status: models.RunStatus(r.URL.Query().Get("status")),
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			filter.Limit = l
		}
	}

	records, err := h.led.Query(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to query runs", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	views := make([]dashboard.RunView, 0, len(records))
	for _, rec := range records {
		views = append(views, dashboard.NewRunView(rec))
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"runs":  views,
		"count": len(views),
	})
}

// GetRun handles GET /api/runs/:id
func (h *RunHandlers) GetRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID := pathSegment(r.URL.Path, 3)
	if runID == "" {
		http.Error(w, "Run ID required", http.StatusBadRequest)
		return
	}

	rec, err := h.led.Get(r.Context(), runID)
	if err != nil {
		h.logger.Error("failed to get run", "run_id", runID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(dashboard.NewRunView(*rec))
}

// ListErrors handles GET /api/ingestion-errors?limit=
func (h *RunHandlers) ListErrors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	errors, err := h.errs.ListErrors(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list ingestion errors", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"errors": errors,
		"count":  len(errors),
	})
}
