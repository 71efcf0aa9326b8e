package api

import (
	"encoding/json"
	"net/http"

	"github.com/briefwire/briefwire/internal/dashboard"
	"log/slog"
)

// DashboardHandler serves the operational snapshot to polling consumers.
type DashboardHandler struct {
	aggregator *dashboard.Aggregator
	logger     *slog.Logger
}

// NewDashboardHandler creates a dashboard handler.
func NewDashboardHandler(aggregator *dashboard.Aggregator, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{aggregator: aggregator, logger: logger}
}

// GetSnapshot handles GET /api/dashboard
func (h *DashboardHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, err := h.aggregator.Snapshot(r.Context())
	if err != nil {
		h.logger.Error("failed to build dashboard snapshot", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(snap)
}
