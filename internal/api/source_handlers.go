package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/briefwire/briefwire/internal/models"
	"github.com/google/uuid"
	"log/slog"
)

// SourceRepository is the persistence surface the source handlers need.
type SourceRepository interface {
	CreateSource(ctx context.Context, src models.Source) error
	GetSource(ctx context.Context, id string) (*models.Source, error)
	ListSources(ctx context.Context, includeInactive bool) ([]models.Source, error)
	UpdateSource(ctx context.Context, src models.Source) error
	DeleteSource(ctx context.Context, id string) error
}

// Retrier re-enters a dead source into fetch selection.
type Retrier interface {
	RetrySource(sourceID string)
}

// SourceHandlers serves source registration and lifecycle endpoints.
type SourceHandlers struct {
	repo    SourceRepository
	retrier Retrier
	logger  *slog.Logger
}

// NewSourceHandlers creates the source CRUD handlers.
func NewSourceHandlers(repo SourceRepository, retrier Retrier, logger *slog.Logger) *SourceHandlers {
	return &SourceHandlers{repo: repo, retrier: retrier, logger: logger}
}

// HandleSources handles GET /api/sources and POST /api/sources
func (h *SourceHandlers) HandleSources(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listSources(w, r)
	case http.MethodPost:
		h.createSource(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleSourceByID handles GET/PUT/DELETE /api/sources/:id and
// POST /api/sources/:id/retry
func (h *SourceHandlers) HandleSourceByID(w http.ResponseWriter, r *http.Request) {
	if pathSegment(r.URL.Path, 4) == "retry" {
		h.retrySource(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getSource(w, r)
	case http.MethodPut:
		h.updateSource(w, r)
	case http.MethodDelete:
		h.deleteSource(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SourceHandlers) listSources(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"

	sources, err := h.repo.ListSources(r.Context(), includeInactive)
	if err != nil {
		h.logger.Error("failed to list sources", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"sources": sources,
		"count":   len(sources),
	})
}

type createSourceRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Mode string `json:"mode"`
}

func (h *SourceHandlers) createSource(w http.ResponseWriter, r *http.Request) {
	var req createSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := validateSourceRequest(req.URL, req.Mode); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	src := models.Source{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(req.Name),
		URL:          req.URL,
		Mode:         models.ExtractionMode(req.Mode),
		HealthStatus: models.HealthHealthy,
		Active:       true,
		CreatedAt:    time.Now(),
	}

	if err := h.repo.CreateSource(r.Context(), src); err != nil {
		h.logger.Error("failed to create source", "url", src.URL, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("source registered", "source", src.GetDisplayName(), "mode", src.Mode)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(src)
}

func (h *SourceHandlers) getSource(w http.ResponseWriter, r *http.Request) {
	src, ok := h.loadSource(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(src)
}

type updateSourceRequest struct {
	Name   *string `json:"name"`
	URL    *string `json:"url"`
	Mode   *string `json:"mode"`
	Active *bool   `json:"active"`
}

// updateSource applies a partial update. Health fields are owned by the
// health tracker and cannot be set through the API.
func (h *SourceHandlers) updateSource(w http.ResponseWriter, r *http.Request) {
	src, ok := h.loadSource(w, r)
	if !ok {
		return
	}

	var req updateSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name != nil {
		src.Name = strings.TrimSpace(*req.Name)
	}
	if req.URL != nil {
		src.URL = *req.URL
	}
	if req.Mode != nil {
		src.Mode = models.ExtractionMode(*req.Mode)
	}
	if req.Active != nil {
		src.Active = *req.Active
	}

	if err := validateSourceRequest(src.URL, string(src.Mode)); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.repo.UpdateSource(r.Context(), *src); err != nil {
		h.logger.Error("failed to update source", "source_id", src.ID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(src)
}

// deleteSource removes a source and, through the storage layer, its items.
func (h *SourceHandlers) deleteSource(w http.ResponseWriter, r *http.Request) {
	src, ok := h.loadSource(w, r)
	if !ok {
		return
	}

	if err := h.repo.DeleteSource(r.Context(), src.ID); err != nil {
		h.logger.Error("failed to delete source", "source_id", src.ID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("source deleted", "source", src.GetDisplayName())

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusNoContent)
}

// retrySource handles POST /api/sources/:id/retry
func (h *SourceHandlers) retrySource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	src, ok := h.loadSource(w, r)
	if !ok {
		return
	}

	h.retrier.RetrySource(src.ID)
	h.logger.Info("source retry requested", "source", src.GetDisplayName(), "health", src.HealthStatus)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"source_id": src.ID,
		"queued":    true,
	})
}

func (h *SourceHandlers) loadSource(w http.ResponseWriter, r *http.Request) (*models.Source, bool) {
	sourceID := pathSegment(r.URL.Path, 3)
	if sourceID == "" {
		http.Error(w, "Source ID required", http.StatusBadRequest)
		return nil, false
	}

	src, err := h.repo.GetSource(r.Context(), sourceID)
	if err != nil {
		h.logger.Error("failed to get source", "source_id", sourceID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return nil, false
	}
	if src == nil {
		http.Error(w, "Source not found", http.StatusNotFound)
		return nil, false
	}
	return src, true
}

func validateSourceRequest(rawURL, mode string) error {
	if rawURL == "" {
		return ValidationError{Field: "url", Message: "URL is required"}
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return ValidationError{Field: "url", Message: "URL must be a valid http(s) URL"}
	}

	switch models.ExtractionMode(mode) {
	case models.ExtractionModeFeed, models.ExtractionModeAgent:
		return nil
	default:
		return ValidationError{Field: "mode", Message: "mode must be \"feed\" or \"agent\""}
	}
}
