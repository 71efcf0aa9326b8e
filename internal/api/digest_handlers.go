package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/briefwire/briefwire/internal/models"
	"log/slog"
)

// DigestReader loads stored digests.
type DigestReader interface {
	LatestDigest(ctx context.Context) (*models.Digest, error)
}

// DigestHandler serves the most recent digest.
type DigestHandler struct {
	repo   DigestReader
	logger *slog.Logger
}

// NewDigestHandler creates a digest handler.
func NewDigestHandler(repo DigestReader, logger *slog.Logger) *DigestHandler {
	return &DigestHandler{repo: repo, logger: logger}
}

// GetLatest handles GET /api/digest/latest
func (h *DigestHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	d, err := h.repo.LatestDigest(r.Context())
	if err != nil {
		h.logger.Error("failed to load latest digest", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if d == nil {
		http.Error(w, "No digest generated yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(d)
}
