package fetch

import (
	"context"

	"github.com/briefwire/briefwire/internal/models"
)

// Extractor retrieves raw content items for a source. Two strategies
// exist: feed-based (RSS/Atom) and agent-based (page scrape + readability
// extraction). The scheduler is strategy-agnostic.
type Extractor interface {
	// Mode returns the extraction mode this extractor serves.
	Mode() models.ExtractionMode

	// Extract fetches the source and returns its entries. Malformed
	// entries are dropped and counted in Skipped rather than failing the
	// fetch; a returned error means the fetch failed entirely.
	Extract(ctx context.Context, src models.Source) (ExtractResult, error)
}

// ExtractResult is the outcome of a successful extraction.
type ExtractResult struct {
	Items   []models.RawItem
	Skipped int // malformed entries dropped during parsing
}
