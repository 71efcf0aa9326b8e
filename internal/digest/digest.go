// Package digest rolls up recently processed items into a periodic digest
// record. Delivery to operators (messaging bots etc.) is an external
// collaborator that reads the stored digest; the core only composes and
// records it.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/briefwire/briefwire/internal/ledger"
	"github.com/briefwire/briefwire/internal/models"
	"github.com/google/uuid"
)

const maxDigestItems = 20

// ItemReader lists processed items for the digest window.
type ItemReader interface {
	ListProcessedSince(ctx context.Context, since time.Time, limit int) ([]models.ContentItem, error)
}

// Store persists composed digests.
type Store interface {
	StoreDigest(ctx context.Context, d models.Digest) error
	LatestDigest(ctx context.Context) (*models.Digest, error)
}

// Generator composes digests from processed items.
type Generator struct {
	items  ItemReader
	store  Store
	led    *ledger.Ledger
	logger *slog.Logger
	now    func() time.Time
}

// NewGenerator creates a digest generator.
func NewGenerator(items ItemReader, store Store, led *ledger.Ledger, logger *slog.Logger) *Generator {
	return &Generator{items: items, store: store, led: led, logger: logger, now: time.Now}
}

// Run generates one digest covering everything processed since the last
// one (or the past 24 hours when none exists), wrapped in a digest ledger
// record. A window with no processed items still finalizes the run, with
// a warning status and no stored digest.
func (g *Generator) Run(ctx context.Context) error {
	runID, err := g.led.Begin(ctx, models.RunKindDigest, "Daily digest", models.DigestMeta{})
	if err != nil {
		return err
	}

	since := g.now().Add(-24 * time.Hour)
	if last, err := g.store.LatestDigest(ctx); err == nil && last != nil {
		since = last.GeneratedAt
	}

	items, err := g.items.ListProcessedSince(ctx, since, maxDigestItems)
	if err != nil {
		ferr := g.led.Finish(ctx, runID, models.RunStatusError, models.DigestMeta{Error: err.Error()})
		if ferr != nil {
			g.logger.Error("failed to finalize digest record", "run_id", runID, "error", ferr)
		}
		return fmt.Errorf("list processed items: %w", err)
	}

	if len(items) == 0 {
		g.logger.Info("no processed items in digest window", "since", since)
		if err := g.led.Finish(ctx, runID, models.RunStatusWarning, models.DigestMeta{}); err != nil {
			g.logger.Error("failed to finalize digest record", "run_id", runID, "error", err)
		}
		return nil
	}

	d := models.Digest{
		ID:          uuid.New().String(),
		GeneratedAt: g.now(),
		ItemCount:   len(items),
		Body:        compose(items),
	}
	if err := g.store.StoreDigest(ctx, d); err != nil {
		ferr := g.led.Finish(ctx, runID, models.RunStatusError, models.DigestMeta{ItemCount: len(items), Error: err.Error()})
		if ferr != nil {
			g.logger.Error("failed to finalize digest record", "run_id", runID, "error", ferr)
		}
		return fmt.Errorf("store digest: %w", err)
	}

	if err := g.led.Finish(ctx, runID, models.RunStatusSuccess, models.DigestMeta{ItemCount: len(items)}); err != nil {
		g.logger.Error("failed to finalize digest record", "run_id", runID, "error", err)
	}
	g.logger.Info("digest generated", "items", len(items))
	return nil
}

// compose renders the digest body, highest-scored items first (the item
// reader returns them in that order).
func compose(items []models.ContentItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Digest — %d items\n\n", len(items))
	for _, item := range items {
		if item.Score != nil {
			fmt.Fprintf(&b, "- [%.1f] %s\n", *item.Score, item.Title)
		} else {
			fmt.Fprintf(&b, "- %s\n", item.Title)
		}
		if item.Summary != nil && *item.Summary != "" {
			fmt.Fprintf(&b, "  %s\n", *item.Summary)
		}
	}
	return b.String()
}
