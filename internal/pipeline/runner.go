// Package pipeline advances content items through the fixed enrichment
// stage sequence and coordinates batch runs over pending items. Stage
// failures stop the item for the current run without rolling back earlier
// stages; the item stays pending and a later run resumes from the first
// stage whose output is missing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/briefwire/briefwire/internal/ledger"
	"github.com/briefwire/briefwire/internal/metrics"
	"github.com/briefwire/briefwire/internal/models"
)

// ItemRepository is the persistence contract the runner needs.
type ItemRepository interface {
	ListPendingItems(ctx context.Context, limit int) ([]models.ContentItem, error)
	UpdateItem(ctx context.Context, item models.ContentItem) error
}

// RunnerConfig tunes the stage runner.
type RunnerConfig struct {
	StageTimeout time.Duration
}

// ItemResult reports one item's pipeline run.
type ItemResult struct {
	ItemID    string
	Processed bool   // all stages completed (or skipped) this run
	Failed    bool   // a stage errored; item remains pending
	Stage     string // failing stage when Failed
	Skipped   int    // stages skipped for lack of a provider
}

// Runner executes the stage sequence for single items.
type Runner struct {
	enricher  Enricher
	items     ItemRepository
	led       *ledger.Ledger
	collector *metrics.Collector
	logger    *slog.Logger
	cfg       RunnerConfig
	now       func() time.Time
}

// NewRunner creates a stage runner.
func NewRunner(enricher Enricher, items ItemRepository, led *ledger.Ledger, collector *metrics.Collector, logger *slog.Logger, cfg RunnerConfig) *Runner {
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = 120 * time.Second
	}
	return &Runner{
		enricher:  enricher,
		items:     items,
		led:       led,
		collector: collector,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// RunItem advances one item through the stage order, wrapped in a
// pipeline-item ledger record. Stages whose output is already populated
// from an earlier run are passed over without re-validation. Each stage's
// output is persisted as soon as it completes, so a later failure leaves
// earlier results in place.
func (r *Runner) RunItem(ctx context.Context, item models.ContentItem) ItemResult {
	result := ItemResult{ItemID: item.ID}

	runID, err := r.led.Begin(ctx, models.RunKindPipelineItem,
		fmt.Sprintf("Enrich: %s", item.Title),
		models.ItemMeta{ItemID: item.ID, ItemTitle: item.Title})
	if err != nil {
		r.logger.Error("failed to open pipeline-item record", "item_id", item.ID, "error", err)
		result.Failed = true
		return result
	}

	for _, stage := range StageOrder {
		if stageComplete(stage, item) {
			continue
		}

		if err := r.led.Update(ctx, runID, models.ItemMeta{
			ItemID: item.ID, ItemTitle: item.Title, Stage: stage,
		}); err != nil {
			r.logger.Warn("failed to record current stage", "run_id", runID, "error", err)
		}

		start := r.now()
		err := r.runStage(ctx, stage, &item)
		r.collector.ObserveStage(stage, time.Since(start))

		switch {
		case err == nil:
			item.StepLog = append(item.StepLog, models.StepLog{
				Stage: stage, Status: models.StepSuccess, At: r.now(),
			})
		case errors.Is(err, ErrStageSkipped):
			result.Skipped++
			item.StepLog = append(item.StepLog, models.StepLog{
				Stage: stage, Status: models.StepSkip, Detail: err.Error(), At: r.now(),
			})
		default:
			// The item keeps everything earlier stages produced and stays
			// pending; failures here are usually systemic (provider outage),
			// so the item itself is not penalized.
			item.StepLog = append(item.StepLog, models.StepLog{
				Stage: stage, Status: models.StepError, Detail: err.Error(), At: r.now(),
			})
			if uerr := r.items.UpdateItem(ctx, item); uerr != nil {
				r.logger.Error("failed to persist item after stage failure", "item_id", item.ID, "error", uerr)
			}

			result.Failed = true
			result.Stage = stage
			meta := models.ItemMeta{ItemID: item.ID, ItemTitle: item.Title, Stage: stage, Error: err.Error()}
			if ferr := r.led.Finish(ctx, runID, models.RunStatusError, meta); ferr != nil {
				r.logger.Error("failed to finalize pipeline-item record", "run_id", runID, "error", ferr)
			}
			r.collector.ObserveItem(string(models.RunStatusError))
			r.logger.Warn("pipeline stage failed", "item_id", item.ID, "stage", stage, "error", err)
			return result
		}

		if err := r.items.UpdateItem(ctx, item); err != nil {
			r.logger.Error("failed to persist item after stage", "item_id", item.ID, "stage", stage, "error", err)
		}
	}

	processedAt := r.now()
	item.ProcessedAt = &processedAt
	if err := r.items.UpdateItem(ctx, item); err != nil {
		r.logger.Error("failed to mark item processed", "item_id", item.ID, "error", err)
	}

	result.Processed = true
	status := models.RunStatusSuccess
	meta := models.ItemMeta{ItemID: item.ID, ItemTitle: item.Title, Skipped: result.Skipped}
	if err := r.led.Finish(ctx, runID, status, meta); err != nil {
		r.logger.Error("failed to finalize pipeline-item record", "run_id", runID, "error", err)
	}
	r.collector.ObserveItem(string(status))
	return result
}

// runStage invokes the collaborator for one stage under the stage timeout
// and writes its output fields onto the item.
func (r *Runner) runStage(ctx context.Context, stage string, item *models.ContentItem) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.StageTimeout)
	defer cancel()

	switch stage {
	case StageClassify:
		tags, err := r.enricher.Classify(ctx, *item)
		if err != nil {
			return err
		}
		if len(tags) == 0 {
			tags = []string{"untagged"}
		}
		item.Tags = tags
		return nil

	case StageGrade:
		score, err := r.enricher.Grade(ctx, *item)
		if err != nil {
			return err
		}
		item.Score = &score
		return nil

	case StageSummarize:
		summary, err := r.enricher.Summarize(ctx, *item)
		if err != nil {
			return err
		}
		item.Summary = &summary.Text
		item.KeyPoints = summary.KeyPoints
		return nil

	case StageVectorize:
		embedding, err := r.enricher.Vectorize(ctx, *item)
		if err != nil {
			return err
		}
		item.Embedding = embedding
		return nil

	default:
		return fmt.Errorf("unknown stage %q", stage)
	}
}

// stageComplete reports whether an earlier run already produced this
// stage's output.
func stageComplete(stage string, item models.ContentItem) bool {
	switch stage {
	case StageClassify:
		return len(item.Tags) > 0
	case StageGrade:
		return item.Score != nil
	case StageSummarize:
		return item.Summary != nil
	case StageVectorize:
		return len(item.Embedding) > 0
	default:
		return false
	}
}
