package pipeline

import (
	"context"
	"errors"

	"github.com/briefwire/briefwire/internal/models"
)

// Stage names, in fixed execution order.
const (
	StageClassify  = "classify"
	StageGrade     = "grade"
	StageSummarize = "summarize"
	StageVectorize = "vectorize"
)

// StageOrder is the fixed sequence every item advances through.
var StageOrder = []string{StageClassify, StageGrade, StageSummarize, StageVectorize}

// ErrStageSkipped signals a systemic-configuration skip: the stage has no
// provider configured. Skips are non-fatal and do not block completion.
var ErrStageSkipped = errors.New("stage skipped: no provider configured")

// Summary is the summarize stage's output.
type Summary struct {
	Text      string
	KeyPoints []string
}

// Enricher is the enrichment collaborator contract, one method per stage.
// Implementations must honor the context deadline; a timeout surfaces as
// that stage's error.
type Enricher interface {
	// Classify returns topic tags for the item.
	Classify(ctx context.Context, item models.ContentItem) ([]string, error)

	// Grade scores the item's relevance from 0 to 10. It reads the tags
	// produced by Classify.
	Grade(ctx context.Context, item models.ContentItem) (float64, error)

	// Summarize produces the item's summary and key points.
	Summarize(ctx context.Context, item models.ContentItem) (Summary, error)

	// Vectorize returns an embedding for the item, or ErrStageSkipped when
	// no embedding model is configured.
	Vectorize(ctx context.Context, item models.ContentItem) ([]float32, error)
}
