package enrich

import (
	"context"
	"sort"
	"strings"

	"github.com/briefwire/briefwire/internal/models"
	"github.com/briefwire/briefwire/internal/pipeline"
)

// RuleBasedEnricher implements pipeline.Enricher without any AI calls.
// It backs tests and lets the server run with no provider configured.
type RuleBasedEnricher struct {
	// Embeddings controls whether Vectorize produces a vector or reports
	// skipped, mirroring an unconfigured embedding model.
	Embeddings bool
}

// NewRuleBasedEnricher creates the offline enricher with embeddings off.
func NewRuleBasedEnricher() *RuleBasedEnricher {
	return &RuleBasedEnricher{}
}

var keywordTags = map[string]string{
	"ai":       "ai",
	"model":    "ai",
	"market":   "finance",
	"economy":  "finance",
	"security": "security",
	"breach":   "security",
	"climate":  "climate",
	"energy":   "energy",
	"health":   "health",
}

// Classify derives tags from keyword hits in the title and content.
func (r *RuleBasedEnricher) Classify(ctx context.Context, item models.ContentItem) ([]string, error) {
	text := strings.ToLower(item.Title + " " + item.RawContent)
	seen := make(map[string]bool)
	for keyword, tag := range keywordTags {
		if strings.Contains(text, keyword) {
			seen[tag] = true
		}
	}
	if len(seen) == 0 {
		return []string{"general"}, nil
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags, nil
}

// Grade scores by content length as a crude relevance proxy.
func (r *RuleBasedEnricher) Grade(ctx context.Context, item models.ContentItem) (float64, error) {
	words := len(strings.Fields(item.RawContent))
	score := float64(words) / 100
	if score > 10 {
		score = 10
	}
	return score, nil
}

// Summarize takes the leading sentences as the summary.
func (r *RuleBasedEnricher) Summarize(ctx context.Context, item models.ContentItem) (pipeline.Summary, error) {
	sentences := strings.SplitAfterN(item.RawContent, ". ", 4)
	n := len(sentences)
	if n > 3 {
		n = 3
	}
	summary := strings.TrimSpace(strings.Join(sentences[:n], ""))
	if summary == "" {
		summary = item.Title
	}
	return pipeline.Summary{
		Text:      summary,
		KeyPoints: []string{item.Title},
	}, nil
}

// Vectorize reports skipped unless embeddings are enabled, in which case
// it produces a tiny deterministic vector.
func (r *RuleBasedEnricher) Vectorize(ctx context.Context, item models.ContentItem) ([]float32, error) {
	if !r.Embeddings {
		return nil, pipeline.ErrStageSkipped
	}
	var sum float32
	for _, c := range item.Title {
		sum += float32(c)
	}
	return []float32{sum, float32(len(item.RawContent))}, nil
}
