package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/briefwire/briefwire/internal/models"
	"github.com/mmcdole/gofeed"
)

const maxEntriesPerFeed = 50

// FeedExtractor parses RSS/Atom feeds with gofeed.
type FeedExtractor struct {
	parser *gofeed.Parser
}

// NewFeedExtractor creates a feed-based extractor.
func NewFeedExtractor() *FeedExtractor {
	return &FeedExtractor{parser: gofeed.NewParser()}
}

func (f *FeedExtractor) Mode() models.ExtractionMode {
	return models.ExtractionModeFeed
}

// Extract fetches and parses the source's feed. Entries without a link
// are malformed and counted as skipped.
func (f *FeedExtractor) Extract(ctx context.Context, src models.Source) (ExtractResult, error) {
	feed, err := f.parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return ExtractResult{}, fmt.Errorf("parse feed %s: %w", src.URL, err)
	}

	var result ExtractResult
	for i, entry := range feed.Items {
		if i >= maxEntriesPerFeed {
			break
		}
		if entry == nil || entry.Link == "" {
			result.Skipped++
			continue
		}

		published := time.Now()
		if entry.PublishedParsed != nil {
			published = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			published = *entry.UpdatedParsed
		}

		content := entry.Content
		if content == "" {
			content = entry.Description
		}

		result.Items = append(result.Items, models.RawItem{
			Title:       entry.Title,
			URL:         entry.Link,
			Content:     content,
			PublishedAt: published,
		})
	}

	return result, nil
}
