package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/briefwire/briefwire/internal/models"
)

// AgentExtractor fetches a source page directly and extracts the readable
// article from it. Used for sources without a feed.
type AgentExtractor struct {
	client *http.Client
}

// NewAgentExtractor creates an agent-based extractor.
func NewAgentExtractor() *AgentExtractor {
	return &AgentExtractor{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *AgentExtractor) Mode() models.ExtractionMode {
	return models.ExtractionModeAgent
}

// Extract downloads the source URL and runs readability extraction on it,
// producing a single item. A page the extractor cannot parse into an
// article is a malformed input, reported as skipped rather than an error.
func (a *AgentExtractor) Extract(ctx context.Context, src models.Source) (ExtractResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return ExtractResult{}, fmt.Errorf("build request for %s: %w", src.URL, err)
	}
	req.Header.Set("User-Agent", "briefwire/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return ExtractResult{}, fmt.Errorf("fetch %s: %w", src.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ExtractResult{}, fmt.Errorf("fetch %s: unexpected status %d", src.URL, resp.StatusCode)
	}

	pageURL, err := url.Parse(src.URL)
	if err != nil {
		return ExtractResult{}, fmt.Errorf("parse url %s: %w", src.URL, err)
	}

	article, err := readability.FromReader(resp.Body, pageURL)
	if err != nil {
		return ExtractResult{Skipped: 1}, nil
	}
	if article.TextContent == "" {
		return ExtractResult{Skipped: 1}, nil
	}

	title := article.Title
	if title == "" {
		title = src.GetDisplayName()
	}

	return ExtractResult{
		Items: []models.RawItem{{
			Title:       title,
			URL:         src.URL,
			Content:     article.TextContent,
			PublishedAt: time.Now(),
		}},
	}, nil
}
