// Package enrich provides the enrichment collaborator implementations
// behind the pipeline stages: an OpenAI-backed client and a rule-based
// fallback used in tests and offline development.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/briefwire/briefwire/internal/config"
	"github.com/briefwire/briefwire/internal/models"
	"github.com/briefwire/briefwire/internal/pipeline"
)

const maxContentChars = 8000

// OpenAIEnricher implements pipeline.Enricher against the OpenAI API.
type OpenAIEnricher struct {
	client *openai.Client
	cfg    config.OpenAIConfig
	logger *slog.Logger
}

// NewOpenAIEnricher creates an OpenAI-backed enricher. The API key must be
// set; an empty embedding model makes Vectorize report skipped.
func NewOpenAIEnricher(cfg config.OpenAIConfig, logger *slog.Logger) (*OpenAIEnricher, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	return &OpenAIEnricher{
		client: openai.NewClient(cfg.APIKey),
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Classify returns topic tags for the item as a JSON array of strings.
func (e *OpenAIEnricher) Classify(ctx context.Context, item models.ContentItem) ([]string, error) {
	out, err := e.complete(ctx,
		"You classify articles. Respond with a JSON array of 2-5 short lowercase topic tags and nothing else.",
		itemPrompt(item))
	if err != nil {
		return nil, err
	}

	var tags []string
	if err := json.Unmarshal([]byte(extractJSON(out, '[', ']')), &tags); err != nil {
		return nil, fmt.Errorf("parse tags from model output %q: %w", out, err)
	}
	return tags, nil
}

// Grade scores the item's relevance from 0 to 10.
func (e *OpenAIEnricher) Grade(ctx context.Context, item models.ContentItem) (float64, error) {
	prompt := itemPrompt(item)
	if len(item.Tags) > 0 {
		prompt += "\nTags: " + strings.Join(item.Tags, ", ")
	}

	out, err := e.complete(ctx,
		"You grade article relevance. Respond with a single number between 0 and 10 and nothing else.",
		prompt)
	if err != nil {
		return 0, err
	}

	score, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("parse score from model output %q: %w", out, err)
	}
	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}
	return score, nil
}

// Summarize produces a summary and key points as a JSON object.
func (e *OpenAIEnricher) Summarize(ctx context.Context, item models.ContentItem) (pipeline.Summary, error) {
	out, err := e.complete(ctx,
		`You summarize articles. Respond with a JSON object {"summary": "...", "key_points": ["..."]} and nothing else.`,
		itemPrompt(item))
	if err != nil {
		return pipeline.Summary{}, err
	}

	var parsed struct {
		Summary   string   `json:"summary"`
		KeyPoints []string `json:"key_points"`
	}
	if err := json.Unmarshal([]byte(extractJSON(out, '{', '}')), &parsed); err != nil {
		return pipeline.Summary{}, fmt.Errorf("parse summary from model output %q: %w", out, err)
	}
	return pipeline.Summary{Text: parsed.Summary, KeyPoints: parsed.KeyPoints}, nil
}

// Vectorize embeds the item, or reports skipped when no embedding model is
// configured.
func (e *OpenAIEnricher) Vectorize(ctx context.Context, item models.ContentItem) ([]float32, error) {
	if e.cfg.EmbeddingModel == "" {
		return nil, pipeline.ErrStageSkipped
	}

	text := item.Title + "\n" + truncate(item.RawContent, maxContentChars)
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.cfg.EmbeddingModel),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}
	return resp.Data[0].Embedding, nil
}

func (e *OpenAIEnricher) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.cfg.Model,
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func itemPrompt(item models.ContentItem) string {
	return fmt.Sprintf("Title: %s\n\n%s", item.Title, truncate(item.RawContent, maxContentChars))
}

// extractJSON trims model chatter around the first JSON value delimited by
// open/close, tolerating code fences.
func extractJSON(out string, open, closing byte) string {
	start := strings.IndexByte(out, open)
	end := strings.LastIndexByte(out, closing)
	if start == -1 || end == -1 || end < start {
		return out
	}
	return out[start : end+1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
