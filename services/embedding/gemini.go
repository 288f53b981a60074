package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const defaultGeminiEmbeddingModel = "text-embedding-004"

// GeminiConfig configures the Gemini embedder
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int
}

// GeminiEmbedder embeds text with the Gemini API
type GeminiEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int
	logger     *zap.Logger
}

// NewGeminiEmbedder creates a Gemini embedder using the official SDK
func NewGeminiEmbedder(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiEmbeddingModel
	}

	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	return &GeminiEmbedder{client: c, model: cfg.Model, dimensions: cfg.Dimensions, logger: logger}, nil
}

// Name implements Embedder
func (e *GeminiEmbedder) Name() string {
	return "gemini"
}

// Embed implements Embedder
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) (*Result, error) {
	start := time.Now()

	var config *genai.EmbedContentConfig
	if e.dimensions > 0 {
		dims := int32(e.dimensions)
		config = &genai.EmbedContentConfig{OutputDimensionality: &dims}
	}

	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: text}},
	}}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini embed content: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, ErrEmptyEmbedding
	}

	latency := time.Since(start).Milliseconds()
	e.logger.Debug("gemini embedding complete",
		zap.String("model", e.model),
		zap.Int("dimensions", len(resp.Embeddings[0].Values)),
		zap.Int64("latency_ms", latency))

	return &Result{Vector: resp.Embeddings[0].Values, LatencyMs: latency}, nil
}
