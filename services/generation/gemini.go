package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/upb/paper-rag/models"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const defaultGeminiChatModel = "gemini-2.0-flash"

// GeminiConfig configures the Gemini generator
type GeminiConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
}

// GeminiGenerator answers with the Gemini API
type GeminiGenerator struct {
	client  *genai.Client
	config  GeminiConfig
	builder PromptBuilder
	logger  *zap.Logger
}

// NewGeminiGenerator creates a Gemini generator using the official SDK
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig, builder PromptBuilder, logger *zap.Logger) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiChatModel
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

	return &GeminiGenerator{client: c, config: cfg, builder: builder, logger: logger}, nil
}

// Name implements Generator
func (g *GeminiGenerator) Name() string {
	return "gemini"
}

// Generate implements Generator
func (g *GeminiGenerator) Generate(ctx context.Context, query string, sources []models.Source, history []models.HistoryMessage) (*Result, error) {
	start := time.Now()

	prompt := g.builder.Build(query, sources, history)

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(g.config.Temperature)),
	}
	if g.config.MaxTokens > 0 {
		config.MaxOutputTokens = int32(g.config.MaxTokens)
	}

	contents := make([]*genai.Content, 0, len(prompt))
	for _, m := range prompt {
		part := &genai.Part{Text: m.Content}
		switch m.Role {
		case "system":
			// Gemini takes the system prompt as a separate instruction
			config.SystemInstruction = &genai.Content{Parts: []*genai.Part{part}}
		case "assistant":
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{part}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{part}})
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.config.Model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	answer := extractText(resp)
	if answer == "" {
		return nil, ErrEmptyAnswer
	}

	latency := time.Since(start).Milliseconds()
	fields := []zap.Field{
		zap.String("model", g.config.Model),
		zap.Int("sources", len(sources)),
		zap.Int64("latency_ms", latency),
	}
	if resp.UsageMetadata != nil {
		fields = append(fields,
			zap.Int32("prompt_tokens", resp.UsageMetadata.PromptTokenCount),
			zap.Int32("completion_tokens", resp.UsageMetadata.CandidatesTokenCount))
	}
	g.logger.Debug("gemini generation complete", fields...)

	return &Result{Answer: answer, LatencyMs: latency}, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}
