package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/upb/paper-rag/models"
	"go.uber.org/zap"
)

// OpenAIConfig configures the OpenAI generator
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	// MaxRetries is passed to the SDK as is; zero disables its retries
	MaxRetries int
}

// OpenAIGenerator answers with the OpenAI chat completions API
type OpenAIGenerator struct {
	client  openai.Client
	config  OpenAIConfig
	builder PromptBuilder
	logger  *zap.Logger
}

// NewOpenAIGenerator creates an OpenAI generator
func NewOpenAIGenerator(cfg OpenAIConfig, builder PromptBuilder, logger *zap.Logger) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: empty api key")
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.ChatModelGPT4oMini)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIGenerator{
		client:  openai.NewClient(opts...),
		config:  cfg,
		builder: builder,
		logger:  logger,
	}, nil
}

// Name implements Generator
func (g *OpenAIGenerator) Name() string {
	return "openai"
}

// Generate implements Generator
func (g *OpenAIGenerator) Generate(ctx context.Context, query string, sources []models.Source, history []models.HistoryMessage) (*Result, error) {
	start := time.Now()

	prompt := g.builder.Build(query, sources, history)
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(prompt))
	for _, m := range prompt {
		switch m.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(g.config.Model),
		Messages:    messages,
		Temperature: openai.Float(g.config.Temperature),
	}
	if g.config.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(g.config.MaxTokens))
	}

	completion, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return nil, ErrEmptyAnswer
	}

	latency := time.Since(start).Milliseconds()
	g.logger.Debug("openai generation complete",
		zap.String("model", g.config.Model),
		zap.Int("sources", len(sources)),
		zap.Int64("prompt_tokens", completion.Usage.PromptTokens),
		zap.Int64("completion_tokens", completion.Usage.CompletionTokens),
		zap.Int64("latency_ms", latency))

	return &Result{Answer: completion.Choices[0].Message.Content, LatencyMs: latency}, nil
}
