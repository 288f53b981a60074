package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Defaults for the chat endpoint
const (
	DefaultMaxRequests = 10
	DefaultWindow      = time.Minute
)

// Result represents the outcome of one admission check
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Store holds the per-client fixed windows. CheckAndConsume must perform
// the read-check-increment as one atomic step.
type Store interface {
	CheckAndConsume(ctx context.Context, clientKey string, limit int, window time.Duration) (Result, error)
}

// Config configures the limiter
type Config struct {
	MaxRequests int
	Window      time.Duration
}

// RateLimitService admits or rejects requests per client key using a fixed window
type RateLimitService struct {
	store  Store
	config Config
	logger *zap.Logger
}

// NewRateLimitService creates a new RateLimitService instance
func NewRateLimitService(store Store, config Config, logger *zap.Logger) *RateLimitService {
	if config.MaxRequests <= 0 {
		config.MaxRequests = DefaultMaxRequests
	}
	if config.Window <= 0 {
		config.Window = DefaultWindow
	}
	return &RateLimitService{
		store:  store,
		config: config,
		logger: logger,
	}
}

// CheckAndConsume checks whether clientKey may make another request in the
// current window and, if so, counts it. A rejected request is not counted.
func (s *RateLimitService) CheckAndConsume(ctx context.Context, clientKey string) (Result, error) {
	result, err := s.store.CheckAndConsume(ctx, clientKey, s.config.MaxRequests, s.config.Window)
	if err != nil {
		return Result{}, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if !result.Allowed {
		s.logger.Info("rate limit exceeded",
			zap.String("client_key", clientKey),
			zap.Int("limit", s.config.MaxRequests),
			zap.Time("reset_at", result.ResetAt))
	}

	return result, nil
}

// Window returns the configured window length
func (s *RateLimitService) Window() time.Duration {
	return s.config.Window
}

// Limit returns the configured maximum requests per window
func (s *RateLimitService) Limit() int {
	return s.config.MaxRequests
}
