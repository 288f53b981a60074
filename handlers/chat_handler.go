package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/upb/paper-rag/internal/observability"
	"github.com/upb/paper-rag/models"
	"github.com/upb/paper-rag/services"
	"github.com/upb/paper-rag/services/chat"
	"github.com/upb/paper-rag/services/ratelimit"
	"github.com/upb/paper-rag/services/validation"
	"github.com/upb/paper-rag/utils"
	"go.uber.org/zap"
)

// UnknownClientKey is the shared bucket for callers without forwarding headers
const UnknownClientKey = "unknown"

// maxBodyBytes bounds the request body; history is the only unbounded field
const maxBodyBytes = 1 << 20

// ChatService runs the retrieval pipeline
type ChatService interface {
	Process(ctx context.Context, query models.ChatQuery) (*models.ChatResponse, error)
}

// RateLimiter admits or rejects a client
type RateLimiter interface {
	CheckAndConsume(ctx context.Context, clientKey string) (ratelimit.Result, error)
	Window() time.Duration
}

// QueryValidator turns a decoded body into a validated query
type QueryValidator interface {
	Validate(req validation.ChatRequest) (models.ChatQuery, error)
}

// ChatHandler handles POST /chat
type ChatHandler struct {
	service        ChatService
	limiter        RateLimiter
	validator      QueryValidator
	metrics        observability.Metrics
	logger         *zap.Logger
	exposeMessages bool
}

// ChatHandlerConfig holds the response policy of the chat handler
type ChatHandlerConfig struct {
	ExposeCollaboratorErrors bool
	Metrics                  observability.Metrics
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(service ChatService, limiter RateLimiter, validator QueryValidator, cfg ChatHandlerConfig, logger *zap.Logger) *ChatHandler {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &ChatHandler{
		service:        service,
		limiter:        limiter,
		validator:      validator,
		metrics:        metrics,
		logger:         logger,
		exposeMessages: cfg.ExposeCollaboratorErrors,
	}
}

// HandleChat admits, validates and answers one chat request.
// Rate limiting happens before the body is read, so rejected calls cost nothing downstream.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientKey := ClientKey(r)
	logger := observability.LoggerFromContext(ctx, h.logger).With(zap.String("client_key", clientKey))

	result, err := h.limiter.CheckAndConsume(ctx, clientKey)
	if err != nil {
		HandleServiceError(w, services.WrapInternal("rate limiter unavailable", err), logger, h.exposeMessages)
		return
	}
	if !result.Allowed {
		h.metrics.RecordRateLimited(ctx)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(h.limiter.Window())))
		w.Header().Set("X-RateLimit-Remaining", "0")
		HandleServiceError(w, services.ErrRateLimitExceeded, logger, h.exposeMessages)
		return
	}

	var body validation.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		logger.Warn("failed to parse request body", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body")
		return
	}

	query, err := h.validator.Validate(body)
	if err != nil {
		HandleServiceError(w, err, logger, h.exposeMessages)
		return
	}

	logger.Debug("processing chat request",
		zap.String("embedding_model", query.EmbeddingModel),
		zap.Int("top_k", query.TopK),
		zap.Int("history", len(query.History)))

	resp, err := h.service.Process(chat.WithClientKey(ctx, clientKey), query)
	if err != nil {
		HandleServiceError(w, err, logger, h.exposeMessages)
		return
	}

	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	if err := utils.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error("failed to write chat response", zap.Error(err))
	}
}

// ClientKey identifies the caller for rate limiting: the first X-Forwarded-For
// entry, then X-Real-IP, then the shared "unknown" bucket.
func ClientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return UnknownClientKey
}

func retryAfterSeconds(window time.Duration) int {
	secs := int(window / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
