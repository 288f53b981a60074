package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/upb/paper-rag/internal/observability"
	"github.com/upb/paper-rag/models"
	"github.com/upb/paper-rag/services"
	"github.com/upb/paper-rag/utils"
	"go.uber.org/zap"
)

// EvaluationService exposes offline evaluation results
type EvaluationService interface {
	ListRuns(embeddingModel string) []models.EvaluationRun
	Summary(ctx context.Context) (*models.EvaluationSummary, error)
}

// EvaluationHandler handles the read-only evaluation endpoints
type EvaluationHandler struct {
	service EvaluationService
	logger  *zap.Logger
}

// NewEvaluationHandler creates a new EvaluationHandler
func NewEvaluationHandler(service EvaluationService, logger *zap.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		service: service,
		logger:  logger,
	}
}

// HandleListRuns handles GET /api/evaluation/runs
// An optional embedding_model query parameter filters the runs.
func (h *EvaluationHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	model := strings.TrimSpace(r.URL.Query().Get("embedding_model"))
	runs := h.service.ListRuns(model)

	if err := utils.WriteOK(w, runs); err != nil {
		h.logger.Error("failed to write evaluation runs", zap.Error(err))
	}
}

// HandleSummary handles GET /api/evaluation/summary
func (h *EvaluationHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFromContext(r.Context(), h.logger)

	summary, err := h.service.Summary(r.Context())
	if err != nil {
		HandleServiceError(w, services.WrapInternal("failed to build evaluation summary", err), logger, false)
		return
	}

	if err := utils.WriteOK(w, summary); err != nil {
		logger.Error("failed to write evaluation summary", zap.Error(err))
	}
}
