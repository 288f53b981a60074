package validation

import (
	"fmt"

	"github.com/upb/paper-rag/models"
	"github.com/upb/paper-rag/services"
	"github.com/upb/paper-rag/utils"
)

// DefaultMaxQueryChars is the query length limit when none is configured
const DefaultMaxQueryChars = 500

// ChatRequest is the raw decoded body of a chat request.
// Pointer fields distinguish absent values from zero values.
type ChatRequest struct {
	Query          *string                 `json:"query"`
	EmbeddingModel *string                 `json:"embedding_model,omitempty"`
	History        []models.HistoryMessage `json:"history,omitempty"`
	TopK           *int                    `json:"top_k,omitempty"`
}

// RequestValidator gates admission of chat requests and applies defaults
type RequestValidator struct {
	maxQueryChars         int
	defaultEmbeddingModel string
}

// NewRequestValidator creates a validator. Non-positive or empty arguments fall back to defaults.
func NewRequestValidator(maxQueryChars int, defaultEmbeddingModel string) *RequestValidator {
	if maxQueryChars <= 0 {
		maxQueryChars = DefaultMaxQueryChars
	}
	if defaultEmbeddingModel == "" {
		defaultEmbeddingModel = models.DefaultEmbeddingModel
	}
	return &RequestValidator{
		maxQueryChars:         maxQueryChars,
		defaultEmbeddingModel: defaultEmbeddingModel,
	}
}

// Validate checks the query and returns the request with defaults applied.
// The query itself is stored untrimmed and history is passed through as is.
func (v *RequestValidator) Validate(req ChatRequest) (models.ChatQuery, error) {
	if req.Query == nil || utils.IsValidationError(utils.ValidateVar(*req.Query, "notblank")) {
		return models.ChatQuery{}, services.NewCodedError(
			services.ErrorTypeValidation, services.CodeEmptyQuery, "Query is required", nil)
	}

	if err := utils.ValidateVar(*req.Query, fmt.Sprintf("max=%d", v.maxQueryChars)); utils.IsValidationError(err) {
		return models.ChatQuery{}, services.NewQueryTooLongError(v.maxQueryChars)
	}

	query := models.ChatQuery{
		Query:          *req.Query,
		EmbeddingModel: v.defaultEmbeddingModel,
		History:        []models.HistoryMessage{},
		TopK:           models.DefaultTopK,
	}
	if req.EmbeddingModel != nil && *req.EmbeddingModel != "" {
		query.EmbeddingModel = *req.EmbeddingModel
	}
	if req.History != nil {
		query.History = req.History
	}
	if req.TopK != nil {
		query.TopK = *req.TopK
	}

	return query, nil
}

// MaxQueryChars returns the configured query length limit
func (v *RequestValidator) MaxQueryChars() int {
	return v.maxQueryChars
}
