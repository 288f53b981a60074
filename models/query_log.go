package models

import (
	"time"

	"github.com/google/uuid"
)

// QueryStatus represents the outcome of a chat request
type QueryStatus string

const (
	QueryStatusCompleted QueryStatus = "completed"
	QueryStatusFailed    QueryStatus = "failed"
)

// QueryLog records one pipeline run for offline comparison of retrieval configurations
type QueryLog struct {
	ID             uuid.UUID   `json:"id" db:"id"`
	RequestID      string      `json:"request_id" db:"request_id"`
	ClientKey      string      `json:"client_key" db:"client_key"`
	Query          string      `json:"query" db:"query"`
	EmbeddingModel string      `json:"embedding_model" db:"embedding_model"`
	TopK           int         `json:"top_k" db:"top_k"`
	ChunksFound    int         `json:"chunks_found" db:"chunks_found"`
	EmbedTimeMs    int64       `json:"embed_time_ms" db:"embed_time_ms"`
	SearchTimeMs   int64       `json:"search_time_ms" db:"search_time_ms"`
	GenerateTimeMs int64       `json:"generate_time_ms" db:"generate_time_ms"`
	TotalTimeMs    int64       `json:"total_time_ms" db:"total_time_ms"`
	Status         QueryStatus `json:"status" db:"status"`
	ErrorMessage   *string     `json:"error_message,omitempty" db:"error_message"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the QueryLog model
func (QueryLog) TableName() string {
	return "query_logs"
}

// NewQueryLog creates a pending log entry for a query
func NewQueryLog(requestID, clientKey string, query ChatQuery) *QueryLog {
	return &QueryLog{
		ID:             uuid.New(),
		RequestID:      requestID,
		ClientKey:      clientKey,
		Query:          query.Query,
		EmbeddingModel: query.EmbeddingModel,
		TopK:           query.TopK,
		CreatedAt:      time.Now().UTC(),
	}
}

// MarkCompleted copies the response metrics onto the log entry
func (l *QueryLog) MarkCompleted(metrics ChatMetrics) {
	l.Status = QueryStatusCompleted
	l.ChunksFound = metrics.ChunksFound
	l.EmbedTimeMs = metrics.EmbedTimeMs
	l.SearchTimeMs = metrics.SearchTimeMs
	l.GenerateTimeMs = metrics.GenerateTimeMs
	l.TotalTimeMs = metrics.TotalTimeMs
	l.ErrorMessage = nil
}

// MarkFailed records the error that aborted the pipeline
func (l *QueryLog) MarkFailed(totalTimeMs int64, errMsg string) {
	l.Status = QueryStatusFailed
	l.TotalTimeMs = totalTimeMs
	l.ErrorMessage = &errMsg
}
