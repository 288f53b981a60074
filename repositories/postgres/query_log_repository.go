package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/upb/paper-rag/models"
	"go.uber.org/zap"
)

// QueryLogRepository implements the repositories.QueryLogRepository interface
type QueryLogRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewQueryLogRepository creates a new query log repository
func NewQueryLogRepository(db *DB, logger *zap.Logger) *QueryLogRepository {
	return &QueryLogRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new query log entry
func (r *QueryLogRepository) Insert(ctx context.Context, log *models.QueryLog) error {
	query := `
		INSERT INTO query_logs (
			id, request_id, client_key, query, embedding_model, top_k, chunks_found,
			embed_time_ms, search_time_ms, generate_time_ms, total_time_ms,
			status, error_message, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		log.ID,
		log.RequestID,
		log.ClientKey,
		log.Query,
		log.EmbeddingModel,
		log.TopK,
		log.ChunksFound,
		log.EmbedTimeMs,
		log.SearchTimeMs,
		log.GenerateTimeMs,
		log.TotalTimeMs,
		log.Status,
		log.ErrorMessage,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert query log: %w", err)
	}

	r.logger.Debug("query log inserted", zap.String("id", log.ID.String()), zap.String("status", string(log.Status)))
	return nil
}

// ListRecent returns the newest entries first
func (r *QueryLogRepository) ListRecent(ctx context.Context, limit int) ([]*models.QueryLog, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, request_id, client_key, query, embedding_model, top_k, chunks_found,
		       embed_time_ms, search_time_ms, generate_time_ms, total_time_ms,
		       status, error_message, created_at
		FROM query_logs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list query logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.QueryLog
	for rows.Next() {
		log := &models.QueryLog{}
		if err := rows.Scan(
			&log.ID,
			&log.RequestID,
			&log.ClientKey,
			&log.Query,
			&log.EmbeddingModel,
			&log.TopK,
			&log.ChunksFound,
			&log.EmbedTimeMs,
			&log.SearchTimeMs,
			&log.GenerateTimeMs,
			&log.TotalTimeMs,
			&log.Status,
			&log.ErrorMessage,
			&log.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan query log: %w", err)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating query logs: %w", err)
	}

	return logs, nil
}

// StatsByModel aggregates completed requests per embedding model since the given time
func (r *QueryLogRepository) StatsByModel(ctx context.Context, since time.Time) ([]models.ModelLatencyStats, error) {
	query := `
		SELECT embedding_model,
		       COUNT(*),
		       COALESCE(AVG(embed_time_ms), 0),
		       COALESCE(AVG(search_time_ms), 0),
		       COALESCE(AVG(generate_time_ms), 0),
		       COALESCE(AVG(total_time_ms), 0),
		       COALESCE(AVG(chunks_found), 0)
		FROM query_logs
		WHERE status = $1 AND created_at >= $2
		GROUP BY embedding_model
		ORDER BY embedding_model
	`

	rows, err := r.db.QueryContext(ctx, query, models.QueryStatusCompleted, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate query logs: %w", err)
	}
	defer rows.Close()

	var stats []models.ModelLatencyStats
	for rows.Next() {
		var s models.ModelLatencyStats
		if err := rows.Scan(
			&s.EmbeddingModel,
			&s.Requests,
			&s.AvgEmbedTimeMs,
			&s.AvgSearchTimeMs,
			&s.AvgGenerateTimeMs,
			&s.AvgTotalTimeMs,
			&s.AvgChunksFound,
		); err != nil {
			return nil, fmt.Errorf("failed to scan query log stats: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating query log stats: %w", err)
	}

	return stats, nil
}
