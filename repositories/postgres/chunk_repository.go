package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/upb/paper-rag/models"
	"go.uber.org/zap"
)

// ChunkRepository searches pgvector-backed chunk tables through per-model SQL functions.
// Each function has the signature fn(query_embedding vector, match_count int) and
// returns (paper_id, section_title, content, similarity).
type ChunkRepository struct {
	db        *DB
	functions map[string]string
	logger    *zap.Logger
}

// NewChunkRepository creates a chunk repository. functions maps embedding model names to SQL function names.
func NewChunkRepository(db *DB, functions map[string]string, logger *zap.Logger) *ChunkRepository {
	return &ChunkRepository{
		db:        db,
		functions: functions,
		logger:    logger,
	}
}

// Search implements repositories.ChunkSearcher
func (r *ChunkRepository) Search(ctx context.Context, vector []float32, topK int, embeddingModel string) ([]models.RetrievedChunk, error) {
	fn, ok := r.functions[embeddingModel]
	if !ok || fn == "" {
		return nil, fmt.Errorf("no search function configured for embedding model %q", embeddingModel)
	}

	query := fmt.Sprintf(`
		SELECT paper_id::text, section_title, content, similarity
		FROM %s($1::vector, $2)
	`, pq.QuoteIdentifier(fn))

	rows, err := r.db.QueryContext(ctx, query, VectorLiteral(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	chunks := []models.RetrievedChunk{}
	for rows.Next() {
		var (
			chunk      models.RetrievedChunk
			section    sql.NullString
			similarity sql.NullFloat64
		)
		if err := rows.Scan(&chunk.PaperID, &section, &chunk.Content, &similarity); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		if section.Valid {
			chunk.SectionTitle = &section.String
		}
		if similarity.Valid {
			chunk.SimilarityScore = &similarity.Float64
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunks: %w", err)
	}

	r.logger.Debug("chunk search complete",
		zap.String("embedding_model", embeddingModel),
		zap.Int("top_k", topK),
		zap.Int("found", len(chunks)))

	return chunks, nil
}

// VectorLiteral formats a vector in pgvector's text representation, e.g. [0.1,0.2]
func VectorLiteral(vector []float32) string {
	var sb strings.Builder
	sb.Grow(len(vector)*10 + 2)
	sb.WriteByte('[')
	for i, v := range vector {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
