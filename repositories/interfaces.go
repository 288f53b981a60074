package repositories

import (
	"context"
	"time"

	"github.com/upb/paper-rag/models"
)

// ChunkSearcher performs vector similarity search over paper chunks
type ChunkSearcher interface {
	// Search returns up to topK chunks ranked by similarity to vector.
	// embeddingModel selects the index built with the same embedding model.
	Search(ctx context.Context, vector []float32, topK int, embeddingModel string) ([]models.RetrievedChunk, error)
}

// TitleLookup resolves paper titles in one batch
type TitleLookup interface {
	// LookupTitles returns the titles it found; ids without a title are simply absent
	LookupTitles(ctx context.Context, paperIDs []string) (map[string]string, error)
}

// Datastore is a backend that can both search chunks and resolve titles
type Datastore interface {
	ChunkSearcher
	TitleLookup
}

// QueryLogRepository handles query log data operations
type QueryLogRepository interface {
	// Insert inserts a new query log entry
	Insert(ctx context.Context, log *models.QueryLog) error

	// ListRecent returns the newest entries first
	ListRecent(ctx context.Context, limit int) ([]*models.QueryLog, error)

	// StatsByModel aggregates completed requests per embedding model since the given time
	StatsByModel(ctx context.Context, since time.Time) ([]models.ModelLatencyStats, error)
}

// HealthChecker is implemented by backends that can report readiness
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Repositories holds the repositories the chat pipeline reads and writes
type Repositories struct {
	Chunks    ChunkSearcher
	Titles    TitleLookup
	QueryLogs QueryLogRepository
}
