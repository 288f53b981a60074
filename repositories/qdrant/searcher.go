package qdrant

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
	"github.com/upb/paper-rag/models"
	"go.uber.org/zap"
)

const defaultGRPCPort = 6334

// pointQuerier is the subset of *qdrant.Client the searcher needs
type pointQuerier interface {
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	Close() error
}

// Searcher runs chunk similarity search against Qdrant collections.
// Points carry paper_id, section_title and content in their payload.
// It implements repositories.ChunkSearcher; titles come from elsewhere.
type Searcher struct {
	client      pointQuerier
	collections map[string]string
	logger      *zap.Logger
}

// NewSearcher connects to Qdrant at addr (host or host:port, gRPC)
func NewSearcher(addr string, collections map[string]string, logger *zap.Logger) (*Searcher, error) {
	host, port, err := splitAddr(addr)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	logger.Info("qdrant client created", zap.String("host", host), zap.Int("port", port))
	return newSearcher(client, collections, logger), nil
}

func newSearcher(client pointQuerier, collections map[string]string, logger *zap.Logger) *Searcher {
	return &Searcher{
		client:      client,
		collections: collections,
		logger:      logger,
	}
}

// Search implements repositories.ChunkSearcher
func (s *Searcher) Search(ctx context.Context, vector []float32, topK int, embeddingModel string) ([]models.RetrievedChunk, error) {
	collection, ok := s.collections[embeddingModel]
	if !ok || collection == "" {
		return nil, fmt.Errorf("no qdrant collection configured for embedding model %q", embeddingModel)
	}
	if topK <= 0 {
		return []models.RetrievedChunk{}, nil
	}

	limit := uint64(topK)
	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query qdrant: %w", err)
	}

	chunks := make([]models.RetrievedChunk, 0, len(hits))
	for _, hit := range hits {
		if chunk, ok := hitToChunk(hit); ok {
			chunks = append(chunks, chunk)
		}
	}

	s.logger.Debug("qdrant search complete",
		zap.String("collection", collection),
		zap.Int("hits", len(hits)),
		zap.Int("found", len(chunks)))

	return chunks, nil
}

// HealthCheck asks the server for its health status
func (s *Searcher) HealthCheck(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	return nil
}

// Close closes the gRPC connection
func (s *Searcher) Close() error {
	return s.client.Close()
}

// hitToChunk skips points without a paper id
func hitToChunk(hit *qdrant.ScoredPoint) (models.RetrievedChunk, bool) {
	payload := hit.GetPayload()
	paperID := stringValue(payload["paper_id"])
	if paperID == "" {
		return models.RetrievedChunk{}, false
	}

	score := float64(hit.GetScore())
	chunk := models.RetrievedChunk{
		PaperID:         paperID,
		Content:         stringValue(payload["content"]),
		SimilarityScore: &score,
	}
	if section := stringValue(payload["section_title"]); section != "" {
		chunk.SectionTitle = &section
	}
	return chunk, true
}

func stringValue(val *qdrant.Value) string {
	if val == nil {
		return ""
	}
	return val.GetStringValue()
}

func splitAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// no port given
		return addr, defaultGRPCPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
	}
	return host, port, nil
}
