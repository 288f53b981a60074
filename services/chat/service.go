package chat

import (
	"context"
	"errors"
	"time"

	"github.com/upb/paper-rag/internal/observability"
	"github.com/upb/paper-rag/models"
	"github.com/upb/paper-rag/repositories"
	"github.com/upb/paper-rag/services"
	"github.com/upb/paper-rag/services/embedding"
	"github.com/upb/paper-rag/services/generation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// EmbedderProvider resolves an embedding model name to its embedder
type EmbedderProvider interface {
	Get(name string) (embedding.Embedder, error)
}

// QueryLogger accepts finished pipeline runs for background persistence
type QueryLogger interface {
	Enqueue(entry *models.QueryLog) error
}

// Dependencies are the collaborators the pipeline calls
type Dependencies struct {
	Embedders EmbedderProvider
	Chunks    repositories.ChunkSearcher
	Titles    repositories.TitleLookup
	Generator generation.Generator
	QueryLog  QueryLogger           // optional
	Metrics   observability.Metrics // optional
}

// Service runs the embed, search, enrich and generate stages for one query
type Service struct {
	embedders EmbedderProvider
	chunks    repositories.ChunkSearcher
	titles    repositories.TitleLookup
	generator generation.Generator
	queryLog  QueryLogger
	metrics   observability.Metrics
	tracer    trace.Tracer
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a new chat pipeline service
func NewService(deps Dependencies, logger *zap.Logger) *Service {
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Service{
		embedders: deps.Embedders,
		chunks:    deps.Chunks,
		titles:    deps.Titles,
		generator: deps.Generator,
		queryLog:  deps.QueryLog,
		metrics:   metrics,
		tracer:    observability.Tracer(),
		logger:    logger,
		now:       time.Now,
	}
}

// Process runs the pipeline. Stages are strictly sequential and the first
// failure aborts the request; nothing computed before it is returned.
func (s *Service) Process(ctx context.Context, query models.ChatQuery) (*models.ChatResponse, error) {
	start := s.now()

	ctx, span := s.tracer.Start(ctx, "chat.process", trace.WithAttributes(
		attribute.String("embedding_model", query.EmbeddingModel),
		attribute.Int("top_k", query.TopK),
	))
	defer span.End()

	logger := observability.LoggerFromContext(ctx, s.logger)
	entry := models.NewQueryLog(observability.RequestIDFromContext(ctx), ClientKeyFromContext(ctx), query)

	resp, err := s.run(ctx, query, start, logger)
	if err != nil {
		total := s.elapsedMs(start)
		span.RecordError(err)
		span.SetStatus(codes.Error, services.GetErrorMessage(err))

		labels := observability.RequestLabels{EmbeddingModel: query.EmbeddingModel, Status: string(models.QueryStatusFailed)}
		s.metrics.RecordRequest(ctx, labels)
		s.metrics.RecordStageLatency(ctx, observability.StageTotal, total, labels)

		entry.MarkFailed(total, services.GetErrorMessage(err))
		s.enqueue(entry, logger)

		logger.Warn("chat pipeline failed",
			zap.String("embedding_model", query.EmbeddingModel),
			zap.Int64("total_time_ms", total),
			zap.Error(err))
		return nil, err
	}

	labels := observability.RequestLabels{EmbeddingModel: query.EmbeddingModel, Status: string(models.QueryStatusCompleted)}
	s.metrics.RecordRequest(ctx, labels)
	s.metrics.RecordStageLatency(ctx, observability.StageTotal, resp.Metrics.TotalTimeMs, labels)
	s.metrics.RecordChunks(ctx, resp.Metrics.ChunksFound, labels)

	entry.MarkCompleted(resp.Metrics)
	s.enqueue(entry, logger)

	logger.Info("chat pipeline completed",
		zap.String("embedding_model", query.EmbeddingModel),
		zap.Int("chunks_found", resp.Metrics.ChunksFound),
		zap.Int64("embed_time_ms", resp.Metrics.EmbedTimeMs),
		zap.Int64("search_time_ms", resp.Metrics.SearchTimeMs),
		zap.Int64("generate_time_ms", resp.Metrics.GenerateTimeMs),
		zap.Int64("total_time_ms", resp.Metrics.TotalTimeMs))

	return resp, nil
}

func (s *Service) run(ctx context.Context, query models.ChatQuery, start time.Time, logger *zap.Logger) (*models.ChatResponse, error) {
	labels := observability.RequestLabels{EmbeddingModel: query.EmbeddingModel, Status: "ok"}

	// Stage 1: embed
	logger.Debug("step 1: embedding query")
	embedded, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordStageLatency(ctx, observability.StageEmbed, embedded.LatencyMs, labels)

	// Stage 2: search
	logger.Debug("step 2: searching chunks", zap.Int("dimensions", len(embedded.Vector)))
	chunks, searchMs, err := s.search(ctx, embedded.Vector, query)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordStageLatency(ctx, observability.StageSearch, searchMs, labels)

	// Stage 3: enrich
	logger.Debug("step 3: enriching sources", zap.Int("chunks", len(chunks)))
	enrichStart := s.now()
	sources, err := s.enrich(ctx, chunks)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordStageLatency(ctx, observability.StageEnrich, s.elapsedMs(enrichStart), labels)

	// Stage 4: generate
	logger.Debug("step 4: generating answer", zap.Int("sources", len(sources)))
	generated, err := s.generate(ctx, query, sources)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordStageLatency(ctx, observability.StageGenerate, generated.LatencyMs, labels)

	return &models.ChatResponse{
		Answer:  generated.Answer,
		Sources: sources,
		Metrics: models.ChatMetrics{
			EmbedTimeMs:    embedded.LatencyMs,
			SearchTimeMs:   searchMs,
			GenerateTimeMs: generated.LatencyMs,
			TotalTimeMs:    s.elapsedMs(start),
			ChunksFound:    len(chunks),
			EmbeddingModel: query.EmbeddingModel,
		},
	}, nil
}

func (s *Service) embed(ctx context.Context, query models.ChatQuery) (*embedding.Result, error) {
	if s.embedders == nil {
		return nil, services.NewConfigurationMissingError("embedding provider")
	}
	embedder, err := s.embedders.Get(query.EmbeddingModel)
	if err != nil {
		if errors.Is(err, embedding.ErrEmbedderNotFound) {
			return nil, services.NewConfigurationMissingError("embedding provider for model " + query.EmbeddingModel)
		}
		return nil, services.NewCollaboratorError(services.CodeEmbeddingFailed, err)
	}

	ctx, span := s.tracer.Start(ctx, "chat.embed")
	defer span.End()

	result, err := embedder.Embed(ctx, query.Query)
	if err == nil && (result == nil || len(result.Vector) == 0) {
		err = embedding.ErrEmptyEmbedding
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, services.NewCollaboratorError(services.CodeEmbeddingFailed, err)
	}
	span.SetAttributes(attribute.Int64("latency_ms", result.LatencyMs))
	return result, nil
}

func (s *Service) search(ctx context.Context, vector []float32, query models.ChatQuery) ([]models.RetrievedChunk, int64, error) {
	if s.chunks == nil {
		return nil, 0, services.NewConfigurationMissingError("datastore")
	}

	ctx, span := s.tracer.Start(ctx, "chat.search")
	defer span.End()

	searchStart := s.now()
	chunks, err := s.chunks.Search(ctx, vector, query.TopK, query.EmbeddingModel)
	searchMs := s.elapsedMs(searchStart)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, services.NewCollaboratorError(services.CodeSearchFailed, err)
	}
	span.SetAttributes(attribute.Int("chunks_found", len(chunks)))
	return chunks, searchMs, nil
}

// enrich joins titles onto chunks. Zero chunks skip the lookup entirely.
func (s *Service) enrich(ctx context.Context, chunks []models.RetrievedChunk) ([]models.Source, error) {
	sources := make([]models.Source, 0, len(chunks))
	if len(chunks) == 0 {
		return sources, nil
	}
	if s.titles == nil {
		return nil, services.NewConfigurationMissingError("title lookup")
	}

	ctx, span := s.tracer.Start(ctx, "chat.enrich")
	defer span.End()

	ids := DistinctPaperIDs(chunks)
	span.SetAttributes(attribute.Int("paper_ids", len(ids)))

	titles, err := s.titles.LookupTitles(ctx, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, services.NewCollaboratorError(services.CodeTitleLookupFailed, err)
	}

	for _, chunk := range chunks {
		sources = append(sources, models.NewSource(chunk, titles))
	}
	return sources, nil
}

func (s *Service) generate(ctx context.Context, query models.ChatQuery, sources []models.Source) (*generation.Result, error) {
	if s.generator == nil {
		return nil, services.NewConfigurationMissingError("generation provider")
	}

	ctx, span := s.tracer.Start(ctx, "chat.generate", trace.WithAttributes(
		attribute.String("provider", s.generator.Name()),
	))
	defer span.End()

	result, err := s.generator.Generate(ctx, query.Query, sources, query.History)
	if err == nil && result == nil {
		err = generation.ErrEmptyAnswer
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, services.NewCollaboratorError(services.CodeGenerationFailed, err)
	}
	span.SetAttributes(attribute.Int64("latency_ms", result.LatencyMs))
	return result, nil
}

func (s *Service) enqueue(entry *models.QueryLog, logger *zap.Logger) {
	if s.queryLog == nil {
		return
	}
	if err := s.queryLog.Enqueue(entry); err != nil {
		logger.Debug("query log entry not recorded", zap.Error(err))
	}
}

func (s *Service) elapsedMs(since time.Time) int64 {
	return s.now().Sub(since).Milliseconds()
}

// DistinctPaperIDs returns each paper id once, in order of first appearance
func DistinctPaperIDs(chunks []models.RetrievedChunk) []string {
	seen := make(map[string]struct{}, len(chunks))
	ids := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if _, ok := seen[chunk.PaperID]; ok {
			continue
		}
		seen[chunk.PaperID] = struct{}{}
		ids = append(ids, chunk.PaperID)
	}
	return ids
}
