package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/upb/paper-rag/config"
	"github.com/upb/paper-rag/internal/observability"
	"github.com/upb/paper-rag/repositories"
	"github.com/upb/paper-rag/repositories/postgres"
	"github.com/upb/paper-rag/repositories/qdrant"
	"github.com/upb/paper-rag/repositories/supabase"
	"github.com/upb/paper-rag/services/chat"
	"github.com/upb/paper-rag/services/embedding"
	"github.com/upb/paper-rag/services/evaluation"
	"github.com/upb/paper-rag/services/generation"
	"github.com/upb/paper-rag/services/querylog"
	"github.com/upb/paper-rag/services/ratelimit"
	"github.com/upb/paper-rag/services/validation"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB
	Logger  *zap.Logger
	Metrics observability.Metrics

	// Repository Factory, nil when no database is configured
	RepoFactory *postgres.RepositoryFactory

	// Datastore
	Chunks    repositories.ChunkSearcher
	Titles    repositories.TitleLookup
	QueryLogs repositories.QueryLogRepository
	qdrant    *qdrant.Searcher

	// Collaborators
	Embedders *embedding.Registry
	Generator generation.Generator

	// Request admission
	RateLimiter *ratelimit.RateLimitService
	Validator   *validation.RequestValidator
	redis       *redis.Client

	// Services
	QueryLog   *querylog.Service
	Evaluation *evaluation.Service
	Chat       *chat.Service

	// HealthChecks feeds /readyz
	HealthChecks map[string]repositories.HealthChecker

	shutdownTracing func(context.Context) error
	stopCleanup     context.CancelFunc
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	return NewDependenciesWithDB(ctx, cfg, nil, logger)
}

// NewDependenciesWithDB wires the application over an already opened database.
// A nil db opens one from cfg when the configuration needs it.
func NewDependenciesWithDB(ctx context.Context, cfg *config.Config, db *postgres.DB, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:       cfg,
		Logger:       logger,
		HealthChecks: make(map[string]repositories.HealthChecker),
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"tracing", func() error { return deps.initTracing(ctx, cfg) }},
		{"database", func() error { return deps.initDatabase(ctx, cfg, db) }},
		{"datastore", func() error { return deps.initDatastore(cfg) }},
		{"embedders", func() error { return deps.initEmbedders(ctx, cfg) }},
		{"generator", func() error { return deps.initGenerator(ctx, cfg) }},
		{"rate limiter", func() error { return deps.initRateLimiter(ctx, cfg) }},
		{"query log", func() error { return deps.initQueryLog(cfg) }},
		{"evaluation", func() error { return deps.initEvaluation(cfg) }},
	}

	deps.initMetrics(cfg)
	for _, step := range steps {
		if err := step.fn(); err != nil {
			_ = deps.Close(ctx)
			return nil, fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
	}

	deps.Validator = validation.NewRequestValidator(cfg.Chat.MaxQueryChars, cfg.Chat.DefaultEmbeddingModel)
	deps.initChat()

	logger.Info("all dependencies initialized successfully",
		zap.String("datastore", cfg.Datastore.Backend),
		zap.Strings("embedding_models", deps.Embedders.Names()),
		zap.String("generation_provider", cfg.Generation.Provider))
	return deps, nil
}

func (d *Dependencies) initMetrics(cfg *config.Config) {
	if cfg.Observability.MetricsEnabled {
		d.Metrics = observability.NewPrometheusMetrics()
		return
	}
	d.Metrics = observability.NoopMetrics{}
}

func (d *Dependencies) initTracing(ctx context.Context, cfg *config.Config) error {
	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Observability.TracingEnabled,
		ServiceName: cfg.Observability.ServiceName,
		Environment: cfg.Environment,
		Exporter:    cfg.Observability.TracingExporter,
		Endpoint:    cfg.Observability.TracingEndpoint,
		SampleRate:  cfg.Observability.TracingSampleRate,
	}, d.Logger)
	if err != nil {
		return err
	}
	d.shutdownTracing = shutdown
	return nil
}

// initDatabase opens PostgreSQL when the datastore or the query log needs it
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config, db *postgres.DB) error {
	if db == nil && !cfg.NeedsDatabase() {
		d.Logger.Info("no database configured")
		return nil
	}

	var factory *postgres.RepositoryFactory
	if db != nil {
		factory = postgres.NewRepositoryFactoryWithDB(db, cfg.Datastore.Collections, d.Logger)
	} else {
		f, err := postgres.NewRepositoryFactory(cfg, d.Logger)
		if err != nil {
			return fmt.Errorf("failed to create repository factory: %w", err)
		}
		factory = f
	}
	d.RepoFactory = factory
	d.DB = factory.GetDB()
	d.HealthChecks["database"] = d.DB

	if cfg.QueryLog.Enabled {
		if err := factory.InitSchema(ctx); err != nil {
			return fmt.Errorf("failed to initialize query log schema: %w", err)
		}
	}

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))
	return nil
}

// initDatastore selects the chunk search and title lookup backends
func (d *Dependencies) initDatastore(cfg *config.Config) error {
	var repos *repositories.Repositories
	if d.RepoFactory != nil {
		repos = d.RepoFactory.NewRepositories()
		d.QueryLogs = repos.QueryLogs
	}

	switch cfg.Datastore.Backend {
	case config.DatastoreSupabase:
		client := supabase.NewClient(supabase.Config{
			URL:        cfg.Datastore.URL,
			ServiceKey: cfg.Datastore.ServiceKey,
			Timeout:    cfg.Datastore.Timeout,
			Functions:  cfg.Datastore.Collections,
		}, d.Logger)
		d.Chunks = client
		d.Titles = client
		d.HealthChecks["supabase"] = client

	case config.DatastoreQdrant:
		if repos == nil {
			return errors.New("qdrant datastore requires a database for paper titles")
		}
		searcher, err := qdrant.NewSearcher(cfg.Datastore.URL, cfg.Datastore.Collections, d.Logger)
		if err != nil {
			return err
		}
		d.qdrant = searcher
		d.Chunks = searcher
		d.Titles = repos.Titles
		d.HealthChecks["qdrant"] = searcher

	default:
		if repos == nil {
			return errors.New("postgres datastore requires a database")
		}
		d.Chunks = repos.Chunks
		d.Titles = repos.Titles
	}

	d.Logger.Info("datastore initialized", zap.String("backend", cfg.Datastore.Backend))
	return nil
}

// initEmbedders registers every embedding provider that has credentials
func (d *Dependencies) initEmbedders(ctx context.Context, cfg *config.Config) error {
	registry := embedding.NewRegistry()

	if oa := cfg.Embedding.OpenAI; oa.APIKey != "" {
		e, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:     oa.APIKey,
			Model:      oa.EmbeddingModel,
			BaseURL:    oa.BaseURL,
			Dimensions: oa.Dimensions,
			Timeout:    oa.Timeout,
			MaxRetries: oa.MaxRetries,
		}, d.Logger)
		if err != nil {
			return err
		}
		if err := registry.Register(e); err != nil {
			return err
		}
	}

	if gm := cfg.Embedding.Gemini; gm.APIKey != "" {
		e, err := embedding.NewGeminiEmbedder(ctx, embedding.GeminiConfig{
			APIKey:     gm.APIKey,
			Model:      gm.EmbeddingModel,
			BaseURL:    gm.BaseURL,
			Dimensions: gm.Dimensions,
		}, d.Logger)
		if err != nil {
			return err
		}
		if err := registry.Register(e); err != nil {
			return err
		}
	}

	if ol := cfg.Embedding.Ollama; ol.BaseURL != "" {
		if err := registry.Register(embedding.NewOllamaEmbedder(embedding.OllamaConfig{
			BaseURL: ol.BaseURL,
			Model:   ol.Model,
			Timeout: ol.Timeout,
		}, d.Logger)); err != nil {
			return err
		}
	}

	if len(registry.Names()) == 0 {
		d.Logger.Warn("no embedding providers configured")
	}
	d.Embedders = registry
	return nil
}

func (d *Dependencies) initGenerator(ctx context.Context, cfg *config.Config) error {
	builder := generation.PromptBuilder{HistoryTokenBudget: cfg.Generation.HistoryTokenBudget}

	switch cfg.Generation.Provider {
	case "gemini":
		gm := cfg.Embedding.Gemini
		g, err := generation.NewGeminiGenerator(ctx, generation.GeminiConfig{
			APIKey:      gm.APIKey,
			Model:       gm.ChatModel,
			BaseURL:     gm.BaseURL,
			MaxTokens:   cfg.Generation.MaxTokens,
			Temperature: cfg.Generation.Temperature,
		}, builder, d.Logger)
		if err != nil {
			return err
		}
		d.Generator = g
	default:
		oa := cfg.Embedding.OpenAI
		g, err := generation.NewOpenAIGenerator(generation.OpenAIConfig{
			APIKey:      oa.APIKey,
			Model:       oa.ChatModel,
			BaseURL:     oa.BaseURL,
			MaxTokens:   cfg.Generation.MaxTokens,
			Temperature: cfg.Generation.Temperature,
			Timeout:     oa.Timeout,
			MaxRetries:  oa.MaxRetries,
		}, builder, d.Logger)
		if err != nil {
			return err
		}
		d.Generator = g
	}

	d.Logger.Info("generation provider initialized", zap.String("provider", d.Generator.Name()))
	return nil
}

// initRateLimiter builds the limiter over an in-process or Redis window store
func (d *Dependencies) initRateLimiter(ctx context.Context, cfg *config.Config) error {
	var store ratelimit.Store

	switch cfg.RateLimit.Store {
	case config.RateLimitStoreRedis:
		cli := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		})
		d.redis = cli
		rs := ratelimit.NewRedisStore(cli)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rs.Ping(pingCtx); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		d.HealthChecks["redis"] = healthFunc(rs.Ping)
		store = rs

	default:
		ms := ratelimit.NewMemoryStore(d.Logger)
		cleanupCtx, cancel := context.WithCancel(context.Background())
		d.stopCleanup = cancel
		interval := cfg.RateLimit.CleanupInterval
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go ms.StartCleanupWorker(cleanupCtx, interval)
		store = ms
	}

	d.RateLimiter = ratelimit.NewRateLimitService(store, ratelimit.Config{
		MaxRequests: cfg.RateLimit.MaxRequests,
		Window:      cfg.RateLimit.Window,
	}, d.Logger)

	d.Logger.Info("rate limiter initialized",
		zap.String("store", cfg.RateLimit.Store),
		zap.Int("max_requests", d.RateLimiter.Limit()),
		zap.Duration("window", d.RateLimiter.Window()))
	return nil
}

func (d *Dependencies) initQueryLog(cfg *config.Config) error {
	if !cfg.QueryLog.Enabled || d.QueryLogs == nil {
		d.Logger.Info("query log disabled")
		return nil
	}

	svc := querylog.NewService(d.QueryLogs, d.Logger, querylog.Config{
		BufferSize:    cfg.QueryLog.BufferSize,
		WorkerCount:   cfg.QueryLog.Workers,
		RedactQueries: cfg.QueryLog.RedactPII,
	})
	if err := svc.Start(); err != nil {
		return err
	}
	d.QueryLog = svc
	return nil
}

func (d *Dependencies) initEvaluation(cfg *config.Config) error {
	d.Evaluation = evaluation.NewService(cfg.Evaluation.RunsFile, d.QueryLogs, d.Logger)
	return d.Evaluation.Load()
}

func (d *Dependencies) initChat() {
	deps := chat.Dependencies{
		Embedders: d.Embedders,
		Chunks:    d.Chunks,
		Titles:    d.Titles,
		Generator: d.Generator,
		Metrics:   d.Metrics,
	}
	if d.QueryLog != nil {
		deps.QueryLog = d.QueryLog
	}
	d.Chat = chat.NewService(deps, d.Logger)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Drain the query log before the database goes away
	if d.QueryLog != nil {
		if err := d.QueryLog.Stop(10 * time.Second); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop query log: %w", err))
		}
	}

	if d.stopCleanup != nil {
		d.stopCleanup()
	}

	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}

	if d.qdrant != nil {
		if err := d.qdrant.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close qdrant: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.shutdownTracing != nil {
		if err := d.shutdownTracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down tracing: %w", err))
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	return errors.Join(errs...)
}

type healthFunc func(ctx context.Context) error

func (f healthFunc) HealthCheck(ctx context.Context) error { return f(ctx) }
