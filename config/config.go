package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/upb/paper-rag/utils"
)

// Datastore backends
const (
	DatastorePostgres = "postgres"
	DatastoreSupabase = "supabase"
	DatastoreQdrant   = "qdrant"
)

// Rate limit stores
const (
	RateLimitStoreMemory = "memory"
	RateLimitStoreRedis  = "redis"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Datastore     DatastoreConfig
	RateLimit     RateLimitConfig
	Chat          ChatConfig
	Embedding     EmbeddingConfig
	Generation    GenerationConfig
	QueryLog      QueryLogConfig
	Evaluation    EvaluationConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host               string
	Port               int `validate:"gt=0,lte=65535"`
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string
	TLS                struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATASTORE_URL or DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// DatastoreConfig selects where chunks are searched and titles looked up
type DatastoreConfig struct {
	Backend    string `validate:"oneof=postgres supabase qdrant"`
	URL        string
	ServiceKey string
	Timeout    time.Duration
	// Collections maps an embedding model name to its search target:
	// a SQL function for postgres, an RPC name for supabase, a collection for qdrant.
	Collections map[string]string
}

// RateLimitConfig holds the chat endpoint admission settings
type RateLimitConfig struct {
	MaxRequests     int           `validate:"gte=1"`
	Window          time.Duration `validate:"gt=0"`
	Store           string        `validate:"oneof=memory redis"`
	CleanupInterval time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
}

// ChatConfig holds request validation and response policy settings
type ChatConfig struct {
	MaxQueryChars            int `validate:"gte=1"`
	DefaultEmbeddingModel    string
	ExposeCollaboratorErrors bool
}

// EmbeddingConfig holds embedding provider configuration
type EmbeddingConfig struct {
	OpenAI OpenAIConfig
	Gemini GeminiConfig
	Ollama OllamaConfig
}

// OpenAIConfig holds OpenAI provider configuration
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	ChatModel      string
	Dimensions     int
	Timeout        time.Duration
	MaxRetries     int
}

// GeminiConfig holds Gemini provider configuration
type GeminiConfig struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	ChatModel      string
	Dimensions     int
}

// OllamaConfig holds local Ollama configuration. Empty BaseURL disables it.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// GenerationConfig holds answer generation settings
type GenerationConfig struct {
	Provider           string `validate:"oneof=openai gemini"`
	MaxTokens          int
	Temperature        float64 `validate:"gte=0,lte=2"`
	HistoryTokenBudget int
}

// QueryLogConfig holds the async query log settings
type QueryLogConfig struct {
	Enabled    bool
	Workers    int `validate:"gte=1"`
	BufferSize int `validate:"gte=1"`
	RedactPII  bool
}

// EvaluationConfig holds the evaluation data settings
type EvaluationConfig struct {
	RunsFile string
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel          string
	LogFormat         string // json or console
	MetricsEnabled    bool
	TracingEnabled    bool
	TracingExporter   string // stdout or otlp
	TracingEndpoint   string
	TracingSampleRate float64 `validate:"gte=0,lte=1"`
	ServiceName       string
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	backend := strings.ToLower(getEnv("DATASTORE_BACKEND", DatastorePostgres))

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "0.0.0.0"),
			Port:               getPort(),
			ReadTimeout:        getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:       getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:    getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: loadDatabaseConfig(backend),
		Datastore: DatastoreConfig{
			Backend:    backend,
			URL:        getEnv("DATASTORE_URL", ""),
			ServiceKey: getEnv("DATASTORE_SERVICE_KEY", ""),
			Timeout:    getEnvAsDuration("DATASTORE_TIMEOUT", 30*time.Second),
			Collections: map[string]string{
				"openai": getEnv("DATASTORE_COLLECTION_OPENAI", "match_chunks_openai"),
				"gemini": getEnv("DATASTORE_COLLECTION_GEMINI", "match_chunks_gemini"),
				"ollama": getEnv("DATASTORE_COLLECTION_OLLAMA", "match_chunks_ollama"),
			},
		},
		RateLimit: RateLimitConfig{
			MaxRequests:     getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 10),
			Window:          getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
			Store:           strings.ToLower(getEnv("RATE_LIMIT_STORE", RateLimitStoreMemory)),
			CleanupInterval: getEnvAsDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
			RedisAddr:       getEnv("REDIS_ADDR", ""),
			RedisPassword:   getEnv("REDIS_PASSWORD", ""),
			RedisDB:         getEnvAsInt("REDIS_DB", 0),
		},
		Chat: ChatConfig{
			MaxQueryChars:            getEnvAsInt("CHAT_MAX_QUERY_CHARS", 500),
			DefaultEmbeddingModel:    getEnv("CHAT_DEFAULT_EMBEDDING_MODEL", "openai"),
			ExposeCollaboratorErrors: getEnvAsBool("EXPOSE_COLLABORATOR_ERRORS", true),
		},
		Embedding: EmbeddingConfig{
			OpenAI: OpenAIConfig{
				APIKey:         getEnv("OPENAI_API_KEY", ""),
				BaseURL:        getEnv("OPENAI_BASE_URL", ""),
				EmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
				ChatModel:      getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
				Dimensions:     getEnvAsInt("OPENAI_EMBEDDING_DIMENSIONS", 0),
				Timeout:        getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
				MaxRetries:     getEnvAsInt("OPENAI_MAX_RETRIES", 0),
			},
			Gemini: GeminiConfig{
				APIKey:         getEnv("GEMINI_API_KEY", ""),
				BaseURL:        getEnv("GEMINI_BASE_URL", ""),
				EmbeddingModel: getEnv("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
				ChatModel:      getEnv("GEMINI_CHAT_MODEL", "gemini-2.0-flash"),
				Dimensions:     getEnvAsInt("GEMINI_EMBEDDING_DIMENSIONS", 0),
			},
			Ollama: OllamaConfig{
				BaseURL: getEnv("OLLAMA_BASE_URL", ""),
				Model:   getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
				Timeout: getEnvAsDuration("OLLAMA_TIMEOUT", 60*time.Second),
			},
		},
		Generation: GenerationConfig{
			Provider:           strings.ToLower(getEnv("GENERATION_PROVIDER", "openai")),
			MaxTokens:          getEnvAsInt("GENERATION_MAX_TOKENS", 1024),
			Temperature:        getEnvAsFloat("GENERATION_TEMPERATURE", 0.2),
			HistoryTokenBudget: getEnvAsInt("GENERATION_HISTORY_TOKEN_BUDGET", 0),
		},
		QueryLog: QueryLogConfig{
			Enabled:    getEnvAsBool("QUERY_LOG_ENABLED", backend != DatastoreSupabase),
			Workers:    getEnvAsInt("QUERY_LOG_WORKERS", 2),
			BufferSize: getEnvAsInt("QUERY_LOG_BUFFER_SIZE", 256),
			RedactPII:  getEnvAsBool("QUERY_LOG_REDACT_PII", true),
		},
		Evaluation: EvaluationConfig{
			RunsFile: getEnv("EVALUATION_RUNS_FILE", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:          getEnv("LOG_LEVEL", "info"),
			LogFormat:         getEnv("LOG_FORMAT", "json"),
			MetricsEnabled:    getEnvAsBool("METRICS_ENABLED", true),
			TracingEnabled:    getEnvAsBool("TRACING_ENABLED", false),
			TracingExporter:   getEnv("TRACING_EXPORTER", "stdout"),
			TracingEndpoint:   getEnv("TRACING_ENDPOINT", ""),
			TracingSampleRate: getEnvAsFloat("TRACING_SAMPLE_RATE", 0.1),
			ServiceName:       getEnv("SERVICE_NAME", "paper-rag"),
		},
	}
	cfg.Server.TLS.Enabled = getEnvAsBool("TLS_ENABLED", false)
	cfg.Server.TLS.CertFile = getEnv("TLS_CERT_FILE", "certs/cert.pem")
	cfg.Server.TLS.KeyFile = getEnv("TLS_KEY_FILE", "certs/key.pem")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		if fields := utils.GetValidationFields(err); len(fields) > 0 {
			return fmt.Errorf("invalid configuration: %v", fields)
		}
		return err
	}

	switch c.Datastore.Backend {
	case DatastoreSupabase:
		if c.Datastore.URL == "" {
			return fmt.Errorf("datastore URL is required for supabase: set DATASTORE_URL")
		}
		if c.Datastore.ServiceKey == "" {
			return fmt.Errorf("datastore service key is required for supabase: set DATASTORE_SERVICE_KEY")
		}
		if err := utils.ValidateVar(c.Datastore.URL, "url"); err != nil {
			return fmt.Errorf("datastore URL must be a valid URL")
		}
	case DatastoreQdrant:
		if c.Datastore.URL == "" {
			return fmt.Errorf("datastore URL is required for qdrant: set DATASTORE_URL to host:port")
		}
	}

	if c.NeedsDatabase() {
		if c.Database.ConnectionString == "" && c.Database.Host == "" {
			return fmt.Errorf("database configuration required: set DATASTORE_URL, DATABASE_URL or DB_HOST")
		}
		if c.Database.ConnectionString == "" {
			if c.Database.User == "" {
				return fmt.Errorf("database user is required")
			}
			if c.Database.Database == "" {
				return fmt.Errorf("database name is required")
			}
		}
	}

	if c.RateLimit.Store == RateLimitStoreRedis && c.RateLimit.RedisAddr == "" {
		return fmt.Errorf("redis address is required for the redis rate limit store: set REDIS_ADDR")
	}

	if err := c.validateProviderKeys(); err != nil {
		return err
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

func (c *Config) validateProviderKeys() error {
	switch c.Generation.Provider {
	case "openai":
		if c.Embedding.OpenAI.APIKey == "" {
			return fmt.Errorf("generation provider key is required: set OPENAI_API_KEY")
		}
	case "gemini":
		if c.Embedding.Gemini.APIKey == "" {
			return fmt.Errorf("generation provider key is required: set GEMINI_API_KEY")
		}
	}

	switch c.Chat.DefaultEmbeddingModel {
	case "openai":
		if c.Embedding.OpenAI.APIKey == "" {
			return fmt.Errorf("embedding provider key is required: set OPENAI_API_KEY")
		}
	case "gemini":
		if c.Embedding.Gemini.APIKey == "" {
			return fmt.Errorf("embedding provider key is required: set GEMINI_API_KEY")
		}
	case "ollama":
		if c.Embedding.Ollama.BaseURL == "" {
			return fmt.Errorf("ollama base URL is required: set OLLAMA_BASE_URL")
		}
	default:
		return fmt.Errorf("unknown default embedding model %q", c.Chat.DefaultEmbeddingModel)
	}
	return nil
}

// NeedsDatabase reports whether a PostgreSQL connection must be opened
func (c *Config) NeedsDatabase() bool {
	return c.Datastore.Backend != DatastoreSupabase || c.QueryLog.Enabled
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil && u.Host != "" {
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, db)
		}
		return "host=<from connection string>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL, DATASTORE_URL (postgres backend) or DB_* env vars
func loadDatabaseConfig(backend string) DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" && backend == DatastorePostgres {
		dbURL = getEnv("DATASTORE_URL", "")
	}
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "rag"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "papers"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
