package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/upb/paper-rag/app"
	"github.com/upb/paper-rag/handlers"
	appmw "github.com/upb/paper-rag/middleware"
	"github.com/upb/paper-rag/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	cfg := deps.Config
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(appmw.RequestID)
	r.Use(appmw.Tracing)
	r.Use(appmw.RequestLogger(deps.Logger))
	r.Use(appmw.Recoverer(deps.Logger))
	// Adapter-level deadline; the chat pipeline itself sets none
	r.Use(middleware.Timeout(requestTimeout(cfg.Server.WriteTimeout)))

	// CORS headers on every response; OPTIONS answers "ok" on any path
	r.Use(appmw.CORS(cfg.Server.CORSAllowedOrigins...))

	// Health check endpoints
	health := handlers.NewHealthHandler(deps.HealthChecks, deps.Logger)
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	if cfg.Observability.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Chat endpoint
	chatHandler := handlers.NewChatHandler(deps.Chat, deps.RateLimiter, deps.Validator,
		handlers.ChatHandlerConfig{
			ExposeCollaboratorErrors: cfg.Chat.ExposeCollaboratorErrors,
			Metrics:                  deps.Metrics,
		}, deps.Logger)
	r.Post("/chat", chatHandler.HandleChat)

	// Evaluation endpoints
	evaluation := handlers.NewEvaluationHandler(deps.Evaluation, deps.Logger)
	r.Route("/api/evaluation", func(r chi.Router) {
		r.Get("/runs", evaluation.HandleListRuns)
		r.Get("/summary", evaluation.HandleSummary)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusNotFound, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

// requestTimeout leaves a second of the write timeout for the error response
func requestTimeout(writeTimeout time.Duration) time.Duration {
	if writeTimeout <= 2*time.Second {
		return 60 * time.Second
	}
	return writeTimeout - time.Second
}
