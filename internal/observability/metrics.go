package observability

import (
	"context"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline stages
const (
	StageEmbed    = "embed"
	StageSearch   = "search"
	StageEnrich   = "enrich"
	StageGenerate = "generate"
	StageTotal    = "total"
)

// Metrics collects chat pipeline metrics.
type Metrics interface {
	RecordRequest(ctx context.Context, labels RequestLabels)
	RecordStageLatency(ctx context.Context, stage string, ms int64, labels RequestLabels)
	RecordChunks(ctx context.Context, count int, labels RequestLabels)
	RecordRateLimited(ctx context.Context)
}

// RequestLabels contains metric dimensions.
type RequestLabels struct {
	EmbeddingModel string
	Status         string
}

var (
	registerOnce sync.Once
	collectors   []prometheus.Collector
)

func register(cs ...prometheus.Collector) {
	collectors = append(collectors, cs...)
}

// MustRegister registers all collectors with the default registry exactly once.
func MustRegister() {
	registerOnce.Do(func() {
		if len(collectors) > 0 {
			prometheus.MustRegister(collectors...)
		}
	})
}

func init() {
	register(
		chatRequestsTotal,
		chatStageLatencyMs,
		chatChunksFound,
		chatRateLimitedTotal,
	)
}

var (
	chatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_requests_total",
			Help: "Chat requests by embedding model and outcome.",
		},
		[]string{"embedding_model", "status"},
	)

	chatStageLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_stage_latency_ms",
			Help:    "Chat pipeline stage latency in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000},
		},
		[]string{"stage", "embedding_model", "status"},
	)

	chatChunksFound = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_chunks_found",
			Help:    "Chunks returned by similarity search per request.",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"embedding_model"},
	)

	chatRateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_rate_limited_total",
			Help: "Chat requests rejected by the per-client rate limiter.",
		},
	)
)

// PrometheusMetrics records into the package collectors
type PrometheusMetrics struct{}

// NewPrometheusMetrics registers the collectors and returns a recorder
func NewPrometheusMetrics() *PrometheusMetrics {
	MustRegister()
	return &PrometheusMetrics{}
}

func (*PrometheusMetrics) RecordRequest(_ context.Context, labels RequestLabels) {
	chatRequestsTotal.WithLabelValues(norm(labels.EmbeddingModel), norm(labels.Status)).Inc()
}

func (*PrometheusMetrics) RecordStageLatency(_ context.Context, stage string, ms int64, labels RequestLabels) {
	chatStageLatencyMs.WithLabelValues(stage, norm(labels.EmbeddingModel), norm(labels.Status)).Observe(float64(ms))
}

func (*PrometheusMetrics) RecordChunks(_ context.Context, count int, labels RequestLabels) {
	chatChunksFound.WithLabelValues(norm(labels.EmbeddingModel)).Observe(float64(count))
}

func (*PrometheusMetrics) RecordRateLimited(context.Context) {
	chatRateLimitedTotal.Inc()
}

// NoopMetrics discards everything
type NoopMetrics struct{}

func (NoopMetrics) RecordRequest(context.Context, RequestLabels)                     {}
func (NoopMetrics) RecordStageLatency(context.Context, string, int64, RequestLabels) {}
func (NoopMetrics) RecordChunks(context.Context, int, RequestLabels)                 {}
func (NoopMetrics) RecordRateLimited(context.Context)                                {}

func norm(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return s
}
