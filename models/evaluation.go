package models

import "time"

// EvaluationRun is one offline evaluation of a retrieval configuration
type EvaluationRun struct {
	Name           string    `json:"name" yaml:"name"`
	EmbeddingModel string    `json:"embedding_model" yaml:"embedding_model"`
	Chunking       string    `json:"chunking,omitempty" yaml:"chunking,omitempty"`
	TopK           int       `json:"top_k" yaml:"top_k"`
	MRR            float64   `json:"mrr" yaml:"mrr"`
	NDCG           float64   `json:"ndcg" yaml:"ndcg"`
	PrecisionAtK   float64   `json:"precision_at_k" yaml:"precision_at_k"`
	RecallAtK      float64   `json:"recall_at_k" yaml:"recall_at_k"`
	AvgLatencyMs   float64   `json:"avg_latency_ms" yaml:"avg_latency_ms"`
	Queries        int       `json:"queries" yaml:"queries"`
	EvaluatedAt    time.Time `json:"evaluated_at" yaml:"evaluated_at"`
}

// ModelLatencyStats aggregates live chat latencies for one embedding model
type ModelLatencyStats struct {
	EmbeddingModel    string  `json:"embedding_model"`
	Requests          int     `json:"requests"`
	AvgEmbedTimeMs    float64 `json:"avg_embed_time_ms"`
	AvgSearchTimeMs   float64 `json:"avg_search_time_ms"`
	AvgGenerateTimeMs float64 `json:"avg_generate_time_ms"`
	AvgTotalTimeMs    float64 `json:"avg_total_time_ms"`
	AvgChunksFound    float64 `json:"avg_chunks_found"`
}

// EvaluationSummary names the best run per metric and carries live latency stats
type EvaluationSummary struct {
	Runs          int                 `json:"runs"`
	BestMRR       string              `json:"best_mrr,omitempty"`
	BestNDCG      string              `json:"best_ndcg,omitempty"`
	BestPrecision string              `json:"best_precision,omitempty"`
	BestRecall    string              `json:"best_recall,omitempty"`
	FastestRun    string              `json:"fastest,omitempty"`
	Live          []ModelLatencyStats `json:"live,omitempty"`
}
