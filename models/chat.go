package models

import "unicode/utf8"

// Defaults applied to optional chat request fields
const (
	DefaultEmbeddingModel = "openai"
	DefaultTopK           = 5

	// FallbackTitle is used when the title lookup has no entry for a paper
	FallbackTitle = "Research Paper"
	// FallbackSection is used when a chunk carries no section title
	FallbackSection = "Unknown Section"
	// MaxChunkTextChars caps Source.ChunkText; a hard character cap, not token-aware
	MaxChunkTextChars = 500
)

// HistoryMessage is one prior turn of the conversation
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatQuery is a validated chat request. It is not modified after validation.
type ChatQuery struct {
	Query          string           `json:"query"`
	EmbeddingModel string           `json:"embedding_model"`
	History        []HistoryMessage `json:"history"`
	TopK           int              `json:"top_k"`
}

// RetrievedChunk is a single search hit returned by the datastore.
// SectionTitle and SimilarityScore are optional; fallbacks are applied during enrichment.
type RetrievedChunk struct {
	PaperID         string   `json:"paper_id"`
	SectionTitle    *string  `json:"section_title,omitempty"`
	Content         string   `json:"content"`
	SimilarityScore *float64 `json:"similarity,omitempty"`
}

// Source is a retrieved chunk joined with its paper title
type Source struct {
	PaperID    string  `json:"paper_id"`
	Title      string  `json:"title"`
	Section    string  `json:"section"`
	Similarity float64 `json:"similarity"`
	ChunkText  string  `json:"chunk_text"`
}

// ChatMetrics reports per-stage timings for one request
type ChatMetrics struct {
	EmbedTimeMs    int64  `json:"embed_time_ms"`
	SearchTimeMs   int64  `json:"search_time_ms"`
	GenerateTimeMs int64  `json:"generate_time_ms"`
	TotalTimeMs    int64  `json:"total_time_ms"`
	ChunksFound    int    `json:"chunks_found"`
	EmbeddingModel string `json:"embedding_model"`
}

// ChatResponse is the successful result of the chat pipeline
type ChatResponse struct {
	Answer  string      `json:"answer"`
	Sources []Source    `json:"sources"`
	Metrics ChatMetrics `json:"metrics"`
}

// NewSource builds a Source from a chunk and the title lookup result,
// applying the documented fallbacks for missing fields.
func NewSource(chunk RetrievedChunk, titles map[string]string) Source {
	title, ok := titles[chunk.PaperID]
	if !ok || title == "" {
		title = FallbackTitle
	}

	section := FallbackSection
	if chunk.SectionTitle != nil && *chunk.SectionTitle != "" {
		section = *chunk.SectionTitle
	}

	var similarity float64
	if chunk.SimilarityScore != nil {
		similarity = *chunk.SimilarityScore
	}

	return Source{
		PaperID:    chunk.PaperID,
		Title:      title,
		Section:    section,
		Similarity: similarity,
		ChunkText:  TruncateChars(chunk.Content, MaxChunkTextChars),
	}
}

// TruncateChars returns at most max characters of s
func TruncateChars(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
