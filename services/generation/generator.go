package generation

import (
	"context"
	"errors"

	"github.com/upb/paper-rag/models"
)

// ErrEmptyAnswer is returned when the language model produces no text
var ErrEmptyAnswer = errors.New("provider returned no answer")

// Result is the generated answer plus the latency the generator measured for the call
type Result struct {
	Answer    string
	LatencyMs int64
}

// Generator answers a query from retrieved sources and conversation history
type Generator interface {
	Name() string
	Generate(ctx context.Context, query string, sources []models.Source, history []models.HistoryMessage) (*Result, error)
}
