package embedding

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var (
	// ErrEmbedderNotFound is returned when no embedder is registered for a model name
	ErrEmbedderNotFound = errors.New("embedder not found")

	// ErrEmbedderAlreadyRegistered is returned when trying to register a duplicate embedder
	ErrEmbedderAlreadyRegistered = errors.New("embedder already registered")

	// ErrEmptyEmbedding is returned when a provider answers without a vector
	ErrEmptyEmbedding = errors.New("provider returned no embedding")
)

// Result is a query vector plus the latency the embedder measured for the call
type Result struct {
	Vector    []float32
	LatencyMs int64
}

// Embedder turns text into a vector using a remote embedding service
type Embedder interface {
	// Name is the embedding model name clients select, e.g. "openai"
	Name() string

	// Embed embeds a single text
	Embed(ctx context.Context, text string) (*Result, error)
}

// Registry maps embedding model names to embedders
type Registry struct {
	mu        sync.RWMutex
	embedders map[string]Embedder
}

// NewRegistry creates an empty embedder registry
func NewRegistry() *Registry {
	return &Registry{
		embedders: make(map[string]Embedder),
	}
}

// Register adds an embedder under its name
func (r *Registry) Register(e Embedder) error {
	if e == nil {
		return errors.New("embedder cannot be nil")
	}

	name := e.Name()
	if name == "" {
		return errors.New("embedder name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.embedders[name]; exists {
		return ErrEmbedderAlreadyRegistered
	}
	r.embedders[name] = e
	return nil
}

// Get returns the embedder registered under name
func (r *Registry) Get(name string) (Embedder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.embedders[name]
	if !ok {
		return nil, ErrEmbedderNotFound
	}
	return e, nil
}

// Names returns the registered model names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.embedders))
	for name := range r.embedders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
