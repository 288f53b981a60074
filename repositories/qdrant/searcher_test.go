package qdrant

import (
	"context"
	"errors"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeQuerier struct {
	hits    []*qdrant.ScoredPoint
	err     error
	request *qdrant.QueryPoints
}

func (f *fakeQuerier) Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	f.request = request
	return f.hits, f.err
}

func (f *fakeQuerier) HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error) {
	return &qdrant.HealthCheckReply{}, f.err
}

func (f *fakeQuerier) Close() error { return nil }

func TestSearcher_Search(t *testing.T) {
	collections := map[string]string{"openai": "chunks_openai"}

	t.Run("maps payload to chunks", func(t *testing.T) {
		fake := &fakeQuerier{hits: []*qdrant.ScoredPoint{
			{Score: 0.75, Payload: qdrant.NewValueMap(map[string]any{
				"paper_id": "p1", "section_title": "Results", "content": "accuracy improved",
			})},
			{Score: 0.5, Payload: qdrant.NewValueMap(map[string]any{
				"paper_id": "p2", "content": "no section here",
			})},
			{Score: 0.4, Payload: qdrant.NewValueMap(map[string]any{"content": "orphan"})},
		}}
		s := newSearcher(fake, collections, zap.NewNop())

		chunks, err := s.Search(context.Background(), []float32{0.1, 0.2}, 3, "openai")
		require.NoError(t, err)
		require.Len(t, chunks, 2)

		assert.Equal(t, "chunks_openai", fake.request.CollectionName)
		require.NotNil(t, fake.request.Limit)
		assert.Equal(t, uint64(3), *fake.request.Limit)

		assert.Equal(t, "p1", chunks[0].PaperID)
		require.NotNil(t, chunks[0].SectionTitle)
		assert.Equal(t, "Results", *chunks[0].SectionTitle)
		require.NotNil(t, chunks[0].SimilarityScore)
		assert.InDelta(t, 0.75, *chunks[0].SimilarityScore, 1e-6)
		assert.Nil(t, chunks[1].SectionTitle)
	})

	t.Run("zero top_k returns nothing", func(t *testing.T) {
		fake := &fakeQuerier{}
		s := newSearcher(fake, collections, zap.NewNop())

		chunks, err := s.Search(context.Background(), []float32{1}, 0, "openai")
		require.NoError(t, err)
		assert.Empty(t, chunks)
		assert.Nil(t, fake.request)
	})

	t.Run("unknown model", func(t *testing.T) {
		s := newSearcher(&fakeQuerier{}, collections, zap.NewNop())
		_, err := s.Search(context.Background(), []float32{1}, 3, "gemini")
		assert.Error(t, err)
	})

	t.Run("query error", func(t *testing.T) {
		s := newSearcher(&fakeQuerier{err: errors.New("unavailable")}, collections, zap.NewNop())
		_, err := s.Search(context.Background(), []float32{1}, 3, "openai")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unavailable")
	})
}

func TestSplitAddr(t *testing.T) {
	host, port, err := splitAddr("qdrant.internal:7000")
	require.NoError(t, err)
	assert.Equal(t, "qdrant.internal", host)
	assert.Equal(t, 7000, port)

	host, port, err = splitAddr("localhost")
	require.NoError(t, err)
	assert.Equal(t, "localhost", host)
	assert.Equal(t, defaultGRPCPort, port)

	_, _, err = splitAddr("localhost:abc")
	assert.Error(t, err)
}
