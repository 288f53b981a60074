package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/paper-rag/models"
	"go.uber.org/zap"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return WrapDB(sqlDB, zap.NewNop()), mock
}

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[]", VectorLiteral(nil))
	assert.Equal(t, "[0.5]", VectorLiteral([]float32{0.5}))
	assert.Equal(t, "[0.1,-2,3.25]", VectorLiteral([]float32{0.1, -2, 3.25}))
}

func TestChunkRepository_Search(t *testing.T) {
	ctx := context.Background()
	functions := map[string]string{"openai": "match_chunks_openai"}

	t.Run("maps rows and nullable columns", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewChunkRepository(db, functions, zap.NewNop())

		rows := sqlmock.NewRows([]string{"paper_id", "section_title", "content", "similarity"}).
			AddRow("p1", "Introduction", "chunk one", 0.91).
			AddRow("p2", nil, "chunk two", nil)

		mock.ExpectQuery(regexp.QuoteMeta(`FROM "match_chunks_openai"($1::vector, $2)`)).
			WithArgs("[0.1,0.2]", 5).
			WillReturnRows(rows)

		chunks, err := repo.Search(ctx, []float32{0.1, 0.2}, 5, "openai")
		require.NoError(t, err)
		require.Len(t, chunks, 2)

		assert.Equal(t, "p1", chunks[0].PaperID)
		require.NotNil(t, chunks[0].SectionTitle)
		assert.Equal(t, "Introduction", *chunks[0].SectionTitle)
		require.NotNil(t, chunks[0].SimilarityScore)
		assert.InDelta(t, 0.91, *chunks[0].SimilarityScore, 1e-9)

		assert.Equal(t, "p2", chunks[1].PaperID)
		assert.Nil(t, chunks[1].SectionTitle)
		assert.Nil(t, chunks[1].SimilarityScore)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty result is not an error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewChunkRepository(db, functions, zap.NewNop())

		mock.ExpectQuery("match_chunks_openai").
			WillReturnRows(sqlmock.NewRows([]string{"paper_id", "section_title", "content", "similarity"}))

		chunks, err := repo.Search(ctx, []float32{1}, 3, "openai")
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("unknown model", func(t *testing.T) {
		db, _ := newMockDB(t)
		repo := NewChunkRepository(db, functions, zap.NewNop())

		_, err := repo.Search(ctx, []float32{1}, 3, "gemini")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "gemini")
	})

	t.Run("negative top_k is left to the search function", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewChunkRepository(db, functions, zap.NewNop())

		mock.ExpectQuery("match_chunks_openai").
			WithArgs("[0.1]", -1).
			WillReturnError(errors.New("LIMIT must not be negative"))

		assert.NotPanics(t, func() {
			_, err := repo.Search(ctx, []float32{0.1}, -1, "openai")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "LIMIT must not be negative")
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("huge top_k does not size the result", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewChunkRepository(db, functions, zap.NewNop())

		mock.ExpectQuery("match_chunks_openai").
			WillReturnRows(sqlmock.NewRows([]string{"paper_id", "section_title", "content", "similarity"}).
				AddRow("p1", "Methods", "chunk", 0.5))

		var chunks []models.RetrievedChunk
		assert.NotPanics(t, func() {
			var err error
			chunks, err = repo.Search(ctx, []float32{0.1}, 1<<40, "openai")
			require.NoError(t, err)
		})
		assert.Len(t, chunks, 1)
	})

	t.Run("query error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewChunkRepository(db, functions, zap.NewNop())

		mock.ExpectQuery("match_chunks_openai").WillReturnError(errors.New("function does not exist"))

		_, err := repo.Search(ctx, []float32{1}, 3, "openai")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "function does not exist")
	})
}

func TestPaperRepository_LookupTitles(t *testing.T) {
	ctx := context.Background()

	t.Run("returns found titles only", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPaperRepository(db, zap.NewNop())

		mock.ExpectQuery(regexp.QuoteMeta("FROM papers")).
			WithArgs(pq.Array([]string{"p1", "p2"})).
			WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow("p1", "Attention Is All You Need"))

		titles, err := repo.LookupTitles(ctx, []string{"p1", "p2"})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"p1": "Attention Is All You Need"}, titles)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no ids skips the query", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPaperRepository(db, zap.NewNop())

		titles, err := repo.LookupTitles(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, titles)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPaperRepository(db, zap.NewNop())

		mock.ExpectQuery("FROM papers").WillReturnError(sql.ErrConnDone)

		_, err := repo.LookupTitles(ctx, []string{"p1"})
		assert.ErrorIs(t, err, sql.ErrConnDone)
	})
}

func TestQueryLogRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("insert", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewQueryLogRepository(db, zap.NewNop())

		log := models.NewQueryLog("req-1", "1.2.3.4", models.ChatQuery{Query: "q", EmbeddingModel: "openai", TopK: 5})
		log.MarkCompleted(models.ChatMetrics{EmbedTimeMs: 10, SearchTimeMs: 20, GenerateTimeMs: 30, TotalTimeMs: 61, ChunksFound: 3})

		mock.ExpectExec("INSERT INTO query_logs").
			WithArgs(log.ID, "req-1", "1.2.3.4", "q", "openai", 5, 3,
				int64(10), int64(20), int64(30), int64(61),
				models.QueryStatusCompleted, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Insert(ctx, log))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewQueryLogRepository(db, zap.NewNop())

		mock.ExpectExec("INSERT INTO query_logs").WillReturnError(errors.New("disk full"))

		err := repo.Insert(ctx, models.NewQueryLog("r", "c", models.ChatQuery{}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert query log")
	})

	t.Run("list recent defaults the limit", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewQueryLogRepository(db, zap.NewNop())

		id := uuid.New()
		now := time.Now().UTC()
		rows := sqlmock.NewRows([]string{
			"id", "request_id", "client_key", "query", "embedding_model", "top_k", "chunks_found",
			"embed_time_ms", "search_time_ms", "generate_time_ms", "total_time_ms",
			"status", "error_message", "created_at",
		}).AddRow(id.String(), "req", "client", "q", "gemini", 5, 2, 1, 2, 3, 7, "failed", "Search error: boom", now)

		mock.ExpectQuery("FROM query_logs").WithArgs(50).WillReturnRows(rows)

		logs, err := repo.ListRecent(ctx, 0)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, id, logs[0].ID)
		assert.Equal(t, models.QueryStatusFailed, logs[0].Status)
		require.NotNil(t, logs[0].ErrorMessage)
		assert.Equal(t, "Search error: boom", *logs[0].ErrorMessage)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stats by model", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewQueryLogRepository(db, zap.NewNop())

		since := time.Now().Add(-time.Hour)
		rows := sqlmock.NewRows([]string{"embedding_model", "count", "e", "s", "g", "t", "c"}).
			AddRow("gemini", 4, 80.0, 40.0, 900.0, 1020.0, 4.5).
			AddRow("openai", 10, 120.0, 35.0, 1100.0, 1255.0, 5.0)

		mock.ExpectQuery("GROUP BY embedding_model").
			WithArgs(models.QueryStatusCompleted, since).
			WillReturnRows(rows)

		stats, err := repo.StatsByModel(ctx, since)
		require.NoError(t, err)
		require.Len(t, stats, 2)
		assert.Equal(t, "gemini", stats[0].EmbeddingModel)
		assert.Equal(t, 4, stats[0].Requests)
		assert.InDelta(t, 1255.0, stats[1].AvgTotalTimeMs, 1e-9)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDB_HealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer sqlDB.Close()

		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		db := WrapDB(sqlDB, zap.NewNop())
		assert.NoError(t, db.HealthCheck(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ping fails", func(t *testing.T) {
		sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer sqlDB.Close()

		mock.ExpectPing().WillReturnError(sql.ErrConnDone)

		db := WrapDB(sqlDB, zap.NewNop())
		err = db.HealthCheck(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database health check failed")
	})
}

func TestDB_InitSchema(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS query_logs").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, db.InitSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
