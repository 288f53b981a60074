package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PaperRepository reads paper metadata
type PaperRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewPaperRepository creates a new paper repository
func NewPaperRepository(db *DB, logger *zap.Logger) *PaperRepository {
	return &PaperRepository{
		db:     db,
		logger: logger,
	}
}

// LookupTitles implements repositories.TitleLookup with a single ANY($1) query
func (r *PaperRepository) LookupTitles(ctx context.Context, paperIDs []string) (map[string]string, error) {
	titles := make(map[string]string, len(paperIDs))
	if len(paperIDs) == 0 {
		return titles, nil
	}

	query := `
		SELECT id::text, title
		FROM papers
		WHERE id::text = ANY($1)
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(paperIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to lookup paper titles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, fmt.Errorf("failed to scan paper title: %w", err)
		}
		titles[id] = title
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating paper titles: %w", err)
	}

	r.logger.Debug("paper titles resolved",
		zap.Int("requested", len(paperIDs)),
		zap.Int("found", len(titles)))

	return titles, nil
}
