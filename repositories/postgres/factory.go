package postgres

import (
	"context"

	"github.com/upb/paper-rag/config"
	"github.com/upb/paper-rag/repositories"
	"go.uber.org/zap"
)

// RepositoryFactory creates and manages the PostgreSQL repositories
type RepositoryFactory struct {
	db          *DB
	collections map[string]string
	logger      *zap.Logger
}

// NewRepositoryFactory opens the database and creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	return NewRepositoryFactoryWithDB(db, cfg.Datastore.Collections, logger), nil
}

// NewRepositoryFactoryWithDB creates a factory over an already opened pool
func NewRepositoryFactoryWithDB(db *DB, collections map[string]string, logger *zap.Logger) *RepositoryFactory {
	return &RepositoryFactory{
		db:          db,
		collections: collections,
		logger:      logger,
	}
}

// InitSchema initializes the tables this service owns
func (f *RepositoryFactory) InitSchema(ctx context.Context) error {
	return f.db.InitSchema(ctx)
}

// NewRepositories creates all repository instances
func (f *RepositoryFactory) NewRepositories() *repositories.Repositories {
	return &repositories.Repositories{
		Chunks:    NewChunkRepository(f.db, f.collections, f.logger),
		Titles:    NewPaperRepository(f.db, f.logger),
		QueryLogs: NewQueryLogRepository(f.db, f.logger),
	}
}

// GetDB returns the database connection
func (f *RepositoryFactory) GetDB() *DB {
	return f.db
}

// Close closes the database connection
func (f *RepositoryFactory) Close() error {
	return f.db.Close()
}
