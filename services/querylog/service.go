package querylog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/upb/paper-rag/models"
	"github.com/upb/paper-rag/repositories"
	"go.uber.org/zap"
)

var (
	// ErrNotStarted is returned when entries are enqueued before Start or after Stop
	ErrNotStarted = errors.New("query log service not started")

	// ErrBufferFull is returned when the entry is dropped because every slot is taken
	ErrBufferFull = errors.New("query log buffer full")
)

// Service persists query logs in the background so the chat response never waits on the write
type Service struct {
	repo        repositories.QueryLogRepository
	logger      *zap.Logger
	entries     chan *models.QueryLog
	workerCount int
	bufferSize  int
	redact      bool
	wg          sync.WaitGroup
	mu          sync.RWMutex
	started     bool
	stopped     bool
}

// Config holds configuration for the Service
type Config struct {
	BufferSize  int // Size of the entry buffer channel
	WorkerCount int // Number of concurrent writers
	// RedactQueries masks emails, phone numbers, card numbers and IPs in stored queries
	RedactQueries bool
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:    256,
		WorkerCount:   2,
		RedactQueries: true,
	}
}

// NewService creates a new query log Service
func NewService(repo repositories.QueryLogRepository, logger *zap.Logger, config Config) *Service {
	def := DefaultConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = def.BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = def.WorkerCount
	}

	return &Service{
		repo:        repo,
		logger:      logger,
		entries:     make(chan *models.QueryLog, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		redact:      config.RedactQueries,
	}
}

// Start starts the background workers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("query log service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started query log service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop stops accepting entries and waits for pending ones to be written
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.stopped = true
	pending := len(s.entries)
	close(s.entries)
	s.mu.Unlock()

	s.logger.Info("stopping query log service", zap.Int("pending_entries", pending))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("query log service stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("query log service stop timeout after %v", timeout)
	}
}

// Enqueue hands an entry to the workers without blocking.
// Entries are dropped, and ErrBufferFull returned, when the buffer is full.
func (s *Service) Enqueue(entry *models.QueryLog) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started || s.stopped {
		return ErrNotStarted
	}

	select {
	case s.entries <- entry:
		return nil
	default:
		s.logger.Warn("query log channel full, dropping entry",
			zap.String("request_id", entry.RequestID),
			zap.String("status", string(entry.Status)))
		return ErrBufferFull
	}
}

func (s *Service) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("query log worker started", zap.Int("worker_id", id))

	for entry := range s.entries {
		if err := s.write(entry); err != nil {
			s.logger.Error("failed to write query log",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("request_id", entry.RequestID))
		}
	}

	s.logger.Debug("query log worker stopped", zap.Int("worker_id", id))
}

func (s *Service) write(entry *models.QueryLog) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.redact {
		redacted := *entry
		redacted.Query = RedactQuery(entry.Query)
		entry = &redacted
	}
	return s.repo.Insert(ctx, entry)
}

// GetStats returns statistics about the service
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:     s.bufferSize,
		PendingEntries: len(s.entries),
		WorkerCount:    s.workerCount,
		Started:        s.started && !s.stopped,
	}
}

// Stats represents query log service statistics
type Stats struct {
	BufferSize     int
	PendingEntries int
	WorkerCount    int
	Started        bool
}
