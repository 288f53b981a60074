package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type clientWindow struct {
	count   int
	resetAt time.Time
}

// MemoryStore keeps client windows in process memory. It only bounds a
// single instance; use RedisStore when several replicas share a limit.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*clientWindow
	now     func() time.Time
	logger  *zap.Logger
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*clientWindow),
		now:     time.Now,
		logger:  logger,
	}
}

// WithClock replaces the time source, used by tests
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

// CheckAndConsume implements Store
func (s *MemoryStore) CheckAndConsume(_ context.Context, clientKey string, limit int, window time.Duration) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[clientKey]
	if !ok || now.After(w.resetAt) {
		w = &clientWindow{count: 1, resetAt: now.Add(window)}
		s.windows[clientKey] = w
		return Result{Allowed: true, Remaining: limit - 1, ResetAt: w.resetAt}, nil
	}

	if w.count >= limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: w.resetAt}, nil
	}

	w.count++
	return Result{Allowed: true, Remaining: limit - w.count, ResetAt: w.resetAt}, nil
}

// Len returns the number of tracked clients
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// CleanupExpired removes windows that have already expired.
// An expired window is replaced on the client's next request anyway.
func (s *MemoryStore) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, w := range s.windows {
		if now.After(w.resetAt) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

// StartCleanupWorker starts a background worker to periodically drop expired windows
func (s *MemoryStore) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("started rate limit cleanup worker",
		zap.Duration("interval", interval))

	for {
		select {
		case <-ticker.C:
			if removed := s.CleanupExpired(); removed > 0 {
				s.logger.Debug("cleaned up expired rate limit windows",
					zap.Int("removed", removed))
			}
		case <-ctx.Done():
			s.logger.Info("stopping rate limit cleanup worker")
			return
		}
	}
}
