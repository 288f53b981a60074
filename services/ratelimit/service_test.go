package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(clock *fakeClock) (*RateLimitService, *MemoryStore) {
	store := NewMemoryStore(zap.NewNop()).WithClock(clock.Now)
	return NewRateLimitService(store, Config{MaxRequests: 10, Window: time.Minute}, zap.NewNop()), store
}

func TestRateLimitService_AllowsUpToLimit(t *testing.T) {
	clock := newFakeClock()
	svc, _ := newTestService(clock)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		res, err := svc.CheckAndConsume(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d should be allowed", i)
		assert.Equal(t, 10-i, res.Remaining)
	}

	res, err := svc.CheckAndConsume(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
}

func TestRateLimitService_RejectionDoesNotExtendCount(t *testing.T) {
	clock := newFakeClock()
	svc, store := newTestService(clock)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		_, err := svc.CheckAndConsume(ctx, "client")
		require.NoError(t, err)
	}

	store.mu.Lock()
	count := store.windows["client"].count
	store.mu.Unlock()
	assert.Equal(t, 10, count)
}

func TestRateLimitService_WindowExpiry(t *testing.T) {
	clock := newFakeClock()
	svc, _ := newTestService(clock)
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		_, err := svc.CheckAndConsume(ctx, "client")
		require.NoError(t, err)
	}

	t.Run("still rejected exactly at reset time", func(t *testing.T) {
		clock.Advance(time.Minute)
		res, err := svc.CheckAndConsume(ctx, "client")
		require.NoError(t, err)
		assert.False(t, res.Allowed)
	})

	t.Run("fresh window after reset", func(t *testing.T) {
		clock.Advance(time.Millisecond)
		res, err := svc.CheckAndConsume(ctx, "client")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 9, res.Remaining)
		assert.Equal(t, clock.Now().Add(time.Minute), res.ResetAt)
	})
}

func TestRateLimitService_RemainingMonotonic(t *testing.T) {
	clock := newFakeClock()
	svc, _ := newTestService(clock)
	ctx := context.Background()

	last := svc.Limit()
	for i := 0; i < 25; i++ {
		clock.Advance(time.Second)
		res, err := svc.CheckAndConsume(ctx, "client")
		require.NoError(t, err)
		assert.LessOrEqual(t, res.Remaining, last)
		assert.GreaterOrEqual(t, res.Remaining, 0)
		last = res.Remaining
	}
}

func TestRateLimitService_BoundaryBurst(t *testing.T) {
	clock := newFakeClock()
	svc, _ := newTestService(clock)
	ctx := context.Background()

	clock.Advance(59 * time.Second)
	allowed := 0
	for i := 0; i < 10; i++ {
		res, _ := svc.CheckAndConsume(ctx, "client")
		if res.Allowed {
			allowed++
		}
	}

	// 20 requests land within 61 seconds across two windows
	clock.Advance(61 * time.Second)
	for i := 0; i < 10; i++ {
		res, _ := svc.CheckAndConsume(ctx, "client")
		if res.Allowed {
			allowed++
		}
	}

	assert.Equal(t, 20, allowed)
}

func TestRateLimitService_ClientsAreIndependent(t *testing.T) {
	clock := newFakeClock()
	svc, _ := newTestService(clock)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, _ = svc.CheckAndConsume(ctx, "a")
	}

	resA, _ := svc.CheckAndConsume(ctx, "a")
	resB, _ := svc.CheckAndConsume(ctx, "b")
	resUnknown, _ := svc.CheckAndConsume(ctx, "unknown")

	assert.False(t, resA.Allowed)
	assert.True(t, resB.Allowed)
	assert.True(t, resUnknown.Allowed)
}

func TestRateLimitService_ConcurrentSameClient(t *testing.T) {
	svc := NewRateLimitService(NewMemoryStore(zap.NewNop()), Config{MaxRequests: 10, Window: time.Hour}, zap.NewNop())
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.CheckAndConsume(ctx, "shared")
			if err == nil && res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, allowed)
}

func TestNewRateLimitService_Defaults(t *testing.T) {
	svc := NewRateLimitService(NewMemoryStore(zap.NewNop()), Config{}, zap.NewNop())

	assert.Equal(t, DefaultMaxRequests, svc.Limit())
	assert.Equal(t, DefaultWindow, svc.Window())
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CheckAndConsume(ctx context.Context, clientKey string, limit int, window time.Duration) (Result, error) {
	args := m.Called(ctx, clientKey, limit, window)
	return args.Get(0).(Result), args.Error(1)
}

func TestRateLimitService_StoreError(t *testing.T) {
	store := new(MockStore)
	store.On("CheckAndConsume", mock.Anything, "client", 10, time.Minute).
		Return(Result{}, errors.New("connection refused"))

	svc := NewRateLimitService(store, Config{MaxRequests: 10, Window: time.Minute}, zap.NewNop())

	_, err := svc.CheckAndConsume(context.Background(), "client")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	store.AssertExpectations(t)
}

func TestMemoryStore_CleanupExpired(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(zap.NewNop()).WithClock(clock.Now)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.CheckAndConsume(ctx, fmt.Sprintf("old-%d", i), 10, time.Minute)
		require.NoError(t, err)
	}
	clock.Advance(30 * time.Second)
	_, err := store.CheckAndConsume(ctx, "fresh", 10, time.Minute)
	require.NoError(t, err)

	clock.Advance(31 * time.Second)
	removed := store.CleanupExpired()

	assert.Equal(t, 5, removed)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_StartCleanupWorker(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(zap.NewNop()).WithClock(clock.Now)

	_, err := store.CheckAndConsume(context.Background(), "client", 10, time.Minute)
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.StartCleanupWorker(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup worker did not stop")
	}
}
