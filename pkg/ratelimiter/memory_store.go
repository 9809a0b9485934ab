package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// bucketState holds the persisted state of one token bucket.
type bucketState struct {
	tokens     int
	lastRefill time.Time
	lastAccess time.Time // used by cleanup to identify stale buckets
}

// MemoryStore implements Store using an in-process map.
// Bucket state is per process and lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucketState

	cleanupInterval time.Duration
	staleAfter      time.Duration
	logger          *slog.Logger

	cancel  context.CancelFunc
	stopped chan struct{}
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets how often stale buckets are swept.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		ms.cleanupInterval = interval
	}
}

// WithStaleAfter sets how long an untouched bucket survives before cleanup.
func WithStaleAfter(d time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if d > 0 {
			ms.staleAfter = d
		}
	}
}

// WithMemoryStoreLogger sets the logger for internal operations.
func WithMemoryStoreLogger(logger *slog.Logger) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if logger != nil {
			ms.logger = logger
		}
	}
}

// NewMemoryStore creates a new in-memory store.
// Call Start (or Run under an errgroup) to begin background cleanup.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	ms := &MemoryStore{
		buckets:         make(map[string]*bucketState),
		cleanupInterval: 5 * time.Minute,
		staleAfter:      time.Hour,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(ms)
	}

	return ms
}

// ConsumeTokens refills the bucket for key and consumes the requested tokens.
func (ms *MemoryStore) ConsumeTokens(ctx context.Context, key string, tokens int, config Config) (remaining int, resetAt time.Time, err error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	b, exists := ms.buckets[key]
	if !exists {
		b = &bucketState{
			tokens:     config.Capacity,
			lastRefill: now,
		}
		ms.buckets[key] = b
	}

	// Cap the interval count so a long-idle bucket cannot overflow the math.
	elapsed := now.Sub(b.lastRefill)
	maxIntervals := int64(config.Capacity/config.RefillRate + 1)
	intervals := int(min(int64(elapsed/config.RefillInterval), maxIntervals))
	if intervals > 0 {
		b.tokens = min(b.tokens+intervals*config.RefillRate, config.Capacity)
		b.lastRefill = now
	}

	b.tokens -= tokens
	if b.tokens < -1 {
		// Denied requests report a negative balance but do not dig the
		// bucket deeper; otherwise a flood would delay recovery forever.
		b.tokens = -1
	}
	b.lastAccess = now

	return b.tokens, b.lastRefill.Add(config.RefillInterval), nil
}

// Reset removes all state for key.
func (ms *MemoryStore) Reset(ctx context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.buckets, key)
	return nil
}

// Len reports the current number of tracked buckets.
func (ms *MemoryStore) Len() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.buckets)
}

// Start runs the stale-bucket sweep until ctx is cancelled.
// Blocking; run it in a goroutine or via Run under an errgroup.
func (ms *MemoryStore) Start(ctx context.Context) error {
	ms.mu.Lock()
	if ms.cancel != nil {
		ms.mu.Unlock()
		return fmt.Errorf("memory store already started")
	}
	if ms.cleanupInterval <= 0 {
		ms.mu.Unlock()
		return fmt.Errorf("cleanup interval must be > 0, got %v", ms.cleanupInterval)
	}
	ctx, ms.cancel = context.WithCancel(ctx)
	ms.stopped = make(chan struct{})
	ms.mu.Unlock()

	defer close(ms.stopped)

	ms.logger.InfoContext(ctx, "rate limiter cleanup started",
		slog.Duration("cleanup_interval", ms.cleanupInterval))

	ticker := time.NewTicker(ms.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			ms.removeStale()
		}
	}
}

// Stop cancels the cleanup goroutine and waits for it to exit.
func (ms *MemoryStore) Stop() error {
	ms.mu.Lock()
	cancel, stopped := ms.cancel, ms.stopped
	ms.cancel = nil
	ms.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-stopped
	return nil
}

// Run provides errgroup compatibility: it starts the cleanup loop and stops
// it cleanly when the context is cancelled.
func (ms *MemoryStore) Run(ctx context.Context) func() error {
	return func() error {
		err := ms.Start(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
}

// removeStale deletes buckets untouched for longer than staleAfter,
// bounding memory for one-off client addresses.
func (ms *MemoryStore) removeStale() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, b := range ms.buckets {
		if now.Sub(b.lastAccess) > ms.staleAfter {
			delete(ms.buckets, key)
			removed++
		}
	}

	if removed > 0 {
		ms.logger.Debug("removed stale rate limit buckets", slog.Int("count", removed))
	}
}
