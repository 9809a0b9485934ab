// Package ratelimiter provides token bucket rate limiting with pluggable
// storage backends.
//
// A bucket holds up to Capacity tokens and gains RefillRate tokens every
// RefillInterval. Each request consumes tokens; a request is allowed when the
// bucket does not go negative. This naturally absorbs bursts while holding
// the average rate.
//
// The MemoryStore backend keeps buckets per process; the RedisStore backend
// shares them across instances.
package ratelimiter

import (
	"context"
	"fmt"
	"time"
)

// Config defines token bucket parameters.
type Config struct {
	// Capacity is the maximum number of tokens the bucket can hold.
	Capacity int
	// RefillRate is the number of tokens added per RefillInterval.
	RefillRate int
	// RefillInterval is how often tokens are added.
	RefillInterval time.Duration
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	}
	if c.RefillRate <= 0 {
		return fmt.Errorf("%w: refill rate must be positive, got %d", ErrInvalidConfig, c.RefillRate)
	}
	if c.RefillInterval <= 0 {
		return fmt.Errorf("%w: refill interval must be positive, got %v", ErrInvalidConfig, c.RefillInterval)
	}
	return nil
}

// PerWindow is a convenience constructor for the common "N requests per
// window" shape: a bucket of n tokens fully replenished every window.
func PerWindow(n int, window time.Duration) Config {
	return Config{
		Capacity:       n,
		RefillRate:     n,
		RefillInterval: window,
	}
}

// Store persists bucket state. Implementations must be safe for concurrent
// use; ConsumeTokens is an atomic refill-then-consume.
type Store interface {
	// ConsumeTokens refills the bucket for key according to config, then
	// consumes the requested tokens. A negative remaining count means the
	// request must be denied; the bucket is not driven further negative by
	// denied requests beyond the single failed consume.
	ConsumeTokens(ctx context.Context, key string, tokens int, config Config) (remaining int, resetAt time.Time, err error)
	// Reset removes all state for key.
	Reset(ctx context.Context, key string) error
}

// Result reports the outcome of a rate limit check.
type Result struct {
	// Limit is the bucket capacity.
	Limit int
	// Remaining is the number of tokens left after this check.
	// Negative when the request was denied.
	Remaining int
	// ResetAt is when the next refill happens.
	ResetAt time.Time
}

// Allowed reports whether the request may proceed.
func (r *Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter returns how long the caller should wait before retrying.
// Zero for allowed requests.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed() {
		return 0
	}
	if d := time.Until(r.ResetAt); d > 0 {
		return d
	}
	return 0
}

// RateLimiter is the contract consumed by middleware and services.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
	AllowN(ctx context.Context, key string, n int) (*Result, error)
}

// Bucket implements RateLimiter over a Store.
type Bucket struct {
	store  Store
	config Config
}

// NewBucket creates a rate limiter with the given storage backend.
func NewBucket(store Store, config Config) (*Bucket, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Bucket{store: store, config: config}, nil
}

// Allow consumes a single token for key.
func (b *Bucket) Allow(ctx context.Context, key string) (*Result, error) {
	return b.AllowN(ctx, key, 1)
}

// AllowN consumes n tokens for key.
func (b *Bucket) AllowN(ctx context.Context, key string, n int) (*Result, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTokenCount, n)
	}

	remaining, resetAt, err := b.store.ConsumeTokens(ctx, key, n, b.config)
	if err != nil {
		return nil, err
	}

	return &Result{
		Limit:     b.config.Capacity,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Status reports the current bucket state without consuming tokens.
func (b *Bucket) Status(ctx context.Context, key string) (*Result, error) {
	remaining, resetAt, err := b.store.ConsumeTokens(ctx, key, 0, b.config)
	if err != nil {
		return nil, err
	}
	return &Result{
		Limit:     b.config.Capacity,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the bucket for key, an administrative override.
func (b *Bucket) Reset(ctx context.Context, key string) error {
	return b.store.Reset(ctx, key)
}
