package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript performs an atomic refill-then-consume on the server side.
// Bucket state is a hash {tokens, last_refill_ms}; the key expires once the
// bucket would be full again, so idle clients cost nothing.
//
// KEYS[1] bucket key
// ARGV: now_ms, tokens_to_consume, capacity, refill_rate, refill_interval_ms
var consumeScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local consume = tonumber(ARGV[2])
local capacity = tonumber(ARGV[3])
local rate = tonumber(ARGV[4])
local interval = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last = tonumber(state[2])
if tokens == nil then
  tokens = capacity
  last = now
end

local intervals = math.floor((now - last) / interval)
local max_intervals = math.floor(capacity / rate) + 1
if intervals > max_intervals then
  intervals = max_intervals
end
if intervals > 0 then
  tokens = math.min(tokens + intervals * rate, capacity)
  last = last + intervals * interval
  if last > now then last = now end
end

tokens = tokens - consume
if tokens < -1 then
  tokens = -1
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last)
local ttl = math.ceil((capacity - tokens) / rate) * interval
if ttl < interval then ttl = interval end
redis.call('PEXPIRE', key, ttl)

return {tokens, last + interval}
`)

// RedisStore implements Store on a shared Redis instance, letting multiple
// gateway replicas enforce one combined limit per client.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix overrides the default "ratelimit:" key prefix.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(rs *RedisStore) {
		if prefix != "" {
			rs.keyPrefix = prefix
		}
	}
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: redis client is required", ErrInvalidConfig)
	}

	rs := &RedisStore{
		client:    client,
		keyPrefix: "ratelimit:",
	}
	for _, opt := range opts {
		opt(rs)
	}
	return rs, nil
}

// ConsumeTokens refills the bucket for key and consumes the requested tokens.
func (rs *RedisStore) ConsumeTokens(ctx context.Context, key string, tokens int, config Config) (remaining int, resetAt time.Time, err error) {
	now := time.Now()

	res, err := consumeScript.Run(ctx, rs.client, []string{rs.keyPrefix + key},
		now.UnixMilli(),
		tokens,
		config.Capacity,
		config.RefillRate,
		config.RefillInterval.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return 0, time.Time{}, errors.Join(ErrStoreUnavailable, err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("%w: unexpected script reply", ErrStoreUnavailable)
	}

	return int(res[0]), time.UnixMilli(res[1]), nil
}

// Reset removes all state for key.
func (rs *RedisStore) Reset(ctx context.Context, key string) error {
	if err := rs.client.Del(ctx, rs.keyPrefix+key).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
