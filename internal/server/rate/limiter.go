// Package rate enforces the per (client IP, login) login throttle using
// Redis counters. The attempt counter and the block flag are two
// independent keys with independent TTLs: crossing the threshold blocks
// for a fresh full window starting at the crossing attempt.
package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport-level Redis failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Config holds rate limiter tuning parameters.
type Config struct {
	// BlockWindow is the TTL of both the attempt counter and the block
	// flag. The decision when a count crosses the budget belongs to the
	// caller.
	BlockWindow time.Duration
}

// Limiter counts login attempts per (IP, login) pair and flags blocked
// pairs. State lives entirely in Redis; losing it only loosens throttling.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{redis: redisClient, config: cfg}
}

func attemptKey(ip, login string) string {
	return fmt.Sprintf("auth:login_attempt:%s:%s", ip, login)
}

func blockKey(ip, login string) string {
	return fmt.Sprintf("auth:login_block:%s:%s", ip, login)
}

// IsBlocked reports whether the (IP, login) pair currently carries a block
// flag. Callers must reject before checking credentials when this is true.
func (l *Limiter) IsBlocked(ctx context.Context, ip, login string) (bool, error) {
	_, err := l.redis.Get(ctx, blockKey(ip, login)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return true, nil
}

// RecordAttempt increments the attempt counter for the pair and resets its
// TTL to the block window. Returns the counter value after the increment.
func (l *Limiter) RecordAttempt(ctx context.Context, ip, login string) (int64, error) {
	key := attemptKey(ip, login)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if err := l.redis.Expire(ctx, key, l.config.BlockWindow).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return count, nil
}

// SetBlock flags the pair as blocked for the whole block window,
// independent of the attempt counter's remaining TTL.
func (l *Limiter) SetBlock(ctx context.Context, ip, login string) error {
	if err := l.redis.Set(ctx, blockKey(ip, login), "_", l.config.BlockWindow).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
