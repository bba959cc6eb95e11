// Package cache provides the ephemeral Redis projection of user records.
// It is never the source of truth: callers treat every failure as a miss
// and fall back to the user directory.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avolkov/authgate/internal/server/models"
)

// ErrRedisUnavailable wraps transport-level Redis failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// UserCache stores read-optimized user projections keyed by user id.
type UserCache struct {
	redis redis.UniversalClient
}

// NewUserCache creates a UserCache backed by the given Redis client.
func NewUserCache(redisClient redis.UniversalClient) *UserCache {
	return &UserCache{redis: redisClient}
}

func userKey(userID int64) string {
	return fmt.Sprintf("auth:user:%d", userID)
}

// GetUser returns the cached projection for userID, or (nil, nil) on a miss.
func (c *UserCache) GetUser(ctx context.Context, userID int64) (*models.CachedUser, error) {
	data, err := c.redis.Get(ctx, userKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	user := &models.CachedUser{}
	if err := json.Unmarshal(data, user); err != nil {
		// Corrupt blob behaves like a miss.
		return nil, nil
	}

	return user, nil
}

// SetUser stores the projection of user with the given TTL.
func (c *UserCache) SetUser(ctx context.Context, user *models.User, ttl time.Duration) error {
	data, err := json.Marshal(models.FromUser(user))
	if err != nil {
		return err
	}

	if err := c.redis.Set(ctx, userKey(user.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// DeleteUser drops the cached projection for userID.
func (c *UserCache) DeleteUser(ctx context.Context, userID int64) error {
	if err := c.redis.Del(ctx, userKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
