package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prperemyshlev/wearable-sync/pkg/database"
	"github.com/redis/go-redis/v9"
)

// RateLimiter handles rate limiting using Redis
type RateLimiter struct {
	redis *database.Redis
	now   func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(redis *database.Redis) *RateLimiter {
	return &RateLimiter{redis: redis, now: time.Now}
}

// Allow checks whether another request under key fits in the sliding window.
// When it does not, retryAfter is the time until the oldest entry expires.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	now := r.now()
	windowStart := now.Add(-window)
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	pipe := r.redis.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart.UnixMilli()))
	count := pipe.ZCard(ctx, redisKey)
	oldest := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return false, 0, fmt.Errorf("failed to read rate limit window: %w", err)
	}

	if count.Val() >= int64(limit) {
		retryAfter := window
		if entries := oldest.Val(); len(entries) > 0 {
			retryAfter = time.UnixMilli(int64(entries[0].Score)).Add(window).Sub(now)
		}
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return false, retryAfter.Round(time.Second), nil
	}

	pipe = r.redis.Client.TxPipeline()
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	pipe.Expire(ctx, redisKey, window+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("failed to record request: %w", err)
	}

	return true, 0, nil
}
