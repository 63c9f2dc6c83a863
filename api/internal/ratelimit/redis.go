package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "paperai:rl:"

// RedisLimiter is a fixed-window counter shared by every gateway replica.
type RedisLimiter struct {
	rdb    redis.Cmdable
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(rdb redis.Cmdable, limit int64, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: limit, window: window, now: time.Now}
}

func (l *RedisLimiter) Admit(ctx context.Context, key string) (Decision, error) {
	slot := l.now().UnixMilli() / l.window.Milliseconds()
	k := redisPrefix + key + ":" + strconv.FormatInt(slot, 10)

	n, err := l.rdb.Incr(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("redis incr: %w", err)
	}
	if n == 1 {
		if err := l.rdb.PExpire(ctx, k, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("redis pexpire: %w", err)
		}
	}
	if n <= l.limit {
		return Decision{Allowed: true}, nil
	}

	retry := l.window
	if ttl, err := l.rdb.PTTL(ctx, k).Result(); err == nil && ttl > 0 {
		retry = ttl
	}
	return Decision{Allowed: false, RetryAfter: retry}, nil
}
