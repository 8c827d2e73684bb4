package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/agentboard/internal/logging"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisCallTimeout = 2 * time.Second

// RedisRateLimiter keeps one sorted set per author token, scored by event time in
// unix milliseconds, so several processes share the same quota.
type RedisRateLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisRateLimiter creates a Redis-backed limiter with the default quota.
func NewRedisRateLimiter(client *redis.Client, prefix string) *RedisRateLimiter {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "agentboard:ratelimit"
	}
	return &RedisRateLimiter{
		client: client,
		prefix: prefix,
		limit:  defaultMaxPerWindow,
		window: defaultRateWindow,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithLimit adjusts quota and window; non-positive values are ignored.
func (l *RedisRateLimiter) WithLimit(limit int, window time.Duration) *RedisRateLimiter {
	if limit > 0 {
		l.limit = limit
	}
	if window > 0 {
		l.window = window
	}
	return l
}

// WithClock replaces the time source.
func (l *RedisRateLimiter) WithClock(now func() time.Time) *RedisRateLimiter {
	if now != nil {
		l.now = now
	}
	return l
}

// Window returns the trailing window length.
func (l *RedisRateLimiter) Window() time.Duration {
	return l.window
}

// Allow returns true when the token is within quota.
// On Redis failures it fails closed and returns false.
func (l *RedisRateLimiter) Allow(ctx context.Context, authorToken string) bool {
	ctx, cancel := context.WithTimeout(ctx, redisCallTimeout)
	defer cancel()

	windowStart := l.now().Add(-l.window).UnixMilli()
	count, err := l.client.ZCount(ctx, l.key(authorToken), strconv.FormatInt(windowStart, 10), "+inf").Result()
	if err != nil {
		logging.FromContext(ctx).Error("redis rate limit check failed", "err", err)
		return false
	}
	return count < int64(l.limit)
}

// Record adds an event and trims members that fell out of the window.
func (l *RedisRateLimiter) Record(ctx context.Context, authorToken string) error {
	ctx, cancel := context.WithTimeout(ctx, redisCallTimeout)
	defer cancel()

	now := l.now()
	key := l.key(authorToken)
	windowStart := now.Add(-l.window).UnixMilli()

	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: uuid.NewString()})
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(windowStart, 10))
		pipe.PExpire(ctx, key, l.window)
		return nil
	})
	return err
}

func (l *RedisRateLimiter) key(authorToken string) string {
	return l.prefix + ":" + authorToken
}
