package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"volt/internal/shared/config"
)

// RedisLimiter is a fixed-window counter shared across processes. The
// window bucket is part of the key, so counters expire on their own and
// no cleanup pass is needed.
type RedisLimiter struct {
	client *redis.Client
	groups map[string]config.RateLimitGroup
}

func NewRedisLimiter(client *redis.Client, groups map[string]config.RateLimitGroup) *RedisLimiter {
	return &RedisLimiter{client: client, groups: groups}
}

func (l *RedisLimiter) Allow(ctx context.Context, identity, group string) (Result, error) {
	g := groupOrDefault(l.groups, group)
	now := time.Now()
	bucket := now.Unix() / int64(g.WindowSeconds)
	key := l.key(identity, group, bucket)

	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, g.Window()+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limit pipeline: %w", err)
	}

	count := incr.Val()
	if count > int64(g.Limit) {
		windowEnd := time.Unix((bucket+1)*int64(g.WindowSeconds), 0)
		return Result{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: time.Until(windowEnd),
		}, nil
	}

	return Result{
		Allowed:   true,
		Remaining: g.Limit - int(count),
	}, nil
}

func (l *RedisLimiter) Reset(ctx context.Context, identity, group string) error {
	pattern := fmt.Sprintf("ratelimit:%s:%s:*", group, identity)

	iter := l.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := l.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan keys: %w", err)
	}
	return nil
}

func (l *RedisLimiter) key(identity, group string, bucket int64) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", group, identity, bucket)
}
