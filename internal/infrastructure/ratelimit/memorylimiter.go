package ratelimit

import (
	"context"
	"sync"
	"time"

	"volt/internal/shared/config"
)

// MemoryLimiter is a single-process fixed-window limiter used in
// development and tests, and as the fallback when no Redis is
// configured.
type MemoryLimiter struct {
	mu      sync.Mutex
	groups  map[string]config.RateLimitGroup
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	bucket int64
	count  int
}

func NewMemoryLimiter(groups map[string]config.RateLimitGroup) *MemoryLimiter {
	return &MemoryLimiter{
		groups:  groups,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, identity, group string) (Result, error) {
	g := groupOrDefault(l.groups, group)
	now := l.now()
	bucket := now.Unix() / int64(g.WindowSeconds)
	key := group + ":" + identity

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[key]
	if w == nil || w.bucket != bucket {
		w = &window{bucket: bucket}
		l.windows[key] = w
	}
	w.count++

	if w.count > g.Limit {
		windowEnd := time.Unix((bucket+1)*int64(g.WindowSeconds), 0)
		return Result{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: windowEnd.Sub(now),
		}, nil
	}

	return Result{
		Allowed:   true,
		Remaining: g.Limit - w.count,
	}, nil
}

func (l *MemoryLimiter) Reset(_ context.Context, identity, group string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, group+":"+identity)
	return nil
}
