package ratelimit

import (
	"context"
	"time"

	"volt/internal/shared/config"
)

// Result is the outcome of one admission check.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter admits or rejects a request for a client identity against a
// named budget group. Implementations must be safe for concurrent use.
type Limiter interface {
	Allow(ctx context.Context, identity, group string) (Result, error)
	Reset(ctx context.Context, identity, group string) error
}

// groupOrDefault resolves a named group from config, falling back to a
// permissive budget when the group was never configured.
func groupOrDefault(groups map[string]config.RateLimitGroup, name string) config.RateLimitGroup {
	if g, ok := groups[name]; ok && g.Limit > 0 && g.WindowSeconds > 0 {
		return g
	}
	return config.RateLimitGroup{Limit: 300, WindowSeconds: 60}
}
