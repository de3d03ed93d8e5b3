package limiter

import (
	"context"
	"fmt"
)

// fixedWindow counts admissions in window-aligned buckets. The counter
// key embeds the window start, so a new window begins at a fresh
// counter; the TTL is set only on the first hit to avoid refreshing it
// on every request. The limit-th request is still admitted, the
// (limit+1)-th is not.
func (l *Limiter) fixedWindow(ctx context.Context, key string, cfg Config) (Result, error) {
	now := l.clk.Now()
	nowSec := secondsOf(now)
	windowSec := int64(cfg.Window.Seconds())
	if windowSec <= 0 {
		windowSec = 1
	}
	windowStart := (now.Unix() / windowSec) * windowSec
	bucketKey := fmt.Sprintf("%s:%d", key, windowStart)

	n, err := l.store.Incr(ctx, bucketKey)
	if err != nil {
		return Result{}, err
	}
	if n == 1 {
		if err := l.store.Expire(ctx, bucketKey, cfg.Window); err != nil {
			return Result{}, err
		}
	}

	resetTime := windowStart + windowSec
	if n > cfg.Requests {
		retryAfter := float64(resetTime) - nowSec
		if retryAfter < 0 {
			retryAfter = 0
		}
		return Result{
			Allowed:    false,
			Remaining:  cfg.Requests - n,
			ResetTime:  resetTime,
			RetryAfter: retryAfter,
		}, nil
	}

	return Result{
		Allowed:   true,
		Remaining: cfg.Requests - n,
		ResetTime: resetTime,
	}, nil
}
