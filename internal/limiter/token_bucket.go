package limiter

import (
	"context"
	"math"
	"strconv"
)

// tokenBucket refills at limit tokens per window and starts full, so a
// cold identifier can burst up to the limit instantly. State is a hash
// of {tokens, last_refill}; corrupt state is treated as a fresh bucket
// rather than an error.
func (l *Limiter) tokenBucket(ctx context.Context, key string, cfg Config) (Result, error) {
	now := l.clk.Now()
	nowSec := secondsOf(now)
	windowSec := cfg.Window.Seconds()
	limit := float64(cfg.Requests)

	fields, err := l.store.HGetAll(ctx, key)
	if err != nil {
		return Result{}, err
	}

	tokens := limit
	lastRefill := nowSec
	if raw, ok := fields["tokens"]; ok {
		if t, perr := strconv.ParseFloat(raw, 64); perr == nil {
			tokens = t
			if raw, ok := fields["last_refill"]; ok {
				if lr, perr := strconv.ParseFloat(raw, 64); perr == nil {
					lastRefill = lr
				}
			}
		}
	}

	elapsed := nowSec - lastRefill
	if elapsed < 0 {
		elapsed = 0
	}
	tokens = math.Min(limit, tokens+elapsed/windowSec*limit)

	allowed := tokens >= 1
	var retryAfter float64
	if allowed {
		tokens--
	} else {
		// Time until one full token accrues.
		retryAfter = (1 - tokens) * windowSec / limit
	}

	if err := l.store.HSet(ctx, key, map[string]string{
		"tokens":      strconv.FormatFloat(tokens, 'f', -1, 64),
		"last_refill": strconv.FormatFloat(nowSec, 'f', -1, 64),
	}); err != nil {
		return Result{}, err
	}
	if err := l.store.Expire(ctx, key, 2*cfg.Window); err != nil {
		return Result{}, err
	}

	// Reset when the bucket would be full again.
	resetTime := int64(nowSec + (limit-tokens)*windowSec/limit)

	return Result{
		Allowed:    allowed,
		Remaining:  int64(math.Floor(tokens)),
		ResetTime:  resetTime,
		RetryAfter: retryAfter,
	}, nil
}
