package limiter

import (
	"context"
	"strconv"
	"time"
)

// slidingWindow keeps an ordered set of admission timestamps per key and
// admits while fewer than the limit fall inside the trailing window.
// Exactly limit admissions fit any trailing window interval, with no
// boundary burst.
func (l *Limiter) slidingWindow(ctx context.Context, key string, cfg Config) (Result, error) {
	now := l.clk.Now()
	nowSec := secondsOf(now)
	windowSec := cfg.Window.Seconds()

	if err := l.store.ZRemRangeByScore(ctx, key, 0, nowSec-windowSec); err != nil {
		return Result{}, err
	}
	count, err := l.store.ZCard(ctx, key)
	if err != nil {
		return Result{}, err
	}

	if count >= cfg.Requests {
		retryAfter := windowSec
		resetTime := now.Add(cfg.Window).Unix()
		oldest, err := l.store.ZRangeWithScores(ctx, key, 0, 0)
		if err != nil {
			return Result{}, err
		}
		if len(oldest) > 0 {
			retryAfter = oldest[0].Score + windowSec - nowSec
			if retryAfter < 0 {
				retryAfter = 0
			}
			resetTime = int64(oldest[0].Score + windowSec)
		}
		return Result{
			Allowed:    false,
			Remaining:  cfg.Requests - count,
			ResetTime:  resetTime,
			RetryAfter: retryAfter,
		}, nil
	}

	member := strconv.FormatInt(now.UnixNano(), 10)
	if err := l.store.ZAdd(ctx, key, nowSec, member); err != nil {
		return Result{}, err
	}
	if err := l.store.Expire(ctx, key, cfg.Window+time.Second); err != nil {
		return Result{}, err
	}

	return Result{
		Allowed:   true,
		Remaining: cfg.Requests - count - 1,
		ResetTime: now.Add(cfg.Window).Unix(),
	}, nil
}
