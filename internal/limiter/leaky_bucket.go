package limiter

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/provisia/warden/internal/store"
)

// leakyBucket keeps a FIFO queue of admission timestamps with capacity
// equal to the limit. Entries older than the window are drained from
// the head on each check (the simulated leak); a full queue denies.
func (l *Limiter) leakyBucket(ctx context.Context, key string, cfg Config) (Result, error) {
	now := l.clk.Now()
	nowSec := secondsOf(now)
	windowSec := cfg.Window.Seconds()
	cutoff := nowSec - windowSec

	entries, err := l.store.LRange(ctx, key, 0, -1)
	if err != nil {
		return Result{}, err
	}

	leaked := 0
	for _, raw := range entries {
		ts, perr := strconv.ParseFloat(raw, 64)
		if perr == nil && ts > cutoff {
			break
		}
		// Leaked, or unreadable and dropped with it.
		if _, err := l.store.LPop(ctx, key); err != nil && !errors.Is(err, store.ErrNil) {
			return Result{}, err
		}
		leaked++
	}

	length := int64(len(entries) - leaked)
	if length >= cfg.Requests {
		retryAfter := windowSec
		if leaked < len(entries) {
			if head, perr := strconv.ParseFloat(entries[leaked], 64); perr == nil {
				retryAfter = head + windowSec - nowSec
				if retryAfter < 0 {
					retryAfter = 0
				}
			}
		}
		return Result{
			Allowed:    false,
			Remaining:  cfg.Requests - length,
			ResetTime:  int64(nowSec + retryAfter),
			RetryAfter: retryAfter,
		}, nil
	}

	if err := l.store.RPush(ctx, key, strconv.FormatFloat(nowSec, 'f', -1, 64)); err != nil {
		return Result{}, err
	}
	if err := l.store.Expire(ctx, key, cfg.Window+time.Second); err != nil {
		return Result{}, err
	}

	return Result{
		Allowed:   true,
		Remaining: cfg.Requests - length - 1,
		ResetTime: now.Add(cfg.Window).Unix(),
	}, nil
}
