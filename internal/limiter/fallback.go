package limiter

import (
	"fmt"
	"sync"
	"time"
)

// localFallback is the degraded path taken when the shared store is
// unreachable: an isolated fixed-window counter per (identifier,
// strategy) held in process memory. Accuracy drops to per-instance, but
// the gate keeps answering.
type localFallback struct {
	mu      sync.Mutex
	buckets map[string]*fallbackBucket
}

type fallbackBucket struct {
	windowStart int64
	count       int64
}

func newLocalFallback() *localFallback {
	return &localFallback{buckets: make(map[string]*fallbackBucket)}
}

func (f *localFallback) allow(identifier string, cfg Config, now time.Time) Result {
	windowSec := int64(cfg.Window.Seconds())
	if windowSec <= 0 {
		windowSec = 1
	}
	windowStart := (now.Unix() / windowSec) * windowSec
	key := fmt.Sprintf("%s:%s", identifier, cfg.Strategy)

	f.mu.Lock()
	b, ok := f.buckets[key]
	if !ok || b.windowStart != windowStart {
		b = &fallbackBucket{windowStart: windowStart}
		f.buckets[key] = b
	}
	b.count++
	count := b.count
	f.mu.Unlock()

	resetTime := windowStart + windowSec
	res := Result{
		Allowed:   count <= cfg.Requests,
		Limit:     cfg.Requests,
		Remaining: clampRemaining(cfg.Requests-count, cfg.Requests),
		ResetTime: resetTime,
		Strategy:  cfg.Strategy,
		Degraded:  true,
		Metadata:  map[string]any{"fallback": true},
	}
	if !res.Allowed {
		retryAfter := float64(resetTime - now.Unix())
		if retryAfter < 0 {
			retryAfter = 0
		}
		res.RetryAfter = retryAfter
	}
	return res
}
