// Package limiter implements multi-strategy admission control over a
// shared state store. Four algorithms share one contract so callers
// stay strategy-agnostic; a check never fails the gated operation: on
// store unavailability it degrades to an in-process fallback counter
// and on any other internal error it admits and records the error.
package limiter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/provisia/warden/internal/clock"
	"github.com/provisia/warden/internal/store"
)

// Strategy is the closed set of admission algorithms. Adding a strategy
// means extending the switch in Check; the compiler and the default
// branch keep misnamed strategies from dispatching silently.
type Strategy uint8

const (
	SlidingWindow Strategy = iota
	FixedWindow
	TokenBucket
	LeakyBucket
)

func (s Strategy) String() string {
	switch s {
	case SlidingWindow:
		return "sliding_window"
	case FixedWindow:
		return "fixed_window"
	case TokenBucket:
		return "token_bucket"
	case LeakyBucket:
		return "leaky_bucket"
	}
	return fmt.Sprintf("strategy(%d)", uint8(s))
}

// ParseStrategy maps the wire name back to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "sliding_window":
		return SlidingWindow, nil
	case "fixed_window":
		return FixedWindow, nil
	case "token_bucket":
		return TokenBucket, nil
	case "leaky_bucket":
		return LeakyBucket, nil
	}
	return 0, fmt.Errorf("unknown rate limit strategy %q", name)
}

// Config describes one gated action. Immutable once handed to Check;
// per-key state layout is strategy-specific, so one logical action must
// always check with the same strategy.
type Config struct {
	// Requests admitted per Window.
	Requests int64
	Window   time.Duration
	Strategy Strategy

	// KeyFunc overrides the state key derived from the identifier.
	KeyFunc func(identifier string) string

	// ErrorMessage is returned to callers when the check denies.
	ErrorMessage string
}

func (c Config) withDefaults() Config {
	if c.Requests <= 0 {
		c.Requests = 100
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	return c
}

func (c Config) key(identifier string) string {
	if c.KeyFunc != nil {
		return c.KeyFunc(identifier)
	}
	return fmt.Sprintf("ratelimit:%s:%s", c.Strategy, identifier)
}

// Result is the outcome of one admission check.
// Remaining is always within [0, Limit].
type Result struct {
	Allowed    bool           `json:"allowed"`
	Limit      int64          `json:"limit"`
	Remaining  int64          `json:"remaining"`
	ResetTime  int64          `json:"reset_time"`
	RetryAfter float64        `json:"retry_after,omitempty"`
	Strategy   Strategy       `json:"-"`
	Degraded   bool           `json:"degraded,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Limiter runs admission checks against the injected store.
type Limiter struct {
	store    store.Store
	clk      clock.Clock
	logger   *slog.Logger
	fallback *localFallback
}

func New(st store.Store, clk clock.Clock, logger *slog.Logger) *Limiter {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		store:    st,
		clk:      clk,
		logger:   logger,
		fallback: newLocalFallback(),
	}
}

// Check runs the admission check for identifier under cfg. It does not
// return an error: when the shared store is unreachable the check
// degrades to an isolated in-process fixed-window counter (flagged
// metadata.fallback), and any other internal failure admits with the
// error recorded in metadata. The gate is never the outage.
func (l *Limiter) Check(ctx context.Context, identifier string, cfg Config) Result {
	cfg = cfg.withDefaults()
	key := cfg.key(identifier)

	var (
		res Result
		err error
	)
	switch cfg.Strategy {
	case SlidingWindow:
		res, err = l.slidingWindow(ctx, key, cfg)
	case FixedWindow:
		res, err = l.fixedWindow(ctx, key, cfg)
	case TokenBucket:
		res, err = l.tokenBucket(ctx, key, cfg)
	case LeakyBucket:
		res, err = l.leakyBucket(ctx, key, cfg)
	default:
		l.logger.Error("rate limit check with unknown strategy",
			"strategy", cfg.Strategy.String(),
			"identifier", identifier,
		)
		return l.failOpen(cfg, fmt.Errorf("unknown strategy %s", cfg.Strategy))
	}
	if err != nil {
		// Store trouble. Keep admitting with per-instance accuracy
		// rather than turning the gate into an outage.
		l.logger.Warn("rate limit store unavailable, using local fallback",
			"strategy", cfg.Strategy.String(),
			"identifier", identifier,
			"error", err,
		)
		return l.fallback.allow(identifier, cfg, l.clk.Now())
	}

	res.Strategy = cfg.Strategy
	res.Limit = cfg.Requests
	res.Remaining = clampRemaining(res.Remaining, cfg.Requests)
	if res.Allowed {
		res.RetryAfter = 0
	}
	return res
}

func (l *Limiter) failOpen(cfg Config, err error) Result {
	now := l.clk.Now()
	return Result{
		Allowed:   true,
		Limit:     cfg.Requests,
		Remaining: cfg.Requests,
		ResetTime: now.Add(cfg.Window).Unix(),
		Strategy:  cfg.Strategy,
		Degraded:  true,
		Metadata:  map[string]any{"error": err.Error()},
	}
}

func clampRemaining(remaining, limit int64) int64 {
	if remaining < 0 {
		return 0
	}
	if remaining > limit {
		return limit
	}
	return remaining
}

func secondsOf(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
