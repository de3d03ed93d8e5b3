// Package store exposes the shared-state primitives the rate-limit
// strategies run on: atomic counters with expiry, ordered sets, hashes
// and FIFO lists. The backing implementation is injected at
// construction time (Redis in production, an in-process store for
// single-node deployments and tests) so a failed network call never
// decides which store is in use.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNil is returned when a pop or get targets a missing value.
var ErrNil = errors.New("store: nil value")

// Member is one ordered-set entry with its score.
type Member struct {
	Member string
	Score  float64
}

type Store interface {
	// Incr atomically increments the integer at key and returns the
	// post-increment value, creating the key at 1.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire sets the key's time-to-live.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Ordered-set primitives (sliding window state).
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRemRangeByScore(ctx context.Context, key string, min, max float64) error
	ZCard(ctx context.Context, key string) (int64, error)
	ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]Member, error)

	// Hash primitives (token bucket state).
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, fields map[string]string) error

	// List primitives (leaky bucket queue).
	RPush(ctx context.Context, key string, value string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LPop(ctx context.Context, key string) (string, error)

	Del(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}
