package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/provisia/warden/internal/clock"
)

// MemoryStore is the in-process Store implementation. It backs
// single-node deployments and tests, and implements the same expiry
// semantics as Redis against an injected clock.
type MemoryStore struct {
	clk clock.Clock

	mu      sync.Mutex
	entries map[string]*memEntry
}

type memEntry struct {
	expiresAt time.Time // zero means no expiry
	counter   int64
	zset      map[string]float64
	hash      map[string]string
	list      []string
}

func NewMemory(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.System{}
	}
	return &MemoryStore{
		clk:     clk,
		entries: make(map[string]*memEntry),
	}
}

// entry returns the live entry for key, evicting it first if expired.
// Callers must hold mu.
func (s *MemoryStore) entry(key string, create bool) *memEntry {
	e, ok := s.entries[key]
	if ok && !e.expiresAt.IsZero() && !s.clk.Now().Before(e.expiresAt) {
		delete(s.entries, key)
		ok = false
	}
	if !ok {
		if !create {
			return nil
		}
		e = &memEntry{}
		s.entries[key] = e
	}
	return e
}

func (s *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(key, true)
	e.counter++
	return e.counter, nil
}

func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.entry(key, false); e != nil {
		e.expiresAt = s.clk.Now().Add(ttl)
	}
	return nil
}

func (s *MemoryStore) ZAdd(_ context.Context, key string, score float64, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(key, true)
	if e.zset == nil {
		e.zset = make(map[string]float64)
	}
	e.zset[member] = score
	return nil
}

func (s *MemoryStore) ZRemRangeByScore(_ context.Context, key string, min, max float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(key, false)
	if e == nil {
		return nil
	}
	for member, score := range e.zset {
		if score >= min && score <= max {
			delete(e.zset, member)
		}
	}
	return nil
}

func (s *MemoryStore) ZCard(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(key, false)
	if e == nil {
		return 0, nil
	}
	return int64(len(e.zset)), nil
}

func (s *MemoryStore) ZRangeWithScores(_ context.Context, key string, start, stop int64) ([]Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(key, false)
	if e == nil || len(e.zset) == 0 {
		return nil, nil
	}

	members := make([]Member, 0, len(e.zset))
	for member, score := range e.zset {
		members = append(members, Member{Member: member, Score: score})
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score < members[j].Score
		}
		return members[i].Member < members[j].Member
	})

	n := int64(len(members))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return nil, nil
	}
	return members[start : stop+1], nil
}

func (s *MemoryStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(key, false)
	out := make(map[string]string)
	if e == nil {
		return out, nil
	}
	for k, v := range e.hash {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) HSet(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(key, true)
	if e.hash == nil {
		e.hash = make(map[string]string)
	}
	for k, v := range fields {
		e.hash[k] = v
	}
	return nil
}

func (s *MemoryStore) RPush(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(key, true)
	e.list = append(e.list, value)
	return nil
}

func (s *MemoryStore) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(key, false)
	if e == nil || len(e.list) == 0 {
		return nil, nil
	}
	n := int64(len(e.list))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, e.list[start:stop+1])
	return out, nil
}

func (s *MemoryStore) LPop(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(key, false)
	if e == nil || len(e.list) == 0 {
		return "", ErrNil
	}
	value := e.list[0]
	e.list = e.list[1:]
	return value, nil
}

func (s *MemoryStore) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
