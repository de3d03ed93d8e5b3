package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/provisia/warden/internal/clock"
)

func TestMemoryCounterExpires(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	s := NewMemory(clk)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := s.Incr(ctx, "counter")
		if err != nil {
			t.Fatal(err)
		}
		if n != want {
			t.Fatalf("Incr = %d, want %d", n, want)
		}
	}

	if err := s.Expire(ctx, "counter", 10*time.Second); err != nil {
		t.Fatal(err)
	}
	clk.Advance(11 * time.Second)

	n, err := s.Incr(ctx, "counter")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("Incr after expiry = %d, want fresh counter at 1", n)
	}
}

func TestMemoryZSetOperations(t *testing.T) {
	t.Parallel()
	s := NewMemory(nil)
	ctx := context.Background()

	for i, member := range []string{"c", "a", "b"} {
		if err := s.ZAdd(ctx, "z", float64(3-i), member); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.ZCard(ctx, "z")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("ZCard = %d, want 3", n)
	}

	members, err := s.ZRangeWithScores(ctx, "z", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 || members[0].Member != "b" || members[0].Score != 1 {
		t.Fatalf("lowest member = %+v, want b at score 1", members)
	}

	if err := s.ZRemRangeByScore(ctx, "z", 0, 2); err != nil {
		t.Fatal(err)
	}
	n, _ = s.ZCard(ctx, "z")
	if n != 1 {
		t.Fatalf("ZCard after removal = %d, want 1", n)
	}
}

func TestMemoryListOperations(t *testing.T) {
	t.Parallel()
	s := NewMemory(nil)
	ctx := context.Background()

	if _, err := s.LPop(ctx, "q"); !errors.Is(err, ErrNil) {
		t.Fatalf("LPop on empty list: err = %v, want ErrNil", err)
	}

	for _, v := range []string{"1", "2", "3"} {
		if err := s.RPush(ctx, "q", v); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.LRange(ctx, "q", 0, -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0] != "1" || all[2] != "3" {
		t.Fatalf("LRange = %v, want [1 2 3]", all)
	}

	head, err := s.LPop(ctx, "q")
	if err != nil {
		t.Fatal(err)
	}
	if head != "1" {
		t.Fatalf("LPop = %q, want head of the queue", head)
	}
}

func TestMemoryHashOperations(t *testing.T) {
	t.Parallel()
	s := NewMemory(nil)
	ctx := context.Background()

	fields, err := s.HGetAll(ctx, "h")
	if err != nil {
		t.Fatal(err)
	}
	if len(fields) != 0 {
		t.Fatalf("HGetAll on missing key = %v, want empty", fields)
	}

	if err := s.HSet(ctx, "h", map[string]string{"tokens": "3", "last_refill": "0"}); err != nil {
		t.Fatal(err)
	}
	if err := s.HSet(ctx, "h", map[string]string{"tokens": "2"}); err != nil {
		t.Fatal(err)
	}

	fields, _ = s.HGetAll(ctx, "h")
	if fields["tokens"] != "2" || fields["last_refill"] != "0" {
		t.Fatalf("HGetAll = %v, want merged fields", fields)
	}
}

func TestMemoryDel(t *testing.T) {
	t.Parallel()
	s := NewMemory(nil)
	ctx := context.Background()

	if _, err := s.Incr(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := s.Del(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	n, _ := s.Incr(ctx, "k")
	if n != 1 {
		t.Fatalf("Incr after Del = %d, want 1", n)
	}
}
