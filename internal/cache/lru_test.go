package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLRUCacheEvictsOldest(t *testing.T) {
	c := NewLRUCache[string, int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a becomes most recent
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a = %d, %v", v, ok)
	}
	if s := c.Stats(); s.Evictions != 1 || s.Size != 2 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestLRUCacheTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string, string](10, time.Minute).WithClock(clock.Now)

	c.Set("k", "v")
	clock.Advance(30 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry expired too early")
	}
	clock.Advance(31 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry should have expired")
	}

	c.Set("x", "1")
	c.Set("y", "2")
	clock.Advance(2 * time.Minute)
	m := NewManager(nil)
	m.Register(c)
	if n := m.CleanNow(); n != 2 {
		t.Fatalf("cleaned %d, want 2", n)
	}
	if c.Size() != 0 {
		t.Fatalf("size = %d", c.Size())
	}
}

type reportKey struct {
	project string
	asOf    string
}

func TestGetOrLoad(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[reportKey, int](10, time.Minute)
	var calls atomic.Int32

	load := func(context.Context) (int, error) {
		calls.Add(1)
		return 42, nil
	}
	key := reportKey{"A", "2025-01-31"}

	v, hit, err := c.GetOrLoad(ctx, key, load)
	if err != nil || v != 42 || hit {
		t.Fatalf("first load: %d %v %v", v, hit, err)
	}
	v, hit, err = c.GetOrLoad(ctx, key, load)
	if err != nil || v != 42 || !hit {
		t.Fatalf("second load: %d %v %v", v, hit, err)
	}
	if calls.Load() != 1 {
		t.Fatalf("load called %d times", calls.Load())
	}

	// A different as-of date is a different entry.
	if _, hit, _ := c.GetOrLoad(ctx, reportKey{"A", "2025-02-01"}, load); hit {
		t.Fatal("different key must miss")
	}

	boom := errors.New("boom")
	_, _, err = c.GetOrLoad(ctx, reportKey{"B", "x"}, func(context.Context) (int, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, ok := c.Get(reportKey{"B", "x"}); ok {
		t.Fatal("errors must not be cached")
	}
}

func TestPurge(t *testing.T) {
	c := NewLRUCache[int, int](5, time.Minute)
	for i := range 5 {
		c.Set(i, i)
	}
	c.Purge()
	if c.Size() != 0 {
		t.Fatalf("size after purge = %d", c.Size())
	}
	c.Set(1, 1)
	if v, ok := c.Get(1); !ok || v != 1 {
		t.Fatal("cache unusable after purge")
	}
}

func TestGetOrLoadCallerCancelDoesNotFailOthers(t *testing.T) {
	c := NewLRUCache[string, int](10, time.Minute)
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	load := func(ctx context.Context) (int, error) {
		calls.Add(1)
		close(started)
		select {
		case <-release:
			return 7, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrLoad(firstCtx, "k", load)
		firstErr <- err
	}()
	<-started

	type result struct {
		v   int
		err error
	}
	second := make(chan result, 1)
	go func() {
		v, _, err := c.GetOrLoad(context.Background(), "k", load)
		second <- result{v, err}
	}()

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller got %v, want context.Canceled", err)
	}

	close(release)
	got := <-second
	if got.err != nil || got.v != 7 {
		t.Fatalf("second caller got %d, %v", got.v, got.err)
	}
	if calls.Load() != 1 {
		t.Fatalf("load called %d times, want 1", calls.Load())
	}
	if v, ok := c.Get("k"); !ok || v != 7 {
		t.Fatal("shared load result should be cached")
	}
}
