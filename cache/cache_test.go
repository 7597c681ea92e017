package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestBasicLRU(t *testing.T) {
	c := New[string, int](WithCountLimit(2), WithAutoTrimInterval(time.Hour))
	defer c.Close()

	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	if _, ok := c.Get("a"); ok {
		t.Fatal("expected 'a' evicted")
	}
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Fatalf("expected b=2, got %v %v", v, ok)
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Fatalf("expected c=3, got %v %v", v, ok)
	}
}

func TestAccessRefreshesRecency(t *testing.T) {
	c := New[string, int](WithCountLimit(2), WithAutoTrimInterval(time.Hour))
	defer c.Close()

	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a")
	c.Put("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("expected 'b' evicted, 'a' was refreshed")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a=1, got %v %v", v, ok)
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Fatalf("expected c=3, got %v %v", v, ok)
	}
}

func TestCostBound(t *testing.T) {
	c := New[string, string](WithCostLimit(10), WithAutoTrimInterval(20*time.Millisecond))
	defer c.Close()

	c.Put("x", "X", 6)
	c.Put("y", "Y", 6)

	waitFor(t, func() bool { return c.TotalCost() <= 10 })

	if _, ok := c.Get("x"); ok {
		t.Fatal("expected 'x' (older) evicted once the sweeper runs")
	}
}

func TestAgeBound(t *testing.T) {
	c := New[string, int](WithAgeLimit(100*time.Millisecond), WithAutoTrimInterval(20*time.Millisecond))
	defer c.Close()

	c.Put("k", 1)
	time.Sleep(200 * time.Millisecond)

	waitFor(t, func() bool { return !c.Contains("k") })
}

func TestReplaceUpdatesCost(t *testing.T) {
	c := New[string, string](WithAutoTrimInterval(time.Hour))
	defer c.Close()

	c.Put("k", "v1", 5)
	c.Put("k", "v2", 2)

	if got := c.TotalCost(); got != 2 {
		t.Fatalf("expected totalCost=2, got %d", got)
	}
	if got := c.TotalCount(); got != 1 {
		t.Fatalf("expected totalCount=1, got %d", got)
	}
	if v, ok := c.Get("k"); !ok || v != "v2" {
		t.Fatalf("expected k=v2, got %v %v", v, ok)
	}
}

func TestExternalPurgeOnMemoryWarning(t *testing.T) {
	c := New[string, int](WithAutoTrimInterval(time.Hour), WithPurgePolicy(true, true))
	defer c.Close()

	c.Put("a", 1)
	c.Put("b", 2)
	c.OnMemoryWarning()

	if got := c.TotalCount(); got != 0 {
		t.Fatalf("expected totalCount=0 after memory warning, got %d", got)
	}
}

func TestMemoryWarningRespectsPolicyFlag(t *testing.T) {
	c := New[string, int](WithAutoTrimInterval(time.Hour), WithPurgePolicy(false, false))
	defer c.Close()

	c.Put("a", 1)
	c.OnMemoryWarning()

	if got := c.TotalCount(); got != 1 {
		t.Fatalf("expected purge skipped, totalCount=1, got %d", got)
	}
}

func TestMemoryWarningCallbackRunsBeforePurge(t *testing.T) {
	var called bool
	var countAtCallback int64
	var c *Cache[string, int]
	c = New[string, int](
		WithAutoTrimInterval(time.Hour),
		WithMemoryWarningCallback(func() {
			called = true
			countAtCallback = c.TotalCount()
		}),
	)
	defer c.Close()

	c.Put("a", 1)
	c.OnMemoryWarning()

	if !called {
		t.Fatal("expected memory warning callback to run")
	}
	if countAtCallback != 1 {
		t.Fatalf("expected callback to run before the purge (totalCount=1), got %d", countAtCallback)
	}
	if got := c.TotalCount(); got != 0 {
		t.Fatalf("expected purge after callback, got totalCount=%d", got)
	}
}

func TestIdempotentRemove(t *testing.T) {
	c := New[string, int](WithAutoTrimInterval(time.Hour))
	defer c.Close()

	c.Put("a", 1)
	c.Remove("a")
	c.Remove("a") // must not panic or double-decrement aggregates

	if got := c.TotalCount(); got != 0 {
		t.Fatalf("expected totalCount=0, got %d", got)
	}
}

func TestContainsAndNullKey(t *testing.T) {
	c := New[string, int](WithAutoTrimInterval(time.Hour))
	defer c.Close()

	if c.Contains("missing") {
		t.Fatal("expected Contains to report false for an absent key")
	}
	c.Put("a", 1)
	if !c.Contains("a") {
		t.Fatal("expected Contains to report true for a present key")
	}

	nk := New[any, int](WithAutoTrimInterval(time.Hour))
	defer nk.Close()
	nk.Put(nil, 1)
	if nk.Contains(nil) {
		t.Fatal("expected Contains to report false for a nil key")
	}
	if got := nk.TotalCount(); got != 0 {
		t.Fatalf("expected Put with a nil key to be a no-op, totalCount=%d", got)
	}
}

func TestTrimToCountZeroClearsAll(t *testing.T) {
	c := New[string, int](WithAutoTrimInterval(time.Hour))
	defer c.Close()

	c.Put("a", 1)
	c.Put("b", 2)
	c.TrimToCount(0)

	if got := c.TotalCount(); got != 0 {
		t.Fatalf("expected totalCount=0, got %d", got)
	}
}

func TestTrimToCostRespectsLimit(t *testing.T) {
	c := New[string, int](WithAutoTrimInterval(time.Hour))
	defer c.Close()

	c.Put("a", 1, 4)
	c.Put("b", 2, 4)
	c.Put("c", 3, 4)

	c.TrimToCost(6)

	if got := c.TotalCost(); got > 6 {
		t.Fatalf("expected totalCost<=6, got %d", got)
	}
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected 'a' (oldest) trimmed first")
	}
}

func TestOnEvictedFires(t *testing.T) {
	var mu sync.Mutex
	var reasons []EvictReason
	c := New[string, int](
		WithCountLimit(1),
		WithAutoTrimInterval(time.Hour),
		WithSynchronousRelease(),
		WithOnEvicted(func(_ any, _ any, reason EvictReason) {
			mu.Lock()
			reasons = append(reasons, reason)
			mu.Unlock()
		}),
	)
	defer c.Close()

	c.Put("a", 1)
	c.Put("b", 2) // evicts "a" inline, count overflow

	mu.Lock()
	defer mu.Unlock()
	if len(reasons) != 1 || reasons[0] != EvictReasonCountLimit {
		t.Fatalf("expected one count_limit eviction, got %v", reasons)
	}
}

func TestConcurrentAccessPreservesInvariants(t *testing.T) {
	c := New[int, int](WithCountLimit(50), WithAutoTrimInterval(5*time.Millisecond))
	defer c.Close()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := (g*1000 + i) % 200
				switch i % 3 {
				case 0:
					c.Put(key, i, int64(i%5))
				case 1:
					c.Get(key)
				case 2:
					c.Remove(key)
				}
			}
		}(g)
	}
	wg.Wait()

	assertInvariants(t, c)
}

// assertInvariants checks the structural invariants of spec.md §8
// against the live index. Must only be called when no other goroutine
// is mutating the cache.
func assertInvariants[K comparable, V any](t *testing.T, c *Cache[K, V]) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	if int64(len(c.index.index)) != c.index.totalCount {
		t.Fatalf("index size %d != totalCount %d", len(c.index.index), c.index.totalCount)
	}

	var n int64
	var cost int64
	seen := make(map[K]bool)
	for cur := c.index.head.next; cur != c.index.tail; cur = cur.next {
		if seen[cur.key] {
			t.Fatalf("key %v appears twice in the list", cur.key)
		}
		seen[cur.key] = true
		n++
		cost += cur.cost
		if _, ok := c.index.index[cur.key]; !ok {
			t.Fatalf("list node for key %v missing from index", cur.key)
		}
	}
	if n != c.index.totalCount {
		t.Fatalf("list length %d != totalCount %d", n, c.index.totalCount)
	}
	if cost != c.index.totalCost {
		t.Fatalf("sum of costs %d != totalCost %d", cost, c.index.totalCost)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not satisfied before deadline")
}

func ExampleCache() {
	c := New[string, string](WithCountLimit(2))
	defer c.Close()

	c.Put("key", "value")
	v, ok := c.Get("key")
	fmt.Println(v, ok)
	// Output: value true
}
