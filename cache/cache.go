// Package cache implements an in-process, thread-safe LRU cache with
// three independent soft capacity bounds: entry count, aggregate cost,
// and entry age. Eviction order is strict recency of last read or
// write; the hot path (Contains/Get/Put/Remove) is O(1) and never
// blocks behind a trim pass.
package cache

import (
	"sync"
	"time"
)

// Cache maps K to V with LRU eviction. The zero value is not usable;
// construct with New. Safe for concurrent use by multiple goroutines.
type Cache[K comparable, V any] struct {
	mu  sync.Mutex
	cfg Config

	index *recencyIndex[K, V]
	clock clock

	pool      *releasePool
	scheduler *scheduler[K, V]

	trimQueue chan func()
	closeOnce sync.Once
	closed    chan struct{}
}

// New constructs a Cache with the given options applied over the
// documented defaults: every limit unbounded, a 5s auto-trim interval,
// both purge-on-signal policies enabled, asynchronous release off the
// main thread.
func New[K comparable, V any](opts ...Option) *Cache[K, V] {
	cfg := buildConfig(opts...)

	c := &Cache[K, V]{
		cfg:       cfg,
		index:     newRecencyIndex[K, V](),
		clock:     newClock(),
		pool:      newReleasePool(cfg.Logger),
		trimQueue: make(chan func(), 8),
		closed:    make(chan struct{}),
	}

	go runSerialQueue(c.trimQueue, c.closed)

	c.scheduler = newScheduler(c, cfg.AutoTrimInterval)
	c.scheduler.start()

	return c
}

// runSerialQueue drains background trim requests one at a time, so a
// trim pass can never race with itself — this is the "serial work
// queue" of spec.md §5. It receives the channels rather than the Cache,
// so the goroutine does not keep the Cache reachable.
func runSerialQueue(jobs <-chan func(), closed <-chan struct{}) {
	for {
		select {
		case job := <-jobs:
			job()
		case <-closed:
			return
		}
	}
}

func (c *Cache[K, V]) scheduleTrim(job func()) {
	select {
	case c.trimQueue <- job:
	default:
		// Queue already has a pending trim; another one landing on top
		// would just redo the same bound check. Drop it.
		c.cfg.Logger.Debug().Str("cache", c.cfg.Name).Msg("trim already queued, skipping")
	}
}

// Close stops the background scheduler and the serial trim queue, and
// waits for the release pool to drain. A closed Cache continues to
// serve Contains/Get/Put/Remove correctly; Close only tears down the
// background machinery, matching the sweeper's documented shutdown via
// non-owning reference (spec.md §4.3) but made deterministic for tests.
func (c *Cache[K, V]) Close() {
	c.closeOnce.Do(func() {
		c.scheduler.stop()
		close(c.closed)
		c.pool.close()
	})
}

// Contains reports whether key is present, without affecting recency
// order. A zero-value key for an interface-kind K that is nil returns
// false, matching spec.md's "null key returns false".
func (c *Cache[K, V]) Contains(key K) bool {
	if isNilKey(key) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.index.get(key)
	return ok
}

// Get returns the value for key and refreshes its recency, moving it
// to the head of the list and updating its timestamp. Absent key or a
// nil interface-kind key returns the zero value and false.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	if isNilKey(key) {
		var zero V
		return zero, false
	}

	c.mu.Lock()
	n, ok := c.index.get(key)
	if !ok {
		c.mu.Unlock()
		if c.cfg.Metrics != nil {
			c.cfg.Metrics.Misses.Inc()
		}
		var zero V
		return zero, false
	}
	n.touchedAt = c.clock.instant()
	c.index.bringToHead(n)
	val := n.value
	c.mu.Unlock()
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.Hits.Inc()
	}
	return val, true
}

// Put inserts or updates key with value and an optional cost (defaults
// to 0). A nil interface-kind key is a no-op. Replacing an existing
// entry updates totalCost by the cost delta, refreshes its timestamp,
// and moves it to the head.
//
// After the mutation, if totalCost exceeds CostLimit or totalCount
// exceeds CountLimit, eviction is triggered: count overflow pops
// exactly one tail node inline (a single Put can push count at most
// one over the limit, since insertion starts within limit — see
// DESIGN.md), cost overflow schedules an asynchronous trim pass.
func (c *Cache[K, V]) Put(key K, value V, cost ...int64) {
	if isNilKey(key) {
		return
	}
	var entryCost int64
	if len(cost) > 0 {
		entryCost = cost[0]
	}

	now := c.clock.instant()

	c.mu.Lock()
	if n, ok := c.index.get(key); ok {
		c.index.totalCost += entryCost - n.cost
		n.cost = entryCost
		n.value = value
		n.touchedAt = now
		c.index.bringToHead(n)
	} else {
		c.index.insertAtHead(&node[K, V]{key: key, value: value, cost: entryCost, touchedAt: now})
	}

	var evicted []*node[K, V]
	if c.cfg.CountLimit > 0 && c.index.totalCount > c.cfg.CountLimit {
		if n := c.index.popTail(); n != nil {
			evicted = append(evicted, n)
		}
	}
	costLimit := c.cfg.CostLimit
	needsCostTrim := costLimit > 0 && c.index.totalCost > costLimit
	count, totalCost := c.index.totalCount, c.index.totalCost
	c.mu.Unlock()

	if c.cfg.Metrics != nil {
		c.cfg.Metrics.EntryCount.Set(float64(count))
		c.cfg.Metrics.EntryCost.Set(float64(totalCost))
	}
	if len(evicted) > 0 {
		if c.cfg.Metrics != nil {
			c.cfg.Metrics.Evictions.WithLabelValues(EvictReasonCountLimit.String()).Add(float64(len(evicted)))
		}
		release(&c.cfg, c.pool, evicted, EvictReasonCountLimit)
	}
	if needsCostTrim {
		c.scheduleTrim(func() { c.TrimToCost(costLimit) })
	}
}

// Remove deletes key if present, handing its value to the release
// path. No-op if the key is absent.
func (c *Cache[K, V]) Remove(key K) {
	c.mu.Lock()
	n, ok := c.index.get(key)
	if !ok {
		c.mu.Unlock()
		return
	}
	c.index.remove(n)
	c.mu.Unlock()
	c.recordEviction([]*node[K, V]{n}, EvictReasonRemoved)
	release(&c.cfg, c.pool, []*node[K, V]{n}, EvictReasonRemoved)
}

// RemoveAll empties the cache, handing every entry to the release path.
func (c *Cache[K, V]) RemoveAll() {
	c.removeAll(EvictReasonCleared)
}

// removeAll detaches the whole list in O(1) under the lock, then walks
// and releases it after unlocking — spec.md §4.1's clear() is
// "O(1) + deferred": the caller owns the old index and chooses when
// its destructor runs, so a purge of a large cache never blocks a
// concurrent Get/Put/Remove for O(n).
func (c *Cache[K, V]) removeAll(reason EvictReason) {
	c.mu.Lock()
	old := c.index.clear()
	c.mu.Unlock()

	evicted := old.drain()
	c.recordEviction(evicted, reason)
	release(&c.cfg, c.pool, evicted, reason)
}

// TrimToCount evicts tail entries until totalCount <= n, using
// cooperative locking: the loop never holds the cache lock across an
// unbounded span. n == 0 is equivalent to RemoveAll.
func (c *Cache[K, V]) TrimToCount(n int64) {
	if n <= 0 {
		c.RemoveAll()
		return
	}
	c.cooperativeTrim(EvictReasonCountLimit, func() (*node[K, V], bool) {
		if c.index.totalCount <= n {
			return nil, false
		}
		return c.index.popTail(), true
	})
}

// TrimToCost evicts tail entries until totalCost <= limit. limit == 0
// is equivalent to RemoveAll.
func (c *Cache[K, V]) TrimToCost(limit int64) {
	if limit <= 0 {
		c.RemoveAll()
		return
	}
	c.cooperativeTrim(EvictReasonCostLimit, func() (*node[K, V], bool) {
		if c.index.totalCost <= limit {
			return nil, false
		}
		return c.index.popTail(), true
	})
}

// TrimToAge evicts tail entries older than maxAge. maxAge <= 0 is
// equivalent to RemoveAll (no positive age bound means everything is
// overaged).
func (c *Cache[K, V]) TrimToAge(maxAge time.Duration) {
	if maxAge <= 0 {
		c.RemoveAll()
		return
	}
	c.cooperativeTrim(EvictReasonAgeLimit, func() (*node[K, V], bool) {
		tail := c.index.tail.prev
		if tail == c.index.head {
			return nil, false
		}
		if c.clock.instant().Sub(tail.touchedAt) <= maxAge {
			return nil, false
		}
		return c.index.popTail(), true
	})
}

// cooperativeTrim implements spec.md §4.3's cooperative-locking trim
// loop: attempt a non-blocking lock, pop at most one node per
// acquisition, release, and repeat — so a long trim pass never starves
// a foreground Get/Put. Back off 10ms on contention. checkAndPop is
// called with the lock held and must perform exactly one bound check
// plus, at most, one pop.
func (c *Cache[K, V]) cooperativeTrim(reason EvictReason, checkAndPop func() (*node[K, V], bool)) {
	var holder []*node[K, V]
	for {
		if !c.mu.TryLock() {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		n, popped := checkAndPop()
		c.mu.Unlock()
		if !popped {
			break
		}
		holder = append(holder, n)
	}
	c.recordEviction(holder, reason)
	release(&c.cfg, c.pool, holder, reason)
}

// recordEviction updates Prometheus instrumentation, if configured,
// for a batch of evicted nodes and refreshes the size gauges.
func (c *Cache[K, V]) recordEviction(nodes []*node[K, V], reason EvictReason) {
	if c.cfg.Metrics == nil {
		return
	}
	if len(nodes) > 0 {
		c.cfg.Metrics.Evictions.WithLabelValues(reason.String()).Add(float64(len(nodes)))
	}
	c.cfg.Metrics.EntryCount.Set(float64(c.TotalCount()))
	c.cfg.Metrics.EntryCost.Set(float64(c.TotalCost()))
}

// TotalCount returns the current entry count. Lock-protected snapshot.
func (c *Cache[K, V]) TotalCount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index.totalCount
}

// TotalCost returns the current aggregate cost. Lock-protected snapshot.
func (c *Cache[K, V]) TotalCost() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index.totalCost
}

// CountLimit, CostLimit, AgeLimit and AutoTrimInterval are the mutable
// soft-bound configuration fields. Reads and writes are lock-protected.

func (c *Cache[K, V]) CountLimit() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.CountLimit
}

func (c *Cache[K, V]) SetCountLimit(n int64) {
	c.mu.Lock()
	c.cfg.CountLimit = n
	c.mu.Unlock()
}

func (c *Cache[K, V]) CostLimit() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.CostLimit
}

func (c *Cache[K, V]) SetCostLimit(limit int64) {
	c.mu.Lock()
	c.cfg.CostLimit = limit
	c.mu.Unlock()
}

func (c *Cache[K, V]) AgeLimit() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.AgeLimit
}

func (c *Cache[K, V]) SetAgeLimit(d time.Duration) {
	c.mu.Lock()
	c.cfg.AgeLimit = d
	c.mu.Unlock()
}

func (c *Cache[K, V]) AutoTrimInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.AutoTrimInterval
}

func (c *Cache[K, V]) SetAutoTrimInterval(d time.Duration) {
	c.mu.Lock()
	c.cfg.AutoTrimInterval = d
	c.mu.Unlock()
	c.scheduler.setInterval(d)
}

// ReleaseOnMainThread, ReleaseAsynchronously, the two purge-policy
// flags and the two notification callbacks round out spec.md §4.2's
// mutable configuration fields. Reads and writes are lock-protected,
// same as the soft-bound accessors above.

func (c *Cache[K, V]) ReleaseOnMainThread() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.ReleaseOnMainThread
}

// SetReleaseOnMainThread enables or disables main-thread release. fn is
// the dispatcher to use while enabled; pass nil when disabling.
func (c *Cache[K, V]) SetReleaseOnMainThread(enabled bool, fn func(func())) {
	c.mu.Lock()
	c.cfg.ReleaseOnMainThread = enabled
	c.cfg.MainThreadFunc = fn
	c.mu.Unlock()
}

func (c *Cache[K, V]) ReleaseAsynchronously() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.ReleaseAsynchronously
}

func (c *Cache[K, V]) SetReleaseAsynchronously(async bool) {
	c.mu.Lock()
	c.cfg.ReleaseAsynchronously = async
	c.mu.Unlock()
}

func (c *Cache[K, V]) ShouldRemoveAllOnMemoryWarning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.ShouldRemoveAllOnMemoryWarning
}

func (c *Cache[K, V]) SetShouldRemoveAllOnMemoryWarning(purge bool) {
	c.mu.Lock()
	c.cfg.ShouldRemoveAllOnMemoryWarning = purge
	c.mu.Unlock()
}

func (c *Cache[K, V]) ShouldRemoveAllOnEnterBackground() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.ShouldRemoveAllOnEnterBackground
}

func (c *Cache[K, V]) SetShouldRemoveAllOnEnterBackground(purge bool) {
	c.mu.Lock()
	c.cfg.ShouldRemoveAllOnEnterBackground = purge
	c.mu.Unlock()
}

func (c *Cache[K, V]) OnMemoryWarningCallback() func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.OnMemoryWarningCallback
}

func (c *Cache[K, V]) SetOnMemoryWarningCallback(fn func()) {
	c.mu.Lock()
	c.cfg.OnMemoryWarningCallback = fn
	c.mu.Unlock()
}

func (c *Cache[K, V]) OnEnterBackgroundCallback() func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.OnEnterBackgroundCallback
}

func (c *Cache[K, V]) SetOnEnterBackgroundCallback(fn func()) {
	c.mu.Lock()
	c.cfg.OnEnterBackgroundCallback = fn
	c.mu.Unlock()
}

// Name returns the caller-supplied debug label.
func (c *Cache[K, V]) Name() string {
	return c.cfg.Name
}

// OnMemoryWarning is the published entry point host code invokes when
// the platform reports low memory. It runs the configured callback (if
// any) outside the lock, then conditionally purges the cache.
func (c *Cache[K, V]) OnMemoryWarning() {
	c.mu.Lock()
	cb := c.cfg.OnMemoryWarningCallback
	purge := c.cfg.ShouldRemoveAllOnMemoryWarning
	c.mu.Unlock()

	if cb != nil {
		cb()
	}
	if purge {
		c.cfg.Logger.Warn().Str("cache", c.cfg.Name).Msg("memory warning: purging cache")
		c.removeAll(EvictReasonPurged)
	}
}

// OnEnterBackground is the published entry point host code invokes
// when the process is about to be suspended.
func (c *Cache[K, V]) OnEnterBackground() {
	c.mu.Lock()
	cb := c.cfg.OnEnterBackgroundCallback
	purge := c.cfg.ShouldRemoveAllOnEnterBackground
	c.mu.Unlock()

	if cb != nil {
		cb()
	}
	if purge {
		c.cfg.Logger.Warn().Str("cache", c.cfg.Name).Msg("entering background: purging cache")
		c.removeAll(EvictReasonPurged)
	}
}

// isNilKey reports whether key is a nil interface value. For concrete
// comparable K this is always false — there is nothing to guard, which
// is a strictly more permissive (and harmless) relaxation of spec.md's
// "null key" handling. See DESIGN.md.
func isNilKey[K comparable](key K) bool {
	var v any = key
	return v == nil
}
