package cache

import (
	"time"
	"weak"
)

// scheduler periodically enqueues a full trim pass onto a Cache's
// serial work queue. It holds only a weak reference to the cache
// (spec.md §4.3) so it never extends the cache's lifetime; when the
// cache becomes unreachable, the next tick observes a nil Value() and
// the goroutine exits without rescheduling.
type scheduler[K comparable, V any] struct {
	target   weak.Pointer[Cache[K, V]]
	interval chan time.Duration
	stopCh   chan struct{}
}

func newScheduler[K comparable, V any](c *Cache[K, V], interval time.Duration) *scheduler[K, V] {
	return &scheduler[K, V]{
		target:   weak.Make(c),
		interval: make(chan time.Duration, 1),
		stopCh:   make(chan struct{}),
	}
}

func (s *scheduler[K, V]) start() {
	go s.run()
}

func (s *scheduler[K, V]) stop() {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
}

func (s *scheduler[K, V]) setInterval(d time.Duration) {
	select {
	case s.interval <- d:
	default:
		// A reset is already pending; the latest write below wins by
		// draining first.
		select {
		case <-s.interval:
		default:
		}
		s.interval <- d
	}
}

// run fires a trim pass every interval until the cache is collected or
// Close is called. An interval change abandons the pending wait and
// starts a new one with the new period at once.
func (s *scheduler[K, V]) run() {
	c := s.target.Value()
	if c == nil {
		return
	}
	period := c.AutoTrimInterval()
	if period <= 0 {
		period = 0
	}

	for {
		timer := time.NewTimer(periodOrIdle(period))
		select {
		case <-s.stopCh:
			timer.Stop()
			return
		case newPeriod := <-s.interval:
			timer.Stop()
			period = newPeriod
			continue
		case <-timer.C:
		}

		c := s.target.Value()
		if c == nil {
			return
		}
		c.scheduleTrim(func() { c.runTrimPass() })
	}
}

// periodOrIdle returns a very long duration when period is zero, so a
// disabled sweeper still reacts promptly to Close or SetAutoTrimInterval
// without a busy loop.
func periodOrIdle(period time.Duration) time.Duration {
	if period <= 0 {
		return 24 * time.Hour
	}
	return period
}

// runTrimPass runs the three trim primitives in the order spec.md §4.3
// mandates: cost first (evicts the most expensive overruns), count
// second, age last (sweeps survivors that are merely stale).
func (c *Cache[K, V]) runTrimPass() {
	c.cfg.Logger.Debug().Str("cache", c.cfg.Name).Msg("trim pass starting")
	start := time.Now()
	if limit := c.CostLimit(); limit > 0 {
		c.TrimToCost(limit)
	}
	if limit := c.CountLimit(); limit > 0 {
		c.TrimToCount(limit)
	}
	if age := c.AgeLimit(); age > 0 {
		c.TrimToAge(age)
	}
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.TrimPassDuration.Observe(time.Since(start).Seconds())
	}
}
