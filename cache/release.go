package cache

import (
	"sync"

	"github.com/rs/zerolog"
)

// releasePool drops evicted values off whatever goroutine triggered
// the eviction. It is deliberately tiny: destruction of a cached value
// (closing a file, freeing a decoded image buffer) must never block a
// foreground Get/Put, but it also doesn't need a large worker fleet —
// one goroutine per logical executor is enough to get the work off the
// caller's stack.
type releasePool struct {
	jobs   chan func()
	done   chan struct{}
	wg     sync.WaitGroup
	logger zerolog.Logger
}

func newReleasePool(logger zerolog.Logger) *releasePool {
	p := &releasePool{
		jobs:   make(chan func(), 64),
		done:   make(chan struct{}),
		logger: logger.With().Str("subsystem", "release").Logger(),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

func (p *releasePool) run() {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobs:
			job()
		case <-p.done:
			// Drain whatever is already queued before exiting so a
			// Close() right after a big RemoveAll doesn't leak values.
			for {
				select {
				case job := <-p.jobs:
					job()
				default:
					return
				}
			}
		}
	}
}

// submit enqueues fn for asynchronous execution, or runs it inline if
// the pool has already been closed (best-effort — Close is meant to be
// called once, at shutdown).
func (p *releasePool) submit(fn func()) {
	select {
	case <-p.done:
		fn()
		return
	default:
	}
	select {
	case p.jobs <- fn:
	case <-p.done:
		fn()
	}
}

func (p *releasePool) close() {
	close(p.done)
	p.wg.Wait()
}

// release destroys a batch of evicted nodes according to cfg, without
// ever running the destructor under the cache lock.
func release[K comparable, V any](cfg *Config, pool *releasePool, nodes []*node[K, V], reason EvictReason) {
	if len(nodes) == 0 {
		return
	}
	run := func() {
		for _, n := range nodes {
			if cfg.OnEvicted != nil {
				cfg.OnEvicted(n.key, n.value, reason)
			}
		}
	}
	switch {
	case cfg.ReleaseOnMainThread && cfg.MainThreadFunc != nil:
		cfg.MainThreadFunc(run)
	case cfg.ReleaseAsynchronously:
		pool.submit(run)
	default:
		run()
	}
}
