package cache

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config configures a Cache at construction time. New starts from
// defaultConfig rather than the zero value: every limit unbounded, a 5s
// auto-trim interval, both purge-on-signal policies on, asynchronous
// release off the main thread.
type Config struct {
	// Name is a caller-supplied debug label. Defaults to a generated
	// UUID when left empty so log lines always carry something unique.
	Name string

	// CountLimit, CostLimit and AgeLimit are the three soft capacity
	// bounds. Zero means unbounded, matching New()'s documented default.
	CountLimit int64
	CostLimit  int64
	AgeLimit   time.Duration

	// AutoTrimInterval is the sweeper period. Defaults to 5s.
	AutoTrimInterval time.Duration

	// ReleaseOnMainThread routes evicted-value destruction through
	// MainThreadFunc instead of the release pool, for values with
	// thread affinity.
	ReleaseOnMainThread bool
	MainThreadFunc      func(func())

	// ReleaseAsynchronously dispatches destruction to the release pool
	// rather than running it inline at the release site. Defaults true.
	ReleaseAsynchronously bool

	// ShouldRemoveAllOnMemoryWarning / ShouldRemoveAllOnEnterBackground
	// gate whether OnMemoryWarning / OnEnterBackground call RemoveAll.
	// Both default true.
	ShouldRemoveAllOnMemoryWarning   bool
	ShouldRemoveAllOnEnterBackground bool

	// OnMemoryWarningCallback / OnEnterBackgroundCallback are invoked
	// outside the lock, before the conditional purge.
	OnMemoryWarningCallback   func()
	OnEnterBackgroundCallback func()

	// OnEvicted, if set, is invoked on the release path (outside the
	// lock, asynchronously unless ReleaseAsynchronously is false) for
	// every entry that leaves the cache, whatever the reason.
	OnEvicted func(key any, value any, reason EvictReason)

	// Logger receives trim/eviction/purge diagnostics. Defaults to a
	// no-op logger — a library must never force output on an importer.
	Logger zerolog.Logger

	// Metrics, if set, receives Prometheus instrumentation for hits,
	// misses, evictions, current size, and trim pass duration. Nil by
	// default — most embedders of a library don't want metrics forced
	// on them either.
	Metrics *Metrics
}

// EvictReason documents why an entry left the cache, passed to OnEvicted.
type EvictReason int

const (
	EvictReasonRemoved EvictReason = iota
	EvictReasonCountLimit
	EvictReasonCostLimit
	EvictReasonAgeLimit
	EvictReasonCleared
	EvictReasonPurged
)

func (r EvictReason) String() string {
	switch r {
	case EvictReasonRemoved:
		return "removed"
	case EvictReasonCountLimit:
		return "count_limit"
	case EvictReasonCostLimit:
		return "cost_limit"
	case EvictReasonAgeLimit:
		return "age_limit"
	case EvictReasonCleared:
		return "cleared"
	case EvictReasonPurged:
		return "purged"
	default:
		return "unknown"
	}
}

// Option mutates a Config. Mirrors the functional-options style used
// elsewhere in this codebase for configuring long-lived components.
type Option func(*Config)

func WithName(name string) Option {
	return func(c *Config) { c.Name = name }
}

func WithCountLimit(n int64) Option {
	return func(c *Config) { c.CountLimit = n }
}

func WithCostLimit(limit int64) Option {
	return func(c *Config) { c.CostLimit = limit }
}

func WithAgeLimit(d time.Duration) Option {
	return func(c *Config) { c.AgeLimit = d }
}

func WithAutoTrimInterval(d time.Duration) Option {
	return func(c *Config) { c.AutoTrimInterval = d }
}

func WithReleaseOnMainThread(fn func(func())) Option {
	return func(c *Config) {
		c.ReleaseOnMainThread = true
		c.MainThreadFunc = fn
	}
}

func WithSynchronousRelease() Option {
	return func(c *Config) { c.ReleaseAsynchronously = false }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

func WithOnEvicted(fn func(key any, value any, reason EvictReason)) Option {
	return func(c *Config) { c.OnEvicted = fn }
}

func WithPurgePolicy(onMemoryWarning, onEnterBackground bool) Option {
	return func(c *Config) {
		c.ShouldRemoveAllOnMemoryWarning = onMemoryWarning
		c.ShouldRemoveAllOnEnterBackground = onEnterBackground
	}
}

func WithMemoryWarningCallback(fn func()) Option {
	return func(c *Config) { c.OnMemoryWarningCallback = fn }
}

func WithEnterBackgroundCallback(fn func()) Option {
	return func(c *Config) { c.OnEnterBackgroundCallback = fn }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Config) { c.Metrics = m }
}

func defaultConfig() Config {
	return Config{
		Name:                             uuid.NewString(),
		AutoTrimInterval:                 5 * time.Second,
		ReleaseAsynchronously:            true,
		ShouldRemoveAllOnMemoryWarning:   true,
		ShouldRemoveAllOnEnterBackground: true,
		Logger:                           zerolog.Nop(),
	}
}

func buildConfig(opts ...Option) Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Name == "" {
		cfg.Name = uuid.NewString()
	}
	return cfg
}
