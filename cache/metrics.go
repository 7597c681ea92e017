package cache

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus collectors an importer can register against
// its own registry. The cache package never registers against the
// global registry itself — a library must not mutate global state on
// behalf of its caller.
type Metrics struct {
	Hits       prometheus.Counter
	Misses     prometheus.Counter
	Evictions  *prometheus.CounterVec // labeled by EvictReason.String()
	EntryCount prometheus.Gauge
	EntryCost  prometheus.Gauge
	TrimPassDuration prometheus.Histogram
}

// NewMetrics builds a Metrics set with the given namespace (commonly
// the cache's Name()). Collectors are unregistered until the caller
// registers them, following the CounterVec/Gauge/HistogramVec pattern
// used for this service's other instrumentation.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of Get calls that found a present key.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of Get calls that found no key.",
		}),
		Evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Total number of entries evicted, by reason.",
		}, []string{"reason"}),
		EntryCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Current number of cached entries.",
		}),
		EntryCost: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_cost",
			Help:      "Current aggregate cost of cached entries.",
		}),
		TrimPassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cache_trim_pass_duration_seconds",
			Help:      "Duration of a full cost/count/age trim pass.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Collectors returns every collector, ready for registry.MustRegister.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Hits, m.Misses, m.Evictions, m.EntryCount, m.EntryCost, m.TrimPassDuration,
	}
}
