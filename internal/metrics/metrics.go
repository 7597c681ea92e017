// Package metrics wires the cache library's Prometheus collectors into
// a registry and exposes an HTTP handler for scraping, the way this
// codebase's other services expose their own /metrics endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/p-blackswan/boundedcache/cache"
)

// Metrics owns the registry the democache demo scrapes from.
type Metrics struct {
	registry *prometheus.Registry
	cache    *cache.Metrics
}

// New creates a registry and registers a fresh set of cache collectors
// under namespace.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	cm := cache.NewMetrics(namespace)
	for _, c := range cm.Collectors() {
		reg.MustRegister(c)
	}
	return &Metrics{registry: reg, cache: cm}
}

// CacheMetrics returns the collector set to pass to cache.WithMetrics.
func (m *Metrics) CacheMetrics() *cache.Metrics {
	return m.cache
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
