package pathmatch

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// patternCacheMetrics contains Prometheus metrics for the compiled
// pattern cache.
type patternCacheMetrics struct {
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheEvictions prometheus.Counter
	cacheSize      prometheus.Gauge
}

var (
	patternCacheMetricsInstance *patternCacheMetrics
	patternCacheMetricsOnce     sync.Once
)

// getPatternCacheMetrics returns the singleton pattern cache metrics instance.
func getPatternCacheMetrics() *patternCacheMetrics {
	patternCacheMetricsOnce.Do(func() {
		patternCacheMetricsInstance = &patternCacheMetrics{
			cacheHits: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "routemap",
					Subsystem: "pathmatch",
					Name:      "pattern_cache_hits_total",
					Help:      "Total number of compiled pattern cache hits",
				},
			),
			cacheMisses: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "routemap",
					Subsystem: "pathmatch",
					Name:      "pattern_cache_misses_total",
					Help:      "Total number of compiled pattern cache misses",
				},
			),
			cacheEvictions: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "routemap",
					Subsystem: "pathmatch",
					Name:      "pattern_cache_evictions_total",
					Help:      "Total number of compiled pattern cache evictions",
				},
			),
			cacheSize: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "routemap",
					Subsystem: "pathmatch",
					Name:      "pattern_cache_size",
					Help:      "Current number of entries in the compiled pattern cache",
				},
			),
		}
	})
	return patternCacheMetricsInstance
}
