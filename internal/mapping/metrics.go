package mapping

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup outcome label values, bounded by design.
const (
	outcomeDirect             = "direct"
	outcomeScanned            = "scanned"
	outcomeNone               = "none"
	outcomeAmbiguous          = "ambiguous"
	outcomePreflightAmbiguous = "preflight_ambiguous"
)

// handlerLookupMetrics contains Prometheus metrics for handler lookups.
type handlerLookupMetrics struct {
	outcomes *prometheus.CounterVec
}

var (
	handlerLookupMetricsInstance *handlerLookupMetrics
	handlerLookupMetricsOnce     sync.Once
)

// lookupMetrics returns the singleton handler lookup metrics instance.
func lookupMetrics() *handlerLookupMetrics {
	handlerLookupMetricsOnce.Do(func() {
		handlerLookupMetricsInstance = &handlerLookupMetrics{
			outcomes: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "routemap",
					Subsystem: "mapping",
					Name:      "lookups_total",
					Help:      "Total number of handler lookups by outcome",
				},
				[]string{"outcome"},
			),
		}
	})
	return handlerLookupMetricsInstance
}
