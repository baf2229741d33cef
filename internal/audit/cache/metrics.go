package cache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	cacheMetricsMu          sync.Mutex
	cacheMetricsInitialized bool

	cacheHitCounter          prometheus.Counter
	cacheMissCounter         prometheus.Counter
	cacheInvalidationCounter prometheus.Counter
	cacheMetricsError        error
)

// SetupCacheMetrics registers the page cache collectors once; later calls
// return the first result.
func SetupCacheMetrics(reg prometheus.Registerer) error {
	cacheMetricsMu.Lock()
	defer cacheMetricsMu.Unlock()
	if cacheMetricsInitialized {
		return cacheMetricsError
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	hits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "elimika_audit_cache_hits_total",
		Help: "Number of audit page cache hits.",
	})
	misses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "elimika_audit_cache_miss_total",
		Help: "Number of audit page cache misses.",
	})
	invalidations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "elimika_audit_cache_invalidations_total",
		Help: "Number of audit page cache generation bumps.",
	})

	collectors := []*prometheus.Counter{&hits, &misses, &invalidations}
	for _, collector := range collectors {
		if err := reg.Register(*collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				existing, ok := already.ExistingCollector.(prometheus.Counter)
				if !ok {
					cacheMetricsError = fmt.Errorf("audit cache metrics: unexpected collector type %T", already.ExistingCollector)
					continue
				}
				*collector = existing
				continue
			}
			cacheMetricsError = err
			cacheMetricsInitialized = true
			return cacheMetricsError
		}
	}
	cacheHitCounter, cacheMissCounter, cacheInvalidationCounter = hits, misses, invalidations
	cacheMetricsInitialized = true
	return cacheMetricsError
}

func recordCacheHit() {
	if cacheHitCounter != nil {
		cacheHitCounter.Inc()
	}
}

func recordCacheMiss() {
	if cacheMissCounter != nil {
		cacheMissCounter.Inc()
	}
}

func recordInvalidation() {
	if cacheInvalidationCounter != nil {
		cacheInvalidationCounter.Inc()
	}
}
