package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution outcomes used as the "outcome" label.
const (
	OutcomeResolved    = "resolved"
	OutcomeDefault     = "default"
	OutcomeMainSite    = "main_site"
	OutcomeNotFound    = "not_found"
	OutcomeBlocked     = "blocked"
	OutcomeUnavailable = "unavailable"
)

// Metrics holds all Prometheus metrics for the clinic service.
type Metrics struct {
	TenantResolutions *prometheus.CounterVec
	TenantCacheHits   prometheus.Counter
	TenantCacheMisses prometheus.Counter
	TenantInvalidated prometheus.Counter
	DirectoryRetries  prometheus.Counter
	HTTPRequests      *prometheus.CounterVec
	AdminKeyCacheHits prometheus.Counter
	AdminKeyCacheMiss prometheus.Counter
	AuditEvents       *prometheus.CounterVec
}

// New initializes the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TenantResolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vetclinic",
			Subsystem: "tenant",
			Name:      "resolutions_total",
			Help:      "Total number of tenant resolutions by outcome.",
		}, []string{"outcome"}),
		TenantCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vetclinic",
			Subsystem: "tenant",
			Name:      "cache_hits_total",
			Help:      "Total number of tenant cache hits.",
		}),
		TenantCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vetclinic",
			Subsystem: "tenant",
			Name:      "cache_misses_total",
			Help:      "Total number of tenant cache misses.",
		}),
		TenantInvalidated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vetclinic",
			Subsystem: "tenant",
			Name:      "cache_invalidations_total",
			Help:      "Total number of tenant cache keys invalidated.",
		}),
		DirectoryRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vetclinic",
			Subsystem: "tenant",
			Name:      "directory_retries_total",
			Help:      "Total number of retried tenant directory lookups.",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vetclinic",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of handled HTTP requests by status code.",
		}, []string{"code"}),
		AdminKeyCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vetclinic",
			Subsystem: "admin",
			Name:      "key_cache_hits_total",
			Help:      "Total number of admin key cache hits.",
		}),
		AdminKeyCacheMiss: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vetclinic",
			Subsystem: "admin",
			Name:      "key_cache_misses_total",
			Help:      "Total number of admin key cache misses.",
		}),
		AuditEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vetclinic",
			Subsystem: "audit",
			Name:      "events_total",
			Help:      "Total number of audit events by status.",
		}, []string{"status"}), // status: buffered, error_buffer, sunk, dead_lettered
	}
}
