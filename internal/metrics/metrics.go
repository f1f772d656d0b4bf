package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts HTTP requests by route, method and status.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// OperationsTotal counts money-moving operations by type and outcome.
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_operations_total",
			Help: "Total wallet operations",
		},
		[]string{"operation", "outcome"},
	)

	// FxCacheHits counts rate lookups served from the cache.
	FxCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fx_rate_cache_hits_total",
			Help: "Rate lookups answered from the TTL cache",
		},
	)
	// FxCacheMisses counts rate lookups that had to consult the provider.
	FxCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fx_rate_cache_misses_total",
			Help: "Rate lookups that missed the TTL cache",
		},
	)
	// FxFetchFailures counts failed outbound rate fetches.
	FxFetchFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fx_rate_fetch_failures_total",
			Help: "Outbound rate fetches that failed",
		},
	)
)

// Handler serves the /metrics endpoint.
var Handler = promhttp.Handler

var registerOnce sync.Once

// Init registers all collectors with the default registry.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestsTotal)
		prometheus.MustRegister(OperationsTotal)
		prometheus.MustRegister(FxCacheHits)
		prometheus.MustRegister(FxCacheMisses)
		prometheus.MustRegister(FxFetchFailures)
	})
}
