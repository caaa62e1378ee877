package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedctl_token_refresh_total",
			Help: "Credential refresh calls by outcome.",
		},
		[]string{"outcome"},
	)

	RefreshQueueWaiters = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feedctl_refresh_queue_waiters",
			Help: "Requests currently suspended behind an in-flight credential refresh.",
		},
	)

	RequestReplaysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedctl_request_replays_total",
			Help: "Requests replayed after a credential refresh, by outcome.",
		},
		[]string{"outcome"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedctl_http_requests_total",
			Help: "Outgoing REST calls by method and status class.",
		},
		[]string{"method", "status_class"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedctl_http_request_duration_seconds",
			Help:    "Latency of outgoing REST calls.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedctl_cache_lookups_total",
			Help: "Resource cache lookups by resource type and result (hit, miss, stale).",
		},
		[]string{"resource", "result"},
	)

	CacheInvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedctl_cache_invalidations_total",
			Help: "Cache entries invalidated, by resource type and source (local, remote).",
		},
		[]string{"resource", "source"},
	)

	OptimisticTogglesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedctl_optimistic_toggles_total",
			Help: "Optimistic like toggles by outcome (confirmed, rolled_back, rejected).",
		},
		[]string{"outcome"},
	)
)

// IncrementTokenRefresh counts one refresh attempt.
func IncrementTokenRefresh(outcome string) {
	TokenRefreshTotal.WithLabelValues(outcome).Inc()
}

// IncrementQueueWaiters / DecrementQueueWaiters track suspended requests.
func IncrementQueueWaiters() {
	RefreshQueueWaiters.Inc()
}

func DecrementQueueWaiters() {
	RefreshQueueWaiters.Dec()
}

// IncrementReplay counts one replayed request.
func IncrementReplay(outcome string) {
	RequestReplaysTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest records one outgoing call. status 0 means no response.
func ObserveHTTPRequest(method string, status int, elapsed time.Duration) {
	class := "error"
	if status > 0 {
		class = strconv.Itoa(status/100) + "xx"
	}
	HTTPRequestsTotal.WithLabelValues(method, class).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// IncrementCacheLookup counts one cache read.
func IncrementCacheLookup(resource, result string) {
	CacheLookupsTotal.WithLabelValues(resource, result).Inc()
}

// IncrementCacheInvalidation counts dropped entries.
func IncrementCacheInvalidation(resource, source string, n int) {
	if n <= 0 {
		return
	}
	CacheInvalidationsTotal.WithLabelValues(resource, source).Add(float64(n))
}

// IncrementOptimisticToggle counts one like toggle.
func IncrementOptimisticToggle(outcome string) {
	OptimisticTogglesTotal.WithLabelValues(outcome).Inc()
}
