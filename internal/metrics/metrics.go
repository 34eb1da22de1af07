package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Core hit/miss counters, labelled by the resource prefix of the key
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_cache_hits_total",
			Help: "Total number of keyed cache hits",
		},
		[]string{"resource", "freshness"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_cache_misses_total",
			Help: "Total number of keyed cache misses",
		},
		[]string{"resource"},
	)

	CacheSets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_cache_sets_total",
			Help: "Total number of keyed cache writes",
		},
		[]string{"resource"},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_cache_errors_total",
			Help: "Total number of cache errors by level and kind",
		},
		[]string{"level", "kind"}, // kind: encode, decode, upstream
	)

	CacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sync_cache_entries",
		Help: "Number of entries tracked by the keyed cache",
	})

	CacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sync_cache_size_bytes",
		Help: "Approximate serialized size of the keyed cache",
	})

	// L1 capacity metrics only
	CacheCapacity = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sync_cache_capacity_bytes",
			Help: "L1 cache capacity in bytes",
		},
		[]string{"level"},
	)

	// Coalescing
	CoalescedCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_coalescer_calls_total",
			Help: "Coalescer calls split by whether the result was shared",
		},
		[]string{"resource", "shared"},
	)

	InFlightRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sync_coalescer_in_flight",
		Help: "Number of in-flight coalesced fetches",
	})

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_fetch_duration_seconds",
			Help:    "Duration of upstream fetches",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource"},
	)

	// SWR resources
	Revalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_revalidations_total",
			Help: "Total number of resource revalidations",
		},
		[]string{"resource", "trigger", "status"}, // trigger: stale, visibility, forced
	)

	// Notifications
	NotificationDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_notification_deliveries_total",
			Help: "Notifications spliced into a surface by transport",
		},
		[]string{"transport"}, // push, poll
	)

	NotificationRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_notification_rejections_total",
			Help: "Notifications not spliced into a surface",
		},
		[]string{"transport", "reason"}, // reason: hidden, duplicate, not_newer
	)

	MarkReadFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_mark_read_failures_total",
			Help: "Best-effort mark-read operations that failed",
		},
		[]string{"operation"},
	)

	PollTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_poll_ticks_total",
			Help: "Poll ticks of notification surfaces",
		},
		[]string{"status"},
	)

	ActiveSurfaces = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sync_active_surfaces",
			Help: "Mounted notification surfaces by transport",
		},
		[]string{"transport"},
	)
)

// RecordCacheHit records a cache hit
func RecordCacheHit(resource, freshness string) {
	CacheHits.WithLabelValues(resource, freshness).Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(resource string) {
	CacheMisses.WithLabelValues(resource).Inc()
}

// RecordCacheSet records a cache write
func RecordCacheSet(resource string) {
	CacheSets.WithLabelValues(resource).Inc()
}

// RecordCacheError records a cache error with level and kind
func RecordCacheError(level, kind string) {
	CacheErrors.WithLabelValues(level, kind).Inc()
}

// UpdateCacheUsage updates entry count and size gauges
func UpdateCacheUsage(entries int, size int64) {
	CacheEntries.Set(float64(entries))
	CacheSize.Set(float64(size))
}

// UpdateL1CacheCapacity updates L1 cache capacity metrics only
func UpdateL1CacheCapacity(capacity int64) {
	CacheCapacity.WithLabelValues("l1").Set(float64(capacity))
}

// RecordCoalescedCall records a coalescer call
func RecordCoalescedCall(resource string, shared bool) {
	label := "false"
	if shared {
		label = "true"
	}
	CoalescedCalls.WithLabelValues(resource, label).Inc()
}

// TimeFetch returns a timer function for measuring an upstream fetch
func TimeFetch(resource string) func() {
	timer := prometheus.NewTimer(FetchDuration.WithLabelValues(resource))
	return func() {
		timer.ObserveDuration()
	}
}

// RecordRevalidation records a revalidation outcome
func RecordRevalidation(resource, trigger string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	Revalidations.WithLabelValues(resource, trigger, status).Inc()
}

// RecordNotificationDelivery records a spliced notification
func RecordNotificationDelivery(transport string) {
	NotificationDeliveries.WithLabelValues(transport).Inc()
}

// RecordNotificationRejection records a notification that was not spliced
func RecordNotificationRejection(transport, reason string) {
	NotificationRejections.WithLabelValues(transport, reason).Inc()
}

// RecordMarkReadFailure records a swallowed mark-read failure
func RecordMarkReadFailure(operation string) {
	MarkReadFailures.WithLabelValues(operation).Inc()
}

// RecordPollTick records a poll tick outcome
func RecordPollTick(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	PollTicks.WithLabelValues(status).Inc()
}

// SurfaceMounted tracks a surface mounted with the given transport and returns its release func
func SurfaceMounted(transport string) func() {
	gauge := ActiveSurfaces.WithLabelValues(transport)
	gauge.Inc()
	return gauge.Dec
}
