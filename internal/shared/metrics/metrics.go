package metrics

import (
	"database/sql"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "moodfood"

// Registry holds every collector exposed on /metrics.
var Registry = prometheus.NewRegistry()

var (
	MoodDetections = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mood_detections_total",
			Help:      "Mood detections by winning strategy and mood",
		},
		[]string{"strategy", "mood"},
	)

	StrategyFailures = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mood_strategy_failures_total",
			Help:      "Detection strategies that produced no mood",
		},
		[]string{"strategy"},
	)

	ExternalCallDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "external_call_duration_seconds",
			Help:      "Latency of LLM calls by capability and outcome",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15},
		},
		[]string{"capability", "outcome"},
	)

	Recommendations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_total",
			Help:      "Recommendation requests by outcome",
		},
		[]string{"outcome"},
	)

	PersonalizationFallbacks = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "personalization_fallbacks_total",
			Help:      "Envelopes built with default reasons after a personalization failure",
		},
	)

	CatalogLoads = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_loads_total",
			Help:      "Catalog loads by outcome",
		},
		[]string{"outcome"},
	)

	CatalogFoods = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_foods",
			Help:      "Foods in the active catalog snapshot",
		},
	)

	HTTPRequestDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status class",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	RateLimited = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter by group",
		},
		[]string{"group"},
	)

	Panics = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_panics_total",
			Help:      "Handler panics recovered by route",
		},
		[]string{"route"},
	)

	CatalogSyncJobs = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_sync_jobs_total",
			Help:      "Queued catalog sync jobs by stage",
		},
		[]string{"stage"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ObserveExternalCall records the latency of one LLM call.
func ObserveExternalCall(capability string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ExternalCallDuration.WithLabelValues(capability, outcome).Observe(time.Since(start).Seconds())
}

// ObserveHTTP records one request against its route template and status class.
func ObserveHTTP(method, route string, status int, latency time.Duration) {
	class := "unknown"
	if status >= 100 && status < 600 {
		class = strconv.Itoa(status/100) + "xx"
	}
	HTTPRequestDuration.WithLabelValues(method, route, class).Observe(latency.Seconds())
}

// IncCatalogSync counts a sync job reaching stage: received, completed,
// failed or dropped.
func IncCatalogSync(stage string) {
	CatalogSyncJobs.WithLabelValues(stage).Inc()
}

var dbStatsOnce sync.Once

// RegisterDBStats exports connection pool statistics for the first pool
// opened by the process.
func RegisterDBStats(db *sql.DB) {
	if db == nil {
		return
	}
	dbStatsOnce.Do(func() {
		_ = Registry.Register(collectors.NewDBStatsCollector(db, namespace))
	})
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
}
