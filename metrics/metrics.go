package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "openfashion",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "openfashion",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "openfashion",
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Analysis jobs finished, by final status.",
		},
		[]string{"status"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "openfashion",
			Subsystem: "jobs",
			Name:      "run_duration_seconds",
			Help:      "Wall time of analysis job runs.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"status"},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "openfashion",
			Subsystem: "jobs",
			Name:      "queue_depth",
			Help:      "Analysis jobs waiting for a worker.",
		},
	)

	upstreamCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "openfashion",
			Subsystem: "upstream",
			Name:      "calls_total",
			Help:      "Calls to third-party APIs, by adapter and outcome.",
		},
		[]string{"adapter", "outcome"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		jobRuns,
		jobDuration,
		queueDepth,
		upstreamCalls,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func ObserveRequest(method, route, status string, d time.Duration) {
	httpRequests.WithLabelValues(method, route, status).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func ObserveJob(status string, d time.Duration) {
	jobRuns.WithLabelValues(status).Inc()
	jobDuration.WithLabelValues(status).Observe(d.Seconds())
}

func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// ObserveUpstream counts one third-party call. A nil err is recorded as "ok".
func ObserveUpstream(adapter string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	upstreamCalls.WithLabelValues(adapter, outcome).Inc()
}
