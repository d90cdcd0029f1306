// Package metrics exposes Prometheus collectors for the crawl service.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlJobsStartedTotal   prometheus.Counter
	crawlJobsCompletedTotal *prometheus.CounterVec
	crawlJobsRunning        prometheus.Gauge
	crawlPagesTotal         *prometheus.CounterVec
	crawlFetchRetriesTotal  prometheus.Counter
	crawlBreakerTripsTotal  *prometheus.CounterVec
	crawlFrontierDropsTotal prometheus.Counter
	crawlEventsTotal        *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlJobsStartedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawl_jobs_started_total",
				Help: "Total number of crawl jobs started.",
			},
		)

		crawlJobsCompletedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_jobs_completed_total",
				Help: "Total number of crawl jobs completed, labeled by terminal status.",
			},
			[]string{"status"},
		)

		crawlJobsRunning = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawl_jobs_running",
				Help: "Number of crawl jobs currently running.",
			},
		)

		crawlPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_pages_total",
				Help: "Total number of page fetches, labeled by status class.",
			},
			[]string{"class"},
		)

		crawlFetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawl_fetch_retries_total",
				Help: "Total number of fetch retry attempts.",
			},
		)

		crawlBreakerTripsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_breaker_trips_total",
				Help: "Total number of URLs skipped because a host breaker tripped.",
			},
			[]string{"host"},
		)

		crawlFrontierDropsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawl_frontier_drops_total",
				Help: "Total number of discovered URLs dropped because the frontier was full.",
			},
		)

		crawlEventsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_events_total",
				Help: "Total number of events appended to job logs, labeled by type.",
			},
			[]string{"type"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StatusClass buckets an HTTP status for the pages counter; 0 means a
// network-level failure.
func StatusClass(status int) string {
	switch {
	case status == 0:
		return "network_error"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// ObserveJobStarted increments the started counter and running gauge.
func ObserveJobStarted() {
	crawlJobsStartedTotal.Inc()
	crawlJobsRunning.Inc()
}

// ObserveJobCompleted records the terminal status and drops the gauge.
func ObserveJobCompleted(status string) {
	crawlJobsCompletedTotal.WithLabelValues(status).Inc()
	crawlJobsRunning.Dec()
}

// ObservePage increments the page counter for the fetch's status.
func ObservePage(status int) {
	crawlPagesTotal.WithLabelValues(StatusClass(status)).Inc()
}

// ObserveFetchRetry increments the retry counter.
func ObserveFetchRetry() {
	crawlFetchRetriesTotal.Inc()
}

// ObserveBreakerSkip records a URL skipped due to a tripped host.
func ObserveBreakerSkip(host string) {
	crawlBreakerTripsTotal.WithLabelValues(host).Inc()
}

// ObserveFrontierDrop records a discovery dropped at capacity.
func ObserveFrontierDrop() {
	crawlFrontierDropsTotal.Inc()
}

// ObserveEvent records an append to a job's event log.
func ObserveEvent(eventType string) {
	crawlEventsTotal.WithLabelValues(eventType).Inc()
}
