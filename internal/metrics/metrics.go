// Package metrics holds the Prometheus collectors shared by the delivery layer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registry every collector below is registered on.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// HTTPRequests counts API requests by route pattern and status.
	HTTPRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	// CacheLookups counts read-through cache lookups by slot and outcome
	// (hit, miss, stale, empty).
	CacheLookups = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Read-through cache lookups by slot and outcome.",
	}, []string{"slot", "outcome"})

	// RetryAttempts counts failed attempts seen by the backoff executor.
	RetryAttempts = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Subsystem: "retry",
		Name:      "failed_attempts_total",
		Help:      "Failed attempts by failure category.",
	}, []string{"category", "retried"})

	// Uploads counts image ingestion results by storage medium.
	Uploads = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Subsystem: "upload",
		Name:      "results_total",
		Help:      "Image ingestion results by storage medium and status.",
	}, []string{"medium", "status"})

	// OfflineResponses counts edge responses by strategy and source.
	OfflineResponses = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Subsystem: "offline",
		Name:      "responses_total",
		Help:      "Edge cache responses by strategy and source.",
	}, []string{"strategy", "source"})

	// OfflineEvictions counts entries removed by the size ceiling.
	OfflineEvictions = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Subsystem: "offline",
		Name:      "evictions_total",
		Help:      "Entries evicted oldest-first per named cache.",
	}, []string{"cache"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
