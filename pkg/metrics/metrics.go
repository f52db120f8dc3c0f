package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values for DeliveryAttempts.
const (
	OutcomeSuccess       = "success"
	OutcomeFailedAttempt = "failed_attempt"
	OutcomeFailure       = "failure"
	OutcomeDropped       = "dropped"
)

// Metrics holds the service's prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	WebhooksIngested  prometheus.Counter
	DeliveryAttempts  *prometheus.CounterVec
	CacheErrors       *prometheus.CounterVec
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
	LogsPurged        prometheus.Counter
	QueueDepthPromote prometheus.Counter
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		WebhooksIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hookline_webhooks_ingested_total",
			Help: "Webhooks accepted by the ingest endpoint.",
		}),
		DeliveryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hookline_delivery_attempts_total",
			Help: "Delivery attempts by outcome.",
		}, []string{"outcome"}),
		CacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hookline_subscription_cache_errors_total",
			Help: "Subscription cache operation failures by operation.",
		}, []string{"op"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hookline_subscription_cache_hits_total",
			Help: "Subscription lookups served from cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hookline_subscription_cache_misses_total",
			Help: "Subscription lookups that fell through to the database.",
		}),
		LogsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hookline_delivery_logs_purged_total",
			Help: "Delivery log rows removed by the retention sweeper.",
		}),
		QueueDepthPromote: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hookline_queue_jobs_promoted_total",
			Help: "Delayed jobs promoted to the ready queue.",
		}),
	}

	registry.MustRegister(
		m.WebhooksIngested,
		m.DeliveryAttempts,
		m.CacheErrors,
		m.CacheHits,
		m.CacheMisses,
		m.LogsPurged,
		m.QueueDepthPromote,
	)

	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
