package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Scrape(t *testing.T) {
	m := New()

	m.WebhooksIngested.Inc()
	m.DeliveryAttempts.WithLabelValues(OutcomeSuccess).Inc()
	m.DeliveryAttempts.WithLabelValues(OutcomeFailedAttempt).Add(2)
	m.CacheErrors.WithLabelValues("set").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()

	assert.Contains(t, body, "hookline_webhooks_ingested_total 1")
	assert.Contains(t, body, `hookline_delivery_attempts_total{outcome="success"} 1`)
	assert.Contains(t, body, `hookline_delivery_attempts_total{outcome="failed_attempt"} 2`)
	assert.Contains(t, body, `hookline_subscription_cache_errors_total{op="set"} 1`)
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.WebhooksIngested.Inc()

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	for _, line := range strings.Split(rec.Body.String(), "\n") {
		if strings.HasPrefix(line, "hookline_webhooks_ingested_total") {
			assert.Equal(t, "hookline_webhooks_ingested_total 0", line)
		}
	}
}
