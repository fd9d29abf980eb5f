package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the relay. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// RequestLatency tracks inbound HTTP latency by route, method and status
	RequestLatency *prometheus.HistogramVec
	// Rejections counts requests stopped by abuse control, by reason
	Rejections *prometheus.CounterVec
	// UpstreamRequests counts CRM calls by operation and result
	UpstreamRequests *prometheus.CounterVec
	// UpstreamLatency tracks CRM call latency by operation
	UpstreamLatency *prometheus.HistogramVec
	// CircuitState reports the CRM circuit breaker state (0 closed, 1 open, 2 half-open)
	CircuitState *prometheus.GaugeVec
	// TokenRefreshes counts refresh cycles by result
	TokenRefreshes *prometheus.CounterVec
	// TokenRefreshLastSuccess is the unix time of the last successful refresh
	TokenRefreshLastSuccess prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all collectors on a private registry
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Inbound HTTP request latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"route", "method", "status"},
		),
		Rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rejections_total",
				Help:      "Requests rejected by abuse control",
			},
			[]string{"reason"},
		),
		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Outbound CRM requests",
			},
			[]string{"operation", "result"},
		),
		UpstreamLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_request_duration_seconds",
				Help:      "Outbound CRM request latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),
		CircuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open)",
			},
			[]string{"name"},
		),
		TokenRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refresh_total",
				Help:      "Token refresh cycles",
			},
			[]string{"result"},
		),
		TokenRefreshLastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "token_refresh_last_success_timestamp_seconds",
				Help:      "Unix time of the last successful token refresh",
			},
		),
	}

	registry.MustRegister(
		m.RequestLatency,
		m.Rejections,
		m.UpstreamRequests,
		m.UpstreamLatency,
		m.CircuitState,
		m.TokenRefreshes,
		m.TokenRefreshLastSuccess,
	)

	return m
}

// Handler returns a Prometheus handler for these metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordRequest(route, method, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestLatency.WithLabelValues(route, method, status).Observe(duration.Seconds())
}

func (m *Metrics) RecordRejection(reason string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordUpstream(operation string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.UpstreamRequests.WithLabelValues(operation, result).Inc()
	m.UpstreamLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Metrics) SetCircuitState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitState.WithLabelValues(name).Set(float64(state))
}

func (m *Metrics) RecordTokenRefresh(success bool) {
	if m == nil {
		return
	}
	if success {
		m.TokenRefreshes.WithLabelValues("success").Inc()
		m.TokenRefreshLastSuccess.SetToCurrentTime()
		return
	}
	m.TokenRefreshes.WithLabelValues("failure").Inc()
}
