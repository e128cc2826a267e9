// internal/metrics/metrics.go
package metrics

import (
	"errors"

	xerrors "policy-service/internal/pkg/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// HTTP traffic by route template
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Lifecycle operations by outcome
	PolicyOperations *prometheus.CounterVec

	// Change feed
	EventsPublished  *prometheus.CounterVec
	WebsocketClients prometheus.Gauge

	// Redis publish breaker (0=closed, 1=half-open, 2=open)
	CircuitBreakerState prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Without a registerer the collectors go to a private registry nobody scrapes
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		HTTPRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "policy_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),

		HTTPDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "policy_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"method", "route"}),

		PolicyOperations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "policy_operations_total",
			Help: "Policy lifecycle operations by outcome.",
		}, []string{"operation", "outcome"}),

		EventsPublished: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "policy_events_published_total",
			Help: "Policy change events handed to the change feed.",
		}, []string{"type", "outcome"}),

		WebsocketClients: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "policy_websocket_clients",
			Help: "Currently connected WebSocket clients.",
		}),

		CircuitBreakerState: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "policy_events_breaker_state",
			Help: "State of the event publish circuit breaker (0=closed, 1=half-open, 2=open).",
		}),
	}
}

// ObserveOperation counts one lifecycle operation under its outcome label.
func (m *Metrics) ObserveOperation(operation string, err error) {
	m.PolicyOperations.WithLabelValues(operation, Outcome(err)).Inc()
}

// Outcome classifies err into a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, xerrors.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, xerrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, xerrors.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
