package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(reg prometheus.Registerer, service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})

	reg.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// CheckoutMetrics counts wizard transitions and placed orders. A nil receiver is a no-op.
type CheckoutMetrics struct {
	Transitions  *prometheus.CounterVec
	OrdersPlaced prometheus.Counter
	OrdersSaved  *prometheus.CounterVec
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "step_transitions_total",
		Help:      "Checkout step transitions by step and outcome.",
	}, []string{"step", "outcome"})
	placed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "orders_placed_total",
		Help:      "Orders accepted by the commerce backend.",
	})
	saved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "orders_persisted_total",
		Help:      "Placed orders written to the order ledger by result.",
	}, []string{"result"})

	reg.MustRegister(transitions, placed, saved)
	return &CheckoutMetrics{Transitions: transitions, OrdersPlaced: placed, OrdersSaved: saved}
}

func (m *CheckoutMetrics) ObserveTransition(step, outcome string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(step, outcome).Inc()
}

func (m *CheckoutMetrics) ObserveOrderPlaced() {
	if m == nil {
		return
	}
	m.OrdersPlaced.Inc()
}

func (m *CheckoutMetrics) ObserveOrderSaved(result string) {
	if m == nil {
		return
	}
	m.OrdersSaved.WithLabelValues(result).Inc()
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
