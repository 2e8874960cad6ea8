// Package metrics holds the Prometheus collectors of both binaries. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "payment"

// Reconcile outcomes.
const (
	OutcomeApplied       = "applied"
	OutcomeUnchanged     = "unchanged"
	OutcomeDuplicate     = "duplicate"
	OutcomeUnknownStatus = "unknown_status"
	OutcomeNotFound      = "not_found"
	OutcomeError         = "error"
)

// Publish results.
const (
	ResultSent    = "sent"
	ResultInvalid = "invalid"
	ResultFailed  = "failed"
)

type Metrics struct {
	registry *prometheus.Registry

	reconciliations *prometheus.CounterVec
	dropped         *prometheus.CounterVec
	published       *prometheus.CounterVec
	outbox          *prometheus.CounterVec
	simulated       *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, with Go runtime and
// process collectors alongside.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		reconciliations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Adapter responses processed, by outcome",
		}, []string{"outcome"}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Messages acknowledged without processing",
		}, []string{"reason"}),
		published: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_published_total",
			Help:      "Adapter request publish attempts, by result",
		}, []string{"result"}),
		outbox: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_relay_total",
			Help:      "Outbox entries handled by the relay, by result",
		}, []string{"result"}),
		simulated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulated_responses_total",
			Help:      "Responses emitted by the settlement simulator, by status and result",
		}, []string{"status", "result"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route and status",
		}, []string{"method", "route", "status"}),
		httpLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Reconciled(outcome string) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) Published(result string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(result).Inc()
}

func (m *Metrics) OutboxRelayed(result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.outbox.WithLabelValues(result).Add(float64(n))
}

func (m *Metrics) Simulated(status, result string) {
	if m == nil {
		return
	}
	m.simulated.WithLabelValues(status, result).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ReconciledCount reads the current value of one outcome counter.
func (m *Metrics) ReconciledCount(outcome string) float64 {
	if m == nil {
		return 0
	}
	return counterValue(m.reconciliations.WithLabelValues(outcome))
}

func (m *Metrics) PublishedCount(result string) float64 {
	if m == nil {
		return 0
	}
	return counterValue(m.published.WithLabelValues(result))
}
