// Package metrics exposes Prometheus collectors for the ledger, the HTTP
// surface and the event pipeline. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bartab"

type Metrics struct {
	registry *prometheus.Registry

	transactions  *prometheus.CounterVec
	chargedCents  prometheus.Counter
	splitRequests *prometheus.CounterVec
	ledgerErrors  *prometheus.CounterVec
	events        *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_recorded_total",
			Help:      "Transactions appended to the ledger, by pricing mode.",
		}, []string{"mode"}),
		chargedCents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charged_cents_total",
			Help:      "Sum of priced amounts at creation, in cents.",
		}),
		splitRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "split_requests_total",
			Help:      "Consumption requests by outcome (ok, partial, failed).",
		}, []string{"outcome"}),
		ledgerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_errors_total",
			Help:      "Failed ledger operations by operation and error kind.",
		}, []string{"operation", "kind"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Ledger events by type, stage (published, consumed) and result.",
		}, []string{"type", "stage", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.transactions, m.chargedCents, m.splitRequests, m.ledgerErrors,
		m.events, m.httpRequests, m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) TransactionRecorded(mode string, cents int64) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(mode).Inc()
	m.chargedCents.Add(float64(cents))
}

func (m *Metrics) SplitRequest(outcome string) {
	if m == nil {
		return
	}
	m.splitRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LedgerError(operation, kind string) {
	if m == nil {
		return
	}
	m.ledgerErrors.WithLabelValues(operation, kind).Inc()
}

func (m *Metrics) Event(eventType, stage string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.events.WithLabelValues(eventType, stage, result).Inc()
}

func (m *Metrics) HTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
