// Package metrics exposes Prometheus collectors fed from the event bus.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	eventbus "github.com/hanpama/gqlmux/internal/eventbus"
	events "github.com/hanpama/gqlmux/internal/events"
)

const namespace = "gqlmux"

type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	dispatches   *prometheus.CounterVec
	dispatchTime *prometheus.HistogramVec
	batchSize    prometheus.Histogram
	operations   *prometheus.CounterVec
	backendCalls *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by the GraphQL endpoint, by status code.",
		}, []string{"code"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Dispatched payloads, by mode and outcome.",
		}, []string{"mode", "outcome"}),
		dispatchTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time from dispatch start to executor return.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_operations",
			Help:      "Operations per multiplexed payload.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Operations executed, by GraphQL operation type and outcome.",
		}, []string{"type", "outcome"}),
		backendCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_calls_total",
			Help:      "Calls to execution backends, by gRPC status code.",
		}, []string{"code"}),
	}
	m.registry.MustRegister(
		m.httpRequests,
		m.dispatches,
		m.dispatchTime,
		m.batchSize,
		m.operations,
		m.backendCalls,
	)
	return m
}

// Attach subscribes the collectors to bus. The returned function detaches them.
func (m *Metrics) Attach(bus *eventbus.Bus) (detach func()) {
	unsubs := []func(){
		eventbus.Subscribe(bus, func(_ context.Context, e events.HTTPFinish) {
			m.httpRequests.WithLabelValues(strconv.Itoa(e.Status)).Inc()
		}),
		eventbus.Subscribe(bus, func(_ context.Context, e events.DispatchFinish) {
			m.dispatches.WithLabelValues(e.Mode, outcome(e.Err)).Inc()
			m.dispatchTime.WithLabelValues(e.Mode).Observe(e.Duration.Seconds())
			if e.Mode == events.ModeBatch {
				m.batchSize.Observe(float64(e.Operations))
			}
		}),
		eventbus.Subscribe(bus, func(_ context.Context, e events.OperationFinish) {
			typ := e.OperationType
			if typ == "" {
				typ = "unknown"
			}
			out := outcome(e.Err)
			if e.Err == nil && e.ErrorCount > 0 {
				out = "graphql_error"
			}
			m.operations.WithLabelValues(typ, out).Inc()
		}),
		eventbus.Subscribe(bus, func(_ context.Context, e events.GRPCClientFinish) {
			m.backendCalls.WithLabelValues(e.Code.String()).Inc()
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(m.registry, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
