package metrics

import (
	"net/http"
	"time"

	"github.com/layer-3/ledgerlink/core"
	"github.com/layer-3/ledgerlink/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus records operation and exchange call metrics
type Prometheus struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	opDuration *prometheus.HistogramVec
	calls      *prometheus.CounterVec
	callTime   *prometheus.HistogramVec
}

var _ ports.Metrics = (*Prometheus)(nil)

// NewPrometheus registers the ledgerlink collectors on a fresh registry
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledgerlink",
			Name:      "operations_total",
			Help:      "Orchestrator operations by outcome.",
		}, []string{"op", "outcome"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ledgerlink",
			Name:      "operation_duration_seconds",
			Help:      "Orchestrator operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledgerlink",
			Name:      "exchange_calls_total",
			Help:      "Exchange API calls by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		callTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ledgerlink",
			Name:      "exchange_call_duration_seconds",
			Help:      "Exchange API call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}

	p.registry.MustRegister(p.operations, p.opDuration, p.calls, p.callTime)
	return p
}

// ObserveOperation records an operation outcome; an empty kind means success
func (p *Prometheus) ObserveOperation(op string, kind core.ErrorKind, d time.Duration) {
	p.operations.WithLabelValues(op, outcome(kind)).Inc()
	p.opDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveExchangeCall records one exchange API round trip
func (p *Prometheus) ObserveExchangeCall(endpoint string, err error, d time.Duration) {
	p.calls.WithLabelValues(endpoint, outcome(core.KindOf(err))).Inc()
	p.callTime.WithLabelValues(endpoint).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func outcome(kind core.ErrorKind) string {
	if kind == "" {
		return "ok"
	}
	return string(kind)
}

// Nop discards all observations
type Nop struct{}

func (Nop) ObserveOperation(string, core.ErrorKind, time.Duration) {}
func (Nop) ObserveExchangeCall(string, error, time.Duration)       {}
