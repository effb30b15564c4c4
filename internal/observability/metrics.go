// Package observability provides Prometheus metrics for the session core.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector. All recording methods are safe on a nil
// *Metrics so components can run without instrumentation in tests.
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	TradesTotal    *prometheus.CounterVec
	TickFailures   *prometheus.CounterVec
	SessionStarts  *prometheus.CounterVec
	Balance        prometheus.Gauge
	LockedBalance  prometheus.Gauge
	ScorerAccuracy prometheus.Gauge

	// Pricing metrics
	PriceResolutions *prometheus.CounterVec
	PriceCacheHits   prometheus.Counter
	UpstreamLatency  *prometheus.HistogramVec

	// Persistence metrics
	SnapshotOps *prometheus.CounterVec

	// Push metrics
	Viewers prometheus.Gauge
}

// NewMetrics creates a Metrics instance on its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "dexpilot"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		TradesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "trades_total",
			Help:      "Trades appended to the session log by mode and outcome",
		}, []string{"mode", "outcome"}),
		TickFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "tick_failures_total",
			Help:      "Skipped trade-generation ticks by reason",
		}, []string{"reason"}),
		SessionStarts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "starts_total",
			Help:      "Session starts by mode",
		}, []string{"mode"}),
		Balance: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "balance_usd",
			Help:      "Current session balance",
		}),
		LockedBalance: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "locked_balance_usd",
			Help:      "Current profit-locked balance",
		}),
		ScorerAccuracy: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scorer",
			Name:      "accuracy_ratio",
			Help:      "Rolling scorer accuracy",
		}),

		PriceResolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "resolutions_total",
			Help:      "Price lookups by source and result",
		}, []string{"source", "result"}),
		PriceCacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "cache_hits_total",
			Help:      "Price lookups served from cache",
		}),
		UpstreamLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "upstream_latency_seconds",
			Help:      "Latency of upstream price and quote calls",
			Buckets:   []float64{.025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"call"}),

		SnapshotOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "snapshot_ops_total",
			Help:      "Snapshot loads and saves by result",
		}, []string{"op", "result"}),

		Viewers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "viewers",
			Help:      "Connected push-channel viewers",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (tests, extra collectors).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveTrade(mode string, succeeded bool) {
	if m == nil {
		return
	}
	m.TradesTotal.WithLabelValues(mode, outcomeLabel(succeeded)).Inc()
}

func (m *Metrics) TickFailed(reason string) {
	if m == nil {
		return
	}
	m.TickFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) SessionStarted(mode string) {
	if m == nil {
		return
	}
	m.SessionStarts.WithLabelValues(mode).Inc()
}

func (m *Metrics) SetLedger(balance, locked float64) {
	if m == nil {
		return
	}
	m.Balance.Set(balance)
	m.LockedBalance.Set(locked)
}

func (m *Metrics) SetAccuracy(acc float64) {
	if m == nil {
		return
	}
	m.ScorerAccuracy.Set(acc)
}

func (m *Metrics) PriceResolved(source string, ok bool) {
	if m == nil {
		return
	}
	m.PriceResolutions.WithLabelValues(source, outcomeLabel(ok)).Inc()
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.PriceCacheHits.Inc()
}

func (m *Metrics) ObserveUpstream(call string, started time.Time) {
	if m == nil {
		return
	}
	m.UpstreamLatency.WithLabelValues(call).Observe(time.Since(started).Seconds())
}

func (m *Metrics) SnapshotOp(op string, err error) {
	if m == nil {
		return
	}
	m.SnapshotOps.WithLabelValues(op, outcomeLabel(err == nil)).Inc()
}

func (m *Metrics) ViewerConnected() {
	if m == nil {
		return
	}
	m.Viewers.Inc()
}

func (m *Metrics) ViewerDisconnected() {
	if m == nil {
		return
	}
	m.Viewers.Dec()
}

func outcomeLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
