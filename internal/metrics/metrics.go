// Package metrics exposes the sync core's Prometheus counters, histogram,
// and gauge in the idiom of the reference stack's metrics manager: a
// registry owned by one struct and metric families keyed by labels. The
// registry is exposed through Registry(); the scrape endpoint's handler is
// built by the HTTP layer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels a single push item's fate.
type Outcome string

const (
	OutcomeApplied         Outcome = "applied"
	OutcomeRejected        Outcome = "rejected"
	OutcomeStaleDiscarded  Outcome = "stale_discarded"
)

// Metrics holds every metric the sync core emits.
type Metrics struct {
	registry *prometheus.Registry

	pushTotal     *prometheus.CounterVec
	pullTotal     *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	openSyncTxns  prometheus.Gauge
}

// New builds a Metrics instance with a fresh registry and registers the Go
// runtime and process collectors alongside the sync-specific ones.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		pushTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sync_core",
			Name:      "push_items_total",
			Help:      "Pushed change items processed, by entity and outcome.",
		}, []string{"entity", "outcome"}),
		pullTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sync_core",
			Name:      "pull_records_total",
			Help:      "Records returned to clients by a pull, by entity.",
		}, []string{"entity"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sync_core",
			Name:      "sync_call_duration_seconds",
			Help:      "Duration of a full sync call (push + pull + commit).",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		openSyncTxns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sync_core",
			Name:      "open_sync_transactions",
			Help:      "Sync transactions currently open (begun, not yet committed or rolled back).",
		}),
	}

	registry.MustRegister(m.pushTotal, m.pullTotal, m.callDuration, m.openSyncTxns)
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return m
}

// RecordPush increments the push counter for one applied, rejected, or
// stale-discarded change.
func (m *Metrics) RecordPush(entity string, outcome Outcome) {
	m.pushTotal.WithLabelValues(entity, string(outcome)).Inc()
}

// RecordPull adds n records pulled for entity.
func (m *Metrics) RecordPull(entity string, n int) {
	if n <= 0 {
		return
	}
	m.pullTotal.WithLabelValues(entity).Add(float64(n))
}

// TxOpened and TxClosed track in-flight sync transactions.
func (m *Metrics) TxOpened() { m.openSyncTxns.Inc() }
func (m *Metrics) TxClosed() { m.openSyncTxns.Dec() }

// ObserveCallDuration records how long a full sync call took.
func (m *Metrics) ObserveCallDuration(result string, d time.Duration) {
	m.callDuration.WithLabelValues(result).Observe(d.Seconds())
}

// Registry exposes the underlying *prometheus.Registry for wiring into
// promhttp.HandlerFor in the HTTP layer.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
