// Package metrics exposes Prometheus collectors for the synchronization
// engine. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pushsync"

// Reconciliation results.
const (
	ResultOK        = "ok"
	ResultStale     = "stale"
	ResultExhausted = "exhausted"
	ResultRejected  = "rejected"
	ResultCancelled = "cancelled"
)

// Metrics holds the engine's collectors.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retries         *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	tokenFetches    *prometheus.CounterVec
	interests       *prometheus.GaugeVec
	state           *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
// Use prometheus.NewRegistry() in tests to avoid the global registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Device API requests, partitioned by operation and result.",
		}, []string{"operation", "result"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Device API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		retries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retries scheduled after a retryable failure.",
		}, []string{"operation"}),
		reconciliations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Interest reconciliations, partitioned by result.",
		}, []string{"result"}),
		tokenFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_fetches_total",
			Help:      "User token fetches, partitioned by result.",
		}, []string{"result"}),
		interests: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "interests",
			Help:      "Number of interests in the desired and confirmed sets.",
		}, []string{"set"}),
		state: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "instance_state",
			Help:      "1 for the current instance state, 0 for the others.",
		}, []string{"state"}),
	}
}

// ObserveRequest records one device API call.
func (m *Metrics) ObserveRequest(op, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, result).Inc()
	m.requestDuration.WithLabelValues(op).Observe(d.Seconds())
}

// Retry records a scheduled retry of op.
func (m *Metrics) Retry(op string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(op).Inc()
}

// Reconciliation records the outcome of one reconciliation.
func (m *Metrics) Reconciliation(result string) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(result).Inc()
}

// TokenFetch records the outcome of one user token fetch.
func (m *Metrics) TokenFetch(result string) {
	if m == nil {
		return
	}
	m.tokenFetches.WithLabelValues(result).Inc()
}

// SetInterests sets the interest set sizes.
func (m *Metrics) SetInterests(desired, confirmed int) {
	if m == nil {
		return
	}
	m.interests.WithLabelValues("desired").Set(float64(desired))
	m.interests.WithLabelValues("confirmed").Set(float64(confirmed))
}

// SetState marks current as the active state among all.
func (m *Metrics) SetState(current string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		m.state.WithLabelValues(s).Set(v)
	}
}
