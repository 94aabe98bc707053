package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "moxie"

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

// TxMetrics tracks protocol transactions executed by the writer.
type TxMetrics struct {
	txs      *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	reverted *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	txMetricsOnce sync.Once
	txRegistry    *TxMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record query API activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total query API requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total query API errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for query API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of query API requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit" so dashboards
// and alerts remain consistent.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// RequestsVec exposes the request counter for tests.
func (m *moduleMetrics) RequestsVec() *prometheus.CounterVec { return m.requests }

// ThrottlesVec exposes the throttle counter for tests.
func (m *moduleMetrics) ThrottlesVec() *prometheus.CounterVec { return m.throttles }

// Transactions returns the lazily-initialised transaction metrics registry.
func Transactions() *TxMetrics {
	txMetricsOnce.Do(func() {
		txRegistry = &TxMetrics{
			txs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tx",
				Name:      "total",
				Help:      "Protocol transactions segmented by operation and outcome.",
			}, []string{"op", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "tx",
				Name:      "duration_seconds",
				Help:      "Execution latency of protocol transactions.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
			reverted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tx",
				Name:      "reverted_events_total",
				Help:      "Events discarded because their transaction reverted.",
			}, []string{"op"}),
		}
		prometheus.MustRegister(txRegistry.txs, txRegistry.latency, txRegistry.reverted)
	})
	return txRegistry
}

// Observe records one executed transaction and, when it reverted, the number
// of events it dropped.
func (m *TxMetrics) Observe(op string, duration time.Duration, err error, dropped int) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	outcome := "committed"
	if err != nil {
		outcome = "reverted"
	}
	m.txs.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
	if err != nil && dropped > 0 {
		m.reverted.WithLabelValues(op).Add(float64(dropped))
	}
}

// TxVec exposes the transaction counter for tests.
func (m *TxMetrics) TxVec() *prometheus.CounterVec { return m.txs }

// RevertedEventsVec exposes the dropped event counter for tests.
func (m *TxMetrics) RevertedEventsVec() *prometheus.CounterVec { return m.reverted }
