package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	published *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking published protocol events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			published: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Count of committed protocol events segmented by module and type.",
			}, []string{"module", "type"}),
		}
		prometheus.MustRegister(eventRegistry.published)
	})
	return eventRegistry
}

// RecordEvent increments the counter for a committed event. Event types are
// "<module>.<name>"; the prefix becomes the module label.
func (m *eventMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return
	}
	module := "unknown"
	if idx := strings.IndexByte(eventType, '.'); idx > 0 {
		module = eventType[:idx]
	}
	m.published.WithLabelValues(module, eventType).Inc()
}

// PublishedVec exposes the event counter for tests.
func (m *eventMetrics) PublishedVec() *prometheus.CounterVec { return m.published }
