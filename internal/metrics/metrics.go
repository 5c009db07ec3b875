// Package metrics exposes Prometheus instrumentation for the watcher.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the watcher's Prometheus collectors.
type Metrics struct {
	// CyclesTotal counts completed check cycles.
	CyclesTotal prometheus.Counter
	// CyclesDropped counts triggers dropped because a cycle was in flight.
	CyclesDropped prometheus.Counter
	// CyclesFailed counts cycles aborted by fetch or store errors.
	CyclesFailed prometheus.Counter
	// NewPostings counts postings detected as new.
	NewPostings prometheus.Counter
	// NotificationsSent counts deliveries per sink ("presenter", "os").
	NotificationsSent *prometheus.CounterVec
	// SeenEntries tracks the snapshot store size.
	SeenEntries prometheus.Gauge
}

// New registers the collectors on reg and returns them. Pass a fresh
// registry in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "jobwatch",
			Name:      "cycles_total",
			Help:      "Completed check cycles.",
		}),
		CyclesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "jobwatch",
			Name:      "cycles_dropped_total",
			Help:      "Check triggers dropped because a cycle was already running.",
		}),
		CyclesFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "jobwatch",
			Name:      "cycles_failed_total",
			Help:      "Check cycles aborted by fetch or store errors.",
		}),
		NewPostings: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "jobwatch",
			Name:      "new_postings_total",
			Help:      "Postings detected as new.",
		}),
		NotificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jobwatch",
			Name:      "notifications_sent_total",
			Help:      "Notifications delivered, labelled by sink.",
		}, []string{"sink"}),
		SeenEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "jobwatch",
			Name:      "seen_entries",
			Help:      "Entries in the snapshot store.",
		}),
	}
}

// NewUnregistered returns collectors bound to a throwaway registry,
// for components that want metrics to be optional.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
