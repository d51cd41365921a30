// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Saves counts persistence attempts by path (debounced, forced,
	// periodic) and result (written, skipped, failed).
	Saves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "editorsync_state_saves_total", Help: "State persistence attempts"},
		[]string{"path", "result"},
	)
	SaveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "editorsync_state_save_duration_seconds",
			Help:    "Time spent writing state to storage",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)
	BusEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "editorsync_bus_events_total", Help: "Events published on the bus"},
		[]string{"topic"},
	)
	BusDeduplicated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "editorsync_bus_events_deduplicated_total", Help: "Events suppressed by the dedup window"},
		[]string{"topic"},
	)
	HistorySnapshots = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "editorsync_history_snapshots", Help: "Snapshots in the undo history"},
	)
	Seeks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "editorsync_seeks_total", Help: "Seeks applied by the bridge"},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(Saves, SaveDuration, BusEvents, BusDeduplicated, HistorySnapshots, Seeks)
}
