package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector exposed on /metrics
var Registry = prometheus.NewRegistry()

var (
	// StatusReportsTotal counts status reports by outcome (success/failed)
	StatusReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vehicle_status_reports_total",
			Help: "Total number of vehicle status reports processed.",
		},
		[]string{"outcome"},
	)

	// StatusTransitionsTotal counts opened segments by canonical status
	StatusTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vehicle_status_transitions_total",
			Help: "Total number of status segments opened, by status.",
		},
		[]string{"status"},
	)

	// TransitionLatency records how long the transition transaction takes
	TransitionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vehicle_status_transition_seconds",
			Help:    "Latency of the status transition transaction.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// PublishFailuresTotal counts snapshots the notification sink failed to deliver
	PublishFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vehicle_snapshot_publish_failures_total",
			Help: "Total number of vehicle snapshots that could not be published.",
		},
	)

	// RollupRowsWritten records the rows written by the last daily rollup
	RollupRowsWritten = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vehicle_daily_rollup_rows",
			Help: "Rows written by the most recent daily stats rebuild.",
		},
	)

	// EventSubscribers is the number of connected live event streams
	EventSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vehicle_event_subscribers",
			Help: "Number of connected live event subscribers.",
		},
	)
)

func init() {
	Registry.MustRegister(
		StatusReportsTotal,
		StatusTransitionsTotal,
		TransitionLatency,
		PublishFailuresTotal,
		RollupRowsWritten,
		EventSubscribers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
