package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Broker event metrics
	BrokerEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_broker_events_total",
			Help: "Total number of broker status events published by method and status",
		},
		[]string{"method", "status"},
	)

	BrokerEventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_broker_events_dropped_total",
			Help: "Total number of malformed broker events dropped by reason",
		},
		[]string{"reason"},
	)

	ToolingDecodeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_tooling_decode_failures_total",
			Help: "Total number of broker tooling payloads that could not be decoded",
		},
	)

	RuntimeLogLines = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_runtime_log_lines_total",
			Help: "Total number of broker log lines received",
		},
	)

	RuntimeLogLinesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_runtime_log_lines_dropped_total",
			Help: "Total number of broker log lines not forwarded because the forward queue was full",
		},
	)

	// Brokering phase metrics
	BrokeringAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_brokering_attempts_total",
			Help: "Total number of brokering attempts by outcome",
		},
		[]string{"outcome"},
	)

	BrokeringDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "burrow_brokering_duration_seconds",
			Help:    "Time from broker launch to tooling resolution in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	ActiveListeners = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_active_listeners",
			Help: "Number of result listeners currently subscribed to the event bus",
		},
	)

	// Transport metrics
	RPCConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_rpc_connections",
			Help: "Number of open broker JSON-RPC connections",
		},
	)

	RPCMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_rpc_messages_total",
			Help: "Total number of JSON-RPC messages received by method and result",
		},
		[]string{"method", "result"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(BrokerEventsTotal)
	prometheus.MustRegister(BrokerEventsDropped)
	prometheus.MustRegister(ToolingDecodeFailures)
	prometheus.MustRegister(RuntimeLogLines)
	prometheus.MustRegister(RuntimeLogLinesDropped)
	prometheus.MustRegister(BrokeringAttemptsTotal)
	prometheus.MustRegister(BrokeringDuration)
	prometheus.MustRegister(ActiveListeners)
	prometheus.MustRegister(RPCConnections)
	prometheus.MustRegister(RPCMessagesTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
