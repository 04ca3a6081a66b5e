// Package observability provides Prometheus metrics and process logging.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	EventsClassified *prometheus.CounterVec
	ResolutionMisses *prometheus.CounterVec
	LastEventSeen    prometheus.Gauge

	// Detection metrics
	TokensDetected     prometheus.Counter
	TokensFiltered     *prometheus.CounterVec
	RugsDetected       *prometheus.CounterVec
	SuspiciousActivity *prometheus.CounterVec
	WhaleTransactions  *prometheus.CounterVec
	WhaleVolumeSOL     prometheus.Counter
	TrackedTokens      prometheus.Gauge
	TrackedWallets     prometheus.Gauge

	// Alert metrics
	AlertsSent    *prometheus.CounterVec
	AlertsDropped *prometheus.CounterVec

	// Solana metrics
	RPCRequests        *prometheus.CounterVec
	RPCLatency         *prometheus.HistogramVec
	WebsocketConnected prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	UptimeSeconds prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pumpguard"
	}

	return &Metrics{
		EventsClassified: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_classified_total",
			Help:      "Log records classified by event kind",
		}, []string{"kind"}),
		ResolutionMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "resolution_misses_total",
			Help:      "Events dropped because the transaction could not be resolved",
		}, []string{"kind"}),
		LastEventSeen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "last_event_timestamp",
			Help:      "Unix timestamp of the last log notification received",
		}),

		TokensDetected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "tokens_detected_total",
			Help:      "New tokens accepted by the launch filters",
		}),
		TokensFiltered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "tokens_filtered_total",
			Help:      "New tokens rejected by the launch filters",
		}, []string{"reason"}),
		RugsDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "rugs_detected_total",
			Help:      "Tokens flagged as rugged by trigger",
		}, []string{"trigger"}),
		SuspiciousActivity: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "suspicious_activity_total",
			Help:      "Suspicious activity signals raised",
		}, []string{"signal"}),
		WhaleTransactions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "whale_transactions_total",
			Help:      "Movements at or above the whale threshold",
		}, []string{"direction"}),
		WhaleVolumeSOL: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "whale_volume_sol_total",
			Help:      "Native volume of whale movements in SOL",
		}),
		TrackedTokens: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "tracked_tokens",
			Help:      "Tokens currently watched by the lifecycle tracker",
		}),
		TrackedWallets: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "tracked_wallets",
			Help:      "Wallets currently tracked",
		}),

		AlertsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "sent_total",
			Help:      "Alerts delivered by kind and channel",
		}, []string{"kind", "channel"}),
		AlertsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "dropped_total",
			Help:      "Alerts not delivered to a subscriber or sink",
		}, []string{"subscriber"}),

		RPCRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_requests_total",
			Help:      "Solana RPC requests by method and status",
		}, []string{"method", "status"}),
		RPCLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		WebsocketConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "websocket_connected",
			Help:      "1 when the log subscription socket is connected",
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEventClassified counts one classified log record per matched kind.
func RecordEventClassified(kind string) {
	DefaultMetrics.EventsClassified.WithLabelValues(kind).Inc()
}

// RecordResolutionMiss counts an event dropped at resolution.
func RecordResolutionMiss(kind string) {
	DefaultMetrics.ResolutionMisses.WithLabelValues(kind).Inc()
}

// RecordEventSeen stamps the last notification time.
func RecordEventSeen(unixSeconds int64) {
	DefaultMetrics.LastEventSeen.Set(float64(unixSeconds))
}

// RecordTokenDetected increments the accepted launch counter.
func RecordTokenDetected() {
	DefaultMetrics.TokensDetected.Inc()
}

// RecordTokenFiltered counts a launch rejected by a filter.
func RecordTokenFiltered(reason string) {
	DefaultMetrics.TokensFiltered.WithLabelValues(reason).Inc()
}

// RecordRug counts a rug transition by what triggered it.
func RecordRug(trigger string) {
	DefaultMetrics.RugsDetected.WithLabelValues(trigger).Inc()
}

// RecordSuspicious counts a suspicious-activity signal.
func RecordSuspicious(signal string) {
	DefaultMetrics.SuspiciousActivity.WithLabelValues(signal).Inc()
}

// RecordWhaleTransaction counts a whale movement and its volume.
func RecordWhaleTransaction(direction string, amountSOL float64) {
	DefaultMetrics.WhaleTransactions.WithLabelValues(direction).Inc()
	DefaultMetrics.WhaleVolumeSOL.Add(amountSOL)
}

// SetTrackedTokens updates the watched token gauge.
func SetTrackedTokens(n int) {
	DefaultMetrics.TrackedTokens.Set(float64(n))
}

// SetTrackedWallets updates the tracked wallet gauge.
func SetTrackedWallets(n int) {
	DefaultMetrics.TrackedWallets.Set(float64(n))
}

// RecordAlertSent counts an alert delivered on a channel.
func RecordAlertSent(kind, channel string) {
	DefaultMetrics.AlertsSent.WithLabelValues(kind, channel).Inc()
}

// RecordAlertDropped counts an alert a subscriber or sink did not receive.
func RecordAlertDropped(subscriber string) {
	DefaultMetrics.AlertsDropped.WithLabelValues(subscriber).Inc()
}

// RecordRPCCall records an RPC call outcome and latency.
func RecordRPCCall(method string, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.RPCRequests.WithLabelValues(method, status).Inc()
	DefaultMetrics.RPCLatency.WithLabelValues(method).Observe(seconds)
}

// SetWebsocketConnected flips the websocket connection gauge.
func SetWebsocketConnected(connected bool) {
	if connected {
		DefaultMetrics.WebsocketConnected.Set(1)
		return
	}
	DefaultMetrics.WebsocketConnected.Set(0)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// AddUptime advances the uptime counter.
func AddUptime(seconds float64) {
	DefaultMetrics.UptimeSeconds.Add(seconds)
}
