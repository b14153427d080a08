// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// RPC metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec

	// Operation lifecycle metrics
	OperationsTotal      *prometheus.CounterVec
	OperationDuration    *prometheus.HistogramVec
	OperationsJoined     prometheus.Counter
	OperationsReconciled *prometheus.CounterVec
	ReadsCollapsed       prometheus.Counter

	// Session metrics
	SessionConnects  *prometheus.CounterVec
	SessionConnected prometheus.Gauge
	SignRequests     *prometheus.CounterVec

	// Activity metrics
	ActivityEventsStored prometheus.Counter
	LatestLedgerSeen     prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulPoll prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "soroban_dao"
	}

	return &Metrics{
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "soroban",
			Name:      "rpc_call_latency_seconds",
			Help:      "Soroban RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "soroban",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of failed Soroban RPC calls",
		}, []string{"method"}),

		OperationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "operations",
			Name:      "total",
			Help:      "Contract operations by method, final state and error kind",
		}, []string{"method", "state", "kind"}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "operations",
			Name:      "duration_seconds",
			Help:      "Time from build to final state in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"method"}),
		OperationsJoined: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "operations",
			Name:      "joined_total",
			Help:      "Duplicate submissions that joined an in-flight operation",
		}),
		OperationsReconciled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "operations",
			Name:      "reconciled_total",
			Help:      "Pending operations resolved by the reconciler by final state",
		}, []string{"state"}),
		ReadsCollapsed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "operations",
			Name:      "reads_collapsed_total",
			Help:      "Contract reads served by an identical in-flight read",
		}),

		SessionConnects: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "connects_total",
			Help:      "Wallet connect attempts by result",
		}, []string{"result"}),
		SessionConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "connected",
			Help:      "1 when a wallet is connected",
		}),
		SignRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "sign_requests_total",
			Help:      "Signature requests by result",
		}, []string{"result"}),

		ActivityEventsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "activity",
			Name:      "events_stored_total",
			Help:      "Total number of contract events stored",
		}),
		LatestLedgerSeen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "activity",
			Name:      "latest_ledger_seen",
			Help:      "Latest ledger sequence reported by the RPC",
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

		LastSuccessfulPoll: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_poll_timestamp",
			Help:      "Unix timestamp of last successful event poll",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64, err error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordOperation records the outcome of a contract operation.
// kind is empty on success.
func RecordOperation(method, state, kind string, seconds float64) {
	DefaultMetrics.OperationsTotal.WithLabelValues(method, state, kind).Inc()
	DefaultMetrics.OperationDuration.WithLabelValues(method).Observe(seconds)
}

// RecordOperationJoined increments the joined submissions counter.
func RecordOperationJoined() {
	DefaultMetrics.OperationsJoined.Inc()
}

// RecordReconciled records a pending operation resolved by the reconciler.
func RecordReconciled(state string) {
	DefaultMetrics.OperationsReconciled.WithLabelValues(state).Inc()
}

// RecordReadCollapsed increments the collapsed reads counter.
func RecordReadCollapsed() {
	DefaultMetrics.ReadsCollapsed.Inc()
}

// RecordConnect records a wallet connect attempt.
func RecordConnect(result string) {
	DefaultMetrics.SessionConnects.WithLabelValues(result).Inc()
}

// SetConnected updates the connected gauge.
func SetConnected(connected bool) {
	if connected {
		DefaultMetrics.SessionConnected.Set(1)
		return
	}
	DefaultMetrics.SessionConnected.Set(0)
}

// RecordSign records a signature request.
func RecordSign(result string) {
	DefaultMetrics.SignRequests.WithLabelValues(result).Inc()
}

// RecordEventsStored adds n to the stored events counter.
func RecordEventsStored(n int) {
	DefaultMetrics.ActivityEventsStored.Add(float64(n))
}

// UpdateLatestLedger updates the latest ledger gauge.
func UpdateLatestLedger(ledger uint32) {
	DefaultMetrics.LatestLedgerSeen.Set(float64(ledger))
}

// RecordPollSuccess stamps the last successful poll time.
func RecordPollSuccess(unix int64) {
	DefaultMetrics.LastSuccessfulPoll.Set(float64(unix))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
