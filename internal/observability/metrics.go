// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Refresh metrics
	RefreshesTotal   *prometheus.CounterVec
	RefreshDuration  *prometheus.HistogramVec
	BudgetRejections prometheus.Counter

	// Feed metrics
	AccountsInSnapshot prometheus.Gauge
	FeedUpdatesTotal   prometheus.Counter
	RPCCallLatency     *prometheus.HistogramVec

	// Store metrics
	SlotsConfigured prometheus.Gauge
	HistoryWrites   prometheus.Counter
	HistoryErrors   prometheus.Counter

	// Health metrics
	LastSuccessfulRefresh prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "price_oracle"
	}

	return &Metrics{
		RefreshesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "slots_total",
			Help:      "Total number of slot refreshes by kind and status",
		}, []string{"kind", "status"}),
		RefreshDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "duration_seconds",
			Help:      "Slot refresh duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		BudgetRejections: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "budget_rejections_total",
			Help:      "Total number of batches rejected by budget admission control",
		}),

		AccountsInSnapshot: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "accounts_in_snapshot",
			Help:      "Current number of accounts held in the feed snapshot",
		}),
		FeedUpdatesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "updates_total",
			Help:      "Total number of account updates applied to the snapshot",
		}),
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "rpc_call_latency_seconds",
			Help:      "RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		SlotsConfigured: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mapping",
			Name:      "slots_configured",
			Help:      "Number of configured mapping slots",
		}),
		HistoryWrites: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "writes_total",
			Help:      "Total number of resolved prices archived",
		}),
		HistoryErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "write_errors_total",
			Help:      "Total number of failed history writes",
		}),

		LastSuccessfulRefresh: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_refresh_timestamp",
			Help:      "Unix timestamp of the last successful refresh",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRefresh records one slot refresh outcome.
func RecordRefresh(kind, status string, d time.Duration) {
	DefaultMetrics.RefreshesTotal.WithLabelValues(kind, status).Inc()
	DefaultMetrics.RefreshDuration.WithLabelValues(kind).Observe(d.Seconds())
	if status == "ok" {
		DefaultMetrics.LastSuccessfulRefresh.SetToCurrentTime()
	}
}

// RecordBudgetRejection increments the budget admission rejection counter.
func RecordBudgetRejection() {
	DefaultMetrics.BudgetRejections.Inc()
}

// RecordFeedUpdate records an account update applied to the snapshot.
func RecordFeedUpdate(snapshotSize int) {
	DefaultMetrics.FeedUpdatesTotal.Inc()
	DefaultMetrics.AccountsInSnapshot.Set(float64(snapshotSize))
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordHistoryWrite records an archival write outcome.
func RecordHistoryWrite(err error) {
	if err != nil {
		DefaultMetrics.HistoryErrors.Inc()
		return
	}
	DefaultMetrics.HistoryWrites.Inc()
}
