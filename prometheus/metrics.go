package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"trainhub/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	HttpRequestsTotal   *prometheus.CounterVec
	HttpRequestDuration *prometheus.HistogramVec

	// Authentication metrics
	AuthErrorsTotal *prometheus.CounterVec

	// Database operation metrics
	DbOperationDuration *prometheus.HistogramVec

	// Per-resource operation counters
	ResourceOperationsTotal *prometheus.CounterVec

	// Alert metrics
	AlertsPerAccountGauge  *prometheus.GaugeVec
	ActiveSubscribersGauge prometheus.Gauge
)

// InitMetrics initializes Prometheus metrics with configuration
func InitMetrics(cfg *config.Config) {
	prefix := cfg.Metrics.Prefix

	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	AuthErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_auth_errors_total",
			Help: "Total number of authentication and authorization errors",
		},
		[]string{"reason"},
	)

	DbOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation_type"},
	)

	ResourceOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_resource_operations_total",
			Help: "Total number of resource operations",
		},
		[]string{"resource", "operation"},
	)

	AlertsPerAccountGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "_alerts_per_account",
			Help: "Number of stored alerts per account",
		},
		[]string{"account_id"},
	)

	ActiveSubscribersGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_alert_subscribers_active",
			Help: "Number of active alert WebSocket subscriptions",
		},
	)
}

// RecordAuthError increments the auth error counter for the given reason
func RecordAuthError(reason string) {
	if AuthErrorsTotal == nil {
		return
	}
	AuthErrorsTotal.WithLabelValues(reason).Inc()
}

// RecordOperation increments the per-resource operation counter
func RecordOperation(resource, operation string) {
	if ResourceOperationsTotal == nil {
		return
	}
	ResourceOperationsTotal.WithLabelValues(resource, operation).Inc()
}

// TrackDBOperation returns a function that records the duration of a
// database operation when called. Use with defer:
//
//	defer prometheus.TrackDBOperation("query")(time.Now())
func TrackDBOperation(operationType string) func(time.Time) {
	return func(start time.Time) {
		if DbOperationDuration == nil {
			return
		}
		DbOperationDuration.WithLabelValues(operationType).Observe(time.Since(start).Seconds())
	}
}

// UpdateAlertsPerAccount sets the stored-alert gauge for an account
func UpdateAlertsPerAccount(accountID uint, count int) {
	if AlertsPerAccountGauge == nil {
		return
	}
	AlertsPerAccountGauge.WithLabelValues(strconv.FormatUint(uint64(accountID), 10)).Set(float64(count))
}

// SubscriberConnected adjusts the active WebSocket subscription gauge
func SubscriberConnected(delta int) {
	if ActiveSubscribersGauge == nil {
		return
	}
	ActiveSubscribersGauge.Add(float64(delta))
}

// GetPrometheusHandler returns the HTTP handler for the /metrics endpoint
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}
