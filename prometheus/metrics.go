package prometheus

import (
	"procurement-service/pkg/config"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HttpRequestsTotal   *prometheus.CounterVec
	HttpRequestDuration *prometheus.HistogramVec

	// Session gate metrics
	AuthSuccessCounter prometheus.Counter
	AuthErrorsCounter  prometheus.Counter

	// Upstream inventory API metrics
	UpstreamCallDuration *prometheus.HistogramVec

	// Purchase order metrics
	SubmissionsCounter    *prometheus.CounterVec
	ReferenceLoadFailures prometheus.Counter
	OrderListDegraded     prometheus.Counter
	HistoryViewsCounter   *prometheus.CounterVec

	initOnce sync.Once
)

// InitMetrics initializes Prometheus metrics with configuration
func InitMetrics(cfg *config.Config) {
	initOnce.Do(func() {
		register(cfg.Metrics.Prefix, prometheus.DefaultRegisterer)
	})
}

func register(prefix string, reg prometheus.Registerer) {
	factory := promauto.With(reg)

	HttpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	AuthSuccessCounter = factory.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_auth_success_total",
			Help: "Total number of requests admitted by the session gate",
		},
	)

	AuthErrorsCounter = factory.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_auth_errors_total",
			Help: "Total number of requests rejected by the session gate",
		},
	)

	UpstreamCallDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_upstream_call_duration_seconds",
			Help:    "Duration of inventory API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)

	SubmissionsCounter = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_purchase_order_submissions_total",
			Help: "Total number of purchase order submit attempts by outcome",
		},
		[]string{"outcome"},
	)

	ReferenceLoadFailures = factory.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_reference_load_failures_total",
			Help: "Total number of failed supplier/product loads",
		},
	)

	OrderListDegraded = factory.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_order_list_degraded_total",
			Help: "Total number of recent order fetches that failed and rendered empty",
		},
	)

	HistoryViewsCounter = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_history_views_total",
			Help: "Total number of status history views by outcome",
		},
		[]string{"outcome"},
	)
}

// The record helpers below are no-ops until metrics are registered, so
// packages can be exercised without a registry.

// ObserveUpstreamCall records the duration of one inventory API call
func ObserveUpstreamCall(operation, outcome string, d time.Duration) {
	if UpstreamCallDuration == nil {
		return
	}
	UpstreamCallDuration.WithLabelValues(operation, outcome).Observe(d.Seconds())
}

// RecordSubmission increments the submission counter for an outcome
func RecordSubmission(outcome string) {
	if SubmissionsCounter == nil {
		return
	}
	SubmissionsCounter.WithLabelValues(outcome).Inc()
}

// RecordReferenceLoadFailure counts a failed reference data load
func RecordReferenceLoadFailure() {
	if ReferenceLoadFailures == nil {
		return
	}
	ReferenceLoadFailures.Inc()
}

// RecordOrderListDegraded counts a recent-orders fetch that fell back to empty
func RecordOrderListDegraded() {
	if OrderListDegraded == nil {
		return
	}
	OrderListDegraded.Inc()
}

// RecordHistoryView counts a history view attempt
func RecordHistoryView(outcome string) {
	if HistoryViewsCounter == nil {
		return
	}
	HistoryViewsCounter.WithLabelValues(outcome).Inc()
}

// RecordAuth counts a session gate decision
func RecordAuth(ok bool) {
	if AuthSuccessCounter == nil || AuthErrorsCounter == nil {
		return
	}
	if ok {
		AuthSuccessCounter.Inc()
		return
	}
	AuthErrorsCounter.Inc()
}

// ObserveHTTPRequest records one served HTTP request
func ObserveHTTPRequest(method, path, status string, d time.Duration) {
	if HttpRequestsTotal == nil || HttpRequestDuration == nil {
		return
	}
	HttpRequestsTotal.WithLabelValues(method, path, status).Inc()
	HttpRequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}
