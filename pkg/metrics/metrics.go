// Package metrics holds the Prometheus collectors of the reporting service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ReportsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homemart_reports_total",
			Help: "Seller reports handled by the dispatcher, by outcome",
		},
		[]string{"outcome"}, // sent, failed, skipped
	)

	ReportBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "homemart_report_batch_duration_seconds",
			Help:    "Duration of one report dispatch batch",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homemart_emails_total",
			Help: "Outbound email attempts, by provider and result",
		},
		[]string{"provider", "result"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homemart_notifications_total",
			Help: "Internal notifications, by task and result",
		},
		[]string{"task", "result"},
	)

	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homemart_job_runs_total",
			Help: "Scheduled job executions, by job and status",
		},
		[]string{"job", "status"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "homemart_job_duration_seconds",
			Help: "Duration of scheduled job executions",
		},
		[]string{"job"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homemart_http_requests_total",
			Help: "HTTP requests served, by route and status code",
		},
		[]string{"route", "code"},
	)
)

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
