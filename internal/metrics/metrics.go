// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursehub_http_requests_total",
			Help: "Total HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coursehub_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	PurchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursehub_purchases_total",
			Help: "Purchase attempts by outcome.",
		},
		[]string{"outcome"},
	)

	PurchaseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coursehub_purchase_transaction_duration_seconds",
			Help:    "Wall time of purchase transactions, lock wait included.",
			Buckets: prometheus.DefBuckets,
		},
	)

	ArchiveJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursehub_archive_jobs_total",
			Help: "Course archive exports by status.",
		},
		[]string{"status"},
	)
)

func RecordHTTPRequest(method, route, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func RecordPurchase(outcome string, duration time.Duration) {
	PurchasesTotal.WithLabelValues(outcome).Inc()
	PurchaseDuration.Observe(duration.Seconds())
}

// CountPurchase counts an attempt rejected before any transaction started.
func CountPurchase(outcome string) {
	PurchasesTotal.WithLabelValues(outcome).Inc()
}

func RecordArchiveJob(status string) {
	ArchiveJobsTotal.WithLabelValues(status).Inc()
}
