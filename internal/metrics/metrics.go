// Package metrics defines Prometheus metrics for chronicled.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chronicle_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chronicle_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chronicle_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	AuditRecordsWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chronicle_audit_records_written_total",
			Help: "Audit records persisted by the queue processor",
		},
	)

	QueueRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chronicle_queue_retries_total",
			Help: "Queue items that failed and were scheduled for retry",
		},
	)

	QueueDeadTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chronicle_queue_dead_total",
			Help: "Queue items that exhausted their retry budget",
		},
	)

	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chronicle_queue_depth",
			Help: "Audit queue items by status",
		},
		[]string{"status"},
	)

	StaleClaimsReclaimed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chronicle_queue_stale_reclaimed_total",
			Help: "Processing claims reclaimed after the stale-claim timeout",
		},
	)

	SnapshotDedupHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chronicle_snapshot_dedup_hits_total",
			Help: "Snapshot requests resolved to an existing snapshot by content hash",
		},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chronicle_websocket_connections",
			Help: "Active WebSocket connections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal,
		AuditRecordsWritten, QueueRetriesTotal, QueueDeadTotal,
		QueueDepth, StaleClaimsReclaimed, SnapshotDedupHits,
		WSConnections,
	)
}
