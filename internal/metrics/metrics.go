// Package metrics provides Prometheus collectors for the PLM server.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plm_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plm_http_request_duration_seconds",
			Help:    "Time taken to serve HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Catalog metrics
	CodesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plm_codes_created_total",
			Help: "Total number of part codes generated",
		},
		[]string{"type"},
	)

	CodeRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plm_code_generation_retries_total",
			Help: "Code generations retried after a duplicate key conflict",
		},
	)

	RevisionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plm_revisions_created_total",
			Help: "Total number of revisions created",
		},
	)

	RevisionsReleased = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plm_revisions_released_total",
			Help: "Total number of revisions released",
		},
	)

	BomMerges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plm_bom_merges_total",
			Help: "BOM merges by outcome",
		},
		[]string{"outcome"},
	)

	// Storage metrics
	BytesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plm_bytes_uploaded_total",
			Help: "Total bytes of uploaded file content",
		},
	)

	OrphansSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plm_orphan_blobs_swept_total",
			Help: "Blobs deleted because no file row references them",
		},
	)
)

// RecordRequest records one served HTTP request.
func RecordRequest(method, route string, status int, duration time.Duration) {
	RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Timer helps track operation duration.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
