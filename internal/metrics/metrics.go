// Package metrics defines custom Prometheus metrics for PicStash.
package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// registerOnce ensures Register() is idempotent.
var registerOnce sync.Once

// sizeBuckets are exponential buckets for request/response size histograms (bytes).
var sizeBuckets = []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216}

// HTTP metrics (RED: Rate, Errors, Duration).
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picstash_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency in seconds by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "picstash_http_request_duration_seconds",
			Help:    "Request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// HTTPRequestSize observes request body size in bytes.
	HTTPRequestSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "picstash_http_request_size_bytes",
			Help:    "Request body size in bytes",
			Buckets: sizeBuckets,
		},
		[]string{"method", "path"},
	)

	// HTTPResponseSize observes response body size in bytes.
	HTTPResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "picstash_http_response_size_bytes",
			Help:    "Response body size in bytes",
			Buckets: sizeBuckets,
		},
		[]string{"method", "path"},
	)
)

// Upload pipeline metrics.
var (
	// UploadsTotal counts accepted uploads by namespace.
	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picstash_uploads_total",
			Help: "Accepted image uploads by namespace",
		},
		[]string{"namespace"},
	)

	// DeletesTotal counts deletions by namespace.
	DeletesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picstash_deletes_total",
			Help: "Image deletions by namespace",
		},
		[]string{"namespace"},
	)

	// NormalizeDuration observes image normalization latency in seconds.
	NormalizeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "picstash_normalize_duration_seconds",
			Help:    "Image decode/resize/encode latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RateLimitedTotal counts requests refused by the rate limiter.
	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "picstash_rate_limited_total",
			Help: "Requests refused by the rate limiter",
		},
	)

	// BytesReceivedTotal counts total bytes received in upload bodies.
	BytesReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "picstash_bytes_received_total",
			Help: "Total bytes received (upload bodies)",
		},
	)

	// BytesStoredTotal counts total normalized bytes written to storage.
	BytesStoredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "picstash_bytes_stored_total",
			Help: "Total normalized bytes written to storage",
		},
	)
)

// Register registers all Prometheus collectors with the default registry.
// This must be called explicitly (typically from main) so that metrics
// registration can be made conditional on configuration. It is safe to call
// multiple times; subsequent calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			HTTPRequestSize,
			HTTPResponseSize,
			UploadsTotal,
			DeletesTotal,
			NormalizeDuration,
			RateLimitedTotal,
			BytesReceivedTotal,
			BytesStoredTotal,
		)
	})
}

// NormalizePath maps actual request paths to normalized path templates
// suitable for use as Prometheus metric labels. This avoids high-cardinality
// labels from individual file names.
func NormalizePath(path string) string {
	// Known fixed paths.
	switch path {
	case "/health":
		return "/health"
	case "/docs", "/docs/":
		return "/docs"
	case "/metrics":
		return "/metrics"
	case "/openapi.json":
		return "/openapi.json"
	case "/stats":
		return "/stats"
	case "/delete":
		return "/delete"
	case "/delete-by-url":
		return "/delete-by-url"
	case "/", "":
		return "/"
	}

	// Starts with /docs (Stoplight Elements assets).
	if strings.HasPrefix(path, "/docs") {
		return "/docs"
	}

	// Upload intake: /upload/{namespace} and /upload-multiple/{namespace}.
	if strings.HasPrefix(path, "/upload-multiple/") {
		return "/upload-multiple/{namespace}"
	}
	if strings.HasPrefix(path, "/upload/") {
		return "/upload/{namespace}"
	}

	// Served objects: /uploads/{namespace}/{filename}.
	if strings.HasPrefix(path, "/uploads/") {
		return "/uploads/{namespace}/{filename}"
	}

	return "/other"
}
