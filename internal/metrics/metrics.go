package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_seeker_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_seeker_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "source_seeker_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_seeker_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_seeker_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_seeker_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"outcome"},
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_seeker_db_rows_affected",
			Help:    "Rows affected by write operations",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 10000, 50000},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "source_seeker_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Index contents
var (
	IndexedFilesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "source_seeker_indexed_files",
			Help: "Number of fingerprinted files in the cache",
		},
	)

	ScanRootsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "source_seeker_scan_roots",
			Help: "Number of registered scan roots",
		},
	)

	CacheSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "source_seeker_cache_size_bytes",
			Help: "Size of the cache database files on disk",
		},
	)

	StatsCollectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "source_seeker_stats_collection_errors_total",
			Help: "Number of failed periodic cache statistics collections",
		},
	)
)

// Scan metrics
var (
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_seeker_scans_total",
			Help: "Total number of scans by outcome",
		},
		[]string{"outcome"}, // "completed", "cancelled", "failed"
	)

	ScanIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "source_seeker_scan_running",
			Help: "Whether a scan is currently running (1 = running, 0 = idle)",
		},
	)

	ScanLastDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "source_seeker_scan_last_duration_seconds",
			Help: "Duration of the last finished scan in seconds",
		},
	)

	ScanFilesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_seeker_scan_files_total",
			Help: "Candidate files processed by scans, by resolution",
		},
		[]string{"result"}, // "cache_hit", "computed", "skipped"
	)

	ScanMatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "source_seeker_scan_matches_total",
			Help: "Total number of matches reported by scans",
		},
	)

	ScanUpsertsFlushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "source_seeker_scan_upserts_flushed_total",
			Help: "Fingerprint records persisted by scan flushes",
		},
	)
)

// Fingerprint metrics
var (
	FingerprintDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_seeker_fingerprint_duration_seconds",
			Help:    "Time to decode and hash one image",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"format"},
	)

	FingerprintErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_seeker_fingerprint_errors_total",
			Help: "Images that could not be fingerprinted, by reason",
		},
		[]string{"reason"}, // "open", "not_image", "decode", "hash"
	)

	FingerprintExtensionMismatch = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "source_seeker_fingerprint_extension_mismatch_total",
			Help: "Fingerprinted files whose content format differs from their extension",
		},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "source_seeker_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "source_seeker_memory_paused",
			Help: "Whether fingerprinting is paused for memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "source_seeker_memory_gc_pauses_total",
			Help: "Times fingerprinting was paused and a GC forced for memory pressure",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_seeker_filesystem_operation_duration_seconds",
			Help:    "Duration of filesystem operations",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_seeker_filesystem_operation_errors_total",
			Help: "Total number of failed filesystem operations",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_seeker_filesystem_retry_attempts_total",
			Help: "Total number of filesystem retry attempts after stale file handle errors",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_seeker_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_seeker_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_seeker_filesystem_retry_duration_seconds",
			Help:    "Duration of filesystem operations that needed at least one retry",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_seeker_filesystem_stale_errors_total",
			Help: "Total number of stale file handle errors encountered",
		},
		[]string{"operation", "volume"},
	)
)
