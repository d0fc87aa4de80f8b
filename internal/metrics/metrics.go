package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoshelf_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photoshelf_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoshelf_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Ingestion metrics
var (
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoshelf_ingest_total",
			Help: "Total number of ingestion requests by media kind and outcome",
		},
		[]string{"kind", "outcome"}, // outcome: "success", "dedup_hit", error kind
	)

	IngestStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photoshelf_ingest_stage_duration_seconds",
			Help:    "Time spent in each ingestion pipeline stage",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	IngestInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoshelf_ingest_in_progress",
			Help: "Number of ingestion requests currently running",
		},
	)
)

// Derivation metrics
var (
	DerivationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoshelf_derivations_total",
			Help: "Derived asset generations by variant, backend and status",
		},
		[]string{"variant", "backend", "status"}, // status: "success", "skipped", "error"
	)

	DerivationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photoshelf_derivation_duration_seconds",
			Help:    "Derived asset generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"variant"},
	)

	OrientationFixesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoshelf_orientation_fixes_total",
			Help: "Orientation normalizations by EXIF orientation code and status",
		},
		[]string{"orientation", "status"},
	)
)

// Metadata metrics
var (
	MetadataSourceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoshelf_metadata_source_total",
			Help: "EXIF metadata reads by source (exiftool, native, none)",
		},
		[]string{"source"},
	)

	MetadataDegradationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoshelf_metadata_degradations_total",
			Help: "Metadata fields or blocks that could not be read and were defaulted",
		},
		[]string{"reason"},
	)

	ExternalToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photoshelf_external_tool_duration_seconds",
			Help:    "Duration of external tool invocations (exiftool, ffprobe, ffmpeg)",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"tool", "status"},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoshelf_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photoshelf_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	PhotosTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photoshelf_photos_total",
			Help: "Number of photo records by media kind",
		},
		[]string{"kind"},
	)

	StoredFilesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoshelf_stored_files_total",
			Help: "Number of distinct canonical files (unique checksums)",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photoshelf_filesystem_operation_duration_seconds",
			Help:    "Duration of filesystem operations by volume",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoshelf_filesystem_operation_errors_total",
			Help: "Filesystem operation errors by volume",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoshelf_filesystem_retry_events_total",
			Help: "Stale NFS handle events: stale, retry, recovered or exhausted",
		},
		[]string{"operation", "volume", "event"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photoshelf_filesystem_retry_duration_seconds",
			Help:    "Total duration of retried filesystem operations",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoshelf_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoshelf_memory_paused",
			Help: "1 while ingestion is paused for memory pressure",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photoshelf_memory_gc_pauses_total",
			Help: "Times ingestion was paused and a GC forced for memory pressure",
		},
	)
)

// AppInfo exposes build information as labels.
var AppInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "photoshelf_app_info",
		Help: "Application build information",
	},
	[]string{"version", "commit", "go_version"},
)
