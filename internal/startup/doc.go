// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// [LoadConfig] starts from [DefaultConfig], decodes an optional YAML file,
// loads a .env file from the working directory when present, and finally
// applies environment variables:
//
//   - UPLOADS_DIR: Root of big/, medium/, small/ and thumb/ (default: /uploads)
//   - DATABASE_DIR: Path to database directory (default: /database)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - IMAGE_BACKEND: auto, rich (libvips) or basic (default: auto)
//   - USE_EXIFTOOL: Prefer exiftool for EXIF extraction (default: true)
//   - DELETE_IMPORTED: Remove source files after a filesystem import (default: false)
//   - SKIP_DUPLICATES: Reject uploads whose content already exists (default: false)
//   - MEDIUM_MAX_WIDTH / MEDIUM_MAX_HEIGHT: Medium variant bounds (default: 1920/1080)
//   - SMALL_MAX_WIDTH / SMALL_MAX_HEIGHT: Small variant bounds, 0 = unbounded (default: 0/360)
//   - DEFAULT_LICENSE: License shown when neither photo nor album sets one (default: none)
//   - TOOL_TIMEOUT: Limit for exiftool, ffprobe and ffmpeg runs (default: 30s)
//   - MAX_UPLOAD_BYTES: Largest accepted upload (default: 64 MiB)
//   - IMPORT_WORKERS: Batch import concurrency, 0 = automatic
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// # Directory Setup
//
// The database directory and all four upload directories are created when
// missing and probed with a temporary .write-test-* file. Unlike optional caches, none
// of them can be degraded: a failure returns [ErrConfig].
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogDatabaseInit]: Database initialization timing
//   - [LogImageBackendInit]: Selected image backend
//   - [LogPipelineInit]: Ingestion settings
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]: Graceful shutdown
package startup
