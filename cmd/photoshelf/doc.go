// Package main provides the entry point for the Photoshelf server.
//
// Photoshelf ingests photos and videos over HTTP, deduplicates them by
// content, reads their metadata, straightens rotated images and derives
// thumbnail, medium and small variants.
//
// # Application Lifecycle
//
//  1. Memory Configuration: sets GOMEMLIMIT from MEMORY_LIMIT when given
//  2. Configuration Loading: YAML file, .env, then environment variables;
//     every upload directory is created and probed for write access
//  3. Image Backend: libvips when available, otherwise the pure Go backend
//  4. Database Initialization: opens SQLite and runs migrations
//  5. Component Wiring: content store, pipeline, library, handlers
//  6. HTTP Server Setup: routes, middleware, metrics server
//  7. Graceful Shutdown: SIGINT/SIGTERM stop every component in order
//
// # Background Services
//
//   - Memory Monitor: pauses uploads while the heap is near the limit
//   - Metrics Collector: refreshes library gauges every minute
//
// # HTTP Server
//
//  1. Main Server (default port 8080):
//     - POST /api/photos accepts multipart uploads
//     - /api/photos/{id} reads, edits, duplicates and deletes records
//     - /api/photos/{id}/archive downloads the original or a variant
//     - /uploads/ serves stored files
//     - /health, /healthz, /livez, /readyz and /version
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//     - Health check endpoint (/health)
//
// # Environment Variables
//
//   - UPLOADS_DIR: root of the big, medium, small and thumb directories
//   - DATABASE_DIR: directory for the SQLite database
//   - PORT, METRICS_PORT, METRICS_ENABLED
//   - IMAGE_BACKEND: auto, rich or basic
//   - USE_EXIFTOOL: read metadata with exiftool when it is installed
//   - SKIP_DUPLICATES, DELETE_IMPORTED
//   - MEDIUM_MAX_WIDTH, MEDIUM_MAX_HEIGHT, SMALL_MAX_WIDTH, SMALL_MAX_HEIGHT
//   - DEFAULT_LICENSE, TOOL_TIMEOUT, MAX_UPLOAD_BYTES, IMPORT_WORKERS
//   - LOG_LEVEL: debug, info, warn or error
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT
//   - CONFIG_FILE: optional YAML file, also settable with -config
//
// # Build Requirements
//
// CGO is required for SQLite and libvips. exiftool, ffmpeg and ffprobe are
// optional; without them metadata is read in process and videos get no
// thumbnail.
package main
