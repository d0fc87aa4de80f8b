// Package metrics declares the Prometheus metrics exported by photoshelf.
//
// Metric families:
//   - photoshelf_http_*: request counts, latency and in-flight gauge
//   - photoshelf_ingest_*: ingestion outcomes per media kind and stage timings
//   - photoshelf_derivations_*: thumbnail, medium and small generation by backend
//   - photoshelf_metadata_*: EXIF source selection and defaulted fields
//   - photoshelf_external_tool_*: exiftool, ffprobe and ffmpeg invocations
//   - photoshelf_db_*: repository query counts and latency
//   - photoshelf_filesystem_*: per-volume operation timings and NFS retries
//
// All metrics are registered with promauto at package init. InitializeMetrics
// pre-creates label combinations so dashboards see zero values from the first
// scrape. Collector refreshes the photo count gauges from the repository.
package metrics
