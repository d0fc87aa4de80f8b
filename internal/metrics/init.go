package metrics

import "photoshelf/internal/filesystem"

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	volumes := []string{"big", "medium", "small", "thumb", "database", "unknown"}

	for _, vol := range volumes {
		for _, op := range []string{"read", "write", "stat", "rename", "remove"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
		}
		for _, op := range []string{"stat", "open"} {
			for _, event := range filesystem.RetryEvents {
				FilesystemRetryEvents.WithLabelValues(op, vol, string(event))
			}
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, kind := range []string{"image", "video"} {
		for _, outcome := range []string{"success", "dedup_hit", "transport", "validation",
			"checksum", "storage", "unreadable_image", "derivation", "duplicate_skipped", "persist"} {
			IngestTotal.WithLabelValues(kind, outcome)
		}
		PhotosTotal.WithLabelValues(kind)
	}

	for _, stage := range []string{"validating", "deduping", "importing", "metadata",
		"orientation", "derive", "persist"} {
		IngestStageDuration.WithLabelValues(stage)
	}

	for _, variant := range []string{"thumb", "video_thumb", "medium", "small"} {
		for _, backend := range []string{"rich", "basic", "ffmpeg"} {
			for _, status := range []string{"success", "skipped", "error"} {
				DerivationsTotal.WithLabelValues(variant, backend, status)
			}
		}
		DerivationDuration.WithLabelValues(variant)
	}

	for _, source := range []string{"exiftool", "native", "none"} {
		MetadataSourceTotal.WithLabelValues(source)
	}
	for _, reason := range []string{"exif_unreadable", "exiftool_failed", "iptc_unreadable",
		"invalid_encoding", "takestamp_out_of_range"} {
		MetadataDegradationsTotal.WithLabelValues(reason)
	}

	for _, tool := range []string{"exiftool", "ffprobe", "ffmpeg"} {
		for _, status := range []string{"success", "error", "timeout"} {
			ExternalToolDuration.WithLabelValues(tool, status)
		}
	}

	for _, op := range []string{"insert_photo", "find_by_checksum", "get_photo", "update_photo",
		"duplicate_photo", "delete_photo", "create_album", "get_album", "update_album",
		"update_album_bounds", "recompute_album_bounds", "stats", "get_setting", "set_setting"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
