package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, outcome := range []string{"completed", "cancelled", "failed"} {
		ScansTotal.WithLabelValues(outcome)
	}

	for _, result := range []string{"cache_hit", "computed", "skipped"} {
		ScanFilesProcessed.WithLabelValues(result)
	}

	for _, format := range []string{"jpeg", "png", "bmp", "webp", "tiff", "unknown"} {
		FingerprintDuration.WithLabelValues(format)
	}
	for _, reason := range []string{"open", "not_image", "decode", "hash"} {
		FingerprintErrors.WithLabelValues(reason)
	}

	volumes := []string{"scan", "unknown"}
	for _, vol := range volumes {
		for _, op := range []string{"stat", "read"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
		}
		for _, op := range []string{"stat", "open"} {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, op := range []string{"initialize_schema", "load_all", "upsert_file", "upsert_files",
		"register_root", "all_paths", "all_roots", "delete_prefix", "stats", "vacuum"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, t := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(t)
	}
}
