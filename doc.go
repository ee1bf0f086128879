// Command source-seeker finds images that are perceptually similar to a
// reference image.
//
// # Commands
//
//	source-seeker scan <folder> <image>   scan a folder and print matches
//	source-seeker serve                   run the HTTP API
//	source-seeker version                 print build information
//
// Every scan fingerprints the reference image, loads the fingerprint cache,
// walks the folder in lexical order and compares each supported image
// (jpg, jpeg, png, bmp, webp, tiff) against the reference. Files whose
// modification time is unchanged reuse their cached fingerprint; the rest
// are decoded, fingerprinted and written back in batches. A match is any
// image within the threshold Hamming distance.
//
// # Scan Output
//
// Matches are printed to stdout as they are found, one per line with the
// distance, the size and the path, or as JSON objects with --json. Status
// goes to stderr, as a progress bar on a terminal and as plain lines
// otherwise. Interrupting a scan keeps every fingerprint computed so far and
// exits with status 130.
//
// # HTTP API
//
//	POST   /api/scan           start a scan {"folder": ..., "image": ...}
//	GET    /api/scan           scan state; ?events=N&matches=M return entries from those offsets
//	POST   /api/scan/cancel    cancel the running scan
//	GET    /api/cache/groups   cached folders with file counts and Found/Missing status
//	DELETE /api/cache/groups   remove cached folders {"folders": [...]}
//	GET    /api/cache/stats    cache row counts and size
//	GET    /healthz, /livez, /readyz, /version, /metrics
//
// # Environment Variables
//
//   - DATABASE_DIR: Cache directory (default: ~/.source-seeker)
//   - MATCH_THRESHOLD: Largest distance reported as a match (default: 5)
//   - HASH_SIZE: Fingerprint grid size, a multiple of 8 (default: 8)
//   - FLUSH_BATCH: Fingerprints written per transaction (default: 500)
//   - PROGRESS_EVERY, DISCOVERY_EVERY: Status event intervals
//   - SCAN_WORKERS: Concurrent fingerprint computations (default: one per CPU)
//   - PORT: HTTP port for serve (default: 8080)
//   - METRICS_ENABLED: Expose /metrics (default: true)
//   - LOG_LEVEL, LOG_STATIC_FILES, LOG_HEALTH_CHECKS: Logging
//   - MEMORY_LIMIT, MEMORY_RATIO: Container memory budget for GOMEMLIMIT
//
// Flags on the scan command override the matching environment variables.
package main
