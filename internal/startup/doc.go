// Package startup loads configuration and logs the server's startup.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig]
// (server) or [ReadConfig] (command line tools). Command line flags may
// override individual values afterwards.
//
//   - DATABASE_DIR: Directory holding the fingerprint cache (default: ~/.source-seeker)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_ENABLED: Expose /metrics (default: true)
//   - MATCH_THRESHOLD: Largest Hamming distance reported as a match (default: 5)
//   - HASH_SIZE: Side of the average hash grid, a multiple of 8 (default: 8)
//   - FLUSH_BATCH: Fingerprints written per transaction (default: 500)
//   - PROGRESS_EVERY: Files between progress events (default: 20)
//   - DISCOVERY_EVERY: Discovered files between status events (default: 500)
//   - SCAN_WORKERS: Concurrent fingerprint computations (default: one per CPU)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_STATIC_FILES: Log requests for static paths (default: false)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// Invalid numeric values are logged and replaced by their defaults. The
// database directory is created when missing and must be writable.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Lifecycle Logging
//
//   - [LogDatabaseInit]: Cache open time and contents
//   - [LogScanEngineInit]: Scan engine settings
//   - [LogHTTPSetup]: Route count and request log switches; routes at debug level
//   - [LogListening]: Listen address once startup is done
package startup
