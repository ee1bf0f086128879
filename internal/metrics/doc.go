// Package metrics provides Prometheus instrumentation for source-seeker.
//
// All metrics are registered through promauto at package init and are
// prefixed with "source_seeker_".
//
// # Metric Categories
//
// ## HTTP Metrics
//   - HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight
//
// ## Database Metrics
//   - DBQueryTotal and DBQueryDuration by operation
//   - DBTransactionDuration by outcome (commit/rollback)
//   - DBRowsAffected by write operation
//   - DBConnectionsOpen
//
// ## Scan Metrics
//   - ScansTotal by outcome (completed/cancelled/failed)
//   - ScanIsRunning, ScanLastDuration
//   - ScanFilesProcessed by result (cache_hit/computed/skipped)
//   - ScanMatchesTotal, ScanUpsertsFlushed
//
// ## Fingerprint Metrics
//   - FingerprintDuration by decoded format
//   - FingerprintErrors by reason
//   - FingerprintExtensionMismatch, files named for one format holding another
//
// ## Memory Metrics
//   - MemoryUsageRatio, MemoryPaused, MemoryGCPauses from the memory monitor
//
// ## Filesystem Metrics
//
// Recorded through [NewFilesystemObserver], which the filesystem package
// calls via its Observer interface.
//
// ## Cache Contents
//
// IndexedFilesTotal, ScanRootsTotal and CacheSizeBytes are refreshed by a
// [Collector] polling a [StatsProvider] on an interval. Failed polls leave
// the gauges at their last value and increment StatsCollectionErrors.
package metrics
