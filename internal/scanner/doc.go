// Package scanner runs similarity scans over a directory tree.
//
// A scan fingerprints a reference image, walks a root folder for supported
// images, reuses cached fingerprints whose modification time is unchanged,
// computes and persists the rest, and reports every image whose distance to
// the reference is within the configured threshold.
//
// Each scan runs on its own goroutine and communicates only through two
// unbounded FIFO mailboxes: one for matches, one for status, progress and
// the terminal Done event. Consumers drain them at their own pace; the worker
// never blocks on a slow consumer.
//
// Cancellation is cooperative. The worker polls the cancel flag before every
// directory entry and every file; a fingerprint already being computed runs
// to completion and is persisted.
package scanner
