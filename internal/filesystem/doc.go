/*
Package filesystem provides resilient filesystem operations with automatic retry logic
for NFS stale file handle errors.

Scans frequently run against network shares. This package wraps os.Stat and
os.Open with retry logic for ESTALE (stale file handle) errors, which occur
when NFS-mounted files are accessed during network issues or server-side
changes.

# Usage

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
	    return err
	}

	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
	    return err
	}
	defer f.Close()

# Retry Behavior

Defaults:
  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

Only ESTALE triggers retries. All other errors (including ENOENT, which a
scan treats as a vanished file) fail immediately.

# Metrics

Operations are reported to the [Observer] registered with [SetObserver],
labeled with the volume returned by a [VolumeResolver]. The metrics package
provides the Prometheus-backed implementation.
*/
package filesystem
