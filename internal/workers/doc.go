/*
Package workers sizes the goroutine pools used for fingerprinting.

Inside containers runtime.NumCPU reports the host's CPUs while GOMAXPROCS
reflects the cgroup limit (Go 1.19+), so all helpers derive their counts from
GOMAXPROCS:

	n := workers.ForCPU(8) // one per CPU, at most 8

Decoding and hashing images is CPU-bound, so scans use [ForCPU] unless the
operator sets a count explicitly, either with the SCAN_WORKERS environment
variable or the scan --workers flag (see [Resolve]).
*/
package workers
