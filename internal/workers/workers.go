package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvOverride names the environment variable that pins the worker count.
const EnvOverride = "SCAN_WORKERS"

// Count returns the number of workers for a task with the given CPU
// multiplier. It respects container CPU limits via GOMAXPROCS.
//
//   - 1.0 for CPU-bound tasks (decoding and hashing images)
//   - 2.0 for I/O-bound tasks
//   - 1.5 for mixed tasks
//
// limit caps the result; 0 means no cap. SCAN_WORKERS overrides the
// calculation but is still capped by limit.
func Count(multiplier float64, limit int) int {
	if n, ok := envCount(); ok {
		return capped(n, limit)
	}

	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if workers < 1 {
		workers = 1
	}
	return capped(workers, limit)
}

// Resolve returns configured when it is positive, otherwise the CPU-bound
// default. Callers pass an explicit value from flags or configuration.
func Resolve(configured, limit int) int {
	if configured > 0 {
		return capped(configured, limit)
	}
	return ForCPU(limit)
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

func envCount() (int, bool) {
	override := os.Getenv(EnvOverride)
	if override == "" {
		return 0, false
	}
	count, err := strconv.Atoi(override)
	if err != nil || count <= 0 {
		return 0, false
	}
	return count, true
}

func capped(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	return n
}
