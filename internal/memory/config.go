package memory

import (
	"fmt"
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"source-seeker/internal/logging"
)

// DefaultMemoryRatio is the share of the container limit given to the Go
// heap. The remainder covers decoder buffers outside the heap and goroutine
// stacks.
const DefaultMemoryRatio = 0.85

// ConfigResult describes how the soft memory limit was chosen.
type ConfigResult struct {
	Configured     bool
	Source         string // "GOMEMLIMIT", "MEMORY_LIMIT" or "none"
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// ConfigureFromEnv sets the runtime soft memory limit from the container
// limit. Call it early in main, before the cache snapshot is loaded.
//
//   - GOMEMLIMIT: honoured as-is when set
//   - MEMORY_LIMIT: container limit in bytes
//   - MEMORY_RATIO: share of MEMORY_LIMIT for the heap (default 0.85)
func ConfigureFromEnv() ConfigResult {
	if v := os.Getenv("GOMEMLIMIT"); v != "" {
		result := ConfigResult{Source: "GOMEMLIMIT"}
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", v)
		return result
	}

	result, err := resolveLimit(os.Getenv("MEMORY_LIMIT"), os.Getenv("MEMORY_RATIO"))
	if err != nil {
		logging.Warn("%v", err)
	}
	if !result.Configured {
		logging.Debug("MEMORY_LIMIT not usable, GOMEMLIMIT left unset")
		return result
	}

	debug.SetMemoryLimit(result.GoMemLimit)
	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		mebibytes(result.GoMemLimit), result.Ratio*100, mebibytes(result.ContainerLimit))
	return result
}

// resolveLimit computes the heap limit from the raw environment values. A
// bad ratio falls back to DefaultMemoryRatio and is reported alongside a
// usable result.
func resolveLimit(limitStr, ratioStr string) (ConfigResult, error) {
	result := ConfigResult{Source: "none"}
	if limitStr == "" {
		return result, nil
	}

	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil || limit <= 0 {
		return result, fmt.Errorf("invalid MEMORY_LIMIT %q", limitStr)
	}

	ratio := DefaultMemoryRatio
	var ratioErr error
	if ratioStr != "" {
		parsed, err := strconv.ParseFloat(ratioStr, 64)
		if err != nil || parsed <= 0 || parsed > 1 {
			ratioErr = fmt.Errorf("MEMORY_RATIO %q must be in (0, 1], using %.2f", ratioStr, DefaultMemoryRatio)
		} else {
			ratio = parsed
		}
	}

	return ConfigResult{
		Configured:     true,
		Source:         "MEMORY_LIMIT",
		ContainerLimit: limit,
		GoMemLimit:     int64(float64(limit) * ratio),
		Ratio:          ratio,
	}, ratioErr
}

func mebibytes(b int64) string {
	return fmt.Sprintf("%.1f MiB", float64(b)/(1024*1024))
}
