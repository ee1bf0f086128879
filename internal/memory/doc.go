// Package memory keeps fingerprinting within the container's memory budget.
//
// Decoding a large photograph briefly needs tens of megabytes, and a scan
// decodes one image per worker at a time. In a container this can exceed
// the memory limit long before the Go runtime would collect on its own.
//
// [ConfigureFromEnv] sets GOMEMLIMIT from MEMORY_LIMIT and MEMORY_RATIO
// (typically supplied through the Kubernetes Downward API) unless GOMEMLIMIT
// is already set.
//
// [Monitor] samples heap usage and, above the critical water mark, forces a
// collection and holds back the next batch of fingerprint computations until
// usage drops below the high water mark. The scan engine consults it through
// its Throttle interface:
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//	engine.SetThrottle(monitor)
package memory
