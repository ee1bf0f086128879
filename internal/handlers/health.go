package handlers

import (
	"net/http"
	"runtime"
	"time"

	"source-seeker/internal/logging"
	"source-seeker/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Ready    bool   `json:"ready"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Scanning bool   `json:"scanning"`
	Error    string `json:"error,omitempty"`

	// Cache summary
	CachedFiles int `json:"cachedFiles"`
	ScanRoots   int `json:"scanRoots"`

	// Memory backpressure, present when a limit is configured
	MemoryLimit  int64   `json:"memoryLimit,omitempty"`
	MemoryUsage  float64 `json:"memoryUsage,omitempty"`
	MemoryPaused bool    `json:"memoryPaused"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:       statusHealthy,
		Ready:        true,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Scanning:     h.controller.Running(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}
	if h.memory != nil && h.memory.Limit() > 0 {
		response.MemoryLimit = h.memory.Limit()
		response.MemoryUsage = h.memory.Usage()
		response.MemoryPaused = h.memory.Paused()
	}

	stats, err := h.db.Stats(r.Context())
	if err != nil {
		logging.Warn("Health check could not read cache stats: %v", err)
		response.Status = statusDegraded
		response.Ready = false
		response.Error = err.Error()
		writeJSONStatusCode(w, response, http.StatusServiceUnavailable)
		return
	}
	response.CachedFiles = stats.Files
	response.ScanRoots = stats.Roots

	writeJSONStatusCode(w, response, http.StatusOK)
}

// LivenessCheck always returns 200 while the server is running
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the cache database is reachable and
// fingerprinting is not paused for memory.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		writeJSONStatusCode(w, map[string]string{"status": "not_ready"}, http.StatusServiceUnavailable)
		return
	}
	if h.memory != nil && h.memory.Paused() {
		writeJSONStatusCode(w, map[string]string{"status": "memory_pressure"}, http.StatusServiceUnavailable)
		return
	}
	writeJSONStatus(w, "ready")
}

// GetVersion returns the application version and build information
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeJSONStatusCode(w, startup.GetBuildInfo(), http.StatusOK)
}
