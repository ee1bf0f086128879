package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"source-seeker/internal/cachegroups"
	"source-seeker/internal/database"
	"source-seeker/internal/scanner"
)

// MemoryStatus reports whether fingerprinting is held back by memory
// pressure. *memory.Monitor implements it.
type MemoryStatus interface {
	Paused() bool
	Usage() float64
	Limit() int64
}

// Handlers holds the dependencies shared by all HTTP handlers.
type Handlers struct {
	db         *database.Database
	controller *scanner.Controller
	grouper    *cachegroups.Grouper
	memory     MemoryStatus
	startTime  time.Time
}

// New creates the HTTP handlers.
func New(db *database.Database, controller *scanner.Controller, grouper *cachegroups.Grouper) *Handlers {
	return &Handlers{
		db:         db,
		controller: controller,
		grouper:    grouper,
		startTime:  time.Now(),
	}
}

// SetMemoryStatus makes the health and readiness checks report m.
func (h *Handlers) SetMemoryStatus(m MemoryStatus) {
	h.memory = m
}

// MetricsHandler serves the Prometheus registry.
func (h *Handlers) MetricsHandler() http.Handler {
	return promhttp.Handler()
}
