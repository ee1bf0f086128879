package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"source-seeker/internal/cachegroups"
	"source-seeker/internal/database"
	"source-seeker/internal/filesystem"
	"source-seeker/internal/handlers"
	"source-seeker/internal/logging"
	"source-seeker/internal/memory"
	"source-seeker/internal/metrics"
	"source-seeker/internal/middleware"
	"source-seeker/internal/scanner"
	"source-seeker/internal/startup"
)

const (
	shutdownTimeout  = 30 * time.Second
	metricsInterval  = time.Minute
	scanStopDeadline = 20 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the scan and cache API over HTTP",
		Long: `Serve exposes scans and cache management over a JSON API. One scan runs
at a time; clients start it with POST /api/scan and poll GET /api/scan for
events and matches.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	startTime := time.Now()

	memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	metrics.InitializeMetrics()
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	stats, err := db.Stats(context.Background())
	if err != nil {
		logging.Warn("Failed to read cache statistics: %v", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart), stats)

	scanConfig := config.ScanConfig()
	startup.LogScanEngineInit(scanConfig)
	engine, err := scanner.NewEngine(db, scanConfig)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Warn("Database close error: %v", closeErr)
		}
		return fmt.Errorf("invalid scan settings: %w", err)
	}

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()
	engine.SetThrottle(monitor)

	controller := scanner.NewController(engine)
	h := handlers.New(db, controller, cachegroups.New(db))
	h.SetMemoryStatus(monitor)

	router := setupRouter(h, config.MetricsEnabled)
	startup.LogHTTPSetup(router, config)

	var collector *metrics.Collector
	if config.MetricsEnabled {
		collector = metrics.NewCollector(db, metricsInterval)
		collector.Start()
	}

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           withMiddleware(router, config),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	g, gctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		startup.LogListening(config, time.Since(startTime))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		select {
		case sig := <-sigChan:
			logging.Info("Received %s, shutting down", sig)
		case <-gctx.Done():
			logging.Info("Server stopped, shutting down")
		}
		shutdown(srv, controller, monitor, collector, db)
		return nil
	})

	return g.Wait()
}

func setupRouter(h *handlers.Handlers, metricsEnabled bool) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")
	if metricsEnabled {
		r.Handle("/metrics", h.MetricsHandler()).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/scan", h.StartScan).Methods("POST")
	api.HandleFunc("/scan", h.GetScan).Methods("GET")
	api.HandleFunc("/scan/cancel", h.CancelScan).Methods("POST")
	api.HandleFunc("/cache/groups", h.ListCacheGroups).Methods("GET")
	api.HandleFunc("/cache/groups", h.RemoveCacheGroups).Methods("DELETE")
	api.HandleFunc("/cache/stats", h.GetCacheStats).Methods("GET")

	return r
}

// withMiddleware wraps the router with compression, logging and, when
// enabled, request metrics. Metrics is outermost so it times the whole chain.
func withMiddleware(router http.Handler, config *startup.Config) http.Handler {
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	handler := middleware.Logger(loggingConfig)(router)
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)
	if config.MetricsEnabled {
		handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)
	}
	return handler
}

func shutdown(srv *http.Server, controller *scanner.Controller, monitor *memory.Monitor, collector *metrics.Collector, db *database.Database) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	}

	session := controller.Current()
	if session != nil && session.Running() {
		logging.Info("Cancelling scan of %s", session.Scan().Root())
		session.Scan().Cancel()
	}

	// Stopping the monitor releases a scan held back by memory pressure.
	monitor.Stop()

	if session != nil && session.Running() {
		select {
		case <-session.Scan().Done():
			logging.Info("Scan stopped; computed fingerprints saved")
		case <-time.After(scanStopDeadline):
			logging.Warn("Active scan did not stop within %v", scanStopDeadline)
		}
	}

	if collector != nil {
		collector.Stop()
	}

	if err := db.Close(); err != nil {
		logging.Warn("Database close error: %v", err)
	}
	logging.Info("Shutdown complete")
}
