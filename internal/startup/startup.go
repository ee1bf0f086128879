package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"source-seeker/internal/database"
	"source-seeker/internal/fingerprint"
	"source-seeker/internal/logging"
	"source-seeker/internal/scanner"
	"source-seeker/internal/workers"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// DefaultDatabaseDirName is created under the user's home directory when
// DATABASE_DIR is not set.
const DefaultDatabaseDirName = ".source-seeker"

// Config holds all application configuration
type Config struct {
	DatabaseDir     string
	Port            string
	LogStaticFiles  bool
	LogHealthChecks bool
	MetricsEnabled  bool

	// Scan tuning
	Threshold      int
	HashSize       int
	FlushBatch     int
	ProgressEvery  int
	DiscoveryEvery int
	Workers        int

	// Derived paths
	DatabasePath string
}

// ScanConfig returns the scan engine settings held by c.
func (c *Config) ScanConfig() scanner.Config {
	return scanner.Config{
		Threshold:      c.Threshold,
		GridSize:       c.HashSize,
		FlushEvery:     c.FlushBatch,
		ProgressEvery:  c.ProgressEvery,
		DiscoveryEvery: c.DiscoveryEvery,
		Workers:        c.Workers,
	}
}

// LoadConfig logs the build and host, then loads and validates
// configuration from environment variables.
func LoadConfig() (*Config, error) {
	logBuild()
	return readConfig(logging.Info)
}

// ReadConfig is LoadConfig without the build line; settings are logged at
// debug level. Command line tools use it.
func ReadConfig() (*Config, error) {
	return readConfig(logging.Debug)
}

func readConfig(logf func(string, ...interface{})) (*Config, error) {
	logf("------------------------------------------------------------")
	logf("CONFIGURATION")
	logf("------------------------------------------------------------")

	defaults := scanner.DefaultConfig()

	databaseDir := getEnv("DATABASE_DIR", defaultDatabaseDir())
	port := getEnv("PORT", "8080")
	logStaticFiles := getEnvBool("LOG_STATIC_FILES", false)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", true)
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	threshold := getEnvInt("MATCH_THRESHOLD", defaults.Threshold)
	hashSize := getEnvInt("HASH_SIZE", defaults.GridSize)
	flushBatch := getEnvInt("FLUSH_BATCH", defaults.FlushEvery)
	progressEvery := getEnvInt("PROGRESS_EVERY", defaults.ProgressEvery)
	discoveryEvery := getEnvInt("DISCOVERY_EVERY", defaults.DiscoveryEvery)
	scanWorkers := getEnvInt(workers.EnvOverride, 0)

	logf("  DATABASE_DIR:        %s", databaseDir)
	logf("  PORT:                %s", port)
	logf("  METRICS_ENABLED:     %v", metricsEnabled)
	logf("  MATCH_THRESHOLD:     %d", threshold)
	logf("  HASH_SIZE:           %d", hashSize)
	logf("  FLUSH_BATCH:         %d", flushBatch)
	logf("  PROGRESS_EVERY:      %d", progressEvery)
	logf("  DISCOVERY_EVERY:     %d", discoveryEvery)
	if scanWorkers > 0 {
		logf("  SCAN_WORKERS:        %d", scanWorkers)
	} else {
		logf("  SCAN_WORKERS:        auto (%d)", workers.ForCPU(0))
	}
	logf("  LOG_STATIC_FILES:    %v", logStaticFiles)
	logf("  LOG_HEALTH_CHECKS:   %v", logHealthChecks)
	logf("  LOG_LEVEL:           %s", logging.GetLevel())

	if err := fingerprint.ValidateGridSize(hashSize); err != nil {
		logging.Warn("  Invalid HASH_SIZE (%v), using default: %d", err, defaults.GridSize)
		hashSize = defaults.GridSize
	}
	if threshold < 0 {
		logging.Warn("  Invalid MATCH_THRESHOLD, using default: %d", defaults.Threshold)
		threshold = defaults.Threshold
	}
	if flushBatch < 1 {
		logging.Warn("  Invalid FLUSH_BATCH, using default: %d", defaults.FlushEvery)
		flushBatch = defaults.FlushEvery
	}
	if progressEvery < 1 {
		logging.Warn("  Invalid PROGRESS_EVERY, using default: %d", defaults.ProgressEvery)
		progressEvery = defaults.ProgressEvery
	}
	if discoveryEvery < 1 {
		logging.Warn("  Invalid DISCOVERY_EVERY, using default: %d", defaults.DiscoveryEvery)
		discoveryEvery = defaults.DiscoveryEvery
	}
	if scanWorkers < 0 {
		scanWorkers = 0
	}

	logf("")
	logf("------------------------------------------------------------")
	logf("DIRECTORY SETUP")
	logf("------------------------------------------------------------")

	databaseDir, err := filepath.Abs(databaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logf("  Database directory (absolute): %s", databaseDir)

	if err := ensureDirectory(databaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}

	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(databaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for database): %w", err)
	}
	logf("  [OK] Database directory is writable")

	return &Config{
		DatabaseDir:     databaseDir,
		Port:            port,
		LogStaticFiles:  logStaticFiles,
		LogHealthChecks: logHealthChecks,
		MetricsEnabled:  metricsEnabled,
		Threshold:       threshold,
		HashSize:        hashSize,
		FlushBatch:      flushBatch,
		ProgressEvery:   progressEvery,
		DiscoveryEvery:  discoveryEvery,
		Workers:         scanWorkers,
		DatabasePath:    filepath.Join(databaseDir, database.FileName),
	}, nil
}

func defaultDatabaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDatabaseDirName
	}
	return filepath.Join(home, DefaultDatabaseDirName)
}

// LogDatabaseInit logs how long the cache took to open and what it holds.
func LogDatabaseInit(duration time.Duration, stats database.IndexStats) {
	logging.Info("")
	logging.Info("Cache opened in %v: %d fingerprints under %d roots, %s on disk",
		duration, stats.Files, stats.Roots, FormatBytes(stats.SizeBytes))
}

// LogScanEngineInit logs the scan engine settings
func LogScanEngineInit(cfg scanner.Config) {
	logging.Info("Scan engine: threshold %d bits, %dx%d grid, flush every %d, %d hash workers",
		cfg.Threshold, cfg.GridSize, cfg.GridSize, cfg.FlushEvery, workers.Resolve(cfg.Workers, 0))
}

// Routes lists the registered routes as "METHOD /path", sorted. A route
// registered without methods is listed as "ANY".
func Routes(router *mux.Router) ([]string, error) {
	var routes []string
	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		// Subrouter prefixes carry no handler.
		if route.GetHandler() == nil {
			return nil
		}
		path, err := route.GetPathTemplate()
		if err != nil {
			return err
		}
		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"ANY"}
		}
		for _, m := range methods {
			routes = append(routes, m+" "+path)
		}
		return nil
	})
	sort.Strings(routes)
	return routes, err
}

// LogHTTPSetup logs the route count and request logging switches. Each
// route is listed at debug level.
func LogHTTPSetup(router *mux.Router, cfg *Config) {
	routes, err := Routes(router)
	if err != nil {
		logging.Warn("error walking routes: %v", err)
	}
	logging.Info("HTTP: %d routes, request log health checks %s, static files %s",
		len(routes), onOff(cfg.LogHealthChecks), onOff(cfg.LogStaticFiles))
	for _, r := range routes {
		logging.Debug("  %s", r)
	}
}

// LogListening logs the listen address once startup is done.
func LogListening(cfg *Config, took time.Duration) {
	logging.Info("Listening on :%s after %v; start scans with POST /api/scan", cfg.Port, took.Round(time.Millisecond))
	if cfg.MetricsEnabled {
		logging.Info("Prometheus metrics on :%s/metrics", cfg.Port)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// FormatBytes renders a byte count with binary units.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func logBuild() {
	logging.Info("source-seeker %s (commit %s, built %s)", Version, Commit, BuildTime)
	logging.Info("%s %s/%s, %d CPUs, GOMAXPROCS %d",
		runtime.Version(), runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), runtime.GOMAXPROCS(0))
	if hostname, err := os.Hostname(); err == nil {
		logging.Debug("Hostname: %s", hostname)
	}
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
		// Don't return error since write access was confirmed
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
