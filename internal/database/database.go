package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"source-seeker/internal/logging"
	"source-seeker/internal/metrics"
	"source-seeker/internal/pathkey"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// FileName is the name of the cache file inside the database directory.
const FileName = "image_hashes.db"

// Database manages all fingerprint cache operations.
type Database struct {
	db      *sql.DB
	dbPath  string
	mu      sync.Mutex // serializes writers
	txStart time.Time  // guarded by mu between BeginBatch and EndBatch

	// foldCase selects case-insensitive prefix deletion.
	foldCase bool
}

// New opens or creates the cache at dbPath.
// dbPath is the full path to the database FILE and its parent directory must
// already exist and be writable. Opening an existing cache is a no-op apart
// from connecting.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:       db,
		dbPath:   dbPath,
		foldCase: pathkey.FoldCase,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Debug("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { recordQuery("initialize_schema", start, err) }()

	schema := `
	CREATE TABLE IF NOT EXISTS files (
		path TEXT PRIMARY KEY,
		mtime REAL NOT NULL,
		fingerprint TEXT NOT NULL
	);

	-- Folders a scan has been started on; used only for grouping
	CREATE TABLE IF NOT EXISTS scan_roots (
		path TEXT PRIMARY KEY
	);
	`

	_, err = d.db.ExecContext(ctx, schema)
	return err
}

// Path returns the location of the database file.
func (d *Database) Path() string {
	return d.dbPath
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// BeginBatch starts a write transaction. The caller must call EndBatch.
// Only one batch may be open at a time.
func (d *Database) BeginBatch(ctx context.Context) (*sql.Tx, error) {
	d.mu.Lock()
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		d.mu.Unlock()
		return nil, err
	}
	d.txStart = time.Now()
	return tx, nil
}

// EndBatch commits the transaction when err is nil and rolls it back
// otherwise. The returned error includes err.
func (d *Database) EndBatch(tx *sql.Tx, err error) error {
	defer d.mu.Unlock()
	duration := time.Since(d.txStart).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	return tx.Commit()
}

// Vacuum reclaims space after large removals.
func (d *Database) Vacuum(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { recordQuery("vacuum", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "VACUUM")
	return err
}

// Stats returns row counts and the on-disk size of the cache.
func (d *Database) Stats(ctx context.Context) (stats IndexStats, err error) {
	start := time.Now()
	defer func() { recordQuery("stats", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM files), (SELECT COUNT(*) FROM scan_roots)
	`).Scan(&stats.Files, &stats.Roots)
	if err != nil {
		return IndexStats{}, err
	}

	for _, suffix := range []string{"", "-wal", "-shm"} {
		if info, statErr := os.Stat(d.dbPath + suffix); statErr == nil {
			stats.SizeBytes += info.Size()
		}
	}
	return stats, nil
}

// IndexStats implements metrics.StatsProvider.
func (d *Database) IndexStats(ctx context.Context) (metrics.Stats, error) {
	s, err := d.Stats(ctx)
	if err != nil {
		return metrics.Stats{}, err
	}
	d.UpdateDBMetrics()
	return metrics.Stats{IndexedFiles: s.Files, ScanRoots: s.Roots, SizeBytes: s.SizeBytes}, nil
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics updates database connection metrics
func (d *Database) UpdateDBMetrics() {
	metrics.DBConnectionsOpen.Set(float64(d.db.Stats().OpenConnections))
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}
	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile) // Explicitly ignore cleanup error

	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", p, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 == 0 {
			logging.Warn("%s is read-only! Mode: %v - this will cause write failures", p, info.Mode())
			if chmodErr := os.Chmod(p, 0o600); chmodErr != nil {
				logging.Error("Failed to fix permissions on %s: %v", p, chmodErr)
			} else {
				logging.Info("Fixed permissions on %s", p)
			}
		}
	}

	return nil
}

// Ping verifies the database is reachable.
func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return d.db.PingContext(ctx)
}
