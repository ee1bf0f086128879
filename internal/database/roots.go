package database

import (
	"context"
	"time"
)

// RegisterRoot records folder as a scan root. Registering an existing root
// is a no-op.
func (d *Database) RegisterRoot(ctx context.Context, folder string) (err error) {
	start := time.Now()
	defer func() { recordQuery("register_root", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err = d.db.ExecContext(ctx, "INSERT OR IGNORE INTO scan_roots (path) VALUES (?)", folder)
	return err
}

// AllRoots returns every registered scan root in ascending order.
func (d *Database) AllRoots(ctx context.Context) (roots []string, err error) {
	start := time.Now()
	defer func() { recordQuery("all_roots", start, err) }()

	return d.queryStrings(ctx, "SELECT path FROM scan_roots ORDER BY path")
}
