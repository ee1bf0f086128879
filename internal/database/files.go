package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"source-seeker/internal/metrics"
	"source-seeker/internal/pathkey"
)

// LoadAll returns every cached entry keyed by path. The map is a private
// copy; later writes to the store do not affect it.
func (d *Database) LoadAll(ctx context.Context) (entries map[string]CachedEntry, err error) {
	start := time.Now()
	defer func() { recordQuery("load_all", start, err) }()

	rows, err := d.db.QueryContext(ctx, "SELECT path, mtime, fingerprint FROM files")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries = make(map[string]CachedEntry)
	for rows.Next() {
		var path string
		var e CachedEntry
		if err = rows.Scan(&path, &e.ModTime, &e.Fingerprint); err != nil {
			return nil, err
		}
		entries[path] = e
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// UpsertFile inserts or replaces a file record within a transaction.
func (d *Database) UpsertFile(ctx context.Context, tx *sql.Tx, rec FileRecord) error {
	_, err := tx.ExecContext(ctx, upsertFileQuery, rec.Path, rec.ModTime, rec.Fingerprint)
	return err
}

const upsertFileQuery = `
	INSERT INTO files (path, mtime, fingerprint)
	VALUES (?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		mtime = excluded.mtime,
		fingerprint = excluded.fingerprint
`

// UpsertFiles writes all records in a single transaction. Either every
// record is stored or none is.
func (d *Database) UpsertFiles(ctx context.Context, recs []FileRecord) (err error) {
	if len(recs) == 0 {
		return nil
	}

	start := time.Now()
	defer func() { recordQuery("upsert_files", start, err) }()

	tx, err := d.BeginBatch(ctx)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}

	for _, rec := range recs {
		if err = d.UpsertFile(ctx, tx, rec); err != nil {
			err = fmt.Errorf("upsert %s: %w", rec.Path, err)
			break
		}
	}

	if err = d.EndBatch(tx, err); err != nil {
		return err
	}
	metrics.DBRowsAffected.WithLabelValues("upsert_files").Observe(float64(len(recs)))
	return nil
}

// AllPaths returns every cached path in ascending order.
func (d *Database) AllPaths(ctx context.Context) (paths []string, err error) {
	start := time.Now()
	defer func() { recordQuery("all_paths", start, err) }()

	return d.queryStrings(ctx, "SELECT path FROM files ORDER BY path")
}

// DeleteByPathPrefix removes the record for folder itself and every record
// beneath it, together with scan roots at or beneath folder, in one
// transaction. Only whole path components match: removing "/a/b" leaves
// "/a/bc/x.jpg" alone. It returns the number of file records removed.
func (d *Database) DeleteByPathPrefix(ctx context.Context, folder string) (removed int64, err error) {
	start := time.Now()
	defer func() { recordQuery("delete_prefix", start, err) }()

	if folder == "" {
		return 0, fmt.Errorf("refusing to delete an empty folder prefix")
	}

	tx, err := d.BeginBatch(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin batch: %w", err)
	}

	if d.foldCase {
		removed, err = d.deleteFolded(ctx, tx, folder)
	} else {
		removed, err = deleteRange(ctx, tx, folder)
	}

	if err = d.EndBatch(tx, err); err != nil {
		return 0, err
	}
	if removed > 0 {
		metrics.DBRowsAffected.WithLabelValues("delete_prefix").Observe(float64(removed))
	}
	return removed, nil
}

// deleteRange deletes by exact match plus a half-open range over the
// separator-terminated prefix, which is served by the primary key index.
func deleteRange(ctx context.Context, tx *sql.Tx, folder string) (int64, error) {
	folder = pathkey.Normalize(folder, false)
	prefix := pathkey.WithSeparator(folder)
	upper, ok := pathkey.UpperBound(prefix)
	if !ok {
		return 0, fmt.Errorf("no upper bound for prefix %q", prefix)
	}

	var removed int64
	for _, table := range []string{"files", "scan_roots"} {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM "+table+" WHERE path = ? OR (path >= ? AND path < ?)",
			folder, prefix, upper)
		if err != nil {
			return 0, fmt.Errorf("delete from %s: %w", table, err)
		}
		if table == "files" {
			if removed, err = res.RowsAffected(); err != nil {
				return 0, err
			}
		}
	}
	return removed, nil
}

// deleteFolded compares case-insensitively, matching how paths are grouped
// on platforms with case-insensitive filesystems.
func (d *Database) deleteFolded(ctx context.Context, tx *sql.Tx, folder string) (int64, error) {
	root := pathkey.Normalize(folder, true)

	var removed int64
	for _, table := range []string{"files", "scan_roots"} {
		paths, err := txStrings(ctx, tx, "SELECT path FROM "+table)
		if err != nil {
			return 0, fmt.Errorf("list %s: %w", table, err)
		}

		stmt, err := tx.PrepareContext(ctx, "DELETE FROM "+table+" WHERE path = ?")
		if err != nil {
			return 0, err
		}
		for _, p := range paths {
			if !pathkey.Within(root, pathkey.Normalize(p, true)) {
				continue
			}
			if _, err := stmt.ExecContext(ctx, p); err != nil {
				stmt.Close()
				return 0, fmt.Errorf("delete %s: %w", p, err)
			}
			if table == "files" {
				removed++
			}
		}
		if err := stmt.Close(); err != nil {
			return 0, err
		}
	}
	return removed, nil
}

func (d *Database) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}

func txStrings(ctx context.Context, tx *sql.Tx, query string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
