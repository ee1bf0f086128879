// Package database is the persistent fingerprint cache.
//
// Two tables are kept in a single SQLite file:
//   - files(path, mtime, fingerprint): one row per fingerprinted image
//   - scan_roots(path): folders a scan has been started on, used for grouping
//
// Scans read the whole files table once ([Database.LoadAll]) and write back
// new or changed entries in batches ([Database.UpsertFiles]). Folder removal
// ([Database.DeleteByPathPrefix]) matches whole path components only and
// never uses LIKE, so wildcard characters in real paths are literal.
//
// The database uses WAL mode and assumes a single writing process.
package database
