package database

// FileRecord is one fingerprinted file. ModTime is the file's modification
// time in seconds since the epoch; the fingerprint is valid only while the
// file on disk still reports the same value.
type FileRecord struct {
	Path        string  `json:"path"`
	ModTime     float64 `json:"mtime"`
	Fingerprint string  `json:"fingerprint"`
}

// CachedEntry is the value side of a LoadAll snapshot.
type CachedEntry struct {
	ModTime     float64
	Fingerprint string
}

// IndexStats summarizes the cache contents.
type IndexStats struct {
	Files     int   `json:"files"`
	Roots     int   `json:"roots"`
	SizeBytes int64 `json:"sizeBytes"`
}
