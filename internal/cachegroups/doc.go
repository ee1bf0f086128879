// Package cachegroups presents the fingerprint cache as folder-level groups.
//
// Every cached path is attributed to the registered scan root that contains
// it with the longest prefix. Containment respects path separators, so the
// root /data/photos does not claim /data/photos2/a.jpg. Paths outside every
// root fall back to their parent directory. Groups can be removed in bulk,
// which deletes the cache entries for the folder and all of its subfolders.
package cachegroups
