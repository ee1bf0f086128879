// Command cachectl inspects and prunes the source-seeker fingerprint cache.
//
// Usage:
//
//	cachectl <command> [folder...]
//
// Commands:
//
//	list     Show each cached folder with its file count and whether it
//	         still exists on disk (Found or Missing). Files are grouped
//	         under the deepest registered scan root that contains them.
//
//	remove   Delete the cached fingerprints of the given folders and all
//	         of their subfolders, plus any scan roots inside them. On a
//	         terminal the removal must be confirmed.
//
//	stats    Show fingerprint and scan root counts and the size on disk.
//
//	vacuum   Rebuild the database file to reclaim space after removals.
//
// Environment:
//
//	DATABASE_DIR - Path to cache directory (default: ~/.source-seeker)
//
// Run cachectl while no scan is in progress; the cache assumes a single
// writer.
package main
