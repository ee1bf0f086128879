package cachegroups

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"source-seeker/internal/filesystem"
	"source-seeker/internal/logging"
	"source-seeker/internal/pathkey"
)

// FolderStatus reports whether a group's folder still exists on disk.
type FolderStatus string

const (
	// StatusFound means the folder exists.
	StatusFound FolderStatus = "Found"
	// StatusMissing means the folder could not be found.
	StatusMissing FolderStatus = "Missing"
)

// FolderGroup is one row of the cache manager view.
type FolderGroup struct {
	Folder string       `json:"folder"`
	Count  int          `json:"count"`
	Status FolderStatus `json:"status"`
}

// RemoveResult reports the outcome of removing one folder.
type RemoveResult struct {
	Folder  string `json:"folder"`
	Removed int64  `json:"removed"`
	Error   string `json:"error,omitempty"`
}

// Store is the subset of the cache used for grouping and removal.
type Store interface {
	AllPaths(ctx context.Context) ([]string, error)
	AllRoots(ctx context.Context) ([]string, error)
	DeleteByPathPrefix(ctx context.Context, folder string) (int64, error)
}

// Grouper lists and removes folder groups of a Store.
type Grouper struct {
	store Store
	retry filesystem.RetryConfig
}

// New returns a Grouper over store.
func New(store Store) *Grouper {
	return &Grouper{store: store, retry: filesystem.DefaultRetryConfig()}
}

// ListGroups recomputes every group from the store, sorted by folder.
func (g *Grouper) ListGroups(ctx context.Context) ([]FolderGroup, error) {
	paths, err := g.store.AllPaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cached paths: %w", err)
	}
	roots, err := g.store.AllRoots(ctx)
	if err != nil {
		return nil, fmt.Errorf("list scan roots: %w", err)
	}

	counts := GroupByFolder(paths, roots)
	groups := make([]FolderGroup, 0, len(counts))
	for folder, n := range counts {
		groups = append(groups, FolderGroup{
			Folder: folder,
			Count:  n,
			Status: g.status(folder),
		})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Folder < groups[j].Folder })
	return groups, nil
}

// RemoveGroups deletes each folder and everything beneath it. Each folder is
// removed atomically; a failure on one folder does not stop the others. The
// returned error joins every per-folder failure.
func (g *Grouper) RemoveGroups(ctx context.Context, folders []string) ([]RemoveResult, error) {
	results := make([]RemoveResult, 0, len(folders))
	var errs []error

	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		res := RemoveResult{Folder: folder}
		n, err := g.store.DeleteByPathPrefix(ctx, folder)
		if err != nil {
			res.Error = err.Error()
			errs = append(errs, fmt.Errorf("remove %s: %w", folder, err))
			logging.Error("Failed to remove cache group %s: %v", folder, err)
		} else {
			res.Removed = n
			logging.Info("Removed %d cached fingerprints under %s", n, folder)
		}
		results = append(results, res)
	}

	return results, errors.Join(errs...)
}

// Status reports whether folder exists on disk.
func Status(folder string) FolderStatus {
	return statusWith(folder, filesystem.DefaultRetryConfig())
}

func (g *Grouper) status(folder string) FolderStatus {
	return statusWith(folder, g.retry)
}

func statusWith(folder string, rc filesystem.RetryConfig) FolderStatus {
	info, err := filesystem.StatWithRetry(folder, rc)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Debug("stat %s: %v", folder, err)
		}
		return StatusMissing
	}
	if !info.IsDir() {
		return StatusMissing
	}
	return StatusFound
}

type normalizedRoot struct {
	original string
	key      string
}

// GroupByFolder counts paths per folder. A path belongs to the registered
// root with the longest containing prefix; when two roots normalize to the
// same key the lexicographically smallest one wins. Paths outside every root
// are counted under their parent directory.
func GroupByFolder(paths, roots []string) map[string]int {
	return groupByFolder(paths, roots, pathkey.FoldCase)
}

func groupByFolder(paths, roots []string, fold bool) map[string]int {
	sorted := make([]string, len(roots))
	copy(sorted, roots)
	sort.Strings(sorted)

	norm := make([]normalizedRoot, 0, len(sorted))
	for _, r := range sorted {
		if r == "" {
			continue
		}
		norm = append(norm, normalizedRoot{original: r, key: pathkey.Normalize(r, fold)})
	}

	counts := make(map[string]int)
	for _, p := range paths {
		key := pathkey.Normalize(p, fold)

		best, bestLen := "", -1
		for _, r := range norm {
			if len(r.key) > bestLen && pathkey.Within(r.key, key) {
				best, bestLen = r.original, len(r.key)
			}
		}
		if bestLen < 0 {
			best = filepath.Dir(p)
		}
		counts[best]++
	}
	return counts
}
