package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"source-seeker/internal/logging"
)

// VolumeResolver maps file paths to known volume names for metric labeling.
// It uses longest-prefix matching on absolute paths.
type VolumeResolver struct {
	// mounts is sorted by path length descending for longest-prefix matching
	mounts []volumeMount
}

type volumeMount struct {
	path string // absolute path with trailing separator (e.g., "/photos/")
	name string // volume label (e.g., "scan")
}

// NewVolumeResolver creates a resolver from a map of volume name → path.
// A scan labels its own root:
//
//	NewVolumeResolver(map[string]string{"scan": "/photos"})
func NewVolumeResolver(volumes map[string]string) *VolumeResolver {
	mounts := make([]volumeMount, 0, len(volumes))
	for name, path := range volumes {
		absPath, err := filepath.Abs(path)
		if err != nil {
			absPath = filepath.Clean(path)
		}
		mounts = append(mounts, volumeMount{path: withTrailingSeparator(absPath), name: name})
	}

	sort.Slice(mounts, func(i, j int) bool {
		if len(mounts[i].path) != len(mounts[j].path) {
			return len(mounts[i].path) > len(mounts[j].path)
		}
		return mounts[i].name < mounts[j].name
	})

	return &VolumeResolver{mounts: mounts}
}

// Resolve returns the volume name for a given file path.
// Returns "unknown" if the path doesn't match any configured volume.
func (vr *VolumeResolver) Resolve(path string) string {
	if vr == nil {
		return "unknown"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "unknown"
	}

	// The trailing separator lets the mount directory itself match.
	candidate := withTrailingSeparator(absPath)
	for _, mount := range vr.mounts {
		if strings.HasPrefix(candidate, mount.path) {
			return mount.name
		}
	}

	return "unknown"
}

func withTrailingSeparator(p string) string {
	if strings.HasSuffix(p, string(filepath.Separator)) {
		return p
	}
	return p + string(filepath.Separator)
}

// RetryConfig configures retry behavior for filesystem operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// VolumeResolver labels metrics. If nil, operations are "unknown".
	VolumeResolver *VolumeResolver
}

// DefaultRetryConfig returns sensible defaults for NFS retry behavior
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

func (c *RetryConfig) resolveVolume(path string) string {
	return c.VolumeResolver.Resolve(path)
}

// isNFSStaleError checks if an error is an NFS stale file handle error
func isNFSStaleError(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ESTALE
	}

	return false
}

// StatWithRetry performs os.Stat with retry logic for NFS stale file handle errors
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	return withRetry("stat", path, config, os.Stat)
}

// OpenWithRetry performs os.Open with retry logic for NFS stale file handle errors
func OpenWithRetry(path string, config RetryConfig) (*os.File, error) {
	return withRetry("open", path, config, os.Open)
}

// withRetry runs op until it succeeds, fails with a non-ESTALE error, or the
// retry budget is exhausted. Backoff doubles after each stale attempt up to
// config.MaxBackoff.
func withRetry[T any](opName, path string, config RetryConfig, op func(string) (T, error)) (T, error) {
	start := time.Now()
	volume := config.resolveVolume(path)
	obs := observe()
	backoff := config.InitialBackoff

	var (
		result T
		err    error
	)
	attempt := 0
	for ; ; attempt++ {
		result, err = op(path)
		if err == nil || !isNFSStaleError(err) {
			break
		}
		obs.ObserveRetry(opName, volume, RetryStale)
		if attempt == config.MaxRetries {
			logging.Warn("NFS %s failed after %d retries for %s: %v", opName, config.MaxRetries, path, err)
			obs.ObserveRetry(opName, volume, RetryFailure)
			break
		}

		obs.ObserveRetry(opName, volume, RetryAttempt)
		logging.Debug("NFS %s stale file handle for %s, retrying in %v (attempt %d/%d)",
			opName, path, backoff, attempt+1, config.MaxRetries)
		time.Sleep(backoff)
		backoff = min(backoff*2, config.MaxBackoff)
	}

	if err == nil && attempt > 0 {
		logging.Info("NFS %s succeeded on retry %d for %s", opName, attempt, path)
		obs.ObserveRetry(opName, volume, RetrySuccess)
	}
	obs.ObserveOperation(volume, opName, time.Since(start).Seconds(), attempt > 0, err)

	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
