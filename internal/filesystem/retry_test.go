package filesystem

import (
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"syscall"
	"testing"
	"time"
)

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
	if config.VolumeResolver != nil {
		t.Error("VolumeResolver should be nil by default")
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "ESTALE error", err: syscall.ESTALE, want: true},
		{name: "wrapped ESTALE", err: &os.PathError{Op: "stat", Path: "/x", Err: syscall.ESTALE}, want: true},
		{name: "ENOENT error", err: syscall.ENOENT, want: false},
		{name: "generic error", err: os.ErrNotExist, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"scan":     "/data/photos",
		"database": "/var/lib/seeker",
	})

	tests := []struct {
		path string
		want string
	}{
		{"/data/photos", "scan"},
		{"/data/photos/a.jpg", "scan"},
		{"/data/photos/sub/b.png", "scan"},
		{"/data/photos2/c.png", "unknown"},
		{"/var/lib/seeker/image_hashes.db", "database"},
		{"/etc/passwd", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := vr.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve_LongestPrefixWins(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"outer": "/data",
		"inner": "/data/photos",
	})

	if got := vr.Resolve("/data/photos/x.jpg"); got != "inner" {
		t.Errorf("Resolve() = %q, want %q", got, "inner")
	}
	if got := vr.Resolve("/data/other/x.jpg"); got != "outer" {
		t.Errorf("Resolve() = %q, want %q", got, "outer")
	}
}

func TestVolumeResolver_Resolve_NilResolver(t *testing.T) {
	var vr *VolumeResolver
	if got := vr.Resolve("/anything"); got != "unknown" {
		t.Errorf("nil Resolve() = %q, want unknown", got)
	}
}

func TestRetryConfig_ResolveVolume_UsesConfigResolver(t *testing.T) {
	config := DefaultRetryConfig()
	config.VolumeResolver = NewVolumeResolver(map[string]string{"scan": "/data"})

	if got := config.resolveVolume("/data/a.jpg"); got != "scan" {
		t.Errorf("resolveVolume() = %q, want scan", got)
	}
}

func TestStatWithRetry_Success(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.jpg")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := StatWithRetry(path, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("StatWithRetry() error = %v", err)
	}
	if info.Size() != 5 {
		t.Errorf("Size() = %d, want 5", info.Size())
	}
}

func TestStatWithRetry_NotExistFailsFast(t *testing.T) {
	config := RetryConfig{MaxRetries: 3, InitialBackoff: time.Second, MaxBackoff: time.Second}

	start := time.Now()
	_, err := StatWithRetry(filepath.Join(t.TempDir(), "missing.jpg"), config)
	if !os.IsNotExist(err) {
		t.Fatalf("StatWithRetry() error = %v, want not-exist", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("non-stale error took %v, expected no backoff", elapsed)
	}
}

func TestOpenWithRetry_Success(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := OpenWithRetry(path, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry() error = %v", err)
	}
	if err := f.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

type recordingObserver struct {
	mu      sync.Mutex
	ops     int
	errs    int
	retried int
	events  map[RetryEvent]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{events: map[RetryEvent]int{}}
}

func (r *recordingObserver) ObserveOperation(_, _ string, _ float64, retried bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops++
	if retried {
		r.retried++
	}
	if err != nil {
		r.errs++
	}
}

func (r *recordingObserver) ObserveRetry(_, _ string, event RetryEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event]++
}

// Not parallel: swaps the package-level observer.
func TestWithRetry_RecoversFromStaleHandle(t *testing.T) {
	obs := newRecordingObserver()
	SetObserver(obs)
	t.Cleanup(func() { SetObserver(nil) })

	calls := 0
	op := func(string) (int, error) {
		calls++
		if calls < 3 {
			return 0, syscall.ESTALE
		}
		return 42, nil
	}

	config := RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	got, err := withRetry("stat", "/nfs/x", config, op)
	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}
	if got != 42 {
		t.Errorf("withRetry() = %d, want 42", got)
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
	want := map[RetryEvent]int{RetryStale: 2, RetryAttempt: 2, RetrySuccess: 1}
	if !reflect.DeepEqual(obs.events, want) {
		t.Errorf("retry events = %v, want %v", obs.events, want)
	}
	if obs.ops != 1 || obs.errs != 0 || obs.retried != 1 {
		t.Errorf("observer ops=%d errs=%d retried=%d, want 1, 0 and 1", obs.ops, obs.errs, obs.retried)
	}
}

func TestWithRetry_GivesUpAfterMaxRetries(t *testing.T) {
	obs := newRecordingObserver()
	SetObserver(obs)
	t.Cleanup(func() { SetObserver(nil) })

	calls := 0
	op := func(string) (int, error) {
		calls++
		return 0, syscall.ESTALE
	}

	config := RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	if _, err := withRetry("open", "/nfs/x", config, op); err == nil {
		t.Fatal("withRetry() expected error")
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
	want := map[RetryEvent]int{RetryStale: 3, RetryAttempt: 2, RetryFailure: 1}
	if !reflect.DeepEqual(obs.events, want) {
		t.Errorf("retry events = %v, want %v", obs.events, want)
	}
	if obs.errs != 1 {
		t.Errorf("observer errs=%d, want 1", obs.errs)
	}
}
