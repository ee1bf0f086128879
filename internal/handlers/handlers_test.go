package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"source-seeker/internal/cachegroups"
	"source-seeker/internal/database"
	"source-seeker/internal/scanner"
	"source-seeker/internal/startup"
)

// gatedStore blocks LoadAll until gate is closed so tests can observe a
// running scan.
type gatedStore struct {
	*database.Database
	gate chan struct{}
}

func (g *gatedStore) LoadAll(ctx context.Context) (map[string]database.CachedEntry, error) {
	if g.gate != nil {
		<-g.gate
	}
	return g.Database.LoadAll(ctx)
}

func setupTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), database.FileName))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func setupHandlers(t *testing.T, gate chan struct{}) (*Handlers, *database.Database) {
	t.Helper()
	db := setupTestDB(t)

	cfg := scanner.DefaultConfig()
	cfg.Workers = 1
	engine, err := scanner.NewEngine(&gatedStore{Database: db, gate: gate}, cfg)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return New(db, scanner.NewController(engine), cachegroups.New(db)), db
}

func writeImage(t *testing.T, path string, mask uint64) {
	t.Helper()
	img := imaging.New(8, 8, color.Black)
	for i := 0; i < 64; i++ {
		if mask&(1<<uint(63-i)) != 0 {
			img.Set(i%8, i/8, color.White)
		}
	}
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("failed to save %s: %v", path, err)
	}
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func waitForScan(t *testing.T, h *Handlers) {
	t.Helper()
	sess := h.controller.Current()
	if sess == nil {
		t.Fatal("no scan session")
	}
	select {
	case <-sess.Scan().Done():
	case <-time.After(30 * time.Second):
		t.Fatal("scan did not finish")
	}
}

// =============================================================================
// Health and version
// =============================================================================

func TestGetVersion(t *testing.T) {
	t.Parallel()

	h := &Handlers{}
	w := httptest.NewRecorder()
	h.GetVersion(w, httptest.NewRequest(http.MethodGet, "/version", http.NoBody))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", got)
	}

	var info startup.BuildInfo
	if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if info.Version != startup.Version || info.GoVersion == "" {
		t.Errorf("unexpected build info %+v", info)
	}
}

func TestLivenessCheck(t *testing.T) {
	t.Parallel()

	h := &Handlers{}
	for _, method := range []string{http.MethodGet, http.MethodHead} {
		w := httptest.NewRecorder()
		h.LivenessCheck(w, httptest.NewRequest(method, "/livez", http.NoBody))

		if w.Code != http.StatusOK {
			t.Errorf("%s: status %d, want 200", method, w.Code)
		}
		if method == http.MethodHead && w.Body.Len() != 0 {
			t.Errorf("HEAD response has a body: %q", w.Body.String())
		}
	}
}

func TestHealthCheck(t *testing.T) {
	h, db := setupHandlers(t, nil)
	ctx := context.Background()
	if err := db.UpsertFiles(ctx, []database.FileRecord{{Path: "/p/a.jpg", ModTime: 1, Fingerprint: "00"}}); err != nil {
		t.Fatal(err)
	}
	if err := db.RegisterRoot(ctx, "/p"); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	h.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	if w.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", w.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != statusHealthy || !resp.Ready || resp.Scanning {
		t.Errorf("unexpected health %+v", resp)
	}
	if resp.CachedFiles != 1 || resp.ScanRoots != 1 {
		t.Errorf("cache summary = %d files, %d roots", resp.CachedFiles, resp.ScanRoots)
	}
}

func TestHealthCheckDegradedWhenDatabaseClosed(t *testing.T) {
	h, db := setupHandlers(t, nil)
	db.Close()

	w := httptest.NewRecorder()
	h.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status %d, want 503", w.Code)
	}

	w = httptest.NewRecorder()
	h.ReadinessCheck(w, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("readiness status %d, want 503", w.Code)
	}
}

func TestReadinessCheck(t *testing.T) {
	h, _ := setupHandlers(t, nil)

	w := httptest.NewRecorder()
	h.ReadinessCheck(w, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
	if w.Code != http.StatusOK {
		t.Errorf("status %d, want 200", w.Code)
	}
}

type fakeMemory struct {
	paused bool
	usage  float64
	limit  int64
}

func (f *fakeMemory) Paused() bool   { return f.paused }
func (f *fakeMemory) Usage() float64 { return f.usage }
func (f *fakeMemory) Limit() int64   { return f.limit }

func TestHealthChecksReportMemoryPressure(t *testing.T) {
	h, _ := setupHandlers(t, nil)
	mem := &fakeMemory{usage: 0.5, limit: 1 << 30}
	h.SetMemoryStatus(mem)

	w := httptest.NewRecorder()
	h.ReadinessCheck(w, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
	if w.Code != http.StatusOK {
		t.Errorf("readiness below the limit = %d, want 200", w.Code)
	}

	mem.paused, mem.usage = true, 0.9

	w = httptest.NewRecorder()
	h.ReadinessCheck(w, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("readiness while paused = %d, want 503", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "memory_pressure" {
		t.Errorf("readiness body = %v", body)
	}

	w = httptest.NewRecorder()
	h.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.MemoryPaused || resp.MemoryUsage != 0.9 || resp.MemoryLimit != 1<<30 {
		t.Errorf("health memory fields = paused %v usage %v limit %d", resp.MemoryPaused, resp.MemoryUsage, resp.MemoryLimit)
	}
}

// =============================================================================
// Scans
// =============================================================================

func TestStartScanValidation(t *testing.T) {
	h, _ := setupHandlers(t, nil)
	folder := t.TempDir()

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"folder":`},
		{name: "unknown field", body: `{"folder":"` + folder + `","image":"x.png","extra":1}`},
		{name: "missing image", body: `{"folder":"` + folder + `"}`},
		{name: "missing folder", body: `{"image":"x.png"}`},
		{name: "folder does not exist", body: `{"folder":"` + filepath.Join(folder, "nope") + `","image":"x.png"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.StartScan(w, httptest.NewRequest(http.MethodPost, "/api/scan", bytes.NewBufferString(tt.body)))
			if w.Code != http.StatusBadRequest {
				t.Errorf("status %d, want 400 (%s)", w.Code, w.Body.String())
			}
		})
	}
	if h.controller.Current() != nil {
		t.Error("a rejected request started a scan")
	}
}

func TestGetScanBeforeAnyScan(t *testing.T) {
	h, _ := setupHandlers(t, nil)

	w := httptest.NewRecorder()
	h.GetScan(w, httptest.NewRequest(http.MethodGet, "/api/scan", http.NoBody))
	if w.Code != http.StatusNotFound {
		t.Errorf("status %d, want 404", w.Code)
	}
}

func TestScanLifecycle(t *testing.T) {
	h, _ := setupHandlers(t, nil)

	folder := t.TempDir()
	reference := filepath.Join(t.TempDir(), "ref.png")
	writeImage(t, reference, 0x00000000ffffffff)
	writeImage(t, filepath.Join(folder, "same.png"), 0x00000000ffffffff)
	writeImage(t, filepath.Join(folder, "other.png"), 0xffffffff00000000)

	w := httptest.NewRecorder()
	h.StartScan(w, jsonRequest(t, http.MethodPost, "/api/scan", ScanRequest{Folder: folder, Image: reference}))
	if w.Code != http.StatusAccepted {
		t.Fatalf("start status %d: %s", w.Code, w.Body.String())
	}
	var started ScanStarted
	if err := json.NewDecoder(w.Body).Decode(&started); err != nil {
		t.Fatal(err)
	}
	if want, _ := filepath.EvalSymlinks(folder); started.ID == "" || started.Folder != want {
		t.Errorf("started = %+v", started)
	}

	waitForScan(t, h)

	w = httptest.NewRecorder()
	h.GetScan(w, httptest.NewRequest(http.MethodGet, "/api/scan", http.NoBody))
	if w.Code != http.StatusOK {
		t.Fatalf("poll status %d", w.Code)
	}
	var state ScanState
	if err := json.NewDecoder(w.Body).Decode(&state); err != nil {
		t.Fatal(err)
	}

	if state.ID != started.ID || state.State != "completed" || state.Error != "" {
		t.Errorf("state = %s (%s), id %s", state.State, state.Error, state.ID)
	}
	if len(state.Matches) != 1 || state.Matches[0].Name != "same.png" || state.Matches[0].Distance != 0 {
		t.Errorf("matches = %+v", state.Matches)
	}
	if state.Progress != 100 || state.Status != "Scan Complete." {
		t.Errorf("progress %d status %q", state.Progress, state.Status)
	}
	last := state.Events[len(state.Events)-1]
	if last.Kind != "done" || last.Outcome != "completed" {
		t.Errorf("last event = %+v", last)
	}
	if state.Summary.Processed != 2 {
		t.Errorf("summary = %+v", state.Summary)
	}

	target := "/api/scan?events=" + strconv.Itoa(state.NextEvent) + "&matches=" + strconv.Itoa(state.NextMatch)
	w = httptest.NewRecorder()
	h.GetScan(w, httptest.NewRequest(http.MethodGet, target, http.NoBody))
	var again ScanState
	if err := json.NewDecoder(w.Body).Decode(&again); err != nil {
		t.Fatal(err)
	}
	if len(again.Events) != 0 || len(again.Matches) != 0 {
		t.Errorf("poll past the end returned %d events, %d matches", len(again.Events), len(again.Matches))
	}
}

func TestScanConflictAndCancel(t *testing.T) {
	gate := make(chan struct{})
	h, _ := setupHandlers(t, gate)

	folder := t.TempDir()
	reference := filepath.Join(t.TempDir(), "ref.png")
	writeImage(t, reference, 0x0f0f0f0f0f0f0f0f)

	body := ScanRequest{Folder: folder, Image: reference}

	w := httptest.NewRecorder()
	h.StartScan(w, jsonRequest(t, http.MethodPost, "/api/scan", body))
	if w.Code != http.StatusAccepted {
		t.Fatalf("first start status %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.StartScan(w, jsonRequest(t, http.MethodPost, "/api/scan", body))
	if w.Code != http.StatusConflict {
		t.Errorf("second start status %d, want 409", w.Code)
	}

	w = httptest.NewRecorder()
	h.RemoveCacheGroups(w, jsonRequest(t, http.MethodDelete, "/api/cache/groups", RemoveGroupsRequest{Folders: []string{folder}}))
	if w.Code != http.StatusConflict {
		t.Errorf("remove during scan status %d, want 409", w.Code)
	}

	w = httptest.NewRecorder()
	h.CancelScan(w, httptest.NewRequest(http.MethodPost, "/api/scan/cancel", http.NoBody))
	if w.Code != http.StatusOK {
		t.Errorf("cancel status %d, want 200", w.Code)
	}
	close(gate)
	waitForScan(t, h)

	w = httptest.NewRecorder()
	h.GetScan(w, httptest.NewRequest(http.MethodGet, "/api/scan", http.NoBody))
	var state ScanState
	if err := json.NewDecoder(w.Body).Decode(&state); err != nil {
		t.Fatal(err)
	}
	if state.State != "cancelled" {
		t.Errorf("state = %s, want cancelled", state.State)
	}

	w = httptest.NewRecorder()
	h.CancelScan(w, httptest.NewRequest(http.MethodPost, "/api/scan/cancel", http.NoBody))
	if w.Code != http.StatusConflict {
		t.Errorf("cancel with no scan status %d, want 409", w.Code)
	}
}

func TestScanWithUnreadableReferenceReportsFailure(t *testing.T) {
	h, _ := setupHandlers(t, nil)

	w := httptest.NewRecorder()
	h.StartScan(w, jsonRequest(t, http.MethodPost, "/api/scan", ScanRequest{
		Folder: t.TempDir(),
		Image:  filepath.Join(t.TempDir(), "missing.png"),
	}))
	if w.Code != http.StatusAccepted {
		t.Fatalf("start status %d", w.Code)
	}
	waitForScan(t, h)

	w = httptest.NewRecorder()
	h.GetScan(w, httptest.NewRequest(http.MethodGet, "/api/scan", http.NoBody))
	var state ScanState
	if err := json.NewDecoder(w.Body).Decode(&state); err != nil {
		t.Fatal(err)
	}
	if state.State != "failed" || state.Error == "" {
		t.Errorf("state = %s, error %q", state.State, state.Error)
	}
	if state.Status != "Error: Could not read input image." {
		t.Errorf("status = %q", state.Status)
	}
}

// =============================================================================
// Cache management
// =============================================================================

func TestCacheGroupsListAndRemove(t *testing.T) {
	h, db := setupHandlers(t, nil)
	ctx := context.Background()

	recs := []database.FileRecord{
		{Path: "/data/photos/a.jpg", ModTime: 1, Fingerprint: "00"},
		{Path: "/data/photos/sub/b.jpg", ModTime: 1, Fingerprint: "00"},
		{Path: "/data/photos2/c.jpg", ModTime: 1, Fingerprint: "00"},
	}
	if err := db.UpsertFiles(ctx, recs); err != nil {
		t.Fatal(err)
	}
	if err := db.RegisterRoot(ctx, "/data/photos"); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	h.ListCacheGroups(w, httptest.NewRequest(http.MethodGet, "/api/cache/groups", http.NoBody))
	if w.Code != http.StatusOK {
		t.Fatalf("list status %d", w.Code)
	}
	var groups []cachegroups.FolderGroup
	if err := json.NewDecoder(w.Body).Decode(&groups); err != nil {
		t.Fatal(err)
	}
	if len(groups) != 2 || groups[0].Folder != "/data/photos" || groups[0].Count != 2 ||
		groups[1].Folder != "/data/photos2" || groups[1].Count != 1 {
		t.Fatalf("groups = %+v", groups)
	}

	w = httptest.NewRecorder()
	h.RemoveCacheGroups(w, jsonRequest(t, http.MethodDelete, "/api/cache/groups", RemoveGroupsRequest{Folders: []string{"/data/photos"}}))
	if w.Code != http.StatusOK {
		t.Fatalf("remove status %d: %s", w.Code, w.Body.String())
	}
	var removed RemoveGroupsResponse
	if err := json.NewDecoder(w.Body).Decode(&removed); err != nil {
		t.Fatal(err)
	}
	if removed.Removed != 2 {
		t.Errorf("removed = %d, want 2", removed.Removed)
	}

	w = httptest.NewRecorder()
	h.GetCacheStats(w, httptest.NewRequest(http.MethodGet, "/api/cache/stats", http.NoBody))
	var stats database.IndexStats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.Files != 1 || stats.Roots != 0 {
		t.Errorf("stats after removal = %+v", stats)
	}
}

func TestListCacheGroupsEmpty(t *testing.T) {
	h, _ := setupHandlers(t, nil)

	w := httptest.NewRecorder()
	h.ListCacheGroups(w, httptest.NewRequest(http.MethodGet, "/api/cache/groups", http.NoBody))
	if body := bytes.TrimSpace(w.Body.Bytes()); string(body) != "[]" {
		t.Errorf("empty list body = %s, want []", body)
	}
}

func TestRemoveCacheGroupsValidation(t *testing.T) {
	h, _ := setupHandlers(t, nil)

	for _, body := range []string{`not json`, `{"folders":[]}`} {
		w := httptest.NewRecorder()
		h.RemoveCacheGroups(w, httptest.NewRequest(http.MethodDelete, "/api/cache/groups", bytes.NewBufferString(body)))
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status %d, want 400", body, w.Code)
		}
	}
}

func TestQueryOffset(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 0},
		{"events=7", 7},
		{"events=-3", 0},
		{"events=x", 0},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/scan?"+tt.query, http.NoBody)
		if got := queryOffset(r, "events"); got != tt.want {
			t.Errorf("queryOffset(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}
