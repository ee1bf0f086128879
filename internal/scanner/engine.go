package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"source-seeker/internal/database"
	"source-seeker/internal/filesystem"
	"source-seeker/internal/fingerprint"
	"source-seeker/internal/imagetypes"
	"source-seeker/internal/logging"
	"source-seeker/internal/metrics"
	"source-seeker/internal/workers"
)

// Store is the part of the fingerprint cache a scan reads and writes.
type Store interface {
	RegisterRoot(ctx context.Context, folder string) error
	LoadAll(ctx context.Context) (map[string]database.CachedEntry, error)
	UpsertFiles(ctx context.Context, recs []database.FileRecord) error
}

// Throttle holds back fingerprint computation while memory is short.
// WaitIfPaused blocks until work may proceed and returns false once the
// throttle has been stopped.
type Throttle interface {
	WaitIfPaused() bool
}

// Engine starts scans against one store.
type Engine struct {
	store    Store
	codec    *fingerprint.Codec
	cfg      Config
	workers  int
	retry    filesystem.RetryConfig
	throttle Throttle
}

// NewEngine validates cfg and returns an engine writing to store.
func NewEngine(store Store, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	codec, err := fingerprint.NewCodec(cfg.GridSize)
	if err != nil {
		return nil, err
	}
	return &Engine{
		store:   store,
		codec:   codec,
		cfg:     cfg,
		workers: workers.Resolve(cfg.Workers, 0),
		retry:   filesystem.DefaultRetryConfig(),
	}, nil
}

// Config returns the engine settings.
func (e *Engine) Config() Config {
	return e.cfg
}

// SetThrottle installs t, which is consulted before each window of
// fingerprint computations.
// Call it before starting scans.
func (e *Engine) SetThrottle(t Throttle) {
	e.throttle = t
}

// Scan is one running or finished scan.
type Scan struct {
	engine    *Engine
	root      string
	reference string
	startedAt time.Time

	// retry and codec label filesystem metrics under the scan's root.
	retry filesystem.RetryConfig
	codec *fingerprint.Codec

	results *Mailbox[Match]
	events  *Mailbox[Event]

	cancelled atomic.Bool
	done      chan struct{}
	outcome   Outcome
	err       error

	discovered atomic.Int64
	processed  atomic.Int64
	cacheHits  atomic.Int64
	computed   atomic.Int64
	skipped    atomic.Int64
	matches    atomic.Int64
	persisted  atomic.Int64
}

// Start launches a scan of root for images similar to reference and returns
// immediately. Cancelling ctx has the same effect as Scan.Cancel. The root
// is made absolute and symlinks in it are resolved, so cached paths do not
// depend on the working directory and a linked folder is walked.
func (e *Engine) Start(ctx context.Context, root, reference string) *Scan {
	root = resolveRoot(root)
	rc := e.retry
	rc.VolumeResolver = filesystem.NewVolumeResolver(map[string]string{"scan": root})
	s := &Scan{
		engine:    e,
		root:      root,
		reference: reference,
		startedAt: time.Now(),
		retry:     rc,
		codec:     e.codec.WithRetry(rc),
		results:   newMailbox[Match](),
		events:    newMailbox[Event](),
		done:      make(chan struct{}),
	}
	go s.run(ctx)
	return s
}

// resolveRoot returns root as an absolute path with symlinks evaluated.
// filepath.WalkDir does not descend into a root that is itself a link. A
// root that cannot be resolved is returned absolute and left to the walk.
func resolveRoot(root string) string {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		return resolved
	}
	return root
}

// Results returns the match mailbox.
func (s *Scan) Results() *Mailbox[Match] { return s.results }

// Events returns the status, progress and lifecycle mailbox.
func (s *Scan) Events() *Mailbox[Event] { return s.events }

// Root returns the folder being scanned.
func (s *Scan) Root() string { return s.root }

// Reference returns the reference image path.
func (s *Scan) Reference() string { return s.reference }

// StartedAt returns when the scan was started.
func (s *Scan) StartedAt() time.Time { return s.startedAt }

// Cancel asks the scan to stop at the next file or directory entry.
// It does not wait.
func (s *Scan) Cancel() {
	s.cancelled.Store(true)
}

// Done is closed after the terminal event has been queued.
func (s *Scan) Done() <-chan struct{} { return s.done }

// Wait blocks until the scan has finished and returns its outcome.
func (s *Scan) Wait() (Outcome, error) {
	<-s.done
	return s.outcome, s.err
}

// Outcome returns OutcomeRunning until the scan has finished.
func (s *Scan) Outcome() (Outcome, error) {
	select {
	case <-s.done:
		return s.outcome, s.err
	default:
		return OutcomeRunning, nil
	}
}

// Summary returns the current counters. It is safe to call while running.
func (s *Scan) Summary() Summary {
	return Summary{
		Discovered: s.discovered.Load(),
		Processed:  s.processed.Load(),
		CacheHits:  s.cacheHits.Load(),
		Computed:   s.computed.Load(),
		Skipped:    s.skipped.Load(),
		Matches:    s.matches.Load(),
		Persisted:  s.persisted.Load(),
	}
}

func (s *Scan) status(format string, args ...any) {
	s.events.push(Event{Kind: EventStatus, Text: fmt.Sprintf(format, args...)})
}

func (s *Scan) progress(percent int) {
	s.events.push(Event{Kind: EventProgress, Percent: percent})
}

func (s *Scan) stopRequested(ctx context.Context) bool {
	return s.cancelled.Load() || ctx.Err() != nil
}

func (s *Scan) run(ctx context.Context) {
	defer close(s.done)

	metrics.ScanIsRunning.Set(1)
	defer metrics.ScanIsRunning.Set(0)

	logging.Info("Scan started: root=%s reference=%s", s.root, s.reference)

	outcome, err := s.execute(ctx)

	duration := time.Since(s.startedAt)
	metrics.ScansTotal.WithLabelValues(outcome.String()).Inc()
	metrics.ScanLastDuration.Set(duration.Seconds())

	sum := s.Summary()
	switch outcome {
	case OutcomeFailed:
		logging.Error("Scan failed after %v: %v", duration, err)
	default:
		logging.Info("Scan %s in %v: %d processed, %d cached, %d computed, %d skipped, %d matches",
			outcome, duration, sum.Processed, sum.CacheHits, sum.Computed, sum.Skipped, sum.Matches)
	}

	s.outcome, s.err = outcome, err
	s.events.push(Event{Kind: EventDone, Outcome: outcome, Err: err})
}

func (s *Scan) execute(ctx context.Context) (Outcome, error) {
	e := s.engine
	// Writes must survive cancellation so computed fingerprints are kept.
	storeCtx := context.WithoutCancel(ctx)

	if err := e.store.RegisterRoot(storeCtx, s.root); err != nil {
		return OutcomeFailed, fmt.Errorf("%w: register root: %w", ErrStore, err)
	}

	s.status("Calculating input hash...")
	ref, err := s.codec.FromFile(s.reference)
	if err != nil {
		s.status("Error: Could not read input image.")
		return OutcomeFailed, fmt.Errorf("%w: %w", ErrReferenceUnreadable, err)
	}

	s.status("Loading cache into memory...")
	snapshot, err := e.store.LoadAll(storeCtx)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("%w: load cache: %w", ErrStore, err)
	}
	logging.Debug("Loaded %d cached fingerprints", len(snapshot))

	s.status("Scanning directory...")
	candidates := s.discover(ctx)
	if s.stopRequested(ctx) {
		return OutcomeCancelled, nil
	}

	total := len(candidates)
	if total == 0 {
		s.progress(100)
		s.status("Processed 0 images")
		return OutcomeCompleted, nil
	}

	s.status("Processing %d images...", total)

	p := &pass{scan: s, ref: ref, snapshot: snapshot, total: total, storeCtx: storeCtx}
	window := e.workers * windowPerWorker

	for start := 0; start < total; start += window {
		end := min(start+window, total)

		slots, stopped := p.prepare(ctx, candidates[start:end])
		p.hash(ctx, slots)
		halted, err := p.consume(ctx, slots)
		if err != nil {
			return OutcomeFailed, err
		}

		if stopped || halted {
			if err := p.flush(); err != nil {
				return OutcomeFailed, err
			}
			return OutcomeCancelled, nil
		}
	}

	if err := p.flush(); err != nil {
		return OutcomeFailed, err
	}
	s.status("Scan Complete.")
	return OutcomeCompleted, nil
}

// discover walks the root in lexical order and returns every supported
// image. Unreadable entries are skipped.
func (s *Scan) discover(ctx context.Context) []string {
	every := s.engine.cfg.DiscoveryEvery
	var found []string

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if s.stopRequested(ctx) {
			return fs.SkipAll
		}
		if err != nil {
			logging.Debug("Skipping %s: %v", path, err)
			return nil
		}
		if d.IsDir() || !imagetypes.IsCandidate(d.Name()) {
			return nil
		}

		found = append(found, path)
		if n := len(found); n%every == 0 {
			s.discovered.Store(int64(n))
			s.status("Found %d files...", n)
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.SkipAll) {
		logging.Warn("Walk of %s ended early: %v", s.root, err)
	}

	s.discovered.Store(int64(len(found)))
	return found
}

// pass holds the mutable state of the processing phase. Only the scan
// goroutine touches it, apart from the slots written by hash.
type pass struct {
	scan     *Scan
	ref      fingerprint.Fingerprint
	snapshot map[string]database.CachedEntry
	total    int
	index    int
	staged   []database.FileRecord
	storeCtx context.Context
}

type slot struct {
	path    string
	info    os.FileInfo
	mtime   float64
	fp      fingerprint.Fingerprint
	cached  bool
	err     error
	needsFP bool
	// abandoned marks a miss whose computation was not started because the
	// scan was cancelled first.
	abandoned bool
}

// prepare stats each path and resolves cache hits. It stops early when a
// cancel is observed and reports that it did.
func (p *pass) prepare(ctx context.Context, paths []string) ([]slot, bool) {
	slots := make([]slot, 0, len(paths))
	bits := p.scan.engine.codec.Bits()

	for _, path := range paths {
		if p.scan.stopRequested(ctx) {
			return slots, true
		}

		sl := slot{path: path}
		info, err := filesystem.StatWithRetry(path, p.scan.retry)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			sl.err = fmt.Errorf("%w: %s", ErrFileVanished, path)
		case err != nil:
			sl.err = fmt.Errorf("%w: stat %s: %w", fingerprint.ErrUnreadable, path, err)
		default:
			sl.info = info
			sl.mtime = modTime(info)
			if fp, ok := p.lookup(path, sl.mtime, bits); ok {
				sl.fp, sl.cached = fp, true
			} else {
				sl.needsFP = true
			}
		}
		slots = append(slots, sl)
	}
	return slots, false
}

// lookup returns the cached fingerprint for path when it is still valid for
// mtime and has the codec's width.
func (p *pass) lookup(path string, mtime float64, bits int) (fingerprint.Fingerprint, bool) {
	entry, ok := p.snapshot[path]
	if !ok || entry.ModTime != mtime {
		return fingerprint.Fingerprint{}, false
	}
	fp, err := fingerprint.Parse(entry.Fingerprint)
	if err != nil || fp.Bits() != bits {
		logging.Debug("Ignoring cached fingerprint for %s: width %d, want %d (%v)", path, fp.Bits(), bits, err)
		return fingerprint.Fingerprint{}, false
	}
	return fp, true
}

// hash computes the missing fingerprints concurrently. Each goroutine
// writes only its own slot. Once a cancel is seen no further computation
// starts, so at most one file per worker is still decoded after it.
func (p *pass) hash(ctx context.Context, slots []slot) {
	if t := p.scan.engine.throttle; t != nil && needsHashing(slots) {
		if !t.WaitIfPaused() {
			logging.Debug("Memory throttle stopped, hashing without backpressure")
		}
	}

	var g errgroup.Group
	g.SetLimit(p.scan.engine.workers)

	for i := range slots {
		if !slots[i].needsFP {
			continue
		}
		sl := &slots[i]
		if p.scan.stopRequested(ctx) {
			sl.abandoned = true
			continue
		}
		g.Go(func() error {
			if p.scan.stopRequested(ctx) {
				sl.abandoned = true
				return nil
			}
			fp, err := p.scan.codec.FromFile(sl.path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					err = fmt.Errorf("%w: %w", ErrFileVanished, err)
				}
				sl.err = err
				return nil
			}
			sl.fp = fp
			return nil
		})
	}
	_ = g.Wait() // workers never return an error
}

func needsHashing(slots []slot) bool {
	for i := range slots {
		if slots[i].needsFP {
			return true
		}
	}
	return false
}

// consume handles slots in enumeration order: it stages new fingerprints,
// emits matches and progress, and flushes full batches. It halts at the
// first slot reached after a cancel and reports that it did; fingerprints
// already computed for the rest of the window are still staged.
func (p *pass) consume(ctx context.Context, slots []slot) (bool, error) {
	s := p.scan
	cfg := s.engine.cfg

	for i := range slots {
		sl := &slots[i]
		if sl.abandoned || s.stopRequested(ctx) {
			p.stageComputed(slots[i:])
			return true, nil
		}
		p.index++

		switch {
		case sl.err != nil:
			s.skipped.Add(1)
			metrics.ScanFilesProcessed.WithLabelValues("skipped").Inc()
			if !errors.Is(sl.err, ErrFileVanished) {
				logging.Debug("Skipping unreadable image: %v", sl.err)
			}
		default:
			if sl.cached {
				s.cacheHits.Add(1)
				metrics.ScanFilesProcessed.WithLabelValues("cache_hit").Inc()
			} else {
				s.computed.Add(1)
				metrics.ScanFilesProcessed.WithLabelValues("computed").Inc()
				p.staged = append(p.staged, database.FileRecord{
					Path:        sl.path,
					ModTime:     sl.mtime,
					Fingerprint: sl.fp.Hex(),
				})
			}
			p.compare(sl)
		}
		s.processed.Add(1)

		if p.index%cfg.ProgressEvery == 0 || p.index == p.total {
			s.progress(p.index * 100 / p.total)
			s.status("Scanning: %d/%d", p.index, p.total)
		}

		if len(p.staged) >= cfg.FlushEvery {
			if err := p.flush(); err != nil {
				return false, err
			}
		}
	}
	return false, nil
}

// stageComputed keeps the fingerprints a cancelled window already paid for.
// The files are not reported or counted as processed.
func (p *pass) stageComputed(slots []slot) {
	for i := range slots {
		sl := &slots[i]
		if !sl.needsFP || sl.abandoned || sl.err != nil {
			continue
		}
		p.scan.computed.Add(1)
		p.staged = append(p.staged, database.FileRecord{
			Path:        sl.path,
			ModTime:     sl.mtime,
			Fingerprint: sl.fp.Hex(),
		})
	}
}

func (p *pass) compare(sl *slot) {
	d, err := fingerprint.Distance(p.ref, sl.fp)
	if err != nil {
		logging.Debug("Cannot compare %s: %v", sl.path, err)
		return
	}
	if d > p.scan.engine.cfg.Threshold {
		return
	}

	p.scan.matches.Add(1)
	metrics.ScanMatchesTotal.Inc()
	p.scan.results.push(Match{
		Path:      sl.path,
		Name:      filepath.Base(sl.path),
		SizeBytes: sl.info.Size(),
		SizeLabel: SizeLabel(sl.info.Size()),
		Distance:  d,
	})
}

// flush persists every staged record in one transaction.
func (p *pass) flush() error {
	if len(p.staged) == 0 {
		return nil
	}
	n := len(p.staged)
	if err := p.scan.engine.store.UpsertFiles(p.storeCtx, p.staged); err != nil {
		return fmt.Errorf("%w: persist %d fingerprints: %w", ErrStore, n, err)
	}
	p.scan.persisted.Add(int64(n))
	metrics.ScanUpsertsFlushed.Add(float64(n))
	logging.Debug("Persisted %d fingerprints", n)
	p.staged = p.staged[:0]
	return nil
}

// modTime converts a file's modification time to fractional epoch seconds.
func modTime(info os.FileInfo) float64 {
	return float64(info.ModTime().UnixNano()) / 1e9
}
