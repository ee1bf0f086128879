package scanner

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"source-seeker/internal/logging"
)

var (
	// ErrScanInProgress is returned by Controller.Start while a scan runs.
	ErrScanInProgress = errors.New("a scan is already running")

	// ErrNoActiveScan is returned by Controller.Cancel when nothing runs.
	ErrNoActiveScan = errors.New("no scan is running")
)

// Controller owns at most one running scan and keeps the log of the most
// recent one for readers that poll by offset.
type Controller struct {
	engine *Engine

	mu      sync.Mutex
	current *Session
}

// NewController returns a controller starting scans on engine.
func NewController(engine *Engine) *Controller {
	return &Controller{engine: engine}
}

// Start begins a new scan unless one is still running. The scan is not tied
// to ctx; it runs until it finishes or is cancelled.
func (c *Controller) Start(ctx context.Context, root, reference string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil && c.current.Running() {
		return nil, ErrScanInProgress
	}

	scan := c.engine.Start(context.WithoutCancel(ctx), root, reference)
	sess := newSession(uuid.NewString(), scan)
	c.current = sess
	go sess.collect()

	logging.Info("Scan session %s started", sess.ID)
	return sess, nil
}

// Cancel requests cancellation of the running scan.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || !c.current.Running() {
		return ErrNoActiveScan
	}
	c.current.scan.Cancel()
	logging.Info("Scan session %s cancel requested", c.current.ID)
	return nil
}

// WhileIdle calls fn unless a scan is running. No scan can start until fn
// returns. It returns ErrScanInProgress without calling fn when a scan runs.
func (c *Controller) WhileIdle(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil && c.current.Running() {
		return ErrScanInProgress
	}
	return fn()
}

// Current returns the most recent session, or nil before the first scan.
func (c *Controller) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Running reports whether a scan is in progress.
func (c *Controller) Running() bool {
	sess := c.Current()
	return sess != nil && sess.Running()
}

// Session accumulates everything a scan has reported so far.
type Session struct {
	ID   string
	scan *Scan

	mu      sync.RWMutex
	events  []Event
	matches []Match
}

func newSession(id string, scan *Scan) *Session {
	return &Session{ID: id, scan: scan}
}

// Scan returns the underlying scan.
func (s *Session) Scan() *Scan { return s.scan }

// Running reports whether the scan has not finished.
func (s *Session) Running() bool {
	select {
	case <-s.scan.Done():
		return false
	default:
		return true
	}
}

// collect moves mailbox contents into the session log until the scan ends.
func (s *Session) collect() {
	for {
		select {
		case <-s.scan.Events().Ready():
			s.drain()
		case <-s.scan.Results().Ready():
			s.drain()
		case <-s.scan.Done():
			s.drain()
			return
		}
	}
}

// drain holds mu while draining so concurrent callers keep log order.
func (s *Session) drain() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, s.scan.Events().Drain()...)
	s.matches = append(s.matches, s.scan.Results().Drain()...)
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	SessionID  string
	Root       string
	Reference  string
	Running    bool
	Outcome    Outcome
	Err        error
	Progress   int
	LastStatus string
	Summary    Summary
	Events     []Event
	Matches    []Match
	NextEvent  int
	NextMatch  int
}

// Since returns the events and matches logged at or after the given offsets.
// Out of range offsets yield empty slices.
func (s *Session) Since(eventOffset, matchOffset int) Snapshot {
	// Read the outcome first so a finished scan's log is complete.
	outcome, err := s.scan.Outcome()
	if outcome != OutcomeRunning {
		s.drain()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Events:    tail(s.events, eventOffset),
		Matches:   tail(s.matches, matchOffset),
		NextEvent: len(s.events),
		NextMatch: len(s.matches),
		Outcome:   outcome,
		Err:       err,
		Summary:   s.scan.Summary(),
		Running:   outcome == OutcomeRunning,
		Root:      s.scan.Root(),
		Reference: s.scan.Reference(),
		SessionID: s.ID,
	}
	for i := len(s.events) - 1; i >= 0; i-- {
		ev := s.events[i]
		if ev.Kind == EventProgress && snap.Progress == 0 {
			snap.Progress = ev.Percent
		}
		if ev.Kind == EventStatus && snap.LastStatus == "" {
			snap.LastStatus = ev.Text
		}
		if snap.Progress != 0 && snap.LastStatus != "" {
			break
		}
	}
	return snap
}

func tail[T any](items []T, offset int) []T {
	if offset < 0 || offset >= len(items) {
		return nil
	}
	out := make([]T, len(items)-offset)
	copy(out, items[offset:])
	return out
}
