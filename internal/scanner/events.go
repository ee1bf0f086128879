package scanner

import (
	"errors"
	"fmt"
)

var (
	// ErrFileVanished marks a candidate that disappeared between discovery
	// and processing. Such files are skipped silently.
	ErrFileVanished = errors.New("file vanished")

	// ErrStore wraps any failure of the fingerprint cache. It ends the scan.
	ErrStore = errors.New("cache store failure")

	// ErrReferenceUnreadable is reported when the reference image cannot be
	// fingerprinted. No candidate is processed.
	ErrReferenceUnreadable = errors.New("reference image unreadable")
)

// EventKind tags the variant held by an Event.
type EventKind int

const (
	// EventStatus carries a human readable phase description in Text.
	EventStatus EventKind = iota
	// EventProgress carries a completion percentage in Percent.
	EventProgress
	// EventDone is always the last event of a scan and carries Outcome.
	EventDone
)

func (k EventKind) String() string {
	switch k {
	case EventStatus:
		return "status"
	case EventProgress:
		return "progress"
	case EventDone:
		return "done"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Outcome is the terminal state of a scan.
type Outcome int

const (
	// OutcomeRunning is reported for a scan that has not finished.
	OutcomeRunning Outcome = iota
	OutcomeCompleted
	OutcomeCancelled
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRunning:
		return "running"
	case OutcomeCompleted:
		return "completed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(o))
	}
}

// Event is a status, progress or done notification. Only the fields of the
// variant named by Kind are meaningful.
type Event struct {
	Kind    EventKind
	Text    string
	Percent int
	Outcome Outcome
	Err     error
}

// Match is an image within the distance threshold of the reference.
type Match struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	SizeBytes int64  `json:"sizeBytes"`
	SizeLabel string `json:"sizeLabel"`
	Distance  int    `json:"distance"`
}

// SizeLabel formats a byte count in mebibytes with two decimals.
func SizeLabel(size int64) string {
	return fmt.Sprintf("%.2f MB", float64(size)/(1024*1024))
}

// Summary counts what a scan did.
type Summary struct {
	Discovered int64 `json:"discovered"`
	Processed  int64 `json:"processed"`
	CacheHits  int64 `json:"cacheHits"`
	Computed   int64 `json:"computed"`
	Skipped    int64 `json:"skipped"`
	Matches    int64 `json:"matches"`
	Persisted  int64 `json:"persisted"`
}
