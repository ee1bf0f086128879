package filesystem

import "sync/atomic"

// RetryEvent is a step in the stale handle retry loop.
type RetryEvent int

const (
	// RetryStale is recorded for every ESTALE result.
	RetryStale RetryEvent = iota
	// RetryAttempt is recorded before each retry.
	RetryAttempt
	// RetrySuccess is recorded when a retried operation succeeds.
	RetrySuccess
	// RetryFailure is recorded when the retry budget runs out.
	RetryFailure
)

// Observer receives filesystem timings and retry events. The metrics package
// implements it; filesystem cannot import metrics directly.
type Observer interface {
	// ObserveOperation records one finished stat or open, including any
	// retries. volume is the resolved label ("scan", "database", "unknown").
	ObserveOperation(volume, operation string, durationSeconds float64, retried bool, err error)

	// ObserveRetry records a retry loop event.
	ObserveRetry(operation, volume string, event RetryEvent)
}

type observerHolder struct{ o Observer }

var defaultObserver atomic.Pointer[observerHolder]

// SetObserver installs the process-wide observer. Passing nil disables
// recording.
func SetObserver(o Observer) {
	defaultObserver.Store(&observerHolder{o: o})
}

// observe returns the installed observer, or a no-op.
func observe() Observer {
	if h := defaultObserver.Load(); h != nil && h.o != nil {
		return h.o
	}
	return nopObserver{}
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string, float64, bool, error) {}
func (nopObserver) ObserveRetry(string, string, RetryEvent)               {}
