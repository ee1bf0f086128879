package metrics

import "source-seeker/internal/filesystem"

type filesystemObserver struct{}

// NewFilesystemObserver returns the observer to install with
// filesystem.SetObserver.
func NewFilesystemObserver() filesystem.Observer {
	return filesystemObserver{}
}

func (filesystemObserver) ObserveOperation(volume, operation string, durationSeconds float64, retried bool, err error) {
	FilesystemOperationDuration.WithLabelValues(volume, operation).Observe(durationSeconds)
	if retried {
		FilesystemRetryDuration.WithLabelValues(operation, volume).Observe(durationSeconds)
	}
	if err != nil {
		FilesystemOperationErrors.WithLabelValues(volume, operation).Inc()
	}
}

func (filesystemObserver) ObserveRetry(operation, volume string, event filesystem.RetryEvent) {
	switch event {
	case filesystem.RetryStale:
		FilesystemStaleErrors.WithLabelValues(operation, volume).Inc()
	case filesystem.RetryAttempt:
		FilesystemRetryAttempts.WithLabelValues(operation, volume).Inc()
	case filesystem.RetrySuccess:
		FilesystemRetrySuccess.WithLabelValues(operation, volume).Inc()
	case filesystem.RetryFailure:
		FilesystemRetryFailures.WithLabelValues(operation, volume).Inc()
	}
}
