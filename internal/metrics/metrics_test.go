package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"source-seeker/internal/filesystem"
)

func TestMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"HTTPRequestsTotal", HTTPRequestsTotal},
		{"HTTPRequestDuration", HTTPRequestDuration},
		{"HTTPRequestsInFlight", HTTPRequestsInFlight},
		{"DBQueryTotal", DBQueryTotal},
		{"DBQueryDuration", DBQueryDuration},
		{"DBTransactionDuration", DBTransactionDuration},
		{"ScansTotal", ScansTotal},
		{"ScanFilesProcessed", ScanFilesProcessed},
		{"FingerprintDuration", FingerprintDuration},
		{"FilesystemStaleErrors", FilesystemStaleErrors},
		{"MemoryPaused", MemoryPaused},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestInitializeMetrics(t *testing.T) {
	InitializeMetrics()

	if n := testutil.CollectAndCount(ScansTotal); n != 3 {
		t.Errorf("ScansTotal series = %d, want 3", n)
	}
	if n := testutil.CollectAndCount(ScanFilesProcessed); n != 3 {
		t.Errorf("ScanFilesProcessed series = %d, want 3", n)
	}
}

func TestFilesystemObserver(t *testing.T) {
	obs := NewFilesystemObserver()

	before := testutil.ToFloat64(FilesystemOperationErrors.WithLabelValues("scan", "stat"))
	obs.ObserveOperation("scan", "stat", 0.001, false, errors.New("boom"))
	obs.ObserveOperation("scan", "stat", 0.001, true, nil)
	after := testutil.ToFloat64(FilesystemOperationErrors.WithLabelValues("scan", "stat"))

	if after-before != 1 {
		t.Errorf("error counter delta = %v, want 1", after-before)
	}

	staleBefore := testutil.ToFloat64(FilesystemStaleErrors.WithLabelValues("open", "scan"))
	obs.ObserveRetry("open", "scan", filesystem.RetryStale)
	if got := testutil.ToFloat64(FilesystemStaleErrors.WithLabelValues("open", "scan")) - staleBefore; got != 1 {
		t.Errorf("stale counter delta = %v, want 1", got)
	}
}
