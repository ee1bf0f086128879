package metrics

import (
	"context"
	"sync"
	"time"

	"source-seeker/internal/logging"
)

// maxCollectTimeout bounds a single poll when the interval is long.
const maxCollectTimeout = 10 * time.Second

// StatsProvider reports the current size of the fingerprint cache.
type StatsProvider interface {
	IndexStats(ctx context.Context) (Stats, error)
}

// Stats is one sample of the cache contents.
type Stats struct {
	IndexedFiles int
	ScanRoots    int
	SizeBytes    int64
}

// Collector samples a StatsProvider on a fixed interval and publishes the
// result as gauges.
type Collector struct {
	provider StatsProvider
	interval time.Duration

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewCollector creates a collector. Nothing is sampled until Start.
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		provider: provider,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start samples once immediately, then on every tick until Stop.
func (c *Collector) Start() {
	go func() {
		defer close(c.done)
		c.run()
	}()
}

// Stop ends the sampling loop and waits for an in-flight sample. It is safe
// to call more than once, and before Start.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	select {
	case <-c.done:
	case <-time.After(c.timeout()):
	}
}

func (c *Collector) run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		c.collect()
		select {
		case <-ticker.C:
		case <-c.stop:
			return
		}
	}
}

func (c *Collector) timeout() time.Duration {
	return min(c.interval, maxCollectTimeout)
}

func (c *Collector) collect() {
	if c.provider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout())
	defer cancel()

	stats, err := c.provider.IndexStats(ctx)
	if err != nil {
		StatsCollectionErrors.Inc()
		logging.Warn("Cache statistics collection failed: %v", err)
		return
	}

	IndexedFilesTotal.Set(float64(stats.IndexedFiles))
	ScanRootsTotal.Set(float64(stats.ScanRoots))
	CacheSizeBytes.Set(float64(stats.SizeBytes))

	logging.Debug("Cache statistics: files=%d roots=%d size=%d", stats.IndexedFiles, stats.ScanRoots, stats.SizeBytes)
}
