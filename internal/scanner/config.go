package scanner

import (
	"fmt"

	"source-seeker/internal/fingerprint"
)

const (
	// DefaultThreshold is the largest distance reported as a match.
	DefaultThreshold = 5

	// DefaultFlushEvery is the number of staged upserts written per transaction.
	DefaultFlushEvery = 500

	// DefaultProgressEvery is the number of processed files between progress events.
	DefaultProgressEvery = 20

	// DefaultDiscoveryEvery is the number of discovered files between status events.
	DefaultDiscoveryEvery = 500

	// windowPerWorker sizes the batch of files hashed concurrently.
	windowPerWorker = 4
)

// Config tunes a scan engine.
type Config struct {
	Threshold      int
	GridSize       int
	FlushEvery     int
	ProgressEvery  int
	DiscoveryEvery int

	// Workers is the number of concurrent fingerprint computations.
	// Zero picks one per CPU.
	Workers int
}

// DefaultConfig returns the standard scan settings.
func DefaultConfig() Config {
	return Config{
		Threshold:      DefaultThreshold,
		GridSize:       fingerprint.DefaultGridSize,
		FlushEvery:     DefaultFlushEvery,
		ProgressEvery:  DefaultProgressEvery,
		DiscoveryEvery: DefaultDiscoveryEvery,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Threshold < 0 {
		return fmt.Errorf("threshold must not be negative, got %d", c.Threshold)
	}
	if err := fingerprint.ValidateGridSize(c.GridSize); err != nil {
		return err
	}
	if c.FlushEvery < 1 {
		return fmt.Errorf("flush batch must be at least 1, got %d", c.FlushEvery)
	}
	if c.ProgressEvery < 1 {
		return fmt.Errorf("progress interval must be at least 1, got %d", c.ProgressEvery)
	}
	if c.DiscoveryEvery < 1 {
		return fmt.Errorf("discovery interval must be at least 1, got %d", c.DiscoveryEvery)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}
