// Package worker warms the session cache in the background.
package worker

import (
	"time"

	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/session"
)

// PrefetchConfig holds configuration for the session prefetch job.
type PrefetchConfig struct {
	// Concurrency is the number of laps fetched at once.
	// Default: 3
	Concurrency int

	// Timeout bounds the fetch of one lap's telemetry.
	// Default: 60 seconds
	Timeout time.Duration
}

// DefaultPrefetchConfig returns the default prefetch configuration.
func DefaultPrefetchConfig() PrefetchConfig {
	return PrefetchConfig{
		Concurrency: 3,
		Timeout:     60 * time.Second,
	}
}

func (c PrefetchConfig) withDefaults() PrefetchConfig {
	d := DefaultPrefetchConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}

// PrefetchRequest names the session to warm. With no drivers every driver
// who set a timed lap is warmed.
type PrefetchRequest struct {
	Key     session.Key
	Drivers []string
}
