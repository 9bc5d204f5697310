// Package resilience guards calls to the telemetry provider with a circuit
// breaker, bounded retries and per-provider health tracking.
package resilience

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig controls when a provider's circuit opens. Zero fields take
// the defaults noted on each field.
type BreakerConfig struct {
	// HalfOpenProbes is the number of requests let through while half-open (1).
	HalfOpenProbes uint32

	// Window resets the closed-state counts periodically (60s).
	Window time.Duration

	// Cooldown is how long the circuit stays open (30s).
	Cooldown time.Duration

	// MinRequests must be seen in a window before the failure ratio counts (5).
	MinRequests uint32

	// FailureRatio trips the circuit once MinRequests is reached (0.5).
	FailureRatio float64

	// ConsecutiveFailures trips the circuit regardless of volume (5).
	ConsecutiveFailures uint32
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.HalfOpenProbes == 0 {
		c.HalfOpenProbes = 1
	}
	if c.Window == 0 {
		c.Window = 60 * time.Second
	}
	if c.Cooldown == 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.MinRequests == 0 {
		c.MinRequests = 5
	}
	if c.FailureRatio <= 0 {
		c.FailureRatio = 0.5
	}
	if c.ConsecutiveFailures == 0 {
		c.ConsecutiveFailures = 5
	}
	return c
}

// ShouldTrip reports whether counts warrant opening the circuit.
func (c BreakerConfig) ShouldTrip(counts gobreaker.Counts) bool {
	c = c.withDefaults()
	if counts.ConsecutiveFailures >= c.ConsecutiveFailures {
		return true
	}
	if counts.Requests < c.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
}

func newBreaker(name string, cfg BreakerConfig, logger zerolog.Logger) *gobreaker.CircuitBreaker[*http.Response] {
	cfg = cfg.withDefaults()
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenProbes,
		Interval:    cfg.Window,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: cfg.ShouldTrip,
		OnStateChange: func(name string, from, to gobreaker.State) {
			event := logger.Info()
			if to == gobreaker.StateOpen {
				event = logger.Warn()
			}
			event.
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("provider circuit state changed")
		},
	})
}
