// Package resilience wraps upstream provider calls with a circuit breaker,
// bounded retries and health tracking.
package resilience

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig holds configuration for a provider circuit breaker.
type BreakerConfig struct {
	// Name identifies the breaker in logs and health output.
	Name string

	// MaxRequests is the number of trial requests allowed while half-open.
	// Default: 1
	MaxRequests uint32

	// Interval clears the closed-state counts periodically. Zero never clears.
	Interval time.Duration

	// OpenTimeout is how long the breaker stays open before probing again.
	// Default: 60 seconds
	OpenTimeout time.Duration

	// ReadyToTrip decides when to open. Default: TripOnFailureRatio.
	ReadyToTrip func(counts gobreaker.Counts) bool

	// Logger receives state transitions.
	Logger zerolog.Logger
}

// DefaultBreakerConfig returns the breaker configuration used by provider clients.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:        name,
		MaxRequests: 1,
		OpenTimeout: 60 * time.Second,
		ReadyToTrip: TripOnFailureRatio,
	}
}

// TripOnFailureRatio opens the breaker once five or more calls were counted
// and at least half of them failed.
func TripOnFailureRatio(counts gobreaker.Counts) bool {
	if counts.Requests < 5 {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
}

// newBreaker builds a breaker whose failures exclude client-side rejections:
// a 4xx says nothing about upstream health.
func newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker[[]byte] {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 60 * time.Second
	}
	if cfg.ReadyToTrip == nil {
		cfg.ReadyToTrip = TripOnFailureRatio
	}

	logger := cfg.Logger
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: cfg.ReadyToTrip,
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return !se.Retryable()
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("provider circuit state changed")
		},
	})
}
