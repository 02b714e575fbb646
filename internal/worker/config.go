// Package worker keeps the provider cache warm for frequently requested sites.
package worker

import (
	"time"

	"github.com/breatheroute/airseries/internal/series"
)

// RefreshConfig holds configuration for the warm-up job.
type RefreshConfig struct {
	// Sites are the series requests replayed on every run. Hours of zero
	// uses the service default horizon.
	Sites []series.Request

	// Concurrency is the number of sites built at once.
	// Default: 3
	Concurrency int

	// Timeout bounds a single site build.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultRefreshConfig returns the default refresh configuration with no sites.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

// TotalSites returns the number of sites to warm.
func (c RefreshConfig) TotalSites() int {
	return len(c.Sites)
}
