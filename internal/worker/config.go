// Package worker runs background refresh cycles for WeatherDeck, either on a
// schedule or when triggered through Pub/Sub.
package worker

import (
	"time"
)

// RefreshConfig holds configuration for the refresh job.
type RefreshConfig struct {
	// Interval between scheduled refreshes. Zero disables the scheduler.
	// Default: 10 minutes
	Interval time.Duration

	// Timeout bounds one whole refresh cycle.
	// Default: 60 seconds
	Timeout time.Duration

	// MaxFailureRatio is the share of failed entries above which a triggered
	// refresh reports an error so the message is redelivered.
	// Default: 0.5
	MaxFailureRatio float64
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Interval:        10 * time.Minute,
		Timeout:         60 * time.Second,
		MaxFailureRatio: 0.5,
	}
}

func (c RefreshConfig) withDefaults() RefreshConfig {
	def := DefaultRefreshConfig()
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.MaxFailureRatio <= 0 {
		c.MaxFailureRatio = def.MaxFailureRatio
	}
	return c
}
