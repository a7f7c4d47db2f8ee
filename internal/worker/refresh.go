package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/weatherdeck/weatherdeck/internal/aggregator"
	"github.com/weatherdeck/weatherdeck/internal/telemetry"
)

// Refresher re-runs an aggregation cycle with cache reads bypassed.
type Refresher interface {
	Refresh(ctx context.Context) (*aggregator.Result, bool)
}

// RefreshJob runs refresh cycles and keeps running totals.
type RefreshJob struct {
	config    RefreshConfig
	refresher Refresher
	metrics   *telemetry.UpstreamMetrics
	logger    zerolog.Logger

	stats *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRefreshes   int64
	StaleRefreshes   int64
	RefreshedEntries int64
	FailedEntries    int64

	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config    RefreshConfig
	Refresher Refresher
	Metrics   *telemetry.UpstreamMetrics
	Logger    zerolog.Logger
}

// NewRefreshJob creates a new refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	return &RefreshJob{
		config:    cfg.Config.withDefaults(),
		refresher: cfg.Refresher,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		stats:     &RefreshMetrics{},
	}
}

// RefreshResult contains the result of one refresh cycle.
type RefreshResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Generation uint64
	Committed  bool
	Entries    int
	Failed     int
}

// FailureRatio returns the share of entries that failed, 0 when empty.
func (r *RefreshResult) FailureRatio() float64 {
	if r.Entries == 0 {
		return 0
	}
	return float64(r.Failed) / float64(r.Entries)
}

// Run executes one refresh cycle. Entry failures are logged and counted,
// never returned.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	result := &RefreshResult{StartTime: time.Now()}

	j.logger.Debug().Msg("starting refresh cycle")

	agg, committed := j.refresher.Refresh(ctx)
	result.Generation = agg.Generation
	result.Committed = committed
	result.Entries = len(agg.Entries)
	for _, e := range agg.Entries {
		if e.Err == "" {
			continue
		}
		result.Failed++
		j.logger.Warn().
			Str("name", e.Location.Name).
			Str("kind", string(e.Err)).
			Msg("refresh left entry without weather")
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	j.updateMetrics(result)
	j.metrics.RecordRefresh(ctx, result.Duration, result.Failed)

	j.logger.Info().
		Uint64("generation", result.Generation).
		Bool("committed", result.Committed).
		Int("entries", result.Entries).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("refresh cycle completed")

	return result
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.stats.mu.Lock()
	defer j.stats.mu.Unlock()

	j.stats.TotalRefreshes++
	if !result.Committed {
		j.stats.StaleRefreshes++
	}
	j.stats.RefreshedEntries += int64(result.Entries - result.Failed)
	j.stats.FailedEntries += int64(result.Failed)
	j.stats.LastRefreshAt = result.EndTime
	j.stats.LastRefreshDuration = result.Duration
	j.stats.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.stats.mu.RLock()
	defer j.stats.mu.RUnlock()

	return RefreshMetrics{
		TotalRefreshes:      j.stats.TotalRefreshes,
		StaleRefreshes:      j.stats.StaleRefreshes,
		RefreshedEntries:    j.stats.RefreshedEntries,
		FailedEntries:       j.stats.FailedEntries,
		LastRefreshAt:       j.stats.LastRefreshAt,
		LastRefreshDuration: j.stats.LastRefreshDuration,
		TotalDuration:       j.stats.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_refreshes":       m.TotalRefreshes,
		"stale_refreshes":       m.StaleRefreshes,
		"refreshed_entries":     m.RefreshedEntries,
		"failed_entries":        m.FailedEntries,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"total_duration":        m.TotalDuration.String(),
	}
}
