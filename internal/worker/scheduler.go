package worker

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Scheduler runs the refresh job periodically.
type Scheduler struct {
	scheduler *gocron.Scheduler
	job       *RefreshJob
	interval  time.Duration
	logger    zerolog.Logger
}

// NewScheduler creates a Scheduler for job at the given interval.
func NewScheduler(job *RefreshJob, interval time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		job:       job,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the job and starts the scheduler. A non-positive interval
// leaves the scheduler idle.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Info().Msg("auto refresh disabled")
		return nil
	}

	// The first run waits a full interval; the initial load already fetched fresh data.
	_, err := s.scheduler.Every(s.interval).
		WaitForSchedule().
		SingletonMode().
		Do(func() {
			s.job.Run(context.Background())
		})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info().Dur("interval", s.interval).Msg("auto refresh scheduled")
	return nil
}

// Stop stops the scheduler and cancels future runs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// IsRunning reports whether the scheduler is active.
func (s *Scheduler) IsRunning() bool {
	return s.scheduler.IsRunning()
}
