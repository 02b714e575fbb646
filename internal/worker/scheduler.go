package worker

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Scheduler runs the refresh job on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	job       *RefreshJob
	interval  time.Duration
	logger    zerolog.Logger
}

// NewScheduler creates a scheduler for job. The first run starts as soon as
// the scheduler does.
func NewScheduler(job *RefreshJob, interval time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		job:       job,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the refresh job and starts the scheduler. Runs never
// overlap; a run still in progress when the next one is due skips it.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.job.config.TotalSites() == 0 {
		s.logger.Info().Msg("no warm sites configured; scheduler idle")
		return nil
	}
	if s.interval <= 0 {
		return errors.New("refresh interval must be positive")
	}

	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(func() {
		s.job.Run(ctx)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info().Dur("interval", s.interval).Msg("warm-up scheduler started")
	return nil
}

// Stop stops the scheduler and cancels any future runs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// IsRunning reports whether the scheduler has been started.
func (s *Scheduler) IsRunning() bool {
	return s.scheduler.IsRunning()
}
