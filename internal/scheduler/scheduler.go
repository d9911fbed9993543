package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Sweeper removes results whose quiz no longer exists.
type Sweeper interface {
	SweepOrphanedResults(ctx context.Context) (int, error)
}

// Scheduler runs maintenance jobs on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	sweeper   Sweeper
	interval  time.Duration
	logger    *slog.Logger
	timeout   time.Duration
}

// New creates a scheduler that sweeps orphaned results every interval.
func New(sweeper Sweeper, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		sweeper:   sweeper,
		interval:  interval,
		logger:    logger,
		timeout:   time.Minute,
	}
}

// Start registers the jobs and runs them without blocking.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", s.interval)
	}
	// The first sweep runs one interval after start.
	if _, err := s.scheduler.Every(s.interval).WaitForSchedule().SingletonMode().Do(s.sweep); err != nil {
		return fmt.Errorf("schedule orphan sweep: %w", err)
	}
	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "sweep_interval", s.interval.String())
	return nil
}

// Stop terminates all scheduled jobs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	deleted, err := s.sweeper.SweepOrphanedResults(ctx)
	if err != nil {
		s.logger.Error("orphan sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("orphan sweep removed results", "deleted", deleted)
	}
}
