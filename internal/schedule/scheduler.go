// Package schedule runs recurring batch tasks for the daemon command.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/texbuilder/internal/logfields"
)

// Task is one scheduled unit of work.
type Task func(ctx context.Context) error

// Scheduler wraps a gocron scheduler.
type Scheduler struct {
	scheduler gocron.Scheduler
}

// New creates a stopped scheduler.
func New() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s}, nil
}

// Every registers task to run at interval, first immediately on Start.
// Overlapping runs are skipped and rescheduled. Returns the job ID.
func (s *Scheduler) Every(ctx context.Context, name string, interval time.Duration, task Task) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("schedule %s: interval must be positive, got %s", name, interval)
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.execute, ctx, name, task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create scheduled job %s: %w", name, err)
	}
	return job.ID().String(), nil
}

func (s *Scheduler) execute(ctx context.Context, name string, task Task) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	slog.Info("Executing scheduled run", logfields.ScheduleName(name))
	if err := task(ctx); err != nil {
		slog.Error("Scheduled run failed",
			logfields.ScheduleName(name),
			logfields.Duration(time.Since(start)),
			logfields.Error(err))
		return
	}
	slog.Info("Scheduled run finished", logfields.ScheduleName(name), logfields.Duration(time.Since(start)))
}

// Start begins executing registered jobs.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop waits for running jobs and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}
