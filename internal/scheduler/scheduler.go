package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/backyonatan-alt/petitionwatch/internal/pipeline"
)

// Runner performs one harvest cycle.
type Runner interface {
	Run(ctx context.Context) (pipeline.Report, error)
}

// Scheduler runs the pipeline on a cron schedule. A tick that fires while the
// previous cycle is still running is skipped.
type Scheduler struct {
	runner   Runner
	schedule string
	cron     *cron.Cron
	stop     chan struct{}
	stopOnce sync.Once
}

func New(r Runner, schedule string) (*Scheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", schedule, err)
	}
	logger := cronLogger{}
	return &Scheduler{
		runner:   r,
		schedule: schedule,
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		stop: make(chan struct{}),
	}, nil
}

// Start runs one cycle immediately, then on the schedule. Blocks until ctx is
// cancelled or Stop is called, and waits for a running cycle to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	slog.Info("scheduler started", "schedule", s.schedule)
	s.runOnce(ctx)

	if _, err := s.cron.AddFunc(s.schedule, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule pipeline: %w", err)
	}
	s.cron.Start()

	select {
	case <-s.stop:
		slog.Info("scheduler stopped")
	case <-ctx.Done():
		slog.Info("scheduler context cancelled")
	}
	<-s.cron.Stop().Done()
	return nil
}

// Stop signals the scheduler to stop. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	slog.Info("scheduler: triggering pipeline run")
	if _, err := s.runner.Run(ctx); err != nil {
		slog.Error("scheduler: pipeline run failed", "error", err)
	}
}

// cronLogger routes cron's logging through slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
