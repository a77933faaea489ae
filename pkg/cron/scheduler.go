// Package cron runs the periodic import-folder rescan using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one rescan run
type Job func(ctx context.Context) error

// Scheduler runs a Job on a cron schedule. A run still in progress when the
// next tick fires causes that tick to be skipped.
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	job      Job
	timeout  time.Duration
	runs     atomic.Int64
	logger   *slog.Logger
}

// NewScheduler creates a scheduler for job. schedule uses the standard
// 5-field format; timeout bounds each run.
func NewScheduler(schedule string, timeout time.Duration, job Job, logger *slog.Logger) *Scheduler {
	cronLogger := cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	return &Scheduler{
		cron:     c,
		schedule: schedule,
		job:      job,
		timeout:  timeout,
		logger:   logger,
	}
}

// Start registers the job and begins ticking.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.run); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.String("schedule", s.schedule),
		slog.Time("next_run", s.cron.Entries()[0].Next),
	)
	return nil
}

// Stop stops ticking; the returned context is done once a running job returns.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow triggers a run outside the schedule and waits for it.
func (s *Scheduler) RunNow() {
	s.run()
}

// Runs returns the number of completed runs.
func (s *Scheduler) Runs() int64 {
	return s.runs.Load()
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	err := s.job(ctx)
	s.runs.Add(1)

	if err != nil {
		s.logger.Error("scheduled rescan failed",
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("error", err))
		return
	}
	s.logger.Info("scheduled rescan completed", slog.Duration("elapsed", time.Since(start)))
}
