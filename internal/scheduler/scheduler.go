// Package scheduler runs the monitoring jobs on cron schedules in serve mode.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// JobFunc adapts a function to Job.
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

func (j JobFunc) Name() string                  { return j.JobName }
func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }

// Notifier is told about the first failure of a run of failures and about
// the recovery that ends it.
type Notifier interface {
	SendError(job string, err error) error
	SendRecovery(job string, failureCount int) error
}

// Scheduler manages background jobs
type Scheduler struct {
	cron     *cron.Cron
	log      zerolog.Logger
	ctx      context.Context
	notifier Notifier

	mu       sync.Mutex
	failures map[string]int
}

// New creates a scheduler whose jobs receive ctx. Schedules use six fields
// (with seconds) and are interpreted in loc. notifier may be nil.
func New(ctx context.Context, log zerolog.Logger, loc *time.Location, notifier Notifier) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log:      log,
		ctx:      ctx,
		notifier: notifier,
		failures: make(map[string]int),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a new job with cron schedule
// Schedule examples:
//   - "0 */15 15-22 * * MON-FRI" - every 15 minutes during US hours
//   - "0 30 8 * * MON-FRI"       - 08:30 on weekdays
//   - "@every 30s"               - every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	if schedule == "" {
		s.log.Debug().Str("job", job.Name()).Msg("Job disabled, no schedule")
		return nil
	}
	_, err := s.cron.AddFunc(schedule, func() {
		_ = s.RunNow(job)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", schedule, job.Name(), err)
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately (outside schedule) and tracks its failures.
func (s *Scheduler) RunNow(job Job) error {
	start := time.Now()
	s.log.Debug().Str("job", job.Name()).Msg("Running job")

	err := job.Run(s.ctx)
	if err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Msg("Job failed")
	} else {
		s.log.Debug().
			Str("job", job.Name()).
			Dur("duration", time.Since(start)).
			Msg("Job completed")
	}
	s.track(job.Name(), err)
	return err
}

// track counts consecutive failures per job. Only the first failure of a run
// and the recovery after it are notified.
func (s *Scheduler) track(name string, err error) {
	s.mu.Lock()
	count := s.failures[name]
	if err != nil {
		s.failures[name] = count + 1
	} else {
		s.failures[name] = 0
	}
	s.mu.Unlock()

	if s.notifier == nil {
		return
	}
	if err != nil && count == 0 {
		if sendErr := s.notifier.SendError(name, err); sendErr != nil {
			s.log.Warn().Err(sendErr).Msg("Failed to send error notification")
		}
	}
	if err == nil && count > 0 {
		if sendErr := s.notifier.SendRecovery(name, count); sendErr != nil {
			s.log.Warn().Err(sendErr).Msg("Failed to send recovery notification")
		}
	}
}

// cronLogger routes cron's own logging through zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
