package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// JobFunc is a scheduled unit of work. now is the UTC trigger time.
type JobFunc func(ctx context.Context, now time.Time) error

// Scheduler triggers jobs on cron expressions. A job still running when
// its next tick arrives is skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger *log.Logger
	ctx    context.Context
	cancel context.CancelFunc
	jobs   int
}

// New constructs a Scheduler evaluating expressions in UTC.
func New(logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	cronLogger := cron.PrintfLogger(logger)
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers job under name. An empty schedule disables the job.
func (s *Scheduler) Add(name, schedule string, job JobFunc) error {
	if job == nil {
		return errors.New("scheduler: nil job")
	}
	if schedule == "" {
		s.logger.Printf("scheduler job disabled: job=%s", name)
		return nil
	}
	_, err := s.cron.AddFunc(schedule, func() {
		start := time.Now().UTC()
		if err := job(s.ctx, start); err != nil {
			s.logger.Printf("scheduler job error: job=%s err=%v", name, err)
			return
		}
		s.logger.Printf("scheduler job finished: job=%s duration=%s", name, time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("scheduler: job %s: %w", name, err)
	}
	s.jobs++
	s.logger.Printf("scheduler job registered: job=%s schedule=%q", name, schedule)
	return nil
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int {
	return s.jobs
}

// Start runs the scheduler until ctx is done, then waits for running jobs.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.jobs == 0 {
		return
	}
	s.cron.Start()
	<-ctx.Done()
	s.cancel()
	<-s.cron.Stop().Done()
}
