// Package scheduler drives the periodic ingestion job and auxiliary jobs
// on a cron runner, with the interval sourced from the config table.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ignite/alertops/internal/domain"
	"github.com/ignite/alertops/internal/pkg/logger"
	"github.com/ignite/alertops/internal/repository/postgres"
)

// JobFunc is one schedulable unit of work.
type JobFunc func(ctx context.Context) error

type auxJob struct {
	name     string
	interval time.Duration
	fn       JobFunc
}

// Scheduler owns the cron runner. Start reads the ingestion interval from
// the config table, fires one immediate run, and schedules the recurring
// one; auxiliary jobs keep their static intervals.
type Scheduler struct {
	Config  *postgres.ConfigRepo
	JobName string
	Ingest  JobFunc

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
	entryID cron.EntryID
	aux     []auxJob

	ctx    context.Context
	cancel context.CancelFunc
	log    *logger.Logger
}

// AddPeriodic registers an auxiliary job (e.g. the certificate watcher)
// scheduled on every Start. Must be called before Start.
func (s *Scheduler) AddPeriodic(name string, interval time.Duration, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aux = append(s.aux, auxJob{name: name, interval: interval, fn: fn})
}

// Start begins the scheduler. Starting a running scheduler is an error.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.log == nil {
		s.log = logger.With("scheduler")
	}
	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	cfg, err := s.Config.GetInterval(ctx, s.JobName)
	if err != nil {
		return fmt.Errorf("reading scheduler interval: %w", err)
	}
	interval := cfg.Interval()

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron = cron.New()

	s.entryID = s.cron.Schedule(cron.Every(interval), cron.FuncJob(func() {
		s.runJob(s.JobName, s.Ingest)
	}))
	for _, j := range s.aux {
		job := j
		s.cron.Schedule(cron.Every(job.interval), cron.FuncJob(func() {
			s.runJob(job.name, job.fn)
		}))
	}

	s.cron.Start()
	s.running = true

	// Immediate startup run, off the cron goroutine.
	go s.runJob(s.JobName, s.Ingest)

	s.log.Info("scheduler started",
		"interval", interval.String(), "unit", cfg.IntervalUnit, "value", cfg.IntervalValue)
	return nil
}

// Stop halts the scheduler, letting a running job finish. The wait
// happens outside the lock: a running job needs the lock to read its
// context.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	c := s.cron
	s.running = false
	s.mu.Unlock()

	stopCtx := c.Stop()
	<-stopCtx.Done()
	s.log.Info("scheduler stopped")
}

// Restart applies a changed interval by stopping and starting.
func (s *Scheduler) Restart(ctx context.Context) error {
	s.Stop()
	return s.Start(ctx)
}

// Running reports whether the scheduler is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled ingestion run, zero when stopped.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// TriggerNow runs the ingestion job immediately, outside the schedule.
func (s *Scheduler) TriggerNow() {
	go s.runJob(s.JobName, s.Ingest)
}

// SetInterval persists a new interval for the ingestion job. The caller
// restarts the scheduler to apply it.
func (s *Scheduler) SetInterval(ctx context.Context, unit string, value int) error {
	if unit != "seconds" && unit != "minutes" {
		return fmt.Errorf("unsupported interval unit %q", unit)
	}
	if value <= 0 {
		return fmt.Errorf("interval value must be positive")
	}
	return s.Config.SetInterval(ctx, domain.SchedulerConfig{
		JobName:       s.JobName,
		IntervalUnit:  unit,
		IntervalValue: value,
	})
}

func (s *Scheduler) runJob(name string, fn JobFunc) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	if err := fn(ctx); err != nil {
		s.log.Error("job failed", "job", name, "error", err.Error())
	}
}
