// Package supervisor is the process watchdog: it probes the database, the
// broker, the scheduler, and every stage consumer, restarts what has
// failed, and streams status reports to subscribers.
package supervisor

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/alertops/internal/broker"
	"github.com/ignite/alertops/internal/metrics"
	"github.com/ignite/alertops/internal/pkg/logger"
	"github.com/ignite/alertops/internal/scheduler"
)

// Report is one status broadcast.
type Report struct {
	Timestamp string            `json:"timestamp"`
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
}

// Overall status values.
const (
	StatusInitializing = "INITIALIZING"
	StatusHealthy      = "HEALTHY"
	StatusDegraded     = "DEGRADED"
	StatusPaused       = "PAUSED"
)

// ConsumerSpec names a consumer and its blocking run function. Run returns
// when the consumer dies; the supervisor restarts it on the next probe.
type ConsumerSpec struct {
	Name string
	Run  func(ctx context.Context) error
}

type task struct {
	done chan struct{}
	err  error
}

func (t *task) finished() bool {
	if t == nil {
		return true
	}
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Supervisor runs the periodic health loop.
type Supervisor struct {
	DB        *sql.DB
	BrokerURL string
	Scheduler *scheduler.Scheduler
	Consumers []ConsumerSpec
	// RestartBroker is the external broker-restart action; nil reports
	// DOWN without attempting recovery.
	RestartBroker func(ctx context.Context) error
	// Interval defaults to 60 seconds.
	Interval time.Duration

	paused atomic.Bool
	latest atomic.Pointer[Report]

	mu    sync.Mutex
	tasks map[string]*task

	subMu sync.Mutex
	subs  map[chan Report]struct{}

	log *logger.Logger
}

// Start spawns every consumer, validates startup, and runs the probe loop
// until ctx is cancelled.
func (s *Supervisor) Start(ctx context.Context) {
	s.log = logger.With("watchdog")
	if s.Interval <= 0 {
		s.Interval = 60 * time.Second
	}
	s.tasks = make(map[string]*task, len(s.Consumers))
	s.latest.Store(&Report{Status: StatusInitializing, Timestamp: now(), Checks: map[string]string{}})

	for _, spec := range s.Consumers {
		s.spawn(ctx, spec)
	}

	// Startup validation: give consumers a moment, then recover anything
	// that died immediately before entering the periodic loop.
	select {
	case <-time.After(5 * time.Second):
	case <-ctx.Done():
		return
	}
	for _, spec := range s.Consumers {
		if s.taskFor(spec.Name).finished() {
			s.log.Warn("consumer failed at startup, recovering", "consumer", spec.Name)
			s.spawn(ctx, spec)
		}
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	s.log.Info("watchdog started", "interval", s.Interval.String())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.probe(ctx)
		}
	}
}

// Pause suspends restart actions; probes keep firing. Used by the
// interval-update flow so the watchdog does not race a scheduler restart.
func (s *Supervisor) Pause() {
	s.paused.Store(true)
	report := &Report{Timestamp: now(), Status: StatusPaused, Checks: map[string]string{}}
	s.latest.Store(report)
	s.broadcast(*report)
	s.log.Info("watchdog paused")
}

// Resume re-enables restart actions.
func (s *Supervisor) Resume() {
	s.paused.Store(false)
	s.log.Info("watchdog resumed")
}

// Latest returns the most recent status report.
func (s *Supervisor) Latest() Report {
	if r := s.latest.Load(); r != nil {
		return *r
	}
	return Report{Status: StatusInitializing, Checks: map[string]string{}}
}

// Subscribe registers a status listener. The returned cancel function
// must be called when the listener goes away.
func (s *Supervisor) Subscribe() (<-chan Report, func()) {
	ch := make(chan Report, 4)
	s.subMu.Lock()
	if s.subs == nil {
		s.subs = make(map[chan Report]struct{})
	}
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		delete(s.subs, ch)
		s.subMu.Unlock()
	}
}

func (s *Supervisor) broadcast(r Report) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- r:
		default:
			// Slow subscriber: drop the report rather than block the loop.
		}
	}
}

func (s *Supervisor) probe(ctx context.Context) {
	paused := s.paused.Load()
	report := Report{Timestamp: now(), Checks: map[string]string{}}

	report.Checks["database"] = s.checkDatabase(ctx)
	report.Checks["broker"] = s.checkBroker(ctx, paused)
	report.Checks["scheduler"] = s.checkScheduler(ctx, paused)
	for _, spec := range s.Consumers {
		report.Checks["consumer_"+spec.Name] = s.checkConsumer(ctx, spec, paused)
	}

	switch {
	case paused:
		report.Status = StatusPaused
	case allUp(report.Checks):
		report.Status = StatusHealthy
	default:
		report.Status = StatusDegraded
	}

	s.latest.Store(&report)
	s.broadcast(report)
	s.log.Info("health check complete", "status", report.Status)
}

func (s *Supervisor) checkDatabase(ctx context.Context) string {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var one int
	if err := s.DB.QueryRowContext(probeCtx, "SELECT 1").Scan(&one); err != nil {
		return "DOWN: " + err.Error()
	}
	return "UP"
}

func (s *Supervisor) checkBroker(ctx context.Context, paused bool) string {
	if err := broker.Check(s.BrokerURL, 5*time.Second); err == nil {
		return "UP"
	}
	if paused || s.RestartBroker == nil {
		return "DOWN"
	}
	s.log.Warn("broker is down, triggering restart")
	if err := s.RestartBroker(ctx); err != nil {
		s.log.Error("broker restart failed", "error", err.Error())
	}
	return "RESTARTING"
}

func (s *Supervisor) checkScheduler(ctx context.Context, paused bool) string {
	if s.Scheduler.Running() {
		return "UP"
	}
	if paused {
		return "DOWN"
	}
	if err := s.Scheduler.Start(ctx); err != nil {
		return "ERROR: " + err.Error()
	}
	return "RESTARTING"
}

// checkConsumer drives the per-consumer state machine: a finished task is
// FAILED and gets an unconditional restart unless the watchdog is paused.
func (s *Supervisor) checkConsumer(ctx context.Context, spec ConsumerSpec, paused bool) string {
	t := s.taskFor(spec.Name)
	if !t.finished() {
		return "UP"
	}
	if paused {
		return "DOWN"
	}

	reason := "exited"
	if t != nil && t.err != nil {
		reason = t.err.Error()
	}
	s.log.Warn("restarting consumer", "consumer", spec.Name, "reason", reason)
	metrics.ConsumerRestarts.WithLabelValues(spec.Name).Inc()
	s.spawn(ctx, spec)
	return "RESTARTING"
}

func (s *Supervisor) spawn(ctx context.Context, spec ConsumerSpec) {
	t := &task{done: make(chan struct{})}
	s.mu.Lock()
	s.tasks[spec.Name] = t
	s.mu.Unlock()

	go func() {
		t.err = spec.Run(ctx)
		close(t.done)
	}()
}

func (s *Supervisor) taskFor(name string) *task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[name]
}

func allUp(checks map[string]string) bool {
	for _, v := range checks {
		if v != "UP" {
			return false
		}
	}
	return true
}

func now() string { return time.Now().UTC().Format("2006-01-02 15:04:05") }
