package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amitpo23/medici-web03012026-sub000/internal/alert"
	"github.com/amitpo23/medici-web03012026-sub000/internal/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrAlreadyRunning = errors.New("scheduler is already running")
	ErrStopped        = errors.New("scheduler is stopped")
)

const cycleKey = "alert-cycle"

// CycleRunner runs one evaluation cycle; *alert.Engine implements it.
type CycleRunner interface {
	RunCycle(ctx context.Context) alert.CycleResult
}

// CycleOutcome is delivered to TriggerNow callers.
// Shared is true when the caller joined a cycle that was already in flight.
type CycleOutcome struct {
	Result alert.CycleResult
	Err    error
	Shared bool
}

// Scheduler drives periodic evaluation cycles and never runs two at once:
// a tick or manual trigger that arrives mid-cycle waits for that cycle's result.
type Scheduler struct {
	runner       CycleRunner
	cycleTimeout time.Duration

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
	stopped bool
	wg      sync.WaitGroup

	group  singleflight.Group
	cycles atomic.Int64
	last   atomic.Pointer[alert.CycleResult]

	log *zap.Logger
}

// NewScheduler creates a scheduler. cycleTimeout bounds a single cycle.
func NewScheduler(runner CycleRunner, cycleTimeout time.Duration, log *zap.Logger) *Scheduler {
	if cycleTimeout <= 0 {
		cycleTimeout = 2 * time.Minute
	}
	return &Scheduler{
		runner:       runner,
		cycleTimeout: cycleTimeout,
		log:          logger.OrNop(log),
	}
}

// Start arms the periodic driver. Intervals under a second are rounded up by cron.
func (s *Scheduler) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid check interval: %s", interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.running {
		return ErrAlreadyRunning
	}

	c := cron.New(cron.WithChain(cron.Recover(cronLogger{s.log.Sugar()})))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), s.tick); err != nil {
		return fmt.Errorf("failed to schedule alert cycle: %w", err)
	}
	c.Start()

	s.cron = c
	s.running = true
	s.log.Info("Alert scheduler started", zap.Duration("interval", interval))
	return nil
}

// Stop disarms the timer. An in-flight cycle is not interrupted; use
// Shutdown to wait for it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true
	if s.cron != nil {
		s.cron.Stop()
	}
	s.running = false
	s.log.Info("Alert scheduler stopped")
}

// Shutdown stops the scheduler and waits for in-flight cycles or ctx.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.Stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TriggerNow runs a cycle immediately, or joins the one already running.
// The returned channel receives exactly one outcome.
func (s *Scheduler) TriggerNow() <-chan CycleOutcome {
	out := make(chan CycleOutcome, 1)

	if !s.begin() {
		out <- CycleOutcome{Err: ErrStopped}
		close(out)
		return out
	}

	ch := s.group.DoChan(cycleKey, s.execute)
	go func() {
		defer s.wg.Done()
		r := <-ch
		outcome := CycleOutcome{Err: r.Err, Shared: r.Shared}
		if res, ok := r.Val.(alert.CycleResult); ok {
			outcome.Result = res
		}
		out <- outcome
		close(out)
	}()
	return out
}

// begin registers a caller unless the scheduler has been stopped.
func (s *Scheduler) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Scheduler) tick() {
	if !s.begin() {
		return
	}
	defer s.wg.Done()

	r := <-s.group.DoChan(cycleKey, s.execute)
	if r.Err != nil {
		s.log.Error("Scheduled alert cycle failed", zap.Error(r.Err))
	}
}

// execute runs one cycle. Panics are turned into errors so the schedule
// stays armed and singleflight waiters are released.
func (s *Scheduler) execute() (v interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("alert cycle panicked: %v", p)
			s.log.Error("Alert cycle panicked", zap.Any("panic", p))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.cycleTimeout)
	defer cancel()

	res := s.runner.RunCycle(ctx)
	s.cycles.Add(1)
	s.last.Store(&res)
	return res, nil
}

// Running reports whether the periodic driver is armed.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Cycles returns how many cycles have completed.
func (s *Scheduler) Cycles() int64 {
	return s.cycles.Load()
}

// LastResult returns the most recent completed cycle, if any.
func (s *Scheduler) LastResult() (alert.CycleResult, bool) {
	p := s.last.Load()
	if p == nil {
		return alert.CycleResult{}, false
	}
	return *p, true
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
