// Package scheduler runs a background task on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stwalsh4118/covenant/internal/clock"
	"github.com/stwalsh4118/covenant/internal/logger"
)

// Task is one unit of scheduled work.
type Task func(ctx context.Context) error

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTickerFactory replaces the wall-clock ticker.
func WithTickerFactory(f clock.TickerFactory) Option {
	return func(s *Scheduler) { s.newTicker = f }
}

// WithClock replaces the clock used to stamp runs.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the logger used to report task runs.
func WithLogger(log *logger.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// Scheduler runs its task once when started and then on every tick. Runs
// happen on a single goroutine and never overlap.
type Scheduler struct {
	name      string
	interval  time.Duration
	task      Task
	newTicker clock.TickerFactory
	clock     clock.Clock
	log       *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastRun time.Time
	lastErr error
}

// New creates a Scheduler. It does nothing until Start or Run is called.
func New(name string, interval time.Duration, task Task, opts ...Option) *Scheduler {
	s := &Scheduler{
		name:      name,
		interval:  interval,
		task:      task,
		newTicker: clock.NewRealTicker,
		clock:     clock.Real{},
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Component("scheduler").With(map[string]interface{}{
		"task": name,
	})
	return s
}

// Start launches the loop in the background. Calling Start on a running
// scheduler has no effect.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		_ = s.Run(ctx)
	}(s.done)
}

// Stop cancels the loop and waits for an in-flight run to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.Wait()
}

// Wait blocks until a started loop has exited.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Run executes the loop on the calling goroutine until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("scheduler %s: interval must be positive, got %s", s.name, s.interval)
	}

	ticker := s.newTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("Scheduler started", map[string]interface{}{
		"interval": s.interval.String(),
	})

	s.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Scheduler stopped", nil)
			return nil
		case <-ticker.C():
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := s.clock.Now()
	err := s.call(ctx)

	s.mu.Lock()
	s.lastRun, s.lastErr = start, err
	s.mu.Unlock()

	if err != nil {
		s.log.Error("Scheduled task failed", err, map[string]interface{}{
			"duration_ms": s.clock.Now().Sub(start).Milliseconds(),
		})
		return
	}

	s.log.Debug("Scheduled task finished", map[string]interface{}{
		"duration_ms": s.clock.Now().Sub(start).Milliseconds(),
	})
}

// call runs the task, converting a panic into an error.
func (s *Scheduler) call(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return s.task(ctx)
}

// LastRun reports when the task last started and the error it returned.
// The time is zero if the task has never run.
func (s *Scheduler) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}
