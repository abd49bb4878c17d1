package services

import (
	"context"
	"fleet-tracking-service/internal/platform/obs"
	"fmt"
	"sync"
	"time"
)

type SchedulerState string

const (
	SchedulerIdle      SchedulerState = "idle"
	SchedulerScheduled SchedulerState = "scheduled"
	SchedulerFetching  SchedulerState = "fetching"
	SchedulerStopped   SchedulerState = "stopped"
)

// CycleFunc runs one fetch + reconcile cycle. Its context is cancelled when
// the scheduler stops.
type CycleFunc func(ctx context.Context)

// RenderScheduler drives periodic cycles with at most one in flight.
// A tick that lands while a cycle runs is skipped, not queued.
type RenderScheduler struct {
	cycle CycleFunc

	root   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    SchedulerState
	interval time.Duration
	inFlight bool
	stopped  bool
	quit     chan struct{}

	wg sync.WaitGroup
}

func NewRenderScheduler(cycle CycleFunc) *RenderScheduler {
	root, cancel := context.WithCancel(context.Background())
	return &RenderScheduler{
		cycle:  cycle,
		root:   root,
		cancel: cancel,
		state:  SchedulerIdle,
	}
}

// Start begins ticking every interval. Calling it again restarts the timer
// with the new period.
func (s *RenderScheduler) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("start scheduler: interval must be positive, got %s", interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}
	s.interval = interval
	s.restartLocked()
	return nil
}

// SetInterval changes the period. A running timer restarts with the new
// period; no extra cycle is fired.
func (s *RenderScheduler) SetInterval(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("set interval: interval must be positive, got %s", interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}
	s.interval = interval
	if s.quit != nil {
		s.restartLocked()
	}
	return nil
}

// Pause cancels the timer but keeps the scheduler usable. An in-flight
// cycle finishes normally.
func (s *RenderScheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.haltLocked()
	if !s.inFlight {
		s.state = SchedulerIdle
	}
}

// Stop cancels the timer and the context of any in-flight cycle. It is
// terminal.
func (s *RenderScheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.haltLocked()
	s.state = SchedulerStopped
	s.mu.Unlock()

	s.cancel()
}

// Trigger starts a cycle in the background unless one is already running.
func (s *RenderScheduler) Trigger() bool {
	ctx, ok := s.begin(nil)
	if !ok {
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
	return true
}

// RunNow runs a cycle synchronously, bound to both ctx and the scheduler.
// It returns false when a cycle was already in flight or the scheduler is
// stopped.
func (s *RenderScheduler) RunNow(ctx context.Context) bool {
	cctx, ok := s.begin(ctx)
	if !ok {
		return false
	}

	s.wg.Add(1)
	defer s.wg.Done()
	s.run(cctx)
	return true
}

func (s *RenderScheduler) State() SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *RenderScheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Wait blocks until the timer loop and every started cycle have returned.
func (s *RenderScheduler) Wait() {
	s.wg.Wait()
}

type cycleCtx struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *RenderScheduler) begin(parent context.Context) (cycleCtx, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.inFlight {
		return cycleCtx{}, false
	}
	s.inFlight = true
	s.state = SchedulerFetching

	ctx, cancel := context.WithCancel(s.root)
	if parent != nil {
		stop := context.AfterFunc(parent, cancel)
		inner := cancel
		cancel = func() {
			stop()
			inner()
		}
	}
	return cycleCtx{ctx: obs.WithCycleID(ctx), cancel: cancel}, true
}

func (s *RenderScheduler) run(c cycleCtx) {
	defer c.cancel()
	defer s.finish()
	s.cycle(c.ctx)
}

func (s *RenderScheduler) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight = false
	switch {
	case s.stopped:
		s.state = SchedulerStopped
	case s.quit != nil:
		s.state = SchedulerScheduled
	default:
		s.state = SchedulerIdle
	}
}

func (s *RenderScheduler) restartLocked() {
	s.haltLocked()

	quit := make(chan struct{})
	s.quit = quit
	if !s.inFlight {
		s.state = SchedulerScheduled
	}

	interval := s.interval
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-quit:
				return
			case <-t.C:
				select {
				case <-quit:
					return
				default:
				}
				s.Trigger()
			}
		}
	}()
}

func (s *RenderScheduler) haltLocked() {
	if s.quit != nil {
		close(s.quit)
		s.quit = nil
	}
}
