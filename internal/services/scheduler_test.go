package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerSkipsWhileCycleInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 10)
	var runs atomic.Int32

	s := NewRenderScheduler(func(ctx context.Context) {
		runs.Add(1)
		started <- struct{}{}
		<-release
	})

	if !s.Trigger() {
		t.Fatalf("first trigger should start a cycle")
	}
	<-started

	if s.State() != SchedulerFetching {
		t.Fatalf("state = %s, want fetching", s.State())
	}
	if s.Trigger() {
		t.Fatalf("second trigger should be skipped while in flight")
	}
	if s.RunNow(context.Background()) {
		t.Fatalf("RunNow should be skipped while in flight")
	}

	close(release)
	s.Stop()
	s.Wait()

	if runs.Load() != 1 {
		t.Fatalf("runs = %d, want 1", runs.Load())
	}
}

func TestSchedulerTicks(t *testing.T) {
	var runs atomic.Int32
	s := NewRenderScheduler(func(ctx context.Context) { runs.Add(1) })

	if err := s.Start(10 * time.Millisecond); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()
	s.Wait()

	if runs.Load() < 3 {
		t.Fatalf("runs = %d, want at least 3", runs.Load())
	}
	if s.State() != SchedulerStopped {
		t.Fatalf("state = %s, want stopped", s.State())
	}
}

func TestSchedulerStopCancelsInFlightCycle(t *testing.T) {
	started := make(chan struct{})
	cancelled := make(chan struct{})

	s := NewRenderScheduler(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	})

	s.Trigger()
	<-started
	s.Stop()

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatalf("in-flight cycle was not cancelled")
	}
	s.Wait()

	if s.Trigger() {
		t.Fatalf("stopped scheduler must not run cycles")
	}
	if err := s.Start(time.Second); !errors.Is(err, ErrSchedulerStopped) {
		t.Fatalf("start after stop err = %v", err)
	}
	if err := s.SetInterval(time.Second); !errors.Is(err, ErrSchedulerStopped) {
		t.Fatalf("set interval after stop err = %v", err)
	}
}

func TestSchedulerSetIntervalDoesNotFireExtraCycle(t *testing.T) {
	var runs atomic.Int32
	s := NewRenderScheduler(func(ctx context.Context) { runs.Add(1) })
	defer func() {
		s.Stop()
		s.Wait()
	}()

	if err := s.Start(time.Hour); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.SetInterval(30 * time.Minute); err != nil {
		t.Fatalf("set interval: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if runs.Load() != 0 {
		t.Fatalf("runs = %d, want 0", runs.Load())
	}
	if s.Interval() != 30*time.Minute || s.State() != SchedulerScheduled {
		t.Fatalf("interval = %s, state = %s", s.Interval(), s.State())
	}
}

func TestSchedulerPause(t *testing.T) {
	s := NewRenderScheduler(func(ctx context.Context) {})
	defer s.Stop()

	if err := s.Start(time.Hour); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Pause()
	if s.State() != SchedulerIdle {
		t.Fatalf("state = %s, want idle", s.State())
	}
	if !s.RunNow(context.Background()) {
		t.Fatalf("paused scheduler still runs on demand")
	}
	if err := s.Start(0); err == nil {
		t.Fatalf("zero interval should be rejected")
	}
}
