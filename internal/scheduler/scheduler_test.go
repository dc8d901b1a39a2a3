package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewRejectsBadSpec(t *testing.T) {
	if _, err := New("every half hour", func(context.Context) error { return nil }, nil); err == nil {
		t.Error("expected error for invalid spec")
	}
}

func TestStartRunsImmediately(t *testing.T) {
	ran := make(chan struct{}, 1)
	s, err := New("@every 1h", func(context.Context) error {
		ran <- struct{}{}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("expected a run right after Start")
	}
}

func TestFailedRunDoesNotStopSchedule(t *testing.T) {
	var calls int32
	s, err := New("@every 1h", func(context.Context) error {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return errors.New("ledger save failed")
		}
		if n == 2 {
			panic("unexpected")
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.job.Run()
	s.job.Run()
	s.job.Run()
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 runs despite error and panic, got %d", got)
	}
}

func TestOverlappingRunSkipped(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	started := make(chan struct{})
	s, err := New("@every 1h", func(context.Context) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
			<-release
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.job.Run()
		close(done)
	}()
	<-started

	s.job.Run() // returns immediately, first run still active
	close(release)
	<-done

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected overlapping tick to be skipped, got %d runs", got)
	}
}

func TestStopCancelsRun(t *testing.T) {
	started := make(chan struct{})
	var sawCancel atomic.Bool
	s, err := New("@every 1h", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		sawCancel.Store(true)
		return ctx.Err()
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()
	<-started
	s.Stop()

	if !sawCancel.Load() {
		t.Error("expected Stop to cancel and wait for the in-flight run")
	}
}
