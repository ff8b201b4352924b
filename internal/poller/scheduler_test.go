package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduler_RunsImmediatelyThenOnInterval(t *testing.T) {
	s := New(nil)
	defer s.Destroy()

	var runs atomic.Int32
	err := s.Schedule("ticks", 50*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	// First run is immediate, no interval wait.
	time.Sleep(20 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Errorf("runs after start = %d, want 1 (immediate first run)", got)
	}

	time.Sleep(120 * time.Millisecond)
	if got := runs.Load(); got < 3 {
		t.Errorf("runs after intervals = %d, want >= 3", got)
	}
}

func TestScheduler_DuplicateJobName(t *testing.T) {
	s := New(nil)
	defer s.Destroy()

	noop := func(ctx context.Context) error { return nil }

	if err := s.Schedule("j", time.Hour, noop); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if err := s.Schedule("j", time.Hour, noop); !errors.Is(err, ErrJobExists) {
		t.Errorf("duplicate Schedule err = %v, want ErrJobExists", err)
	}
}

func TestScheduler_NewCycleCancelsPrevious(t *testing.T) {
	s := New(nil)
	defer s.Destroy()

	var published atomic.Int32
	var cancelled atomic.Int32
	started := make(chan struct{}, 16)

	err := s.Schedule("slow", 40*time.Millisecond, func(ctx context.Context) error {
		started <- struct{}{}
		select {
		case <-ctx.Done():
			// Superseded: discard the result, never publish.
			cancelled.Add(1)
			return ctx.Err()
		case <-time.After(time.Second):
			published.Add(1)
			return nil
		}
	})
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	// Let several cycles start; each should cancel its predecessor.
	for i := 0; i < 3; i++ {
		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("cycle did not start")
		}
	}

	time.Sleep(50 * time.Millisecond)

	if published.Load() != 0 {
		t.Errorf("published = %d, want 0 (stale cycles must be discarded)", published.Load())
	}
	if cancelled.Load() < 2 {
		t.Errorf("cancelled = %d, want >= 2", cancelled.Load())
	}
}

func TestScheduler_CancellationPrecedesNextFetch(t *testing.T) {
	s := New(nil)
	defer s.Destroy()

	// Cycle N's context must already be cancelled by the time cycle N+1's
	// task function runs.
	ctxs := make(chan context.Context, 16)
	err := s.Schedule("ordered", 30*time.Millisecond, func(ctx context.Context) error {
		ctxs <- ctx
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	first := <-ctxs
	second := <-ctxs

	select {
	case <-first.Done():
	default:
		t.Error("previous cycle not cancelled before new cycle's fetch began")
	}
	select {
	case <-second.Done():
		t.Error("current cycle already cancelled")
	default:
	}
}

func TestScheduler_DestroyStopsJobs(t *testing.T) {
	s := New(nil)

	var runs atomic.Int32
	blocked := make(chan struct{})

	s.Schedule("fast", 10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})
	s.Schedule("hung", 10*time.Millisecond, func(ctx context.Context) error {
		select {
		case blocked <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	})

	<-blocked
	s.Destroy()
	after := runs.Load()

	// Destroy waits for in-flight cycles, and no new cycle may start.
	time.Sleep(60 * time.Millisecond)
	if got := runs.Load(); got != after {
		t.Errorf("runs after Destroy = %d, want %d (no new cycles)", got, after)
	}

	if err := s.Schedule("late", time.Second, func(ctx context.Context) error { return nil }); !errors.Is(err, ErrDestroyed) {
		t.Errorf("Schedule after Destroy err = %v, want ErrDestroyed", err)
	}

	// Second Destroy is a no-op.
	s.Destroy()
}

func TestScheduler_GenuineFailureIsNotCancellation(t *testing.T) {
	s := New(nil)
	defer s.Destroy()

	boom := errors.New("provider down")
	done := make(chan error, 1)

	s.Schedule("failing", time.Hour, func(ctx context.Context) error {
		err := boom
		select {
		case done <- err:
		default:
		}
		return err
	})

	select {
	case err := <-done:
		if !errors.Is(err, boom) {
			t.Errorf("err = %v, want provider failure", err)
		}
	case <-time.After(time.Second):
		t.Fatal("job never ran")
	}
}
