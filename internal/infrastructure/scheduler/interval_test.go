package scheduler

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofrs/flock"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIntervalSchedulerRunsOnStartAndTicks(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	s := NewIntervalScheduler(10*time.Millisecond, true, "", discard())
	if err := s.Start(context.Background(), func(time.Time) { calls.Add(1) }); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if calls.Load() < 3 {
		t.Fatalf("expected at least 3 runs, got %d", calls.Load())
	}

	after := calls.Load()
	time.Sleep(30 * time.Millisecond)
	if calls.Load() != after {
		t.Fatal("expected no runs after stop")
	}
}

func TestIntervalSchedulerRejectsNonPositiveInterval(t *testing.T) {
	t.Parallel()

	s := NewIntervalScheduler(0, false, "", discard())
	if err := s.Start(context.Background(), func(time.Time) {}); err == nil {
		t.Fatal("expected error for zero interval")
	}
}

func TestIntervalSchedulerSkipsWhenLockHeld(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "scheduler.lock")
	other := flock.New(path)
	locked, err := other.TryLock()
	if err != nil || !locked {
		t.Fatalf("expected to take lock, got %v %v", locked, err)
	}

	var calls atomic.Int32
	s := NewIntervalScheduler(time.Hour, false, path, discard())
	s.fire(func(time.Time) { calls.Add(1) }, time.Now())
	if calls.Load() != 0 {
		t.Fatal("expected tick skipped while lock is held")
	}

	if err := other.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	s.fire(func(time.Time) { calls.Add(1) }, time.Now())
	if calls.Load() != 1 {
		t.Fatalf("expected tick once lock released, got %d", calls.Load())
	}
}
