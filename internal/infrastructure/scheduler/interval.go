package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"NewsAlerts/internal/ports"
)

// IntervalScheduler fires the job on a fixed interval. When a lock file is
// configured, a tick only runs while this process holds the lock, so two
// instances on one host never run concurrently.
type IntervalScheduler struct {
	interval   time.Duration
	runOnStart bool
	lock       *flock.Flock
	logger     *slog.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ ports.Scheduler = (*IntervalScheduler)(nil)

// NewIntervalScheduler builds a scheduler. lockPath may be empty.
func NewIntervalScheduler(interval time.Duration, runOnStart bool, lockPath string, logger *slog.Logger) *IntervalScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &IntervalScheduler{
		interval:   interval,
		runOnStart: runOnStart,
		logger:     logger.With("component", "interval_scheduler"),
	}
	if lockPath != "" {
		s.lock = flock.New(lockPath)
	}
	return s
}

// Start begins ticking. Calling Start twice is a no-op.
func (s *IntervalScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}
	if s.interval <= 0 {
		return fmt.Errorf("interval scheduler: interval must be positive, got %s", s.interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return nil
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(ctx, job, s.stop, s.done)
	return nil
}

func (s *IntervalScheduler) loop(ctx context.Context, job func(time.Time), stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if s.runOnStart {
		s.fire(job, time.Now())
	}
	for {
		select {
		case t := <-ticker.C:
			s.fire(job, t)
		case <-ctx.Done():
			return
		case <-stop:
			return
		}
	}
}

func (s *IntervalScheduler) fire(job func(time.Time), t time.Time) {
	if s.lock == nil {
		job(t)
		return
	}
	locked, err := s.lock.TryLock()
	if err != nil {
		s.logger.Error("scheduler lock failed", "path", s.lock.Path(), "error", err)
		return
	}
	if !locked {
		s.logger.Info("scheduler lock held elsewhere; skipping tick", "path", s.lock.Path())
		return
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("scheduler unlock failed", "error", err)
		}
	}()
	job(t)
}

// Stop halts the ticker goroutine and waits for an in-flight tick to return.
func (s *IntervalScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
