package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"NewsAlerts/internal/domain"
	"NewsAlerts/internal/metrics"
	"NewsAlerts/internal/ports"
)

// AlertProcessor handles a single alert; *Orchestrator implements it.
type AlertProcessor interface {
	ProcessAlert(ctx context.Context, alert domain.Alert) domain.AlertResult
}

// FirstAlertProcessor runs the fast path for a newly created alert.
type FirstAlertProcessor interface {
	ProcessIfFirstAlert(ctx context.Context, alertID string) (domain.AlertResult, bool, error)
}

// SchedulerConfig controls run pacing.
type SchedulerConfig struct {
	Interval   time.Duration
	AlertDelay time.Duration
}

// Scheduler owns the run state: at most one run executes at a time, and a
// request arriving mid-run returns immediately instead of queueing.
type Scheduler struct {
	driver    ports.Scheduler
	alerts    ports.AlertRepository
	processor AlertProcessor
	cfg       SchedulerConfig
	logger    *slog.Logger

	running   atomic.Bool
	scheduled atomic.Bool

	mu      sync.Mutex
	lastRun *time.Time
	wg      sync.WaitGroup

	sleep func(ctx context.Context, d time.Duration) error
	newID func() string
}

// NewScheduler wires the interval driver with the per-alert processor.
func NewScheduler(driver ports.Scheduler, alerts ports.AlertRepository, processor AlertProcessor, cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		driver:    driver,
		alerts:    alerts,
		processor: processor,
		cfg:       cfg,
		logger:    logger,
		sleep:     sleepContext,
		newID:     uuid.NewString,
	}
}

// Start registers the run with the interval driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	job := func(trigger time.Time) {
		summary, err := s.RunAll(ctx)
		if err != nil {
			s.logger.Error("scheduled run failed", "trigger", trigger, "error", err)
			return
		}
		if !summary.Started {
			s.logger.Info("scheduled run skipped, previous run still active", "trigger", trigger)
		}
	}

	if err := s.driver.Start(ctx, job); err != nil {
		return err
	}
	s.scheduled.Store(true)
	return nil
}

// Stop tears down the driver and waits for triggered runs to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	var err error
	if s.driver != nil {
		err = s.driver.Stop(ctx)
	}
	s.scheduled.Store(false)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// Trigger starts a run in the background. It returns false when a run is
// already in progress.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	if !s.begin() {
		return false
	}
	runCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.end()
		if _, err := s.run(runCtx); err != nil {
			s.logger.Error("triggered run failed", "error", err)
		}
	}()
	return true
}

// Wait blocks until every triggered run has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// RunAll processes every active alert synchronously. When a run is already
// in progress it returns a summary with Started=false.
func (s *Scheduler) RunAll(ctx context.Context) (domain.RunSummary, error) {
	if !s.begin() {
		return domain.RunSummary{Started: false}, nil
	}
	defer s.end()
	return s.run(ctx)
}

// ProcessIfFirstAlert runs the processor's first-alert fast path under the
// run guard, so it never overlaps a scheduled run. While a run is active the
// alert is left for the next run and the boolean is false.
func (s *Scheduler) ProcessIfFirstAlert(ctx context.Context, alertID string) (domain.AlertResult, bool, error) {
	fast, ok := s.processor.(FirstAlertProcessor)
	if !ok {
		return domain.AlertResult{}, false, errors.New("processor has no first-alert path")
	}
	if !s.begin() {
		s.logger.Info("first-alert fast path deferred, run in progress", "alert_id", alertID)
		return domain.AlertResult{}, false, nil
	}
	defer s.end()
	return fast.ProcessIfFirstAlert(ctx, alertID)
}

// Status reports the externally visible run state.
func (s *Scheduler) Status() domain.RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last *time.Time
	if s.lastRun != nil {
		t := *s.lastRun
		last = &t
	}
	return domain.RunStatus{
		IsRunning:   s.running.Load(),
		LastRun:     last,
		Interval:    s.cfg.Interval,
		IsScheduled: s.scheduled.Load(),
	}
}

func (s *Scheduler) begin() bool {
	if !s.running.CompareAndSwap(false, true) {
		metrics.RunsRejected.Inc()
		return false
	}
	metrics.RunInProgress.Set(1)
	return true
}

func (s *Scheduler) end() {
	metrics.RunInProgress.Set(0)
	s.running.Store(false)
}

func (s *Scheduler) run(ctx context.Context) (summary domain.RunSummary, err error) {
	summary = domain.RunSummary{
		RunID:     s.newID(),
		Started:   true,
		StartedAt: time.Now().UTC(),
	}
	logger := s.logger.With("run_id", summary.RunID)
	defer func() {
		summary.FinishedAt = time.Now().UTC()
		metrics.RunDuration.Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
		s.mu.Lock()
		finished := summary.FinishedAt
		s.lastRun = &finished
		s.mu.Unlock()
	}()

	if s.alerts == nil || s.processor == nil {
		return summary, errors.New("scheduler is missing alerts or processor")
	}

	alerts, err := s.alerts.ListActiveAlerts(ctx)
	if err != nil {
		return summary, fmt.Errorf("list active alerts: %w", err)
	}

	// Group by user so one user's alerts are processed back to back.
	sort.SliceStable(alerts, func(i, j int) bool { return alerts[i].UserID < alerts[j].UserID })
	perUser := make(map[string]int)
	for _, a := range alerts {
		perUser[a.UserID]++
	}
	summary.Users = len(perUser)
	logger.Info("run started", "alerts", len(alerts), "users", len(perUser))

	for i, alert := range alerts {
		if i > 0 && s.cfg.AlertDelay > 0 {
			if err := s.sleep(ctx, s.cfg.AlertDelay); err != nil {
				logger.Warn("run cancelled", "processed", i, "error", err)
				break
			}
		}
		if ctx.Err() != nil {
			logger.Warn("run cancelled", "processed", i, "error", ctx.Err())
			break
		}

		res := s.processOne(ctx, alert)
		summary.Details = append(summary.Details, res)
		switch res.Status {
		case domain.AlertSuccess:
			summary.Processed++
		case domain.AlertSkipped:
			summary.Skipped++
		default:
			summary.Errored++
		}
	}

	logger.Info("run finished",
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"errored", summary.Errored,
		"duration", time.Since(summary.StartedAt))
	return summary, nil
}

// processOne isolates a panicking alert from the rest of the run.
func (s *Scheduler) processOne(ctx context.Context, alert domain.Alert) (res domain.AlertResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("alert processing panicked", "alert_id", alert.ID, "panic", r)
			res = domain.AlertResult{
				AlertID: alert.ID,
				UserID:  alert.UserID,
				Status:  domain.AlertError,
				Reason:  "panic",
				Error:   fmt.Sprint(r),
			}
		}
	}()
	return s.processor.ProcessAlert(ctx, alert)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
