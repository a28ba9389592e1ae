package usecase

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"NewsAlerts/internal/domain"
)

func TestRunAllIsNotReentrant(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, retrievedArticles)
	f.retrieval.block = make(chan struct{})
	f.retrieval.entered = make(chan struct{}, 1)

	s := NewScheduler(nil, f.store, f.orch, SchedulerConfig{Interval: time.Hour}, discardLogger())

	if !s.Trigger(context.Background()) {
		t.Fatal("expected first trigger to start a run")
	}
	select {
	case <-f.retrieval.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("run never reached retrieval")
	}

	if !s.Status().IsRunning {
		t.Fatal("expected status to report running")
	}
	summary, err := s.RunAll(context.Background())
	if err != nil {
		t.Fatalf("run all: %v", err)
	}
	if summary.Started {
		t.Fatal("expected concurrent run to be rejected")
	}
	if s.Trigger(context.Background()) {
		t.Fatal("expected concurrent trigger to be rejected")
	}

	close(f.retrieval.block)
	s.Wait()

	if got := f.retrieval.calls.Load(); got != 1 {
		t.Fatalf("expected exactly one retrieval call, got %d", got)
	}
	status := s.Status()
	if status.IsRunning || status.LastRun == nil {
		t.Fatalf("expected idle status with last run, got %+v", status)
	}
}

func TestRunAllIsolatesFailuresAndCounts(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.alerts = []domain.Alert{
		{ID: "a1", UserID: "u2", IsActive: true},
		{ID: "a2", UserID: "u1", IsActive: true},
		{ID: "a3", UserID: "u1", IsActive: true},
		{ID: "inactive", UserID: "u3"},
	}
	processor := processorFunc(func(_ context.Context, alert domain.Alert) domain.AlertResult {
		switch alert.ID {
		case "a1":
			panic("boom")
		case "a2":
			return domain.AlertResult{AlertID: alert.ID, Status: domain.AlertSuccess}
		default:
			return domain.AlertResult{AlertID: alert.ID, Status: domain.AlertSkipped, Reason: domain.SkipNoArticlesFound}
		}
	})

	var slept []time.Duration
	s := NewScheduler(nil, store, processor, SchedulerConfig{AlertDelay: 2 * time.Second}, discardLogger())
	s.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	summary, err := s.RunAll(context.Background())
	if err != nil {
		t.Fatalf("run all: %v", err)
	}
	if !summary.Started || summary.RunID == "" {
		t.Fatalf("expected started run with id, got %+v", summary)
	}
	if summary.Processed != 1 || summary.Skipped != 1 || summary.Errored != 1 || summary.Users != 2 {
		t.Fatalf("unexpected counts %+v", summary)
	}
	if len(slept) != 2 || slept[0] != 2*time.Second {
		t.Fatalf("expected a delay between each pair of alerts, got %v", slept)
	}
	if summary.Details[0].AlertID != "a2" {
		t.Fatalf("expected alerts grouped by user, got %+v", summary.Details)
	}
	if summary.FinishedAt.IsZero() {
		t.Fatal("expected finish time recorded")
	}
}

type processorFunc func(ctx context.Context, alert domain.Alert) domain.AlertResult

func (f processorFunc) ProcessAlert(ctx context.Context, alert domain.Alert) domain.AlertResult {
	return f(ctx, alert)
}

type fakeDriver struct {
	started bool
	stopped bool
	job     func(time.Time)
}

func (d *fakeDriver) Start(_ context.Context, job func(time.Time)) error {
	d.started = true
	d.job = job
	return nil
}

func (d *fakeDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

func TestSchedulerStartStopReportsScheduled(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	calls := 0
	driver := &fakeDriver{}
	s := NewScheduler(driver, store, processorFunc(func(context.Context, domain.Alert) domain.AlertResult {
		calls++
		return domain.AlertResult{Status: domain.AlertSuccess}
	}), SchedulerConfig{Interval: 30 * time.Minute}, discardLogger())
	store.alerts = []domain.Alert{{ID: "a1", UserID: "u1", IsActive: true}}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if st := s.Status(); !st.IsScheduled || st.Interval != 30*time.Minute {
		t.Fatalf("unexpected status %+v", st)
	}

	driver.job(time.Now())
	if calls != 1 {
		t.Fatalf("expected driver job to run alerts, got %d calls", calls)
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !driver.stopped || s.Status().IsScheduled {
		t.Fatal("expected driver stopped and schedule cleared")
	}
}

type blockingFirstAlert struct {
	entered chan struct{}
	release chan struct{}
	fast    atomic.Int32
}

func (p *blockingFirstAlert) ProcessAlert(_ context.Context, alert domain.Alert) domain.AlertResult {
	p.entered <- struct{}{}
	<-p.release
	return domain.AlertResult{AlertID: alert.ID, Status: domain.AlertSuccess}
}

func (p *blockingFirstAlert) ProcessIfFirstAlert(_ context.Context, alertID string) (domain.AlertResult, bool, error) {
	p.fast.Add(1)
	return domain.AlertResult{AlertID: alertID, Status: domain.AlertSuccess}, true, nil
}

func TestFirstAlertFastPathWaitsForRunGuard(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.alerts = []domain.Alert{{ID: "a1", UserID: "u1", IsActive: true}}
	p := &blockingFirstAlert{entered: make(chan struct{}, 1), release: make(chan struct{})}
	s := NewScheduler(nil, store, p, SchedulerConfig{}, discardLogger())

	if !s.Trigger(context.Background()) {
		t.Fatal("expected run to start")
	}
	select {
	case <-p.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("run never reached the processor")
	}

	if _, ran, err := s.ProcessIfFirstAlert(context.Background(), "new"); err != nil || ran {
		t.Fatalf("expected fast path deferred during a run, got ran=%v err=%v", ran, err)
	}
	if p.fast.Load() != 0 {
		t.Fatal("expected no fast-path processing while a run is active")
	}

	close(p.release)
	s.Wait()

	res, ran, err := s.ProcessIfFirstAlert(context.Background(), "new")
	if err != nil || !ran || res.AlertID != "new" {
		t.Fatalf("expected fast path to run when idle, got %+v ran=%v err=%v", res, ran, err)
	}
	if s.Status().IsRunning {
		t.Fatal("expected guard released after fast path")
	}
}

func TestFirstAlertFastPathNeedsCapableProcessor(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil, newFakeStore(), processorFunc(func(context.Context, domain.Alert) domain.AlertResult {
		return domain.AlertResult{}
	}), SchedulerConfig{}, discardLogger())
	if _, ran, err := s.ProcessIfFirstAlert(context.Background(), "a1"); err == nil || ran {
		t.Fatalf("expected error for processor without fast path, got ran=%v err=%v", ran, err)
	}
}
