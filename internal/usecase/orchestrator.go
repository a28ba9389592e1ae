package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"NewsAlerts/internal/domain"
	"NewsAlerts/internal/metrics"
	"NewsAlerts/internal/ports"
)

// OrchestratorDeps wires every pipeline stage into the per-alert workflow.
type OrchestratorDeps struct {
	Alerts     ports.AlertRepository
	Intents    *IntentDeriver
	Retriever  *Retriever
	Curator    *Curator
	Gatekeeper *Gatekeeper
	Notifier   *Notifier
	Logger     *slog.Logger
}

// Orchestrator implements the alert-processing workflow for one alert.
type Orchestrator struct {
	alerts     ports.AlertRepository
	intents    *IntentDeriver
	retriever  *Retriever
	curator    *Curator
	gatekeeper *Gatekeeper
	notifier   *Notifier
	logger     *slog.Logger
}

// NewOrchestrator constructs the orchestration component.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	o := &Orchestrator{
		alerts:     deps.Alerts,
		intents:    deps.Intents,
		retriever:  deps.Retriever,
		curator:    deps.Curator,
		gatekeeper: deps.Gatekeeper,
		notifier:   deps.Notifier,
		logger:     deps.Logger,
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.intents == nil {
		o.intents = NewIntentDeriver(IntentDeriverDeps{Logger: o.logger})
	}
	return o
}

// ProcessAlertByID loads an alert and processes it.
func (o *Orchestrator) ProcessAlertByID(ctx context.Context, alertID string) (domain.AlertResult, error) {
	if o.alerts == nil {
		return domain.AlertResult{}, errors.New("alert repository not configured")
	}
	alert, err := o.alerts.GetAlert(ctx, alertID)
	if err != nil {
		return domain.AlertResult{}, fmt.Errorf("load alert %s: %w", alertID, err)
	}
	return o.ProcessAlert(ctx, *alert), nil
}

// ProcessIfFirstAlert processes a newly created alert immediately when it is
// the user's only alert. The boolean reports whether it ran.
func (o *Orchestrator) ProcessIfFirstAlert(ctx context.Context, alertID string) (domain.AlertResult, bool, error) {
	if o.alerts == nil {
		return domain.AlertResult{}, false, errors.New("alert repository not configured")
	}
	alert, err := o.alerts.GetAlert(ctx, alertID)
	if err != nil {
		return domain.AlertResult{}, false, fmt.Errorf("load alert %s: %w", alertID, err)
	}
	if !alert.IsActive {
		return domain.AlertResult{}, false, nil
	}
	count, err := o.alerts.CountUserAlerts(ctx, alert.UserID)
	if err != nil {
		return domain.AlertResult{}, false, fmt.Errorf("count user alerts: %w", err)
	}
	if count != 1 {
		return domain.AlertResult{}, false, nil
	}
	return o.ProcessAlert(ctx, *alert), true, nil
}

// ProcessAlert runs intent, retrieval, curation, gatekeeping and dispatch for
// one alert. Failures are reported in the result, never panicked or returned.
func (o *Orchestrator) ProcessAlert(ctx context.Context, alert domain.Alert) domain.AlertResult {
	started := time.Now()
	logger := o.logger.With("alert_id", alert.ID, "user_id", alert.UserID)
	result := domain.AlertResult{AlertID: alert.ID, UserID: alert.UserID}

	finish := func(status domain.AlertStatus, reason string, err error) domain.AlertResult {
		result.Status = status
		result.Reason = reason
		if err != nil {
			result.Error = err.Error()
		}
		result.Duration = time.Since(started)
		metrics.AlertsProcessed.WithLabelValues(string(status), reason).Inc()
		switch status {
		case domain.AlertError:
			logger.Error("alert failed", "reason", reason, "error", err, "duration", result.Duration)
		default:
			logger.Info("alert processed", "status", status, "reason", reason, "duration", result.Duration)
		}
		return result
	}

	intent, err := o.intents.Ensure(ctx, alert)
	if err != nil {
		return finish(domain.AlertError, "intent", err)
	}
	if intent.SearchQuery == "" {
		return finish(domain.AlertSkipped, domain.SkipMissingQuery, nil)
	}

	if o.retriever == nil {
		return finish(domain.AlertError, "retrieval", errors.New("retriever not configured"))
	}
	retrieved, err := o.retriever.Retrieve(ctx, intent)
	if err != nil {
		return finish(domain.AlertError, "retrieval", err)
	}
	result.Articles = len(retrieved.Articles)
	if len(retrieved.Articles) == 0 {
		return finish(domain.AlertSkipped, domain.SkipNoArticlesFound, nil)
	}

	var curated []domain.CuratedUpdate
	if o.curator != nil {
		curated = o.curator.Curate(ctx, intent, retrieved.Articles)
	}
	if o.gatekeeper != nil {
		curated = o.gatekeeper.Filter(ctx, intent, curated)
	}
	result.Curated = len(curated)
	if len(curated) == 0 {
		return finish(domain.AlertSkipped, domain.SkipNoFormattedArticles, nil)
	}

	first := curated[0]
	result.Title = first.Title
	if o.notifier == nil {
		return finish(domain.AlertError, string(domain.ReasonMissingConfig), errors.New("notifier not configured"))
	}
	outcome, err := o.notifier.Notify(ctx, alert, first)
	if err != nil {
		return finish(domain.AlertError, string(outcome.Reason), err)
	}
	if !outcome.Sent {
		return finish(domain.AlertSkipped, string(outcome.Reason), nil)
	}
	return finish(domain.AlertSuccess, string(domain.ReasonSuccess), nil)
}
