package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"NewsAlerts/internal/api"
	"NewsAlerts/internal/config"
	"NewsAlerts/internal/domain"
	"NewsAlerts/internal/infrastructure/events"
	"NewsAlerts/internal/infrastructure/imagesearch"
	"NewsAlerts/internal/infrastructure/llm"
	"NewsAlerts/internal/infrastructure/scheduler"
	"NewsAlerts/internal/infrastructure/storage"
	"NewsAlerts/internal/infrastructure/whatsapp"
	"NewsAlerts/internal/logging"
	"NewsAlerts/internal/metrics"
	"NewsAlerts/internal/ports"
	"NewsAlerts/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	store        ports.Store
	nc           *nats.Conn
	intents      *usecase.IntentDeriver
	orchestrator *usecase.Orchestrator
	scheduler    *usecase.Scheduler
	subscriber   *events.Subscriber
	server       *api.Server
}

// New opens storage and event connections and builds every use case.
func New(ctx context.Context, cfg config.Config, version string, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	metrics.Init(version, cfg.Environment)

	store, err := storage.Open(ctx, cfg.Database, baseLogger.With("component", "storage"))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a := &Application{cfg: cfg, logger: baseLogger, store: store}

	generator := newGenerator(ctx, cfg, baseLogger)

	chat, err := llm.NewChatClient(cfg.Retrieval)
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}
	retriever, err := usecase.NewRetriever(chat, usecase.RetrieverConfig{
		MaxItems:         cfg.Pipeline.MaxRetrievedItems,
		MinContentLength: cfg.Pipeline.MinContentLength,
		MaxTokens:        cfg.Retrieval.MaxTokens,
	}, baseLogger.With("component", "retriever"))
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}

	var images ports.ImageSearcher
	if searcher, err := imagesearch.NewGoogleSearcher(cfg.ImageSearch); err == nil {
		images = searcher
	} else {
		baseLogger.Warn("image search disabled", "error", err)
	}

	var sender ports.MessageSender
	if s, err := whatsapp.NewSender(cfg.Messaging); err == nil {
		sender = s
	} else {
		baseLogger.Warn("messaging disabled; dispatches will record missing_config", "error", err)
	}

	var publisher ports.DispatchPublisher = events.NoopPublisher{}
	if cfg.Events.NATSURL != "" {
		nc, err := events.Connect(cfg.Events.NATSURL, baseLogger.With("component", "nats"))
		if err != nil {
			_ = store.Close(ctx)
			return nil, err
		}
		a.nc = nc
		publisher = events.NewPublisher(nc, cfg.Events.DispatchSubject)
	}

	a.intents = usecase.NewIntentDeriver(usecase.IntentDeriverDeps{
		Generator: generator,
		Intents:   store,
		Logger:    baseLogger.With("component", "intent"),
	})

	curator := usecase.NewCurator(usecase.CuratorDeps{
		Generator: generator,
		Images:    images,
		Articles:  store,
		Logger:    baseLogger.With("component", "curator"),
	}, usecase.CuratorConfig{
		MinRating:        cfg.Pipeline.MinRating,
		MinContentLength: cfg.Pipeline.MinContentLength,
		RatingBodyLimit:  cfg.Pipeline.RatingBodyLimit,
		MaxArticles:      cfg.Pipeline.MaxArticlesPerRun,
		TrustedSites:     cfg.Pipeline.TrustedImageSites,
	})

	notifierLogger := baseLogger.With("component", "notifier")
	duplicates := usecase.NewDuplicateChain(store, generator, usecase.SimilarityConfig{
		Enabled:   cfg.Pipeline.Similarity.Enabled,
		Lookback:  cfg.Pipeline.Similarity.Lookback,
		Limit:     cfg.Pipeline.Similarity.Limit,
		Threshold: cfg.Pipeline.Similarity.Threshold,
	}, notifierLogger)

	notifier := usecase.NewNotifier(usecase.NotifierDeps{
		Sender:     sender,
		Users:      store,
		Dispatches: store,
		Publisher:  publisher,
		Duplicates: duplicates,
		Logger:     notifierLogger,
	}, usecase.NotifierConfig{
		TemplateName:       cfg.Messaging.TemplateName,
		BroadcastName:      cfg.Messaging.BroadcastName,
		DefaultCountryCode: cfg.Messaging.DefaultCountryCode,
		PhoneOverride:      cfg.Messaging.PhoneOverride,
	})

	a.orchestrator = usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Alerts:     store,
		Intents:    a.intents,
		Retriever:  retriever,
		Curator:    curator,
		Gatekeeper: usecase.NewGatekeeper(generator, baseLogger.With("component", "gatekeeper")),
		Notifier:   notifier,
		Logger:     baseLogger.With("component", "orchestrator"),
	})

	var driver ports.Scheduler
	if cfg.Scheduler.Enabled {
		driver = scheduler.NewIntervalScheduler(
			cfg.Scheduler.Interval,
			cfg.Scheduler.RunOnStart,
			cfg.Scheduler.LockFile,
			baseLogger.With("component", "driver"),
		)
	}
	a.scheduler = usecase.NewScheduler(driver, store, a.orchestrator, usecase.SchedulerConfig{
		Interval:   cfg.Scheduler.Interval,
		AlertDelay: cfg.Scheduler.AlertDelay,
	}, baseLogger.With("component", "scheduler"))

	if a.nc != nil && cfg.Events.AlertCreatedSubject != "" {
		a.subscriber = events.NewSubscriber(a.nc, cfg.Events.AlertCreatedSubject, a.scheduler, baseLogger.With("component", "events"))
	}

	if cfg.Server.Enabled {
		a.server = api.NewServer(cfg.Server.Addr, api.Deps{
			Runs:       a.scheduler,
			Processor:  a.orchestrator,
			Intents:    a.intents,
			Alerts:     store,
			Logger:     baseLogger.With("component", "api"),
			Production: cfg.IsProduction(),
		})
	}

	return a, nil
}

// NewIntentParser builds only what a non-persisting intent preview needs.
func NewIntentParser(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) *usecase.IntentDeriver {
	return usecase.NewIntentDeriver(usecase.IntentDeriverDeps{
		Generator: newGenerator(ctx, cfg, baseLogger),
		Logger:    baseLogger.With("component", "intent"),
	})
}

func newGenerator(ctx context.Context, cfg config.Config, logger *slog.Logger) ports.TextGenerator {
	gen, err := llm.NewGeminiGenerator(ctx, cfg.TextGeneration, "")
	if err != nil {
		logger.Warn("text generation disabled; deterministic fallbacks only", "error", err)
		return nil
	}
	return gen
}

// Serve starts the scheduler, event subscriber and control API, then blocks
// until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	if a.cfg.Scheduler.Enabled {
		if err := a.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		a.logger.Info("scheduler started",
			"interval", a.cfg.Scheduler.Interval,
			"timezone", a.cfg.Scheduler.Location().String(),
		)
	}

	if a.subscriber != nil {
		if err := a.subscriber.Start(ctx); err != nil {
			return err
		}
	}

	serverErr := make(chan error, 1)
	if a.server != nil {
		go func() { serverErr <- a.server.ListenAndServe() }()
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-serverErr:
		if err != nil {
			err = fmt.Errorf("control api: %w", err)
		}
	}
	return errors.Join(err, a.shutdown())
}

func (a *Application) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var errs []error
	if a.server != nil {
		errs = append(errs, a.server.Shutdown(ctx))
	}
	if a.subscriber != nil {
		errs = append(errs, a.subscriber.Stop())
	}
	errs = append(errs, a.scheduler.Stop(ctx))
	return errors.Join(errs...)
}

// RunOnce executes one synchronous pass over every active alert.
func (a *Application) RunOnce(ctx context.Context) (domain.RunSummary, error) {
	return a.scheduler.RunAll(ctx)
}

// ProcessAlert runs the pipeline for a single alert id.
func (a *Application) ProcessAlert(ctx context.Context, alertID string) (domain.AlertResult, error) {
	return a.orchestrator.ProcessAlertByID(ctx, alertID)
}

// Close releases storage and NATS connections.
func (a *Application) Close(ctx context.Context) error {
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			a.logger.Warn("nats drain failed", "error", err)
		}
	}
	return a.store.Close(ctx)
}
