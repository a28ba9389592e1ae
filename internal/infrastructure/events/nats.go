package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"NewsAlerts/internal/domain"
	"NewsAlerts/internal/metrics"
	"NewsAlerts/internal/ports"
)

const queueGroup = "newsalerts"

// Connect dials NATS with unlimited reconnects.
func Connect(url string, logger *slog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("newsalerts"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return nc, nil
}

// Publisher fans dispatch records out on a NATS subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

var _ ports.DispatchPublisher = (*Publisher)(nil)

// NewPublisher publishes on subject using an open connection.
func NewPublisher(nc *nats.Conn, subject string) *Publisher {
	return &Publisher{nc: nc, subject: subject}
}

// PublishDispatch encodes the record as JSON and publishes it.
func (p *Publisher) PublishDispatch(_ context.Context, record domain.DispatchRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal dispatch: %w", err)
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		metrics.EventsPublished.WithLabelValues(p.subject, "error").Inc()
		return fmt.Errorf("publish dispatch: %w", err)
	}
	metrics.EventsPublished.WithLabelValues(p.subject, "ok").Inc()
	return nil
}

// NoopPublisher drops every record. Used when no NATS URL is configured.
type NoopPublisher struct{}

var _ ports.DispatchPublisher = NoopPublisher{}

func (NoopPublisher) PublishDispatch(context.Context, domain.DispatchRecord) error { return nil }

// FirstAlertProcessor runs the fast path for newly created alerts.
type FirstAlertProcessor interface {
	ProcessIfFirstAlert(ctx context.Context, alertID string) (domain.AlertResult, bool, error)
}

// AlertCreated is the payload published by the alert CRUD surface.
type AlertCreated struct {
	AlertID string `json:"alert_id"`
	UserID  string `json:"user_id,omitempty"`
}

// Subscriber listens for alert creation events.
type Subscriber struct {
	nc        *nats.Conn
	subject   string
	processor FirstAlertProcessor
	logger    *slog.Logger
	timeout   time.Duration

	sub *nats.Subscription
}

// NewSubscriber wires a processor to subject. Handling uses a queue group so
// only one instance processes each event.
func NewSubscriber(nc *nats.Conn, subject string, processor FirstAlertProcessor, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		nc:        nc,
		subject:   subject,
		processor: processor,
		logger:    logger,
		timeout:   5 * time.Minute,
	}
}

// Start subscribes. ctx bounds the lifetime of in-flight handlers.
func (s *Subscriber) Start(ctx context.Context) error {
	sub, err := s.nc.QueueSubscribe(s.subject, queueGroup, func(msg *nats.Msg) {
		s.handle(ctx, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	s.sub = sub
	s.logger.Info("subscribed", "subject", s.subject)
	return nil
}

// Stop drains the subscription.
func (s *Subscriber) Stop() error {
	if s.sub == nil {
		return nil
	}
	return s.sub.Drain()
}

func (s *Subscriber) handle(ctx context.Context, data []byte) {
	var evt AlertCreated
	if err := json.Unmarshal(data, &evt); err != nil || strings.TrimSpace(evt.AlertID) == "" {
		metrics.EventsReceived.WithLabelValues(s.subject, "invalid").Inc()
		s.logger.Warn("ignoring malformed alert event", "error", err, "payload", string(data))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, ran, err := s.processor.ProcessIfFirstAlert(ctx, evt.AlertID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		metrics.EventsReceived.WithLabelValues(s.subject, "not_found").Inc()
		s.logger.Warn("alert from event not found", "alert_id", evt.AlertID)
	case err != nil:
		metrics.EventsReceived.WithLabelValues(s.subject, "error").Inc()
		s.logger.Error("first alert processing failed", "alert_id", evt.AlertID, "error", err)
	case !ran:
		metrics.EventsReceived.WithLabelValues(s.subject, "deferred").Inc()
		s.logger.Debug("alert left for scheduled run", "alert_id", evt.AlertID)
	default:
		metrics.EventsReceived.WithLabelValues(s.subject, "processed").Inc()
		s.logger.Info("first alert processed", "alert_id", evt.AlertID, "status", result.Status, "reason", result.Reason)
	}
}
