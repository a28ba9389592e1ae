package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"NewsAlerts/internal/domain"
	"NewsAlerts/internal/metrics"
	"NewsAlerts/internal/ports"
)

// NotifierConfig names the outbound template and optional overrides.
type NotifierConfig struct {
	TemplateName       string
	BroadcastName      string
	DefaultCountryCode string
	// PhoneOverride sends every message to one number, for staging.
	PhoneOverride string
}

// NotifierDeps wires the notifier's collaborators.
type NotifierDeps struct {
	Sender     ports.MessageSender
	Users      ports.UserDirectory
	Dispatches ports.DispatchRepository
	Publisher  ports.DispatchPublisher
	Duplicates *DuplicateChain
	Logger     *slog.Logger
	Now        func() time.Time
	NewID      func() string
}

// Notifier resolves the recipient, deduplicates, sends and records.
type Notifier struct {
	sender     ports.MessageSender
	users      ports.UserDirectory
	dispatches ports.DispatchRepository
	publisher  ports.DispatchPublisher
	duplicates *DuplicateChain
	cfg        NotifierConfig
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
}

// NewNotifier constructs the notifier.
func NewNotifier(deps NotifierDeps, cfg NotifierConfig) *Notifier {
	n := &Notifier{
		sender:     deps.Sender,
		users:      deps.Users,
		dispatches: deps.Dispatches,
		publisher:  deps.Publisher,
		duplicates: deps.Duplicates,
		cfg:        cfg,
		logger:     deps.Logger,
		now:        deps.Now,
		newID:      deps.NewID,
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	if n.now == nil {
		n.now = time.Now
	}
	if n.newID == nil {
		n.newID = uuid.NewString
	}
	if n.duplicates == nil && deps.Dispatches != nil {
		n.duplicates = NewDuplicateChain(deps.Dispatches, nil, SimilarityConfig{}, n.logger)
	}
	return n
}

// Notify dispatches one curated update for the alert. Rejections (missing
// config or phone, duplicates) are persisted and reported with a nil error;
// only send or storage failures return an error.
func (n *Notifier) Notify(ctx context.Context, alert domain.Alert, update domain.CuratedUpdate) (domain.DispatchOutcome, error) {
	started := time.Now()
	defer metrics.ObserveStage("notify", started)

	logger := n.logger.With("alert_id", alert.ID, "user_id", alert.UserID)
	record := domain.DispatchRecord{
		ID:            n.newID(),
		UserID:        alert.UserID,
		AlertID:       alert.ID,
		TemplateName:  n.cfg.TemplateName,
		BroadcastName: n.cfg.BroadcastName,
		ArticleHash:   update.ContentHash,
		Title:         update.Title,
		Description:   update.Description,
		ImageURL:      update.ImageURL,
		CreatedAt:     n.now().UTC(),
	}
	record.ContentHash = FormattedHash(update.ImageURL, update.Title, update.Description, n.cfg.TemplateName, n.cfg.BroadcastName)

	if n.sender == nil || strings.TrimSpace(n.cfg.TemplateName) == "" {
		return n.reject(ctx, logger, record, domain.ReasonMissingConfig, "messaging is not configured")
	}

	phone, err := n.resolvePhone(ctx, alert.UserID)
	if err != nil {
		record.Reason = domain.ReasonError
		record.Error = err.Error()
		n.persist(ctx, logger, record)
		return n.outcome(record), err
	}
	if phone == "" {
		return n.reject(ctx, logger, record, domain.ReasonPhoneMissing, "no phone number on file")
	}

	params := TemplateParams(update)
	record.Payload = &domain.TemplatePayload{
		Recipient:     phone,
		TemplateName:  n.cfg.TemplateName,
		BroadcastName: n.cfg.BroadcastName,
		Parameters:    params,
	}

	if n.duplicates != nil {
		verdict, err := n.duplicates.Check(ctx, DuplicateCandidate{
			UserID:       alert.UserID,
			TemplateName: n.cfg.TemplateName,
			ContentHash:  record.ContentHash,
			ArticleHash:  record.ArticleHash,
			Title:        update.Title,
			Description:  update.Description,
			Now:          record.CreatedAt,
		})
		if err != nil {
			record.Reason = domain.ReasonError
			record.Error = err.Error()
			n.persist(ctx, logger, record)
			return n.outcome(record), fmt.Errorf("duplicate check: %w", err)
		}
		if verdict.Duplicate {
			return n.reject(ctx, logger, record, verdict.Reason, verdict.Detail)
		}
	}

	response, err := n.sender.SendTemplate(ctx, phone, n.cfg.TemplateName, n.cfg.BroadcastName, params)
	metrics.ObserveCall("messaging", err)
	record.Response = response
	if err != nil {
		record.Reason = domain.ReasonError
		record.Error = err.Error()
		n.persist(ctx, logger, record)
		return n.outcome(record), fmt.Errorf("send template: %w", err)
	}

	record.MessageSent = true
	record.Reason = domain.ReasonSuccess
	n.persist(ctx, logger, record)
	logger.Info("alert dispatched", "record_id", record.ID, "title", record.Title)
	return n.outcome(record), nil
}

// TemplateParams renders the named template parameters.
func TemplateParams(update domain.CuratedUpdate) []domain.TemplateParam {
	return []domain.TemplateParam{
		{Name: "image", Value: update.ImageURL},
		{Name: "title", Value: update.Title},
		{Name: "description", Value: update.Description},
	}
}

func (n *Notifier) reject(ctx context.Context, logger *slog.Logger, record domain.DispatchRecord, reason domain.DispatchReason, detail string) (domain.DispatchOutcome, error) {
	record.Reason = reason
	record.Error = detail
	n.persist(ctx, logger, record)
	logger.Info("dispatch rejected", "reason", reason, "detail", detail)
	return n.outcome(record), nil
}

func (n *Notifier) persist(ctx context.Context, logger *slog.Logger, record domain.DispatchRecord) {
	metrics.Dispatches.WithLabelValues(string(record.Reason)).Inc()
	if n.dispatches != nil {
		err := n.dispatches.InsertDispatch(ctx, record)
		switch {
		case errors.Is(err, domain.ErrDuplicate):
			logger.Warn("dispatch record already exists", "content_hash", record.ContentHash)
		case err != nil:
			logger.Error("persist dispatch record failed", "reason", record.Reason, "error", err)
			return
		}
	}
	if n.publisher != nil {
		if err := n.publisher.PublishDispatch(ctx, record); err != nil {
			logger.Warn("publish dispatch event failed", "record_id", record.ID, "error", err)
		}
	}
}

func (n *Notifier) outcome(record domain.DispatchRecord) domain.DispatchOutcome {
	return domain.DispatchOutcome{
		Sent:     record.MessageSent,
		Reason:   record.Reason,
		RecordID: record.ID,
		Detail:   record.Error,
	}
}

func (n *Notifier) resolvePhone(ctx context.Context, userID string) (string, error) {
	if override := strings.TrimSpace(n.cfg.PhoneOverride); override != "" {
		return NormalizePhone(n.cfg.DefaultCountryCode, override), nil
	}
	if n.users == nil {
		return "", nil
	}
	contact, err := n.users.FindByUserID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup user contact: %w", err)
	}
	if contact == nil {
		return "", nil
	}
	cc := contact.CountryCode
	if strings.TrimSpace(cc) == "" {
		cc = n.cfg.DefaultCountryCode
	}
	return NormalizePhone(cc, contact.PhoneNumber), nil
}

// NormalizePhone returns the international number as digits only. Numbers
// already written with + or 00 keep their own country code; local numbers
// lose their trunk 0 and gain countryCode unless they already start with it.
func NormalizePhone(countryCode, number string) string {
	number = strings.TrimSpace(number)
	digits := digitsOnly(number)
	if digits == "" {
		return ""
	}
	if strings.HasPrefix(number, "+") {
		return digits
	}
	if strings.HasPrefix(digits, "00") {
		return strings.TrimPrefix(digits, "00")
	}

	cc := strings.TrimPrefix(digitsOnly(countryCode), "00")
	if cc == "" {
		return digits
	}
	if strings.HasPrefix(digits, cc) && len(digits) >= len(cc)+10 {
		return digits
	}
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return ""
	}
	return cc + digits
}

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsDigit(r) && r < 128 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
