package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"NewsAlerts/internal/domain"
	"NewsAlerts/internal/metrics"
	"NewsAlerts/internal/ports"
	"NewsAlerts/internal/prompts"
	"NewsAlerts/internal/textclean"
)

// MaxSearchQueryLength bounds the persisted search query in runes.
const MaxSearchQueryLength = 200

var urgencyKeywords = map[string]struct{}{
	"win": {}, "wins": {}, "won": {},
	"score": {}, "scores": {},
	"live":     {},
	"breaking": {},
	"today":    {}, "now": {}, "tonight": {},
	"latest": {},
	"update": {}, "updates": {},
	"result": {}, "results": {},
	"match": {}, "matches": {},
	"urgent": {},
}

// IntentDeriverDeps wires the intent deriver.
type IntentDeriverDeps struct {
	Generator ports.TextGenerator
	Intents   ports.IntentRepository
	Logger    *slog.Logger
	Now       func() time.Time
}

// IntentDeriver turns raw alert preferences into a cached AlertIntent.
type IntentDeriver struct {
	generator ports.TextGenerator
	intents   ports.IntentRepository
	logger    *slog.Logger
	now       func() time.Time
}

// NewIntentDeriver constructs the deriver. A nil generator means every
// intent comes from the deterministic fallback.
func NewIntentDeriver(deps IntentDeriverDeps) *IntentDeriver {
	d := &IntentDeriver{
		generator: deps.Generator,
		intents:   deps.Intents,
		logger:    deps.Logger,
		now:       deps.Now,
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// Ensure returns the cached intent for the alert, deriving and persisting one
// when none exists. Cached intents are never regenerated.
func (d *IntentDeriver) Ensure(ctx context.Context, alert domain.Alert) (domain.AlertIntent, error) {
	if d.intents != nil {
		cached, err := d.intents.GetIntent(ctx, alert.ID, alert.UserID)
		switch {
		case err == nil && cached != nil:
			return *cached, nil
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return domain.AlertIntent{}, fmt.Errorf("load intent: %w", err)
		}
	}

	intent := d.Derive(ctx, alert)
	if d.intents == nil {
		return intent, nil
	}
	if err := d.intents.UpsertIntent(ctx, intent); err != nil && !errors.Is(err, domain.ErrDuplicate) {
		return intent, fmt.Errorf("save intent: %w", err)
	}
	return intent, nil
}

// Parse derives an intent for diagnostics without touching the cache.
func (d *IntentDeriver) Parse(ctx context.Context, alert domain.Alert) domain.AlertIntent {
	return d.Derive(ctx, alert)
}

// ParseText derives an intent from a free-text request.
func (d *IntentDeriver) ParseText(ctx context.Context, text string) domain.AlertIntent {
	alert := domain.Alert{
		MainCategory:   domain.CategoryCustom,
		CustomQuestion: strings.TrimSpace(text),
	}
	return d.Derive(ctx, alert)
}

// Derive asks the generator for an intent and falls back to a templated one
// when the generator is missing, fails or returns unusable output.
func (d *IntentDeriver) Derive(ctx context.Context, alert domain.Alert) domain.AlertIntent {
	logger := d.logger.With("alert_id", alert.ID, "user_id", alert.UserID)

	if d.generator == nil {
		return d.fallback(alert)
	}

	started := time.Now()
	raw, err := d.generator.Generate(ctx, prompts.Intent(alert), ports.GenerateOptions{Temperature: 0.2, JSON: true})
	metrics.ObserveCall("text_generation", err)
	metrics.ObserveStage("intent", started)
	if err != nil {
		logger.Warn("intent generation failed, using fallback", "error", err)
		return d.fallback(alert)
	}

	var resp intentResponse
	if err := textclean.DecodeLLMJSON(raw, &resp); err != nil {
		logger.Warn("intent response malformed, using fallback", "error", err)
		return d.fallback(alert)
	}
	if strings.TrimSpace(resp.IntentSummary) == "" && strings.TrimSpace(resp.Topic) == "" {
		logger.Warn("intent response empty, using fallback")
		return d.fallback(alert)
	}
	return d.normalize(alert, resp)
}

type intentResponse struct {
	Topic            string     `json:"topic"`
	Category         string     `json:"category"`
	Subcategory      stringList `json:"subcategory"`
	IntentSummary    string     `json:"intent_summary"`
	Timeframe        string     `json:"timeframe"`
	SearchQuery      string     `json:"search_query"`
	RequiresLiveData looseBool  `json:"requires_live_data"`
}

// stringList accepts a JSON list, a single string or a comma separated string.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if data[0] == '[' {
		var items []any
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" && item != nil {
				out = append(out, s)
			}
		}
		*l = out
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		*l = []string{strings.Trim(string(data), `"`)}
		return nil
	}
	var out []string
	for _, part := range strings.Split(single, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*l = out
	return nil
}

// looseBool accepts true/false as well as their string spellings.
type looseBool bool

func (b *looseBool) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(strings.Trim(string(bytes.TrimSpace(data)), `"`)) {
	case "true", "yes", "1":
		*b = true
	default:
		*b = false
	}
	return nil
}

func (d *IntentDeriver) normalize(alert domain.Alert, resp intentResponse) domain.AlertIntent {
	intent := d.base(alert)

	if topic := textclean.SingleLine(resp.Topic); topic != "" {
		intent.Topic = topic
	}
	if intent.Category == "" && strings.TrimSpace(resp.Category) != "" {
		intent.Category = domain.ParseCategory(resp.Category)
	}
	if len(resp.Subcategory) > 0 {
		intent.Subcategory = []string(resp.Subcategory)
	}
	if summary := textclean.SingleLine(resp.IntentSummary); summary != "" && !textclean.HasArtifacts(summary) {
		intent.IntentSummary = summary
	}

	tf, ok := domain.ParseTimeframe(resp.Timeframe)
	if !ok && strings.TrimSpace(resp.Timeframe) != "" {
		d.logger.Debug("timeframe clamped to default", "alert_id", alert.ID, "timeframe", resp.Timeframe)
	}
	intent.Timeframe = tf
	intent.RequiresLiveData = bool(resp.RequiresLiveData)
	if intent.RequiresLiveData {
		intent.Timeframe = domain.MostUrgentTimeframe
	}

	if query := textclean.SingleLine(resp.SearchQuery); query != "" {
		intent.SearchQuery = textclean.Truncate(query, MaxSearchQueryLength)
	}
	return intent
}

func (d *IntentDeriver) fallback(alert domain.Alert) domain.AlertIntent {
	intent := d.base(alert)
	if hasUrgency(alert) {
		intent.Timeframe = domain.MostUrgentTimeframe
		intent.RequiresLiveData = true
	}
	return intent
}

// base fills every field deterministically from the alert; the generator's
// output only overrides what it actually provides.
func (d *IntentDeriver) base(alert domain.Alert) domain.AlertIntent {
	now := d.now().UTC()
	subs := cleanList(alert.SubCategories)
	custom := textclean.SingleLine(alert.CustomQuestion)
	category := alert.MainCategory

	topic := strings.Join(subs, ", ")
	if topic == "" {
		topic = string(category)
	}
	if (topic == "" || category == domain.CategoryCustom) && custom != "" && len(subs) == 0 {
		topic = textclean.Truncate(custom, 80)
	}

	var summary strings.Builder
	summary.WriteString("Latest")
	if category != "" && category != domain.CategoryCustom {
		summary.WriteString(" " + string(category))
	}
	summary.WriteString(" news")
	if len(subs) > 0 {
		summary.WriteString(" about " + strings.Join(subs, ", "))
	}
	followups := prompts.FormatFollowups(alert.FollowupQuestions)
	if len(followups) > 0 {
		summary.WriteString(" with preferences " + strings.Join(followups, "; "))
	}
	if custom != "" {
		summary.WriteString(", specifically: " + strings.TrimRight(custom, ".?!"))
	}
	summary.WriteString(".")

	return domain.AlertIntent{
		AlertID:           alert.ID,
		UserID:            alert.UserID,
		Topic:             topic,
		Category:          category,
		Subcategory:       subs,
		CustomQuestion:    custom,
		FollowupQuestions: followups,
		IntentSummary:     summary.String(),
		Timeframe:         domain.DefaultTimeframe,
		SearchQuery:       synthesizeQuery(category, subs, followupAnswers(alert.FollowupQuestions), custom),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func synthesizeQuery(category domain.MainCategory, subs, answers []string, custom string) string {
	var parts []string
	parts = append(parts, subs...)
	parts = append(parts, answers...)
	if custom != "" {
		parts = append(parts, custom)
	}
	if len(parts) == 0 && category != "" {
		parts = append(parts, string(category))
	}
	if len(parts) == 0 {
		return ""
	}
	query := strings.Join(parts, " ")
	if category != "" && category != domain.CategoryCustom && !strings.Contains(strings.ToLower(query), strings.ToLower(string(category))) {
		query += " " + strings.ToLower(string(category)) + " news"
	}
	return textclean.Truncate(textclean.SingleLine(query), MaxSearchQueryLength)
}

func followupAnswers(qs []domain.FollowupQuestion) []string {
	var out []string
	for _, q := range qs {
		if a := strings.TrimSpace(q.SelectedAnswer); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func hasUrgency(alert domain.Alert) bool {
	texts := []string{alert.CustomQuestion}
	for _, q := range alert.FollowupQuestions {
		texts = append(texts, q.Question, q.SelectedAnswer)
	}
	for _, text := range texts {
		words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r)
		})
		for _, w := range words {
			if _, ok := urgencyKeywords[w]; ok {
				return true
			}
		}
	}
	return false
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = textclean.SingleLine(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
