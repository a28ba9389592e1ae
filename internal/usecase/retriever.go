package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"NewsAlerts/internal/config"
	"NewsAlerts/internal/domain"
	"NewsAlerts/internal/metrics"
	"NewsAlerts/internal/ports"
	"NewsAlerts/internal/prompts"
	"NewsAlerts/internal/textclean"
)

// RetrieverConfig bounds one retrieval request and its parsed output.
type RetrieverConfig struct {
	RequestItems     int
	MaxItems         int
	MinContentLength int
	Temperature      float64
	MaxTokens        int
}

func (c RetrieverConfig) withDefaults() RetrieverConfig {
	if c.RequestItems <= 0 {
		c.RequestItems = 3
	}
	if c.MaxItems <= 0 {
		c.MaxItems = 4
	}
	if c.MinContentLength <= 0 {
		c.MinContentLength = 80
	}
	if c.Temperature <= 0 {
		c.Temperature = 0.1
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 3000
	}
	return c
}

// Retriever fetches raw candidate articles for an intent.
type Retriever struct {
	client ports.RetrievalClient
	cfg    RetrieverConfig
	logger *slog.Logger
}

// NewRetriever fails with config.ErrMissingCredentials when no retrieval
// client could be configured.
func NewRetriever(client ports.RetrievalClient, cfg RetrieverConfig, logger *slog.Logger) (*Retriever, error) {
	if client == nil {
		return nil, fmt.Errorf("retriever: %w", config.ErrMissingCredentials)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{client: client, cfg: cfg.withDefaults(), logger: logger}, nil
}

// Retrieve runs one search request and returns cleaned, hashed bodies.
func (r *Retriever) Retrieve(ctx context.Context, intent domain.AlertIntent) (domain.RetrievalResult, error) {
	sentence := r.SearchSentence(intent)
	result := domain.RetrievalResult{Query: sentence, IntentSummary: intent.IntentSummary}

	started := time.Now()
	raw, err := r.client.Chat(ctx, prompts.RetrievalSystem,
		prompts.RetrievalUser(sentence, intent.Timeframe, r.cfg.RequestItems),
		ports.ChatOptions{Temperature: r.cfg.Temperature, MaxTokens: r.cfg.MaxTokens})
	metrics.ObserveCall("retrieval", err)
	metrics.ObserveStage("retrieve", started)
	if err != nil {
		return result, fmt.Errorf("retrieve content: %w", err)
	}

	bodies := ParseRetrievalBodies(raw)
	seen := make(map[string]struct{}, len(bodies))
	for _, body := range bodies {
		cleaned := textclean.CleanArticle(strings.TrimSpace(body))
		if utf8.RuneCountInString(cleaned) < r.cfg.MinContentLength {
			r.logger.Debug("dropping short retrieval body", "alert_id", intent.AlertID, "length", utf8.RuneCountInString(cleaned))
			continue
		}
		hash := textclean.HashContent(cleaned)
		if _, dup := seen[hash]; dup {
			continue
		}
		seen[hash] = struct{}{}
		result.Articles = append(result.Articles, domain.RawContentItem{Content: cleaned, ContentHash: hash})
		if len(result.Articles) >= r.cfg.MaxItems {
			break
		}
	}

	r.logger.Info("retrieval finished",
		"alert_id", intent.AlertID,
		"bodies", len(bodies),
		"kept", len(result.Articles))
	return result, nil
}

// SearchSentence prefers the cached intent summary unless it carries
// serialization artifacts, in which case it is rebuilt from the fields.
func (r *Retriever) SearchSentence(intent domain.AlertIntent) string {
	summary := textclean.SingleLine(intent.IntentSummary)
	if summary != "" && !textclean.HasArtifacts(summary) {
		return fmt.Sprintf("Find the latest news for this request: %s Only include news %s.",
			ensureSentence(summary), intent.Timeframe.RecencyPhrase())
	}
	return prompts.SearchSentence(prompts.SearchRequest{
		Category:       string(intent.Category),
		Subcategories:  intent.Subcategory,
		Followups:      intent.FollowupQuestions,
		CustomQuestion: intent.CustomQuestion,
		Timeframe:      intent.Timeframe,
	})
}

// ParseRetrievalBodies extracts article bodies from a retrieval answer. A
// JSON array of {content} objects or bare strings is preferred; anything
// else is treated as a single body.
func ParseRetrievalBodies(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	arr, ok := textclean.ExtractJSONArray(textclean.StripCodeFence(raw))
	if !ok {
		return []string{raw}
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(arr), &items); err != nil {
		return []string{raw}
	}

	bodies := make([]string, 0, len(items))
	for _, item := range items {
		var text string
		if err := json.Unmarshal(item, &text); err == nil {
			if text = strings.TrimSpace(text); text != "" {
				bodies = append(bodies, text)
			}
			continue
		}
		var obj struct {
			Content string `json:"content"`
			Text    string `json:"text"`
			Body    string `json:"body"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			continue
		}
		for _, candidate := range []string{obj.Content, obj.Text, obj.Body} {
			if candidate = strings.TrimSpace(candidate); candidate != "" {
				bodies = append(bodies, candidate)
				break
			}
		}
	}
	return bodies
}

func ensureSentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" || strings.HasSuffix(text, ".") || strings.HasSuffix(text, "?") || strings.HasSuffix(text, "!") {
		return text
	}
	return text + "."
}
