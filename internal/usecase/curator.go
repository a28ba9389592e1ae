package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"NewsAlerts/internal/domain"
	"NewsAlerts/internal/metrics"
	"NewsAlerts/internal/ports"
	"NewsAlerts/internal/prompts"
	"NewsAlerts/internal/textclean"
)

// CuratorConfig holds the curation thresholds.
type CuratorConfig struct {
	MinRating        int
	MinContentLength int
	RatingBodyLimit  int
	RewriteBodyLimit int
	MaxArticles      int
	TrustedSites     []string
}

func (c CuratorConfig) withDefaults() CuratorConfig {
	if c.MinRating <= 0 {
		c.MinRating = 7
	}
	if c.MinContentLength <= 0 {
		c.MinContentLength = 80
	}
	if c.RatingBodyLimit <= 0 {
		c.RatingBodyLimit = 3000
	}
	if c.RewriteBodyLimit <= 0 {
		c.RewriteBodyLimit = 4000
	}
	if c.MaxArticles <= 0 {
		c.MaxArticles = 3
	}
	return c
}

// CuratorDeps wires the curator's collaborators.
type CuratorDeps struct {
	Generator ports.TextGenerator
	Images    ports.ImageSearcher
	Articles  ports.ArticleRepository
	Logger    *slog.Logger
	Now       func() time.Time
}

// Curator turns raw retrieved bodies into fixed-shape message candidates.
type Curator struct {
	generator ports.TextGenerator
	images    ports.ImageSearcher
	articles  ports.ArticleRepository
	cfg       CuratorConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewCurator constructs the curator.
func NewCurator(deps CuratorDeps, cfg CuratorConfig) *Curator {
	c := &Curator{
		generator: deps.Generator,
		images:    deps.Images,
		articles:  deps.Articles,
		cfg:       cfg.withDefaults(),
		logger:    deps.Logger,
		now:       deps.Now,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Rating is the outcome of the relevance stage.
type Rating struct {
	Score  int
	Reason string
	Passed bool
}

// Curate cleans, rates and rewrites items in order until MaxArticles
// updates are produced.
func (c *Curator) Curate(ctx context.Context, intent domain.AlertIntent, items []domain.RawContentItem) []domain.CuratedUpdate {
	started := time.Now()
	defer metrics.ObserveStage("curate", started)

	logger := c.logger.With("alert_id", intent.AlertID, "user_id", intent.UserID)
	pctx := prompts.ContextFromIntent(intent)

	var out []domain.CuratedUpdate
	for _, item := range items {
		if len(out) >= c.cfg.MaxArticles {
			break
		}
		if err := ctx.Err(); err != nil {
			logger.Warn("curation interrupted", "error", err)
			break
		}

		body := CleanBody(item.Content, c.cfg.MinContentLength)
		if body == "" {
			logger.Debug("dropping empty body after cleaning", "content_hash", item.ContentHash)
			continue
		}
		hash := item.ContentHash
		if hash == "" {
			hash = textclean.HashContent(body)
		}

		rating := c.Rate(ctx, pctx, body)
		if !rating.Passed {
			logger.Info("article rejected by rating",
				"content_hash", hash,
				"rating", rating.Score,
				"reason", rating.Reason)
			continue
		}

		update := c.Rewrite(ctx, pctx, body)
		update.ContentHash = hash
		update.OriginalContent = body
		update.Rating = rating.Score
		update.RatingReason = rating.Reason
		update.SearchQueryUsed = intent.SearchQuery

		c.attachImage(ctx, &update)
		c.archive(ctx, intent, hash, body)

		out = append(out, update)
	}

	logger.Info("curation finished", "input", len(items), "curated", len(out))
	return out
}

// CleanBody runs the cleaning pass, repeating it when artifacts survive or
// the result is shorter than minLength. Only an empty result is dropped.
func CleanBody(content string, minLength int) string {
	body := textclean.CleanArticle(content)
	if textclean.HasArtifacts(body) || len([]rune(body)) < minLength {
		body = textclean.CleanArticle(body)
	}
	return strings.TrimSpace(body)
}

// Rate asks the generator for a 1-10 relevance score. Any failure passes
// the article through.
func (c *Curator) Rate(ctx context.Context, pctx prompts.Context, body string) Rating {
	if c.generator == nil {
		return Rating{Reason: "rating unavailable", Passed: true}
	}
	raw, err := c.generator.Generate(ctx, prompts.Rating(pctx, body, c.cfg.RatingBodyLimit),
		ports.GenerateOptions{Temperature: 0.1, RelaxSafety: true, JSON: true})
	metrics.ObserveCall("text_generation", err)
	if err != nil {
		c.logger.Warn("rating failed, passing article", "error", err)
		return Rating{Reason: "rating unavailable", Passed: true}
	}

	var resp struct {
		Rating looseInt `json:"rating"`
		Reason string   `json:"reason"`
	}
	if err := textclean.DecodeLLMJSON(raw, &resp); err != nil || resp.Rating == 0 {
		c.logger.Warn("rating response unusable, passing article", "snippet", textclean.Snippet(raw, 120))
		return Rating{Reason: "rating unavailable", Passed: true}
	}

	score := int(resp.Rating)
	switch {
	case score < 1:
		score = 1
	case score > 10:
		score = 10
	}
	return Rating{
		Score:  score,
		Reason: textclean.SingleLine(resp.Reason),
		Passed: PassesRating(score, c.cfg.MinRating),
	}
}

// PassesRating is inclusive of the threshold.
func PassesRating(score, threshold int) bool {
	return score >= threshold
}

func (c *Curator) archive(ctx context.Context, intent domain.AlertIntent, hash, body string) {
	if c.articles == nil {
		return
	}
	err := c.articles.UpsertArticle(ctx, domain.Article{
		AlertID:     intent.AlertID,
		UserID:      intent.UserID,
		ContentHash: hash,
		Content:     body,
		CreatedAt:   c.now().UTC(),
	})
	if err != nil && !errors.Is(err, domain.ErrDuplicate) {
		c.logger.Warn("archive article failed", "alert_id", intent.AlertID, "content_hash", hash, "error", err)
	}
}

// looseInt accepts numbers, numeric strings and "8/10" style values.
type looseInt int

func (n *looseInt) UnmarshalJSON(data []byte) error {
	text := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if idx := strings.Index(text, "/"); idx > 0 {
		text = text[:idx]
	}
	var f float64
	if err := json.Unmarshal([]byte(text), &f); err != nil {
		parsed, perr := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if perr != nil {
			*n = 0
			return nil
		}
		f = parsed
	}
	*n = looseInt(f + 0.5)
	return nil
}
