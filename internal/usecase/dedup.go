package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"NewsAlerts/internal/domain"
	"NewsAlerts/internal/metrics"
	"NewsAlerts/internal/ports"
	"NewsAlerts/internal/prompts"
	"NewsAlerts/internal/textclean"
)

// SimilarityConfig bounds the semantic duplicate check.
type SimilarityConfig struct {
	Enabled   bool
	Lookback  time.Duration
	Limit     int
	Threshold float64
}

func (c SimilarityConfig) withDefaults() SimilarityConfig {
	if c.Lookback <= 0 {
		c.Lookback = 24 * time.Hour
	}
	if c.Limit <= 0 {
		c.Limit = 10
	}
	if c.Threshold <= 0 {
		c.Threshold = 0.7
	}
	return c
}

// DuplicateCandidate is what the chain compares against the dispatch log.
type DuplicateCandidate struct {
	UserID       string
	TemplateName string
	ContentHash  string
	ArticleHash  string
	Title        string
	Description  string
	// Now anchors the similarity lookback window; zero means time.Now.
	Now time.Time
}

// DuplicateVerdict is the first matching predicate's decision.
type DuplicateVerdict struct {
	Duplicate bool
	Reason    domain.DispatchReason
	Detail    string
}

// DuplicatePredicate is one independent duplicate test.
type DuplicatePredicate func(ctx context.Context, c DuplicateCandidate) (DuplicateVerdict, error)

// DuplicateChain evaluates predicates in order and stops at the first match.
type DuplicateChain struct {
	predicates []DuplicatePredicate
}

// NewDuplicateChain builds the exact-hash, article-hash and semantic checks.
// The semantic check is skipped when disabled or when no generator is set.
func NewDuplicateChain(dispatches ports.DispatchRepository, generator ports.TextGenerator, cfg SimilarityConfig, logger *slog.Logger) *DuplicateChain {
	if logger == nil {
		logger = slog.Default()
	}
	chain := &DuplicateChain{predicates: []DuplicatePredicate{
		exactMessagePredicate(dispatches),
		articlePredicate(dispatches),
	}}
	if cfg.Enabled && generator != nil {
		chain.predicates = append(chain.predicates, similarityPredicate(dispatches, generator, cfg.withDefaults(), logger))
	}
	return chain
}

// NewDuplicateChainOf composes an arbitrary ordered chain.
func NewDuplicateChainOf(predicates ...DuplicatePredicate) *DuplicateChain {
	return &DuplicateChain{predicates: predicates}
}

// Check returns the first duplicate verdict, or a non-duplicate verdict when
// no predicate matches.
func (c *DuplicateChain) Check(ctx context.Context, candidate DuplicateCandidate) (DuplicateVerdict, error) {
	for _, p := range c.predicates {
		verdict, err := p(ctx, candidate)
		if err != nil {
			return DuplicateVerdict{}, err
		}
		if verdict.Duplicate {
			return verdict, nil
		}
	}
	return DuplicateVerdict{}, nil
}

// FormattedHash fingerprints exactly what the user would see.
func FormattedHash(imageURL, title, description, templateName, broadcastName string) string {
	return textclean.HashFields(imageURL, title, description, templateName, broadcastName)
}

func exactMessagePredicate(repo ports.DispatchRepository) DuplicatePredicate {
	return func(ctx context.Context, c DuplicateCandidate) (DuplicateVerdict, error) {
		if c.ContentHash == "" {
			return DuplicateVerdict{}, nil
		}
		sent, err := repo.SentWithContentHash(ctx, c.UserID, c.TemplateName, c.ContentHash)
		if err != nil {
			return DuplicateVerdict{}, fmt.Errorf("check message hash: %w", err)
		}
		if sent {
			return DuplicateVerdict{Duplicate: true, Reason: domain.ReasonDuplicateMessage, Detail: "identical message already sent"}, nil
		}
		return DuplicateVerdict{}, nil
	}
}

func articlePredicate(repo ports.DispatchRepository) DuplicatePredicate {
	return func(ctx context.Context, c DuplicateCandidate) (DuplicateVerdict, error) {
		if c.ArticleHash == "" {
			return DuplicateVerdict{}, nil
		}
		sent, err := repo.SentWithArticleHash(ctx, c.UserID, c.TemplateName, c.ArticleHash)
		if err != nil {
			return DuplicateVerdict{}, fmt.Errorf("check article hash: %w", err)
		}
		if sent {
			return DuplicateVerdict{Duplicate: true, Reason: domain.ReasonDuplicateArticle, Detail: "source article already sent"}, nil
		}
		return DuplicateVerdict{}, nil
	}
}

type similarityResponse struct {
	IsSimilar      looseBool `json:"is_similar"`
	SimilarToIndex int       `json:"similar_to_index"`
	Confidence     float64   `json:"confidence"`
	Reason         string    `json:"reason"`
}

// similarityPredicate never errors: every failure is logged and the
// candidate passes.
func similarityPredicate(repo ports.DispatchRepository, generator ports.TextGenerator, cfg SimilarityConfig, logger *slog.Logger) DuplicatePredicate {
	return func(ctx context.Context, c DuplicateCandidate) (DuplicateVerdict, error) {
		started := time.Now()
		defer metrics.ObserveStage("similarity", started)

		now := c.Now
		if now.IsZero() {
			now = time.Now()
		}
		prior, err := repo.RecentSent(ctx, c.UserID, c.TemplateName, now.Add(-cfg.Lookback), cfg.Limit)
		if err != nil {
			logger.Warn("similarity lookup failed, skipping check", "user_id", c.UserID, "error", err)
			return DuplicateVerdict{}, nil
		}
		if len(prior) == 0 {
			return DuplicateVerdict{}, nil
		}

		messages := make([]prompts.PriorMessage, len(prior))
		for i, r := range prior {
			messages[i] = prompts.PriorMessage{Title: r.Title, Description: r.Description, SentAt: r.CreatedAt.UTC().Format(time.RFC3339)}
		}
		raw, err := generator.Generate(ctx, prompts.Similarity(prompts.Candidate{Title: c.Title, Description: c.Description}, messages),
			ports.GenerateOptions{Temperature: 0, RelaxSafety: true, JSON: true})
		metrics.ObserveCall("text_generation", err)
		if err != nil {
			logger.Warn("similarity check failed, allowing send", "user_id", c.UserID, "error", err)
			return DuplicateVerdict{}, nil
		}

		var resp similarityResponse
		if err := textclean.DecodeLLMJSON(raw, &resp); err != nil {
			logger.Warn("similarity response malformed, allowing send", "user_id", c.UserID, "error", err)
			return DuplicateVerdict{}, nil
		}
		if bool(resp.IsSimilar) && resp.Confidence >= cfg.Threshold {
			detail := fmt.Sprintf("similar to a message sent earlier (confidence %.2f)", resp.Confidence)
			if resp.SimilarToIndex >= 0 && resp.SimilarToIndex < len(prior) {
				detail = fmt.Sprintf("similar to %q (confidence %.2f)", prior[resp.SimilarToIndex].Title, resp.Confidence)
			}
			if reason := textclean.SingleLine(resp.Reason); reason != "" {
				detail += ": " + reason
			}
			return DuplicateVerdict{Duplicate: true, Reason: domain.ReasonDuplicateSimilar, Detail: detail}, nil
		}
		return DuplicateVerdict{}, nil
	}
}
