package usecase

import (
	"context"
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

// GatekeeperUnavailable is the reason attached when the filter fails open.
const GatekeeperUnavailable = "gatekeeper unavailable"

// Gatekeeper re-checks curated updates against the user's intent.
type Gatekeeper struct {
	generator ports.TextGenerator
	logger    *slog.Logger
}

// NewGatekeeper constructs the gatekeeper.
func NewGatekeeper(generator ports.TextGenerator, logger *slog.Logger) *Gatekeeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gatekeeper{generator: generator, logger: logger}
}

type gatekeeperMatch struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Reason      string `json:"reason"`
}

// Filter keeps only updates the generator confirms. An unavailable or
// malformed response passes everything; a well-formed empty list drops all.
// Returned items are joined back to the originals by title so image and hash
// fields survive; a non-empty reply that joins to nothing passes everything.
func (g *Gatekeeper) Filter(ctx context.Context, intent domain.AlertIntent, updates []domain.CuratedUpdate) []domain.CuratedUpdate {
	if len(updates) == 0 {
		return nil
	}
	if g.generator == nil {
		return passAll(updates)
	}
	started := time.Now()
	defer metrics.ObserveStage("gatekeeper", started)

	candidates := make([]prompts.Candidate, len(updates))
	for i, u := range updates {
		candidates[i] = prompts.Candidate{Title: u.Title, Description: u.Description}
	}

	logger := g.logger.With("alert_id", intent.AlertID, "user_id", intent.UserID)
	raw, err := g.generator.Generate(ctx, prompts.Gatekeeper(prompts.ContextFromIntent(intent), candidates),
		ports.GenerateOptions{Temperature: 0.1, RelaxSafety: true, JSON: true})
	metrics.ObserveCall("text_generation", err)
	if err != nil || strings.TrimSpace(raw) == "" {
		logger.Warn("gatekeeper unavailable, passing all updates", "error", err)
		return passAll(updates)
	}

	var matches []gatekeeperMatch
	if err := textclean.DecodeLLMJSON(raw, &matches); err != nil {
		logger.Warn("gatekeeper response malformed, passing all updates", "error", err)
		return passAll(updates)
	}

	out := make([]domain.CuratedUpdate, 0, len(matches))
	used := make(map[int]bool, len(matches))
	for i, m := range matches {
		idx, ok := joinUpdate(m.Title, i, updates, used)
		if !ok {
			logger.Debug("gatekeeper returned unknown title", "title", m.Title)
			continue
		}
		used[idx] = true
		kept := updates[idx]
		kept.GatekeeperReason = textclean.SingleLine(m.Reason)
		out = append(out, kept)
	}
	if len(matches) > 0 && len(out) == 0 {
		logger.Warn("gatekeeper titles matched no update, passing all updates", "returned", len(matches))
		return passAll(updates)
	}

	logger.Info("gatekeeper finished", "input", len(updates), "kept", len(out))
	return out
}

// minTitleOverlap is the share of words two titles must have in common to
// be treated as the same update.
const minTitleOverlap = 0.6

// joinUpdate finds the unused original behind a returned title: exact
// normalized match, then punctuation-insensitive, then word overlap. A
// missing title falls back to the returned position.
func joinUpdate(title string, pos int, updates []domain.CuratedUpdate, used map[int]bool) (int, bool) {
	if strings.TrimSpace(title) == "" {
		if pos < len(updates) && !used[pos] {
			return pos, true
		}
		return 0, false
	}
	for _, key := range []func(string) string{normalizeTitle, looseTitle} {
		want := key(title)
		if want == "" {
			continue
		}
		for i, u := range updates {
			if !used[i] && key(u.Title) == want {
				return i, true
			}
		}
	}
	best, bestScore := -1, 0.0
	for i, u := range updates {
		if used[i] {
			continue
		}
		if score := titleOverlap(title, u.Title); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best >= 0 && bestScore >= minTitleOverlap {
		return best, true
	}
	return 0, false
}

func passAll(updates []domain.CuratedUpdate) []domain.CuratedUpdate {
	out := make([]domain.CuratedUpdate, len(updates))
	for i, u := range updates {
		u.GatekeeperReason = GatekeeperUnavailable
		out[i] = u
	}
	return out
}

func normalizeTitle(title string) string {
	title = strings.ToLower(textclean.SingleLine(title))
	return strings.Trim(title, ` "'.`)
}

// looseTitle keeps only letters and digits so quotes, dashes and trailing
// punctuation do not break the join.
func looseTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func titleWords(title string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(title)) {
		if w = looseTitle(w); w != "" {
			words[w] = true
		}
	}
	return words
}

// titleOverlap is the Jaccard index of the two titles' word sets.
func titleOverlap(a, b string) float64 {
	wa, wb := titleWords(a), titleWords(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	shared := 0
	for w := range wa {
		if wb[w] {
			shared++
		}
	}
	return float64(shared) / float64(len(wa)+len(wb)-shared)
}
