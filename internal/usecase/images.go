package usecase

import (
	"context"
	"strings"
	"unicode"

	"NewsAlerts/internal/domain"
	"NewsAlerts/internal/metrics"
	"NewsAlerts/internal/ports"
	"NewsAlerts/internal/prompts"
	"NewsAlerts/internal/textclean"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {}, "of": {}, "in": {}, "on": {},
	"at": {}, "to": {}, "for": {}, "with": {}, "from": {}, "by": {}, "as": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "been": {}, "after": {}, "before": {}, "over": {}, "into": {},
	"its": {}, "it": {}, "this": {}, "that": {}, "new": {}, "says": {}, "said": {}, "will": {},
	"has": {}, "have": {}, "how": {}, "why": {}, "what": {}, "who": {}, "their": {}, "his": {}, "her": {},
}

// attachImage is best effort: an update without an image is still sent.
func (c *Curator) attachImage(ctx context.Context, update *domain.CuratedUpdate) {
	if c.images == nil {
		return
	}
	phrase := c.ImagePhrase(ctx, update.Title, update.Description)
	if phrase == "" {
		return
	}

	attempts := []ports.ImageSearchOptions{{}}
	if len(c.cfg.TrustedSites) > 0 {
		attempts = []ports.ImageSearchOptions{{Sites: c.cfg.TrustedSites}, {}}
	}
	for _, opts := range attempts {
		img, err := c.images.Search(ctx, phrase, opts)
		metrics.ObserveCall("image_search", err)
		if err != nil {
			c.logger.Warn("image search failed", "phrase", phrase, "restricted", len(opts.Sites) > 0, "error", err)
			continue
		}
		if img == nil || img.URL == "" {
			continue
		}
		update.ImageURL = img.URL
		update.Thumbnail = img.Thumbnail
		update.ImageSource = img.Source
		return
	}
	c.logger.Info("no image found", "phrase", phrase)
}

// ImagePhrase asks the generator for a 2-5 word search phrase and falls
// back to the significant words of the title.
func (c *Curator) ImagePhrase(ctx context.Context, title, description string) string {
	if c.generator != nil {
		raw, err := c.generator.Generate(ctx, prompts.ImagePhrase(title, description),
			ports.GenerateOptions{Temperature: 0.3, RelaxSafety: true})
		metrics.ObserveCall("text_generation", err)
		if err == nil {
			phrase := strings.Trim(textclean.SingleLine(textclean.StripCodeFence(raw)), `"'.:`)
			phrase = strings.TrimSpace(strings.TrimPrefix(phrase, "Phrase:"))
			if n := textclean.WordCount(phrase); n >= 2 && n <= 5 {
				return phrase
			}
		}
	}
	return FallbackImagePhrase(title)
}

// FallbackImagePhrase keeps the first five non-stop-words of the title.
func FallbackImagePhrase(title string) string {
	words := strings.FieldsFunc(title, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '-'
	})
	var kept []string
	for _, w := range words {
		if _, stop := stopWords[strings.ToLower(w)]; stop {
			continue
		}
		kept = append(kept, w)
		if len(kept) == 5 {
			break
		}
	}
	return strings.Join(kept, " ")
}
