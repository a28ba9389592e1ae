package usecase

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"NewsAlerts/internal/domain"
	"NewsAlerts/internal/metrics"
	"NewsAlerts/internal/ports"
	"NewsAlerts/internal/prompts"
	"NewsAlerts/internal/textclean"
)

const (
	fallbackTitleLimit       = 90
	fallbackDescriptionLimit = 300
	fallbackSentences        = 3
)

// Rewrite turns a cleaned body into a title and description. It always
// returns a non-empty update for a non-empty body.
func (c *Curator) Rewrite(ctx context.Context, pctx prompts.Context, body string) domain.CuratedUpdate {
	var title, description string
	if c.generator != nil {
		raw, err := c.generator.Generate(ctx, prompts.Rewrite(pctx, body, c.cfg.RewriteBodyLimit),
			ports.GenerateOptions{Temperature: 0.4, RelaxSafety: true})
		metrics.ObserveCall("text_generation", err)
		if err != nil {
			c.logger.Warn("rewrite failed, using fallback", "error", err)
		} else {
			title, description = ParseRewrite(raw)
		}
	}

	if title == "" || description == "" {
		fbTitle, fbDescription := FallbackRewrite(body)
		if title == "" {
			title = fbTitle
		}
		if description == "" {
			description = fbDescription
		}
	}

	if issues := StyleIssues(title, description); len(issues) > 0 {
		c.logger.Info("rewrite style issues", "title", title, "issues", strings.Join(issues, "; "))
	}
	return domain.CuratedUpdate{Title: title, Description: description}
}

// ParseRewrite accepts a JSON object or TITLE:/DESCRIPTION: labelled text.
func ParseRewrite(raw string) (title, description string) {
	var resp struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := textclean.DecodeLLMJSON(raw, &resp); err == nil {
		title, description = cleanField(resp.Title), cleanField(resp.Description)
		if title != "" && description != "" {
			return title, description
		}
	}

	var section string
	var titleLines, descLines []string
	for _, line := range strings.Split(textclean.StripCodeFence(raw), "\n") {
		trimmed := strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "*#"))
		upper := strings.ToUpper(trimmed)
		switch {
		case strings.HasPrefix(upper, "TITLE:"):
			section = "title"
			titleLines = append(titleLines, trimmed[len("TITLE:"):])
		case strings.HasPrefix(upper, "DESCRIPTION:"):
			section = "description"
			descLines = append(descLines, trimmed[len("DESCRIPTION:"):])
		case trimmed == "":
		case section == "title":
			titleLines = append(titleLines, trimmed)
		case section == "description":
			descLines = append(descLines, trimmed)
		}
	}
	if t := cleanField(strings.Join(titleLines, " ")); t != "" {
		title = t
	}
	if d := cleanField(strings.Join(descLines, " ")); d != "" {
		description = d
	}
	return title, description
}

// FallbackRewrite derives a title from the first sentence and a description
// from the first three sentences of the body.
func FallbackRewrite(body string) (title, description string) {
	sentences := textclean.Sentences(body)
	if len(sentences) == 0 {
		single := textclean.SingleLine(body)
		return textclean.Truncate(single, fallbackTitleLimit), textclean.Truncate(single, fallbackDescriptionLimit)
	}
	title = textclean.Truncate(strings.TrimRight(sentences[0], "."), fallbackTitleLimit)
	n := fallbackSentences
	if len(sentences) < n {
		n = len(sentences)
	}
	description = textclean.Truncate(strings.Join(sentences[:n], " "), fallbackDescriptionLimit)
	return title, description
}

// StyleIssues reports deviations from the rewrite rules. Callers log them;
// they never reject an update.
func StyleIssues(title, description string) []string {
	var issues []string
	if n := textclean.WordCount(title); n < prompts.TitleMinWords || n > prompts.TitleMaxWords {
		issues = append(issues, fmt.Sprintf("title has %d words", n))
	}
	if n := textclean.WordCount(description); n < prompts.DescriptionMinWords || n > prompts.DescriptionMaxWords {
		issues = append(issues, fmt.Sprintf("description has %d words", n))
	}
	if strings.Contains(title, "!") {
		issues = append(issues, "title has exclamation mark")
	}
	for _, word := range strings.Fields(title) {
		if isShouting(word) {
			issues = append(issues, "title has all-caps word "+word)
			break
		}
	}
	if strings.Contains(description, "...") || strings.Contains(description, "…") {
		issues = append(issues, "description has ellipsis")
	}
	return issues
}

func isShouting(word string) bool {
	letters := 0
	for _, r := range word {
		if !unicode.IsLetter(r) {
			continue
		}
		if !unicode.IsUpper(r) {
			return false
		}
		letters++
	}
	// Short acronyms (NBA, CEO, FIFA) are fine.
	return letters > 4
}

func cleanField(value string) string {
	value = textclean.SingleLine(value)
	value = strings.Trim(value, `"'*`+"`")
	return strings.TrimSpace(value)
}
