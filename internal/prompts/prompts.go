// Package prompts renders every model prompt used by the alert pipeline.
//
// All builders are pure functions of structured context, so each stage's
// wording can be tested without calling a text-generation service.
package prompts

import (
	"fmt"
	"strings"

	"NewsAlerts/internal/domain"
)

// Context is the preference context shared by the rating, rewrite and
// gatekeeping prompts.
type Context struct {
	Category       string
	Subcategories  []string
	Followups      []string
	CustomQuestion string
	IntentSummary  string
	Timeframe      domain.Timeframe
}

// ContextFromIntent flattens an intent into prompt context.
func ContextFromIntent(intent domain.AlertIntent) Context {
	return Context{
		Category:       string(intent.Category),
		Subcategories:  intent.Subcategory,
		Followups:      intent.FollowupQuestions,
		CustomQuestion: intent.CustomQuestion,
		IntentSummary:  intent.IntentSummary,
		Timeframe:      intent.Timeframe,
	}
}

// FormatFollowup renders one answered question, marking the selected answer
// as the user's actual choice rather than listing every option equally.
func FormatFollowup(q domain.FollowupQuestion) string {
	question := strings.TrimSpace(q.Question)
	answer := strings.TrimSpace(q.SelectedAnswer)
	switch {
	case question == "" && answer == "":
		return ""
	case answer == "":
		if len(q.Options) > 0 {
			return fmt.Sprintf("%s (no answer selected; options were: %s)", question, strings.Join(q.Options, ", "))
		}
		return question
	case question == "":
		return answer
	default:
		return fmt.Sprintf("%s -> %s", question, answer)
	}
}

// FormatFollowups renders every non-empty follow-up answer.
func FormatFollowups(qs []domain.FollowupQuestion) []string {
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		if line := FormatFollowup(q); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func (c Context) block() string {
	var b strings.Builder
	writeLine(&b, "Category", c.Category)
	writeLine(&b, "Subcategories", strings.Join(nonEmpty(c.Subcategories), ", "))
	if followups := nonEmpty(c.Followups); len(followups) > 0 {
		b.WriteString("Follow-up selections:\n")
		for _, f := range followups {
			b.WriteString("- " + f + "\n")
		}
	}
	writeLine(&b, "Custom question", c.CustomQuestion)
	writeLine(&b, "Intent summary", c.IntentSummary)
	return b.String()
}

func writeLine(b *strings.Builder, label, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	b.WriteString(label + ": " + value + "\n")
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
