package prompts

import (
	"strings"

	"NewsAlerts/internal/domain"
)

// Intent asks the model to interpret an alert's raw preferences as a single
// JSON object. The retrieval prompt is deliberately not part of the output.
func Intent(alert domain.Alert) string {
	var b strings.Builder
	b.WriteString("You interpret news-alert preferences for a personalized WhatsApp news service.\n")
	b.WriteString("Read the user's preferences and describe what they actually want to be alerted about.\n\n")
	b.WriteString("USER PREFERENCES\n")
	writeLine(&b, "Main category", string(alert.MainCategory))
	writeLine(&b, "Sub-categories", strings.Join(nonEmpty(alert.SubCategories), ", "))
	if followups := FormatFollowups(alert.FollowupQuestions); len(followups) > 0 {
		b.WriteString("Follow-up answers (the answer after -> is what the user chose; treat it as a strong preference):\n")
		for _, f := range followups {
			b.WriteString("- " + f + "\n")
		}
	}
	writeLine(&b, "Custom question", alert.CustomQuestion)

	b.WriteString(`
Respond with ONLY one JSON object, no prose and no code fences, using exactly these keys:
{
  "topic": "short topic, e.g. Arsenal FC match results",
  "category": "the main category",
  "subcategory": ["list", "of", "sub-interests"],
  "intent_summary": "one or two sentences describing exactly what news the user wants",
  "timeframe": "one of: 24 hours | 3 days | 1 week | 1 month",
  "search_query": "a concise web search query (max 200 characters)",
  "requires_live_data": true or false
}
Set requires_live_data to true only for scores, live results, breaking events or anything that changes within a day.
`)
	return b.String()
}
