package prompts

import (
	"fmt"
	"strings"

	"NewsAlerts/internal/domain"
)

// RetrievalSystem frames the retrieval service as a factual researcher.
const RetrievalSystem = "You are a factual, zero-hallucination news researcher. " +
	"Only report events that are verifiably published by reputable outlets. " +
	"Never invent facts, quotes, numbers or dates. If nothing recent matches, return an empty JSON array."

// SearchRequest is the structured input to the retrieval search sentence.
type SearchRequest struct {
	Category       string
	Subcategories  []string
	Followups      []string
	CustomQuestion string
	Timeframe      domain.Timeframe
}

// SearchSentence synthesizes a natural-language search request with an
// explicit recency qualifier.
func SearchSentence(req SearchRequest) string {
	var parts []string
	subject := strings.TrimSpace(req.Category)
	if subs := nonEmpty(req.Subcategories); len(subs) > 0 {
		if subject != "" {
			subject += " news about " + strings.Join(subs, ", ")
		} else {
			subject = strings.Join(subs, ", ")
		}
	} else if subject != "" {
		subject += " news"
	}
	if subject == "" {
		subject = "Top news"
	}
	parts = append(parts, "Find the latest "+subject+" "+req.Timeframe.RecencyPhrase())

	if followups := nonEmpty(req.Followups); len(followups) > 0 {
		parts = append(parts, "focusing on: "+strings.Join(followups, "; "))
	}
	if q := strings.TrimSpace(req.CustomQuestion); q != "" {
		parts = append(parts, "specifically answering: "+q)
	}
	return strings.Join(parts, ", ") + "."
}

// RetrievalUser embeds the search sentence with strict output instructions.
func RetrievalUser(searchSentence string, timeframe domain.Timeframe, maxItems int) string {
	if maxItems <= 0 {
		maxItems = 3
	}
	return fmt.Sprintf(`%s

OUTPUT RULES (follow strictly):
- Respond with ONLY a JSON array, no prose before or after it.
- Each element is an object: {"content": "<full article text>"}.
- Return between 1 and %d items, each about a different event.
- "content" must be the full, un-truncated article text of at least 150 words, including the key facts, names, numbers and the source URL.
- Never use ellipses ("..." or "…") and never cut sentences short.
- Only include articles published within the last %d day(s).
- If nothing relevant exists, return [].`, strings.TrimSpace(searchSentence), maxItems, timeframe.MaxAgeDays())
}
