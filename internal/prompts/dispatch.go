package prompts

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Candidate is a title/description pair shown to the gatekeeper and the
// similarity judge.
type Candidate struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Gatekeeper asks the model to return only the candidates that genuinely
// match the user's intent, each with a reason.
func Gatekeeper(ctx Context, candidates []Candidate) string {
	listed, _ := json.MarshalIndent(candidates, "", "  ")
	var b strings.Builder
	b.WriteString("You are the final gatekeeper before a personalized news alert is sent.\n\n")
	b.WriteString("USER PREFERENCES\n")
	b.WriteString(ctx.block())
	b.WriteString("\nCANDIDATE UPDATES\n")
	b.Write(listed)
	b.WriteString(`

Keep only the updates that genuinely match what the user wants. Drop updates about other teams, companies, people or regions, and drop generic or stale news.
Copy each kept title and description exactly as given.
Respond with ONLY a JSON array: [{"title": "...", "description": "...", "reason": "why it matches"}]
Return [] if none match.`)
	return b.String()
}

// PriorMessage is one previously sent alert for similarity judgement.
type PriorMessage struct {
	Title       string
	Description string
	SentAt      string
}

// Similarity asks whether the candidate reports the same event as any prior message.
func Similarity(candidate Candidate, prior []PriorMessage) string {
	var b strings.Builder
	b.WriteString("Decide whether a new news alert reports the SAME EVENT as any alert the user already received.\n")
	b.WriteString("Different wording about the same match, announcement or incident counts as the same event.\n")
	b.WriteString("A follow-up with genuinely new facts (a new score, a final result after a preview) is NOT the same event.\n\n")
	b.WriteString("NEW ALERT\n")
	fmt.Fprintf(&b, "Title: %s\nDescription: %s\n\n", strings.TrimSpace(candidate.Title), strings.TrimSpace(candidate.Description))
	b.WriteString("PREVIOUS ALERTS\n")
	for i, p := range prior {
		fmt.Fprintf(&b, "%d. Title: %s\n   Description: %s\n", i, strings.TrimSpace(p.Title), strings.TrimSpace(p.Description))
		if p.SentAt != "" {
			fmt.Fprintf(&b, "   Sent: %s\n", p.SentAt)
		}
	}
	b.WriteString(`
Respond with ONLY a JSON object:
{"is_similar": true|false, "similar_to_index": <index or -1>, "confidence": <0.0-1.0>, "reason": "<short>"}`)
	return b.String()
}
