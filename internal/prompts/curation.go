package prompts

import (
	"fmt"
	"strings"
)

// Word and length bounds of the rewritten update.
const (
	TitleMinWords       = 6
	TitleMaxWords       = 12
	DescriptionMinWords = 20
	DescriptionMaxWords = 45
)

// Rating asks for a 1-10 relevance score of one raw article against the
// user's preferences. The body is cut to bodyLimit runes.
func Rating(ctx Context, body string, bodyLimit int) string {
	var b strings.Builder
	b.WriteString("You are a strict relevance judge for a personalized news alert.\n\n")
	b.WriteString("USER PREFERENCES\n")
	b.WriteString(ctx.block())
	b.WriteString("\nARTICLE\n")
	b.WriteString(truncateRunes(strings.TrimSpace(body), bodyLimit))
	b.WriteString(`

Rate from 1 to 10 how well this article matches what the user asked for.
10 = exactly the event or topic the user wants; 7 = clearly relevant; 4 = loosely related; 1 = unrelated or stale.
Penalize articles about a different team, company, person or region than the user selected.
Respond with ONLY a JSON object: {"rating": <integer 1-10>, "reason": "<one short sentence>"}`)
	return b.String()
}

// Rewrite asks the model to turn a raw article into a title and description
// for a WhatsApp template message.
func Rewrite(ctx Context, body string, bodyLimit int) string {
	var b strings.Builder
	b.WriteString("You write short WhatsApp news alerts.\n\n")
	b.WriteString("USER PREFERENCES\n")
	b.WriteString(ctx.block())
	b.WriteString("\nARTICLE\n")
	b.WriteString(truncateRunes(strings.TrimSpace(body), bodyLimit))
	fmt.Fprintf(&b, `

Write exactly two fields.

TITLE rules:
- %d to %d words, sentence case (only the first word and proper nouns capitalized).
- Create gentle curiosity about the news without clickbait.
- No exclamation marks, no ALL CAPS words, no emojis.
- If the news is a result (score, win, loss, verdict, earnings), do not start with a person's name.

DESCRIPTION rules:
- %d to %d words.
- State the single strongest insight only, not a full summary.
- Keep every number, score, price and date exactly as written in the article.
- No ellipses, no hashtags, no emojis.

Respond with ONLY a JSON object: {"title": "...", "description": "..."}
If you cannot produce JSON, use exactly:
TITLE: ...
DESCRIPTION: ...`, TitleMinWords, TitleMaxWords, DescriptionMinWords, DescriptionMaxWords)
	return b.String()
}

// ImagePhrase asks for a short, concrete image-search phrase.
func ImagePhrase(title, description string) string {
	return fmt.Sprintf(`Give a 2 to 5 word image search phrase that would find a photo illustrating this news.
Use concrete nouns (people, teams, places, products). No quotes, no punctuation, no explanation.

Title: %s
Description: %s

Phrase:`, strings.TrimSpace(title), strings.TrimSpace(description))
}
