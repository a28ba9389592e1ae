// Package textclean holds the pure text helpers shared by the pipeline stages:
// artifact cleaning with URL protection, hashing, sentence handling and
// defensive extraction of JSON embedded in model output.
package textclean

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var (
	urlExpr         = regexp.MustCompile(`https?://[^\s<>"'\)\]]+`)
	placeholderExpr = regexp.MustCompile(`__URL_(\d+)__`)
	hexHashExpr     = regexp.MustCompile(`\b[a-fA-F0-9]{32,128}\b`)
	citationExpr    = regexp.MustCompile(`\[\d+(?:\s*,\s*\d+)*\]`)
	debugTagExpr    = regexp.MustCompile(`(?i)\[(?:debug|trace|info|log|internal)[^\]]*\]`)
	debugLineExpr   = regexp.MustCompile(`(?im)^\s*(?:debug|trace|console\.log|print)\s*[:(].*$`)
	objectTagExpr   = regexp.MustCompile(`\[object Object\]|<nil>|%!\w\([^)]*\)`)
	ellipsisExpr    = regexp.MustCompile(`(?:\.\s?){3,}|…+`)
	foreignExpr     = regexp.MustCompile(`[\p{Han}\p{Hiragana}\p{Katakana}\p{Hangul}\p{Cyrillic}]+`)
	spaceExpr       = regexp.MustCompile(`[ \t\f\v]+`)
	blankLinesExpr  = regexp.MustCompile(`\n\s*\n+`)
)

// ProtectURLs swaps every URL for a numbered placeholder so noise patterns
// cannot damage it. RestoreURLs reverses the substitution.
func ProtectURLs(text string) (string, []string) {
	var urls []string
	protected := urlExpr.ReplaceAllStringFunc(text, func(u string) string {
		trimmed := strings.TrimRight(u, ".,;:!?")
		suffix := u[len(trimmed):]
		urls = append(urls, trimmed)
		return fmt.Sprintf("__URL_%d__%s", len(urls)-1, suffix)
	})
	return protected, urls
}

// RestoreURLs puts back URLs removed by ProtectURLs.
func RestoreURLs(text string, urls []string) string {
	if len(urls) == 0 {
		return text
	}
	return placeholderExpr.ReplaceAllStringFunc(text, func(ph string) string {
		m := placeholderExpr.FindStringSubmatch(ph)
		var idx int
		if _, err := fmt.Sscanf(m[1], "%d", &idx); err != nil || idx < 0 || idx >= len(urls) {
			return ""
		}
		return urls[idx]
	})
}

// CleanArticle strips retrieval artifacts from an article body. It is
// idempotent: CleanArticle(CleanArticle(x)) == CleanArticle(x). Collapsing
// whitespace can join fragments into new matches, so the rules repeat until
// the text stops changing.
func CleanArticle(text string) string {
	if LooksLikeHTML(text) {
		text = StripHTML(text)
	}
	for i := 0; i < maxCleanPasses; i++ {
		next := cleanPass(text)
		if next == text {
			break
		}
		text = next
	}
	return text
}

const maxCleanPasses = 8

func cleanPass(text string) string {
	protected, urls := ProtectURLs(text)

	protected = debugLineExpr.ReplaceAllString(protected, "")
	protected = debugTagExpr.ReplaceAllString(protected, " ")
	protected = objectTagExpr.ReplaceAllString(protected, " ")
	protected = citationExpr.ReplaceAllString(protected, "")
	protected = hexHashExpr.ReplaceAllString(protected, " ")
	protected = ellipsisExpr.ReplaceAllString(protected, " ")
	if mostlyLatin(protected) {
		protected = foreignExpr.ReplaceAllString(protected, " ")
	}
	protected = CollapseWhitespace(protected)

	return RestoreURLs(protected, urls)
}

// CollapseWhitespace squeezes runs of spaces, trims every line and keeps at
// most one blank line between paragraphs.
func CollapseWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = spaceExpr.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankLinesExpr.ReplaceAllString(text, "\n\n")
	text = strings.ReplaceAll(text, " ,", ",")
	text = strings.ReplaceAll(text, " .", ".")
	return strings.TrimSpace(text)
}

// SingleLine collapses all whitespace, newlines included, into single spaces.
func SingleLine(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// HasArtifacts reports whether the text still carries serialization or debug noise.
func HasArtifacts(text string) bool {
	return objectTagExpr.MatchString(text) || debugTagExpr.MatchString(text) ||
		strings.Contains(text, "map[") || strings.Contains(text, "&{")
}

func mostlyLatin(text string) bool {
	var latin, other int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Latin, r):
			latin++
		case unicode.IsLetter(r):
			other++
		}
	}
	return latin > 0 && latin >= other*2
}

// Sentences splits text into sentences on terminal punctuation followed by
// whitespace. Decimal numbers and URLs stay intact.
func Sentences(text string) []string {
	protected, urls := ProtectURLs(SingleLine(text))
	runes := []rune(protected)
	var out []string
	start := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		sentence := strings.TrimSpace(string(runes[start : i+1]))
		if sentence != "" {
			out = append(out, RestoreURLs(sentence, urls))
		}
		start = i + 1
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		out = append(out, RestoreURLs(rest, urls))
	}
	return out
}

// Truncate shortens text to at most limit runes, cutting on a word boundary
// when one exists. No ellipsis is appended.
func Truncate(text string, limit int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	cut := string(runes[:limit])
	if idx := strings.LastIndexFunc(cut, unicode.IsSpace); idx > limit/2 {
		cut = cut[:idx]
	}
	return strings.TrimRight(strings.TrimSpace(cut), ",;:-")
}

// TruncateRunes is a hard rune cut without word-boundary handling.
func TruncateRunes(text string, limit int) string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
