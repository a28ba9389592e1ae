package textclean

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var htmlTagExpr = regexp.MustCompile(`(?i)</?(?:p|div|span|br|a|b|i|strong|em|ul|li|h[1-6]|article|section)\b[^>]*>`)

// LooksLikeHTML reports whether the text contains common block or inline tags.
func LooksLikeHTML(text string) bool {
	return htmlTagExpr.MatchString(text)
}

// StripHTML extracts readable text from an HTML fragment, keeping paragraph
// breaks and link targets. The input is returned unchanged when it cannot be
// parsed.
func StripHTML(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	doc.Find("script, style, noscript").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		text := strings.TrimSpace(a.Text())
		if strings.HasPrefix(href, "http") && !strings.Contains(text, href) {
			a.ReplaceWithHtml(html.EscapeString(text + " (" + href + ")"))
		}
	})

	var parts []string
	blocks := doc.Find("p, li, h1, h2, h3, h4, h5, h6")
	if blocks.Length() == 0 {
		return CollapseWhitespace(doc.Text())
	}
	blocks.Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return CollapseWhitespace(strings.Join(parts, "\n\n"))
}
