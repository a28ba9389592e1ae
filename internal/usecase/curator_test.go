package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"NewsAlerts/internal/domain"
	"NewsAlerts/internal/ports"
	"NewsAlerts/internal/prompts"
	"NewsAlerts/internal/textclean"
)

const arsenalBody = "Arsenal beat Chelsea 2-1 at the Emirates on Sunday to move top of the Premier League table. " +
	"Bukayo Saka scored the winner in the 78th minute after a swift counter attack. " +
	"Mikel Arteta praised the squad's resilience after a difficult first half. " +
	"The win leaves Arsenal two points clear with eight matches remaining."

func rawItem(body string) domain.RawContentItem {
	cleaned := textclean.CleanArticle(body)
	return domain.RawContentItem{Content: cleaned, ContentHash: textclean.HashContent(cleaned)}
}

func TestRatingThresholdIsInclusive(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		rating string
		passed bool
	}{
		{`{"rating": 7, "reason": "relevant"}`, true},
		{`{"rating": 6, "reason": "loosely related"}`, false},
		{`{"rating": "8/10", "reason": "relevant"}`, true},
	} {
		gen := &fakeGenerator{respond: func(string) (string, error) { return tc.rating, nil }}
		c := NewCurator(CuratorDeps{Generator: gen, Logger: discardLogger()}, CuratorConfig{MinRating: 7})

		got := c.Rate(context.Background(), prompts.Context{}, arsenalBody)
		if got.Passed != tc.passed {
			t.Fatalf("rating %s: expected passed=%v, got %+v", tc.rating, tc.passed, got)
		}
	}
}

func TestRatingFailsOpen(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{respond: func(string) (string, error) { return "", errors.New("quota exceeded") }}
	c := NewCurator(CuratorDeps{Generator: gen, Logger: discardLogger()}, CuratorConfig{})

	if got := c.Rate(context.Background(), prompts.Context{}, arsenalBody); !got.Passed {
		t.Fatalf("expected failure to pass article, got %+v", got)
	}

	gen.respond = func(string) (string, error) { return "I think this is relevant.", nil }
	if got := c.Rate(context.Background(), prompts.Context{}, arsenalBody); !got.Passed {
		t.Fatalf("expected unparseable rating to pass article, got %+v", got)
	}
}

func TestCurateRewriteFallbackKeepsContentHash(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{respond: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, markRating):
			return `{"rating": 9, "reason": "exact team"}`, nil
		case strings.Contains(prompt, markRewrite):
			return "", errors.New("timeout")
		default:
			return "", errors.New("unavailable")
		}
	}}
	store := newFakeStore()
	c := NewCurator(CuratorDeps{Generator: gen, Articles: store, Logger: discardLogger()}, CuratorConfig{})

	item := rawItem(arsenalBody)
	out := c.Curate(context.Background(), domain.AlertIntent{AlertID: "a1", UserID: "u1"}, []domain.RawContentItem{item})

	if len(out) != 1 {
		t.Fatalf("expected one update, got %d", len(out))
	}
	u := out[0]
	if u.Title == "" || u.Description == "" {
		t.Fatalf("fallback rewrite must be non-empty, got %+v", u)
	}
	if !strings.HasPrefix(u.Title, "Arsenal beat Chelsea 2-1") {
		t.Fatalf("expected title from first sentence, got %q", u.Title)
	}
	if len([]rune(u.Title)) > 90 || len([]rune(u.Description)) > 300 {
		t.Fatalf("fallback exceeded limits: %q / %q", u.Title, u.Description)
	}
	if u.ContentHash != item.ContentHash {
		t.Fatalf("content hash not retained: %s vs %s", u.ContentHash, item.ContentHash)
	}
	if u.Rating != 9 {
		t.Fatalf("expected rating carried, got %d", u.Rating)
	}
	if len(store.articles) != 1 {
		t.Fatalf("expected article archived, got %d", len(store.articles))
	}
}

func TestCurateDropsLowRatedAndCaps(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{respond: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, markRating) && strings.Contains(prompt, "Tottenham"):
			return `{"rating": 3, "reason": "different team"}`, nil
		case strings.Contains(prompt, markRating):
			return `{"rating": 8, "reason": "ok"}`, nil
		case strings.Contains(prompt, markRewrite):
			return `{"title": "Arsenal edge Chelsea to reclaim the league lead", "description": "A late goal settled the derby."}`, nil
		default:
			return "", nil
		}
	}}
	c := NewCurator(CuratorDeps{Generator: gen, Logger: discardLogger()}, CuratorConfig{MaxArticles: 2})

	items := []domain.RawContentItem{
		rawItem("Tottenham lost again on Saturday and slipped to ninth place in the table after a dismal display at home."),
		rawItem(arsenalBody),
		rawItem(arsenalBody + " Extra context about the title race."),
		rawItem(arsenalBody + " More context about the injury list."),
	}
	out := c.Curate(context.Background(), domain.AlertIntent{}, items)

	if len(out) != 2 {
		t.Fatalf("expected cap of 2 updates, got %d", len(out))
	}
	for _, u := range out {
		if strings.Contains(u.OriginalContent, "Tottenham") {
			t.Fatal("low rated article should be dropped")
		}
	}
}

func TestParseRewriteLabelledText(t *testing.T) {
	t.Parallel()

	title, desc := ParseRewrite("**TITLE:** Arsenal move clear at the top\nDESCRIPTION: Saka's late goal gave Arsenal a 2-1 win.")
	if title != "Arsenal move clear at the top" {
		t.Fatalf("unexpected title %q", title)
	}
	if desc != "Saka's late goal gave Arsenal a 2-1 win." {
		t.Fatalf("unexpected description %q", desc)
	}
}

func TestImageFallsBackToUnrestrictedSearch(t *testing.T) {
	t.Parallel()

	images := &fakeImages{result: func(opts ports.ImageSearchOptions) (*domain.Image, error) {
		if len(opts.Sites) > 0 {
			return nil, nil
		}
		return &domain.Image{URL: "https://img.example/a.jpg", Source: "example"}, nil
	}}
	c := NewCurator(CuratorDeps{Images: images, Logger: discardLogger()}, CuratorConfig{TrustedSites: []string{"bbc.co.uk"}})

	update := domain.CuratedUpdate{Title: "Arsenal beat Chelsea at the Emirates", Description: "d"}
	c.attachImage(context.Background(), &update)

	if update.ImageURL != "https://img.example/a.jpg" {
		t.Fatalf("expected unrestricted image, got %q", update.ImageURL)
	}
	if len(images.calls) != 2 || len(images.calls[0].Sites) != 1 {
		t.Fatalf("expected trusted search first, got %+v", images.calls)
	}
}

func TestFallbackImagePhraseDropsStopWords(t *testing.T) {
	t.Parallel()

	if got := FallbackImagePhrase("The win for Arsenal at the Emirates in London today"); got != "win Arsenal Emirates London today" {
		t.Fatalf("unexpected phrase %q", got)
	}
}
