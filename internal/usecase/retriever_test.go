package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"NewsAlerts/internal/config"
	"NewsAlerts/internal/domain"
	"NewsAlerts/internal/textclean"
)

func TestNewRetrieverRequiresClient(t *testing.T) {
	t.Parallel()

	if _, err := NewRetriever(nil, RetrieverConfig{}, discardLogger()); !errors.Is(err, config.ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestRetrieveCleansFiltersAndCaps(t *testing.T) {
	t.Parallel()

	long := func(prefix string) string {
		return prefix + " " + strings.Repeat("Detailed reporting on the event with names and numbers. ", 3)
	}
	client := &fakeRetrieval{respond: func() (string, error) {
		return "Here are the results:\n```json\n[" +
			`{"content": "` + long("First story 0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef") + `"},` +
			`"` + long("Second story as a bare string...") + `",` +
			`{"content": "too short"},` +
			`{"content": "` + long("Third story") + `"},` +
			`{"content": "` + long("Fourth story") + `"},` +
			`{"content": "` + long("Fifth story") + `"}` +
			"]\n```", nil
	}}
	r, err := NewRetriever(client, RetrieverConfig{}, discardLogger())
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	res, err := r.Retrieve(context.Background(), domain.AlertIntent{IntentSummary: "Arsenal match results", Timeframe: domain.Timeframe24Hours})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(res.Articles) != 4 {
		t.Fatalf("expected 4 articles after filtering and capping, got %d", len(res.Articles))
	}
	first := res.Articles[0]
	if strings.Contains(first.Content, "0123456789abcdef0123") {
		t.Fatalf("expected hash artifact removed, got %q", first.Content)
	}
	if first.ContentHash == "" || first.ContentHash != textclean.HashContent(first.Content) {
		t.Fatal("expected content hash of cleaned body")
	}
	if strings.Contains(res.Articles[1].Content, "...") {
		t.Fatal("expected ellipsis removed")
	}
	if !strings.Contains(res.Query, "Arsenal match results") || !strings.Contains(res.Query, "from the last 24 hours") {
		t.Fatalf("unexpected search sentence %q", res.Query)
	}
}

func TestRetrieveTreatsProseAsSingleBody(t *testing.T) {
	t.Parallel()

	prose := "Arsenal beat Chelsea 2-1 on Sunday. " + strings.Repeat("The match report continues with more detail. ", 3)
	client := &fakeRetrieval{respond: func() (string, error) { return prose, nil }}
	r, _ := NewRetriever(client, RetrieverConfig{}, discardLogger())

	res, err := r.Retrieve(context.Background(), domain.AlertIntent{})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(res.Articles) != 1 {
		t.Fatalf("expected prose to become one body, got %d", len(res.Articles))
	}
}

func TestSearchSentenceRebuildsWhenSummaryHasArtifacts(t *testing.T) {
	t.Parallel()

	r, _ := NewRetriever(&fakeRetrieval{}, RetrieverConfig{}, discardLogger())
	got := r.SearchSentence(domain.AlertIntent{
		IntentSummary: "News about [object Object]",
		Category:      domain.CategoryBusiness,
		Subcategory:   []string{"Tesla"},
		Timeframe:     domain.Timeframe1Week,
	})
	if strings.Contains(got, "object") || !strings.Contains(got, "Business news about Tesla from the last 7 days") {
		t.Fatalf("unexpected sentence %q", got)
	}
}

func TestRetrieveWrapsClientErrors(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("status 500")
	r, _ := NewRetriever(&fakeRetrieval{respond: func() (string, error) { return "", sentinel }}, RetrieverConfig{}, discardLogger())
	if _, err := r.Retrieve(context.Background(), domain.AlertIntent{}); !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped client error, got %v", err)
	}
}
