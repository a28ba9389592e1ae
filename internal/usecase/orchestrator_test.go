package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"NewsAlerts/internal/domain"
)

type pipelineFixture struct {
	store     *fakeStore
	gen       *fakeGenerator
	retrieval *fakeRetrieval
	sender    *fakeSender
	orch      *Orchestrator
}

const retrievedArticles = `[{"content": "Arsenal beat Chelsea 2-1 at the Emirates on Sunday to move top of the Premier League. Bukayo Saka scored the winner late on and Arteta praised the response after the break."}]`

func newPipelineFixture(t *testing.T, retrieved string) *pipelineFixture {
	t.Helper()

	f := &pipelineFixture{
		store:  newFakeStore(),
		sender: &fakeSender{},
		gen: &fakeGenerator{respond: func(prompt string) (string, error) {
			switch {
			case strings.Contains(prompt, markIntent):
				return `{"topic":"Arsenal","intent_summary":"Arsenal match results","timeframe":"24 hours","search_query":"Arsenal result","requires_live_data":true}`, nil
			case strings.Contains(prompt, markRating):
				return `{"rating": 9, "reason": "user's team"}`, nil
			case strings.Contains(prompt, markRewrite):
				return `{"title":"Arsenal edge Chelsea to return to the top of the table","description":"Saka's late winner gave Arsenal a 2-1 derby victory at the Emirates and a place back at the top of the Premier League."}`, nil
			case strings.Contains(prompt, markImage):
				return "Arsenal Chelsea derby", nil
			case strings.Contains(prompt, markGatekeeper):
				return `[{"title":"Arsenal edge Chelsea to return to the top of the table","description":"...","reason":"matches team"}]`, nil
			case strings.Contains(prompt, markSimilarity):
				return `{"is_similar": false, "similar_to_index": -1, "confidence": 0.1, "reason": "different"}`, nil
			}
			return "", nil
		}},
		retrieval: &fakeRetrieval{respond: func() (string, error) { return retrieved, nil }},
	}
	f.store.contacts["u1"] = domain.UserContact{UserID: "u1", CountryCode: "+44", PhoneNumber: "07911123456"}
	f.store.alerts = []domain.Alert{{
		ID:            "a1",
		UserID:        "u1",
		MainCategory:  domain.CategorySports,
		SubCategories: []string{"Football"},
		FollowupQuestions: []domain.FollowupQuestion{
			{Question: "Which team?", SelectedAnswer: "Arsenal"},
		},
		IsActive: true,
	}}

	logger := discardLogger()
	retriever, err := NewRetriever(f.retrieval, RetrieverConfig{}, logger)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	f.orch = NewOrchestrator(OrchestratorDeps{
		Alerts:     f.store,
		Intents:    NewIntentDeriver(IntentDeriverDeps{Generator: f.gen, Intents: f.store, Logger: logger}),
		Retriever:  retriever,
		Curator:    NewCurator(CuratorDeps{Generator: f.gen, Articles: f.store, Logger: logger}, CuratorConfig{}),
		Gatekeeper: NewGatekeeper(f.gen, logger),
		Notifier: NewNotifier(NotifierDeps{
			Sender:     f.sender,
			Users:      f.store,
			Dispatches: f.store,
			Duplicates: NewDuplicateChain(f.store, f.gen, SimilarityConfig{Enabled: true}, logger),
			Logger:     logger,
		}, NotifierConfig{TemplateName: "news_alert", BroadcastName: "alerts"}),
		Logger: logger,
	})
	return f
}

func TestProcessAlertSuccess(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, retrievedArticles)
	res := f.orch.ProcessAlert(context.Background(), f.store.alerts[0])

	if res.Status != domain.AlertSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	records := f.store.records()
	if len(records) != 1 || !records[0].MessageSent || records[0].Reason != domain.ReasonSuccess {
		t.Fatalf("expected one sent record, got %+v", records)
	}
	if records[0].Payload == nil || records[0].Payload.Recipient != "447911123456" {
		t.Fatalf("unexpected payload %+v", records[0].Payload)
	}
	if records[0].Title != "Arsenal edge Chelsea to return to the top of the table" {
		t.Fatalf("unexpected title %q", records[0].Title)
	}
	if _, ok := f.store.intents["a1/u1"]; !ok {
		t.Fatal("expected intent cached")
	}
}

func TestProcessAlertNoArticlesWritesNothing(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, "[]")
	res := f.orch.ProcessAlert(context.Background(), f.store.alerts[0])

	if res.Status != domain.AlertSkipped || res.Reason != domain.SkipNoArticlesFound {
		t.Fatalf("expected no_articles_found skip, got %+v", res)
	}
	if n := len(f.store.records()); n != 0 {
		t.Fatalf("expected no dispatch records, got %d", n)
	}
	if len(f.sender.sent) != 0 {
		t.Fatal("expected nothing sent")
	}
}

func TestProcessAlertTwiceIsDuplicate(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, retrievedArticles)
	alert := f.store.alerts[0]

	if res := f.orch.ProcessAlert(context.Background(), alert); res.Status != domain.AlertSuccess {
		t.Fatalf("first run: %+v", res)
	}
	res := f.orch.ProcessAlert(context.Background(), alert)
	if res.Status != domain.AlertSkipped || res.Reason != string(domain.ReasonDuplicateMessage) {
		t.Fatalf("expected duplicate_message on second run, got %+v", res)
	}
	if len(f.sender.sent) != 1 {
		t.Fatalf("expected one send in total, got %d", len(f.sender.sent))
	}
	if f.gen.count(markIntent) != 1 {
		t.Fatalf("expected intent derived once, got %d", f.gen.count(markIntent))
	}
}

func TestProcessIfFirstAlert(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t, retrievedArticles)
	if _, ran, err := f.orch.ProcessIfFirstAlert(context.Background(), "a1"); err != nil || !ran {
		t.Fatalf("expected first alert processed, ran=%v err=%v", ran, err)
	}

	f.store.alerts = append(f.store.alerts, domain.Alert{ID: "a2", UserID: "u1", IsActive: true, CreatedAt: time.Now()})
	if _, ran, err := f.orch.ProcessIfFirstAlert(context.Background(), "a2"); err != nil || ran {
		t.Fatalf("expected second alert to wait for the scheduler, ran=%v err=%v", ran, err)
	}
}
