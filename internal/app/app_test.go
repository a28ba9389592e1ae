package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"NewsAlerts/internal/config"
	"NewsAlerts/internal/domain"
	"NewsAlerts/internal/infrastructure/storage"
)

const articleBody = "India beat Australia by six wickets in the third test at Melbourne on Sunday. " +
	"The chase was anchored by an unbeaten century from the captain. " +
	"The win gives India a two-one lead in the series with one match to play."

func TestRunOnceDispatchesThenDeduplicates(t *testing.T) {
	retrieval := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		content, _ := json.Marshal([]string{articleBody})
		resp, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": string(content)}}},
		})
		_, _ = w.Write(resp)
	}))
	defer retrieval.Close()

	var sends atomic.Int32
	messaging := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("whatsappNumber") != "919876543210" {
			t.Errorf("unexpected recipient %q", r.URL.Query().Get("whatsappNumber"))
		}
		sends.Add(1)
		_, _ = w.Write([]byte(`{"result":true}`))
	}))
	defer messaging.Close()

	dir := t.TempDir()
	t.Setenv(config.ConfigPathEnv, "")
	t.Setenv("NEWS_ALERTS_DOTENV", filepath.Join(dir, "missing.env"))
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_SEARCH_API_KEY", "")
	t.Setenv("NATS_URL", "")
	t.Setenv("PERPLEXITY_API_KEY", "test-key")
	t.Setenv("PERPLEXITY_ENDPOINT", retrieval.URL)
	t.Setenv("WATI_API_ENDPOINT", messaging.URL)
	t.Setenv("WATI_API_TOKEN", "token")
	t.Setenv("WATI_TEMPLATE_NAME", "news_update")
	t.Setenv("PHONE_OVERRIDE", "")

	cfg := config.Load()
	cfg.Server.Enabled = false
	cfg.Scheduler.Enabled = false
	cfg.Scheduler.AlertDelay = 0

	ctx := context.Background()
	a, err := New(ctx, cfg, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	defer a.Close(ctx)

	store, ok := a.store.(*storage.MemoryStore)
	if !ok {
		t.Fatalf("expected memory store, got %T", a.store)
	}
	store.PutAlert(domain.Alert{
		ID:            "alert-1",
		UserID:        "user-1",
		MainCategory:  domain.CategorySports,
		SubCategories: []string{"Cricket"},
		IsActive:      true,
	})
	store.PutUser(domain.UserContact{UserID: "user-1", CountryCode: "91", PhoneNumber: "9876543210"})

	summary, err := a.RunOnce(ctx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if summary.Processed != 1 || sends.Load() != 1 {
		t.Fatalf("expected one dispatch, got %+v and %d sends", summary, sends.Load())
	}

	summary, err = a.RunOnce(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Skipped != 1 || sends.Load() != 1 {
		t.Fatalf("expected duplicate skip, got %+v and %d sends", summary, sends.Load())
	}

	records := store.Dispatches()
	if len(records) != 2 {
		t.Fatalf("expected two dispatch records, got %d", len(records))
	}
	if !records[0].MessageSent || records[0].Reason != domain.ReasonSuccess {
		t.Fatalf("unexpected first record %+v", records[0])
	}
	if records[1].MessageSent || records[1].Reason != domain.ReasonDuplicateMessage {
		t.Fatalf("unexpected second record %+v", records[1])
	}
}

func TestNewRejectsMissingRetrievalKey(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.ConfigPathEnv, "")
	t.Setenv("NEWS_ALERTS_DOTENV", filepath.Join(dir, "missing.env"))
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("PERPLEXITY_API_KEY", "")

	cfg := config.Load()
	cfg.Retrieval.APIKey = ""
	if _, err := New(context.Background(), cfg, "test", slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatal("expected missing retrieval key to fail")
	}
}
