package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"NewsAlerts/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRuns struct {
	accept  bool
	trigger int
}

func (f *fakeRuns) Trigger(context.Context) bool {
	f.trigger++
	return f.accept
}

func (f *fakeRuns) Status() domain.RunStatus {
	return domain.RunStatus{IsRunning: !f.accept, IsScheduled: true}
}

type fakeProcessor struct{}

func (fakeProcessor) ProcessAlertByID(_ context.Context, id string) (domain.AlertResult, error) {
	if id == "missing" {
		return domain.AlertResult{}, domain.ErrNotFound
	}
	if id == "broken" {
		return domain.AlertResult{}, errors.New("mongo: connection refused")
	}
	return domain.AlertResult{AlertID: id, Status: domain.AlertSuccess}, nil
}

type fakeIntents struct{}

func (fakeIntents) Parse(_ context.Context, alert domain.Alert) domain.AlertIntent {
	return domain.AlertIntent{AlertID: alert.ID, Topic: "from alert"}
}

func (fakeIntents) ParseText(_ context.Context, text string) domain.AlertIntent {
	return domain.AlertIntent{CustomQuestion: text, Topic: "from text"}
}

type fakeAlerts struct{}

func (fakeAlerts) GetAlert(_ context.Context, id string) (*domain.Alert, error) {
	if id != "a1" {
		return nil, domain.ErrNotFound
	}
	return &domain.Alert{ID: "a1"}, nil
}

func newTestServer(runs *fakeRuns, production bool) http.Handler {
	return NewServer(":0", Deps{
		Runs:       runs,
		Processor:  fakeProcessor{},
		Intents:    fakeIntents{},
		Alerts:     fakeAlerts{},
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Production: production,
	}).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && path != "/metrics" {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s: %v (%s)", path, err, rec.Body.String())
		}
	}
	return rec, env
}

func TestRunTriggerStatusCodes(t *testing.T) {
	t.Parallel()

	runs := &fakeRuns{accept: true}
	h := newTestServer(runs, false)
	rec, env := do(t, h, http.MethodPost, "/run", "")
	if rec.Code != http.StatusAccepted || !env.Success {
		t.Fatalf("expected 202 success, got %d %+v", rec.Code, env)
	}

	runs.accept = false
	rec, env = do(t, h, http.MethodPost, "/run", "")
	if rec.Code != http.StatusOK || env.Success {
		t.Fatalf("expected 200 already running, got %d %+v", rec.Code, env)
	}
}

func TestProcessAlertErrors(t *testing.T) {
	t.Parallel()

	h := newTestServer(&fakeRuns{}, false)
	rec, env := do(t, h, http.MethodPost, "/alerts/missing/process", "")
	if rec.Code != http.StatusNotFound || env.Success {
		t.Fatalf("expected 404, got %d %+v", rec.Code, env)
	}

	rec, env = do(t, h, http.MethodPost, "/alerts/broken/process", "")
	if rec.Code != http.StatusInternalServerError || env.Error == "" {
		t.Fatalf("expected diagnostics outside production, got %d %+v", rec.Code, env)
	}

	rec, env = do(t, h, http.MethodPost, "/alerts/a1/process", "")
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("expected 200, got %d %+v", rec.Code, env)
	}
}

func TestProductionHidesDiagnostics(t *testing.T) {
	t.Parallel()

	h := newTestServer(&fakeRuns{}, true)
	rec, env := do(t, h, http.MethodPost, "/alerts/broken/process", "")
	if rec.Code != http.StatusInternalServerError || env.Error != "" {
		t.Fatalf("expected hidden error, got %d %+v", rec.Code, env)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("connection refused")) {
		t.Fatalf("diagnostics leaked: %s", rec.Body.String())
	}
}

func TestParseIntent(t *testing.T) {
	t.Parallel()

	h := newTestServer(&fakeRuns{}, false)

	rec, env := do(t, h, http.MethodPost, "/intent/parse", `{"text":"who won the match"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "from text") {
		t.Fatalf("unexpected text parse %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = do(t, h, http.MethodPost, "/intent/parse", `{"alert_id":"a1"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "from alert") {
		t.Fatalf("unexpected alert parse %d %s", rec.Code, rec.Body.String())
	}

	rec, env = do(t, h, http.MethodPost, "/intent/parse", `{}`)
	if rec.Code != http.StatusBadRequest || env.Success {
		t.Fatalf("expected 400, got %d %+v", rec.Code, env)
	}

	rec, _ = do(t, h, http.MethodPost, "/intent/parse", `{"alert_id":"nope"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHealthStatusAndMetrics(t *testing.T) {
	t.Parallel()

	h := newTestServer(&fakeRuns{accept: true}, false)
	rec, _ := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}
	rec, env := do(t, h, http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("status: %d %+v", rec.Code, env)
	}
	rec, _ = do(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "newsalerts_") {
		t.Fatalf("metrics: %d", rec.Code)
	}
}
