package usecase

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"NewsAlerts/internal/domain"
	"NewsAlerts/internal/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeGenerator struct {
	mu      sync.Mutex
	calls   []string
	respond func(prompt string) (string, error)
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, _ ports.GenerateOptions) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, prompt)
	f.mu.Unlock()
	if f.respond == nil {
		return "", nil
	}
	return f.respond(prompt)
}

func (f *fakeGenerator) count(marker string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.Contains(c, marker) {
			n++
		}
	}
	return n
}

// Markers that identify which prompt builder produced a prompt.
const (
	markIntent     = "interpret news-alert preferences"
	markRating     = "strict relevance judge"
	markRewrite    = "You write short WhatsApp news alerts"
	markImage      = "image search phrase"
	markGatekeeper = "final gatekeeper"
	markSimilarity = "SAME EVENT"
)

type fakeRetrieval struct {
	calls   atomic.Int32
	block   chan struct{}
	entered chan struct{}
	respond func() (string, error)
}

func (f *fakeRetrieval) Chat(ctx context.Context, _, _ string, _ ports.ChatOptions) (string, error) {
	f.calls.Add(1)
	if f.entered != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.respond == nil {
		return "[]", nil
	}
	return f.respond()
}

type fakeImages struct {
	calls  []ports.ImageSearchOptions
	result func(opts ports.ImageSearchOptions) (*domain.Image, error)
}

func (f *fakeImages) Search(_ context.Context, _ string, opts ports.ImageSearchOptions) (*domain.Image, error) {
	f.calls = append(f.calls, opts)
	if f.result == nil {
		return nil, nil
	}
	return f.result(opts)
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []string
	err   error
	reply map[string]any
}

func (f *fakeSender) SendTemplate(_ context.Context, recipient, _, _ string, _ []domain.TemplateParam) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, recipient)
	if f.reply == nil {
		return map[string]any{"result": true}, nil
	}
	return f.reply, nil
}

// fakeStore is a minimal in-memory implementation of the repositories.
type fakeStore struct {
	mu         sync.Mutex
	alerts     []domain.Alert
	contacts   map[string]domain.UserContact
	intents    map[string]domain.AlertIntent
	articles   map[string]domain.Article
	dispatches []domain.DispatchRecord
	intentGets int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		contacts: map[string]domain.UserContact{},
		intents:  map[string]domain.AlertIntent{},
		articles: map[string]domain.Article{},
	}
}

func (s *fakeStore) ListActiveAlerts(context.Context) ([]domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Alert
	for _, a := range s.alerts {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) GetAlert(_ context.Context, alertID string) (*domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.ID == alertID {
			a := a
			return &a, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeStore) CountUserAlerts(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.alerts {
		if a.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) GetIntent(_ context.Context, alertID, userID string) (*domain.AlertIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intentGets++
	intent, ok := s.intents[alertID+"/"+userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &intent, nil
}

func (s *fakeStore) UpsertIntent(_ context.Context, intent domain.AlertIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents[intent.AlertID+"/"+intent.UserID] = intent
	return nil
}

func (s *fakeStore) UpsertArticle(_ context.Context, article domain.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles[article.AlertID+"/"+article.ContentHash] = article
	return nil
}

func (s *fakeStore) SentWithContentHash(_ context.Context, userID, templateName, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.dispatches {
		if r.MessageSent && r.UserID == userID && r.TemplateName == templateName && r.ContentHash == hash {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) SentWithArticleHash(_ context.Context, userID, templateName, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.dispatches {
		if r.MessageSent && r.UserID == userID && r.TemplateName == templateName && r.ArticleHash == hash {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) RecentSent(_ context.Context, userID, templateName string, since time.Time, limit int) ([]domain.DispatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.DispatchRecord
	for i := len(s.dispatches) - 1; i >= 0 && len(out) < limit; i-- {
		r := s.dispatches[i]
		if r.MessageSent && r.UserID == userID && r.TemplateName == templateName && !r.CreatedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) InsertDispatch(_ context.Context, record domain.DispatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatches = append(s.dispatches, record)
	return nil
}

func (s *fakeStore) FindByUserID(_ context.Context, userID string) (*domain.UserContact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (s *fakeStore) records() []domain.DispatchRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.DispatchRecord(nil), s.dispatches...)
}

type recordingPublisher struct {
	mu      sync.Mutex
	records []domain.DispatchRecord
}

func (p *recordingPublisher) PublishDispatch(_ context.Context, record domain.DispatchRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, record)
	return nil
}
