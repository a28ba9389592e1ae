package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"NewsAlerts/internal/domain"
	"NewsAlerts/internal/ports"
)

// MemoryStore keeps everything in process. It enforces the same unique keys
// as the database backends.
type MemoryStore struct {
	mu         sync.RWMutex
	alerts     map[string]domain.Alert
	users      map[string]domain.UserContact
	intents    map[string]domain.AlertIntent
	articles   map[string]domain.Article
	dispatches []domain.DispatchRecord
}

var _ ports.Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		alerts:   map[string]domain.Alert{},
		users:    map[string]domain.UserContact{},
		intents:  map[string]domain.AlertIntent{},
		articles: map[string]domain.Article{},
	}
}

// PutAlert stores or replaces an alert.
func (s *MemoryStore) PutAlert(alert domain.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[alert.ID] = alert
}

// PutUser stores or replaces a user's contact details.
func (s *MemoryStore) PutUser(contact domain.UserContact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[contact.UserID] = contact
}

// Dispatches returns a copy of the dispatch log in insertion order.
func (s *MemoryStore) Dispatches() []domain.DispatchRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.DispatchRecord(nil), s.dispatches...)
}

func (s *MemoryStore) ListActiveAlerts(context.Context) ([]domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if a.IsActive {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) GetAlert(_ context.Context, alertID string) (*domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[alertID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (s *MemoryStore) CountUserAlerts(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.alerts {
		if a.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) GetIntent(_ context.Context, alertID, userID string) (*domain.AlertIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	intent, ok := s.intents[alertID+"\x00"+userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &intent, nil
}

func (s *MemoryStore) UpsertIntent(_ context.Context, intent domain.AlertIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := intent.AlertID + "\x00" + intent.UserID
	if existing, ok := s.intents[key]; ok && !existing.CreatedAt.IsZero() {
		intent.CreatedAt = existing.CreatedAt
	}
	s.intents[key] = intent
	return nil
}

func (s *MemoryStore) UpsertArticle(_ context.Context, article domain.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles[article.AlertID+"\x00"+article.ContentHash] = article
	return nil
}

func (s *MemoryStore) SentWithContentHash(_ context.Context, userID, templateName, contentHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.dispatches {
		if r.MessageSent && r.UserID == userID && r.TemplateName == templateName && r.ContentHash == contentHash {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) SentWithArticleHash(_ context.Context, userID, templateName, articleHash string) (bool, error) {
	if articleHash == "" {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.dispatches {
		if r.MessageSent && r.UserID == userID && r.TemplateName == templateName && r.ArticleHash == articleHash {
			return true, nil
		}
	}
	return false, nil
}

// RecentSent returns sent records newest first.
func (s *MemoryStore) RecentSent(_ context.Context, userID, templateName string, since time.Time, limit int) ([]domain.DispatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.DispatchRecord
	for _, r := range s.dispatches {
		if r.MessageSent && r.UserID == userID && r.TemplateName == templateName && !r.CreatedAt.Before(since) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// InsertDispatch appends a record. A second sent record with the same
// (user, template, content hash) is rejected with domain.ErrDuplicate.
func (s *MemoryStore) InsertDispatch(_ context.Context, record domain.DispatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.dispatches {
		if r.ID == record.ID && record.ID != "" {
			return domain.ErrDuplicate
		}
		if record.MessageSent && r.MessageSent && r.UserID == record.UserID &&
			r.TemplateName == record.TemplateName && r.ContentHash == record.ContentHash {
			return domain.ErrDuplicate
		}
	}
	s.dispatches = append(s.dispatches, record)
	return nil
}

func (s *MemoryStore) FindByUserID(_ context.Context, userID string) (*domain.UserContact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (s *MemoryStore) Close(context.Context) error { return nil }
