package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"NewsAlerts/internal/domain"
)

func TestMemoryStoreRejectsSecondSentRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()
	sent := domain.DispatchRecord{ID: "1", UserID: "u", TemplateName: "news", ContentHash: "h", MessageSent: true}
	if err := s.InsertDispatch(ctx, sent); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rejected := sent
	rejected.ID = "2"
	rejected.MessageSent = false
	rejected.Reason = domain.ReasonDuplicateMessage
	if err := s.InsertDispatch(ctx, rejected); err != nil {
		t.Fatalf("unsent records share hashes freely: %v", err)
	}

	again := sent
	again.ID = "3"
	if err := s.InsertDispatch(ctx, again); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	ok, err := s.SentWithContentHash(ctx, "u", "news", "h")
	if err != nil || !ok {
		t.Fatalf("expected content hash to be found, got %v %v", ok, err)
	}
	if ok, _ := s.SentWithContentHash(ctx, "u", "other", "h"); ok {
		t.Fatal("expected template scoping")
	}
}

func TestMemoryStoreRecentSentNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, offset := range []time.Duration{-48 * time.Hour, -2 * time.Hour, -1 * time.Hour, -3 * time.Hour} {
		rec := domain.DispatchRecord{
			ID:           string(rune('a' + i)),
			UserID:       "u",
			TemplateName: "news",
			ContentHash:  string(rune('a' + i)),
			MessageSent:  true,
			CreatedAt:    base.Add(offset),
		}
		if err := s.InsertDispatch(ctx, rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := s.RecentSent(ctx, "u", "news", base.Add(-24*time.Hour), 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "b" {
		t.Fatalf("unexpected records %+v", got)
	}
}

func TestMemoryStoreAlertsAndIntents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()
	s.PutAlert(domain.Alert{ID: "a1", UserID: "u1", IsActive: true})
	s.PutAlert(domain.Alert{ID: "a2", UserID: "u1"})
	s.PutAlert(domain.Alert{ID: "a3", UserID: "u2", IsActive: true})

	active, _ := s.ListActiveAlerts(ctx)
	if len(active) != 2 {
		t.Fatalf("expected 2 active alerts, got %d", len(active))
	}
	if n, _ := s.CountUserAlerts(ctx, "u1"); n != 2 {
		t.Fatalf("expected 2 alerts for u1, got %d", n)
	}
	if _, err := s.GetAlert(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.FindByUserID(ctx, "u1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for user, got %v", err)
	}

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := s.UpsertIntent(ctx, domain.AlertIntent{AlertID: "a1", UserID: "u1", Topic: "one", CreatedAt: created}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.UpsertIntent(ctx, domain.AlertIntent{AlertID: "a1", UserID: "u1", Topic: "two", CreatedAt: created.Add(time.Hour)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	intent, err := s.GetIntent(ctx, "a1", "u1")
	if err != nil || intent.Topic != "two" || !intent.CreatedAt.Equal(created) {
		t.Fatalf("unexpected intent %+v, %v", intent, err)
	}
}
