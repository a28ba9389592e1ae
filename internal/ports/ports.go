package ports

import (
	"context"
	"time"

	"NewsAlerts/internal/domain"
)

// GenerateOptions tunes a single text-generation request.
type GenerateOptions struct {
	Temperature float32
	// RelaxSafety disables provider safety blocking; news about violence or
	// crime is otherwise silently dropped.
	RelaxSafety bool
	// JSON asks the provider for a JSON mime type when it supports one.
	JSON bool
}

// TextGenerator is the language-model collaborator used for intent, rating,
// rewriting, gatekeeping and similarity judgements.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// ChatOptions tunes a retrieval chat request.
type ChatOptions struct {
	Temperature float64
	MaxTokens   int
}

// RetrievalClient queries the online search/answer service.
type RetrievalClient interface {
	Chat(ctx context.Context, system, user string, opts ChatOptions) (string, error)
}

// ImageSearchOptions restricts image search to the given sites when non-empty.
type ImageSearchOptions struct {
	Sites []string
}

// ImageSearcher finds an illustrative image; a nil image means no result.
type ImageSearcher interface {
	Search(ctx context.Context, query string, opts ImageSearchOptions) (*domain.Image, error)
}

// MessageSender delivers a templated WhatsApp message.
type MessageSender interface {
	SendTemplate(ctx context.Context, recipient, templateName, broadcastName string, params []domain.TemplateParam) (map[string]any, error)
}

// UserDirectory resolves contact details for a user.
type UserDirectory interface {
	FindByUserID(ctx context.Context, userID string) (*domain.UserContact, error)
}

// AlertRepository reads alerts owned by the user-facing CRUD surface.
type AlertRepository interface {
	ListActiveAlerts(ctx context.Context) ([]domain.Alert, error)
	GetAlert(ctx context.Context, alertID string) (*domain.Alert, error)
	CountUserAlerts(ctx context.Context, userID string) (int, error)
}

// IntentRepository caches derived intents, one per (alert, user).
type IntentRepository interface {
	GetIntent(ctx context.Context, alertID, userID string) (*domain.AlertIntent, error)
	UpsertIntent(ctx context.Context, intent domain.AlertIntent) error
}

// ArticleRepository archives source content by (alert, content hash).
type ArticleRepository interface {
	UpsertArticle(ctx context.Context, article domain.Article) error
}

// DispatchRepository is the append-only dispatch log used for deduplication.
type DispatchRepository interface {
	SentWithContentHash(ctx context.Context, userID, templateName, contentHash string) (bool, error)
	SentWithArticleHash(ctx context.Context, userID, templateName, articleHash string) (bool, error)
	RecentSent(ctx context.Context, userID, templateName string, since time.Time, limit int) ([]domain.DispatchRecord, error)
	InsertDispatch(ctx context.Context, record domain.DispatchRecord) error
}

// Store bundles every repository a storage backend provides.
type Store interface {
	AlertRepository
	IntentRepository
	ArticleRepository
	DispatchRepository
	UserDirectory
	Close(ctx context.Context) error
}

// DispatchPublisher fans dispatch records out to downstream consumers.
type DispatchPublisher interface {
	PublishDispatch(ctx context.Context, record domain.DispatchRecord) error
}

// Scheduler controls when full runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
