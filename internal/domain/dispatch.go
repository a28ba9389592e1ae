package domain

import "time"

// DispatchReason explains why a dispatch record was written.
type DispatchReason string

const (
	ReasonSuccess                    DispatchReason = "success"
	ReasonDuplicateMessage           DispatchReason = "duplicate_message"
	ReasonDuplicateArticle           DispatchReason = "duplicate_article"
	ReasonDuplicateSimilar           DispatchReason = "duplicate_similar"
	ReasonPhoneMissing               DispatchReason = "phone_missing"
	ReasonMissingConfig              DispatchReason = "missing_config"
	ReasonError                      DispatchReason = "error"
	ReasonSkippedNoArticles          DispatchReason = "skipped_no_articles"
	ReasonSkippedNoFormattedArticles DispatchReason = "skipped_no_formatted_articles"
)

// IsDuplicate reports whether the reason is one of the dedup rejections.
func (r DispatchReason) IsDuplicate() bool {
	switch r {
	case ReasonDuplicateMessage, ReasonDuplicateArticle, ReasonDuplicateSimilar:
		return true
	default:
		return false
	}
}

// TemplateParam is one named parameter of an outbound template message.
type TemplateParam struct {
	Name  string `json:"name" bson:"name"`
	Value string `json:"value" bson:"value"`
}

// TemplatePayload is the provider-facing body of a template message.
type TemplatePayload struct {
	Recipient     string          `json:"-" bson:"recipient"`
	TemplateName  string          `json:"template_name" bson:"template_name"`
	BroadcastName string          `json:"broadcast_name" bson:"broadcast_name"`
	Parameters    []TemplateParam `json:"parameters" bson:"parameters"`
}

// DispatchRecord is the append-only log entry of one attempted send.
type DispatchRecord struct {
	ID            string           `json:"id" bson:"_id"`
	UserID        string           `json:"user_id" bson:"user_id"`
	AlertID       string           `json:"alert_id" bson:"alert_id"`
	TemplateName  string           `json:"template_name" bson:"template_name"`
	BroadcastName string           `json:"broadcast_name" bson:"broadcast_name"`
	ContentHash   string           `json:"content_hash" bson:"content_hash"`
	ArticleHash   string           `json:"article_hash,omitempty" bson:"article_hash,omitempty"`
	Title         string           `json:"title" bson:"title"`
	Description   string           `json:"description" bson:"description"`
	ImageURL      string           `json:"image_url,omitempty" bson:"image_url,omitempty"`
	Payload       *TemplatePayload `json:"payload,omitempty" bson:"payload,omitempty"`
	Response      map[string]any   `json:"response,omitempty" bson:"response,omitempty"`
	MessageSent   bool             `json:"message_sent" bson:"message_sent"`
	Reason        DispatchReason   `json:"reason" bson:"reason"`
	Error         string           `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt     time.Time        `json:"created_at" bson:"created_at"`
}

// DispatchOutcome is what the notifier reports back to the orchestrator.
type DispatchOutcome struct {
	Sent     bool           `json:"sent"`
	Reason   DispatchReason `json:"reason"`
	RecordID string         `json:"record_id,omitempty"`
	Detail   string         `json:"detail,omitempty"`
}
