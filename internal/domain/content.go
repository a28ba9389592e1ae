package domain

import "time"

// RawContentItem is one retrieved candidate, identified by the hash of its cleaned body.
type RawContentItem struct {
	Content     string `json:"content"`
	ContentHash string `json:"content_hash"`
}

// RetrievalResult bundles what the retriever asked for and what it got back.
type RetrievalResult struct {
	Query         string           `json:"query"`
	Articles      []RawContentItem `json:"articles"`
	IntentSummary string           `json:"intent_summary"`
}

// Article is the archive record kept for traceability of sent content.
type Article struct {
	AlertID     string    `json:"alert_id" bson:"alert_id"`
	UserID      string    `json:"user_id" bson:"user_id"`
	ContentHash string    `json:"content_hash" bson:"content_hash"`
	Content     string    `json:"content" bson:"content"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// Image is an image-search hit.
type Image struct {
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Source    string `json:"source,omitempty"`
}

// CuratedUpdate is the fixed-shape message candidate produced by the curator.
type CuratedUpdate struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	ImageURL         string `json:"image_url,omitempty"`
	Thumbnail        string `json:"thumbnail,omitempty"`
	ImageSource      string `json:"image_source,omitempty"`
	SearchQueryUsed  string `json:"search_query_used,omitempty"`
	ContentHash      string `json:"content_hash,omitempty"`
	OriginalContent  string `json:"-"`
	Rating           int    `json:"rating,omitempty"`
	RatingReason     string `json:"rating_reason,omitempty"`
	GatekeeperReason string `json:"gatekeeper_reason,omitempty"`
}
