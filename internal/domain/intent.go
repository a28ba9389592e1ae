package domain

import (
	"strings"
	"time"
)

// Timeframe is the recency window an intent asks the retriever for.
type Timeframe string

const (
	Timeframe24Hours Timeframe = "24 hours"
	Timeframe3Days   Timeframe = "3 days"
	Timeframe1Week   Timeframe = "1 week"
	Timeframe1Month  Timeframe = "1 month"

	// DefaultTimeframe is used whenever a derived timeframe is missing or invalid.
	DefaultTimeframe = Timeframe3Days
	// MostUrgentTimeframe is forced when an intent requires live data.
	MostUrgentTimeframe = Timeframe24Hours
)

var timeframeAliases = map[string]Timeframe{
	"24 hours":      Timeframe24Hours,
	"24h":           Timeframe24Hours,
	"24hrs":         Timeframe24Hours,
	"last 24 hours": Timeframe24Hours,
	"last-24h":      Timeframe24Hours,
	"1 day":         Timeframe24Hours,
	"day":           Timeframe24Hours,
	"today":         Timeframe24Hours,
	"3 days":        Timeframe3Days,
	"3d":            Timeframe3Days,
	"last 3 days":   Timeframe3Days,
	"last-3-days":   Timeframe3Days,
	"1 week":        Timeframe1Week,
	"week":          Timeframe1Week,
	"7 days":        Timeframe1Week,
	"last week":     Timeframe1Week,
	"last-week":     Timeframe1Week,
	"1 month":       Timeframe1Month,
	"month":         Timeframe1Month,
	"30 days":       Timeframe1Month,
	"last month":    Timeframe1Month,
	"last-month":    Timeframe1Month,
}

// ParseTimeframe clamps free-form values to the four supported windows.
// The boolean reports whether the input was recognised.
func ParseTimeframe(value string) (Timeframe, bool) {
	key := strings.ToLower(strings.Join(strings.Fields(value), " "))
	if tf, ok := timeframeAliases[key]; ok {
		return tf, true
	}
	return DefaultTimeframe, false
}

// RecencyPhrase renders the window for natural-language prompts.
func (t Timeframe) RecencyPhrase() string {
	switch t {
	case Timeframe24Hours:
		return "from the last 24 hours"
	case Timeframe1Week:
		return "from the last 7 days"
	case Timeframe1Month:
		return "from the last 30 days"
	default:
		return "from the last 3 days"
	}
}

// MaxAgeDays is the article age ceiling passed to the retriever.
func (t Timeframe) MaxAgeDays() int {
	switch t {
	case Timeframe24Hours:
		return 1
	case Timeframe1Week:
		return 7
	case Timeframe1Month:
		return 30
	default:
		return 3
	}
}

// AlertIntent is the cached, structured interpretation of an Alert.
type AlertIntent struct {
	AlertID           string       `json:"alert_id" bson:"alert_id"`
	UserID            string       `json:"user_id" bson:"user_id"`
	Topic             string       `json:"topic" bson:"topic"`
	Category          MainCategory `json:"category" bson:"category"`
	Subcategory       []string     `json:"subcategory" bson:"subcategory"`
	CustomQuestion    string       `json:"custom_question,omitempty" bson:"custom_question,omitempty"`
	FollowupQuestions []string     `json:"followup_questions" bson:"followup_questions"`
	IntentSummary     string       `json:"intent_summary" bson:"intent_summary"`
	Timeframe         Timeframe    `json:"timeframe" bson:"timeframe"`
	SearchQuery       string       `json:"search_query" bson:"search_query"`
	RequiresLiveData  bool         `json:"requires_live_data" bson:"requires_live_data"`
	CreatedAt         time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at" bson:"updated_at"`
}
