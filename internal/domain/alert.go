package domain

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a write collides with a unique key.
var ErrDuplicate = errors.New("duplicate key")

// MainCategory enumerates the top-level alert categories users can pick.
type MainCategory string

const (
	CategorySports        MainCategory = "Sports"
	CategoryNews          MainCategory = "News"
	CategoryBusiness      MainCategory = "Business"
	CategoryTechnology    MainCategory = "Technology"
	CategoryEntertainment MainCategory = "Entertainment"
	CategoryHealth        MainCategory = "Health"
	CategoryScience       MainCategory = "Science"
	CategoryPolitics      MainCategory = "Politics"
	CategoryWeather       MainCategory = "Weather"
	CategoryFinance       MainCategory = "Finance"
	CategoryCustom        MainCategory = "Custom"
)

var knownCategories = []MainCategory{
	CategorySports, CategoryNews, CategoryBusiness, CategoryTechnology,
	CategoryEntertainment, CategoryHealth, CategoryScience, CategoryPolitics,
	CategoryWeather, CategoryFinance, CategoryCustom,
}

// ParseCategory matches a category case-insensitively; unknown values map to Custom.
func ParseCategory(value string) MainCategory {
	value = strings.TrimSpace(value)
	for _, c := range knownCategories {
		if strings.EqualFold(string(c), value) {
			return c
		}
	}
	return CategoryCustom
}

// FollowupQuestion is one answered preference question attached to an alert.
type FollowupQuestion struct {
	Question       string   `json:"question" bson:"question"`
	SelectedAnswer string   `json:"selected_answer" bson:"selected_answer"`
	Options        []string `json:"options,omitempty" bson:"options,omitempty"`
}

// Schedule is informational: the scheduler polls all active alerts on a global interval.
type Schedule struct {
	Frequency string   `json:"frequency,omitempty" bson:"frequency,omitempty"`
	Time      string   `json:"time,omitempty" bson:"time,omitempty"`
	Timezone  string   `json:"timezone,omitempty" bson:"timezone,omitempty"`
	Days      []string `json:"days,omitempty" bson:"days,omitempty"`
}

// Alert is a user's subscription to a stream of personalized updates.
type Alert struct {
	ID                string             `json:"alert_id" bson:"alert_id"`
	UserID            string             `json:"user_id" bson:"user_id"`
	MainCategory      MainCategory       `json:"main_category" bson:"main_category"`
	SubCategories     []string           `json:"sub_categories,omitempty" bson:"sub_categories,omitempty"`
	FollowupQuestions []FollowupQuestion `json:"followup_questions,omitempty" bson:"followup_questions,omitempty"`
	CustomQuestion    string             `json:"custom_question,omitempty" bson:"custom_question,omitempty"`
	IsActive          bool               `json:"is_active" bson:"is_active"`
	Schedule          Schedule           `json:"schedule" bson:"schedule"`
	CreatedAt         time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" bson:"updated_at"`
}

// UserContact is the part of a user profile the notifier needs.
type UserContact struct {
	UserID      string `json:"user_id" bson:"user_id"`
	CountryCode string `json:"country_code" bson:"country_code"`
	PhoneNumber string `json:"phone_number" bson:"phone_number"`
}
