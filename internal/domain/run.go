package domain

import "time"

// AlertStatus is the per-alert outcome of one orchestrator pass.
type AlertStatus string

const (
	AlertSuccess AlertStatus = "success"
	AlertSkipped AlertStatus = "skipped"
	AlertError   AlertStatus = "error"
)

// Skip reasons reported by the orchestrator before anything is dispatched.
const (
	SkipMissingQuery        = "missing_query"
	SkipNoArticlesFound     = "no_articles_found"
	SkipNoFormattedArticles = "no_formatted_articles"
)

// AlertResult describes what happened to one alert.
type AlertResult struct {
	AlertID  string        `json:"alert_id"`
	UserID   string        `json:"user_id"`
	Status   AlertStatus   `json:"status"`
	Reason   string        `json:"reason,omitempty"`
	Error    string        `json:"error,omitempty"`
	Title    string        `json:"title,omitempty"`
	Articles int           `json:"articles"`
	Curated  int           `json:"curated"`
	Duration time.Duration `json:"duration"`
}

// RunSummary aggregates one full pass over the active alerts.
type RunSummary struct {
	RunID      string        `json:"run_id"`
	Started    bool          `json:"started"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Users      int           `json:"users"`
	Processed  int           `json:"processed"`
	Skipped    int           `json:"skipped"`
	Errored    int           `json:"errored"`
	Details    []AlertResult `json:"details"`
}

// RunStatus is the externally visible scheduler state.
type RunStatus struct {
	IsRunning   bool          `json:"isRunning"`
	LastRun     *time.Time    `json:"lastRun"`
	Interval    time.Duration `json:"interval"`
	IsScheduled bool          `json:"isScheduled"`
}
