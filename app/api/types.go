package api

import (
	"time"

	"github.com/lexfeed/lexfeed/app/database"
)

type healthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Articles int    `json:"articles"`
	Sources  int    `json:"sources"`
}

type statsResponse struct {
	Articles database.ArticleStats `json:"articles"`
	Sources  int                   `json:"sources"`
}

type articleSummary struct {
	ID          int64      `json:"id"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Category    string     `json:"category,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

type articleDetail struct {
	articleSummary
	Description  string        `json:"description,omitempty"`
	Processed    bool          `json:"processed"`
	InProgress   bool          `json:"in_progress"`
	FailureCount int           `json:"failure_count"`
	LastError    string        `json:"last_error,omitempty"`
	Summaries    []tierSummary `json:"summaries,omitempty"`
}

type tierSummary struct {
	Difficulty string `json:"difficulty"`
	Language   string `json:"language"`
	Title      string `json:"title"`
	Summary    string `json:"summary"`
}
