package database

import (
	"time"

	"github.com/lexfeed/lexfeed/app/content"
)

type Source struct {
	Name          string // Derived from the config filename
	URL           string
	Category      string
	LastFetchedAt *time.Time
	NextFetchAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Article struct {
	ID          int64
	URL         string
	Title       string
	TitleZH     string
	Description string
	Content     string
	Category    string
	PublishedAt *time.Time
	CrawledAt   time.Time

	// Processing state machine
	Processed    bool
	InProgress   bool
	FailureCount int
	LastError    string
	ProcessedAt  *time.Time
	ClaimedAt    *time.Time
}

// NewArticle carries the fields ingestion provides; the processing-status
// columns always start at their defaults.
type NewArticle struct {
	URL         string
	Title       string
	TitleZH     string
	Description string
	Content     string
	Category    string
	PublishedAt *time.Time
}

type ArticleStats struct {
	Total      int
	Processed  int
	Pending    int
	InProgress int
	Exhausted  int
}

type Summary struct {
	ID         int64
	ArticleID  int64
	Difficulty content.Difficulty
	Language   content.Language
	Title      string
	Summary    string
}

type Keyword struct {
	ID          int64
	ArticleID   int64
	Difficulty  content.Difficulty
	Term        string
	Explanation string
}

type Question struct {
	ID         int64
	ArticleID  int64
	Difficulty content.Difficulty
	Position   int
	Question   string
	Choices    []Choice
}

type Choice struct {
	ID          int64
	QuestionID  int64
	Choice      string
	IsCorrect   bool
	Explanation *string
}

type BackgroundParagraph struct {
	ID         int64
	ArticleID  int64
	Difficulty content.Difficulty
	Position   int
	Paragraph  string
}

type Comment struct {
	ID         int64
	ArticleID  int64
	Difficulty content.Difficulty
	Author     string
	Attitude   string
	Body       string
}

// LegacyFeedbackRow is one row of the deprecated wide table. The JSON
// columns are a migration input format only, never a runtime
// representation.
type LegacyFeedbackRow struct {
	ArticleID      int64
	SummaryEN      string
	SummaryZH      string
	KeywordsJSON   string
	QuestionsJSON  string
	DiscussionJSON string
}
