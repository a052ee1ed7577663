package database

import (
	"time"

	"github.com/lexfeed/lexfeed/app/content"
)

type SourceRepository interface {
	GetSource(name string) (*Source, error)
	GetSourceCount() (int, error)

	UpsertSource(name, url, category string) error
	UpdateNextFetch(name string, nextFetch time.Time) error
}

// ArticleRepository is the article store plus the processing state machine
// over its status flags.
type ArticleRepository interface {
	InsertArticle(article NewArticle) (int64, bool, error)
	UpdateArticleContent(id int64, content string) error
	GetArticle(id int64) (*Article, error)
	GetProcessedArticles(limit int) ([]Article, error)
	GetArticleCount() (int, error)
	GetArticleStats(maxFailures int) (ArticleStats, error)

	SelectEligible(limit, maxFailures int) ([]int64, error)
	ClaimEligible(limit, maxFailures int) ([]int64, error)
	MarkInProgress(id int64) error
	RecordSuccess(id int64, processedAt time.Time) error
	RecordFailure(id int64, message string) error
	Reset(id int64) error
	ReapStaleInProgress(olderThan time.Duration) (int, error)
	CountExhausted(maxFailures int) (int, error)
}

// ContentRepository writes and reads the normalized per-difficulty,
// per-language content tables.
type ContentRepository interface {
	ApplyResponse(articleID int64, payload *content.Payload) error
	MigrateLegacyRow(row LegacyFeedbackRow, difficulties []content.Difficulty, languages []content.Language) error

	GetSummaries(articleID int64) ([]Summary, error)
	GetSummary(articleID int64, difficulty content.Difficulty, language content.Language) (*Summary, error)
	GetKeywords(articleID int64, difficulty content.Difficulty) ([]Keyword, error)
	GetQuestions(articleID int64, difficulty content.Difficulty) ([]Question, error)
	GetBackground(articleID int64, difficulty content.Difficulty) ([]BackgroundParagraph, error)
	GetComments(articleID int64, difficulty content.Difficulty) ([]Comment, error)
}

type LegacyRepository interface {
	GetLegacyRows() ([]LegacyFeedbackRow, error)
}
