package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/lexfeed/lexfeed/app/database"
)

// ReapStaleTask releases processing claims abandoned by crashed or hung
// workers so the articles become eligible again.
type ReapStaleTask struct {
	Task
	articles   database.ArticleRepository
	staleAfter time.Duration
}

var _ TaskInterface = (*ReapStaleTask)(nil)

func NewReapStaleTask(articles database.ArticleRepository, staleAfter time.Duration) *ReapStaleTask {
	return &ReapStaleTask{
		Task:       NewTask(TaskTypeReapStale, ""),
		articles:   articles,
		staleAfter: staleAfter,
	}
}

func (t *ReapStaleTask) Execute(_ context.Context) error {
	reaped, err := t.articles.ReapStaleInProgress(t.staleAfter)
	if err != nil {
		return err
	}

	if reaped > 0 {
		slog.Warn("Released stale processing claims", "count", reaped, "stale_after", t.staleAfter)
	}

	return nil
}
