package tasks

import (
	"context"
	"log/slog"

	"github.com/lexfeed/lexfeed/app/enrich"
)

// EnrichArticlesTask runs one enrichment batch over eligible articles.
type EnrichArticlesTask struct {
	Task
	processor *enrich.Processor
}

var _ TaskInterface = (*EnrichArticlesTask)(nil)

func NewEnrichArticlesTask(processor *enrich.Processor) *EnrichArticlesTask {
	return &EnrichArticlesTask{
		Task:      NewTask(TaskTypeEnrichArticles, ""),
		processor: processor,
	}
}

func (t *EnrichArticlesTask) Execute(ctx context.Context) error {
	stats, err := t.processor.Run(ctx)
	if err != nil {
		return err
	}

	if stats.Selected > 0 {
		slog.Info("Enrichment batch finished", "selected", stats.Selected, "succeeded", stats.Succeeded,
			"failed", stats.Failed, "exhausted", stats.Exhausted, "duration", t.GetDuration())
	}

	return nil
}
