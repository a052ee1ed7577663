package tasks

import (
	"context"
	"log/slog"

	"github.com/lexfeed/lexfeed/app/feed"
)

// CollectSourceTask fetches one source's feed and ingests new articles.
type CollectSourceTask struct {
	Task
	collector *feed.Collector
}

var _ TaskInterface = (*CollectSourceTask)(nil)

func NewCollectSourceTask(sourceName string, collector *feed.Collector) *CollectSourceTask {
	return &CollectSourceTask{
		Task:      NewTask(TaskTypeCollectSource, sourceName),
		collector: collector,
	}
}

func (t *CollectSourceTask) Execute(ctx context.Context) error {
	stats, err := t.collector.Run(ctx, t.Subject)
	if err != nil {
		return err
	}

	slog.Debug("Collect task finished", "source", t.Subject, "inserted", stats.Inserted, "duration", t.GetDuration())

	return nil
}
