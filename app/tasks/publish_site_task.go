package tasks

import (
	"context"

	"github.com/lexfeed/lexfeed/app/site"
)

// PublishSiteTask regenerates the static reading site.
type PublishSiteTask struct {
	Task
	generator *site.Generator
}

var _ TaskInterface = (*PublishSiteTask)(nil)

func NewPublishSiteTask(generator *site.Generator) *PublishSiteTask {
	return &PublishSiteTask{
		Task:      NewTask(TaskTypePublishSite, ""),
		generator: generator,
	}
}

func (t *PublishSiteTask) Execute(_ context.Context) error {
	return t.generator.Run()
}
