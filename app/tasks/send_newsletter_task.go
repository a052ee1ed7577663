package tasks

import (
	"context"

	"github.com/lexfeed/lexfeed/app/newsletter"
)

// SendNewsletterTask publishes the digest email. Enqueued on demand via
// the API, never on a schedule.
type SendNewsletterTask struct {
	Task
	sender *newsletter.Sender
}

var _ TaskInterface = (*SendNewsletterTask)(nil)

func NewSendNewsletterTask(sender *newsletter.Sender) *SendNewsletterTask {
	return &SendNewsletterTask{
		Task:   NewTask(TaskTypeSendNewsletter, ""),
		sender: sender,
	}
}

func (t *SendNewsletterTask) Execute(ctx context.Context) error {
	return t.sender.Run(ctx)
}
