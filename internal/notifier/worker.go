// Package notifier delivers queued email jobs and runs the scheduled
// overdue sweep.
package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"librarium/pkg/queue"
)

// Sender delivers a single email. *mailer.Mailer satisfies it; tests
// substitute a recorder.
type Sender interface {
	Send(subject, body string, recipients []string) error
}

// Consumer is the queue side the worker drains. Both the redis and the
// rabbit queues satisfy it.
type Consumer interface {
	Start(ctx context.Context, concurrency int, handler func(context.Context, queue.EmailJob) error)
}

// Worker pumps email jobs from the queue into the mail sender.
type Worker struct {
	consumer    Consumer
	sender      Sender
	concurrency int
}

func NewWorker(consumer Consumer, sender Sender, concurrency int) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Worker{consumer: consumer, sender: sender, concurrency: concurrency}
}

// Run starts the consumers and blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.consumer.Start(ctx, w.concurrency, w.Handle)
	<-ctx.Done()
}

// Handle delivers one job. A returned error sends the job back through
// the queue's retry path.
func (w *Worker) Handle(_ context.Context, job queue.EmailJob) error {
	if len(job.Recipients) == 0 {
		slog.Warn("email job without recipients", "subject", job.Subject)
		return nil
	}
	if err := w.sender.Send(job.Subject, job.Message, job.Recipients); err != nil {
		return fmt.Errorf("send %q: %w", job.Subject, err)
	}
	slog.Info("email sent", "subject", job.Subject, "recipients", len(job.Recipients))
	return nil
}
