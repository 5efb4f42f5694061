package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"librarium/pkg/queue"
	"librarium/pkg/store"
)

// Enqueuer is the producing side of the job queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.EmailJob) (queue.JobStatus, error)
}

// Sweeper finds open borrow records past their due date and queues a
// reminder for each borrower. It reminds on every run, so a daily
// schedule means one email per overdue book per day.
type Sweeper struct {
	store    store.Store
	enqueuer Enqueuer
}

func NewSweeper(st store.Store, enq Enqueuer) *Sweeper {
	return &Sweeper{store: st, enqueuer: enq}
}

// Sweep queues one reminder per overdue record. A record that cannot
// be resolved or queued is logged and skipped; the rest of the batch
// still goes out. Returns the number of reminders queued.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	records, err := s.store.ListOverdueRecords(now)
	if err != nil {
		return 0, fmt.Errorf("list overdue records: %w", err)
	}
	queued := 0
	for _, rec := range records {
		user, ok, err := s.store.GetUserByID(rec.UserID)
		if err != nil || !ok {
			slog.Warn("skip overdue record: borrower not found", "record", rec.ID, "user", rec.UserID, "err", err)
			continue
		}
		book, ok, err := s.store.GetBook(rec.BookID)
		if err != nil || !ok {
			slog.Warn("skip overdue record: book not found", "record", rec.ID, "book", rec.BookID, "err", err)
			continue
		}
		job := queue.EmailJob{
			Subject:    "Overdue Book Notification",
			Message:    fmt.Sprintf("Dear %s,\n\nThe book '%s' you borrowed is overdue. Please return it as soon as possible.", user.Email, book.Title),
			Recipients: []string{user.Email},
		}
		if _, err := s.enqueuer.Enqueue(ctx, job); err != nil {
			slog.Warn("enqueue overdue reminder", "record", rec.ID, "err", err)
			continue
		}
		queued++
	}
	if queued > 0 {
		slog.Info("overdue sweep complete", "reminders", queued, "overdue", len(records))
	}
	return queued, nil
}
