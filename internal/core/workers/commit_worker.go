package workers

import (
	"context"
	"errors"
	"log"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
)

const DefaultQueueSize = 100

// Saver pushes a local draft to the remote tier and applies the outcome locally.
type Saver interface {
	Save(ctx context.Context, userID string, date domain.CalendarDate) (*domain.CheckinRecord, error)
}

type CommitJob struct {
	UserID string
	Date   domain.CalendarDate
}

// CommitWorker saves drafts in the background. A job dropped because the
// queue is full leaves the record in draft, exactly like a failed save.
type CommitWorker struct {
	saver Saver
	jobs  chan CommitJob
	// OnResult is called after each processed job. Used by tests.
	OnResult func(job CommitJob, err error)
}

func NewCommitWorker(saver Saver, queueSize int) *CommitWorker {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &CommitWorker{
		saver: saver,
		jobs:  make(chan CommitJob, queueSize),
	}
}

func (w *CommitWorker) Start(ctx context.Context) {
	go func() {
		log.Println("Commit Worker started in background...")
		for {
			select {
			case job := <-w.jobs:
				w.processJob(ctx, job)
			case <-ctx.Done():
				log.Println("Commit Worker shutting down...")
				return
			}
		}
	}()
}

// Enqueue never blocks. It reports false when the job was dropped.
func (w *CommitWorker) Enqueue(userID string, date domain.CalendarDate) bool {
	select {
	case w.jobs <- CommitJob{UserID: userID, Date: date}:
		return true
	default:
		log.Printf("Commit Worker queue full! Dropping save for user %s on %s", userID, date)
		return false
	}
}

func (w *CommitWorker) processJob(ctx context.Context, job CommitJob) {
	_, err := w.saver.Save(ctx, job.UserID, job.Date)
	switch {
	case err == nil:
		log.Printf("Commit Worker saved %s for user %s", job.Date, job.UserID)
	case errors.Is(err, domain.ErrRemoteUnavailable):
		log.Printf("Commit Worker: remote unavailable, %s stays draft for user %s: %v", job.Date, job.UserID, err)
	default:
		log.Printf("Commit Worker Error saving %s for user %s: %v", job.Date, job.UserID, err)
	}

	if w.OnResult != nil {
		w.OnResult(job, err)
	}
}
