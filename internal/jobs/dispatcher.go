package jobs

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"realmsteward.io/steward/internal/notification"
)

// JobInserter is the subset of the River client used to enqueue jobs.
type JobInserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// EmailDispatcher enqueues emails as River jobs.
type EmailDispatcher struct {
	inserter    JobInserter
	maxAttempts int
}

var _ notification.Dispatcher = (*EmailDispatcher)(nil)

// NewEmailDispatcher creates a dispatcher on inserter. Non-positive
// maxAttempts falls back to DefaultEmailMaxAttempts.
func NewEmailDispatcher(inserter JobInserter, maxAttempts int) *EmailDispatcher {
	if maxAttempts <= 0 {
		maxAttempts = DefaultEmailMaxAttempts
	}
	return &EmailDispatcher{inserter: inserter, maxAttempts: maxAttempts}
}

func (d *EmailDispatcher) Dispatch(ctx context.Context, kind notification.Kind, e notification.Email) error {
	if err := e.Validate(); err != nil {
		return err
	}
	_, err := d.inserter.Insert(ctx, EmailArgs{NotificationKind: kind, Email: e}, &river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: d.maxAttempts,
	})
	if err != nil {
		return fmt.Errorf("enqueue %s email: %w", kind, err)
	}
	return nil
}
