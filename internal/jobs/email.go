// Package jobs defines River job types for async processing.
//
// The email job is the notification outbox: a lifecycle operation enqueues
// the rendered email and returns, and delivery is retried by River until it
// succeeds or runs out of attempts.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"realmsteward.io/steward/internal/metrics"
	"realmsteward.io/steward/internal/notification"
	"realmsteward.io/steward/internal/pkg/logger"
)

const (
	// DefaultEmailMaxAttempts bounds delivery retries when not configured.
	DefaultEmailMaxAttempts = 5
	// DefaultEmailTimeout bounds a single delivery attempt.
	DefaultEmailTimeout = 30 * time.Second
)

// EmailArgs carries a rendered lifecycle email.
type EmailArgs struct {
	NotificationKind notification.Kind  `json:"notification_kind"`
	Email            notification.Email `json:"email"`
}

// Kind returns the job kind identifier for email delivery.
func (EmailArgs) Kind() string { return "realm_email" }

// InsertOpts places email jobs on the default queue.
func (EmailArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: DefaultEmailMaxAttempts,
	}
}

// EmailWorker delivers EmailArgs through the notification gateway.
type EmailWorker struct {
	river.WorkerDefaults[EmailArgs]
	gateway notification.Gateway
	metrics *metrics.Metrics
	timeout time.Duration
}

// NewEmailWorker creates an email worker. Non-positive timeout falls back to
// DefaultEmailTimeout.
func NewEmailWorker(gateway notification.Gateway, m *metrics.Metrics, timeout time.Duration) *EmailWorker {
	if timeout <= 0 {
		timeout = DefaultEmailTimeout
	}
	return &EmailWorker{gateway: gateway, metrics: m, timeout: timeout}
}

// Timeout bounds each attempt.
func (w *EmailWorker) Timeout(*river.Job[EmailArgs]) time.Duration {
	return w.timeout
}

// Work sends the email. A returned error schedules a retry.
func (w *EmailWorker) Work(ctx context.Context, job *river.Job[EmailArgs]) error {
	if w == nil || w.gateway == nil {
		return fmt.Errorf("email worker is not initialized")
	}

	kind := string(job.Args.NotificationKind)
	if err := w.gateway.SendEmail(ctx, job.Args.Email); err != nil {
		w.metrics.IncNotification(kind, metrics.OutcomeFailure)
		logger.Warn("Email delivery attempt failed",
			zap.String("kind", kind),
			zap.Int64("job_id", job.ID),
			zap.Int("attempt", job.Attempt),
			zap.Error(err),
		)
		return fmt.Errorf("deliver %s email: %w", kind, err)
	}

	w.metrics.IncNotification(kind, metrics.OutcomeSuccess)
	logger.Debug("Email delivered",
		zap.String("kind", kind),
		zap.Int64("job_id", job.ID),
	)
	return nil
}
