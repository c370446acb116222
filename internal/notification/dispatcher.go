package notification

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"realmsteward.io/steward/internal/metrics"
	"realmsteward.io/steward/internal/pkg/logger"
	"realmsteward.io/steward/internal/pkg/worker"
)

// Dispatcher hands an email off for asynchronous delivery. A nil error
// means the email was accepted, not that it was delivered.
type Dispatcher interface {
	Dispatch(ctx context.Context, kind Kind, e Email) error
}

// PoolDispatcher delivers emails on the gateway worker pool. Delivery is
// attempted once; failures are logged and counted.
type PoolDispatcher struct {
	gateway Gateway
	pools   *worker.Pools
	metrics *metrics.Metrics
	timeout time.Duration
}

var _ Dispatcher = (*PoolDispatcher)(nil)

// NewPoolDispatcher creates a dispatcher that sends through gateway.
func NewPoolDispatcher(gateway Gateway, pools *worker.Pools, m *metrics.Metrics, timeout time.Duration) *PoolDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PoolDispatcher{gateway: gateway, pools: pools, metrics: m, timeout: timeout}
}

func (d *PoolDispatcher) Dispatch(_ context.Context, kind Kind, e Email) error {
	if err := e.Validate(); err != nil {
		return err
	}
	err := d.pools.SubmitDetached(worker.PoolGateway, func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		if err := d.gateway.SendEmail(ctx, e); err != nil {
			d.metrics.IncNotification(string(kind), metrics.OutcomeFailure)
			logger.Error("Email delivery failed",
				zap.String("kind", string(kind)),
				zap.String("subject", e.Subject),
				zap.Error(err),
			)
			return
		}
		d.metrics.IncNotification(string(kind), metrics.OutcomeSuccess)
	})
	if err != nil {
		return fmt.Errorf("submit email: %w", err)
	}
	return nil
}
