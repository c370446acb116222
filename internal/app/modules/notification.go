package modules

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"

	"realmsteward.io/steward/internal/api/handlers"
	"realmsteward.io/steward/internal/jobs"
	"realmsteward.io/steward/internal/notification"
)

// NotificationModule owns the email gateway, the River email worker and the
// lifecycle notification triggers.
type NotificationModule struct {
	infra    *Infrastructure
	gateway  notification.Gateway
	renderer *notification.Renderer
	triggers *notification.Triggers
}

// NewNotificationModule builds the email gateway. Triggers are available
// after Bind.
func NewNotificationModule(infra *Infrastructure) *NotificationModule {
	cfg := infra.Config.Notification
	return &NotificationModule{
		infra:    infra,
		gateway:  notification.NewGateway(cfg),
		renderer: notification.NewRenderer(cfg.AppURL, cfg.AdminCc),
	}
}

func (m *NotificationModule) Name() string { return "notification" }

func (m *NotificationModule) ContributeServerDeps(_ *handlers.ServerDeps) {}

// RegisterWorkers registers the email delivery worker.
func (m *NotificationModule) RegisterWorkers(workers *river.Workers) {
	river.AddWorker(workers, jobs.NewEmailWorker(m.gateway, m.infra.Metrics, m.infra.Config.Notification.Timeout))
}

// Bind selects the dispatcher once River is initialized: the durable River
// outbox with PostgreSQL, the gateway worker pool otherwise.
func (m *NotificationModule) Bind() error {
	var dispatcher notification.Dispatcher
	switch {
	case m.infra.RiverClient != nil:
		dispatcher = jobs.NewEmailDispatcher(m.infra.RiverClient, m.infra.Config.Notification.MaxAttempts)
	case m.infra.Pools != nil:
		dispatcher = notification.NewPoolDispatcher(m.gateway, m.infra.Pools, m.infra.Metrics, m.infra.Config.Notification.Timeout)
	default:
		return fmt.Errorf("notification module requires a river client or worker pools")
	}
	m.triggers = notification.NewTriggers(m.renderer, dispatcher, m.infra.Metrics)
	return nil
}

// Triggers returns the lifecycle notification triggers, nil before Bind.
func (m *NotificationModule) Triggers() *notification.Triggers { return m.triggers }

func (m *NotificationModule) Shutdown(context.Context) error { return nil }
