package modules

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"

	"realmsteward.io/steward/internal/api/handlers"
	"realmsteward.io/steward/internal/lifecycle"
	"realmsteward.io/steward/internal/notification"
	"realmsteward.io/steward/internal/provider/identity"
	"realmsteward.io/steward/internal/provider/vcs"
)

// LifecycleModule wires the lifecycle controller to its gateways.
type LifecycleModule struct {
	controller *lifecycle.Controller
	db         handlers.Pinger
}

// NewLifecycleModule builds the provisioning and identity gateways and the
// controller on top of them. notifier may be nil.
func NewLifecycleModule(infra *Infrastructure, notifier *notification.Triggers) (*LifecycleModule, error) {
	if infra == nil || infra.Config == nil || infra.RealmStore == nil || infra.AuditLogger == nil {
		return nil, fmt.Errorf("lifecycle module requires config, realm store and audit logger")
	}
	cfg := infra.Config

	provisioner, err := vcs.NewGateway(cfg.GitHub)
	if err != nil {
		return nil, fmt.Errorf("init provisioning gateway: %w", err)
	}
	registry := identity.NewRegistry(cfg.Identity)

	m := &LifecycleModule{
		controller: lifecycle.New(lifecycle.Deps{
			Store:       infra.RealmStore,
			Audit:       infra.AuditLogger,
			Provisioner: provisioner,
			Identity:    registry,
			Notifier:    notifier,
			Pools:       infra.Pools,
			Metrics:     infra.Metrics,
			AdminRole:   cfg.Security.AdminRole,
		}),
	}
	if infra.DB != nil {
		m.db = infra.DB.Pool
	}
	return m, nil
}

func (m *LifecycleModule) Name() string { return "lifecycle" }

func (m *LifecycleModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	if deps == nil {
		return
	}
	deps.Lifecycle = m.controller
	deps.DB = m.db
}

func (m *LifecycleModule) RegisterWorkers(_ *river.Workers) {}

func (m *LifecycleModule) Shutdown(context.Context) error { return nil }
