// Package app is the composition root. Bootstrap stays orchestration-only;
// construction lives in the modules package.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/riverqueue/river"

	"realmsteward.io/steward/internal/api/handlers"
	"realmsteward.io/steward/internal/app/modules"
	"realmsteward.io/steward/internal/config"
	"realmsteward.io/steward/internal/infrastructure"
	"realmsteward.io/steward/internal/pkg/worker"
)

// Application holds composed application dependencies.
type Application struct {
	Config  *config.Config
	Router  *gin.Engine
	DB      *infrastructure.DatabaseClients
	Pools   *worker.Pools
	Modules []modules.Module
}

// Bootstrap initializes all dependencies using module-oriented manual DI.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	infra, err := modules.NewInfrastructure(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init infrastructure: %w", err)
	}

	notifications := modules.NewNotificationModule(infra)

	workers := river.NewWorkers()
	notifications.RegisterWorkers(workers)
	if err := infra.InitRiver(workers); err != nil {
		infra.Close()
		return nil, fmt.Errorf("init river workers: %w", err)
	}
	if err := notifications.Bind(); err != nil {
		infra.Close()
		return nil, fmt.Errorf("init notifications: %w", err)
	}

	lifecycleModule, err := modules.NewLifecycleModule(infra, notifications.Triggers())
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init lifecycle module: %w", err)
	}

	allModules := []modules.Module{notifications, lifecycleModule}
	server := handlers.NewServer(modules.NewServerDeps(allModules))

	return &Application{
		Config:  cfg,
		Router:  newRouter(cfg, server, modules.NewJWTConfig(cfg), infra.Registry),
		DB:      infra.DB,
		Pools:   infra.Pools,
		Modules: allModules,
	}, nil
}
