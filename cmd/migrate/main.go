// Package main applies the embedded schema migrations and River's queue
// tables outside of server startup.
//
// Usage: migrate [-direction up|down] [-river=true]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"go.uber.org/zap"

	"realmsteward.io/steward/internal/config"
	"realmsteward.io/steward/internal/db"
	"realmsteward.io/steward/internal/infrastructure"
	"realmsteward.io/steward/internal/pkg/logger"
)

func main() {
	direction := flag.String("direction", db.DirectionUp, "migration direction: up or down")
	withRiver := flag.Bool("river", true, "also migrate River queue tables")
	flag.Parse()

	if err := run(*direction, *withRiver); err != nil {
		fmt.Fprintf(os.Stderr, "migrate error: %v\n", err)
		os.Exit(1)
	}
}

func run(direction string, withRiver bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	if cfg.Database.Driver == config.DriverMemory {
		logger.Info("Memory driver configured, nothing to migrate")
		return nil
	}

	logger.Info("Running schema migrations", zap.String("direction", direction))
	if err := db.Run(cfg.Database.DSN(), direction); err != nil {
		return err
	}
	if !withRiver {
		return nil
	}

	ctx := context.Background()
	clients, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer clients.Close()

	migrator, err := rivermigrate.New(riverpgxv5.New(clients.Pool), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	riverDirection := rivermigrate.DirectionUp
	if direction == db.DirectionDown {
		riverDirection = rivermigrate.DirectionDown
	}
	res, err := migrator.Migrate(ctx, riverDirection, nil)
	if err != nil {
		return fmt.Errorf("river migrate %s: %w", direction, err)
	}
	logger.Info("Migrations completed", zap.Int("river_versions", len(res.Versions)))
	return nil
}
