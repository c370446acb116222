// Package main seeds a development database with demo realm requests and
// prints the credentials a local deployment needs: a pipeline shared secret
// with its bcrypt hash, and an admin bearer token.
//
// The command is idempotent: realms whose name already exists are skipped.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"realmsteward.io/steward/internal/api/middleware"
	"realmsteward.io/steward/internal/app/modules"
	"realmsteward.io/steward/internal/config"
	"realmsteward.io/steward/internal/domain"
	"realmsteward.io/steward/internal/governance/authz"
	"realmsteward.io/steward/internal/infrastructure"
	"realmsteward.io/steward/internal/pkg/logger"
	"realmsteward.io/steward/internal/repository"
	"realmsteward.io/steward/internal/repository/postgres"
)

func main() {
	realms := flag.Bool("realms", true, "insert demo realm requests")
	secret := flag.String("pipeline-secret", "", "print the bcrypt hash of this pipeline secret")
	adminIdir := flag.String("admin-token", "", "print an admin bearer token for this IDIR user id")
	flag.Parse()

	if err := run(*realms, *secret, *adminIdir); err != nil {
		fmt.Fprintf(os.Stderr, "seed error: %v\n", err)
		os.Exit(1)
	}
}

func run(realms bool, secret, adminIdir string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	if secret != "" {
		hash, err := hashPipelineSecret(secret)
		if err != nil {
			return err
		}
		fmt.Printf("SECURITY_PIPELINE_TOKEN_HASH=%s\n", hash)
	}

	if adminIdir != "" {
		token, expires, err := middleware.GenerateToken(modules.NewJWTConfig(cfg), adminActor(cfg, adminIdir))
		if err != nil {
			return fmt.Errorf("generate admin token: %w", err)
		}
		fmt.Printf("Bearer %s\n# expires %s\n", token, expires.Format(time.RFC3339))
	}

	if !realms {
		return nil
	}
	if cfg.Database.Driver == config.DriverMemory {
		logger.Info("Memory driver configured, demo realms are not persisted")
		return nil
	}

	ctx := context.Background()
	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	// Schema migrations are expected to be applied before seeding.
	logger.Info("Starting data seeding...")
	if err := seedRealms(ctx, postgres.NewRealmStore(db.Pool)); err != nil {
		return fmt.Errorf("seed realms: %w", err)
	}
	logger.Info("Data seeding completed successfully")
	return nil
}

func hashPipelineSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash pipeline secret: %w", err)
	}
	return string(hash), nil
}

func adminActor(cfg *config.Config, idir string) authz.Actor {
	return authz.Actor{
		UserID:      "seed-" + idir,
		IdirUserID:  idir,
		DisplayName: "Seed Administrator",
		Email:       "admin@localhost",
		Roles:       []string{cfg.Security.AdminRole},
	}
}

// demoRealms covers every lifecycle stage a reviewer walks through locally.
func demoRealms() []*domain.RealmRequest {
	pr := func(n int) *int { return &n }
	base := func(name string, status domain.Status, approved domain.Approval) *domain.RealmRequest {
		return &domain.RealmRequest{
			Realm:                      name,
			Purpose:                    "Demo realm seeded for local development",
			ProductName:                "Demo " + name,
			PrimaryEndUsers:            []string{"public"},
			Environments:               append([]domain.Environment(nil), domain.AllEnvironments...),
			ProductOwnerEmail:          "owner@localhost",
			ProductOwnerIdirUserID:     "DEMOPO",
			TechnicalContactEmail:      "tech@localhost",
			TechnicalContactIdirUserID: "DEMOTC",
			Status:                     status,
			Approved:                   approved,
			LastUpdatedBy:              "seed",
		}
	}

	awaiting := base("demo-awaiting", domain.StatusPending, domain.ApprovalUnset)
	declined := base("demo-declined", domain.StatusPending, domain.ApprovalDeclined)
	merged := base("demo-merged", domain.StatusPRSuccess, domain.ApprovalGranted)
	merged.PRNumber = pr(1)
	live := base("demo-live", domain.StatusApplied, domain.ApprovalGranted)
	live.PRNumber = pr(2)
	archived := base("demo-archived", domain.StatusApplied, domain.ApprovalGranted)
	archived.PRNumber = pr(3)
	archived.Archived = true

	return []*domain.RealmRequest{awaiting, declined, merged, live, archived}
}

func seedRealms(ctx context.Context, store repository.RealmStore) error {
	existing, err := store.FindMany(ctx, repository.RealmFilter{IncludeArchived: true})
	if err != nil {
		return fmt.Errorf("list realms: %w", err)
	}
	seeded := make(map[string]bool, len(existing))
	for _, r := range existing {
		seeded[strings.ToLower(r.Realm)] = true
	}

	for _, r := range demoRealms() {
		if seeded[strings.ToLower(r.Realm)] {
			logger.Info("Realm already exists, skipping", zap.String("realm", r.Realm))
			continue
		}
		created, err := store.Create(ctx, r)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateRealm) {
				logger.Info("Realm already exists, skipping", zap.String("realm", r.Realm))
				continue
			}
			return fmt.Errorf("create realm %s: %w", r.Realm, err)
		}
		logger.Info("Seeded realm request",
			zap.String("realm", created.Realm),
			zap.Int64("id", created.ID),
			zap.String("status", string(created.Status)),
		)
	}
	return nil
}
