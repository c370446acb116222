package modules

import (
	"context"
	"testing"

	"realmsteward.io/steward/internal/config"
	"realmsteward.io/steward/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

func memoryConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{Driver: config.DriverMemory},
		Worker:   config.WorkerConfig{GeneralPoolSize: 4, GatewayPoolSize: 2},
		Security: config.SecurityConfig{
			JWTSigningKey:       "0123456789abcdef0123456789abcdef",
			JWTVerificationKeys: []string{" old-key ", "", "  "},
			JWTIssuer:           "steward",
			AdminRole:           "sso-admin",
		},
		GitHub:       config.GitHubConfig{Owner: "org", Repo: "infra", BaseBranch: "main"},
		Notification: config.NotificationConfig{AppURL: "http://localhost", MaxAttempts: 3},
	}
}

func TestNewLifecycleModule_RequiresInfraDependencies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		infra *Infrastructure
	}{
		{name: "nil infra", infra: nil},
		{name: "missing all core deps", infra: &Infrastructure{}},
		{name: "missing stores", infra: &Infrastructure{Config: memoryConfig()}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewLifecycleModule(tc.infra, nil); err == nil {
				t.Fatalf("NewLifecycleModule(%s) expected error, got nil", tc.name)
			}
		})
	}
}

func TestMemoryDriver_WiresServerDeps(t *testing.T) {
	infra, err := NewInfrastructure(context.Background(), memoryConfig())
	if err != nil {
		t.Fatalf("NewInfrastructure: %v", err)
	}
	t.Cleanup(infra.Close)

	if infra.DB != nil {
		t.Fatalf("memory driver opened a database")
	}
	if err := infra.InitRiver(nil); err != nil {
		t.Fatalf("InitRiver without database: %v", err)
	}

	notifications := NewNotificationModule(infra)
	if err := notifications.Bind(); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if notifications.Triggers() == nil {
		t.Fatalf("triggers not built after Bind")
	}

	lc, err := NewLifecycleModule(infra, notifications.Triggers())
	if err != nil {
		t.Fatalf("NewLifecycleModule: %v", err)
	}

	deps := NewServerDeps([]Module{notifications, nil, lc})
	if deps.Lifecycle == nil {
		t.Fatalf("lifecycle controller not contributed")
	}
	if deps.DB != nil {
		t.Fatalf("DB pinger = %v, want nil in memory mode", deps.DB)
	}
}

func TestNotificationModule_BindRequiresTransport(t *testing.T) {
	m := NewNotificationModule(&Infrastructure{Config: memoryConfig()})
	if err := m.Bind(); err == nil {
		t.Fatalf("Bind without river or pools expected error")
	}
}

func TestNewJWTConfig_SkipsBlankVerificationKeys(t *testing.T) {
	cfg := NewJWTConfig(memoryConfig())
	if len(cfg.VerificationKeys) != 1 || string(cfg.VerificationKeys[0]) != "old-key" {
		t.Fatalf("VerificationKeys = %q, want [old-key]", cfg.VerificationKeys)
	}
	if cfg.Issuer != "steward" {
		t.Fatalf("Issuer = %q, want steward", cfg.Issuer)
	}
}
