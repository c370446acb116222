// Package config provides configuration management for Realm Steward.
//
// Configuration is loaded from:
// 1. config.yaml file (optional)
// 2. Environment variables (standard names like DATABASE_URL, SERVER_PORT)
// 3. Default values
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Rollout environments that carry an identity-provider instance.
var rolloutEnvironments = []string{"dev", "test", "prod"}

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the root configuration structure.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Log          LogConfig          `mapstructure:"log"`
	River        RiverConfig        `mapstructure:"river"`
	Security     SecurityConfig     `mapstructure:"security"`
	Worker       WorkerConfig       `mapstructure:"worker"`
	GitHub       GitHubConfig       `mapstructure:"github"`
	Identity     IdentityConfig     `mapstructure:"identity"`
	Notification NotificationConfig `mapstructure:"notification"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port                  int           `mapstructure:"port"`
	ReadTimeout           time.Duration `mapstructure:"read_timeout"`
	WriteTimeout          time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout       time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins        []string      `mapstructure:"allowed_origins"`
	AllowCredentials      bool          `mapstructure:"allow_credentials"`
	UnsafeAllowAllOrigins bool          `mapstructure:"unsafe_allow_all_origins"`
}

// DatabaseConfig contains PostgreSQL connection settings.
// The pool is shared by the realm store and River.
type DatabaseConfig struct {
	// Driver selects the store backend: postgres or memory.
	Driver string `mapstructure:"driver"`

	URL string `mapstructure:"url"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`

	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
// Priority: DATABASE_URL > constructed from individual fields.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslmode,
	)
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// RiverConfig contains River Queue settings.
type RiverConfig struct {
	MaxWorkers                  int           `mapstructure:"max_workers"`
	CompletedJobRetentionPeriod time.Duration `mapstructure:"completed_job_retention_period"`
}

// SecurityConfig contains security-related settings.
type SecurityConfig struct {
	// JWTSigningKey verifies HS256 bearer tokens. Auto-generated when empty.
	JWTSigningKey string `mapstructure:"jwt_signing_key"`
	// JWTVerificationKeys are retired signing keys still accepted during rotation.
	JWTVerificationKeys []string `mapstructure:"jwt_verification_keys"`
	// JWTIssuer, when set, must match the token issuer.
	JWTIssuer string `mapstructure:"jwt_issuer"`
	// AdminRole is the role claim value that marks an administrator.
	AdminRole string `mapstructure:"admin_role"`
	// PipelineTokenHash is the bcrypt hash of the CI pipeline's shared secret.
	PipelineTokenHash string `mapstructure:"pipeline_token_hash"`
}

// WorkerConfig contains worker pool settings.
type WorkerConfig struct {
	GeneralPoolSize int `mapstructure:"general_pool_size"`
	GatewayPoolSize int `mapstructure:"gateway_pool_size"`
}

// GitHubConfig contains settings for the infrastructure repository.
type GitHubConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Owner      string        `mapstructure:"owner"`
	Repo       string        `mapstructure:"repo"`
	BaseBranch string        `mapstructure:"base_branch"`
	Token      string        `mapstructure:"token"`
	ModuleRef  string        `mapstructure:"module_ref"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// IdentityConfig contains per-environment identity-provider admin settings.
type IdentityConfig struct {
	Environments map[string]IdentityEnvConfig `mapstructure:"environments"`
	// AdminRoles are the client roles of "<realm>-realm" in the master
	// realm that make up realm-admin.
	AdminRoles []string      `mapstructure:"admin_roles"`
	Timeout    time.Duration `mapstructure:"timeout"`
	CacheSize  int           `mapstructure:"cache_size"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

// IdentityEnvConfig is one environment's admin endpoint and credentials.
type IdentityEnvConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	// MasterRealm holds realm-admin users and the <realm>-realm clients.
	MasterRealm string `mapstructure:"master_realm"`
	// HomeRealm is the realm users federate from.
	HomeRealm string `mapstructure:"home_realm"`
	// HomeIdPAlias is the identity-provider alias linked to master users.
	HomeIdPAlias string `mapstructure:"home_idp_alias"`
}

// NotificationConfig contains SMTP and email content settings.
type NotificationConfig struct {
	SMTPHost     string        `mapstructure:"smtp_host"`
	SMTPPort     int           `mapstructure:"smtp_port"`
	SMTPUsername string        `mapstructure:"smtp_username"`
	SMTPPassword string        `mapstructure:"smtp_password"`
	SMTPTLS      bool          `mapstructure:"smtp_tls"`
	From         string        `mapstructure:"from"`
	AdminCc      []string      `mapstructure:"admin_cc"`
	AppURL       string        `mapstructure:"app_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
}

var (
	bootstrapLoggerOnce sync.Once
	bootstrapLogger     *zap.Logger
)

// Load reads configuration from file and environment variables.
// Nested keys map to upper-case env names: database.max_conns -> DATABASE_MAX_CONNS.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/realm-steward")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.ensureSecrets(); err != nil {
		return nil, fmt.Errorf("ensure secrets: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	if len(c.Security.JWTSigningKey) < 32 {
		return fmt.Errorf("security.jwt_signing_key must be at least 32 characters")
	}
	if c.Security.AdminRole == "" {
		return fmt.Errorf("security.admin_role must not be empty")
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverPostgres, DriverMemory, c.Database.Driver)
	}
	for env := range c.Identity.Environments {
		if !isRolloutEnvironment(env) {
			return fmt.Errorf("identity.environments: unknown environment %q", env)
		}
	}
	if c.Notification.MaxAttempts < 1 {
		return fmt.Errorf("notification.max_attempts must be positive")
	}
	return nil
}

// ensureSecrets auto-generates missing secrets.
func (c *Config) ensureSecrets() error {
	if c.Security.JWTSigningKey == "" {
		secret, err := generateSecureRandomHex(32)
		if err != nil {
			return fmt.Errorf("auto-generate jwt signing key: %w", err)
		}
		c.Security.JWTSigningKey = secret
		logBootstrapWarn(
			"auto-generated jwt_signing_key; set SECURITY_JWT_SIGNING_KEY env var for persistence",
			zap.Int("length", len(secret)),
		)
	}
	if c.Security.PipelineTokenHash == "" {
		logBootstrapWarn("security.pipeline_token_hash is empty; pipeline callbacks will be rejected")
	}
	return nil
}

func logBootstrapWarn(msg string, fields ...zap.Field) {
	bootstrapLoggerOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)

		l, err := cfg.Build()
		if err != nil {
			bootstrapLogger = zap.NewNop()
			return
		}
		bootstrapLogger = l
	})

	bootstrapLogger.Warn(msg, fields...)
}

// generateSecureRandomHex produces a hex-encoded string of n random bytes.
func generateSecureRandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("crypto/rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func isRolloutEnvironment(env string) bool {
	for _, e := range rolloutEnvironments {
		if e == env {
			return true
		}
	}
	return false
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.allow_credentials", true)
	v.SetDefault("server.unsafe_allow_all_origins", false)

	// Database
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "steward")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "steward")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "10m")
	v.SetDefault("database.auto_migrate", false)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// River
	v.SetDefault("river.max_workers", 10)
	v.SetDefault("river.completed_job_retention_period", "24h")

	// Security
	v.SetDefault("security.jwt_signing_key", "")
	v.SetDefault("security.jwt_verification_keys", []string{})
	v.SetDefault("security.jwt_issuer", "")
	v.SetDefault("security.admin_role", "sso-admin")
	v.SetDefault("security.pipeline_token_hash", "")

	// Worker pools
	v.SetDefault("worker.general_pool_size", 64)
	v.SetDefault("worker.gateway_pool_size", 16)

	// GitHub
	v.SetDefault("github.base_url", "")
	v.SetDefault("github.owner", "")
	v.SetDefault("github.repo", "")
	v.SetDefault("github.base_branch", "main")
	v.SetDefault("github.token", "")
	v.SetDefault("github.module_ref", "../../modules/realm")
	v.SetDefault("github.timeout", "30s")

	// Identity: keys are registered per environment so env vars such as
	// IDENTITY_ENVIRONMENTS_DEV_BASE_URL are picked up by AutomaticEnv.
	for _, env := range rolloutEnvironments {
		prefix := "identity.environments." + env + "."
		v.SetDefault(prefix+"base_url", "")
		v.SetDefault(prefix+"client_id", "")
		v.SetDefault(prefix+"client_secret", "")
		v.SetDefault(prefix+"master_realm", "master")
		v.SetDefault(prefix+"home_realm", "standard")
		v.SetDefault(prefix+"home_idp_alias", "idir")
	}
	v.SetDefault("identity.admin_roles", []string{"manage-realm", "manage-users", "manage-clients", "manage-identity-providers", "view-realm", "view-events"})
	v.SetDefault("identity.timeout", "15s")
	v.SetDefault("identity.cache_size", 256)
	v.SetDefault("identity.cache_ttl", "10m")

	// Notification
	v.SetDefault("notification.smtp_host", "")
	v.SetDefault("notification.smtp_port", 587)
	v.SetDefault("notification.smtp_username", "")
	v.SetDefault("notification.smtp_password", "")
	v.SetDefault("notification.smtp_tls", true)
	v.SetDefault("notification.from", "realm-steward@localhost")
	v.SetDefault("notification.admin_cc", []string{})
	v.SetDefault("notification.app_url", "http://localhost:8080")
	v.SetDefault("notification.timeout", "10s")
	v.SetDefault("notification.max_attempts", 5)
}
