package modules

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/riverqueue/river"

	"realmsteward.io/steward/internal/config"
	"realmsteward.io/steward/internal/governance/audit"
	"realmsteward.io/steward/internal/infrastructure"
	"realmsteward.io/steward/internal/metrics"
	"realmsteward.io/steward/internal/pkg/logger"
	"realmsteward.io/steward/internal/pkg/worker"
	"realmsteward.io/steward/internal/repository"
	"realmsteward.io/steward/internal/repository/memory"
	"realmsteward.io/steward/internal/repository/postgres"
)

// Infrastructure holds shared cross-cutting dependencies for all modules.
// It is a provider, not a Module.
type Infrastructure struct {
	Config *config.Config
	// DB and RiverClient are nil with the memory driver.
	DB          *infrastructure.DatabaseClients
	RiverClient *river.Client[pgx.Tx]
	Pools       *worker.Pools
	RealmStore  repository.RealmStore
	AuditLogger *audit.Logger
	Registry    *prometheus.Registry
	Metrics     *metrics.Metrics
}

// NewInfrastructure initializes stores, pools and metrics for the configured driver.
func NewInfrastructure(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	infra := &Infrastructure{Config: cfg}

	switch cfg.Database.Driver {
	case config.DriverMemory:
		logger.Warn("Using in-memory store; realm requests are lost on restart")
		infra.RealmStore = memory.NewRealmStore()
		infra.AuditLogger = audit.NewLogger(memory.NewAuditStore())
	default:
		db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("init database: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := db.AutoMigrate(ctx); err != nil {
				db.Close()
				return nil, fmt.Errorf("auto-migrate: %w", err)
			}
		}
		infra.DB = db
		infra.RealmStore = postgres.NewRealmStore(db.Pool)
		infra.AuditLogger = audit.NewLogger(postgres.NewAuditStore(db.Pool))
	}

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize: cfg.Worker.GeneralPoolSize,
		GatewayPoolSize: cfg.Worker.GatewayPoolSize,
	})
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init worker pools: %w", err)
	}
	infra.Pools = pools

	infra.Registry = prometheus.NewRegistry()
	infra.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	infra.Metrics = metrics.New(infra.Registry)

	return infra, nil
}

// InitRiver initializes the River client on top of a prepared worker
// registry. It is a no-op with the memory driver.
func (i *Infrastructure) InitRiver(workers *river.Workers) error {
	if i == nil || i.Config == nil {
		return fmt.Errorf("infrastructure is not initialized")
	}
	if i.DB == nil {
		return nil
	}
	if err := i.DB.InitRiverClient(workers, i.Config.River); err != nil {
		return fmt.Errorf("init river: %w", err)
	}
	i.RiverClient = i.DB.RiverClient
	return nil
}

// Close releases infra resources in reverse dependency order.
func (i *Infrastructure) Close() {
	if i == nil {
		return
	}
	if i.Pools != nil {
		i.Pools.Shutdown()
	}
	if i.DB != nil {
		i.DB.Close()
	}
}
