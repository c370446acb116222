// Package worker provides goroutine pool management.
//
// Naked goroutines are not used in request paths. All concurrency goes
// through a Pool with context propagation.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"realmsteward.io/steward/internal/pkg/logger"
)

// ErrPoolClosed is returned when submitting to a closed pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Pool names accepted by SubmitDetached.
const (
	PoolGeneral = "general"
	PoolGateway = "gateway"
)

// Task is a context-aware task function.
type Task func(ctx context.Context)

// Pool wraps ants.Pool with context-aware submission.
type Pool struct {
	pool *ants.Pool
	name string
}

// Pools is the worker pool collection.
//
// General runs pipeline batch items and other short-lived work.
// Gateway runs detached outbound calls (notification delivery in memory mode).
type Pools struct {
	General *Pool
	Gateway *Pool

	// serviceCtx is the service lifecycle context for detached tasks
	serviceCtx    context.Context
	serviceCancel context.CancelFunc
}

// PoolConfig contains worker pool configuration.
type PoolConfig struct {
	GeneralPoolSize int
	GatewayPoolSize int
}

// DefaultPoolConfig returns default configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		GeneralPoolSize: 64,
		GatewayPoolSize: 16,
	}
}

// NewPools creates the worker pool collection.
func NewPools(ctx context.Context, cfg PoolConfig) (*Pools, error) {
	serviceCtx, serviceCancel := context.WithCancel(ctx)

	panicHandler := func(p interface{}) {
		logger.Error("Worker panic recovered",
			zap.Any("panic", p),
			zap.Stack("stack"),
		)
	}

	generalAnts, err := ants.NewPool(cfg.GeneralPoolSize,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		serviceCancel()
		return nil, err
	}

	gatewayAnts, err := ants.NewPool(cfg.GatewayPoolSize,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(30*time.Second),
	)
	if err != nil {
		generalAnts.Release()
		serviceCancel()
		return nil, err
	}

	return &Pools{
		General:       &Pool{pool: generalAnts, name: PoolGeneral},
		Gateway:       &Pool{pool: gatewayAnts, name: PoolGateway},
		serviceCtx:    serviceCtx,
		serviceCancel: serviceCancel,
	}, nil
}

// Submit submits a context-aware task.
// If ctx is already cancelled, returns ctx.Err() without submitting.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := p.pool.Submit(func() {
		// may have been cancelled while queued
		select {
		case <-ctx.Done():
			logger.Debug("Task skipped: context cancelled",
				zap.String("pool", p.name),
				zap.Error(ctx.Err()),
			)
			return
		default:
		}
		task(ctx)
	})
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

// ForEach runs fn once per index in [0, n) on the pool and waits for all of
// them. An index the pool refuses is run on the calling goroutine, so every
// index is processed exactly once.
func (p *Pool) ForEach(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			fn(ctx, i)
		})
		if err != nil {
			wg.Done()
			logger.Warn("Pool rejected task, running inline",
				zap.String("pool", p.name),
				zap.Int("index", i),
				zap.Error(err),
			)
			fn(ctx, i)
		}
	}
	wg.Wait()
}

// SubmitDetached submits a background task bound to the service lifecycle
// context instead of a request context. It survives request cancellation but
// still respects graceful shutdown.
func (p *Pools) SubmitDetached(poolName string, task Task) error {
	pool := p.General
	if poolName == PoolGateway {
		pool = p.Gateway
	}

	err := pool.pool.Submit(func() {
		select {
		case <-p.serviceCtx.Done():
			logger.Debug("Detached task skipped: service shutting down",
				zap.String("pool", poolName),
			)
			return
		default:
		}
		task(p.serviceCtx)
	})
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

// Shutdown cancels the service context, then waits for running tasks (max 30s).
func (p *Pools) Shutdown() {
	p.serviceCancel()

	const shutdownTimeout = 30 * time.Second
	if err := p.General.pool.ReleaseTimeout(shutdownTimeout); err != nil {
		logger.Warn("General pool shutdown timeout", zap.Error(err))
	}
	if err := p.Gateway.pool.ReleaseTimeout(shutdownTimeout); err != nil {
		logger.Warn("Gateway pool shutdown timeout", zap.Error(err))
	}
}

// Metrics returns pool metrics for observability.
func (p *Pools) Metrics() map[string]interface{} {
	return map[string]interface{}{
		PoolGeneral: map[string]int{
			"running": p.General.pool.Running(),
			"free":    p.General.pool.Free(),
			"cap":     p.General.pool.Cap(),
		},
		PoolGateway: map[string]int{
			"running": p.Gateway.pool.Running(),
			"free":    p.Gateway.pool.Free(),
			"cap":     p.Gateway.pool.Cap(),
		},
	}
}
