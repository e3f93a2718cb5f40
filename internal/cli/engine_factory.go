package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/adapters/badger"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/adapters/postgres"
	"github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/adapters/sqlite"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/observability"
	"github.com/aretw0/arbor/pkg/partition"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/tree"
	backend "github.com/redis/go-redis/v9"
)

// InMemoryDSN selects an in-memory database for the badger driver.
const InMemoryDSN = ":memory:"

// Runtime bundles everything a command needs to operate on a tree.
type Runtime struct {
	Config  *config.Config
	Logger  *slog.Logger
	Store   ports.Store
	Tree    *tree.Tree
	Metrics *observability.Metrics

	closers []func() error
}

// Close releases the store and the redis client, if any.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}

// NewLogger builds the application logger from the log section.
func NewLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	format := logging.Format(cfg.Format)
	switch format {
	case "", logging.FormatText:
		format = logging.FormatText
	case logging.FormatJSON:
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return logging.NewWithWriter(w, level, format), nil
}

// OpenStore opens the store selected by cfg.Store.Driver.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.Store, error) {
	dsn := cfg.Store.ResolvedDSN()
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return memory.NewStore(), nil
	case config.DriverSQLite:
		return sqlite.Open(ctx, dsn, cfg.Schema(), sqlite.WithLogger(logger))
	case config.DriverPostgres:
		return postgres.Open(ctx, dsn, cfg.Schema(), postgres.WithLogger(logger))
	case config.DriverBadger:
		bc := badger.DefaultConfig(dsn)
		if dsn == InMemoryDSN {
			bc = badger.InMemoryConfig()
		}
		if cfg.Store.GCInterval > 0 {
			bc.GCInterval = cfg.Store.GCInterval
		}
		if cfg.Store.MemTableSize > 0 {
			bc.MemTableSize = cfg.Store.MemTableSize
		}
		bc.Logger = logger
		return badger.Open(bc)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// Bootstrap opens the configured store and builds a tree over it. Scope locks
// go through Redis when cfg.Redis.Addr is set. Conflicting transactions are
// retried per cfg.Store.Retries; mutations are logged and counted.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("error opening %s store: %w", cfg.Store.Driver, err)
	}
	store = middleware.Chain(store,
		middleware.NewRetryMiddleware(middleware.RetryConfig{
			Attempts: cfg.Store.Retries,
			Backoff:  cfg.Store.RetryBackoff,
			Logger:   logger,
		}),
		middleware.NewLoggingMiddleware(logger),
	)
	rt := &Runtime{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		Metrics: observability.NewMetrics(),
		closers: []func() error{store.Close},
	}

	partOpts := []partition.Option{partition.WithLogger(logger)}
	if cfg.Redis.Addr != "" {
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.closers = append(rt.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("error connecting to redis at %s: %w", cfg.Redis.Addr, err)
		}
		partOpts = append(partOpts,
			partition.WithLocker(redis.NewLocker(client, cfg.Redis.Prefix)),
			partition.WithTTL(cfg.Redis.LockTTL),
		)
		logger.Debug("distributed scope locks enabled", "addr", cfg.Redis.Addr)
	}

	t, err := tree.New(store, tree.Config{
		ScopeAttrs:   cfg.Tree.Scope,
		Dependent:    domain.Policy(cfg.Tree.Dependent),
		RebuildOrder: domain.RebuildOrder(cfg.Tree.RebuildOrder),
	},
		tree.WithLogger(logger),
		tree.WithPartitions(partition.NewManager(partOpts...)),
		tree.WithHooks(observability.Chain(rt.Metrics.Hooks(), observability.LogHooks(logger))),
	)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("error initializing tree: %w", err)
	}
	rt.Tree = t
	return rt, nil
}
