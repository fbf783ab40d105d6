package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tokenwave/positiond/internal/cache/redis"
	"github.com/tokenwave/positiond/internal/config"
	"github.com/tokenwave/positiond/internal/domain"
	"github.com/tokenwave/positiond/internal/engine"
	"github.com/tokenwave/positiond/internal/ledger"
	"github.com/tokenwave/positiond/internal/notify"
	"github.com/tokenwave/positiond/internal/store/postgres"
	"github.com/tokenwave/positiond/internal/tracker"
)

// Dependencies bundles every dependency the run loop needs. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	PositionStore      domain.PositionStore
	BalanceStore       domain.BalanceStore
	ExecutionStore     domain.ExecutionStore
	TradingConfigStore domain.TradingConfigStore
	TransactionStore   domain.TransactionStore

	// Caches
	PriceCache     *redis.PriceCache
	ConfigCache    domain.ConfigCache
	ExecutionCache domain.ExecutionCache
	BalanceCache   domain.BalanceCache
	LockManager    domain.LockManager

	// Services
	Ledger   *ledger.Ledger
	Tracker  *tracker.Tracker
	Notifier *notify.Notifier
	Engine   *engine.Engine
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.PositionStore = postgres.NewPositionStore(pool)
	deps.BalanceStore = postgres.NewBalanceStore(pool)
	deps.ExecutionStore = postgres.NewExecutionStore(pool)
	deps.TradingConfigStore = postgres.NewTradingConfigStore(pool)
	deps.TransactionStore = postgres.NewTransactionStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.PriceCache = redis.NewPriceCache(redisClient)
	deps.ConfigCache = redis.NewConfigCache(redisClient)
	deps.ExecutionCache = redis.NewExecutionCache(redisClient)
	deps.BalanceCache = redis.NewBalanceCache(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)

	// --- Services ---
	deps.Ledger = ledger.New(logger)
	deps.Tracker = tracker.New(deps.ExecutionStore, deps.ExecutionCache, logger)

	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhook != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhook))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	deps.Engine = engine.New(engine.Options{
		Pool:      pool,
		Positions: deps.PositionStore,
		Configs:   engine.NewConfigProvider(deps.ConfigCache, deps.TradingConfigStore, logger),
		Locks:     deps.LockManager,
		Ledger:    deps.Ledger,
		Balances:  deps.BalanceCache,
		Tracker:   deps.Tracker,
		Executor:  engine.NewPaperExecutor(deps.PriceCache, logger),
		Notifier:  deps.Notifier,
		Engine:    cfg.Engine,
		Logger:    logger,
	})

	return deps, cleanup, nil
}
