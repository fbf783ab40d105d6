// Package app provides top-level lifecycle management for the position
// manager daemon. It wires together all dependencies (stores, caches, the
// ledger, the evaluation engine, and notifications) and runs the price
// polling loop until the context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tokenwave/positiond/internal/config"
	"github.com/tokenwave/positiond/internal/domain"
)

// App is the root application object. It owns the configuration, logger, and
// the cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies and drives the evaluation loop: every tick
// interval it looks up the tokens with open positions, reads the latest
// cached price for each, and hands the tick to the engine. It blocks until
// the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting positiond",
		slog.String("log_level", a.cfg.LogLevel),
		slog.Int("tick_interval_seconds", a.cfg.Engine.TickIntervalSeconds),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	ticker := time.NewTicker(a.cfg.Engine.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("run loop stopped")
			return ctx.Err()
		case <-ticker.C:
			a.tick(ctx, deps)
		}
	}
}

// tick runs one evaluation pass over every token with open positions.
func (a *App) tick(ctx context.Context, deps *Dependencies) {
	tokens, err := deps.PositionStore.ListOpenTokens(ctx)
	if err != nil {
		a.logger.ErrorContext(ctx, "listing open tokens failed", slog.String("error", err.Error()))
		return
	}

	for _, token := range tokens {
		price, err := deps.PriceCache.CurrentPrice(ctx, token)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				a.logger.WarnContext(ctx, "price lookup failed",
					slog.String("token", token),
					slog.String("error", err.Error()),
				)
			}
			continue
		}

		if err := deps.Engine.HandlePriceTick(ctx, token, price); err != nil {
			a.logger.ErrorContext(ctx, "price tick failed",
				slog.String("token", token),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
