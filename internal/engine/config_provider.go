package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tokenwave/positiond/internal/domain"
)

// ConfigProvider serves per-agent trading configuration cache-first with a
// durable fallback. Config is read-only to the engine; the config service
// owns and versions it.
type ConfigProvider struct {
	cache  domain.ConfigCache
	store  domain.TradingConfigStore
	logger *slog.Logger
}

// NewConfigProvider creates a ConfigProvider.
func NewConfigProvider(cache domain.ConfigCache, store domain.TradingConfigStore, logger *slog.Logger) *ConfigProvider {
	return &ConfigProvider{
		cache:  cache,
		store:  store,
		logger: logger.With(slog.String("component", "config_provider")),
	}
}

// GetConfig returns the agent's trading configuration from the cache when
// present, falling back to the store on a miss and writing the result back
// best-effort. A missing config is domain.ErrNotFound.
func (p *ConfigProvider) GetConfig(ctx context.Context, agentID string) (domain.TradingConfig, error) {
	cfg, err := p.cache.Get(ctx, agentID)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		p.logger.WarnContext(ctx, "config cache unavailable, falling back to store",
			slog.String("agent_id", agentID),
			slog.String("error", err.Error()),
		)
	}
	return p.LoadConfig(ctx, agentID)
}

// LoadConfig reads the durable configuration and refreshes the cache
// best-effort.
func (p *ConfigProvider) LoadConfig(ctx context.Context, agentID string) (domain.TradingConfig, error) {
	cfg, err := p.store.Get(ctx, agentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.TradingConfig{}, domain.ErrNotFound
		}
		return domain.TradingConfig{}, fmt.Errorf("config_provider: load %s: %w", agentID, err)
	}

	if cacheErr := p.cache.Set(ctx, cfg); cacheErr != nil {
		// Cache writes are a performance optimization, never a correctness
		// dependency.
		p.logger.WarnContext(ctx, "failed to refresh config cache",
			slog.String("agent_id", agentID),
			slog.String("error", cacheErr.Error()),
		)
	}
	return cfg, nil
}
