package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tokenwave/positiond/internal/domain"
)

// configTTL bounds staleness after a config-service update that failed to
// invalidate the cache.
const configTTL = 10 * time.Minute

// ConfigCache implements domain.ConfigCache using JSON blobs in Redis. It is
// the fast path of the config provider; the postgres store remains the
// durable fallback.
type ConfigCache struct {
	rdb *redis.Client
}

// NewConfigCache creates a ConfigCache backed by the given Client.
func NewConfigCache(c *Client) *ConfigCache {
	return &ConfigCache{rdb: c.Underlying()}
}

func configKey(agentID string) string {
	return "config:" + agentID
}

// Set stores the trading configuration for an agent.
func (cc *ConfigCache) Set(ctx context.Context, cfg domain.TradingConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("redis: encode config %s: %w", cfg.AgentID, err)
	}
	if err := cc.rdb.Set(ctx, configKey(cfg.AgentID), data, configTTL).Err(); err != nil {
		return fmt.Errorf("redis: set config %s: %w", cfg.AgentID, err)
	}
	return nil
}

// Get retrieves an agent's trading configuration, or domain.ErrNotFound on a
// cache miss.
func (cc *ConfigCache) Get(ctx context.Context, agentID string) (domain.TradingConfig, error) {
	data, err := cc.rdb.Get(ctx, configKey(agentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.TradingConfig{}, domain.ErrNotFound
		}
		return domain.TradingConfig{}, fmt.Errorf("redis: get config %s: %w", agentID, err)
	}

	var cfg domain.TradingConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return domain.TradingConfig{}, fmt.Errorf("redis: decode config %s: %w", agentID, err)
	}
	return cfg, nil
}

// Invalidate drops the cached configuration for an agent.
func (cc *ConfigCache) Invalidate(ctx context.Context, agentID string) error {
	if err := cc.rdb.Del(ctx, configKey(agentID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate config %s: %w", agentID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ConfigCache = (*ConfigCache)(nil)
