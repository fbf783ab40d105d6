package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tokenwave/positiond/internal/domain"
)

// TradingConfigStore implements domain.TradingConfigStore using PostgreSQL.
// The three evaluator sections are stored as JSONB so the config service can
// evolve level shapes without schema migrations.
type TradingConfigStore struct {
	pool *pgxpool.Pool
}

// NewTradingConfigStore creates a new TradingConfigStore.
func NewTradingConfigStore(pool *pgxpool.Pool) *TradingConfigStore {
	return &TradingConfigStore{pool: pool}
}

// Get returns the trading configuration for an agent.
func (s *TradingConfigStore) Get(ctx context.Context, agentID string) (domain.TradingConfig, error) {
	var cfg domain.TradingConfig
	var stopLoss, takeProfit, dca []byte

	err := s.pool.QueryRow(ctx, `
		SELECT agent_id, version, stop_loss, take_profit, dca, updated_at
		FROM trading_configs WHERE agent_id = $1`, agentID,
	).Scan(&cfg.AgentID, &cfg.Version, &stopLoss, &takeProfit, &dca, &cfg.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.TradingConfig{}, domain.ErrNotFound
		}
		return domain.TradingConfig{}, fmt.Errorf("postgres: get trading config %s: %w", agentID, err)
	}

	if err := json.Unmarshal(stopLoss, &cfg.StopLoss); err != nil {
		return domain.TradingConfig{}, fmt.Errorf("postgres: decode stop_loss for %s: %w", agentID, err)
	}
	if err := json.Unmarshal(takeProfit, &cfg.TakeProfit); err != nil {
		return domain.TradingConfig{}, fmt.Errorf("postgres: decode take_profit for %s: %w", agentID, err)
	}
	if err := json.Unmarshal(dca, &cfg.DCA); err != nil {
		return domain.TradingConfig{}, fmt.Errorf("postgres: decode dca for %s: %w", agentID, err)
	}
	return cfg, nil
}

// Upsert stores the trading configuration for an agent, bumping the stored
// version to cfg.Version.
func (s *TradingConfigStore) Upsert(ctx context.Context, cfg domain.TradingConfig) error {
	stopLoss, err := json.Marshal(cfg.StopLoss)
	if err != nil {
		return fmt.Errorf("postgres: encode stop_loss for %s: %w", cfg.AgentID, err)
	}
	takeProfit, err := json.Marshal(cfg.TakeProfit)
	if err != nil {
		return fmt.Errorf("postgres: encode take_profit for %s: %w", cfg.AgentID, err)
	}
	dca, err := json.Marshal(cfg.DCA)
	if err != nil {
		return fmt.Errorf("postgres: encode dca for %s: %w", cfg.AgentID, err)
	}

	const query = `
		INSERT INTO trading_configs (agent_id, version, stop_loss, take_profit, dca, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (agent_id) DO UPDATE SET
			version     = EXCLUDED.version,
			stop_loss   = EXCLUDED.stop_loss,
			take_profit = EXCLUDED.take_profit,
			dca         = EXCLUDED.dca,
			updated_at  = NOW()`

	if _, err := s.pool.Exec(ctx, query, cfg.AgentID, cfg.Version, stopLoss, takeProfit, dca); err != nil {
		return fmt.Errorf("postgres: upsert trading config %s: %w", cfg.AgentID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.TradingConfigStore = (*TradingConfigStore)(nil)
