package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tokenwave/positiond/internal/domain"
)

// BalanceCache implements domain.BalanceCache as a read-through projection of
// committed balance rows for real-time consumers. The core writes to it only
// after a unit of work commits, best-effort; the balances table stays
// authoritative.
type BalanceCache struct {
	rdb *redis.Client
}

// NewBalanceCache creates a BalanceCache backed by the given Client.
func NewBalanceCache(c *Client) *BalanceCache {
	return &BalanceCache{rdb: c.Underlying()}
}

func balanceKey(wallet, tokenAddress string) string {
	return "balance:" + wallet + ":" + tokenAddress
}

// SetBalance projects a committed balance row into the cache.
func (bc *BalanceCache) SetBalance(ctx context.Context, row domain.BalanceRow) error {
	fields := map[string]interface{}{
		"amount":     row.Amount.String(),
		"symbol":     row.TokenSymbol,
		"agent_id":   row.AgentID,
		"updated_at": strconv.FormatInt(row.UpdatedAt.UnixNano(), 10),
	}
	key := balanceKey(row.Wallet, row.TokenAddress)
	if err := bc.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("redis: set balance %s/%s: %w", row.Wallet, row.TokenAddress, err)
	}
	// Keep the projection bounded; readers fall back to the store on a miss.
	if err := bc.rdb.Expire(ctx, key, 24*time.Hour).Err(); err != nil {
		return fmt.Errorf("redis: expire balance %s/%s: %w", row.Wallet, row.TokenAddress, err)
	}
	return nil
}

// Invalidate drops the cached projection for a (wallet, token) pair.
func (bc *BalanceCache) Invalidate(ctx context.Context, wallet, tokenAddress string) error {
	if err := bc.rdb.Del(ctx, balanceKey(wallet, tokenAddress)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate balance %s/%s: %w", wallet, tokenAddress, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.BalanceCache = (*BalanceCache)(nil)
