package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PriceCache provides fast access to the latest token prices.
type PriceCache interface {
	SetPrice(ctx context.Context, tokenAddress string, price decimal.Decimal, ts time.Time) error
	GetPrice(ctx context.Context, tokenAddress string) (decimal.Decimal, time.Time, error)
}

// ConfigCache is the fast path of the config provider. Misses return
// ErrNotFound; writes are best-effort.
type ConfigCache interface {
	Set(ctx context.Context, cfg TradingConfig) error
	Get(ctx context.Context, agentID string) (TradingConfig, error)
	Invalidate(ctx context.Context, agentID string) error
}

// ExecutionCache is the advisory fast-path dedup for signal executions. The
// persistent uniqueness constraint remains the source of truth; a stale or
// absent cache entry only degrades latency, never correctness.
type ExecutionCache interface {
	GetStatus(ctx context.Context, signalID, agentID string) (ExecutionStatus, error)
	SetStatus(ctx context.Context, signalID, agentID string, status ExecutionStatus) error
}

// BalanceCache is a read-through projection of balance rows for real-time
// consumers. The core only writes to it after commit, best-effort.
type BalanceCache interface {
	SetBalance(ctx context.Context, row BalanceRow) error
	Invalidate(ctx context.Context, wallet, tokenAddress string) error
}

// LockManager provides keyed TTL-bound exclusive locks with a fencing token.
// Acquire returns ErrLockHeld when another holder owns the key; callers treat
// that as "skip this cycle". The returned unlock only clears the key if the
// stored token still matches, so a stale holder cannot release a lock that
// expired and was re-acquired.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
