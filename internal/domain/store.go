package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// PositionStore persists positions.
type PositionStore interface {
	Create(ctx context.Context, pos Position) error
	GetByID(ctx context.Context, id string) (Position, error)
	// Update applies the non-nil fields of upd to the position.
	Update(ctx context.Context, id string, upd PositionUpdate) error
	// Close marks the position closed and removes it from the open set.
	Close(ctx context.Context, id string) error
	ListOpenByToken(ctx context.Context, tokenAddress string) ([]Position, error)
	ListOpenByWallet(ctx context.Context, wallet string) ([]Position, error)
	// ListOpenTokens returns the distinct token addresses with at least one
	// open position.
	ListOpenTokens(ctx context.Context) ([]string, error)
}

// BalanceStore serves balance reads outside a unit of work. All writes go
// through the Balance Ledger inside a caller-supplied transaction.
type BalanceStore interface {
	Get(ctx context.Context, wallet, tokenAddress string) (BalanceRow, error)
	ListByWallet(ctx context.Context, wallet string) ([]BalanceRow, error)
}

// ExecutionStore persists signal execution records. Create returns
// ErrAlreadyExists when the (signalID, agentID) uniqueness constraint is
// violated by a concurrent creator.
type ExecutionStore interface {
	Create(ctx context.Context, exec Execution) error
	GetBySignalAgent(ctx context.Context, signalID, agentID string) (Execution, error)
	UpdateSuccess(ctx context.Context, id, transactionID string) error
	UpdateFailure(ctx context.Context, id, errMsg string) error
	UpdateSkipped(ctx context.Context, id, reason string) error
}

// TradingConfigStore is the durable side of the config provider.
type TradingConfigStore interface {
	Get(ctx context.Context, agentID string) (TradingConfig, error)
	Upsert(ctx context.Context, cfg TradingConfig) error
}

// TransactionStore persists executed trades. Writes that must be atomic with
// balance updates go through the ledger's transaction-scoped variant instead.
type TransactionStore interface {
	GetByID(ctx context.Context, id string) (Transaction, error)
	ListByWallet(ctx context.Context, wallet string, limit int) ([]Transaction, error)
}

// PriceSource supplies the current price for a token, denominated in the same
// unit as position purchase prices. A missing or non-positive price means the
// evaluation is skipped.
type PriceSource interface {
	CurrentPrice(ctx context.Context, tokenAddress string) (decimal.Decimal, error)
}
