package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tokenwave/positiond/internal/domain"
)

// TradeFill reports the outcome of an executed trade. Amounts are actual
// fills, which can differ from the requested sizing.
type TradeFill struct {
	// TransactionID identifies the executed trade for the transaction
	// record and the execution tracker.
	TransactionID string

	// InputAmount is what was spent (tokens on a sell, base currency on a
	// buy); OutputAmount is what was received.
	InputAmount  decimal.Decimal
	OutputAmount decimal.Decimal
}

// TradeExecutor performs the actual swaps. Routing, slippage, signing, and
// broadcasting live behind this boundary and are not the engine's concern.
type TradeExecutor interface {
	// Sell swaps tokenAmount of the position's token into the base currency.
	Sell(ctx context.Context, pos domain.Position, tokenAmount decimal.Decimal) (TradeFill, error)
	// Buy spends baseAmount of base currency on the position's token.
	Buy(ctx context.Context, pos domain.Position, baseAmount decimal.Decimal) (TradeFill, error)
}
