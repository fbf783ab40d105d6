// Package domain defines the core models shared across the position manager
// together with the store, cache, and lock interfaces their implementations
// satisfy. All monetary values use shopspring/decimal, never float64.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionStatus tracks whether a position is open or closed.
type PositionStatus string

const (
	PositionStatusOpen   PositionStatus = "open"
	PositionStatusClosed PositionStatus = "closed"
)

// Position is an open holding of one token for one agent's wallet. It carries
// the evaluator state machines alongside the cost basis: the trailing
// stop-loss percentage, the cumulative take-profit level counters, the moon
// bag reservation, and the DCA history.
type Position struct {
	ID           string
	AgentID      string
	Wallet       string
	TokenAddress string
	TokenSymbol  string

	// Cost basis. PurchasePrice and PurchaseAmount record the original buy;
	// DCA events fold into PurchasePrice (the weighted average), PurchaseAmount,
	// and TotalInvested.
	PurchasePrice  decimal.Decimal
	PurchaseAmount decimal.Decimal
	TotalInvested  decimal.Decimal

	// RemainingAmount is nil while nothing has been sold, meaning "equal to
	// PurchaseAmount". Use Remaining to read it.
	RemainingAmount *decimal.Decimal

	// PeakPrice is the highest price seen since purchase.
	PeakPrice decimal.Decimal

	// CurrentStopLossPct is the signed trailing stop-loss percentage
	// (e.g. -32). Nil when stop-loss is disabled for the position. Once
	// raised it is never lowered while the position is open.
	CurrentStopLossPct *decimal.Decimal

	// Take-profit ladder state. TakeProfitLevelsHit counts levels executed
	// across the whole lifetime of the position; TPBatchStartLevel records
	// how many of those were hit before the current DCA batch, and
	// TotalTakeProfitLevels is batch start plus the current batch's level
	// count. TakeProfitLevelsHit is monotonically non-decreasing.
	TakeProfitLevelsHit   int
	TPBatchStartLevel     int
	TotalTakeProfitLevels *int

	MoonBagActivated bool
	MoonBagAmount    decimal.Decimal

	DCACount  int
	LastDCAAt *time.Time

	// RealizedProfit accumulates base-currency proceeds from partial exits.
	RealizedProfit decimal.Decimal

	Status   PositionStatus
	OpenedAt time.Time
	ClosedAt *time.Time
}

// Remaining returns the tokens still held: RemainingAmount when set,
// otherwise the full PurchaseAmount.
func (p *Position) Remaining() decimal.Decimal {
	if p.RemainingAmount != nil {
		return *p.RemainingAmount
	}
	return p.PurchaseAmount
}

// TotalTPLevels returns the cumulative level count for the append-levels
// model: the caller-supplied total when present, otherwise the batch start
// plus the current config's level count.
func (p *Position) TotalTPLevels(configLevelCount int) int {
	if p.TotalTakeProfitLevels != nil {
		return *p.TotalTakeProfitLevels
	}
	return p.TPBatchStartLevel + configLevelCount
}

// PositionUpdate is a partial-field update applied by PositionStore.Update.
// Nil fields are left untouched.
type PositionUpdate struct {
	PurchasePrice         *decimal.Decimal
	PurchaseAmount        *decimal.Decimal
	TotalInvested         *decimal.Decimal
	RemainingAmount       *decimal.Decimal
	PeakPrice             *decimal.Decimal
	CurrentStopLossPct    *decimal.Decimal
	TakeProfitLevelsHit   *int
	TPBatchStartLevel     *int
	TotalTakeProfitLevels *int
	MoonBagActivated      *bool
	MoonBagAmount         *decimal.Decimal
	DCACount              *int
	LastDCAAt             *time.Time
	RealizedProfit        *decimal.Decimal
}
