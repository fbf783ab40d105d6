package evaluator

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tokenwave/positiond/internal/domain"
)

// DCAResult is the outcome of one dollar-cost-averaging evaluation.
type DCAResult struct {
	ShouldTrigger bool
	Reason        string

	// LevelIndex is the ladder index consumed by this DCA event (one level
	// per event, in order).
	LevelIndex int
	Level      domain.DCALevel

	// BuyAmountBase is how much base currency to spend, sized against the
	// current position value rather than the original cost.
	BuyAmountBase decimal.Decimal

	CurrentDropPercent decimal.Decimal
}

// AveragePriceResult is the recomputed cost basis after a DCA buy.
type AveragePriceResult struct {
	NewTotalInvested decimal.Decimal
	NewTotalAmount   decimal.Decimal
	NewAveragePrice  decimal.Decimal
}

// DCA evaluates drawdown re-buys against the configured ladder.
type DCA struct {
	logger *slog.Logger
}

// NewDCA creates a DCA evaluator.
func NewDCA(logger *slog.Logger) *DCA {
	return &DCA{logger: logger.With(slog.String("component", "dca"))}
}

// Evaluate decides whether the position should buy the dip at the current
// price. It is pure; the caller holds the per-position lock and applies the
// resulting buy plus the cost-basis recomputation.
func (e *DCA) Evaluate(pos domain.Position, cfg domain.DCAConfig, currentPrice decimal.Decimal, now time.Time) DCAResult {
	if !cfg.Enabled {
		return DCAResult{Reason: "disabled"}
	}
	if cfg.MaxDCACount > 0 && pos.DCACount >= cfg.MaxDCACount {
		return DCAResult{Reason: "all levels used"}
	}

	levels := domain.ResolveDCALevels(cfg)
	if len(levels) == 0 {
		return DCAResult{Reason: "no levels configured"}
	}
	if pos.DCACount >= len(levels) {
		return DCAResult{Reason: "all levels used"}
	}

	if cfg.CooldownSeconds > 0 && pos.LastDCAAt != nil {
		elapsed := now.Sub(*pos.LastDCAAt)
		cooldown := time.Duration(cfg.CooldownSeconds) * time.Second
		if elapsed < cooldown {
			remaining := int((cooldown - elapsed).Round(time.Second) / time.Second)
			return DCAResult{Reason: fmt.Sprintf("cooldown active, %ds remaining", remaining)}
		}
	}

	// One level consumed per DCA event, in order of increasing depth.
	level := levels[pos.DCACount]
	drop := gainPercent(currentPrice, pos.PurchasePrice)

	res := DCAResult{
		LevelIndex:         pos.DCACount,
		Level:              level,
		CurrentDropPercent: drop,
	}

	// Inclusive: a drop exactly at the threshold triggers; deeper (more
	// negative) drops satisfy shallower levels.
	if drop.GreaterThan(level.DropPercent) {
		res.Reason = fmt.Sprintf("drop %s%% above level %s%%", drop.StringFixed(2), level.DropPercent.String())
		return res
	}

	res.ShouldTrigger = true
	res.BuyAmountBase = currentPrice.Mul(pos.PurchaseAmount).Mul(level.BuyPercent).Div(hundred)
	return res
}

// CalculateNewAveragePrice folds a DCA buy into the cost basis using exact
// arithmetic: repeated DCA events would compound any rounding error into the
// basis every later take-profit and stop-loss computation depends on.
func CalculateNewAveragePrice(existingInvested, existingAmount, newSpent, newAcquired decimal.Decimal) AveragePriceResult {
	totalInvested := existingInvested.Add(newSpent)
	totalAmount := existingAmount.Add(newAcquired)

	avg := decimal.Zero
	if totalAmount.IsPositive() {
		avg = totalInvested.Div(totalAmount)
	}
	return AveragePriceResult{
		NewTotalInvested: totalInvested,
		NewTotalAmount:   totalAmount,
		NewAveragePrice:  avg,
	}
}
