// Package evaluator implements the per-tick decision logic for open
// positions: the trailing stop-loss state machine, the cumulative
// take-profit ladder with moon-bag reservation, and dollar-cost-averaging on
// drawdowns. Decision computation is pure and synchronous; callers hold the
// per-position lock and apply the resulting mutations.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tokenwave/positiond/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// gainPercent returns (price/basis - 1) * 100.
func gainPercent(price, basis decimal.Decimal) decimal.Decimal {
	return price.Div(basis).Sub(decimal.NewFromInt(1)).Mul(hundred)
}

// StopLossResult is the outcome of one stop-loss evaluation.
type StopLossResult struct {
	ShouldTrigger bool
	Reason        string

	// StopLossPrice is the trigger price implied by the (possibly raised)
	// percentage. Triggering is inclusive: currentPrice == StopLossPrice
	// fires.
	StopLossPrice decimal.Decimal

	// Percentage is the stop-loss percentage after this evaluation. It never
	// decreases across evaluations.
	Percentage decimal.Decimal

	PeakPrice decimal.Decimal

	// Updated reports whether peak or percentage changed and was persisted.
	Updated bool
}

// StopLoss evaluates the trailing stop-loss state machine.
type StopLoss struct {
	positions domain.PositionStore
	logger    *slog.Logger
}

// NewStopLoss creates a stop-loss evaluator.
func NewStopLoss(positions domain.PositionStore, logger *slog.Logger) *StopLoss {
	return &StopLoss{
		positions: positions,
		logger:    logger.With(slog.String("component", "stop_loss")),
	}
}

// Initialize persists the initial stop-loss state for a freshly opened
// position: peak price at purchase price and the configured default
// percentage. It returns the percentage, or ok=false when stop-loss is
// disabled for the agent.
func (e *StopLoss) Initialize(ctx context.Context, pos domain.Position, cfg domain.StopLossConfig) (decimal.Decimal, bool, error) {
	if !cfg.Enabled {
		return decimal.Zero, false, nil
	}

	pct := cfg.DefaultPercentage
	peak := pos.PurchasePrice
	err := e.positions.Update(ctx, pos.ID, domain.PositionUpdate{
		PeakPrice:          &peak,
		CurrentStopLossPct: &pct,
	})
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("stop_loss: initialize %s: %w", pos.ID, err)
	}
	return pct, true, nil
}

// Evaluate runs one tick of the stop-loss state machine for the position and
// persists the peak price and percentage when either changed. The caller
// holds the per-position lock.
func (e *StopLoss) Evaluate(ctx context.Context, pos domain.Position, cfg domain.StopLossConfig, currentPrice decimal.Decimal) (StopLossResult, error) {
	res := computeStopLoss(pos, cfg, currentPrice)

	if res.Updated {
		upd := domain.PositionUpdate{
			PeakPrice:          &res.PeakPrice,
			CurrentStopLossPct: &res.Percentage,
		}
		if err := e.positions.Update(ctx, pos.ID, upd); err != nil {
			return StopLossResult{}, fmt.Errorf("stop_loss: persist state %s: %w", pos.ID, err)
		}
	}

	if res.ShouldTrigger {
		e.logger.InfoContext(ctx, "stop loss triggered",
			slog.String("position_id", pos.ID),
			slog.String("price", currentPrice.String()),
			slog.String("stop_loss_price", res.StopLossPrice.String()),
			slog.String("percentage", res.Percentage.String()),
		)
	}
	return res, nil
}

// sortedTrailing returns the levels ordered ascending by change threshold,
// regardless of input order.
func sortedTrailing(levels []domain.TrailingLevel) []domain.TrailingLevel {
	out := make([]domain.TrailingLevel, len(levels))
	copy(out, levels)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Change.LessThan(out[j].Change)
	})
	return out
}

// computeStopLoss is the pure state transition. The candidate peak is the max
// of the stored peak and the current price; the trailing level with the
// largest change threshold at or below the gain from purchase supplies the
// candidate percentage, and the new percentage never drops below the current
// one.
func computeStopLoss(pos domain.Position, cfg domain.StopLossConfig, currentPrice decimal.Decimal) StopLossResult {
	if !cfg.Enabled {
		return StopLossResult{Reason: "disabled", PeakPrice: pos.PeakPrice}
	}

	peak := pos.PeakPrice
	if currentPrice.GreaterThan(peak) {
		peak = currentPrice
	}

	current := cfg.DefaultPercentage
	if pos.CurrentStopLossPct != nil {
		current = *pos.CurrentStopLossPct
	}

	gainFromPeak := gainPercent(peak, pos.PurchasePrice)

	// Take the trailing level with the largest change threshold the gain has
	// reached.
	candidate := current
	for _, lvl := range sortedTrailing(cfg.TrailingLevels) {
		if lvl.Change.LessThanOrEqual(gainFromPeak) {
			candidate = lvl.StopLoss
		} else {
			break
		}
	}

	// Monotone: once raised, never lowered.
	newPct := current
	if candidate.GreaterThan(current) {
		newPct = candidate
	}

	stopLossPrice := pos.PurchasePrice.Mul(decimal.NewFromInt(1).Add(newPct.Div(hundred)))

	res := StopLossResult{
		ShouldTrigger: currentPrice.LessThanOrEqual(stopLossPrice),
		StopLossPrice: stopLossPrice,
		Percentage:    newPct,
		PeakPrice:     peak,
		Updated:       !peak.Equal(pos.PeakPrice) || pos.CurrentStopLossPct == nil || !newPct.Equal(*pos.CurrentStopLossPct),
	}
	if !res.ShouldTrigger {
		res.Reason = "price above stop loss"
	}
	return res
}
