package evaluator

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/tokenwave/positiond/internal/domain"
)

// TakeProfitResult is the outcome of one take-profit evaluation.
type TakeProfitResult struct {
	ShouldExecute bool
	Reason        string

	// LevelsToExecute are the batch-relative indices into the resolved
	// ladder that fired this tick, ascending. One large price jump can fire
	// several at once.
	LevelsToExecute []int

	// SellAmount is the token quantity to sell, already capped by the
	// moon-bag reserve and by whatever remains.
	SellAmount decimal.Decimal

	// ActivateMoonBag is true when this evaluation activates the moon bag
	// for the first time; MoonBagAmount is the reserved quantity (zero when
	// not newly activating).
	ActivateMoonBag bool
	MoonBagAmount   decimal.Decimal

	NewRemainingAmount decimal.Decimal
	NewLevelsHit       int
	GainPercent        decimal.Decimal
}

// TakeProfitProgress is the read-only ladder progress report.
type TakeProfitProgress struct {
	LevelsHit       int
	TotalLevels     int
	PercentComplete decimal.Decimal
	SoldAmount      decimal.Decimal
	RemainingAmount decimal.Decimal
	MoonBagAmount   decimal.Decimal
	MoonBagActive   bool
}

// TakeProfit evaluates the cumulative take-profit ladder. Level counts are
// cumulative across DCA batches: the position carries the batch start offset
// and the cumulative total, and the resolved config ladder is indexed
// batch-relative.
type TakeProfit struct {
	logger *slog.Logger
}

// NewTakeProfit creates a take-profit evaluator.
func NewTakeProfit(logger *slog.Logger) *TakeProfit {
	return &TakeProfit{logger: logger.With(slog.String("component", "take_profit"))}
}

// Evaluate computes which levels fire at the current price, the sell sizing,
// and moon-bag activation. It is pure; the caller holds the per-position
// lock and applies the mutations. Remaining amount and moon-bag reserve are
// always read fresh from the position, never cached across evaluations.
func (e *TakeProfit) Evaluate(pos domain.Position, cfg domain.TakeProfitConfig, currentPrice decimal.Decimal) TakeProfitResult {
	if !cfg.Enabled {
		return TakeProfitResult{Reason: "disabled", NewLevelsHit: pos.TakeProfitLevelsHit, NewRemainingAmount: pos.Remaining()}
	}
	if !pos.PurchasePrice.IsPositive() {
		return TakeProfitResult{Reason: "invalid purchase price", NewLevelsHit: pos.TakeProfitLevelsHit, NewRemainingAmount: pos.Remaining()}
	}

	levels := domain.ResolveTakeProfitLevels(cfg)
	totalLevels := pos.TotalTPLevels(len(levels))
	gain := gainPercent(currentPrice, pos.PurchasePrice)

	res := TakeProfitResult{
		GainPercent:        gain,
		NewLevelsHit:       pos.TakeProfitLevelsHit,
		NewRemainingAmount: pos.Remaining(),
	}

	if pos.TakeProfitLevelsHit >= totalLevels {
		res.Reason = "exhausted"
		return res
	}

	// Batch-relative index of the next unexecuted level.
	next := pos.TakeProfitLevelsHit - pos.TPBatchStartLevel
	if next < 0 {
		next = 0
	}
	if next >= len(levels) {
		res.Reason = "exhausted"
		return res
	}

	// Collect every consecutive level the gain has reached, stopping at the
	// first unreached target and never exceeding the cumulative total.
	var triggered []int
	sellPct := decimal.Zero
	for i := next; i < len(levels) && pos.TakeProfitLevelsHit+len(triggered) < totalLevels; i++ {
		if levels[i].TargetPercent.GreaterThan(gain) {
			break
		}
		triggered = append(triggered, i)
		sellPct = sellPct.Add(levels[i].SellPercent)
	}

	if len(triggered) == 0 {
		res.Reason = "no level reached"
		return res
	}

	remaining := pos.Remaining()
	reserve := decimal.Zero
	if pos.MoonBagActivated {
		reserve = pos.MoonBagAmount
	}

	// Moon bag activates once: on reaching the trigger gain, or on the
	// ladder's last level firing — activation on the final level takes
	// priority over a later trigger threshold so it cannot be skipped by
	// exhausting the ladder first.
	if cfg.MoonBag.Enabled && !pos.MoonBagActivated {
		lastLevelFired := triggered[len(triggered)-1] == len(levels)-1
		if gain.GreaterThanOrEqual(cfg.MoonBag.TriggerPercent) || lastLevelFired {
			res.ActivateMoonBag = true
			res.MoonBagAmount = pos.PurchaseAmount.Mul(cfg.MoonBag.RetainPercent).Div(hundred)
			reserve = res.MoonBagAmount
		}
	}

	sellAmount := pos.PurchaseAmount.Mul(sellPct).Div(hundred)

	// Cap at what remains above the moon-bag reserve; a configured sell
	// percentage can be silently truncated here.
	maxSellable := remaining.Sub(reserve)
	if maxSellable.IsNegative() {
		maxSellable = decimal.Zero
	}
	if sellAmount.GreaterThan(maxSellable) {
		sellAmount = maxSellable
	}

	res.ShouldExecute = true
	res.LevelsToExecute = triggered
	res.SellAmount = sellAmount
	res.NewLevelsHit = pos.TakeProfitLevelsHit + len(triggered)
	res.NewRemainingAmount = remaining.Sub(sellAmount)
	return res
}

// Progress reports ladder completion for a position. Read-only; no lock
// required.
func (e *TakeProfit) Progress(pos domain.Position, cfg domain.TakeProfitConfig) TakeProfitProgress {
	levels := domain.ResolveTakeProfitLevels(cfg)
	total := pos.TotalTPLevels(len(levels))

	p := TakeProfitProgress{
		LevelsHit:       pos.TakeProfitLevelsHit,
		TotalLevels:     total,
		RemainingAmount: pos.Remaining(),
		SoldAmount:      pos.PurchaseAmount.Sub(pos.Remaining()),
		MoonBagActive:   pos.MoonBagActivated,
	}
	if pos.MoonBagActivated {
		p.MoonBagAmount = pos.MoonBagAmount
	}
	if total > 0 {
		p.PercentComplete = decimal.NewFromInt(int64(pos.TakeProfitLevelsHit)).
			Div(decimal.NewFromInt(int64(total))).Mul(hundred)
	}
	return p
}
