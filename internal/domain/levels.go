package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

func pct(v int) decimal.Decimal { return decimal.NewFromInt(int64(v)) }

// Built-in take-profit ladders. Each template keeps the total sold under 100%
// so a moon bag can still be retained on top.
var takeProfitTemplates = map[StrategyMode][]TakeProfitLevel{
	ModeAggressive: {
		{TargetPercent: pct(30), SellPercent: pct(40)},
		{TargetPercent: pct(60), SellPercent: pct(30)},
		{TargetPercent: pct(100), SellPercent: pct(20)},
	},
	ModeModerate: {
		{TargetPercent: pct(50), SellPercent: pct(25)},
		{TargetPercent: pct(150), SellPercent: pct(25)},
		{TargetPercent: pct(300), SellPercent: pct(25)},
		{TargetPercent: pct(400), SellPercent: pct(15)},
	},
	ModeConservative: {
		{TargetPercent: pct(100), SellPercent: pct(20)},
		{TargetPercent: pct(250), SellPercent: pct(20)},
		{TargetPercent: pct(500), SellPercent: pct(20)},
	},
}

// Built-in DCA ladders; drop percentages are negative.
var dcaTemplates = map[StrategyMode][]DCALevel{
	ModeAggressive: {
		{DropPercent: pct(-10), BuyPercent: pct(30)},
		{DropPercent: pct(-20), BuyPercent: pct(40)},
		{DropPercent: pct(-30), BuyPercent: pct(50)},
	},
	ModeModerate: {
		{DropPercent: pct(-15), BuyPercent: pct(25)},
		{DropPercent: pct(-30), BuyPercent: pct(35)},
		{DropPercent: pct(-50), BuyPercent: pct(50)},
	},
	ModeConservative: {
		{DropPercent: pct(-25), BuyPercent: pct(20)},
		{DropPercent: pct(-50), BuyPercent: pct(30)},
		{DropPercent: pct(-75), BuyPercent: pct(40)},
	},
}

// ResolveTakeProfitLevels returns the ordered ladder for the config: the
// template table for a named mode, or the custom levels sorted ascending by
// target. The evaluator stays mode-agnostic past this point.
func ResolveTakeProfitLevels(cfg TakeProfitConfig) []TakeProfitLevel {
	if cfg.Mode != ModeCustom {
		if tpl, ok := takeProfitTemplates[cfg.Mode]; ok {
			out := make([]TakeProfitLevel, len(tpl))
			copy(out, tpl)
			return out
		}
	}
	out := make([]TakeProfitLevel, len(cfg.Levels))
	copy(out, cfg.Levels)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TargetPercent.LessThan(out[j].TargetPercent)
	})
	return out
}

// ResolveDCALevels returns the ordered DCA ladder: the template for a named
// mode, or the custom levels sorted ascending by drop (least negative first),
// regardless of input order.
func ResolveDCALevels(cfg DCAConfig) []DCALevel {
	if cfg.Mode != ModeCustom {
		if tpl, ok := dcaTemplates[cfg.Mode]; ok {
			out := make([]DCALevel, len(tpl))
			copy(out, tpl)
			return out
		}
	}
	out := make([]DCALevel, len(cfg.Levels))
	copy(out, cfg.Levels)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DropPercent.GreaterThan(out[j].DropPercent)
	})
	return out
}
