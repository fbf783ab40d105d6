package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StrategyMode selects between the built-in level templates and a
// caller-supplied custom ladder.
type StrategyMode string

const (
	ModeAggressive   StrategyMode = "aggressive"
	ModeModerate     StrategyMode = "moderate"
	ModeConservative StrategyMode = "conservative"
	ModeCustom       StrategyMode = "custom"
)

// TrailingLevel raises the stop-loss percentage once the gain from purchase
// reaches Change percent.
type TrailingLevel struct {
	Change   decimal.Decimal `json:"change"`
	StopLoss decimal.Decimal `json:"stopLoss"`
}

// StopLossConfig configures the trailing stop-loss evaluator.
type StopLossConfig struct {
	Enabled           bool            `json:"enabled"`
	DefaultPercentage decimal.Decimal `json:"defaultPercentage"` // signed, e.g. -32
	TrailingLevels    []TrailingLevel `json:"trailingLevels"`
}

// TakeProfitLevel sells SellPercent of the original amount once the gain
// reaches TargetPercent.
type TakeProfitLevel struct {
	TargetPercent decimal.Decimal `json:"targetPercent"`
	SellPercent   decimal.Decimal `json:"sellPercent"`
}

// MoonBagConfig reserves RetainPercent of the original position once the gain
// reaches TriggerPercent (or the last ladder level fires), excluded from all
// further take-profit selling.
type MoonBagConfig struct {
	Enabled        bool            `json:"enabled"`
	TriggerPercent decimal.Decimal `json:"triggerPercent"`
	RetainPercent  decimal.Decimal `json:"retainPercent"`
}

// TakeProfitConfig configures the take-profit evaluator.
type TakeProfitConfig struct {
	Enabled bool              `json:"enabled"`
	Mode    StrategyMode      `json:"mode"`
	Levels  []TakeProfitLevel `json:"levels"`
	MoonBag MoonBagConfig     `json:"moonBag"`
}

// DCALevel buys BuyPercent of the current position value once the drop from
// the average purchase price reaches DropPercent (negative).
type DCALevel struct {
	DropPercent decimal.Decimal `json:"dropPercent"`
	BuyPercent  decimal.Decimal `json:"buyPercent"`
}

// DCAConfig configures the dollar-cost-averaging evaluator.
type DCAConfig struct {
	Enabled         bool         `json:"enabled"`
	Mode            StrategyMode `json:"mode"`
	Levels          []DCALevel   `json:"levels"`
	MaxDCACount     int          `json:"maxDcaCount"`
	CooldownSeconds int          `json:"cooldownSeconds"`
}

// TradingConfig is the per-agent, versioned bundle of evaluator settings.
// The core treats it as read-only; it is owned and versioned by the config
// service.
type TradingConfig struct {
	AgentID    string           `json:"agentId"`
	Version    int              `json:"version"`
	StopLoss   StopLossConfig   `json:"stopLoss"`
	TakeProfit TakeProfitConfig `json:"takeProfit"`
	DCA        DCAConfig        `json:"dca"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

var hundred = decimal.NewFromInt(100)

// ValidateTakeProfitAllocation rejects a ladder whose sell percentages, plus
// the moon-bag retention when enabled, sum above 100.
func ValidateTakeProfitAllocation(cfg TakeProfitConfig) error {
	total := decimal.Zero
	for _, lvl := range ResolveTakeProfitLevels(cfg) {
		total = total.Add(lvl.SellPercent)
	}
	if cfg.MoonBag.Enabled {
		total = total.Add(cfg.MoonBag.RetainPercent)
	}
	if total.GreaterThan(hundred) {
		return &ValidationError{
			Field:   "takeProfit",
			Message: "sell percentages plus moon bag retention exceed 100% (" + total.String() + "%)",
		}
	}
	return nil
}
