package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenwave/positiond/internal/domain"
)

func tpConfig() domain.TakeProfitConfig {
	return domain.TakeProfitConfig{
		Enabled: true,
		Mode:    domain.ModeModerate, // 50/25, 150/25, 300/25, 400/15
	}
}

func tpPosition() domain.Position {
	return domain.Position{
		ID:             "pos-1",
		PurchasePrice:  dec("100"),
		PurchaseAmount: dec("1000"),
		Status:         domain.PositionStatusOpen,
	}
}

func TestTakeProfitSingleLevel(t *testing.T) {
	tp := NewTakeProfit(testLogger())

	res := tp.Evaluate(tpPosition(), tpConfig(), dec("150"))
	require.True(t, res.ShouldExecute)
	assert.Equal(t, []int{0}, res.LevelsToExecute)
	assert.True(t, res.SellAmount.Equal(dec("250")), "sell %s", res.SellAmount)
	assert.True(t, res.NewRemainingAmount.Equal(dec("750")))
	assert.Equal(t, 1, res.NewLevelsHit)
	assert.True(t, res.GainPercent.Equal(dec("50")))
}

func TestTakeProfitJumpFiresMultipleLevels(t *testing.T) {
	tp := NewTakeProfit(testLogger())

	// Gain of 160% clears the 50% and 150% targets in one tick.
	res := tp.Evaluate(tpPosition(), tpConfig(), dec("260"))
	require.True(t, res.ShouldExecute)
	assert.Equal(t, []int{0, 1}, res.LevelsToExecute)
	assert.True(t, res.SellAmount.Equal(dec("500")))
	assert.True(t, res.NewRemainingAmount.Equal(dec("500")))
	assert.Equal(t, 2, res.NewLevelsHit)
}

func TestTakeProfitNoLevelReached(t *testing.T) {
	tp := NewTakeProfit(testLogger())

	res := tp.Evaluate(tpPosition(), tpConfig(), dec("149"))
	assert.False(t, res.ShouldExecute)
	assert.Equal(t, "no level reached", res.Reason)
	assert.Equal(t, 0, res.NewLevelsHit)
}

func TestTakeProfitAlreadyHitLevelsSkipped(t *testing.T) {
	tp := NewTakeProfit(testLogger())

	pos := tpPosition()
	pos.TakeProfitLevelsHit = 1
	pos.RemainingAmount = decPtr("750")

	// Same 160% gain, but level 0 was already executed.
	res := tp.Evaluate(pos, tpConfig(), dec("260"))
	require.True(t, res.ShouldExecute)
	assert.Equal(t, []int{1}, res.LevelsToExecute)
	assert.True(t, res.SellAmount.Equal(dec("250")))
	assert.True(t, res.NewRemainingAmount.Equal(dec("500")))
	assert.Equal(t, 2, res.NewLevelsHit)
}

func TestTakeProfitBatchOffsetsAfterDCA(t *testing.T) {
	tp := NewTakeProfit(testLogger())

	// Two levels were hit before the DCA batch reset the ladder; the next
	// level maps to index 0 of the fresh ladder and the cumulative total
	// grows to batch start plus the new ladder length.
	pos := tpPosition()
	pos.TakeProfitLevelsHit = 2
	pos.TPBatchStartLevel = 2
	pos.RemainingAmount = decPtr("900")

	res := tp.Evaluate(pos, tpConfig(), dec("150"))
	require.True(t, res.ShouldExecute)
	assert.Equal(t, []int{0}, res.LevelsToExecute)
	assert.Equal(t, 3, res.NewLevelsHit)
}

func TestTakeProfitExhaustedLadder(t *testing.T) {
	tp := NewTakeProfit(testLogger())

	pos := tpPosition()
	pos.TakeProfitLevelsHit = 4

	res := tp.Evaluate(pos, tpConfig(), dec("1000"))
	assert.False(t, res.ShouldExecute)
	assert.Equal(t, "exhausted", res.Reason)
}

func TestTakeProfitExhaustedCumulativeTotal(t *testing.T) {
	tp := NewTakeProfit(testLogger())

	total := 3
	pos := tpPosition()
	pos.TakeProfitLevelsHit = 3
	pos.TotalTakeProfitLevels = &total

	res := tp.Evaluate(pos, tpConfig(), dec("1000"))
	assert.False(t, res.ShouldExecute)
	assert.Equal(t, "exhausted", res.Reason)
}

func TestTakeProfitDisabled(t *testing.T) {
	tp := NewTakeProfit(testLogger())

	res := tp.Evaluate(tpPosition(), domain.TakeProfitConfig{Enabled: false}, dec("150"))
	assert.False(t, res.ShouldExecute)
	assert.Equal(t, "disabled", res.Reason)
}

func TestTakeProfitMoonBagActivatesOnTriggerGain(t *testing.T) {
	tp := NewTakeProfit(testLogger())

	cfg := tpConfig()
	cfg.MoonBag = domain.MoonBagConfig{
		Enabled:        true,
		TriggerPercent: dec("100"),
		RetainPercent:  dec("15"),
	}

	// Gain 50%: a level fires but the moon bag threshold is not reached.
	res := tp.Evaluate(tpPosition(), cfg, dec("150"))
	require.True(t, res.ShouldExecute)
	assert.False(t, res.ActivateMoonBag)

	// Gain 110%: moon bag activates and reserves 15% of the original amount.
	res = tp.Evaluate(tpPosition(), cfg, dec("210"))
	require.True(t, res.ShouldExecute)
	assert.True(t, res.ActivateMoonBag)
	assert.True(t, res.MoonBagAmount.Equal(dec("150")))
}

func TestTakeProfitMoonBagActivatesOnLastLevel(t *testing.T) {
	tp := NewTakeProfit(testLogger())

	// Trigger gain set beyond the ladder: activation still happens when the
	// final level fires, so the reserve cannot be skipped by exhausting the
	// ladder first.
	cfg := tpConfig()
	cfg.MoonBag = domain.MoonBagConfig{
		Enabled:        true,
		TriggerPercent: dec("1000"),
		RetainPercent:  dec("10"),
	}

	res := tp.Evaluate(tpPosition(), cfg, dec("500"))
	require.True(t, res.ShouldExecute)
	assert.Equal(t, []int{0, 1, 2, 3}, res.LevelsToExecute)
	assert.True(t, res.ActivateMoonBag)
	assert.True(t, res.MoonBagAmount.Equal(dec("100")))
}

func TestTakeProfitMoonBagActivatesOnlyOnce(t *testing.T) {
	tp := NewTakeProfit(testLogger())

	cfg := tpConfig()
	cfg.MoonBag = domain.MoonBagConfig{
		Enabled:        true,
		TriggerPercent: dec("100"),
		RetainPercent:  dec("15"),
	}

	pos := tpPosition()
	pos.TakeProfitLevelsHit = 1
	pos.RemainingAmount = decPtr("750")
	pos.MoonBagActivated = true
	pos.MoonBagAmount = dec("150")

	res := tp.Evaluate(pos, cfg, dec("260"))
	require.True(t, res.ShouldExecute)
	assert.False(t, res.ActivateMoonBag)
	assert.True(t, res.MoonBagAmount.IsZero())
}

func TestTakeProfitSellCappedByMoonBagReserve(t *testing.T) {
	tp := NewTakeProfit(testLogger())

	cfg := tpConfig()
	cfg.MoonBag = domain.MoonBagConfig{
		Enabled:        true,
		TriggerPercent: dec("100"),
		RetainPercent:  dec("15"),
	}

	// Only 200 tokens left with 150 reserved: a configured 25% sell (250
	// tokens) truncates to the 50 sellable above the reserve.
	pos := tpPosition()
	pos.TakeProfitLevelsHit = 2
	pos.RemainingAmount = decPtr("200")
	pos.MoonBagActivated = true
	pos.MoonBagAmount = dec("150")

	res := tp.Evaluate(pos, cfg, dec("450"))
	require.True(t, res.ShouldExecute)
	assert.True(t, res.SellAmount.Equal(dec("50")), "sell %s", res.SellAmount)
	assert.True(t, res.NewRemainingAmount.Equal(dec("150")))
}

func TestTakeProfitSellCappedByRemaining(t *testing.T) {
	tp := NewTakeProfit(testLogger())

	pos := tpPosition()
	pos.TakeProfitLevelsHit = 3
	pos.RemainingAmount = decPtr("100")

	// Final level sells 15% of 1000 = 150, but only 100 remain.
	res := tp.Evaluate(pos, tpConfig(), dec("500"))
	require.True(t, res.ShouldExecute)
	assert.True(t, res.SellAmount.Equal(dec("100")))
	assert.True(t, res.NewRemainingAmount.IsZero())
}

func TestTakeProfitProgress(t *testing.T) {
	tp := NewTakeProfit(testLogger())

	pos := tpPosition()
	pos.TakeProfitLevelsHit = 2
	pos.RemainingAmount = decPtr("500")
	pos.MoonBagActivated = true
	pos.MoonBagAmount = dec("150")

	p := tp.Progress(pos, tpConfig())
	assert.Equal(t, 2, p.LevelsHit)
	assert.Equal(t, 4, p.TotalLevels)
	assert.True(t, p.PercentComplete.Equal(dec("50")))
	assert.True(t, p.SoldAmount.Equal(dec("500")))
	assert.True(t, p.RemainingAmount.Equal(dec("500")))
	assert.True(t, p.MoonBagActive)
	assert.True(t, p.MoonBagAmount.Equal(dec("150")))
}
