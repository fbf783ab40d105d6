package evaluator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenwave/positiond/internal/domain"
)

func dcaConfig() domain.DCAConfig {
	return domain.DCAConfig{
		Enabled:         true,
		Mode:            domain.ModeModerate, // -15/25, -30/35, -50/50
		MaxDCACount:     3,
		CooldownSeconds: 300,
	}
}

func dcaPosition() domain.Position {
	return domain.Position{
		ID:             "pos-1",
		PurchasePrice:  dec("100"),
		PurchaseAmount: dec("1000"),
		Status:         domain.PositionStatusOpen,
	}
}

func TestDCATriggerInclusive(t *testing.T) {
	d := NewDCA(testLogger())
	now := time.Now()

	// Exactly -15% triggers the first level.
	res := d.Evaluate(dcaPosition(), dcaConfig(), dec("85"), now)
	require.True(t, res.ShouldTrigger)
	assert.Equal(t, 0, res.LevelIndex)
	assert.True(t, res.CurrentDropPercent.Equal(dec("-15")))

	// -14.99% does not.
	res = d.Evaluate(dcaPosition(), dcaConfig(), dec("85.01"), now)
	assert.False(t, res.ShouldTrigger)
}

func TestDCABuySizedAgainstCurrentValue(t *testing.T) {
	d := NewDCA(testLogger())

	// 25% of the current position value: 85 * 1000 * 0.25.
	res := d.Evaluate(dcaPosition(), dcaConfig(), dec("85"), time.Now())
	require.True(t, res.ShouldTrigger)
	assert.True(t, res.BuyAmountBase.Equal(dec("21250")), "buy %s", res.BuyAmountBase)
}

func TestDCALevelsConsumedInOrder(t *testing.T) {
	d := NewDCA(testLogger())
	now := time.Now()

	// A 60% crash on a fresh position still consumes level 0 first.
	res := d.Evaluate(dcaPosition(), dcaConfig(), dec("40"), now)
	require.True(t, res.ShouldTrigger)
	assert.Equal(t, 0, res.LevelIndex)

	// After one event the next evaluation targets level 1.
	pos := dcaPosition()
	pos.DCACount = 1
	res = d.Evaluate(pos, dcaConfig(), dec("40"), now)
	require.True(t, res.ShouldTrigger)
	assert.Equal(t, 1, res.LevelIndex)
	assert.True(t, res.Level.DropPercent.Equal(dec("-30")))

	// A shallow drop does not satisfy the deeper next level.
	res = d.Evaluate(pos, dcaConfig(), dec("80"), now)
	assert.False(t, res.ShouldTrigger)
}

func TestDCACooldown(t *testing.T) {
	d := NewDCA(testLogger())
	now := time.Now()

	last := now.Add(-100 * time.Second)
	pos := dcaPosition()
	pos.DCACount = 1
	pos.LastDCAAt = &last

	res := d.Evaluate(pos, dcaConfig(), dec("40"), now)
	assert.False(t, res.ShouldTrigger)
	assert.Contains(t, res.Reason, "cooldown active")

	// Cooldown elapsed.
	last = now.Add(-301 * time.Second)
	res = d.Evaluate(pos, dcaConfig(), dec("40"), now)
	assert.True(t, res.ShouldTrigger)
}

func TestDCAMaxCount(t *testing.T) {
	d := NewDCA(testLogger())

	pos := dcaPosition()
	pos.DCACount = 3

	res := d.Evaluate(pos, dcaConfig(), dec("10"), time.Now())
	assert.False(t, res.ShouldTrigger)
	assert.Equal(t, "all levels used", res.Reason)
}

func TestDCADisabledAndEmpty(t *testing.T) {
	d := NewDCA(testLogger())

	res := d.Evaluate(dcaPosition(), domain.DCAConfig{Enabled: false}, dec("10"), time.Now())
	assert.Equal(t, "disabled", res.Reason)

	res = d.Evaluate(dcaPosition(), domain.DCAConfig{Enabled: true, Mode: domain.ModeCustom}, dec("10"), time.Now())
	assert.Equal(t, "no levels configured", res.Reason)
}

func TestCalculateNewAveragePrice(t *testing.T) {
	// 1000 tokens at 100, then 21250 base buys 250 more at 85.
	res := CalculateNewAveragePrice(dec("100000"), dec("1000"), dec("21250"), dec("250"))

	assert.True(t, res.NewTotalInvested.Equal(dec("121250")))
	assert.True(t, res.NewTotalAmount.Equal(dec("1250")))
	assert.True(t, res.NewAveragePrice.Equal(dec("97")))

	// The new basis lands strictly between the two prices.
	assert.True(t, res.NewAveragePrice.LessThan(dec("100")))
	assert.True(t, res.NewAveragePrice.GreaterThan(dec("85")))
}

func TestCalculateNewAveragePriceOrderIndependent(t *testing.T) {
	// Folding two buys in either order lands on the same basis.
	a := CalculateNewAveragePrice(dec("100000"), dec("1000"), dec("21250"), dec("250"))
	a = CalculateNewAveragePrice(a.NewTotalInvested, a.NewTotalAmount, dec("10000"), dec("200"))

	b := CalculateNewAveragePrice(dec("100000"), dec("1000"), dec("10000"), dec("200"))
	b = CalculateNewAveragePrice(b.NewTotalInvested, b.NewTotalAmount, dec("21250"), dec("250"))

	assert.True(t, a.NewAveragePrice.Equal(b.NewAveragePrice))
	assert.True(t, a.NewTotalInvested.Equal(b.NewTotalInvested))
	assert.True(t, a.NewTotalAmount.Equal(b.NewTotalAmount))
}

func TestCalculateNewAveragePriceZeroAmount(t *testing.T) {
	res := CalculateNewAveragePrice(dec("0"), dec("0"), dec("0"), dec("0"))
	assert.True(t, res.NewAveragePrice.IsZero())
}
