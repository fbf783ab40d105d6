package evaluator

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenwave/positiond/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePositionStore records Update calls; the other methods are unused by the
// evaluators.
type fakePositionStore struct {
	updates map[string][]domain.PositionUpdate
}

func newFakePositionStore() *fakePositionStore {
	return &fakePositionStore{updates: make(map[string][]domain.PositionUpdate)}
}

func (f *fakePositionStore) Create(ctx context.Context, pos domain.Position) error { return nil }
func (f *fakePositionStore) GetByID(ctx context.Context, id string) (domain.Position, error) {
	return domain.Position{}, domain.ErrNotFound
}
func (f *fakePositionStore) Update(ctx context.Context, id string, upd domain.PositionUpdate) error {
	f.updates[id] = append(f.updates[id], upd)
	return nil
}
func (f *fakePositionStore) Close(ctx context.Context, id string) error { return nil }
func (f *fakePositionStore) ListOpenByToken(ctx context.Context, tokenAddress string) ([]domain.Position, error) {
	return nil, nil
}
func (f *fakePositionStore) ListOpenByWallet(ctx context.Context, wallet string) ([]domain.Position, error) {
	return nil, nil
}
func (f *fakePositionStore) ListOpenTokens(ctx context.Context) ([]string, error) {
	return nil, nil
}

func slConfig() domain.StopLossConfig {
	return domain.StopLossConfig{
		Enabled:           true,
		DefaultPercentage: dec("-32"),
		TrailingLevels: []domain.TrailingLevel{
			{Change: dec("50"), StopLoss: dec("-10")},
			{Change: dec("100"), StopLoss: dec("20")},
			{Change: dec("200"), StopLoss: dec("80")},
		},
	}
}

func slPosition() domain.Position {
	return domain.Position{
		ID:                 "pos-1",
		PurchasePrice:      dec("100"),
		PurchaseAmount:     dec("1000"),
		PeakPrice:          dec("100"),
		CurrentStopLossPct: decPtr("-32"),
		Status:             domain.PositionStatusOpen,
	}
}

func TestStopLossDisabled(t *testing.T) {
	res := computeStopLoss(slPosition(), domain.StopLossConfig{Enabled: false}, dec("1"))

	assert.False(t, res.ShouldTrigger)
	assert.Equal(t, "disabled", res.Reason)
	assert.False(t, res.Updated)
}

func TestStopLossTriggerIsInclusive(t *testing.T) {
	// Purchase 100 at -32% puts the trigger at exactly 68.
	res := computeStopLoss(slPosition(), slConfig(), dec("68"))
	assert.True(t, res.ShouldTrigger)
	assert.True(t, res.StopLossPrice.Equal(dec("68")), "stop loss price %s", res.StopLossPrice)

	res = computeStopLoss(slPosition(), slConfig(), dec("68.000000000000000001"))
	assert.False(t, res.ShouldTrigger)
	assert.Equal(t, "price above stop loss", res.Reason)
}

func TestStopLossTrailingRaisesPercentage(t *testing.T) {
	// Gain of 60% reaches the 50% level only.
	res := computeStopLoss(slPosition(), slConfig(), dec("160"))
	assert.True(t, res.Percentage.Equal(dec("-10")))
	assert.True(t, res.StopLossPrice.Equal(dec("90")))
	assert.True(t, res.PeakPrice.Equal(dec("160")))
	assert.True(t, res.Updated)
	assert.False(t, res.ShouldTrigger)

	// Gain of 110% selects the largest reached threshold, not the first.
	res = computeStopLoss(slPosition(), slConfig(), dec("210"))
	assert.True(t, res.Percentage.Equal(dec("20")))
	assert.True(t, res.StopLossPrice.Equal(dec("120")))
}

func TestStopLossPercentageNeverDecreases(t *testing.T) {
	pos := slPosition()
	pos.PeakPrice = dec("210")
	pos.CurrentStopLossPct = decPtr("20")

	// Price fell back: gain from peak still 110%, candidate stays 20 and the
	// stored percentage is not lowered.
	res := computeStopLoss(pos, slConfig(), dec("130"))
	assert.True(t, res.Percentage.Equal(dec("20")))
	assert.False(t, res.ShouldTrigger)

	// At the raised stop price the position exits in profit.
	res = computeStopLoss(pos, slConfig(), dec("120"))
	assert.True(t, res.ShouldTrigger)
}

func TestStopLossGainMeasuredFromPeak(t *testing.T) {
	pos := slPosition()
	pos.PeakPrice = dec("100")

	// Current price below purchase never raises the percentage.
	res := computeStopLoss(pos, slConfig(), dec("80"))
	assert.True(t, res.Percentage.Equal(dec("-32")))
	assert.True(t, res.PeakPrice.Equal(dec("100")))

	// A stale peak above the current price still drives the trailing level.
	pos.PeakPrice = dec("250")
	res = computeStopLoss(pos, slConfig(), dec("130"))
	assert.True(t, res.Percentage.Equal(dec("20")))
}

func TestStopLossTrailingLevelOrderIrrelevant(t *testing.T) {
	cfg := slConfig()
	cfg.TrailingLevels = []domain.TrailingLevel{
		{Change: dec("200"), StopLoss: dec("80")},
		{Change: dec("50"), StopLoss: dec("-10")},
		{Change: dec("100"), StopLoss: dec("20")},
	}

	res := computeStopLoss(slPosition(), cfg, dec("210"))
	assert.True(t, res.Percentage.Equal(dec("20")))
}

func TestStopLossEvaluatePersistsChanges(t *testing.T) {
	store := newFakePositionStore()
	sl := NewStopLoss(store, testLogger())

	res, err := sl.Evaluate(context.Background(), slPosition(), slConfig(), dec("160"))
	require.NoError(t, err)
	assert.True(t, res.Updated)
	require.Len(t, store.updates["pos-1"], 1)

	upd := store.updates["pos-1"][0]
	require.NotNil(t, upd.PeakPrice)
	require.NotNil(t, upd.CurrentStopLossPct)
	assert.True(t, upd.PeakPrice.Equal(dec("160")))
	assert.True(t, upd.CurrentStopLossPct.Equal(dec("-10")))
}

func TestStopLossEvaluateNoChangeNoWrite(t *testing.T) {
	store := newFakePositionStore()
	sl := NewStopLoss(store, testLogger())

	res, err := sl.Evaluate(context.Background(), slPosition(), slConfig(), dec("90"))
	require.NoError(t, err)
	assert.False(t, res.Updated)
	assert.Empty(t, store.updates["pos-1"])
}

func TestStopLossInitialize(t *testing.T) {
	store := newFakePositionStore()
	sl := NewStopLoss(store, testLogger())

	pct, ok, err := sl.Initialize(context.Background(), slPosition(), slConfig())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, pct.Equal(dec("-32")))
	require.Len(t, store.updates["pos-1"], 1)

	_, ok, err = sl.Initialize(context.Background(), slPosition(), domain.StopLossConfig{Enabled: false})
	require.NoError(t, err)
	assert.False(t, ok)
}
