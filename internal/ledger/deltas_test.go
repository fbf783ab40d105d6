package ledger

import (
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

func swapTx(input, output string) domain.Transaction {
	return domain.Transaction{
		ID:                 "tx-1",
		AgentID:            "agent-1",
		Wallet:             "wallet-1",
		Type:               domain.TransactionTypeSwap,
		InputTokenAddress:  "sol",
		InputTokenSymbol:   "SOL",
		InputAmount:        dec(input),
		OutputTokenAddress: "bonk",
		OutputTokenSymbol:  "BONK",
		OutputAmount:       dec(output),
	}
}

func TestComputeUpdateDeltasSwapAmountEdit(t *testing.T) {
	oldTx := swapTx("10", "1000")
	newTx := swapTx("12", "1150")

	deltas, err := ComputeUpdateDeltas(oldTx, newTx)
	require.NoError(t, err)
	require.Len(t, deltas, 4)

	// Reversal comes first, debit side leading: claw back the old credit,
	// then refund the old debit.
	assert.Equal(t, "bonk", deltas[0].TokenAddress)
	assert.True(t, deltas[0].Delta.Equal(dec("-1000")))
	assert.True(t, deltas[0].RequiresValidation)
	assert.True(t, deltas[0].MustExist)

	assert.Equal(t, "sol", deltas[1].TokenAddress)
	assert.True(t, deltas[1].Delta.Equal(dec("10")))
	assert.False(t, deltas[1].RequiresValidation)
	assert.True(t, deltas[1].MustExist)

	// Forward application of the edited transaction.
	assert.Equal(t, "sol", deltas[2].TokenAddress)
	assert.True(t, deltas[2].Delta.Equal(dec("-12")))
	assert.True(t, deltas[2].RequiresValidation)
	assert.True(t, deltas[2].MustExist)

	assert.Equal(t, "bonk", deltas[3].TokenAddress)
	assert.True(t, deltas[3].Delta.Equal(dec("1150")))
	assert.False(t, deltas[3].RequiresValidation)
	assert.False(t, deltas[3].MustExist)
}

func TestComputeUpdateDeltasNetEffect(t *testing.T) {
	oldTx := swapTx("10", "1000")
	newTx := swapTx("12", "1150")

	deltas, err := ComputeUpdateDeltas(oldTx, newTx)
	require.NoError(t, err)

	net := map[string]decimal.Decimal{}
	for _, d := range deltas {
		net[d.TokenAddress] = net[d.TokenAddress].Add(d.Delta)
	}
	assert.True(t, net["sol"].Equal(dec("-2")))
	assert.True(t, net["bonk"].Equal(dec("150")))
}

func TestComputeUpdateDeltasWalletMismatch(t *testing.T) {
	oldTx := swapTx("10", "1000")
	newTx := swapTx("10", "1000")
	newTx.Wallet = "wallet-2"

	_, err := ComputeUpdateDeltas(oldTx, newTx)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "wallet", verr.Field)
}

func TestComputeUpdateDeltasRejectsNonPositiveAmounts(t *testing.T) {
	oldTx := swapTx("10", "1000")

	bad := swapTx("0", "1000")
	_, err := ComputeUpdateDeltas(oldTx, bad)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "inputAmount", verr.Field)

	bad = swapTx("10", "-5")
	_, err = ComputeUpdateDeltas(oldTx, bad)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "outputAmount", verr.Field)
}

func TestComputeUpdateDeltasUnknownType(t *testing.T) {
	oldTx := swapTx("10", "1000")
	newTx := swapTx("10", "1000")
	newTx.Type = "stake"

	_, err := ComputeUpdateDeltas(oldTx, newTx)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "type", verr.Field)
}

func TestTransactionDeltasDeposit(t *testing.T) {
	tx := domain.Transaction{
		ID:                 "tx-2",
		Wallet:             "wallet-1",
		Type:               domain.TransactionTypeDeposit,
		OutputTokenAddress: "sol",
		OutputTokenSymbol:  "SOL",
		OutputAmount:       dec("5"),
	}

	deltas, err := transactionDeltas(tx, false)
	require.NoError(t, err)
	require.Len(t, deltas, 1)
	assert.True(t, deltas[0].Delta.Equal(dec("5")))
	assert.False(t, deltas[0].MustExist)

	// Reversing a deposit claws the credit back as a validated debit.
	deltas, err = transactionDeltas(tx, true)
	require.NoError(t, err)
	require.Len(t, deltas, 1)
	assert.True(t, deltas[0].Delta.Equal(dec("-5")))
	assert.True(t, deltas[0].RequiresValidation)
	assert.True(t, deltas[0].MustExist)
}

func TestTransactionDeltasBurn(t *testing.T) {
	tx := domain.Transaction{
		ID:                "tx-3",
		Wallet:            "wallet-1",
		Type:              domain.TransactionTypeBurn,
		InputTokenAddress: "bonk",
		InputTokenSymbol:  "BONK",
		InputAmount:       dec("100"),
	}

	deltas, err := transactionDeltas(tx, false)
	require.NoError(t, err)
	require.Len(t, deltas, 1)
	assert.True(t, deltas[0].Delta.Equal(dec("-100")))
	assert.True(t, deltas[0].RequiresValidation)
	assert.True(t, deltas[0].MustExist)
}
