package ledger

import (
	"fmt"

	"github.com/tokenwave/positiond/internal/domain"
)

// ComputeUpdateDeltas derives the balance deltas needed to edit a recorded
// transaction: the reversal of the old transaction's effect followed by the
// forward application of the new one. Each delta is tagged with whether it
// must be validated against the locked balance (debits) and whether the
// target row must already exist (debits, and reversal credits — reversing a
// debit must find the row the original debit came from). Applying the result
// with Ledger.ApplyDeltas edits the transaction without re-deriving its
// semantics twice.
func ComputeUpdateDeltas(oldTx, newTx domain.Transaction) ([]domain.BalanceDelta, error) {
	if oldTx.Wallet != newTx.Wallet {
		return nil, &domain.ValidationError{Field: "wallet", Message: "transaction edits cannot move between wallets"}
	}

	reversal, err := transactionDeltas(oldTx, true)
	if err != nil {
		return nil, err
	}
	forward, err := transactionDeltas(newTx, false)
	if err != nil {
		return nil, err
	}

	return append(reversal, forward...), nil
}

// transactionDeltas expands one transaction into its tagged per-token deltas.
// When reverse is true the signs flip: the original debit becomes a credit
// back into the row it came from, and the original credit becomes a debit.
func transactionDeltas(t domain.Transaction, reverse bool) ([]domain.BalanceDelta, error) {
	debitSide := t.Type == domain.TransactionTypeSwap || t.Type == domain.TransactionTypeBurn
	creditSide := t.Type == domain.TransactionTypeSwap || t.Type == domain.TransactionTypeDeposit

	if !debitSide && !creditSide {
		return nil, &domain.ValidationError{Field: "type", Message: fmt.Sprintf("unknown transaction type %q", t.Type)}
	}

	var deltas []domain.BalanceDelta

	if debitSide {
		if !t.InputAmount.IsPositive() {
			return nil, &domain.ValidationError{Field: "inputAmount", Message: "must be positive"}
		}
		d := domain.BalanceDelta{
			Wallet:       t.Wallet,
			AgentID:      t.AgentID,
			TokenAddress: t.InputTokenAddress,
			TokenSymbol:  t.InputTokenSymbol,
			Delta:        t.InputAmount.Neg(),
			// Debits must find sufficient existing balance.
			RequiresValidation: true,
			MustExist:          true,
		}
		if reverse {
			// The reversal of a debit credits the tokens back; the row the
			// original debit touched must still exist.
			d.Delta = t.InputAmount
			d.RequiresValidation = false
		}
		deltas = append(deltas, d)
	}

	if creditSide {
		if !t.OutputAmount.IsPositive() {
			return nil, &domain.ValidationError{Field: "outputAmount", Message: "must be positive"}
		}
		d := domain.BalanceDelta{
			Wallet:       t.Wallet,
			AgentID:      t.AgentID,
			TokenAddress: t.OutputTokenAddress,
			TokenSymbol:  t.OutputTokenSymbol,
			Delta:        t.OutputAmount,
		}
		if reverse {
			// Clawing back a prior credit is a debit and must be validated.
			d.Delta = t.OutputAmount.Neg()
			d.RequiresValidation = true
			d.MustExist = true
		}
		deltas = append(deltas, d)
	}

	// Keep the debit side first so an invalid edit fails before any mutation.
	if reverse {
		for i, j := 0, len(deltas)-1; i < j; i, j = i+1, j-1 {
			deltas[i], deltas[j] = deltas[j], deltas[i]
		}
	}
	return deltas, nil
}
