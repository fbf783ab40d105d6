// Package ledger owns all mutation of per-(wallet, token) balance rows.
// Every operation runs inside a caller-supplied pgx transaction (the unit of
// work), takes a row lock before reading, and validates debits against the
// locked balance, so a committed unit of work can never leave a negative or
// double-counted balance.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/tokenwave/positiond/internal/domain"
)

// Ledger is the sole writer of balance rows. Evaluators and the engine never
// touch the balances table directly.
type Ledger struct {
	logger *slog.Logger
}

// New creates a Ledger.
func New(logger *slog.Logger) *Ledger {
	return &Ledger{logger: logger.With(slog.String("component", "ledger"))}
}

// LockRow takes an exclusive row lock on the (wallet, token) balance row for
// the duration of the transaction. It returns the locked row and whether the
// row exists. Readers outside a unit of work are not blocked.
func (l *Ledger) LockRow(ctx context.Context, tx pgx.Tx, wallet, tokenAddress string) (domain.BalanceRow, bool, error) {
	var row domain.BalanceRow
	err := tx.QueryRow(ctx, `
		SELECT wallet, agent_id, token_address, token_symbol, amount, updated_at
		FROM balances
		WHERE wallet = $1 AND token_address = $2
		FOR UPDATE`,
		wallet, tokenAddress,
	).Scan(&row.Wallet, &row.AgentID, &row.TokenAddress, &row.TokenSymbol, &row.Amount, &row.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.BalanceRow{}, false, nil
		}
		return domain.BalanceRow{}, false, fmt.Errorf("ledger: lock row %s/%s: %w", wallet, tokenAddress, err)
	}
	return row, true, nil
}

// ValidateSufficient fails with InsufficientBalanceError when the locked
// balance for (wallet, token) is below required. A missing row is treated as
// a zero balance.
func (l *Ledger) ValidateSufficient(ctx context.Context, tx pgx.Tx, wallet, tokenAddress, tokenSymbol string, required decimal.Decimal) error {
	row, found, err := l.LockRow(ctx, tx, wallet, tokenAddress)
	if err != nil {
		return err
	}

	current := decimal.Zero
	if found {
		current = row.Amount
		if row.TokenSymbol != "" {
			tokenSymbol = row.TokenSymbol
		}
	}
	if current.LessThan(required) {
		return &domain.InsufficientBalanceError{
			TokenAddress:   tokenAddress,
			TokenSymbol:    tokenSymbol,
			CurrentBalance: current,
			RequiredAmount: required,
		}
	}
	return nil
}

// UpsertParams are the inputs to UpsertDelta.
type UpsertParams struct {
	Wallet       string
	AgentID      string
	TokenAddress string
	TokenSymbol  string

	// Delta is added to an existing row's amount; it may be negative.
	Delta decimal.Decimal

	// InitialAmount is the quantity a freshly created row starts with. It is
	// only consulted on first credit; a debit never creates a row.
	InitialAmount decimal.Decimal
}

// UpsertDelta applies a delta to the (wallet, token) row, creating the row
// with InitialAmount when it does not exist. Delta application and row
// creation are one primitive so callers never branch on existence. A debit
// against a nonexistent row is a TokenNotFoundError; a debit below zero is
// an InsufficientBalanceError. The caller must hold the row lock (LockRow or
// ValidateSufficient) before a debit.
func (l *Ledger) UpsertDelta(ctx context.Context, tx pgx.Tx, p UpsertParams) (domain.BalanceRow, error) {
	row, found, err := l.LockRow(ctx, tx, p.Wallet, p.TokenAddress)
	if err != nil {
		return domain.BalanceRow{}, err
	}

	now := time.Now().UTC()

	if !found {
		if p.Delta.IsNegative() {
			return domain.BalanceRow{}, &domain.TokenNotFoundError{
				Wallet:       p.Wallet,
				TokenAddress: p.TokenAddress,
				TokenSymbol:  p.TokenSymbol,
			}
		}
		created := domain.BalanceRow{
			Wallet:       p.Wallet,
			AgentID:      p.AgentID,
			TokenAddress: p.TokenAddress,
			TokenSymbol:  p.TokenSymbol,
			Amount:       p.InitialAmount,
			UpdatedAt:    now,
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO balances (wallet, agent_id, token_address, token_symbol, amount, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			created.Wallet, created.AgentID, created.TokenAddress, created.TokenSymbol, created.Amount, created.UpdatedAt,
		)
		if err != nil {
			return domain.BalanceRow{}, fmt.Errorf("ledger: create row %s/%s: %w", p.Wallet, p.TokenAddress, err)
		}
		return created, nil
	}

	newAmount := row.Amount.Add(p.Delta)
	if newAmount.IsNegative() {
		return domain.BalanceRow{}, &domain.InsufficientBalanceError{
			TokenAddress:   p.TokenAddress,
			TokenSymbol:    row.TokenSymbol,
			CurrentBalance: row.Amount,
			RequiredAmount: p.Delta.Neg(),
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE balances SET amount = $3, updated_at = $4
		WHERE wallet = $1 AND token_address = $2`,
		p.Wallet, p.TokenAddress, newAmount, now,
	)
	if err != nil {
		return domain.BalanceRow{}, fmt.Errorf("ledger: apply delta %s/%s: %w", p.Wallet, p.TokenAddress, err)
	}

	row.Amount = newAmount
	row.UpdatedAt = now
	return row, nil
}

// ApplyParams describe the balance effect of one transaction.
type ApplyParams struct {
	Wallet  string
	AgentID string
	Type    domain.TransactionType

	InputTokenAddress string
	InputTokenSymbol  string
	InputAmount       decimal.Decimal

	OutputTokenAddress string
	OutputTokenSymbol  string
	OutputAmount       decimal.Decimal
}

// ApplyTransactionDeltas applies the balance effect of a transaction inside
// the caller's unit of work: a swap debits the input token then credits the
// output token, a deposit only credits, a burn only debits. The input side is
// always locked, validated, and applied before the output side so an invalid
// debit fails before any mutation occurs. It returns the final state of every
// touched row for post-commit projection.
func (l *Ledger) ApplyTransactionDeltas(ctx context.Context, tx pgx.Tx, p ApplyParams) ([]domain.BalanceRow, error) {
	var touched []domain.BalanceRow

	debit := p.Type == domain.TransactionTypeSwap || p.Type == domain.TransactionTypeBurn
	credit := p.Type == domain.TransactionTypeSwap || p.Type == domain.TransactionTypeDeposit

	if !debit && !credit {
		return nil, &domain.ValidationError{Field: "type", Message: fmt.Sprintf("unknown transaction type %q", p.Type)}
	}

	if debit {
		if !p.InputAmount.IsPositive() {
			return nil, &domain.ValidationError{Field: "inputAmount", Message: "must be positive"}
		}
		if err := l.ValidateSufficient(ctx, tx, p.Wallet, p.InputTokenAddress, p.InputTokenSymbol, p.InputAmount); err != nil {
			return nil, err
		}
		row, err := l.UpsertDelta(ctx, tx, UpsertParams{
			Wallet:       p.Wallet,
			AgentID:      p.AgentID,
			TokenAddress: p.InputTokenAddress,
			TokenSymbol:  p.InputTokenSymbol,
			Delta:        p.InputAmount.Neg(),
		})
		if err != nil {
			return nil, err
		}
		touched = append(touched, row)
	}

	if credit {
		if !p.OutputAmount.IsPositive() {
			return nil, &domain.ValidationError{Field: "outputAmount", Message: "must be positive"}
		}
		row, err := l.UpsertDelta(ctx, tx, UpsertParams{
			Wallet:        p.Wallet,
			AgentID:       p.AgentID,
			TokenAddress:  p.OutputTokenAddress,
			TokenSymbol:   p.OutputTokenSymbol,
			Delta:         p.OutputAmount,
			InitialAmount: p.OutputAmount,
		})
		if err != nil {
			return nil, err
		}
		touched = append(touched, row)
	}

	return touched, nil
}

// ApplyDeltas applies precomputed deltas (from ComputeUpdateDeltas) in order,
// honoring each delta's validation and existence tags. It returns the final
// state of every touched row.
func (l *Ledger) ApplyDeltas(ctx context.Context, tx pgx.Tx, deltas []domain.BalanceDelta) ([]domain.BalanceRow, error) {
	var touched []domain.BalanceRow

	for _, d := range deltas {
		row, found, err := l.LockRow(ctx, tx, d.Wallet, d.TokenAddress)
		if err != nil {
			return nil, err
		}

		if d.MustExist && !found {
			return nil, &domain.TokenNotFoundError{
				Wallet:       d.Wallet,
				TokenAddress: d.TokenAddress,
				TokenSymbol:  d.TokenSymbol,
			}
		}
		if d.RequiresValidation {
			current := decimal.Zero
			if found {
				current = row.Amount
			}
			if current.LessThan(d.Delta.Neg()) {
				return nil, &domain.InsufficientBalanceError{
					TokenAddress:   d.TokenAddress,
					TokenSymbol:    d.TokenSymbol,
					CurrentBalance: current,
					RequiredAmount: d.Delta.Neg(),
				}
			}
		}

		updated, err := l.UpsertDelta(ctx, tx, UpsertParams{
			Wallet:        d.Wallet,
			AgentID:       d.AgentID,
			TokenAddress:  d.TokenAddress,
			TokenSymbol:   d.TokenSymbol,
			Delta:         d.Delta,
			InitialAmount: d.Delta,
		})
		if err != nil {
			return nil, err
		}
		touched = append(touched, updated)
	}

	return touched, nil
}

// RecordTransaction inserts the transaction row inside the caller's unit of
// work so "create transaction + update balances" commits atomically.
func (l *Ledger) RecordTransaction(ctx context.Context, tx pgx.Tx, t domain.Transaction) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO transactions (
			id, agent_id, wallet, type,
			input_token_address, input_token_symbol, input_amount,
			output_token_address, output_token_symbol, output_amount,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.AgentID, t.Wallet, string(t.Type),
		t.InputTokenAddress, t.InputTokenSymbol, t.InputAmount,
		t.OutputTokenAddress, t.OutputTokenSymbol, t.OutputAmount,
		t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ledger: record transaction %s: %w", t.ID, err)
	}
	return nil
}
