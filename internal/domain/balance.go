package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceRow is the ledger entry for one (wallet, token) pair. Rows are
// created lazily on first credit and are never negative after a committed
// unit of work. All mutation goes through the Balance Ledger under a row
// lock scoped to the key.
type BalanceRow struct {
	Wallet       string
	AgentID      string
	TokenAddress string
	TokenSymbol  string
	Amount       decimal.Decimal
	UpdatedAt    time.Time
}

// BalanceDelta is one side of a balance mutation, tagged with the checks the
// ledger must perform before applying it. Debits require validation against
// the locked balance; reversal credits must find an existing row.
type BalanceDelta struct {
	Wallet       string
	AgentID      string
	TokenAddress string
	TokenSymbol  string
	Delta        decimal.Decimal

	// RequiresValidation marks debits, which must not exceed the locked
	// balance.
	RequiresValidation bool

	// MustExist marks deltas that may not create a row: a debit, and the
	// reversal of a prior credit.
	MustExist bool
}

// TransactionType enumerates the balance effects the ledger understands.
type TransactionType string

const (
	TransactionTypeSwap    TransactionType = "swap"
	TransactionTypeDeposit TransactionType = "deposit"
	TransactionTypeBurn    TransactionType = "burn"
)

// Transaction records one executed trade: a swap debits the input token and
// credits the output token, a deposit only credits, a burn only debits.
type Transaction struct {
	ID      string
	AgentID string
	Wallet  string
	Type    TransactionType

	InputTokenAddress string
	InputTokenSymbol  string
	InputAmount       decimal.Decimal

	OutputTokenAddress string
	OutputTokenSymbol  string
	OutputAmount       decimal.Decimal

	CreatedAt time.Time
}
