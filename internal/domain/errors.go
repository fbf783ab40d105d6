package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrLockHeld       = errors.New("lock already held")
	ErrAlreadyHandled = errors.New("signal already handled")
)

// InsufficientBalanceError is returned when a debit would push a balance row
// below zero. It carries enough detail for user-facing display and is never
// retried automatically.
type InsufficientBalanceError struct {
	TokenAddress   string
	TokenSymbol    string
	CurrentBalance decimal.Decimal
	RequiredAmount decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s (%s): have %s, need %s",
		e.TokenSymbol, e.TokenAddress, e.CurrentBalance.String(), e.RequiredAmount.String())
}

// TokenNotFoundError is returned when a debit targets a (wallet, token) row
// that was never credited.
type TokenNotFoundError struct {
	Wallet       string
	TokenAddress string
	TokenSymbol  string
}

func (e *TokenNotFoundError) Error() string {
	return fmt.Sprintf("no balance row for token %s (%s) in wallet %s",
		e.TokenSymbol, e.TokenAddress, e.Wallet)
}

// ValidationError reports a malformed input, such as a non-positive swap
// amount or an over-allocated take-profit ladder.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
