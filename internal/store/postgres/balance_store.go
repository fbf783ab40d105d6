package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tokenwave/positiond/internal/domain"
)

// BalanceStore serves balance reads outside a unit of work. It never mutates
// rows; all writes go through the ledger, which locks rows inside a
// caller-supplied transaction.
type BalanceStore struct {
	pool *pgxpool.Pool
}

// NewBalanceStore creates a new BalanceStore.
func NewBalanceStore(pool *pgxpool.Pool) *BalanceStore {
	return &BalanceStore{pool: pool}
}

const balanceSelectCols = `wallet, agent_id, token_address, token_symbol, amount, updated_at`

// Get returns the balance row for (wallet, token), or domain.ErrNotFound.
func (s *BalanceStore) Get(ctx context.Context, wallet, tokenAddress string) (domain.BalanceRow, error) {
	var row domain.BalanceRow
	err := s.pool.QueryRow(ctx,
		`SELECT `+balanceSelectCols+` FROM balances WHERE wallet = $1 AND token_address = $2`,
		wallet, tokenAddress,
	).Scan(&row.Wallet, &row.AgentID, &row.TokenAddress, &row.TokenSymbol, &row.Amount, &row.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.BalanceRow{}, domain.ErrNotFound
		}
		return domain.BalanceRow{}, fmt.Errorf("postgres: get balance %s/%s: %w", wallet, tokenAddress, err)
	}
	return row, nil
}

// ListByWallet returns every balance row for the wallet.
func (s *BalanceStore) ListByWallet(ctx context.Context, wallet string) ([]domain.BalanceRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+balanceSelectCols+` FROM balances WHERE wallet = $1 ORDER BY token_symbol`, wallet)
	if err != nil {
		return nil, fmt.Errorf("postgres: list balances %s: %w", wallet, err)
	}
	defer rows.Close()

	var out []domain.BalanceRow
	for rows.Next() {
		var row domain.BalanceRow
		if err := rows.Scan(&row.Wallet, &row.AgentID, &row.TokenAddress, &row.TokenSymbol, &row.Amount, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan balance: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list balances %s: %w", wallet, err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.BalanceStore = (*BalanceStore)(nil)
