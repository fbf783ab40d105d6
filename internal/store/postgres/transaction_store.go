package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tokenwave/positiond/internal/domain"
)

// TransactionStore implements domain.TransactionStore using PostgreSQL.
// Inserts that must be atomic with balance deltas go through
// ledger.RecordTransaction instead, which writes inside the caller's unit of
// work.
type TransactionStore struct {
	pool *pgxpool.Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

const transactionSelectCols = `id, agent_id, wallet, type,
	input_token_address, input_token_symbol, input_amount,
	output_token_address, output_token_symbol, output_amount,
	created_at`

// GetByID returns a single transaction.
func (s *TransactionStore) GetByID(ctx context.Context, id string) (domain.Transaction, error) {
	var t domain.Transaction
	var typ string
	err := s.pool.QueryRow(ctx,
		`SELECT `+transactionSelectCols+` FROM transactions WHERE id = $1`, id,
	).Scan(
		&t.ID, &t.AgentID, &t.Wallet, &typ,
		&t.InputTokenAddress, &t.InputTokenSymbol, &t.InputAmount,
		&t.OutputTokenAddress, &t.OutputTokenSymbol, &t.OutputAmount,
		&t.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Transaction{}, domain.ErrNotFound
		}
		return domain.Transaction{}, fmt.Errorf("postgres: get transaction %s: %w", id, err)
	}
	t.Type = domain.TransactionType(typ)
	return t, nil
}

// ListByWallet returns the most recent transactions for a wallet.
func (s *TransactionStore) ListByWallet(ctx context.Context, wallet string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+transactionSelectCols+` FROM transactions
		 WHERE wallet = $1 ORDER BY created_at DESC LIMIT $2`, wallet, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions %s: %w", wallet, err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var typ string
		if err := rows.Scan(
			&t.ID, &t.AgentID, &t.Wallet, &typ,
			&t.InputTokenAddress, &t.InputTokenSymbol, &t.InputAmount,
			&t.OutputTokenAddress, &t.OutputTokenSymbol, &t.OutputAmount,
			&t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan transaction: %w", err)
		}
		t.Type = domain.TransactionType(typ)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list transactions %s: %w", wallet, err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.TransactionStore = (*TransactionStore)(nil)
