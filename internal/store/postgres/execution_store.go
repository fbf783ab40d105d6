package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tokenwave/positiond/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore using PostgreSQL. The
// UNIQUE(signal_id, agent_id) constraint is what makes signal handling
// at-most-once across concurrent workers and restarts.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates a new ExecutionStore.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

const uniqueViolation = "23505"

// Create inserts a new execution record. It returns domain.ErrAlreadyExists
// when a concurrent creator already inserted a row for the same
// (signal, agent) pair.
func (s *ExecutionStore) Create(ctx context.Context, exec domain.Execution) error {
	const query = `
		INSERT INTO executions (id, signal_id, agent_id, status, transaction_id, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`

	_, err := s.pool.Exec(ctx, query,
		exec.ID, exec.SignalID, exec.AgentID, string(exec.Status),
		exec.TransactionID, exec.Error, exec.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create execution %s: %w", exec.ID, err)
	}
	return nil
}

// GetBySignalAgent returns the execution record for a (signal, agent) pair.
func (s *ExecutionStore) GetBySignalAgent(ctx context.Context, signalID, agentID string) (domain.Execution, error) {
	var e domain.Execution
	var status string
	err := s.pool.QueryRow(ctx, `
		SELECT id, signal_id, agent_id, status, transaction_id, error, created_at, updated_at
		FROM executions WHERE signal_id = $1 AND agent_id = $2`,
		signalID, agentID,
	).Scan(&e.ID, &e.SignalID, &e.AgentID, &status, &e.TransactionID, &e.Error, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Execution{}, domain.ErrNotFound
		}
		return domain.Execution{}, fmt.Errorf("postgres: get execution %s/%s: %w", signalID, agentID, err)
	}
	e.Status = domain.ExecutionStatus(status)
	return e, nil
}

func (s *ExecutionStore) updateTerminal(ctx context.Context, id string, status domain.ExecutionStatus, transactionID, errMsg *string) error {
	const query = `
		UPDATE executions SET
			status         = $2,
			transaction_id = $3,
			error          = $4,
			updated_at     = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, string(status), transactionID, errMsg)
	if err != nil {
		return fmt.Errorf("postgres: update execution %s to %s: %w", id, status, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateSuccess marks the execution EXECUTED with the linked transaction.
func (s *ExecutionStore) UpdateSuccess(ctx context.Context, id, transactionID string) error {
	return s.updateTerminal(ctx, id, domain.ExecutionStatusExecuted, &transactionID, nil)
}

// UpdateFailure marks the execution FAILED with the error text.
func (s *ExecutionStore) UpdateFailure(ctx context.Context, id, errMsg string) error {
	return s.updateTerminal(ctx, id, domain.ExecutionStatusFailed, nil, &errMsg)
}

// UpdateSkipped marks the execution SKIPPED with the reason.
func (s *ExecutionStore) UpdateSkipped(ctx context.Context, id, reason string) error {
	return s.updateTerminal(ctx, id, domain.ExecutionStatusSkipped, nil, &reason)
}

// Compile-time interface check.
var _ domain.ExecutionStore = (*ExecutionStore)(nil)
