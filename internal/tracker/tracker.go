// Package tracker deduplicates signal-to-agent actions so a signal is acted
// on at most once per agent, surviving concurrent delivery and process
// restarts. A Redis fast path avoids most duplicate database writes; the
// uniqueness constraint on the executions table is the source of truth.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tokenwave/positiond/internal/domain"
)

// Tracker records one execution per (signalID, agentID) pair.
type Tracker struct {
	store  domain.ExecutionStore
	cache  domain.ExecutionCache
	logger *slog.Logger
}

// New creates a Tracker.
func New(store domain.ExecutionStore, cache domain.ExecutionCache, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		cache:  cache,
		logger: logger.With(slog.String("component", "execution_tracker")),
	}
}

// CreatePendingExecution claims the (signal, agent) pair. It returns the new
// execution id on success, or domain.ErrAlreadyHandled when the pair was
// already claimed — by an earlier call, or by a concurrent creator that won
// the insert race. Any other persistence error propagates unchanged.
//
// The cache check is advisory only: a stale or flushed cache falls through to
// the insert, where the uniqueness constraint still guarantees at-most-once.
func (t *Tracker) CreatePendingExecution(ctx context.Context, signalID, agentID string) (string, error) {
	if _, err := t.cache.GetStatus(ctx, signalID, agentID); err == nil {
		return "", domain.ErrAlreadyHandled
	} else if !errors.Is(err, domain.ErrNotFound) {
		// Cache outage degrades latency, not correctness.
		t.logger.WarnContext(ctx, "execution cache unavailable, falling through to store",
			slog.String("signal_id", signalID),
			slog.String("agent_id", agentID),
			slog.String("error", err.Error()),
		)
	}

	exec := domain.Execution{
		ID:        uuid.New().String(),
		SignalID:  signalID,
		AgentID:   agentID,
		Status:    domain.ExecutionStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	if err := t.store.Create(ctx, exec); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// A concurrent creator won the race; not an error.
			return "", domain.ErrAlreadyHandled
		}
		return "", fmt.Errorf("execution_tracker: create %s/%s: %w", signalID, agentID, err)
	}

	if err := t.cache.SetStatus(ctx, signalID, agentID, domain.ExecutionStatusPending); err != nil {
		t.logger.WarnContext(ctx, "failed to populate execution cache",
			slog.String("signal_id", signalID),
			slog.String("agent_id", agentID),
			slog.String("error", err.Error()),
		)
	}

	return exec.ID, nil
}

// UpdateExecutionSuccess terminal-updates the record to EXECUTED with the
// linked transaction.
func (t *Tracker) UpdateExecutionSuccess(ctx context.Context, id, transactionID string) error {
	if err := t.store.UpdateSuccess(ctx, id, transactionID); err != nil {
		return fmt.Errorf("execution_tracker: mark executed %s: %w", id, err)
	}
	return nil
}

// UpdateExecutionFailure terminal-updates the record to FAILED with the
// error text.
func (t *Tracker) UpdateExecutionFailure(ctx context.Context, id, errMsg string) error {
	if err := t.store.UpdateFailure(ctx, id, errMsg); err != nil {
		return fmt.Errorf("execution_tracker: mark failed %s: %w", id, err)
	}
	return nil
}

// UpdateExecutionSkipped terminal-updates the record to SKIPPED with the
// reason.
func (t *Tracker) UpdateExecutionSkipped(ctx context.Context, id, reason string) error {
	if err := t.store.UpdateSkipped(ctx, id, reason); err != nil {
		return fmt.Errorf("execution_tracker: mark skipped %s: %w", id, err)
	}
	return nil
}
