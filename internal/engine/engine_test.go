package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenwave/positiond/internal/config"
	"github.com/tokenwave/positiond/internal/domain"
	"github.com/tokenwave/positiond/internal/tracker"
)

// memExecutionStore mirrors the executions table uniqueness constraint.
type memExecutionStore struct {
	mu       sync.Mutex
	pairs    map[string]domain.Execution
	terminal map[string]string
}

func newMemExecutionStore() *memExecutionStore {
	return &memExecutionStore{
		pairs:    make(map[string]domain.Execution),
		terminal: make(map[string]string),
	}
}

func (s *memExecutionStore) Create(ctx context.Context, exec domain.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := exec.SignalID + "/" + exec.AgentID
	if _, ok := s.pairs[key]; ok {
		return domain.ErrAlreadyExists
	}
	s.pairs[key] = exec
	return nil
}

func (s *memExecutionStore) GetBySignalAgent(ctx context.Context, signalID, agentID string) (domain.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exec, ok := s.pairs[signalID+"/"+agentID]
	if !ok {
		return domain.Execution{}, domain.ErrNotFound
	}
	return exec, nil
}

func (s *memExecutionStore) UpdateSuccess(ctx context.Context, id, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminal[id] = "EXECUTED:" + transactionID
	return nil
}

func (s *memExecutionStore) UpdateFailure(ctx context.Context, id, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminal[id] = "FAILED:" + errMsg
	return nil
}

func (s *memExecutionStore) UpdateSkipped(ctx context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminal[id] = "SKIPPED:" + reason
	return nil
}

// nilExecutionCache always misses, forcing the store path.
type nilExecutionCache struct{}

func (nilExecutionCache) GetStatus(ctx context.Context, signalID, agentID string) (domain.ExecutionStatus, error) {
	return "", domain.ErrNotFound
}
func (nilExecutionCache) SetStatus(ctx context.Context, signalID, agentID string, status domain.ExecutionStatus) error {
	return nil
}

func signalTestEngine(store domain.ExecutionStore) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Options{
		Tracker: tracker.New(store, nilExecutionCache{}, logger),
		Engine:  config.EngineConfig{LockTTLSeconds: 30, MaxConcurrentEvaluations: 4},
		Logger:  logger,
	})
}

func TestHandleSignalRunsActionOnce(t *testing.T) {
	store := newMemExecutionStore()
	e := signalTestEngine(store)

	calls := 0
	action := func(ctx context.Context) (string, error) {
		calls++
		return "tx-1", nil
	}

	require.NoError(t, e.HandleSignal(context.Background(), "sig-1", "agent-1", action))
	require.NoError(t, e.HandleSignal(context.Background(), "sig-1", "agent-1", action))
	assert.Equal(t, 1, calls)

	exec, err := store.GetBySignalAgent(context.Background(), "sig-1", "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "EXECUTED:tx-1", store.terminal[exec.ID])
}

func TestHandleSignalRecordsFailure(t *testing.T) {
	store := newMemExecutionStore()
	e := signalTestEngine(store)

	boom := errors.New("executor offline")
	err := e.HandleSignal(context.Background(), "sig-1", "agent-1", func(ctx context.Context) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)

	exec, getErr := store.GetBySignalAgent(context.Background(), "sig-1", "agent-1")
	require.NoError(t, getErr)
	assert.Equal(t, "FAILED:executor offline", store.terminal[exec.ID])

	// The pair remains claimed: a failed action is not retried implicitly.
	retryCalls := 0
	require.NoError(t, e.HandleSignal(context.Background(), "sig-1", "agent-1", func(ctx context.Context) (string, error) {
		retryCalls++
		return "tx-2", nil
	}))
	assert.Equal(t, 0, retryCalls)
}

func TestHandleSignalSkipsEmptyTransaction(t *testing.T) {
	store := newMemExecutionStore()
	e := signalTestEngine(store)

	require.NoError(t, e.HandleSignal(context.Background(), "sig-1", "agent-1", func(ctx context.Context) (string, error) {
		return "", nil
	}))

	exec, err := store.GetBySignalAgent(context.Background(), "sig-1", "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "SKIPPED:no action taken", store.terminal[exec.ID])
}
