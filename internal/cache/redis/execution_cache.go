package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tokenwave/positiond/internal/domain"
)

// executionTTL keeps dedup entries long enough to cover any realistic
// duplicate signal delivery window without growing the keyspace forever.
const executionTTL = 24 * time.Hour

// ExecutionCache implements domain.ExecutionCache. It is the advisory
// fast-path for signal dedup; the uniqueness constraint on the executions
// table is the source of truth, so a flushed or restarted Redis only costs
// latency, never correctness.
type ExecutionCache struct {
	rdb *redis.Client
}

// NewExecutionCache creates an ExecutionCache backed by the given Client.
func NewExecutionCache(c *Client) *ExecutionCache {
	return &ExecutionCache{rdb: c.Underlying()}
}

func executionKey(signalID, agentID string) string {
	return "execution:" + signalID + ":" + agentID
}

// GetStatus returns the cached status for a (signal, agent) pair, or
// domain.ErrNotFound when no entry exists.
func (ec *ExecutionCache) GetStatus(ctx context.Context, signalID, agentID string) (domain.ExecutionStatus, error) {
	val, err := ec.rdb.Get(ctx, executionKey(signalID, agentID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("redis: get execution %s/%s: %w", signalID, agentID, err)
	}
	return domain.ExecutionStatus(val), nil
}

// SetStatus records the status for a (signal, agent) pair.
func (ec *ExecutionCache) SetStatus(ctx context.Context, signalID, agentID string, status domain.ExecutionStatus) error {
	if err := ec.rdb.Set(ctx, executionKey(signalID, agentID), string(status), executionTTL).Err(); err != nil {
		return fmt.Errorf("redis: set execution %s/%s: %w", signalID, agentID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ExecutionCache = (*ExecutionCache)(nil)
