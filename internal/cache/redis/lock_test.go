package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockKeys(t *testing.T) {
	assert.Equal(t, "position:pos-1", PositionLockKey("pos-1"))
	assert.Equal(t, "balance:wallet-1:sol", BalanceLockKey("wallet-1", "sol"))

	// All locks share the key prefix so they never collide with caches.
	assert.Equal(t, "lock:position:pos-1", lockKey(PositionLockKey("pos-1")))
}
