package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_AllowsUpToBurstThenBlocks(t *testing.T) {
	rl := NewRateLimiter(1, 3) // 1 req/s refill, burst of 3

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("client-a"), "request %d within burst should be allowed", i)
	}
	assert.False(t, rl.Allow("client-a"), "request beyond burst should be rate-limited")
}

func TestRateLimiter_PerKeyIsolation(t *testing.T) {
	rl := NewRateLimiter(1, 1)

	assert.True(t, rl.Allow("client-a"))
	assert.False(t, rl.Allow("client-a"))
	// a different key has its own bucket and is unaffected by client-a's state.
	assert.True(t, rl.Allow("client-b"))
}
