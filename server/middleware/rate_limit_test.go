package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterBurstThenThrottle(t *testing.T) {
	rl := NewRateLimiter()

	for i := 0; i < 20; i++ {
		assert.True(t, rl.Allow("persona/p1"), "request %d should fit in the burst", i)
	}
	assert.False(t, rl.Allow("persona/p1"), "request past the burst should be throttled")
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter()

	for i := 0; i < 20; i++ {
		rl.Allow("persona/p1")
	}
	assert.False(t, rl.Allow("persona/p1"))
	assert.True(t, rl.Allow("persona/p2"), "another persona keeps its own budget")
}
