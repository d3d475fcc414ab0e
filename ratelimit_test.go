package goframed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIPRateLimiter(t *testing.T) {
	t.Run("burst admits then throttles", func(t *testing.T) {
		limiter := newIPRateLimiter(1, 2)

		assert.True(t, limiter.allow("10.0.0.1"))
		assert.True(t, limiter.allow("10.0.0.1"))
		assert.False(t, limiter.allow("10.0.0.1"))
	})

	t.Run("limits are per ip", func(t *testing.T) {
		limiter := newIPRateLimiter(1, 1)

		assert.True(t, limiter.allow("10.0.0.1"))
		assert.False(t, limiter.allow("10.0.0.1"))
		assert.True(t, limiter.allow("10.0.0.2"))
	})

	t.Run("burst floor is one", func(t *testing.T) {
		limiter := newIPRateLimiter(1, 0)
		assert.True(t, limiter.allow("10.0.0.1"))
	})
}
