// ABOUTME: Tests for the fixed-window rate limiter
// ABOUTME: Uses an injected clock so window expiry needs no sleeping

package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// newTestLimiter returns a limiter with a controllable clock.
func newTestLimiter(allowed int, interval time.Duration) (*Limiter, *time.Time) {
	l := New(allowed, interval)
	current := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }
	return l, &current
}

func TestLimiter_FifthCallLimited(t *testing.T) {
	l, _ := newTestLimiter(3, 90*time.Second)
	defer l.Close()

	for i := 0; i < 4; i++ {
		assert.False(t, l.CheckAndRecord("user"), "call %d should not be limited", i+1)
	}
	assert.True(t, l.CheckAndRecord("user"), "5th call within the interval must be limited")
}

func TestLimiter_ResetAfterInterval(t *testing.T) {
	l, clock := newTestLimiter(3, 90*time.Second)
	defer l.Close()

	for i := 0; i < 4; i++ {
		l.CheckAndRecord("user")
	}
	assert.True(t, l.CheckAndRecord("user"))

	// After the interval elapses the window resets and the count restarts at 1.
	*clock = clock.Add(91 * time.Second)
	assert.False(t, l.CheckAndRecord("user"))

	// A fresh window: three more calls pass before limiting kicks in again.
	assert.False(t, l.CheckAndRecord("user"))
	assert.False(t, l.CheckAndRecord("user"))
	assert.False(t, l.CheckAndRecord("user"))
	assert.True(t, l.CheckAndRecord("user"))
}

func TestLimiter_LimitedCallDoesNotMutate(t *testing.T) {
	l, clock := newTestLimiter(1, time.Minute)
	defer l.Close()

	l.CheckAndRecord("user")
	l.CheckAndRecord("user")
	// Limited calls must not extend the window.
	assert.True(t, l.CheckAndRecord("user"))
	assert.True(t, l.CheckAndRecord("user"))

	*clock = clock.Add(61 * time.Second)
	assert.False(t, l.CheckAndRecord("user"))
}

func TestLimiter_IdentitiesIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)
	defer l.Close()

	l.CheckAndRecord("alice")
	l.CheckAndRecord("alice")
	assert.True(t, l.CheckAndRecord("alice"))

	// Bob has his own window.
	assert.False(t, l.CheckAndRecord("bob"))
}

func TestLimiter_LazyCreation(t *testing.T) {
	l, _ := newTestLimiter(3, time.Minute)
	defer l.Close()

	assert.Equal(t, 0, l.Len())
	l.CheckAndRecord("user")
	assert.Equal(t, 1, l.Len())
}

func TestLimiter_SweepRemovesStale(t *testing.T) {
	l, clock := newTestLimiter(3, time.Second)
	defer l.Close()

	l.CheckAndRecord("old-user")
	*clock = clock.Add(time.Hour)
	l.CheckAndRecord("new-user")

	l.removeStale()
	assert.Equal(t, 1, l.Len())
	assert.False(t, l.CheckAndRecord("old-user"), "swept identity starts a fresh window")
}
