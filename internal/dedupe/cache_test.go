// ABOUTME: Tests for the event dedupe cache
// ABOUTME: Covers duplicate detection, TTL expiry, and the size bound

package dedupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckAndMark(t *testing.T) {
	c := New(time.Minute, 100)
	defer c.Close()

	assert.False(t, c.CheckAndMark("$event1"), "first sighting is not a duplicate")
	assert.True(t, c.CheckAndMark("$event1"), "second sighting is a duplicate")
	assert.False(t, c.CheckAndMark("$event2"), "different event id is independent")
}

func TestExpiry(t *testing.T) {
	c := New(10*time.Millisecond, 100)
	defer c.Close()

	assert.False(t, c.CheckAndMark("$event"))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, c.CheckAndMark("$event"), "expired entry is treated as unseen")
}

func TestSizeBound(t *testing.T) {
	c := New(time.Minute, 2)
	defer c.Close()

	c.CheckAndMark("$a")
	c.CheckAndMark("$b")
	c.CheckAndMark("$c") // evicts $a

	assert.Equal(t, 2, c.Len())
	assert.False(t, c.CheckAndMark("$a"), "evicted id reads as unseen")
	assert.True(t, c.CheckAndMark("$c"))
}

func TestRemoveExpired(t *testing.T) {
	c := New(10*time.Millisecond, 100)
	defer c.Close()

	c.CheckAndMark("$a")
	c.CheckAndMark("$b")
	time.Sleep(20 * time.Millisecond)
	c.removeExpired()

	assert.Equal(t, 0, c.Len())
}
