// ABOUTME: Tests for the webhook redelivery seen-cache
// ABOUTME: Covers duplicate detection, TTL lapse, and size-bound eviction

package dedupe

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeen_NewKey(t *testing.T) {
	c := New(5*time.Minute, 100)

	assert.False(t, c.Seen("wamid.1"), "first sighting is not a duplicate")
	assert.True(t, c.Seen("wamid.1"), "second sighting is a duplicate")
}

func TestSeen_ExpiredKeyIsNew(t *testing.T) {
	c := New(time.Minute, 100)
	now := time.Unix(1700000000, 0)
	c.now = func() time.Time { return now }

	assert.False(t, c.Seen("wamid.1"))

	now = now.Add(2 * time.Minute)
	assert.False(t, c.Seen("wamid.1"), "expired key counts as new again")
	assert.True(t, c.Seen("wamid.1"))
}

func TestSeen_EvictsOldestAtCapacity(t *testing.T) {
	c := New(time.Hour, 3)

	for i := 0; i < 3; i++ {
		assert.False(t, c.Seen(fmt.Sprintf("wamid.%d", i)))
	}
	assert.Equal(t, 3, c.Len())

	// Fourth key evicts wamid.0, the oldest.
	assert.False(t, c.Seen("wamid.3"))
	assert.Equal(t, 3, c.Len())
	assert.False(t, c.Seen("wamid.0"), "evicted key reads as new")
}

func TestSeen_Concurrent(t *testing.T) {
	c := New(time.Hour, 1000)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 200; j++ {
				c.Seen(fmt.Sprintf("wamid.%d", j))
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Equal(t, 200, c.Len())
}
