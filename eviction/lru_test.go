package eviction_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rotiminicol/ijeuwa/eviction"
)

func TestLRU_EvictsLeastRecent(t *testing.T) {
	p := eviction.NewLRU()
	p.OnPut("profile:alice")
	p.OnPut("profile:bob")
	p.OnPut("profile:carol")

	// alice becomes the most recent
	p.OnGet("profile:alice")

	assert.Equal(t, "profile:bob", p.Evict())
	assert.Equal(t, "profile:carol", p.Evict())
	assert.Equal(t, "profile:alice", p.Evict())
	assert.Equal(t, "", p.Evict())
}

func TestLRU_RemoveStopsTracking(t *testing.T) {
	p := eviction.NewLRU()
	p.OnPut("notifications")
	p.OnPut("profile:alice")
	p.Remove("notifications")

	assert.Equal(t, 1, p.Len())
	assert.Equal(t, "profile:alice", p.Evict())

	// idempotent
	p.Remove("missing")
	assert.Equal(t, 0, p.Len())
}

func TestLRU_DoublePutKeepsOneSlot(t *testing.T) {
	p := eviction.NewLRU()
	p.OnPut("a")
	p.OnPut("b")
	p.OnPut("a")

	assert.Equal(t, 2, p.Len())
	assert.Equal(t, "b", p.Evict())
}
