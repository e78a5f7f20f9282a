package shard

import (
	"hash/fnv"
	"sync"

	"github.com/rotiminicol/ijeuwa/eviction"
)

/*
Shard is an independent slice of the query cache keyspace.

Each shard has:
- a copy-on-write Store of published entry snapshots (lock-free reads)
- a Mu serializing every state transition of its keys
- an optional eviction Policy bounded by Capacity

A state transition is always: lock Mu, read the current snapshot, build a
new one, Put it, unlock. Readers that skip the lock (Peek) see either the
snapshot before or after, never a mix.
*/
type Shard struct {
	Store ShardStore

	// Mu protects every write to Store and every call on Eviction.
	Mu sync.Mutex

	// Eviction is nil when Capacity is 0 (unbounded).
	Eviction eviction.Policy
	Capacity int
}

// NewShard builds a shard. capacity 0 disables eviction.
func NewShard(capacity int) *Shard {
	s := &Shard{Store: NewCOWStore(), Capacity: capacity}
	if capacity > 0 {
		s.Eviction = eviction.NewLRU()
	}
	return s
}

// Full reports whether admitting one more key needs an eviction first.
func (s *Shard) Full() bool {
	return s.Capacity > 0 && s.Store.Size() >= int64(s.Capacity)
}

// Selector decides which shard owns a key.
type Selector interface {
	Select(string, []*Shard) *Shard
}

// HashSelector spreads keys with FNV-1a. The same key always lands on the same shard.
type HashSelector struct{}

func (HashSelector) Select(key string, shards []*Shard) *Shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return shards[int(h.Sum32()%uint32(len(shards)))]
}
