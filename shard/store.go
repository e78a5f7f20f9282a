package shard

import (
	"sync/atomic"

	"github.com/rotiminicol/ijeuwa/types"
)

// ShardStore holds published entry snapshots by key.
type ShardStore interface {
	Get(string) (types.Entry, bool)
	Put(string, types.Entry)
	Delete(string)
	Keys() []string
	Size() int64
}

/*
cowStore is a copy-on-write ShardStore.

Readers load the current map and never lock. Writers, already serialized by
the shard mutex, copy the map, change the copy and swap it in atomically.
Entries are stored by value so nothing a reader holds can change under it.
*/
type cowStore struct {
	data atomic.Value // map[string]types.Entry
	size atomic.Int64
}

func NewCOWStore() ShardStore {
	s := &cowStore{}
	s.data.Store(make(map[string]types.Entry))
	return s
}

func (s *cowStore) load() map[string]types.Entry {
	return s.data.Load().(map[string]types.Entry)
}

func (s *cowStore) Get(key string) (types.Entry, bool) {
	ent, ok := s.load()[key]
	return ent, ok
}

func (s *cowStore) Put(key string, ent types.Entry) {
	old := s.load()
	n := make(map[string]types.Entry, len(old)+1)
	for k, v := range old {
		n[k] = v
	}
	n[key] = ent
	s.data.Store(n)
	s.size.Store(int64(len(n)))
}

func (s *cowStore) Delete(key string) {
	old := s.load()
	if _, ok := old[key]; !ok {
		return
	}
	n := make(map[string]types.Entry, len(old))
	for k, v := range old {
		if k != key {
			n[k] = v
		}
	}
	s.data.Store(n)
	s.size.Store(int64(len(n)))
}

func (s *cowStore) Keys() []string {
	m := s.load()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func (s *cowStore) Size() int64 {
	return s.size.Load()
}
