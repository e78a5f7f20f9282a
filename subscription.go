package query

import "sync"

/*
Subscription is a mounted observer of one key.

A page mounts the keys it renders and re-reads when a version arrives on
Updates. Versions are coalesced: a slow observer only sees the latest one.
After Close nothing more is delivered, so results landing for a page that
went away never reach it. Closing the last subscription of a key evicts the
entry.
*/
type Subscription struct {
	key   string
	cache *QueryCache
	ch    chan uint64
	once  sync.Once
}

// Mount subscribes to key. Mounted keys are never evicted for capacity.
func (c *QueryCache) Mount(key string) *Subscription {
	s := &Subscription{key: key, cache: c, ch: make(chan uint64, 1)}

	sh := c.selector.Select(key, c.shards)
	sh.Mu.Lock()
	defer sh.Mu.Unlock()

	c.subsMu.Lock()
	set, ok := c.subs[key]
	if !ok {
		set = make(map[*Subscription]struct{})
		c.subs[key] = set
	}
	set[s] = struct{}{}
	c.subsMu.Unlock()

	if sh.Eviction != nil {
		sh.Eviction.Remove(key)
	}
	return s
}

func (s *Subscription) Key() string {
	return s.key
}

// Updates delivers the version of every change published for the key.
func (s *Subscription) Updates() <-chan uint64 {
	return s.ch
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		c := s.cache

		c.subsMu.Lock()
		set := c.subs[s.key]
		delete(set, s)
		close(s.ch)
		last := len(set) == 0
		c.subsMu.Unlock()

		if !last {
			return
		}

		sh := c.selector.Select(s.key, c.shards)
		sh.Mu.Lock()
		defer sh.Mu.Unlock()

		// re-check under the shard lock: a Mount may have raced in
		c.subsMu.Lock()
		still := len(c.subs[s.key]) == 0
		if still {
			delete(c.subs, s.key)
		}
		c.subsMu.Unlock()

		if still {
			c.drop(sh, s.key)
		}
	})
}

func (c *QueryCache) mounted(key string) bool {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	return len(c.subs[key]) > 0
}

// notify offers version to every observer of key without blocking.
func (c *QueryCache) notify(key string, version uint64) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	for s := range c.subs[key] {
		select {
		case s.ch <- version:
		default:
			// replace the pending version with the newer one
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- version:
			default:
			}
		}
	}
}
