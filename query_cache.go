package query

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rotiminicol/ijeuwa/engine"
	"github.com/rotiminicol/ijeuwa/shard"
	"github.com/rotiminicol/ijeuwa/types"
)

// ErrNoFetcher is returned by Read when no fetcher is given and the key is not fresh.
var ErrNoFetcher = errors.New("query: no fetcher")

/*
QueryCache is the keyed store of fetched server state.

It connects:
- shards (storage + per-key locking)
- the engine (freshness rules, metrics, logging)
- singleflight (one outstanding fetch per key)
- subscriptions (observers notified with version numbers)

ORDERING:
---------
Every fetch takes a sequence number from seq when it starts and remembers
the key's generation at that moment. Invalidate bumps the generation. When
the fetch lands, its value is applied only if no newer fetch already landed,
and the entry is left invalidated if the generation moved on meanwhile.
*/
type QueryCache struct {
	shards   []*shard.Shard
	engine   *engine.CacheEngine
	selector shard.Selector

	// sf de-duplicates concurrent fetches of the same key. Invalidate forgets the
	// key so a read after an invalidation never joins the older flight.
	sf singleflight.Group

	// seq orders fetches, confirmed writes and key incarnations.
	seq atomic.Uint64

	// ver stamps every published snapshot. Monotonic across removals.
	ver atomic.Uint64

	// subs is guarded by subsMu. Lock order: shard.Mu before subsMu.
	subsMu sync.Mutex
	subs   map[string]map[*Subscription]struct{}
}

// NewQueryCache builds a cache. capacity 0 means unbounded; otherwise it is
// split across shards and only applies to keys without a mounted observer.
func NewQueryCache(shards int, capacity int, eng *engine.CacheEngine) *QueryCache {
	if shards < 1 {
		shards = 1
	}
	if eng == nil {
		eng = engine.NewCacheEngine(nil, nil, nil)
	}

	perShard := 0
	if capacity > 0 {
		perShard = capacity / shards
		if perShard < 1 {
			perShard = 1
		}
	}

	s := make([]*shard.Shard, shards)
	for i := range s {
		s[i] = shard.NewShard(perShard)
	}

	return &QueryCache{
		shards:   s,
		engine:   eng,
		selector: shard.HashSelector{},
		subs:     make(map[string]map[*Subscription]struct{}),
	}
}

/*
Read returns the entry for key, fetching it when needed.

BEHAVIOR:
---------
1. Fresh Ready entry → returned as is (hit)
2. Otherwise → start or join the single in-flight fetch for key, publish
   Loading, and wait for it to land as Ready or Failed

A failed fetch keeps the previous value on the entry next to the error.

CANCELLATION:
-------------
If ctx is done before the fetch lands, Read returns the current snapshot and
ctx.Err(). The fetch keeps running on a detached context and its result is
still stored for the next reader.
*/
func (c *QueryCache) Read(ctx context.Context, key string, fetch types.Fetcher) (types.Entry, error) {
	sh := c.selector.Select(key, c.shards)

	if ent, ok := sh.Store.Get(key); ok && c.engine.IsFresh(ent) {
		c.engine.Metrics.Hit()
		c.touch(sh, key)
		return ent, nil
	}
	if fetch == nil {
		return c.Peek(key), ErrNoFetcher
	}

	c.engine.Metrics.Miss()

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(key, func() (any, error) {
		return c.load(fetchCtx, sh, key, fetch)
	})

	select {
	case res := <-ch:
		ent, _ := res.Val.(types.Entry)
		return ent, res.Err
	case <-ctx.Done():
		return c.Peek(key), ctx.Err()
	}
}

// Peek returns the current snapshot without fetching. Missing keys read as Idle.
func (c *QueryCache) Peek(key string) types.Entry {
	sh := c.selector.Select(key, c.shards)
	if ent, ok := sh.Store.Get(key); ok {
		return ent
	}
	return types.Entry{Key: key, Status: types.Idle}
}

// load runs inside the singleflight call for key.
func (c *QueryCache) load(ctx context.Context, sh *shard.Shard, key string, fetch types.Fetcher) (any, error) {
	sh.Mu.Lock()
	ent, ok := sh.Store.Get(key)
	if ok && c.engine.IsFresh(ent) {
		// landed between the caller's check and this flight
		sh.Mu.Unlock()
		return ent, nil
	}
	if !ok {
		c.admit(sh, key)
		ent = c.newEntry(key)
	}
	seq := c.seq.Add(1)
	gen := ent.Generation
	ent.Status = types.Loading
	ent.PendingSeq = seq
	c.publish(sh, ent)
	sh.Mu.Unlock()

	c.engine.Metrics.Fetch()
	val, err := fetch(ctx)

	sh.Mu.Lock()
	defer sh.Mu.Unlock()
	return c.land(sh, key, seq, gen, val, err)
}

// land applies a fetch result. Caller holds sh.Mu.
func (c *QueryCache) land(sh *shard.Shard, key string, seq, gen uint64, val any, err error) (types.Entry, error) {
	now := c.engine.Now()
	log := c.engine.Logger.With(zap.String("key", key), zap.Uint64("seq", seq))

	cur, ok := sh.Store.Get(key)
	if !ok || seq < cur.Born {
		// removed or cleared while in flight: waiting callers get the result, the cache does not
		log.Debug("fetch landed for a removed entry")
		orphan := types.Entry{
			Key:             key,
			Status:          types.Ready,
			Value:           val,
			HasValue:        err == nil,
			Err:             err,
			Generation:      gen,
			ValueGeneration: gen,
			Seq:             seq,
			FetchedAt:       now,
			UpdatedAt:       now,
		}
		if err != nil {
			orphan.Status = types.Failed
			orphan.Value = nil
		}
		return orphan, err
	}

	if seq < cur.Seq {
		log.Debug("fetch superseded by newer data", zap.Uint64("current_seq", cur.Seq))
		return cur, err
	}

	settled := seq >= cur.PendingSeq
	if err != nil {
		cur.Err = err
		if settled {
			cur.Status = types.Failed
		}
		log.Debug("fetch failed", zap.Bool("has_value", cur.HasValue), zap.Error(err))
		return c.publish(sh, cur), err
	}

	cur.Value = val
	cur.HasValue = true
	cur.Err = nil
	cur.Seq = seq
	cur.ValueGeneration = gen
	cur.FetchedAt = now
	if settled {
		cur.Status = types.Ready
	}
	if gen < cur.Generation {
		log.Debug("fetch landed after invalidation", zap.Uint64("generation", cur.Generation))
	}
	return c.publish(sh, cur), nil
}

/*
Invalidate marks keys stale. It never fetches: the next Read does.

An in-flight fetch for a key keeps running, but it is forgotten by the
de-duplication layer, and its landing leaves the entry invalidated because its
starting generation is now older than the key's.
*/
func (c *QueryCache) Invalidate(keys ...string) {
	for _, key := range keys {
		sh := c.selector.Select(key, c.shards)
		sh.Mu.Lock()
		if ent, ok := sh.Store.Get(key); ok {
			ent.Generation++
			c.publish(sh, ent)
			c.engine.Metrics.Invalidate()
			c.engine.Logger.Debug("invalidated", zap.String("key", key), zap.Uint64("generation", ent.Generation))
		}
		c.sf.Forget(key)
		sh.Mu.Unlock()
	}
}

// InvalidatePrefix invalidates every cached key starting with prefix.
func (c *QueryCache) InvalidatePrefix(prefix string) {
	var keys []string
	for _, sh := range c.shards {
		for _, k := range sh.Store.Keys() {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
	}
	c.Invalidate(keys...)
}

// Set stores a confirmed value as fresh. Fetches that started earlier can no
// longer overwrite it.
func (c *QueryCache) Set(key string, value any) {
	sh := c.selector.Select(key, c.shards)
	sh.Mu.Lock()
	defer sh.Mu.Unlock()

	ent, ok := sh.Store.Get(key)
	if !ok {
		c.admit(sh, key)
		ent = c.newEntry(key)
	}
	ent.Value = value
	ent.HasValue = true
	ent.Err = nil
	ent.Status = types.Ready
	ent.Seq = c.seq.Add(1)
	ent.ValueGeneration = ent.Generation
	ent.FetchedAt = c.engine.Now()
	c.publish(sh, ent)
}

// Remove evicts key. Observers stay subscribed and are notified.
func (c *QueryCache) Remove(key string) {
	sh := c.selector.Select(key, c.shards)
	sh.Mu.Lock()
	defer sh.Mu.Unlock()
	c.drop(sh, key)
}

// Clear evicts every entry, e.g. on logout. Results of fetches started before
// Clear are never stored.
func (c *QueryCache) Clear() {
	for _, sh := range c.shards {
		sh.Mu.Lock()
		for _, k := range sh.Store.Keys() {
			c.drop(sh, k)
		}
		sh.Mu.Unlock()
	}
}

// Len returns the number of cached keys.
func (c *QueryCache) Len() int {
	n := 0
	for _, sh := range c.shards {
		n += int(sh.Store.Size())
	}
	return n
}

func (c *QueryCache) newEntry(key string) types.Entry {
	return types.Entry{Key: key, Status: types.Idle, Born: c.seq.Add(1)}
}

// publish stamps and stores ent, then notifies observers. Caller holds sh.Mu.
func (c *QueryCache) publish(sh *shard.Shard, ent types.Entry) types.Entry {
	ent.Version = c.ver.Add(1)
	ent.UpdatedAt = c.engine.Now()
	sh.Store.Put(ent.Key, ent)
	c.notify(ent.Key, ent.Version)
	return ent
}

// admit makes room for a new key and tracks it when unmounted. Caller holds sh.Mu.
func (c *QueryCache) admit(sh *shard.Shard, key string) {
	if sh.Eviction == nil {
		return
	}
	if sh.Full() {
		if victim := sh.Eviction.Evict(); victim != "" {
			c.engine.Logger.Debug("evicted over capacity", zap.String("key", victim))
			c.drop(sh, victim)
		}
	}
	if !c.mounted(key) {
		sh.Eviction.OnPut(key)
	}
}

// drop deletes key. Caller holds sh.Mu.
func (c *QueryCache) drop(sh *shard.Shard, key string) {
	if _, ok := sh.Store.Get(key); !ok {
		return
	}
	sh.Store.Delete(key)
	if sh.Eviction != nil {
		sh.Eviction.Remove(key)
	}
	c.sf.Forget(key)
	c.engine.Metrics.Eviction()
	c.notify(key, c.ver.Add(1))
}

func (c *QueryCache) touch(sh *shard.Shard, key string) {
	if sh.Eviction == nil {
		return
	}
	sh.Mu.Lock()
	sh.Eviction.OnGet(key)
	sh.Mu.Unlock()
}
