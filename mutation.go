package query

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/rotiminicol/ijeuwa/types"
	"github.com/rotiminicol/ijeuwa/writepolicy"
)

// ErrNoExecute is returned by Mutate when the mutation has nothing to run.
var ErrNoExecute = errors.New("query: mutation without execute")

/*
Mutation is one server-side change and the cache keys it affects.

It only lives for the duration of Mutate.
*/
type Mutation struct {
	// Name labels the mutation in logs.
	Name string

	// Targets are reconciled by Policy once Execute succeeds.
	Targets []string

	// Optimistic updates are applied before Execute and rolled back if it fails.
	Optimistic map[string]types.Updater

	Execute func(ctx context.Context) (any, error)

	// Policy defaults to writepolicy.Invalidate.
	Policy writepolicy.Policy
}

// Snapshot is the state of a key before an optimistic write.
type Snapshot struct {
	Entry   types.Entry
	Existed bool
	// Token is the WriteSeq stamped by the write that took this snapshot.
	Token uint64
}

/*
Write applies an optimistic update and returns what it replaced.

It must be paired with Invalidate (server confirmed) or Rollback (server
refused). Mutate does that pairing itself.
*/
func (c *QueryCache) Write(key string, update types.Updater) Snapshot {
	sh := c.selector.Select(key, c.shards)
	sh.Mu.Lock()
	defer sh.Mu.Unlock()

	cur, ok := sh.Store.Get(key)
	if !ok {
		c.admit(sh, key)
		cur = c.newEntry(key)
	}
	next := cur
	next.WriteSeq = c.seq.Add(1)
	snap := Snapshot{Entry: cur, Existed: ok, Token: next.WriteSeq}

	next.Value = update(cur.Value, cur.HasValue)
	next.HasValue = true
	next.Err = nil
	if next.Status != types.Loading {
		next.Status = types.Ready
	}
	c.publish(sh, next)
	return snap
}

/*
Rollback restores the value recorded in s.

If server data landed for the key after the write (a fetch or a confirmed
Set), that data is newer than both and is kept. Invalidations that happened
since the write are kept as well.

If another optimistic write was layered on top, neither snapshot describes
server state any more: the key is invalidated instead and the next read
refetches.
*/
func (c *QueryCache) Rollback(s Snapshot) {
	key := s.Entry.Key
	sh := c.selector.Select(key, c.shards)
	sh.Mu.Lock()
	defer sh.Mu.Unlock()

	cur, ok := sh.Store.Get(key)
	if !ok || cur.Born != s.Entry.Born || cur.Seq != s.Entry.Seq {
		return
	}
	c.engine.Metrics.Rollback()

	if cur.WriteSeq != s.Token {
		cur.Generation++
		c.publish(sh, cur)
		c.engine.Metrics.Invalidate()
		c.sf.Forget(key)
		c.engine.Logger.Debug("rollback under a newer write, invalidating",
			zap.String("key", key), zap.Uint64("generation", cur.Generation))
		return
	}

	if !s.Existed {
		// the key had no value before the write
		cur.Value = nil
		cur.HasValue = false
		cur.WriteSeq = s.Entry.WriteSeq
		if cur.Status != types.Loading {
			cur.Status = types.Idle
		}
		c.publish(sh, cur)
		return
	}

	cur.Value = s.Entry.Value
	cur.HasValue = s.Entry.HasValue
	cur.Err = s.Entry.Err
	cur.WriteSeq = s.Entry.WriteSeq
	if cur.Status != types.Loading {
		cur.Status = s.Entry.Status
	}
	c.publish(sh, cur)
}

/*
Mutate runs m against the server and reconciles the cache.

 1. Apply every optimistic update
 2. Execute
 3. Failure → roll back the optimistic updates (last first), return the error;
    nothing else in the cache changes
 4. Success → apply the write policy to Targets, and invalidate optimistic keys
    that are not targets so they reconcile with the server too
*/
func (c *QueryCache) Mutate(ctx context.Context, m Mutation) (any, error) {
	if m.Execute == nil {
		return nil, ErrNoExecute
	}
	log := c.engine.Logger.With(zap.String("mutation", m.Name))

	keys := make([]string, 0, len(m.Optimistic))
	for k := range m.Optimistic {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	snaps := make([]Snapshot, 0, len(keys))
	for _, k := range keys {
		snaps = append(snaps, c.Write(k, m.Optimistic[k]))
	}

	res, err := m.Execute(ctx)
	if err != nil {
		for i := len(snaps) - 1; i >= 0; i-- {
			c.Rollback(snaps[i])
		}
		log.Debug("mutation failed", zap.Int("rolled_back", len(snaps)), zap.Error(err))
		return nil, err
	}

	policy := m.Policy
	if policy == nil {
		policy = writepolicy.Invalidate{}
	}
	policy.OnSuccess(c, m.Targets, res)

	var extra []string
	for _, k := range keys {
		if !contains(m.Targets, k) {
			extra = append(extra, k)
		}
	}
	c.Invalidate(extra...)

	log.Debug("mutation applied", zap.Strings("targets", m.Targets))
	return res, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
