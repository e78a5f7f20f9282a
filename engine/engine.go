package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/rotiminicol/ijeuwa/expiration"
	"github.com/rotiminicol/ijeuwa/types"
)

/*
CacheEngine holds the rules of the query cache, not its storage.

It decides:
- whether a snapshot may be served from memory
- what time it is (replaceable in tests)
- where events are reported (metrics, logger)

It does NOT store data, pick shards, lock, or choose eviction victims.
*/
type CacheEngine struct {

	// Staleness adds time-based refetching on top of invalidation. nil means
	// entries stay fresh until invalidated.
	Staleness expiration.Strategy

	Metrics types.Metrics
	Logger  *zap.Logger

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// NewCacheEngine fills in no-op metrics, a no-op logger and the wall clock.
func NewCacheEngine(staleness expiration.Strategy, metrics types.Metrics, logger *zap.Logger) *CacheEngine {
	if metrics == nil {
		metrics = types.NoopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheEngine{
		Staleness: staleness,
		Metrics:   metrics,
		Logger:    logger,
		Now:       time.Now,
	}
}

/*
IsFresh reports whether ent can be returned without a fetch.

All of these must hold:
- Status is Ready and a value is present
- no invalidation happened after the value's fetch started
- the staleness strategy (if any) does not consider it too old
*/
func (e *CacheEngine) IsFresh(ent types.Entry) bool {
	if !ent.Trusted() || ent.Invalidated() {
		return false
	}
	return e.Staleness == nil || !e.Staleness.IsStale(ent, e.Now())
}
