package types

import "sync/atomic"

// This file defines how the caches report what they are doing.

/*
Metrics receives one call per cache lifecycle event.
*/
type Metrics interface {

	// Hit is called when a read is served from a fresh Ready entry.
	Hit()

	// Miss is called when a read has to go to the fetcher (or join an in-flight fetch).
	Miss()

	// Fetch is called once per fetch actually issued, after de-duplication.
	Fetch()

	// Invalidate is called once per invalidated key.
	Invalidate()

	// Eviction is called when an entry is removed (unmount, capacity or clear).
	Eviction()

	// Rollback is called when an optimistic write is undone.
	Rollback()
}

/*
NoopMetrics lets every consumer skip nil checks.
*/
type NoopMetrics struct{}

func (NoopMetrics) Hit()        {}
func (NoopMetrics) Miss()       {}
func (NoopMetrics) Fetch()      {}
func (NoopMetrics) Invalidate() {}
func (NoopMetrics) Eviction()   {}
func (NoopMetrics) Rollback()   {}

// Counters is a Metrics that counts events. Safe for concurrent use.
type Counters struct {
	Hits          atomic.Int64
	Misses        atomic.Int64
	Fetches       atomic.Int64
	Invalidations atomic.Int64
	Evictions     atomic.Int64
	Rollbacks     atomic.Int64
}

func (c *Counters) Hit()        { c.Hits.Add(1) }
func (c *Counters) Miss()       { c.Misses.Add(1) }
func (c *Counters) Fetch()      { c.Fetches.Add(1) }
func (c *Counters) Invalidate() { c.Invalidations.Add(1) }
func (c *Counters) Eviction()   { c.Evictions.Add(1) }
func (c *Counters) Rollback()   { c.Rollbacks.Add(1) }
