package types

import "time"

// Status is the lifecycle tag shared by cache entries and the session.
type Status int

const (
	// Idle means nothing has been requested yet.
	Idle Status = iota
	// Loading means a fetch is in flight.
	Loading
	// Ready means the last fetch succeeded.
	Ready
	// Failed means the last fetch returned an error.
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

/*
Entry is an immutable snapshot of one cached key.

The cache never mutates a published Entry. Every change builds a new
value and swaps it in, so a reader holding an Entry always sees a
consistent state.

STALENESS:
----------
Generation is bumped on every invalidation of the key.
ValueGeneration is the generation that was current when the fetch
that produced Value STARTED. If an invalidation happened while that
fetch was in flight, Generation > ValueGeneration and the entry is
invalidated even though the value just landed.
*/
type Entry struct {
	Key string

	// Value is only meaningful when HasValue is true. Unset values are never rendered.
	Value    any
	HasValue bool

	Status Status

	// Err is the error of the last failed fetch. A Failed entry may still carry
	// the previous value (stale-but-available).
	Err error

	Generation      uint64
	ValueGeneration uint64

	// Seq is the fetch sequence number that produced Value. A landing with a
	// lower Seq than the current one is dropped.
	Seq uint64

	// PendingSeq is the sequence number of the most recently started fetch.
	// While a landing's Seq is below it, a newer fetch is still in flight.
	PendingSeq uint64

	// Born is the sequence number at which this incarnation of the key was
	// created. Fetches started before it (e.g. before a Clear) are discarded.
	Born uint64

	// WriteSeq stamps the latest optimistic write. Zero when none happened.
	WriteSeq uint64

	// Version increases on every published change and drives observers.
	Version uint64

	FetchedAt time.Time // zero => never fetched
	UpdatedAt time.Time
}

// Invalidated reports whether an invalidation happened after the value's fetch started.
func (e Entry) Invalidated() bool {
	return e.Generation > e.ValueGeneration
}

// Trusted reports whether Value may be consumed as current data.
func (e Entry) Trusted() bool {
	return e.Status == Ready && e.HasValue
}
