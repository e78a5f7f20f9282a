package expiration

import (
	"time"

	"github.com/rotiminicol/ijeuwa/types"
)

/*
StaleAfter marks an entry stale once TTL has passed since its last successful fetch.

Entries that were never fetched (optimistic writes on a new key) have a zero
FetchedAt and are measured from UpdatedAt instead.
*/
type StaleAfter struct {
	TTL time.Duration
}

func (s StaleAfter) IsStale(ent types.Entry, now time.Time) bool {
	if s.TTL <= 0 {
		return false
	}
	at := ent.FetchedAt
	if at.IsZero() {
		at = ent.UpdatedAt
	}
	return now.Sub(at) > s.TTL
}
