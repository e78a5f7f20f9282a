// This file defines when a Ready entry stops being served from memory.

package expiration

import (
	"time"

	"github.com/rotiminicol/ijeuwa/types"
)

/*
Strategy decides whether a Ready entry is too old to be served without a refetch.

Time-based staleness is opt-in. With no strategy configured an entry stays
fresh until something invalidates it, which is the behavior the client relies
on by default: no polling, no surprise refetches.
*/
type Strategy interface {

	// IsStale reports whether ent must be refetched on the next read.
	IsStale(ent types.Entry, now time.Time) bool
}
