package writepolicy

/*
A write policy decides how a successful mutation is written back into the
query cache. The cache calls OnSuccess once, after the server confirmed the
mutation, with the mutation's target keys and its decoded result.

A failed mutation never reaches a write policy: the cache rolls back its
optimistic writes and leaves everything else untouched.
*/

// Target is the part of the query cache a policy may touch.
type Target interface {
	// Set stores a confirmed value as fresh.
	Set(key string, value any)

	// Invalidate marks keys stale so the next read refetches.
	Invalidate(keys ...string)
}

// Policy reconciles the cache after a mutation succeeded.
type Policy interface {
	OnSuccess(t Target, keys []string, result any)
}

// Chain runs policies in order.
type Chain []Policy

func (c Chain) OnSuccess(t Target, keys []string, result any) {
	for _, p := range c {
		p.OnSuccess(t, keys, result)
	}
}
