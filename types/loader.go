package types

import "context"

/*
Fetcher is the contract between the query cache and the remote data accessor.

It is called when a read misses:
 1. Cache checks its snapshot → missing, invalidated or failed
 2. Cache calls the Fetcher (at most once per key at a time)
 3. Fetcher talks to the HTTP API
 4. Cache publishes the result and returns it

The context handed to a Fetcher is detached from the caller's cancellation:
a reader navigating away does not abort the network call.
*/
type Fetcher func(ctx context.Context) (any, error)

// Updater computes a new value from the current one for optimistic writes.
// ok is false when the key has no value yet.
type Updater func(current any, ok bool) any
