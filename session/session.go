// Package session caches the answer to "who is signed in" for one client.
package session

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rotiminicol/ijeuwa/accessor"
	"github.com/rotiminicol/ijeuwa/types"
)

const flightKey = "session"

// Fetcher probes the server for the current identity. (nil, nil) means nobody is signed in.
type Fetcher func(ctx context.Context) (*types.UserIdentity, error)

/*
Cache holds exactly one Session value and replaces it atomically.

STATES:
-------
Idle → Loading → Ready(identity or nil)
             └─→ Failed

Failed is surfaced as is, but it never grants access: callers treat it like
Ready(nil). An Unauthorized probe resolves to Ready(nil), not Failed.

Once Ready or Failed the value is stable until Invalidate or Reset. There is
no background polling.
*/
type Cache struct {
	fetch  Fetcher
	logger *zap.Logger

	cur atomic.Pointer[types.Session]
	ver atomic.Uint64

	// mu guards gen and stale and serializes transitions.
	mu    sync.Mutex
	gen   uint64
	stale bool

	sf singleflight.Group

	subsMu sync.Mutex
	subs   map[chan uint64]struct{}
}

func New(fetch Fetcher, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cache{
		fetch:  fetch,
		logger: logger.Named("session"),
		subs:   make(map[chan uint64]struct{}),
	}
	c.cur.Store(&types.Session{Status: types.Idle})
	return c
}

// Peek returns the published session without side effects.
func (c *Cache) Peek() types.Session {
	return *c.cur.Load()
}

/*
Get returns the published session and, if it is Idle or invalidated, starts
the one fetch that will replace it. It never blocks on the network: while the
first fetch runs the result is Loading; after an invalidation the previous
value stays visible until the new one lands.
*/
func (c *Cache) Get(ctx context.Context) types.Session {
	c.mu.Lock()
	if c.needsFetch() {
		c.start(ctx)
	}
	c.mu.Unlock()
	return c.Peek()
}

// Await is Get followed by waiting for the in-flight fetch, if any. Canceling
// ctx stops the wait, not the fetch.
func (c *Cache) Await(ctx context.Context) (types.Session, error) {
	c.mu.Lock()
	s := c.Peek()
	if !c.needsFetch() && s.Status != types.Loading {
		c.mu.Unlock()
		return s, nil
	}
	ch := c.start(ctx)
	c.mu.Unlock()

	select {
	case <-ch:
		return c.Peek(), nil
	case <-ctx.Done():
		return c.Peek(), ctx.Err()
	}
}

// Invalidate forces the next Get to refetch, e.g. after login or a profile change.
// A fetch already in flight is discarded when it lands.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.stale = true
	c.sf.Forget(flightKey)
	c.logger.Debug("invalidated", zap.Uint64("generation", c.gen))
}

// Reset publishes Ready(nil) immediately: logout, or an Unauthorized answer
// from any call. A fetch already in flight cannot resurrect the identity.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.stale = false
	c.sf.Forget(flightKey)
	c.publish(types.Session{Status: types.Ready})
	c.logger.Debug("reset", zap.Uint64("generation", c.gen))
}

// Subscribe returns a channel of session versions and a cancel func.
func (c *Cache) Subscribe() (<-chan uint64, func()) {
	ch := make(chan uint64, 1)
	c.subsMu.Lock()
	c.subs[ch] = struct{}{}
	c.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subsMu.Lock()
			delete(c.subs, ch)
			close(ch)
			c.subsMu.Unlock()
		})
	}
}

// needsFetch is called with mu held.
func (c *Cache) needsFetch() bool {
	return c.Peek().Status == types.Idle || c.stale
}

// start joins or begins the flight for the current generation. Caller holds mu.
func (c *Cache) start(ctx context.Context) <-chan singleflight.Result {
	if c.needsFetch() {
		c.stale = false
		if c.Peek().Status == types.Idle {
			c.publish(types.Session{Status: types.Loading})
		}
	}
	gen := c.gen
	detached := context.WithoutCancel(ctx)
	return c.sf.DoChan(flightKey, func() (any, error) {
		c.resolve(detached, gen)
		return nil, nil
	})
}

func (c *Cache) resolve(ctx context.Context, gen uint64) {
	id, err := c.fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		c.logger.Debug("discarding probe from an older generation",
			zap.Uint64("probe_generation", gen),
			zap.Uint64("generation", c.gen))
		return
	}

	next := types.Session{Identity: id, Status: types.Ready}
	switch {
	case err == nil:
	case accessor.IsUnauthorized(err):
		next.Identity = nil
		next.Err = err
	default:
		next = types.Session{Status: types.Failed, Err: err}
		c.logger.Warn("session probe failed", zap.Error(err))
	}
	c.publish(next)

	if next.Identity != nil {
		c.logger.Debug("signed in", zap.String("username", next.Identity.Username))
	}
}

// publish swaps in s and notifies subscribers. Caller holds mu.
func (c *Cache) publish(s types.Session) {
	s.Version = c.ver.Add(1)
	c.cur.Store(&s)

	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- s.Version:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s.Version:
			default:
			}
		}
	}
}
