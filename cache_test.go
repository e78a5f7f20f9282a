package query_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	query "github.com/rotiminicol/ijeuwa"
	"github.com/rotiminicol/ijeuwa/engine"
	"github.com/rotiminicol/ijeuwa/types"
	"github.com/rotiminicol/ijeuwa/writepolicy"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

//
// ================= TEST FETCHERS =================
//

// gatedFetcher blocks every call until its turn is released.
type gatedFetcher struct {
	calls   atomic.Int64
	started chan int64
	mu      sync.Mutex
	gates   map[int64]chan struct{}
	values  map[int64]any
	errs    map[int64]error
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{
		started: make(chan int64, 16),
		gates:   make(map[int64]chan struct{}),
		values:  make(map[int64]any),
		errs:    make(map[int64]error),
	}
}

func (g *gatedFetcher) gate(n int64) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[n]
	if !ok {
		ch = make(chan struct{})
		g.gates[n] = ch
	}
	return ch
}

// answer sets what call n returns once released.
func (g *gatedFetcher) answer(n int64, v any, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values[n] = v
	g.errs[n] = err
}

func (g *gatedFetcher) release(n int64) {
	close(g.gate(n))
}

func (g *gatedFetcher) fetch(ctx context.Context) (any, error) {
	n := g.calls.Add(1)
	g.started <- n
	<-g.gate(n)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.values[n], g.errs[n]
}

func (g *gatedFetcher) waitStarted(t *testing.T, want int64) {
	t.Helper()
	select {
	case n := <-g.started:
		require.Equal(t, want, n)
	case <-time.After(2 * time.Second):
		t.Fatalf("fetch %d never started", want)
	}
}

func constFetcher(calls *atomic.Int64, v any) types.Fetcher {
	return func(ctx context.Context) (any, error) {
		calls.Add(1)
		return v, nil
	}
}

type readResult struct {
	ent types.Entry
	err error
}

func readAsync(c *query.QueryCache, ctx context.Context, key string, f types.Fetcher) <-chan readResult {
	out := make(chan readResult, 1)
	go func() {
		ent, err := c.Read(ctx, key, f)
		out <- readResult{ent, err}
	}()
	return out
}

func newTestCache() (*query.QueryCache, *types.Counters) {
	m := &types.Counters{}
	return query.NewQueryCache(2, 0, engine.NewCacheEngine(nil, m, nil)), m
}

//
// ================= READS =================
//

func TestReadFetchesOnceThenHits(t *testing.T) {
	ctx := context.Background()
	c, m := newTestCache()
	var calls atomic.Int64

	ent, err := c.Read(ctx, "notifications", constFetcher(&calls, []string{"n1"}))
	require.NoError(t, err)
	assert.Equal(t, types.Ready, ent.Status)
	assert.Equal(t, []string{"n1"}, ent.Value)

	ent, err = c.Read(ctx, "notifications", constFetcher(&calls, []string{"other"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, ent.Value)

	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, int64(1), m.Hits.Load())
	assert.Equal(t, int64(1), m.Fetches.Load())
}

func TestConcurrentReadsDeduplicate(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache()
	g := newGatedFetcher()
	g.answer(1, "value", nil)

	first := readAsync(c, ctx, "notifications", g.fetch)
	g.waitStarted(t, 1)
	assert.Equal(t, types.Loading, c.Peek("notifications").Status)

	others := make([]<-chan readResult, 5)
	for i := range others {
		others[i] = readAsync(c, ctx, "notifications", g.fetch)
	}

	g.release(1)

	r := <-first
	require.NoError(t, r.err)
	assert.Equal(t, "value", r.ent.Value)
	for _, ch := range others {
		r := <-ch
		require.NoError(t, r.err)
		assert.Equal(t, "value", r.ent.Value)
	}
	assert.Equal(t, int64(1), g.calls.Load())
}

func TestInvalidateDuringFlightLeavesEntryStale(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache()
	g := newGatedFetcher()
	g.answer(1, "v1", nil)
	g.answer(2, "v2", nil)

	pending := readAsync(c, ctx, "notifications", g.fetch)
	g.waitStarted(t, 1)

	c.Invalidate("notifications")
	g.release(1)

	r := <-pending
	require.NoError(t, r.err)
	assert.Equal(t, "v1", r.ent.Value)
	assert.Equal(t, types.Ready, r.ent.Status)
	assert.True(t, r.ent.Invalidated(), "landing must not mask the invalidation")
	assert.True(t, c.Peek("notifications").Invalidated())

	// next read issues a new fetch
	next := readAsync(c, ctx, "notifications", g.fetch)
	g.waitStarted(t, 2)
	g.release(2)

	r = <-next
	require.NoError(t, r.err)
	assert.Equal(t, "v2", r.ent.Value)
	assert.False(t, r.ent.Invalidated())
	assert.Equal(t, int64(2), g.calls.Load())
}

func TestReadAfterInvalidateDoesNotJoinOlderFlight(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache()
	g := newGatedFetcher()
	g.answer(1, "old", nil)
	g.answer(2, "new", nil)

	older := readAsync(c, ctx, "notifications", g.fetch)
	g.waitStarted(t, 1)

	c.Invalidate("notifications")

	newer := readAsync(c, ctx, "notifications", g.fetch)
	g.waitStarted(t, 2)

	// the newer fetch lands first
	g.release(2)
	r := <-newer
	require.NoError(t, r.err)
	assert.Equal(t, "new", r.ent.Value)

	// the older landing is superseded
	g.release(1)
	<-older

	ent := c.Peek("notifications")
	assert.Equal(t, "new", ent.Value)
	assert.Equal(t, types.Ready, ent.Status)
	assert.False(t, ent.Invalidated())
}

func TestOlderLandingFirstKeepsLoadingUntilNewest(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache()
	g := newGatedFetcher()
	g.answer(1, "old", nil)
	g.answer(2, "new", nil)

	older := readAsync(c, ctx, "notifications", g.fetch)
	g.waitStarted(t, 1)
	c.Invalidate("notifications")
	newer := readAsync(c, ctx, "notifications", g.fetch)
	g.waitStarted(t, 2)

	g.release(1)
	<-older
	ent := c.Peek("notifications")
	assert.Equal(t, "old", ent.Value)
	assert.Equal(t, types.Loading, ent.Status)
	assert.True(t, ent.Invalidated())

	g.release(2)
	<-newer
	ent = c.Peek("notifications")
	assert.Equal(t, "new", ent.Value)
	assert.Equal(t, types.Ready, ent.Status)
	assert.False(t, ent.Invalidated())
}

func TestFailedReadKeepsPreviousValue(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache()
	boom := errors.New("server unreachable")

	_, err := c.Read(ctx, "notifications", func(context.Context) (any, error) { return "v1", nil })
	require.NoError(t, err)

	c.Invalidate("notifications")
	ent, err := c.Read(ctx, "notifications", func(context.Context) (any, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	assert.Equal(t, types.Failed, ent.Status)
	assert.True(t, ent.HasValue)
	assert.Equal(t, "v1", ent.Value)
	assert.ErrorIs(t, ent.Err, boom)
	assert.False(t, ent.Trusted())
}

func TestFailedFirstReadIsUnset(t *testing.T) {
	c, _ := newTestCache()
	ent, err := c.Read(context.Background(), "notifications", func(context.Context) (any, error) {
		return nil, errors.New("nope")
	})
	require.Error(t, err)
	assert.Equal(t, types.Failed, ent.Status)
	assert.False(t, ent.HasValue)
}

func TestCanceledReadStillStoresResult(t *testing.T) {
	c, _ := newTestCache()
	g := newGatedFetcher()
	g.answer(1, "late", nil)

	ctx, cancel := context.WithCancel(context.Background())
	pending := readAsync(c, ctx, "notifications", g.fetch)
	g.waitStarted(t, 1)

	cancel()
	r := <-pending
	require.ErrorIs(t, r.err, context.Canceled)
	assert.Equal(t, types.Loading, r.ent.Status)

	g.release(1)
	require.Eventually(t, func() bool {
		return c.Peek("notifications").Trusted()
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "late", c.Peek("notifications").Value)
}

func TestReadWithoutFetcher(t *testing.T) {
	c, _ := newTestCache()
	ent, err := c.Read(context.Background(), "notifications", nil)
	assert.ErrorIs(t, err, query.ErrNoFetcher)
	assert.Equal(t, types.Idle, ent.Status)

	c.Set("notifications", 1)
	ent, err = c.Read(context.Background(), "notifications", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, ent.Value)
}

func TestInvalidatePrefix(t *testing.T) {
	c, _ := newTestCache()
	c.Set("profile:alice", "a")
	c.Set("profile:bob", "b")
	c.Set("notifications", "n")

	c.InvalidatePrefix("profile:")

	assert.True(t, c.Peek("profile:alice").Invalidated())
	assert.True(t, c.Peek("profile:bob").Invalidated())
	assert.False(t, c.Peek("notifications").Invalidated())
}

//
// ================= MUTATIONS =================
//

func removeAll(any, bool) any { return []string{} }

func TestOptimisticWriteRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	m := &types.Counters{}
	c := query.NewQueryCache(2, 0, engine.NewCacheEngine(nil, m, nil))
	c.Set("notifications", []string{"n1", "n2"})
	before := c.Peek("notifications")

	refused := errors.New("refused")
	_, err := c.Mutate(ctx, query.Mutation{
		Name:       "clear",
		Targets:    []string{"notifications"},
		Optimistic: map[string]types.Updater{"notifications": removeAll},
		Execute: func(context.Context) (any, error) {
			// the optimistic value is visible while the server works
			assert.Equal(t, []string{}, c.Peek("notifications").Value)
			return nil, refused
		},
	})
	require.ErrorIs(t, err, refused)

	after := c.Peek("notifications")
	assert.Equal(t, []string{"n1", "n2"}, after.Value)
	assert.Equal(t, types.Ready, after.Status)
	assert.Equal(t, before.Generation, after.Generation, "a failed mutation does not invalidate")
	assert.Equal(t, int64(1), m.Rollbacks.Load())
}

func TestRollbackOfNewKeyRestoresUnset(t *testing.T) {
	c, _ := newTestCache()
	snap := c.Write("notifications", removeAll)
	assert.True(t, c.Peek("notifications").HasValue)

	c.Rollback(snap)
	ent := c.Peek("notifications")
	assert.False(t, ent.HasValue)
	assert.Equal(t, types.Idle, ent.Status)
}

func appendN3(cur any, ok bool) any {
	list, _ := cur.([]string)
	return append(append([]string{}, list...), "n3")
}

// overlapping runs A (clear) and B (append) on one key, A's write first, and
// fails them in the given order.
func overlapping(t *testing.T, c *query.QueryCache, firstToFail string) {
	t.Helper()
	ctx := context.Background()
	refused := errors.New("refused")
	aWritten, bWritten := make(chan struct{}), make(chan struct{})
	failA, failB := make(chan struct{}), make(chan struct{})

	mutation := func(name string, update types.Updater, written, fail chan struct{}) query.Mutation {
		return query.Mutation{
			Name:       name,
			Targets:    []string{"notifications"},
			Optimistic: map[string]types.Updater{"notifications": update},
			Execute: func(context.Context) (any, error) {
				close(written)
				<-fail
				return nil, refused
			},
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	aDone, bDone := make(chan struct{}), make(chan struct{})
	go func() {
		defer wg.Done()
		defer close(aDone)
		_, err := c.Mutate(ctx, mutation("A", removeAll, aWritten, failA))
		assert.ErrorIs(t, err, refused)
	}()
	<-aWritten
	go func() {
		defer wg.Done()
		defer close(bDone)
		_, err := c.Mutate(ctx, mutation("B", appendN3, bWritten, failB))
		assert.ErrorIs(t, err, refused)
	}()
	<-bWritten
	assert.Equal(t, []string{"n3"}, c.Peek("notifications").Value)

	if firstToFail == "A" {
		close(failA)
		<-aDone
		close(failB)
	} else {
		close(failB)
		<-bDone
		close(failA)
	}
	wg.Wait()
}

func TestInterleavedRollbacksNeverLeaveRefusedValueTrusted(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache()
	c.Set("notifications", []string{"n1", "n2"})

	overlapping(t, c, "A")

	ent := c.Peek("notifications")
	assert.True(t, ent.Invalidated(), "a rollback under a newer write invalidates")

	var calls atomic.Int64
	ent, err := c.Read(ctx, "notifications", constFetcher(&calls, []string{"n1", "n2"}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, []string{"n1", "n2"}, ent.Value)
	assert.True(t, ent.Trusted())
}

func TestInterleavedRollbacksInReverseOrderRestore(t *testing.T) {
	c, _ := newTestCache()
	c.Set("notifications", []string{"n1", "n2"})
	before := c.Peek("notifications")

	overlapping(t, c, "B")

	ent := c.Peek("notifications")
	assert.Equal(t, []string{"n1", "n2"}, ent.Value)
	assert.Equal(t, types.Ready, ent.Status)
	assert.Equal(t, before.Generation, ent.Generation)
}

func TestRollbackKeepsNewerServerData(t *testing.T) {
	c, _ := newTestCache()
	c.Set("notifications", []string{"n1"})

	snap := c.Write("notifications", removeAll)
	c.Set("notifications", []string{"n9"})
	c.Rollback(snap)

	assert.Equal(t, []string{"n9"}, c.Peek("notifications").Value)
}

func TestMutateHardClearThenRefetch(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache()
	var calls atomic.Int64
	c.Set("notifications", []string{"n1", "n2"})

	_, err := c.Mutate(ctx, query.Mutation{
		Name:    "clear",
		Targets: []string{"notifications"},
		Execute: func(context.Context) (any, error) { return map[string]string{"message": "ok"}, nil },
		Policy:  writepolicy.HardClear{Empty: func() any { return []string{} }},
	})
	require.NoError(t, err)

	ent := c.Peek("notifications")
	assert.Equal(t, []string{}, ent.Value)
	assert.True(t, ent.Invalidated())

	ent, err = c.Read(ctx, "notifications", constFetcher(&calls, []string{}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, []string{}, ent.Value)
	assert.False(t, ent.Invalidated())
}

func TestMutateInvalidatesOptimisticNonTargets(t *testing.T) {
	c, _ := newTestCache()
	c.Set("profile:alice", "a")

	_, err := c.Mutate(context.Background(), query.Mutation{
		Optimistic: map[string]types.Updater{"profile:alice": func(any, bool) any { return "a2" }},
		Execute:    func(context.Context) (any, error) { return nil, nil },
	})
	require.NoError(t, err)
	assert.True(t, c.Peek("profile:alice").Invalidated())
}

func TestMutateWithoutExecute(t *testing.T) {
	c, _ := newTestCache()
	_, err := c.Mutate(context.Background(), query.Mutation{})
	assert.ErrorIs(t, err, query.ErrNoExecute)
}

//
// ================= OBSERVERS & EVICTION =================
//

func TestMountDeliversVersionsAndUnmountEvicts(t *testing.T) {
	c, _ := newTestCache()
	sub := c.Mount("notifications")

	c.Set("notifications", []string{"n1"})
	select {
	case v := <-sub.Updates():
		assert.Equal(t, c.Peek("notifications").Version, v)
	case <-time.After(time.Second):
		t.Fatal("no update delivered")
	}

	sub.Close()
	sub.Close()

	_, open := <-sub.Updates()
	assert.False(t, open)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, types.Idle, c.Peek("notifications").Status)
}

func TestUnmountKeepsEntryWhileOthersMounted(t *testing.T) {
	c, _ := newTestCache()
	a := c.Mount("notifications")
	b := c.Mount("notifications")
	c.Set("notifications", 1)

	a.Close()
	assert.Equal(t, 1, c.Len())

	b.Close()
	assert.Equal(t, 0, c.Len())
}

func TestVersionsAreMonotonicAcrossRemoval(t *testing.T) {
	c, _ := newTestCache()
	c.Set("k", 1)
	v1 := c.Peek("k").Version
	c.Remove("k")
	c.Set("k", 2)
	assert.Greater(t, c.Peek("k").Version, v1)
}

func TestCapacityEvictsOnlyUnmounted(t *testing.T) {
	c := query.NewQueryCache(1, 2, nil)
	c.Set("a", 1)
	c.Set("b", 2)
	sub := c.Mount("a")
	defer sub.Close()

	c.Set("c", 3)

	assert.Equal(t, types.Idle, c.Peek("b").Status)
	assert.Equal(t, 1, c.Peek("a").Value)
	assert.Equal(t, 3, c.Peek("c").Value)
}

func TestClearDiscardsInFlightLanding(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache()
	g := newGatedFetcher()
	g.answer(1, "previous user", nil)

	pending := readAsync(c, ctx, "notifications", g.fetch)
	g.waitStarted(t, 1)

	c.Clear()
	g.release(1)

	r := <-pending
	require.NoError(t, r.err)
	assert.Equal(t, "previous user", r.ent.Value)
	assert.Equal(t, types.Idle, c.Peek("notifications").Status)
	assert.Equal(t, 0, c.Len())
}

//
// ================= TYPED VIEW =================
//

func TestReadAs(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache()

	res, err := query.ReadAs(ctx, c, "notifications", func(context.Context) ([]types.Notification, error) {
		return []types.Notification{{ID: "n1", Type: types.NotificationLike}}, nil
	})
	require.NoError(t, err)
	require.True(t, res.Ready())
	assert.Len(t, res.Data, 1)

	mismatch := query.PeekAs[string](c, "notifications")
	assert.False(t, mismatch.HasData)
	assert.ErrorIs(t, mismatch.Err, query.ErrTypeMismatch)

	missing := query.PeekAs[[]types.Notification](c, "profile:nobody")
	assert.False(t, missing.Ready())
}
