package query_test

import (
	"context"
	"fmt"
	"testing"

	query "github.com/rotiminicol/ijeuwa"
	"github.com/rotiminicol/ijeuwa/engine"
)

func newBenchmarkCache() *query.QueryCache {
	return query.NewQueryCache(8, 0, engine.NewCacheEngine(nil, nil, nil))
}

func benchFetcher(ctx context.Context) (any, error) {
	return []string{"n1", "n2", "n3"}, nil
}

//
// ================= SINGLE THREAD BENCH =================
//

func BenchmarkReadHit(b *testing.B) {
	ctx := context.Background()
	c := newBenchmarkCache()
	c.Set("notifications", []string{"n1"})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Read(ctx, "notifications", benchFetcher)
	}
}

func BenchmarkReadAfterInvalidate(b *testing.B) {
	ctx := context.Background()
	c := newBenchmarkCache()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Invalidate("notifications")
		_, _ = c.Read(ctx, "notifications", benchFetcher)
	}
}

func BenchmarkPeek(b *testing.B) {
	c := newBenchmarkCache()
	for i := 0; i < 64; i++ {
		c.Set(fmt.Sprintf("profile:user-%d", i), i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Peek(fmt.Sprintf("profile:user-%d", i%64))
	}
}

//
// ================= PARALLEL BENCH =================
//

func BenchmarkReadParallel(b *testing.B) {
	ctx := context.Background()
	c := newBenchmarkCache()
	for i := 0; i < 64; i++ {
		c.Set(fmt.Sprintf("profile:user-%d", i), i)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _ = c.Read(ctx, fmt.Sprintf("profile:user-%d", i%64), benchFetcher)
			i++
		}
	})
}

func BenchmarkMountNotify(b *testing.B) {
	c := newBenchmarkCache()
	subs := make([]*query.Subscription, 16)
	for i := range subs {
		subs[i] = c.Mount("notifications")
	}
	defer func() {
		for _, s := range subs {
			s.Close()
		}
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Set("notifications", i)
	}
}
