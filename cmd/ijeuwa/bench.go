package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	query "github.com/rotiminicol/ijeuwa"
	"github.com/rotiminicol/ijeuwa/engine"
	"github.com/rotiminicol/ijeuwa/types"
)

var (
	benchKeys       int
	benchGoroutines int
	benchOps        int
	benchLatency    time.Duration
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Concurrent read benchmark of the query cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBench(cmd)
	},
}

func init() {
	benchCmd.Flags().IntVar(&benchKeys, "keys", 1000, "distinct query keys")
	benchCmd.Flags().IntVar(&benchGoroutines, "goroutines", 200, "concurrent readers")
	benchCmd.Flags().IntVar(&benchOps, "ops", 5000, "reads per goroutine")
	benchCmd.Flags().DurationVar(&benchLatency, "latency", 5*time.Millisecond, "simulated server latency per fetch")
}

func runBench(cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	counters := &types.Counters{}
	eng := engine.NewCacheEngine(nil, counters, logger.Named("query"))
	c := query.NewQueryCache(cfg.Query.Shards, cfg.Query.Capacity, eng)

	var fetches atomic.Int64
	fetch := func(ctx context.Context) (any, error) {
		fetches.Add(1)
		time.Sleep(benchLatency)
		return time.Now(), nil
	}

	fmt.Fprintln(out, "\n================ QUERY CACHE BENCHMARK =================")
	fmt.Fprintln(out, "CONFIG")
	fmt.Fprintln(out, "---------------------------------")
	fmt.Fprintln(out, "Shards       :", cfg.Query.Shards)
	fmt.Fprintln(out, "Capacity     :", cfg.Query.Capacity)
	fmt.Fprintln(out, "Keys         :", benchKeys)
	fmt.Fprintln(out, "Goroutines   :", benchGoroutines)
	fmt.Fprintln(out, "Ops/Goroutine:", benchOps)
	fmt.Fprintln(out, "Latency      :", benchLatency)
	fmt.Fprintln(out, "---------------------------------")

	// every goroutine asks for the same cold key at once
	fmt.Fprintln(out, "Cold start de-duplication...")
	var wg sync.WaitGroup
	wg.Add(benchGoroutines)
	for i := 0; i < benchGoroutines; i++ {
		go func() {
			defer wg.Done()
			_, _ = c.Read(ctx, "notifications", fetch)
		}()
	}
	wg.Wait()
	fmt.Fprintf(out, "%d readers → %d fetch(es)\n", benchGoroutines, fetches.Load())

	fmt.Fprintln(out, "Running concurrency benchmark...")
	start := time.Now()
	wg.Add(benchGoroutines)
	for i := 0; i < benchGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < benchOps; j++ {
				key := fmt.Sprintf("profile:%d", (id+j)%benchKeys)
				_, _ = c.Read(ctx, key, fetch)
				if j%1000 == 999 {
					c.Invalidate(key)
				}
			}
		}(i)
	}
	wg.Wait()

	duration := time.Since(start)
	totalOps := benchGoroutines * benchOps

	fmt.Fprintln(out, "\n================ RESULTS =================")
	fmt.Fprintf(out, "Total Operations : %d\n", totalOps)
	fmt.Fprintf(out, "Total Time       : %v\n", duration)
	fmt.Fprintf(out, "Throughput       : %.2f ops/sec\n", float64(totalOps)/duration.Seconds())
	fmt.Fprintf(out, "Fetches          : %d\n", fetches.Load())
	fmt.Fprintf(out, "Hits / Misses    : %d / %d\n", counters.Hits.Load(), counters.Misses.Load())
	fmt.Fprintf(out, "Invalidations    : %d\n", counters.Invalidations.Load())
	fmt.Fprintf(out, "Evictions        : %d\n", counters.Evictions.Load())
	fmt.Fprintln(out, "=========================================")
	return nil
}
