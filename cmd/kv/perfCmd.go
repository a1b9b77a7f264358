package kv

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/litemap/cmd/util"
	"github.com/ValentinKolb/litemap/lib/store"
	"github.com/ValentinKolb/litemap/lib/store/lstore"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Measures the throughput of the operation queue of a store",
		Long:    "Runs add, get, update and export operations from several goroutines against one store and reports the latency of each operation.",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfNamespace  = "__perf/"
	perfNumThreads = 10
	perfNumOps     = 1000
	perfKeySpread  = 100
	perfSkip       = make([]string, 0)
)

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. add,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines submitting operations"))
	key = "ops"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("Number of operations per benchmark and goroutine"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfNumThreads = viper.GetInt("threads")
	perfNumOps = viper.GetInt("ops")
	perfKeySpread = viper.GetInt("keys")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfNumThreads < 1 || perfNumOps < 1 || perfKeySpread < 1 {
		return fmt.Errorf("threads, ops and keys must be positive")
	}
	return nil
}

// perfBenchmark is a named operation executed repeatedly by every goroutine
type perfBenchmark struct {
	name string
	op   func(ns *lstore.Namespace, key string) error
}

var perfBenchmarks = []perfBenchmark{
	{"add", func(ns *lstore.Namespace, key string) error {
		ctx, cancel := util.Context()
		defer cancel()
		return ns.AddRecords(ctx, []store.Record{{Key: key, Value: map[string]any{"name": key, "role": "user"}}})
	}},
	{"get", func(ns *lstore.Namespace, key string) error {
		ctx, cancel := util.Context()
		defer cancel()
		_, _, err := ns.GetRecord(ctx, key)
		return err
	}},
	{"update", func(ns *lstore.Namespace, key string) error {
		ctx, cancel := util.Context()
		defer cancel()
		_, err := ns.UpdateRecord(ctx, key, store.Object{"lastLogin": time.Now().Format(time.RFC3339Nano)})
		return err
	}},
	{"keys", func(ns *lstore.Namespace, _ string) error {
		ctx, cancel := util.Context()
		defer cancel()
		_, err := ns.ListKeys(ctx)
		return err
	}},
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for litemap stores")

	conf, err := util.GetConfig()
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(conf.String())
	fmt.Printf("Threads: %d, operations per thread: %d, keys: %d\n", perfNumThreads, perfNumOps, perfKeySpread)
	fmt.Println()

	ns, err := namespace.Manager().Namespace(perfNamespace)
	if err != nil {
		return err
	}

	// cleanup
	defer func() {
		ctx, cancel := util.Context()
		defer cancel()
		if _, err := ns.ClearAll(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "cleanup failed: %v\n", err)
		}
	}()

	registry := metrics.NewRegistry()
	for _, bench := range perfBenchmarks {
		if shouldSkip(bench.name) {
			continue
		}
		timer := metrics.NewTimer()
		failures := metrics.NewCounter()
		if err := registry.Register(bench.name, timer); err != nil {
			return err
		}
		if err := registry.Register(bench.name+".failures", failures); err != nil {
			return err
		}

		fmt.Printf("running %s...\n", bench.name)
		start := time.Now()
		runParallel(func(thread, i int) {
			key := fmt.Sprintf("key-%d", (thread*perfNumOps+i)%perfKeySpread)
			began := time.Now()
			if err := bench.op(ns, key); err != nil {
				failures.Inc(1)
			}
			timer.UpdateSince(began)
		})
		printResult(bench.name, timer, time.Since(start))
	}

	fmt.Println()
	fmt.Println("Detailed report:")
	metrics.WriteOnce(registry, os.Stdout)
	return nil
}

// runParallel calls fn perfNumOps times from each of perfNumThreads goroutines
func runParallel(fn func(thread, i int)) {
	var wg sync.WaitGroup
	for t := 0; t < perfNumThreads; t++ {
		wg.Add(1)
		go func(thread int) {
			defer wg.Done()
			for i := 0; i < perfNumOps; i++ {
				fn(thread, i)
			}
		}(t)
	}
	wg.Wait()
}

func shouldSkip(name string) bool {
	for _, s := range perfSkip {
		if strings.TrimSpace(s) == name {
			return true
		}
	}
	return false
}

func printResult(name string, t metrics.Timer, elapsed time.Duration) {
	ops := float64(t.Count()) / elapsed.Seconds()
	fmt.Printf("  %-8s %10.0f ops/s   mean %-12s p99 %-12s max %s\n",
		name,
		ops,
		time.Duration(t.Mean()),
		time.Duration(t.Percentile(0.99)),
		time.Duration(t.Max()),
	)
}
