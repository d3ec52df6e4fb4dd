// Command segbench drives an embedded store with a fixed workload and
// prints throughput and latency per phase.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"segdb/pkg/config"
	"segdb/pkg/iterator"
	"segdb/pkg/store"
)

type BenchmarkResult struct {
	TotalOps      int
	SuccessfulOps int
	FailedOps     int
	Duration      time.Duration
	OpsPerSec     float64
	AvgLatency    time.Duration
	MinLatency    time.Duration
	MaxLatency    time.Duration
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the exit code, so deferred cleanup always happens.
func run(args []string) (code int) {
	fs := flag.NewFlagSet("segbench", flag.ContinueOnError)
	dir := fs.String("dir", "", "data directory (a temporary one by default)")
	ops := fs.Int("ops", 100_000, "operations per phase")
	workers := fs.Int("workers", 8, "goroutines for the concurrent phases")
	mode := fs.String("mode", config.ModeMulti, "persistence mode: multi or single")
	threshold := fs.Int64("flush-threshold", 4<<20, "memtable flush threshold in bytes")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *dir == "" {
		tmp, err := os.MkdirTemp("", "segbench-*")
		if err != nil {
			fmt.Printf("ERROR: %v\n", err)
			return 1
		}
		defer os.RemoveAll(tmp)
		*dir = tmp
	}

	cfg := config.Default()
	cfg.Persistence.RootPath = *dir
	cfg.Persistence.Mode = *mode
	cfg.Memtable.FlushThresholdBytes = *threshold

	st, err := store.Open(cfg, store.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		fmt.Printf("ERROR: failed to open store: %v\n", err)
		return 1
	}
	defer func() {
		if err := st.Close(); err != nil {
			fmt.Printf("ERROR: failed to close store: %v\n", err)
			code = 1
		}
	}()

	fmt.Println("=== segdb benchmark ===")
	fmt.Printf("Dir: %s, mode: %s\n\n", *dir, *mode)

	// Тест 1: Последовательные записи
	fmt.Printf("Test 1: Sequential Writes (%d operations)\n", *ops)
	printResult(runPhase(*ops, 1, func(_, i int) error {
		return st.PutString(fmt.Sprintf("seq_key_%08d", i), fmt.Sprintf("value_%d", i))
	}))

	// Тест 2: Параллельные записи
	fmt.Printf("\nTest 2: Concurrent Writes (%d operations, %d goroutines)\n", *ops, *workers)
	printResult(runPhase(*ops, *workers, func(w, i int) error {
		return st.PutString(fmt.Sprintf("conc_key_%d_%08d", w, i), fmt.Sprintf("value_%d", i))
	}))

	if err := st.Flush(); err != nil {
		fmt.Printf("ERROR: flush failed: %v\n", err)
		return 1
	}

	// Тест 3: Параллельные чтения с диска
	fmt.Printf("\nTest 3: Concurrent Reads (%d operations, %d goroutines)\n", *ops, *workers)
	printResult(runPhase(*ops, *workers, func(_, i int) error {
		_, found, err := st.GetString(fmt.Sprintf("seq_key_%08d", i))
		if err == nil && !found {
			err = fmt.Errorf("key %d not found", i)
		}
		return err
	}))

	// Тест 4: Полный скан
	fmt.Println("\nTest 4: Full Scan")
	start := time.Now()
	entries, err := iterator.Collect(st.Scan(nil, nil))
	if err != nil {
		fmt.Printf("ERROR: scan failed: %v\n", err)
		return 1
	}
	elapsed := time.Since(start)
	fmt.Printf("  Entries: %d\n", len(entries))
	fmt.Printf("  Duration: %v\n", elapsed)
	fmt.Printf("  Entries/sec: %.2f\n", float64(len(entries))/elapsed.Seconds())

	s := st.Stats()
	fmt.Printf("\nSegments: %d, records on disk: %d, bytes on disk: %d, mappings: %d\n",
		len(s.Disk.Segments), s.Disk.Records, s.Disk.Bytes, s.Disk.Mappings)
	fmt.Println("\n=== Benchmark Complete ===")
	return 0
}

// runPhase splits totalOps between concurrency goroutines; op gets the
// goroutine number and the operation index.
func runPhase(totalOps, concurrency int, op func(worker, i int) error) BenchmarkResult {
	start := time.Now()
	var wg sync.WaitGroup
	var mu sync.Mutex

	successful := 0
	failed := 0
	latencies := make([]time.Duration, 0, totalOps)

	opsPerGoroutine := totalOps / concurrency
	remainder := totalOps % concurrency

	first := 0
	for w := 0; w < concurrency; w++ {
		n := opsPerGoroutine
		if w < remainder {
			n++
		}

		wg.Add(1)
		go func(worker, first, n int) {
			defer wg.Done()

			local := make([]time.Duration, 0, n)
			ok, bad := 0, 0
			for i := first; i < first+n; i++ {
				opStart := time.Now()
				err := op(worker, i)
				local = append(local, time.Since(opStart))
				if err == nil {
					ok++
				} else {
					bad++
				}
			}

			mu.Lock()
			successful += ok
			failed += bad
			latencies = append(latencies, local...)
			mu.Unlock()
		}(w, first, n)

		first += n
	}

	wg.Wait()
	return summarize(totalOps, successful, failed, time.Since(start), latencies)
}

func summarize(totalOps, successful, failed int, duration time.Duration, latencies []time.Duration) BenchmarkResult {
	// Вычисление статистики латентности
	var minLat, maxLat, sum time.Duration
	if len(latencies) > 0 {
		minLat, maxLat = latencies[0], latencies[0]
		for _, lat := range latencies {
			minLat = min(minLat, lat)
			maxLat = max(maxLat, lat)
			sum += lat
		}
	}

	var avg time.Duration
	if len(latencies) > 0 {
		avg = sum / time.Duration(len(latencies))
	}

	return BenchmarkResult{
		TotalOps:      totalOps,
		SuccessfulOps: successful,
		FailedOps:     failed,
		Duration:      duration,
		OpsPerSec:     float64(successful) / duration.Seconds(),
		AvgLatency:    avg,
		MinLatency:    minLat,
		MaxLatency:    maxLat,
	}
}

func printResult(result BenchmarkResult) {
	fmt.Printf("  Total Operations: %d\n", result.TotalOps)
	fmt.Printf("  Successful: %d\n", result.SuccessfulOps)
	fmt.Printf("  Failed: %d\n", result.FailedOps)
	fmt.Printf("  Duration: %v\n", result.Duration)
	fmt.Printf("  Operations/sec: %.2f\n", result.OpsPerSec)
	fmt.Printf("  Avg Latency: %v\n", result.AvgLatency)
	fmt.Printf("  Min Latency: %v\n", result.MinLatency)
	fmt.Printf("  Max Latency: %v\n", result.MaxLatency)
}
