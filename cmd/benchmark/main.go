// Command benchmark runs the synthetic trace benchmarks against one cache
// hierarchy configuration.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv     Output results in CSV format (default: human-readable)
//	-config  Path to timing configuration JSON file
//	-no-l2   Simulate L1 only
//	-flush   Write back dirty lines at the end of each benchmark
//
// Example:
//
//	# Compare a configuration against the defaults
//	go run ./cmd/benchmark -csv > default.csv
//	go run ./cmd/benchmark -csv -config big-blocks.json > big-blocks.csv
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/memsim/benchmarks"
	"github.com/sarchlab/memsim/timing/latency"
)

func main() {
	// Parse flags
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	configPath := flag.String("config", "", "Path to timing configuration JSON file")
	noL2 := flag.Bool("no-l2", false, "Simulate L1 only")
	flush := flag.Bool("flush", false, "Write back dirty lines after each benchmark")
	flag.Parse()

	// Configure harness
	config := benchmarks.DefaultConfig()
	if *configPath != "" {
		timing, err := latency.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading timing config: %v\n", err)
			os.Exit(1)
		}
		config.Timing = timing
	}
	if *noL2 {
		config.Timing.L2Present = false
	}
	config.Flush = *flush
	config.Output = os.Stdout

	// Create harness and add benchmarks
	harness := benchmarks.NewHarness(config)
	harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())

	// Print configuration
	if !*csvOutput {
		fmt.Println("Memory Hierarchy Benchmark Harness")
		fmt.Println("==================================")
		fmt.Printf("L1: %d lines x %d B, hit %d\n",
			config.Timing.L1LineCount, config.Timing.L1BlockSize, config.Timing.L1HitLatency)
		if config.Timing.L2Present {
			fmt.Printf("L2: %d lines x %d B, hit %d\n",
				config.Timing.L2LineCount, config.Timing.L2BlockSize, config.Timing.L2HitLatency)
		} else {
			fmt.Println("L2: none")
		}
		fmt.Printf("Memory latency: %d\n", config.Timing.MemoryLatency)
		fmt.Println("")
	}

	// Run benchmarks
	results, err := harness.RunAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Output results
	if *csvOutput {
		harness.PrintCSV(results)
	} else {
		harness.PrintResults(results)

		fmt.Println("=== Summary ===")
		fmt.Println("")
		fmt.Println("Expected characteristics:")
		fmt.Println("- sequential_scan: one miss per L1 block, miss rate = word / block size")
		fmt.Println("- strided_scan: misses on every access once the stride reaches the block size")
		fmt.Println("- random_mix: capacity bound, write-backs from dirty victims")
		fmt.Println("- pingpong_conflict: every access misses at both levels")
	}
}
