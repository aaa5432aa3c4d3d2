// Package main provides a profiling wrapper for memsim to identify
// performance bottlenecks in trace replay.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/sarchlab/memsim/benchmarks"
	"github.com/sarchlab/memsim/loader"
	"github.com/sarchlab/memsim/timing/core"
	"github.com/sarchlab/memsim/timing/hierarchy"
	"github.com/sarchlab/memsim/timing/latency"
)

var (
	configPath  = flag.String("config", "", "Path to timing configuration JSON file")
	cpuProfile  = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile  = flag.String("memprofile", "", "write memory profile to file")
	duration    = flag.Duration("duration", 30*time.Second, "max duration to run (for profiling)")
	maxRequests = flag.Int("max-requests", 0, "max requests to replay (0 = whole trace)")
	synthetic   = flag.Int("synthetic", 1000000, "random requests to generate when no trace is given")
)

func main() {
	flag.Parse()

	// Start CPU profiling if requested
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	entries, source := loadEntries()
	fmt.Printf("Loaded: %s (%d requests)\n", source, len(entries))

	config := latency.DefaultTimingConfig()
	if *configPath != "" {
		var err error
		config, err = latency.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading timing config: %v\n", err)
			os.Exit(1)
		}
	}

	h, err := hierarchy.New(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building hierarchy: %v\n", err)
		os.Exit(1)
	}

	start := time.Now()

	// Set timeout
	go func() {
		time.Sleep(*duration)
		fmt.Printf("\nTimeout reached after %v - stopping execution\n", *duration)
		os.Exit(2)
	}()

	c := core.NewCore(h, entries, core.WithErrorPolicy(core.SkipOnError))
	if *maxRequests > 0 {
		c.RunEntries(*maxRequests)
	} else {
		_ = c.Run()
	}

	elapsed := time.Since(start)

	// Write memory profile if requested
	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	stats := c.Stats()
	fmt.Printf("\nProfiling Results:\n")
	fmt.Printf("Requests replayed: %d (%d rejected)\n", stats.Instructions, stats.Errors)
	fmt.Printf("Simulated cycles: %d\n", stats.Cycles)
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if stats.Instructions > 0 {
		fmt.Printf("Requests/second: %.0f\n", float64(stats.Instructions)/elapsed.Seconds())
	}
}

// loadEntries reads the trace named on the command line, or generates a
// random one.
func loadEntries() ([]loader.Entry, string) {
	if flag.NArg() > 0 {
		entries, err := loader.LoadTrace(flag.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading trace: %v\n", err)
			os.Exit(1)
		}
		return entries, flag.Arg(0)
	}

	entries, err := benchmarks.Generate(benchmarks.Pattern{
		Kind:       benchmarks.Random,
		Count:      *synthetic,
		Span:       4 * 1024 * 1024,
		WriteRatio: 0.3,
		Gap:        1,
		Seed:       1,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating trace: %v\n", err)
		os.Exit(1)
	}
	return entries, "synthetic random trace"
}
