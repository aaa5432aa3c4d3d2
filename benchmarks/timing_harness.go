// Package benchmarks provides synthetic traces and the harness that replays
// them against cache hierarchies for comparison and block-size sweeps.
package benchmarks

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sarchlab/memsim/loader"
	"github.com/sarchlab/memsim/timing/core"
	"github.com/sarchlab/memsim/timing/hierarchy"
	"github.com/sarchlab/memsim/timing/latency"
	"github.com/sarchlab/memsim/timing/memory"
)

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// SimulatedCycles is gap cycles plus memory cycles
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// MemoryCycles is the time spent in memory requests
	MemoryCycles uint64 `json:"memory_cycles"`

	// Requests is the number of completed memory requests
	Requests uint64 `json:"requests"`

	// AMAT is measured memory cycles per request
	AMAT float64 `json:"amat"`

	// AnalyticAMAT is the AMAT derived from miss rates and latencies
	AnalyticAMAT float64 `json:"analytic_amat"`

	L1MissRate     float64 `json:"l1_miss_rate"`
	L2MissRate     float64 `json:"l2_miss_rate,omitempty"`
	GlobalMissRate float64 `json:"global_miss_rate"`

	// Writebacks counts dirty victims flushed by all levels
	Writebacks uint64 `json:"writebacks"`

	// FlushCycles is the cost of the final flush, if one was requested
	FlushCycles uint64 `json:"flush_cycles,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark trace.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Setup prepares main memory before the trace runs
	Setup func(m *memory.Memory) error

	// Entries is the trace to replay
	Entries []loader.Entry
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Timing is the hierarchy every benchmark runs on
	Timing *latency.TimingConfig

	// Flush writes back all dirty lines after each benchmark
	Flush bool

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Timing:  latency.DefaultTimingConfig(),
		Output:  os.Stdout,
		Verbose: false,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Timing == nil {
		config.Timing = latency.DefaultTimingConfig()
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks, each on a cold hierarchy.
func (h *Harness) RunAll() ([]BenchmarkResult, error) {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result, err := runBenchmark(h.config.Timing, bench, h.config.Flush)
		if err != nil {
			return results, fmt.Errorf("benchmark %s: %w", bench.Name, err)
		}

		if h.config.Verbose {
			_, _ = fmt.Fprintf(h.config.Output, "ran %s: %d requests in %v\n",
				result.Name, result.Requests, result.WallTime)
		}

		results = append(results, result)
	}

	return results, nil
}

// runBenchmark executes a single benchmark on a fresh hierarchy.
func runBenchmark(
	config *latency.TimingConfig,
	bench Benchmark,
	flush bool,
) (BenchmarkResult, error) {
	h, err := hierarchy.New(config)
	if err != nil {
		return BenchmarkResult{}, err
	}

	if bench.Setup != nil {
		if err := bench.Setup(h.Memory()); err != nil {
			return BenchmarkResult{}, err
		}
	}

	c := core.NewCore(h, bench.Entries)

	start := time.Now()
	if err := c.Run(); err != nil {
		return BenchmarkResult{}, err
	}
	var flushCycles uint64
	if flush {
		flushCycles = h.FlushAll()
	}
	wallTime := time.Since(start)

	stats := c.Stats()
	report := h.Report()

	result := BenchmarkResult{
		Name:            bench.Name,
		Description:     bench.Description,
		SimulatedCycles: stats.Cycles,
		MemoryCycles:    stats.MemoryCycles,
		Requests:        stats.Instructions,
		AMAT:            stats.AMAT(),
		AnalyticAMAT:    report.AMATL1,
		L1MissRate:      report.Levels[0].LocalMissRate,
		GlobalMissRate:  report.Levels[len(report.Levels)-1].GlobalMissRate,
		FlushCycles:     flushCycles,
		WallTime:        wallTime,
	}

	for _, level := range report.Levels {
		result.Writebacks += level.Writebacks
	}
	if report.HasL2 {
		result.L2MissRate = report.Levels[1].LocalMissRate
	}

	return result, nil
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== Memory Hierarchy Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles: %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Memory Cycles:    %d\n", r.MemoryCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Requests:         %d\n", r.Requests)
		_, _ = fmt.Fprintf(h.config.Output, "  AMAT:             %.3f\n", r.AMAT)
		_, _ = fmt.Fprintf(h.config.Output, "  Analytic AMAT:    %.3f\n", r.AnalyticAMAT)
		_, _ = fmt.Fprintln(h.config.Output, "  --- Caches ---")
		_, _ = fmt.Fprintf(h.config.Output, "  L1 Miss Rate:     %.4f\n", r.L1MissRate)
		if r.L2MissRate > 0 {
			_, _ = fmt.Fprintf(h.config.Output, "  L2 Miss Rate:     %.4f\n", r.L2MissRate)
		}
		_, _ = fmt.Fprintf(h.config.Output, "  Global Miss Rate: %.4f\n", r.GlobalMissRate)
		_, _ = fmt.Fprintf(h.config.Output, "  Write-backs:      %d\n", r.Writebacks)
		if r.FlushCycles > 0 {
			_, _ = fmt.Fprintf(h.config.Output, "  Flush Cycles:     %d\n", r.FlushCycles)
		}
		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,cycles,memory_cycles,requests,amat,analytic_amat,l1_miss_rate,l2_miss_rate,global_miss_rate,writebacks")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%d,%.4f,%.4f,%.4f,%.4f,%.4f,%d\n",
			r.Name,
			r.SimulatedCycles,
			r.MemoryCycles,
			r.Requests,
			r.AMAT,
			r.AnalyticAMAT,
			r.L1MissRate,
			r.L2MissRate,
			r.GlobalMissRate,
			r.Writebacks,
		)
	}
}
