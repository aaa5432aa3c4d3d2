package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sarchlab/memsim/benchmarks"
	"github.com/sarchlab/memsim/loader"
	"github.com/sarchlab/memsim/timing/memory"
)

type sweepOptions struct {
	*globalOptions

	tracePath string
	meminPath string
	level     string
	minBlock  int
	maxBlock  int
	flush     bool
}

func newSweepCmd(global *globalOptions) *cobra.Command {
	opts := &sweepOptions{globalOptions: global}

	cmd := &cobra.Command{
		Use:   "sweep --trace <trace.txt>",
		Short: "Rerun a trace over a range of block sizes and print CSV.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSweep(opts, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.tracePath, "trace", "", "Trace file of loads and stores")
	f.StringVar(&opts.meminPath, "memin", "", "Initial memory image")
	f.StringVar(&opts.level, "level", string(benchmarks.SweepL1), "Level to vary: l1 or l2")
	f.IntVar(&opts.minBlock, "min", 4, "Smallest block size")
	f.IntVar(&opts.maxBlock, "max", 64, "Largest block size")
	f.BoolVar(&opts.flush, "flush", false, "Write back dirty lines at the end of each point")
	_ = cmd.MarkFlagRequired("trace")

	return cmd
}

func runSweep(opts *sweepOptions, stdout io.Writer) error {
	config, err := opts.loadConfig()
	if err != nil {
		return err
	}

	entries, err := loader.LoadTrace(opts.tracePath)
	if err != nil {
		return err
	}

	bench := benchmarks.Benchmark{Name: opts.tracePath, Entries: entries}
	if opts.meminPath != "" {
		path := opts.meminPath
		bench.Setup = func(m *memory.Memory) error {
			_, err := loader.LoadMemoryImageFile(path, m)
			return err
		}
	}

	level := benchmarks.SweepLevel(opts.level)
	points, err := benchmarks.Sweep(config, bench, benchmarks.SweepOptions{
		Level:    level,
		MinBlock: opts.minBlock,
		MaxBlock: opts.maxBlock,
		Flush:    opts.flush,
	})
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	return benchmarks.WriteSweepCSV(stdout, level, points)
}
