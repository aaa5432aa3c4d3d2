package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sarchlab/memsim/loader"
	"github.com/sarchlab/memsim/report"
	"github.com/sarchlab/memsim/timing/core"
	"github.com/sarchlab/memsim/timing/hierarchy"
	"github.com/sarchlab/memsim/timing/latency"
)

// autoSQLite asks the recorder to pick a unique database name.
const autoSQLite = "auto"

type runOptions struct {
	*globalOptions

	tracePath string
	meminPath string

	memoutPath string
	l1Path     string
	l2Path     string
	statsPath  string
	jsonPath   string
	sqlitePath string

	noL2       bool
	l1Block    int
	l2Block    int
	flush      bool
	skipErrors bool
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{globalOptions: global}

	cmd := &cobra.Command{
		Use:   "run --trace <trace.txt>",
		Short: "Replay a trace and write statistics and final state.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulation(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.tracePath, "trace", "", "Trace file of loads and stores")
	f.StringVar(&opts.meminPath, "memin", "", "Initial memory image")
	f.StringVar(&opts.memoutPath, "memout", "", "Write the final memory image here")
	f.StringVar(&opts.l1Path, "l1-out", "", "Write the final L1 contents here")
	f.StringVar(&opts.l2Path, "l2-out", "", "Write the final L2 contents here")
	f.StringVar(&opts.statsPath, "stats", "", "Write the stats file here")
	f.StringVar(&opts.jsonPath, "json", "", "Write the JSON report here")
	f.StringVar(&opts.sqlitePath, "sqlite", "",
		`Record every request in this SQLite database ("auto" picks a name)`)
	f.BoolVar(&opts.noL2, "no-l2", false, "Simulate L1 only")
	f.IntVar(&opts.l1Block, "l1-block", 0, "Override the L1 block size")
	f.IntVar(&opts.l2Block, "l2-block", 0, "Override the L2 block size")
	f.BoolVar(&opts.flush, "flush", false,
		"Write back all dirty lines before dumping memory")
	f.BoolVar(&opts.skipErrors, "skip-errors", false,
		"Skip rejected requests instead of stopping")
	_ = cmd.MarkFlagRequired("trace")

	return cmd
}

// timingConfig loads the configuration and applies command-line overrides.
func (o *runOptions) timingConfig() (*latency.TimingConfig, error) {
	config, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	if o.noL2 {
		config.L2Present = false
	}
	if o.l1Block != 0 {
		config.L1BlockSize = o.l1Block
	}
	if o.l2Block != 0 {
		config.L2BlockSize = o.l2Block
	}

	return config, nil
}

func runSimulation(opts *runOptions, stdout, stderr io.Writer) (err error) {
	config, err := opts.timingConfig()
	if err != nil {
		return err
	}

	logger := opts.logger(stderr)

	var hierarchyOpts []hierarchy.Option
	if logger != nil {
		hierarchyOpts = append(hierarchyOpts, hierarchy.WithLogger(logger))
	}

	var recorder *report.SQLiteRecorder
	if opts.sqlitePath != "" {
		path := opts.sqlitePath
		if path == autoSQLite {
			path = ""
		}

		recorder = report.NewSQLiteRecorder(path)
		if err := recorder.Init(); err != nil {
			return fmt.Errorf("creating request database: %w", err)
		}
		defer func() {
			err = errors.Join(err, recorder.Close())
		}()

		hierarchyOpts = append(hierarchyOpts, hierarchy.WithRecorder(recorder))
	}

	h, err := hierarchy.New(config, hierarchyOpts...)
	if err != nil {
		return err
	}

	if opts.meminPath != "" {
		n, err := loader.LoadMemoryImageFile(opts.meminPath, h.Memory())
		if err != nil {
			return err
		}
		if opts.verbose {
			fmt.Fprintf(stderr, "Loaded %d bytes from %s\n", n, opts.meminPath)
		}
	}

	entries, err := loader.LoadTrace(opts.tracePath)
	if err != nil {
		return err
	}

	policy := core.AbortOnError
	if opts.skipErrors {
		policy = core.SkipOnError
	}
	c := core.NewCore(h, entries,
		core.WithErrorPolicy(policy),
		core.WithLogger(logger))

	if err := c.Run(); err != nil {
		return err
	}

	if opts.flush {
		h.FlushAll()
	}

	coreStats := c.Stats()
	summary := report.Summary{
		Report:             h.Report(),
		TotalCycles:        coreStats.Cycles,
		MemoryCycles:       coreStats.MemoryCycles,
		MemoryInstructions: coreStats.Instructions,
	}
	if recorder != nil {
		summary.RunID = recorder.RunID()
	}

	if err := writeOutputs(opts, h, summary); err != nil {
		return err
	}

	printSummary(stdout, opts.tracePath, summary, coreStats)
	if recorder != nil {
		fmt.Fprintf(stdout, "Requests recorded in %s\n", recorder.Path())
	}

	return nil
}

func writeOutputs(opts *runOptions, h *hierarchy.Hierarchy, summary report.Summary) error {
	if opts.statsPath != "" {
		if err := report.WriteStatsFile(opts.statsPath, summary); err != nil {
			return err
		}
	}

	if opts.jsonPath != "" {
		if err := report.WriteJSONFile(opts.jsonPath, summary); err != nil {
			return err
		}
	}

	if opts.memoutPath != "" {
		if err := loader.WriteMemoryImageFile(opts.memoutPath, h.Memory()); err != nil {
			return err
		}
	}

	if opts.l1Path != "" {
		if err := report.DumpLevelFile(opts.l1Path, h.L1()); err != nil {
			return err
		}
	}

	if opts.l2Path != "" && h.L2() != nil {
		if err := report.DumpLevelFile(opts.l2Path, h.L2()); err != nil {
			return err
		}
	}

	return nil
}

func printSummary(w io.Writer, tracePath string, s report.Summary, coreStats core.Stats) {
	fmt.Fprintf(w, "Trace: %s\n", tracePath)
	fmt.Fprintf(w, "Total Cycles: %d\n", s.TotalCycles)
	fmt.Fprintf(w, "Memory Instructions: %d (%d loads, %d stores)\n",
		coreStats.Instructions, coreStats.Loads, coreStats.Stores)
	if coreStats.Errors > 0 {
		fmt.Fprintf(w, "Skipped Requests: %d\n", coreStats.Errors)
	}
	fmt.Fprintf(w, "\n")

	for _, level := range s.Levels {
		fmt.Fprintf(w, "%s:\n", level.Name)
		fmt.Fprintf(w, "  Read hits/misses:  %d / %d\n", level.ReadHits, level.ReadMisses())
		fmt.Fprintf(w, "  Write hits/misses: %d / %d\n", level.WriteHits, level.WriteMisses())
		fmt.Fprintf(w, "  Compulsory/conflict: %d / %d\n",
			level.CompulsoryMisses, level.ConflictMisses)
		fmt.Fprintf(w, "  Write-backs: %d\n", level.Writebacks)
		fmt.Fprintf(w, "  Local miss rate:  %.4f\n", level.LocalMissRate)
		fmt.Fprintf(w, "  Global miss rate: %.4f\n", level.GlobalMissRate)
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "AMAT (measured): %.4f\n", s.AMAT())
	fmt.Fprintf(w, "AMAT (analytic): %.4f\n", s.AMATL1)
	if s.FlushCycles > 0 {
		fmt.Fprintf(w, "Flush Cycles: %d\n", s.FlushCycles)
	}
}
