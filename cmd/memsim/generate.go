package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/memsim/benchmarks"
	"github.com/sarchlab/memsim/loader"
)

type generateOptions struct {
	kind    string
	pattern benchmarks.Pattern
	out     string
}

func newGenerateCmd(_ *globalOptions) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic trace.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(opts, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.kind, "pattern", benchmarks.Sequential.String(),
		"Address pattern: sequential, strided, random or pingpong")
	f.IntVar(&opts.pattern.Count, "count", 1000, "Number of requests")
	f.Uint64Var(&opts.pattern.Base, "base", 0, "First address")
	f.Uint64Var(&opts.pattern.Span, "span", 64*1024, "Bytes covered by the pattern")
	f.Uint64Var(&opts.pattern.Stride, "stride", 64, "Stride in bytes")
	f.Float64Var(&opts.pattern.WriteRatio, "write-ratio", 0.3, "Fraction of stores")
	f.Uint64Var(&opts.pattern.Gap, "gap", 1, "Non-memory cycles before each request")
	f.Uint64Var(&opts.pattern.Seed, "seed", 1, "Random seed")
	f.StringVarP(&opts.out, "output", "o", "", "Output file (default stdout)")

	return cmd
}

func runGenerate(opts *generateOptions, stdout io.Writer) error {
	kind, err := benchmarks.ParsePatternKind(opts.kind)
	if err != nil {
		return err
	}

	p := opts.pattern
	p.Kind = kind

	entries, err := benchmarks.Generate(p)
	if err != nil {
		return err
	}

	if opts.out == "" {
		return loader.WriteTrace(stdout, entries)
	}

	f, err := os.Create(opts.out)
	if err != nil {
		return fmt.Errorf("failed to create trace: %w", err)
	}

	if err := loader.WriteTrace(f, entries); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}
