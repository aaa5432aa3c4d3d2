package benchmarks

import (
	"errors"
	"fmt"
	"io"

	"github.com/sarchlab/memsim/timing/latency"
)

// ErrSweep is returned for sweeps that cannot run.
var ErrSweep = errors.New("invalid sweep")

// SweepLevel selects which block size a sweep varies.
type SweepLevel string

const (
	// SweepL1 varies the L1 block size.
	SweepL1 SweepLevel = "l1"
	// SweepL2 varies the L2 block size.
	SweepL2 SweepLevel = "l2"
)

// SweepOptions describes a block-size sweep.
type SweepOptions struct {
	Level    SweepLevel
	MinBlock int
	MaxBlock int
	// Flush writes back dirty lines at the end of every point.
	Flush bool
}

// SweepPoint is the result of one block size.
type SweepPoint struct {
	BlockSize int
	BenchmarkResult
}

// Sweep reruns bench on a cold hierarchy for every power-of-two block size
// from MinBlock to MaxBlock. Line counts are kept, so capacity grows with the
// block size.
func Sweep(base *latency.TimingConfig, bench Benchmark, opts SweepOptions) ([]SweepPoint, error) {
	if err := opts.validate(base); err != nil {
		return nil, err
	}

	var points []SweepPoint
	for size := opts.MinBlock; size <= opts.MaxBlock; size *= 2 {
		config := base.Clone()
		switch opts.Level {
		case SweepL1:
			config.L1BlockSize = size
		case SweepL2:
			config.L2BlockSize = size
		}

		if err := config.Validate(); err != nil {
			return points, fmt.Errorf("block size %d: %w", size, err)
		}

		result, err := runBenchmark(config, bench, opts.Flush)
		if err != nil {
			return points, fmt.Errorf("block size %d: %w", size, err)
		}

		points = append(points, SweepPoint{BlockSize: size, BenchmarkResult: result})
	}

	return points, nil
}

func (o SweepOptions) validate(base *latency.TimingConfig) error {
	switch o.Level {
	case SweepL1:
	case SweepL2:
		if !base.L2Present {
			return fmt.Errorf("%w: L2 sweep without an L2", ErrSweep)
		}
	default:
		return fmt.Errorf("%w: unknown level %q", ErrSweep, o.Level)
	}

	if o.MinBlock <= 0 || o.MinBlock&(o.MinBlock-1) != 0 {
		return fmt.Errorf("%w: min block %d is not a power of two", ErrSweep, o.MinBlock)
	}
	if o.MaxBlock < o.MinBlock {
		return fmt.Errorf("%w: max block %d below min block %d", ErrSweep, o.MaxBlock, o.MinBlock)
	}

	return nil
}

// WriteSweepCSV writes one line per point.
func WriteSweepCSV(w io.Writer, level SweepLevel, points []SweepPoint) error {
	if _, err := fmt.Fprintf(w, "%s_block_size,cycles,amat,analytic_amat,l1_miss_rate,global_miss_rate,writebacks\n",
		level); err != nil {
		return err
	}

	for _, p := range points {
		_, err := fmt.Fprintf(w, "%d,%d,%.4f,%.4f,%.4f,%.4f,%d\n",
			p.BlockSize,
			p.SimulatedCycles,
			p.AMAT,
			p.AnalyticAMAT,
			p.L1MissRate,
			p.GlobalMissRate,
			p.Writebacks,
		)
		if err != nil {
			return err
		}
	}

	return nil
}
