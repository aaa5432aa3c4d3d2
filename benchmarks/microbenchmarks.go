package benchmarks

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/sarchlab/memsim/loader"
	"github.com/sarchlab/memsim/timing/hierarchy"
)

// ErrPattern is returned for patterns that cannot be generated.
var ErrPattern = errors.New("invalid access pattern")

// PatternKind selects the address sequence of a pattern.
type PatternKind int

const (
	// Sequential walks words upward from Base, wrapping at Span.
	Sequential PatternKind = iota
	// Strided jumps Stride bytes per access, wrapping at Span.
	Strided
	// Random picks uniformly distributed words in [Base, Base+Span).
	Random
	// PingPong alternates between Base and Base+Stride.
	PingPong
)

func (k PatternKind) String() string {
	switch k {
	case Sequential:
		return "sequential"
	case Strided:
		return "strided"
	case Random:
		return "random"
	case PingPong:
		return "pingpong"
	default:
		return fmt.Sprintf("PatternKind(%d)", int(k))
	}
}

// ParsePatternKind is the inverse of PatternKind.String.
func ParsePatternKind(s string) (PatternKind, error) {
	for _, k := range []PatternKind{Sequential, Strided, Random, PingPong} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrPattern, s)
}

// Pattern describes a synthetic trace.
type Pattern struct {
	Kind  PatternKind
	Count int
	Base  uint64
	// Span bounds the addresses touched by Sequential, Strided and Random.
	Span   uint64
	Stride uint64
	// WriteRatio is the probability that an access is a store.
	WriteRatio float64
	// Gap is the number of non-memory cycles before each access.
	Gap  uint64
	Seed uint64
}

// Generate produces the trace described by p. Every address is word
// aligned, and the same pattern always yields the same trace.
func Generate(p Pattern) ([]loader.Entry, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(p.Seed, p.Seed^0x9E3779B97F4A7C15))
	entries := make([]loader.Entry, 0, p.Count)

	for i := 0; i < p.Count; i++ {
		addr := p.address(i, rng)

		var req hierarchy.Request
		if p.WriteRatio > 0 && rng.Float64() < p.WriteRatio {
			value := make([]byte, hierarchy.WordSize)
			for j := range value {
				value[j] = byte(rng.UintN(256))
			}
			req = hierarchy.Write(addr, value)
		} else {
			req = hierarchy.Read(addr, hierarchy.WordSize)
		}

		entries = append(entries, loader.Entry{Gap: p.Gap, Request: req, Line: i + 1})
	}

	return entries, nil
}

func (p Pattern) address(i int, rng *rand.Rand) uint64 {
	const word = hierarchy.WordSize

	switch p.Kind {
	case Sequential:
		return p.Base + (uint64(i)*word)%p.Span
	case Strided:
		return p.Base + (uint64(i)*p.Stride)%p.Span
	case Random:
		return p.Base + rng.Uint64N(p.Span/word)*word
	default:
		if i%2 == 0 {
			return p.Base
		}
		return p.Base + p.Stride
	}
}

func (p Pattern) validate() error {
	const word = hierarchy.WordSize

	switch {
	case p.Count < 0:
		return fmt.Errorf("%w: negative count", ErrPattern)
	case p.Base%word != 0:
		return fmt.Errorf("%w: base 0x%X is not word aligned", ErrPattern, p.Base)
	case p.WriteRatio < 0 || p.WriteRatio > 1:
		return fmt.Errorf("%w: write ratio %v outside [0, 1]", ErrPattern, p.WriteRatio)
	}

	switch p.Kind {
	case Sequential, Random:
		if p.Span < word || p.Span%word != 0 {
			return fmt.Errorf("%w: span %d is not a positive multiple of %d",
				ErrPattern, p.Span, word)
		}
	case Strided:
		if p.Span < word || p.Span%word != 0 || p.Stride == 0 || p.Stride%word != 0 {
			return fmt.Errorf("%w: stride %d and span %d must be positive multiples of %d",
				ErrPattern, p.Stride, p.Span, word)
		}
	case PingPong:
		if p.Stride == 0 || p.Stride%word != 0 {
			return fmt.Errorf("%w: stride %d is not a positive multiple of %d",
				ErrPattern, p.Stride, word)
		}
	default:
		return fmt.Errorf("%w: unknown kind %v", ErrPattern, p.Kind)
	}

	return nil
}

// GetMicrobenchmarks returns the standard set of synthetic traces. Each one
// targets a specific behavior of a direct-mapped hierarchy.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		sequentialScan(),
		stridedScan(),
		randomMix(),
		pingPongConflict(),
	}
}

// 1. Sequential scan - spatial locality, one compulsory miss per block.
func sequentialScan() Benchmark {
	return mustBenchmark("sequential_scan",
		"4096 word loads over 16 KiB - measures spatial locality",
		Pattern{Kind: Sequential, Count: 4096, Span: 16 * 1024, Gap: 1})
}

// 2. Strided scan - one access per 64 B block, no spatial reuse.
func stridedScan() Benchmark {
	return mustBenchmark("strided_scan",
		"2048 loads with a 64 B stride over 64 KiB - defeats small blocks",
		Pattern{Kind: Strided, Count: 2048, Span: 64 * 1024, Stride: 64, Gap: 1})
}

// 3. Random mix - loads and stores spread over 256 KiB.
func randomMix() Benchmark {
	return mustBenchmark("random_mix",
		"4096 random accesses, 30% stores, over 256 KiB - exercises write-backs",
		Pattern{Kind: Random, Count: 4096, Span: 256 * 1024, WriteRatio: 0.3, Gap: 2, Seed: 1})
}

// 4. Ping-pong - two addresses 1 MiB apart share every index.
func pingPongConflict() Benchmark {
	return mustBenchmark("pingpong_conflict",
		"1024 alternating stores 1 MiB apart - worst case conflict misses",
		Pattern{Kind: PingPong, Count: 1024, Stride: 1024 * 1024, WriteRatio: 1, Seed: 2})
}

func mustBenchmark(name, description string, p Pattern) Benchmark {
	entries, err := Generate(p)
	if err != nil {
		panic(err)
	}

	return Benchmark{
		Name:        name,
		Description: description,
		Entries:     entries,
	}
}
