package latency

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/bits"
	"os"
)

// ErrConfiguration is wrapped by every error returned from Validate.
var ErrConfiguration = errors.New("invalid hierarchy configuration")

// DefaultMemorySize is the capacity of main memory (16 MiB, 24 address bits).
const DefaultMemorySize uint64 = 16 * 1024 * 1024

// TimingConfig describes the geometry and timing of a two-level
// direct-mapped hierarchy backed by main memory. One TimingConfig is used
// for a whole simulation run and is not modified once a hierarchy is built.
type TimingConfig struct {
	// L1BlockSize is the L1 line size in bytes. Must be a power of two.
	L1BlockSize int `json:"l1_block_size"`

	// L1LineCount is the number of L1 lines. Must be a power of two.
	L1LineCount int `json:"l1_line_count"`

	// L1HitLatency is the L1 lookup time in cycles.
	// Default: 1 cycle.
	L1HitLatency uint64 `json:"l1_hit_latency"`

	// L2Present enables the second cache level. When false, L1 misses go
	// straight to main memory.
	L2Present bool `json:"l2_present"`

	// L2BlockSize is the L2 line size in bytes. Must be a power of two and
	// a multiple of L1BlockSize.
	L2BlockSize int `json:"l2_block_size"`

	// L2LineCount is the number of L2 lines. Must be a power of two.
	L2LineCount int `json:"l2_line_count"`

	// L2HitLatency is the L2 lookup time in cycles.
	// Default: 4 cycles.
	L2HitLatency uint64 `json:"l2_hit_latency"`

	// MemorySize is the main memory capacity in bytes.
	// Default: 16 MiB.
	MemorySize uint64 `json:"memory_size"`

	// MemoryLatency is the fixed service latency of main memory, charged
	// once per block regardless of block size. Default: 100 cycles.
	MemoryLatency uint64 `json:"memory_latency"`

	// BusWidthL1L2 is the width in bytes of the link between L1 and L2.
	BusWidthL1L2 uint64 `json:"bus_width_l1_l2"`

	// BusWidthL2MM is the width in bytes of the link between the last cache
	// level and main memory. It is also used for the L1 to memory link when
	// L2 is absent.
	BusWidthL2MM uint64 `json:"bus_width_l2_mm"`

	// BusControlOverhead is a fixed number of cycles added to every bus
	// transaction for address and control beats. Default: 0 (payload only).
	BusControlOverhead uint64 `json:"bus_control_overhead"`

	// WriteFullBlockFastPath skips the fetch on a write miss that overwrites
	// an entire L1 block. Default: false.
	WriteFullBlockFastPath bool `json:"write_full_block_fast_path"`
}

// DefaultTimingConfig returns a 4KB L1 / 32KB L2 / 16MB memory hierarchy.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		L1BlockSize:   16,
		L1LineCount:   256,
		L1HitLatency:  1,
		L2Present:     true,
		L2BlockSize:   32,
		L2LineCount:   1024,
		L2HitLatency:  4,
		MemorySize:    DefaultMemorySize,
		MemoryLatency: 100,
		BusWidthL1L2:  32,
		BusWidthL2MM:  8,
	}
}

// LoadConfig loads a TimingConfig from a JSON file. Fields missing from the
// file keep their default values.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks the structural invariants of the configuration.
func (c *TimingConfig) Validate() error {
	if !isPowerOfTwo(uint64(c.L1BlockSize)) || c.L1BlockSize < 1 {
		return configErrorf("l1_block_size must be a power of two, got %d",
			c.L1BlockSize)
	}
	if !isPowerOfTwo(uint64(c.L1LineCount)) || c.L1LineCount < 1 {
		return configErrorf("l1_line_count must be a power of two, got %d",
			c.L1LineCount)
	}
	if c.MemorySize == 0 {
		return configErrorf("memory_size must be > 0")
	}
	if c.BusWidthL2MM == 0 {
		return configErrorf("bus_width_l2_mm must be > 0")
	}
	if c.MemorySize%uint64(c.L1BlockSize) != 0 {
		return configErrorf("memory_size must be a multiple of l1_block_size")
	}
	if c.L1Size() > c.MemorySize {
		return configErrorf("l1 capacity (%d) exceeds memory_size (%d)",
			c.L1Size(), c.MemorySize)
	}

	if !c.L2Present {
		return nil
	}

	if !isPowerOfTwo(uint64(c.L2BlockSize)) || c.L2BlockSize < 1 {
		return configErrorf("l2_block_size must be a power of two, got %d",
			c.L2BlockSize)
	}
	if !isPowerOfTwo(uint64(c.L2LineCount)) || c.L2LineCount < 1 {
		return configErrorf("l2_line_count must be a power of two, got %d",
			c.L2LineCount)
	}
	if c.L2BlockSize%c.L1BlockSize != 0 {
		return configErrorf(
			"l2_block_size (%d) must be a multiple of l1_block_size (%d)",
			c.L2BlockSize, c.L1BlockSize)
	}
	if c.BusWidthL1L2 == 0 {
		return configErrorf("bus_width_l1_l2 must be > 0")
	}
	if c.MemorySize%uint64(c.L2BlockSize) != 0 {
		return configErrorf("memory_size must be a multiple of l2_block_size")
	}
	if c.L2Size() > c.MemorySize {
		return configErrorf("l2 capacity (%d) exceeds memory_size (%d)",
			c.L2Size(), c.MemorySize)
	}

	return nil
}

// L1Size returns the L1 capacity in bytes.
func (c *TimingConfig) L1Size() uint64 {
	return uint64(c.L1BlockSize) * uint64(c.L1LineCount)
}

// L2Size returns the L2 capacity in bytes, or 0 when L2 is absent.
func (c *TimingConfig) L2Size() uint64 {
	if !c.L2Present {
		return 0
	}
	return uint64(c.L2BlockSize) * uint64(c.L2LineCount)
}

// LastLevelBlockSize returns the block size that main memory serves: the L2
// block size when L2 is present, otherwise the L1 block size.
func (c *TimingConfig) LastLevelBlockSize() uint64 {
	if c.L2Present {
		return uint64(c.L2BlockSize)
	}
	return uint64(c.L1BlockSize)
}

// AddressBits returns the number of bits needed to address main memory.
func (c *TimingConfig) AddressBits() uint {
	if c.MemorySize <= 1 {
		return 0
	}
	return uint(bits.Len64(c.MemorySize - 1))
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}

func isPowerOfTwo(v uint64) bool {
	return v != 0 && v&(v-1) == 0
}

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
