package cache

import (
	"fmt"
	"math/bits"

	"github.com/sarchlab/memsim/timing/memory"
)

// ErrInvalidAddress is returned when an address falls outside main memory.
var ErrInvalidAddress = memory.ErrInvalidAddress

// Address is a physical address split into its cache fields.
type Address struct {
	Tag    uint64
	Index  uint64
	Offset uint64
}

// Geometry describes how one level splits addresses into tag, index and
// offset fields.
type Geometry struct {
	BlockSize  uint64
	LineCount  uint64
	MemorySize uint64

	OffsetBits  uint
	IndexBits   uint
	AddressBits uint
}

// NewGeometry builds the field layout for a level with the given block size
// and line count over a memory of memorySize bytes. Both block size and line
// count must be powers of two.
func NewGeometry(blockSize, lineCount int, memorySize uint64) (Geometry, error) {
	if blockSize < 1 || bits.OnesCount64(uint64(blockSize)) != 1 {
		return Geometry{}, fmt.Errorf("block size %d is not a power of two",
			blockSize)
	}
	if lineCount < 1 || bits.OnesCount64(uint64(lineCount)) != 1 {
		return Geometry{}, fmt.Errorf("line count %d is not a power of two",
			lineCount)
	}

	g := Geometry{
		BlockSize:  uint64(blockSize),
		LineCount:  uint64(lineCount),
		MemorySize: memorySize,
		OffsetBits: uint(bits.TrailingZeros64(uint64(blockSize))),
		IndexBits:  uint(bits.TrailingZeros64(uint64(lineCount))),
	}
	if memorySize > 1 {
		g.AddressBits = uint(bits.Len64(memorySize - 1))
	}

	if g.OffsetBits+g.IndexBits > g.AddressBits {
		return Geometry{}, fmt.Errorf(
			"%d offset and %d index bits exceed %d address bits",
			g.OffsetBits, g.IndexBits, g.AddressBits)
	}

	return g, nil
}

// TagBits returns the width of the tag field.
func (g Geometry) TagBits() uint {
	return g.AddressBits - g.OffsetBits - g.IndexBits
}

// Decode splits addr into tag, index and offset. Any address inside memory
// is accepted, whatever its alignment.
func (g Geometry) Decode(addr uint64) (Address, error) {
	if addr >= g.MemorySize {
		return Address{}, fmt.Errorf("%w: 0x%X is beyond %d bytes of memory",
			ErrInvalidAddress, addr, g.MemorySize)
	}

	return Address{
		Tag:    addr >> (g.OffsetBits + g.IndexBits),
		Index:  (addr >> g.OffsetBits) & (g.LineCount - 1),
		Offset: addr & (g.BlockSize - 1),
	}, nil
}

// Compose is the inverse of Decode.
func (g Geometry) Compose(tag, index, offset uint64) uint64 {
	return tag<<(g.OffsetBits+g.IndexBits) | index<<g.OffsetBits | offset
}

// BlockBase returns the address of the first byte of the block holding addr.
func (g Geometry) BlockBase(addr uint64) uint64 {
	return addr &^ (g.BlockSize - 1)
}
