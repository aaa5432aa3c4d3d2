// Package memory models main memory: a byte-addressable store of fixed
// capacity that serves whole blocks with a fixed latency plus bus time.
package memory

import (
	"errors"
	"fmt"

	"github.com/sarchlab/akita/v4/mem/mem"

	"github.com/sarchlab/memsim/timing/latency"
)

var (
	// ErrInvalidAddress is returned for addresses outside [0, size).
	ErrInvalidAddress = errors.New("invalid address")

	// ErrAlignment is returned when a block transfer does not start on a
	// boundary of its own size. Callers in this module never trigger it.
	ErrAlignment = errors.New("unaligned block access")
)

// Memory is the last level of the hierarchy. Untouched bytes read as zero.
type Memory struct {
	storage *mem.Storage
	size    uint64
	table   *latency.Table

	reads  uint64
	writes uint64
}

// New creates a memory sized and timed by the table's configuration.
func New(table *latency.Table) *Memory {
	size := table.Config().MemorySize
	return &Memory{
		storage: mem.NewStorage(size),
		size:    size,
		table:   table,
	}
}

// Size returns the capacity in bytes.
func (m *Memory) Size() uint64 {
	return m.size
}

// BlockReads returns the number of blocks served so far.
func (m *Memory) BlockReads() uint64 {
	return m.reads
}

// BlockWrites returns the number of blocks absorbed so far.
func (m *Memory) BlockWrites() uint64 {
	return m.writes
}

// ReadBlock returns size bytes starting at base together with the cycles
// needed to deliver them to the level above.
func (m *Memory) ReadBlock(base, size uint64) ([]byte, uint64, error) {
	if err := m.checkBlock(base, size); err != nil {
		return nil, 0, err
	}

	data, err := m.storage.Read(base, size)
	if err != nil {
		return nil, 0, fmt.Errorf("memory read at 0x%06X: %w", base, err)
	}

	m.reads++

	return data, m.table.MemoryServiceCycles(size), nil
}

// WriteBlock stores data at base and returns the cycles charged for moving
// it from the level above.
func (m *Memory) WriteBlock(base uint64, data []byte) (uint64, error) {
	size := uint64(len(data))
	if err := m.checkBlock(base, size); err != nil {
		return 0, err
	}

	if err := m.storage.Write(base, data); err != nil {
		return 0, fmt.Errorf("memory write at 0x%06X: %w", base, err)
	}

	m.writes++

	return m.table.MemoryServiceCycles(size), nil
}

// Peek reads bytes without timing or alignment rules. It is used to
// inspect memory and to dump images.
func (m *Memory) Peek(addr, n uint64) ([]byte, error) {
	if err := m.checkRange(addr, n); err != nil {
		return nil, err
	}
	return m.storage.Read(addr, n)
}

// Poke writes bytes without timing or alignment rules. It is used to load
// the initial memory image.
func (m *Memory) Poke(addr uint64, data []byte) error {
	if err := m.checkRange(addr, uint64(len(data))); err != nil {
		return err
	}
	return m.storage.Write(addr, data)
}

func (m *Memory) checkBlock(base, size uint64) error {
	if size == 0 || size&(size-1) != 0 || base%size != 0 {
		return fmt.Errorf("%w: base 0x%06X, size %d", ErrAlignment, base, size)
	}
	return m.checkRange(base, size)
}

func (m *Memory) checkRange(addr, n uint64) error {
	if addr >= m.size || n > m.size-addr {
		return fmt.Errorf("%w: 0x%X (+%d) outside memory of %d bytes",
			ErrInvalidAddress, addr, n, m.size)
	}
	return nil
}
