// Package cache models one direct-mapped, write-back cache level using Akita
// cache components for tag and status bookkeeping.
package cache

import (
	"errors"
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

var (
	// ErrPrecededByUncommittedDirtyLine is returned by Install when the
	// target line still holds dirty data that has not been written back.
	ErrPrecededByUncommittedDirtyLine = errors.New(
		"install over an uncommitted dirty line")

	// ErrLineNotValid is returned when reading or writing a line that holds
	// no data.
	ErrLineNotValid = errors.New("line is not valid")
)

// Config holds the parameters of one cache level.
type Config struct {
	// BlockSize in bytes (cache line size)
	BlockSize int
	// LineCount is the number of lines. One line per index.
	LineCount int
	// HitLatency in cycles
	HitLatency uint64
}

// Size returns the capacity in bytes.
func (c Config) Size() int {
	return c.BlockSize * c.LineCount
}

// ProbeResult is the outcome of looking up a (tag, index) pair.
type ProbeResult int

const (
	// Hit means the line is valid and holds the requested tag.
	Hit ProbeResult = iota
	// MissInvalid means the line holds no data.
	MissInvalid
	// MissConflict means the line holds a different tag.
	MissConflict
)

func (r ProbeResult) String() string {
	switch r {
	case Hit:
		return "Hit"
	case MissInvalid:
		return "MissInvalid"
	case MissConflict:
		return "MissConflict"
	default:
		return fmt.Sprintf("ProbeResult(%d)", int(r))
	}
}

// Victim is the current occupant of a line, read out before replacement.
type Victim struct {
	Tag     uint64
	Address uint64
	Data    []byte
	Dirty   bool
}

// LineState is a snapshot of one line.
type LineState struct {
	Valid     bool
	Dirty     bool
	EverValid bool
	Tag       uint64
	Data      []byte
}

// Level is a direct-mapped cache. Its line array is owned by the level and
// mutated only through Install, WriteWord and MarkClean.
type Level struct {
	name     string
	config   Config
	geometry Geometry

	// Akita directory with one way per set holds tag/valid/dirty bits.
	directory *akitacache.DirectoryImpl

	// Data storage - indexed by line index
	dataStore [][]byte

	// everValid is sticky: set on the first install at an index.
	everValid []bool
}

// New creates a cache level over a memory of memorySize bytes.
func New(name string, config Config, memorySize uint64) (*Level, error) {
	geometry, err := NewGeometry(config.BlockSize, config.LineCount, memorySize)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	dataStore := make([][]byte, config.LineCount)
	for i := range dataStore {
		dataStore[i] = make([]byte, config.BlockSize)
	}

	return &Level{
		name:     name,
		config:   config,
		geometry: geometry,
		directory: akitacache.NewDirectory(
			config.LineCount,
			1,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		dataStore: dataStore,
		everValid: make([]bool, config.LineCount),
	}, nil
}

// Name returns the level name, such as "L1".
func (l *Level) Name() string {
	return l.name
}

// Config returns the level configuration.
func (l *Level) Config() Config {
	return l.config
}

// Geometry returns the address layout of the level.
func (l *Level) Geometry() Geometry {
	return l.geometry
}

// Decode splits addr using this level's geometry.
func (l *Level) Decode(addr uint64) (Address, error) {
	return l.geometry.Decode(addr)
}

func (l *Level) block(index uint64) *akitacache.Block {
	return l.directory.GetSets()[index].Blocks[0]
}

func (l *Level) blockAddr(tag, index uint64) uint64 {
	return l.geometry.Compose(tag, index, 0)
}

func (l *Level) tagOf(block *akitacache.Block) uint64 {
	return block.Tag >> (l.geometry.OffsetBits + l.geometry.IndexBits)
}

// Probe looks up tag at index without changing any state.
func (l *Level) Probe(tag, index uint64) ProbeResult {
	block := l.directory.Lookup(0, l.blockAddr(tag, index))
	if block != nil && block.IsValid {
		return Hit
	}

	if l.block(index).IsValid {
		return MissConflict
	}

	return MissInvalid
}

// EverValid reports whether the line at index has ever held data.
func (l *Level) EverValid(index uint64) bool {
	return l.everValid[index]
}

// ReadWord returns a copy of size bytes at offset in the line at index.
func (l *Level) ReadWord(index, offset uint64, size int) ([]byte, error) {
	if err := l.checkAccess(index, offset, uint64(size)); err != nil {
		return nil, err
	}

	block := l.block(index)
	l.directory.Visit(block)

	data := make([]byte, size)
	copy(data, l.dataStore[index][offset:offset+uint64(size)])

	return data, nil
}

// WriteWord stores data at offset in the line at index. The whole line
// becomes dirty regardless of how many bytes are written.
func (l *Level) WriteWord(index, offset uint64, data []byte) error {
	if err := l.checkAccess(index, offset, uint64(len(data))); err != nil {
		return err
	}

	block := l.block(index)
	copy(l.dataStore[index][offset:], data)
	block.IsDirty = true
	l.directory.Visit(block)

	return nil
}

// Install places a clean block with the given tag at index. The previous
// occupant must not be dirty: the caller writes it back and calls
// MarkClean first.
func (l *Level) Install(index, tag uint64, data []byte) error {
	if uint64(len(data)) != l.geometry.BlockSize {
		return fmt.Errorf("%s: install of %d bytes into %d-byte line",
			l.name, len(data), l.geometry.BlockSize)
	}

	addr := l.blockAddr(tag, index)
	victim := l.directory.FindVictim(addr)
	if victim.IsValid && victim.IsDirty {
		return fmt.Errorf("%s line %d: %w", l.name, index,
			ErrPrecededByUncommittedDirtyLine)
	}

	copy(l.dataStore[index], data)
	victim.Tag = addr
	victim.IsValid = true
	victim.IsDirty = false
	l.everValid[index] = true
	l.directory.Visit(victim)

	return nil
}

// Evict reads out the occupant of the line at index without invalidating
// it. It returns false when the line is empty.
func (l *Level) Evict(index uint64) (Victim, bool) {
	block := l.block(index)
	if !block.IsValid {
		return Victim{}, false
	}

	data := make([]byte, len(l.dataStore[index]))
	copy(data, l.dataStore[index])

	return Victim{
		Tag:     l.tagOf(block),
		Address: block.Tag,
		Data:    data,
		Dirty:   block.IsDirty,
	}, true
}

// MarkClean clears the dirty bit of the line at index once its data has
// been committed to the level below.
func (l *Level) MarkClean(index uint64) {
	l.block(index).IsDirty = false
}

// Line returns a snapshot of the line at index.
func (l *Level) Line(index uint64) LineState {
	block := l.block(index)

	data := make([]byte, len(l.dataStore[index]))
	copy(data, l.dataStore[index])

	return LineState{
		Valid:     block.IsValid,
		Dirty:     block.IsDirty,
		EverValid: l.everValid[index],
		Tag:       l.tagOf(block),
		Data:      data,
	}
}

// DirtyIndices returns the indices of all valid dirty lines in order.
func (l *Level) DirtyIndices() []uint64 {
	var indices []uint64
	for i := range l.dataStore {
		block := l.block(uint64(i))
		if block.IsValid && block.IsDirty {
			indices = append(indices, uint64(i))
		}
	}
	return indices
}

// Contents returns the data array of the level, line after line.
func (l *Level) Contents() []byte {
	out := make([]byte, 0, l.config.Size())
	for _, line := range l.dataStore {
		out = append(out, line...)
	}
	return out
}

// Reset invalidates all lines without writeback and clears the sticky
// ever-valid flags.
func (l *Level) Reset() {
	l.directory.Reset()
	for i := range l.dataStore {
		clear(l.dataStore[i])
		l.everValid[i] = false
	}
}

func (l *Level) checkAccess(index, offset, size uint64) error {
	if !l.block(index).IsValid {
		return fmt.Errorf("%s line %d: %w", l.name, index, ErrLineNotValid)
	}
	if size == 0 || offset+size > l.geometry.BlockSize {
		return fmt.Errorf("%s: access of %d bytes at offset %d leaves the %d-byte line",
			l.name, size, offset, l.geometry.BlockSize)
	}
	return nil
}
