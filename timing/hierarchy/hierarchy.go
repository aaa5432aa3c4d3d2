// Package hierarchy orchestrates requests through L1, an optional L2 and main
// memory. It owns every level for the lifetime of a run and sequences
// evictions, write-backs and fills so that a dirty line is always committed
// below before its slot is reused.
package hierarchy

import (
	"fmt"
	"log"

	"github.com/sarchlab/memsim/timing/cache"
	"github.com/sarchlab/memsim/timing/latency"
	"github.com/sarchlab/memsim/timing/memory"
	"github.com/sarchlab/memsim/timing/stats"
)

// Recorder observes every completed request.
type Recorder interface {
	Record(req Request, result AccessResult)
}

// Option configures a Hierarchy.
type Option func(*Hierarchy)

// WithLogger logs write-backs and fills from memory.
func WithLogger(logger *log.Logger) Option {
	return func(h *Hierarchy) {
		h.logger = logger
	}
}

// WithRecorder adds a recorder that sees every completed request.
func WithRecorder(recorder Recorder) Option {
	return func(h *Hierarchy) {
		h.recorders = append(h.recorders, recorder)
	}
}

// Hierarchy is a direct-mapped, write-back, write-allocate cache hierarchy.
// It is not safe for concurrent use; requests run one at a time to
// completion.
type Hierarchy struct {
	config *latency.TimingConfig
	table  *latency.Table

	l1     *cache.Level
	l2     *cache.Level
	memory *memory.Memory

	stats     *stats.Collector
	logger    *log.Logger
	recorders []Recorder
}

// New validates config and builds a cold hierarchy.
func New(config *latency.TimingConfig, opts ...Option) (*Hierarchy, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	config = config.Clone()
	table := latency.NewTableWithConfig(config)

	h := &Hierarchy{
		config: config,
		table:  table,
		memory: memory.New(table),
		stats:  stats.NewCollector(config),
	}

	var err error
	h.l1, err = cache.New("L1", cache.Config{
		BlockSize:  config.L1BlockSize,
		LineCount:  config.L1LineCount,
		HitLatency: config.L1HitLatency,
	}, config.MemorySize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", latency.ErrConfiguration, err)
	}

	if config.L2Present {
		h.l2, err = cache.New("L2", cache.Config{
			BlockSize:  config.L2BlockSize,
			LineCount:  config.L2LineCount,
			HitLatency: config.L2HitLatency,
		}, config.MemorySize)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", latency.ErrConfiguration, err)
		}
	}

	for _, opt := range opts {
		opt(h)
	}

	return h, nil
}

// Config returns a copy of the configuration the hierarchy was built with.
func (h *Hierarchy) Config() *latency.TimingConfig {
	return h.config.Clone()
}

// L1 returns the first cache level.
func (h *Hierarchy) L1() *cache.Level {
	return h.l1
}

// L2 returns the second cache level, or nil when it is not configured.
func (h *Hierarchy) L2() *cache.Level {
	return h.l2
}

// Memory returns main memory.
func (h *Hierarchy) Memory() *memory.Memory {
	return h.memory
}

// Stats returns the statistics collector.
func (h *Hierarchy) Stats() *stats.Collector {
	return h.stats
}

// Report returns the end-of-run statistics record.
func (h *Hierarchy) Report() stats.Report {
	return h.stats.Report()
}

// ResetStats clears the statistics without touching cache or memory state.
func (h *Hierarchy) ResetStats() {
	h.stats.Reset()
}

// Read loads size bytes from addr. A size of 0 reads one word.
func (h *Hierarchy) Read(addr uint64, size int) (AccessResult, error) {
	return h.Access(Read(addr, size))
}

// Write stores value at addr.
func (h *Hierarchy) Write(addr uint64, value []byte) (AccessResult, error) {
	return h.Access(Write(addr, value))
}

// Access runs one request to completion. A request that spans several L1
// blocks is served block by block; it pays the L1 lookup once plus the miss
// penalty of every block that was not resident. A request that fails
// validation returns an error and leaves the hierarchy and statistics
// untouched.
func (h *Hierarchy) Access(req Request) (AccessResult, error) {
	req = h.sized(req)
	if err := h.check(req); err != nil {
		return AccessResult{}, err
	}

	lookupCycles := h.table.L1HitCycles()
	result := AccessResult{Cycles: lookupCycles, Outcome: stats.L1Hit}

	for _, p := range h.split(req) {
		var part AccessResult
		switch req.Op {
		case OpRead:
			part = h.read(p)
		case OpWrite:
			part = h.write(p, req.Value[p.start:p.start+p.size])
		}
		result.merge(part, lookupCycles)
	}

	h.stats.Record(result.Outcome, stats.Event{
		Write:  req.Op == OpWrite,
		L1:     result.L1,
		L2:     result.L2,
		Cycles: result.Cycles,
	})

	for _, r := range h.recorders {
		r.Record(req, result)
	}

	return result, nil
}

// FlushAll writes every dirty line back toward memory, L1 first. Lines stay
// valid and become clean. It returns the cycles spent, which are not charged
// to any request.
func (h *Hierarchy) FlushAll() uint64 {
	var (
		scratch AccessResult
		cycles  uint64
	)

	for _, index := range h.l1.DirtyIndices() {
		cycles += h.writeBackL1(index, &scratch)
	}

	if h.l2 != nil {
		for _, index := range h.l2.DirtyIndices() {
			cycles += h.writeBackL2(index, &scratch)
		}
	}

	h.stats.RecordFlushCycles(cycles)
	h.logf("flush: %d write-backs, %d cycles", scratch.Writebacks, cycles)

	return cycles
}

// sized fills in the length of a default-size read. A word read near the
// end of memory is cut short at the last byte.
func (h *Hierarchy) sized(req Request) Request {
	if req.Op == OpRead && req.Size == 0 && req.Address < h.config.MemorySize {
		req.Size = int(min(uint64(WordSize), h.config.MemorySize-req.Address))
	}
	return req
}

func (h *Hierarchy) check(req Request) error {
	switch req.Op {
	case OpRead:
		if len(req.Value) != 0 {
			return fmt.Errorf("%w: read carries a value", ErrMalformedRequest)
		}
		if req.Size < 0 {
			return fmt.Errorf("%w: negative read size %d",
				ErrMalformedRequest, req.Size)
		}
	case OpWrite:
		if len(req.Value) == 0 {
			return fmt.Errorf("%w: write without a value", ErrMalformedRequest)
		}
	default:
		return fmt.Errorf("%w: unknown operation %v", ErrMalformedRequest, req.Op)
	}

	if _, err := h.l1.Decode(req.Address); err != nil {
		return err
	}

	n := uint64(req.Length())
	if n > h.config.MemorySize-req.Address {
		return fmt.Errorf("%w: %d bytes at 0x%X run past the end of memory",
			cache.ErrInvalidAddress, n, req.Address)
	}

	return nil
}

// piece is the part of a request that falls in one L1 block.
type piece struct {
	address uint64
	addr    cache.Address
	start   int
	size    int
}

// split cuts a validated request at L1 block boundaries.
func (h *Hierarchy) split(req Request) []piece {
	blockSize := uint64(h.config.L1BlockSize)
	n := uint64(req.Length())

	var pieces []piece
	for done := uint64(0); done < n; {
		address := req.Address + done
		addr, err := h.l1.Decode(address)
		h.must(err)

		size := min(blockSize-addr.Offset, n-done)
		pieces = append(pieces, piece{
			address: address,
			addr:    addr,
			start:   int(done),
			size:    int(size),
		})
		done += size
	}

	return pieces
}

func (h *Hierarchy) read(p piece) AccessResult {
	result := h.lookup(p.address, p.addr)

	data, err := h.l1.ReadWord(p.addr.Index, p.addr.Offset, p.size)
	h.must(err)
	result.Data = data

	return result
}

func (h *Hierarchy) write(p piece, value []byte) AccessResult {
	if h.config.WriteFullBlockFastPath &&
		p.addr.Offset == 0 && len(value) == h.config.L1BlockSize {
		probe := h.l1.Probe(p.addr.Tag, p.addr.Index)
		if probe != cache.Hit {
			return h.writeWithoutFetch(value, p.addr, probe)
		}
	}

	result := h.lookup(p.address, p.addr)
	h.must(h.l1.WriteWord(p.addr.Index, p.addr.Offset, value))

	return result
}

// writeWithoutFetch installs a block that a write overwrites entirely. Only
// the L1 victim write-back is charged on top of the L1 lookup.
func (h *Hierarchy) writeWithoutFetch(
	value []byte,
	addr cache.Address,
	probe cache.ProbeResult,
) AccessResult {
	result := AccessResult{
		Cycles:  h.table.L1HitCycles(),
		Outcome: stats.L1MissNoFetch,
		L1:      classify(h.l1, probe, addr.Index),
	}

	result.Cycles += h.writeBackL1(addr.Index, &result)
	h.must(h.l1.Install(addr.Index, addr.Tag, value))
	h.must(h.l1.WriteWord(addr.Index, 0, value))

	return result
}

// lookup makes the L1 block holding address resident and returns the cost
// of doing so.
func (h *Hierarchy) lookup(address uint64, addr cache.Address) AccessResult {
	result := AccessResult{
		Cycles:  h.table.L1HitCycles(),
		Outcome: stats.L1Hit,
		L1:      stats.Hit,
	}

	probe := h.l1.Probe(addr.Tag, addr.Index)
	if probe == cache.Hit {
		return result
	}

	result.L1 = classify(h.l1, probe, addr.Index)
	result.Cycles += h.writeBackL1(addr.Index, &result)

	var block []byte
	if h.l2 == nil {
		block = h.fetchFromMemory(address, &result)
	} else {
		block = h.fetchFromL2(address, &result)
	}

	h.must(h.l1.Install(addr.Index, addr.Tag, block))

	return result
}

func (h *Hierarchy) fetchFromMemory(address uint64, result *AccessResult) []byte {
	base := h.l1.Geometry().BlockBase(address)

	data, cycles, err := h.memory.ReadBlock(base, uint64(h.config.L1BlockSize))
	h.must(err)

	result.Cycles += cycles
	result.Outcome = stats.L1MissMemory
	h.logf("L1 fill 0x%06X from memory (%d cycles)", base, cycles)

	return data
}

// fetchFromL2 returns the L1-sized block holding address, filling L2 from
// memory first when needed.
func (h *Hierarchy) fetchFromL2(address uint64, result *AccessResult) []byte {
	l2Addr, err := h.l2.Decode(address)
	h.must(err)

	result.Cycles += h.table.L2HitCycles()

	probe := h.l2.Probe(l2Addr.Tag, l2Addr.Index)
	if probe == cache.Hit {
		result.L2 = stats.Hit
		result.Outcome = stats.L1MissL2Hit
	} else {
		result.L2 = classify(h.l2, probe, l2Addr.Index)
		result.Outcome = stats.L1MissL2Miss
		result.Cycles += h.fillL2(address, l2Addr, result)
	}

	l1BlockSize := uint64(h.config.L1BlockSize)
	sub := h.l1.Geometry().BlockBase(address) - h.l2.Geometry().BlockBase(address)

	data, err := h.l2.ReadWord(l2Addr.Index, sub, int(l1BlockSize))
	h.must(err)
	result.Cycles += h.table.L1L2TransferCycles(l1BlockSize)

	return data
}

// fillL2 flushes the L2 victim at the target index and installs the block
// holding address from memory.
func (h *Hierarchy) fillL2(
	address uint64,
	l2Addr cache.Address,
	result *AccessResult,
) uint64 {
	cycles := h.writeBackL2(l2Addr.Index, result)

	base := h.l2.Geometry().BlockBase(address)
	data, readCycles, err := h.memory.ReadBlock(base, uint64(h.config.L2BlockSize))
	h.must(err)
	cycles += readCycles

	h.must(h.l2.Install(l2Addr.Index, l2Addr.Tag, data))
	h.logf("L2 fill 0x%06X from memory (%d cycles)", base, readCycles)

	return cycles
}

// writeBackL1 commits a dirty L1 victim at index to the level below.
func (h *Hierarchy) writeBackL1(index uint64, result *AccessResult) uint64 {
	victim, ok := h.l1.Evict(index)
	if !ok || !victim.Dirty {
		return 0
	}

	var cycles uint64
	if h.l2 == nil {
		c, err := h.memory.WriteBlock(victim.Address, victim.Data)
		h.must(err)
		cycles = c
	} else {
		cycles = h.writeIntoL2(victim.Address, victim.Data, result)
	}

	h.l1.MarkClean(index)
	h.stats.RecordWriteback("L1")
	result.Writebacks++
	h.logf("L1 write-back 0x%06X (%d cycles)", victim.Address, cycles)

	return cycles
}

// writeIntoL2 merges an L1 block into L2, allocating the L2 block first if
// it is not resident.
func (h *Hierarchy) writeIntoL2(
	address uint64,
	data []byte,
	result *AccessResult,
) uint64 {
	l2Addr, err := h.l2.Decode(address)
	h.must(err)

	cycles := h.table.L1L2TransferCycles(uint64(len(data))) +
		h.table.L2HitCycles()

	if h.l2.Probe(l2Addr.Tag, l2Addr.Index) != cache.Hit {
		cycles += h.fillL2(address, l2Addr, result)
	}

	h.must(h.l2.WriteWord(l2Addr.Index, l2Addr.Offset, data))

	return cycles
}

// writeBackL2 commits a dirty L2 victim at index to memory.
func (h *Hierarchy) writeBackL2(index uint64, result *AccessResult) uint64 {
	victim, ok := h.l2.Evict(index)
	if !ok || !victim.Dirty {
		return 0
	}

	cycles, err := h.memory.WriteBlock(victim.Address, victim.Data)
	h.must(err)

	h.l2.MarkClean(index)
	h.stats.RecordWriteback("L2")
	result.Writebacks++
	h.logf("L2 write-back 0x%06X (%d cycles)", victim.Address, cycles)

	return cycles
}

func classify(
	level *cache.Level,
	probe cache.ProbeResult,
	index uint64,
) stats.LevelOutcome {
	if probe == cache.Hit {
		return stats.Hit
	}
	if level.EverValid(index) {
		return stats.ConflictMiss
	}
	return stats.CompulsoryMiss
}

// must turns a broken internal contract into a panic. Alignment errors and
// installs over dirty lines can only come from a sequencing bug here.
func (h *Hierarchy) must(err error) {
	if err != nil {
		panic(fmt.Errorf("hierarchy: %w", err))
	}
}

func (h *Hierarchy) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}
