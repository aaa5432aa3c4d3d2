// Package stats accumulates per-level hit and miss counts for a simulation
// run and derives miss rates and Average Memory Access Time.
package stats

import (
	"fmt"

	"github.com/sarchlab/memsim/timing/latency"
)

// LevelOutcome is what happened to a request at one cache level.
type LevelOutcome int

const (
	// NotAccessed means the request never reached the level.
	NotAccessed LevelOutcome = iota
	// Hit means the level held the block.
	Hit
	// CompulsoryMiss is a miss on a line that has never held data.
	CompulsoryMiss
	// ConflictMiss is a miss on a line that has held data before.
	ConflictMiss
)

// IsMiss returns true for both miss kinds.
func (o LevelOutcome) IsMiss() bool {
	return o == CompulsoryMiss || o == ConflictMiss
}

func (o LevelOutcome) String() string {
	switch o {
	case NotAccessed:
		return "NotAccessed"
	case Hit:
		return "Hit"
	case CompulsoryMiss:
		return "CompulsoryMiss"
	case ConflictMiss:
		return "ConflictMiss"
	default:
		return fmt.Sprintf("LevelOutcome(%d)", int(o))
	}
}

// Outcome summarizes how far into the hierarchy a request travelled.
type Outcome int

const (
	// L1Hit is served by L1.
	L1Hit Outcome = iota
	// L1MissL2Hit is served by L2.
	L1MissL2Hit
	// L1MissL2Miss is served by main memory through L2.
	L1MissL2Miss
	// L1MissMemory is served by main memory with no L2 configured.
	L1MissMemory
	// L1MissNoFetch is a full-block write miss that skipped the fetch.
	L1MissNoFetch
)

func (o Outcome) String() string {
	switch o {
	case L1Hit:
		return "L1_HIT"
	case L1MissL2Hit:
		return "L1_MISS_L2_HIT"
	case L1MissL2Miss:
		return "L1_MISS_L2_MISS"
	case L1MissMemory:
		return "L1_MISS_MEMORY"
	case L1MissNoFetch:
		return "L1_MISS_NO_FETCH"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Event is the record of one completed request.
type Event struct {
	Write  bool
	L1     LevelOutcome
	L2     LevelOutcome
	Cycles uint64
}

// Counters holds the running counts of one level.
type Counters struct {
	Reads            uint64 `json:"reads"`
	Writes           uint64 `json:"writes"`
	ReadHits         uint64 `json:"read_hits"`
	WriteHits        uint64 `json:"write_hits"`
	CompulsoryMisses uint64 `json:"compulsory_misses"`
	ConflictMisses   uint64 `json:"conflict_misses"`
	Writebacks       uint64 `json:"writebacks"`
}

// Accesses returns the number of requests that reached the level.
func (c Counters) Accesses() uint64 {
	return c.Reads + c.Writes
}

// Hits returns read hits plus write hits.
func (c Counters) Hits() uint64 {
	return c.ReadHits + c.WriteHits
}

// Misses returns compulsory plus conflict misses.
func (c Counters) Misses() uint64 {
	return c.CompulsoryMisses + c.ConflictMisses
}

// ReadMisses returns the reads that missed.
func (c Counters) ReadMisses() uint64 {
	return c.Reads - c.ReadHits
}

// WriteMisses returns the writes that missed.
func (c Counters) WriteMisses() uint64 {
	return c.Writes - c.WriteHits
}

func (c *Counters) record(write bool, outcome LevelOutcome) {
	if outcome == NotAccessed {
		return
	}

	if write {
		c.Writes++
	} else {
		c.Reads++
	}

	switch outcome {
	case Hit:
		if write {
			c.WriteHits++
		} else {
			c.ReadHits++
		}
	case CompulsoryMiss:
		c.CompulsoryMisses++
	case ConflictMiss:
		c.ConflictMisses++
	}
}

// Collector accumulates events for one simulation run.
type Collector struct {
	config *latency.TimingConfig
	table  *latency.Table

	l1 Counters
	l2 Counters

	outcomes    map[Outcome]uint64
	requests    uint64
	cycles      uint64
	flushCycles uint64
}

// NewCollector creates a collector for a hierarchy built from config.
func NewCollector(config *latency.TimingConfig) *Collector {
	return &Collector{
		config:   config,
		table:    latency.NewTableWithConfig(config),
		outcomes: make(map[Outcome]uint64),
	}
}

// Record adds one completed request.
func (c *Collector) Record(outcome Outcome, event Event) {
	c.requests++
	c.cycles += event.Cycles
	c.outcomes[outcome]++
	c.l1.record(event.Write, event.L1)
	c.l2.record(event.Write, event.L2)
}

// RecordWriteback counts a dirty line flushed out of the named level
// ("L1" or "L2").
func (c *Collector) RecordWriteback(level string) {
	switch level {
	case "L1":
		c.l1.Writebacks++
	case "L2":
		c.l2.Writebacks++
	default:
		panic(fmt.Sprintf("stats: unknown level %q", level))
	}
}

// RecordFlushCycles adds cycles spent by an explicit flush of the hierarchy.
func (c *Collector) RecordFlushCycles(cycles uint64) {
	c.flushCycles += cycles
}

// L1 returns the L1 counters.
func (c *Collector) L1() Counters {
	return c.l1
}

// L2 returns the L2 counters. They stay zero when L2 is absent.
func (c *Collector) L2() Counters {
	return c.l2
}

// Requests returns the number of completed requests.
func (c *Collector) Requests() uint64 {
	return c.requests
}

// Cycles returns the total cycles charged to requests.
func (c *Collector) Cycles() uint64 {
	return c.cycles
}

// OutcomeCount returns how many requests ended with the given outcome.
func (c *Collector) OutcomeCount(o Outcome) uint64 {
	return c.outcomes[o]
}

// Reset clears all counters.
func (c *Collector) Reset() {
	c.l1 = Counters{}
	c.l2 = Counters{}
	c.outcomes = make(map[Outcome]uint64)
	c.requests = 0
	c.cycles = 0
	c.flushCycles = 0
}

// LocalMissRate returns misses / accesses at the level, 0 when idle.
func LocalMissRate(c Counters) float64 {
	if c.Accesses() == 0 {
		return 0
	}
	return float64(c.Misses()) / float64(c.Accesses())
}

// GlobalMissRate returns misses at the level divided by the number of
// requests that entered the hierarchy at L1.
func (c *Collector) GlobalMissRate(level Counters) float64 {
	if c.l1.Accesses() == 0 {
		return 0
	}
	return float64(level.Misses()) / float64(c.l1.Accesses())
}

// MemoryEquivalentCycles is the cost of main memory serving one block of
// the given size, including bus time.
func (c *Collector) MemoryEquivalentCycles(blockSize uint64) float64 {
	return float64(c.table.MemoryServiceCycles(blockSize))
}

// AMATL2 returns l2_hit + local_miss_rate_L2 * memory time for an L2 block.
// It is 0 when L2 is absent.
func (c *Collector) AMATL2() float64 {
	if !c.config.L2Present {
		return 0
	}
	return float64(c.config.L2HitLatency) +
		LocalMissRate(c.l2)*c.MemoryEquivalentCycles(uint64(c.config.L2BlockSize))
}

// AMATL1 returns l1_hit + local_miss_rate_L1 * penalty, where the penalty is
// AMATL2 with L2 present and the memory time for an L1 block otherwise.
func (c *Collector) AMATL1() float64 {
	penalty := c.AMATL2()
	if !c.config.L2Present {
		penalty = c.MemoryEquivalentCycles(uint64(c.config.L1BlockSize))
	}
	return float64(c.config.L1HitLatency) + LocalMissRate(c.l1)*penalty
}

// LevelReport is the end-of-run summary of one level.
type LevelReport struct {
	Name string `json:"name"`
	Counters
	Hits           uint64  `json:"hits"`
	Misses         uint64  `json:"misses"`
	LocalMissRate  float64 `json:"local_miss_rate"`
	GlobalMissRate float64 `json:"global_miss_rate"`
}

// Report is the end-of-run statistics record.
type Report struct {
	Levels       []LevelReport     `json:"levels"`
	HasL2        bool              `json:"has_l2"`
	AMATL1       float64           `json:"amat_l1"`
	AMATL2       float64           `json:"amat_l2,omitempty"`
	Requests     uint64            `json:"requests"`
	Cycles       uint64            `json:"cycles"`
	FlushCycles  uint64            `json:"flush_cycles"`
	MeasuredAMAT float64           `json:"measured_amat"`
	Outcomes     map[string]uint64 `json:"outcomes"`
}

// Report builds the statistics record for the run so far.
func (c *Collector) Report() Report {
	r := Report{
		HasL2:       c.config.L2Present,
		AMATL1:      c.AMATL1(),
		AMATL2:      c.AMATL2(),
		Requests:    c.requests,
		Cycles:      c.cycles,
		FlushCycles: c.flushCycles,
		Outcomes:    make(map[string]uint64, len(c.outcomes)),
	}

	if c.requests > 0 {
		r.MeasuredAMAT = float64(c.cycles) / float64(c.requests)
	}

	for o, n := range c.outcomes {
		r.Outcomes[o.String()] = n
	}

	r.Levels = append(r.Levels, c.levelReport("L1", c.l1))
	if c.config.L2Present {
		r.Levels = append(r.Levels, c.levelReport("L2", c.l2))
	}

	return r
}

func (c *Collector) levelReport(name string, counters Counters) LevelReport {
	return LevelReport{
		Name:           name,
		Counters:       counters,
		Hits:           counters.Hits(),
		Misses:         counters.Misses(),
		LocalMissRate:  LocalMissRate(counters),
		GlobalMissRate: c.GlobalMissRate(counters),
	}
}
