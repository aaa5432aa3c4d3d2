// Package latency provides the timing model of the memory hierarchy: its
// configuration, the bus transfer model, and derived per-stage costs.
//
// All costs are expressed in cycles and computed from a TimingConfig.
package latency

// Link is a width-limited channel between two adjacent levels.
type Link struct {
	// Width is the number of payload bytes moved per cycle.
	Width uint64
	// ControlOverhead is added once per transaction.
	ControlOverhead uint64
}

// TransferCycles returns ceil(byteCount / width).
func TransferCycles(byteCount, width uint64) uint64 {
	if width == 0 {
		panic("latency: bus width must be > 0")
	}
	return (byteCount + width - 1) / width
}

// TransferCycles returns the cycles needed to move byteCount bytes across
// the link, including the per-transaction control overhead.
func (l Link) TransferCycles(byteCount uint64) uint64 {
	return TransferCycles(byteCount, l.Width) + l.ControlOverhead
}

// Table provides cost lookups for each stage of an access.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with the default configuration.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with a custom configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// L1HitCycles returns the L1 lookup time.
func (t *Table) L1HitCycles() uint64 {
	return t.config.L1HitLatency
}

// L2HitCycles returns the L2 lookup time.
func (t *Table) L2HitCycles() uint64 {
	return t.config.L2HitLatency
}

// L1L2Link returns the link between L1 and L2.
func (t *Table) L1L2Link() Link {
	return Link{
		Width:           t.config.BusWidthL1L2,
		ControlOverhead: t.config.BusControlOverhead,
	}
}

// MemoryLink returns the link between the last cache level and memory.
func (t *Table) MemoryLink() Link {
	return Link{
		Width:           t.config.BusWidthL2MM,
		ControlOverhead: t.config.BusControlOverhead,
	}
}

// L1L2TransferCycles returns the cycles to move byteCount bytes between L1
// and L2.
func (t *Table) L1L2TransferCycles(byteCount uint64) uint64 {
	return t.L1L2Link().TransferCycles(byteCount)
}

// MemoryServiceCycles returns the cost of main memory serving or absorbing a
// block of byteCount bytes. The fixed latency and the bus transfer are
// separate terms and are summed.
func (t *Table) MemoryServiceCycles(byteCount uint64) uint64 {
	return t.config.MemoryLatency + t.MemoryLink().TransferCycles(byteCount)
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
