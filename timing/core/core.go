// Package core replays a request trace against a cache hierarchy the way a
// CPU would issue it: each entry spends its gap cycles on non-memory work and
// then blocks on one memory request.
package core

import (
	"fmt"
	"log"

	"github.com/sarchlab/memsim/loader"
	"github.com/sarchlab/memsim/timing/hierarchy"
)

// ErrorPolicy decides what happens when a trace entry is rejected by the
// hierarchy.
type ErrorPolicy int

const (
	// AbortOnError halts the core on the first rejected request.
	AbortOnError ErrorPolicy = iota
	// SkipOnError counts the rejected request and moves on.
	SkipOnError
)

// Stats holds trace replay statistics.
type Stats struct {
	// Cycles is gap cycles plus memory cycles of the executed entries. A
	// rejected entry adds neither.
	Cycles uint64
	// MemoryCycles is the cycles spent in memory requests.
	MemoryCycles uint64
	// Instructions is the number of memory requests completed.
	Instructions uint64
	// Loads and Stores split Instructions by operation.
	Loads  uint64
	Stores uint64
	// Errors is the number of entries the hierarchy rejected.
	Errors uint64
}

// AMAT returns memory cycles per completed request.
func (s Stats) AMAT() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.MemoryCycles) / float64(s.Instructions)
}

// Option configures a Core.
type Option func(*Core)

// WithErrorPolicy sets how rejected requests are handled.
func WithErrorPolicy(policy ErrorPolicy) Option {
	return func(c *Core) {
		c.policy = policy
	}
}

// WithLogger logs rejected requests.
func WithLogger(logger *log.Logger) Option {
	return func(c *Core) {
		c.logger = logger
	}
}

// Core drives a hierarchy with a trace.
type Core struct {
	Hierarchy *hierarchy.Hierarchy

	entries []loader.Entry
	pc      int
	policy  ErrorPolicy
	logger  *log.Logger

	stats Stats
	err   error
}

// NewCore creates a core that will replay entries against h.
func NewCore(h *hierarchy.Hierarchy, entries []loader.Entry, opts ...Option) *Core {
	c := &Core{
		Hierarchy: h,
		entries:   entries,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Tick executes the next trace entry. It returns false once the core has
// halted, either at the end of the trace or on an aborting error.
func (c *Core) Tick() bool {
	if c.Halted() {
		return false
	}

	entry := c.entries[c.pc]
	c.pc++

	result, err := c.Hierarchy.Access(entry.Request)
	if err != nil {
		c.stats.Errors++
		err = fmt.Errorf("trace line %d: %w", entry.Line, err)
		if c.logger != nil {
			c.logger.Printf("%v", err)
		}
		if c.policy == AbortOnError {
			c.err = err
			return false
		}
		return !c.Halted()
	}

	c.stats.Cycles += entry.Gap + result.Cycles
	c.stats.MemoryCycles += result.Cycles
	c.stats.Instructions++
	if entry.Request.Op == hierarchy.OpWrite {
		c.stats.Stores++
	} else {
		c.stats.Loads++
	}

	return !c.Halted()
}

// Halted returns true at the end of the trace or after an aborting error.
func (c *Core) Halted() bool {
	return c.err != nil || c.pc >= len(c.entries)
}

// Err returns the error that halted the core, if any.
func (c *Core) Err() error {
	return c.err
}

// Stats returns replay statistics so far.
func (c *Core) Stats() Stats {
	return c.stats
}

// Run executes the trace until the core halts.
func (c *Core) Run() error {
	for c.Tick() {
	}
	return c.err
}

// RunEntries executes at most n entries.
// Returns true if still running, false if halted.
func (c *Core) RunEntries(n int) bool {
	for i := 0; i < n; i++ {
		if !c.Tick() {
			return false
		}
	}
	return !c.Halted()
}

// Reset rewinds the trace and clears replay statistics. Hierarchy state is
// left alone.
func (c *Core) Reset() {
	c.pc = 0
	c.stats = Stats{}
	c.err = nil
}
