package hierarchy

import (
	"errors"
	"fmt"

	"github.com/sarchlab/memsim/timing/stats"
)

// WordSize is the number of bytes a read moves when no size is given. The
// hierarchy shortens such a read when fewer bytes remain before the end of
// memory.
const WordSize = 4

// ErrMalformedRequest is returned for requests that cannot be executed
// regardless of hierarchy state.
var ErrMalformedRequest = errors.New("malformed request")

// Op is the request type.
type Op int

const (
	// OpRead loads bytes.
	OpRead Op = iota
	// OpWrite stores bytes.
	OpWrite
)

func (o Op) String() string {
	switch o {
	case OpRead:
		return "Read"
	case OpWrite:
		return "Write"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Request is one data access. Value is required for writes and must be
// empty for reads. Size is the read length in bytes; zero means WordSize.
type Request struct {
	Address uint64
	Op      Op
	Value   []byte
	Size    int
}

// Read builds a read request.
func Read(addr uint64, size int) Request {
	return Request{Address: addr, Op: OpRead, Size: size}
}

// Write builds a write request.
func Write(addr uint64, value []byte) Request {
	return Request{Address: addr, Op: OpWrite, Value: value}
}

// Length returns the number of bytes the request touches.
func (r Request) Length() int {
	if r.Op == OpWrite {
		return len(r.Value)
	}
	if r.Size == 0 {
		return WordSize
	}
	return r.Size
}

// AccessResult is the result of one request.
type AccessResult struct {
	// Cycles charged to the request, including victim write-backs.
	Cycles uint64
	// Data read (reads only).
	Data []byte
	// Outcome tells which level served the request.
	Outcome stats.Outcome
	// L1 and L2 are the per-level outcomes.
	L1 stats.LevelOutcome
	L2 stats.LevelOutcome
	// Writebacks is the number of dirty victims flushed by this request.
	Writebacks int
}

// merge folds the result of one L1 block of a request into r. The lookup
// cycles every block starts with are charged once, by r.
func (r *AccessResult) merge(part AccessResult, lookupCycles uint64) {
	r.Cycles += part.Cycles - lookupCycles
	r.Data = append(r.Data, part.Data...)
	r.Writebacks += part.Writebacks
	r.L1 = max(r.L1, part.L1)
	r.L2 = max(r.L2, part.L2)

	if depth(part.Outcome) > depth(r.Outcome) {
		r.Outcome = part.Outcome
	}
}

// depth orders outcomes by how far into the hierarchy a request travelled.
func depth(o stats.Outcome) int {
	switch o {
	case stats.L1MissNoFetch:
		return 1
	case stats.L1MissL2Hit:
		return 2
	case stats.L1MissL2Miss, stats.L1MissMemory:
		return 3
	default:
		return 0
	}
}
