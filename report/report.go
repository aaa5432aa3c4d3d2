// Package report writes the end-of-run outputs of a simulation: the stats
// file, a JSON report, cache level dumps and an optional per-request SQLite
// database.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/memsim/timing/cache"
	"github.com/sarchlab/memsim/timing/stats"
)

// Summary is everything the stats file needs about one run.
type Summary struct {
	stats.Report
	// TotalCycles includes non-memory gap cycles.
	TotalCycles uint64 `json:"total_cycles"`
	// MemoryCycles and MemoryInstructions give the measured AMAT.
	MemoryCycles       uint64 `json:"memory_cycles"`
	MemoryInstructions uint64 `json:"memory_instructions"`
	// RunID names the run in the SQLite database, if one was written.
	RunID string `json:"run_id,omitempty"`
}

// AMAT returns memory cycles per memory instruction.
func (s Summary) AMAT() float64 {
	if s.MemoryInstructions == 0 {
		return 0
	}
	return float64(s.MemoryCycles) / float64(s.MemoryInstructions)
}

// WriteStats writes one value per line: total cycles, the four L1 counts
// (read hits, write hits, read misses, write misses), the same for L2 (zeros
// without L2), L1 miss rate, global miss rate and AMAT.
func WriteStats(w io.Writer, s Summary) error {
	var l1, l2 stats.LevelReport
	l1 = s.Levels[0]
	if len(s.Levels) > 1 {
		l2 = s.Levels[1]
	}

	global := l1.GlobalMissRate
	if s.HasL2 {
		global = l2.GlobalMissRate
	}

	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "%d\n", s.TotalCycles)
	for _, level := range []stats.LevelReport{l1, l2} {
		fmt.Fprintf(bw, "%d\n%d\n%d\n%d\n",
			level.ReadHits, level.WriteHits,
			level.ReadMisses(), level.WriteMisses())
	}
	fmt.Fprintf(bw, "%.4f\n", l1.LocalMissRate)
	fmt.Fprintf(bw, "%.4f\n", global)
	fmt.Fprintf(bw, "%.4f\n", s.AMAT())

	return bw.Flush()
}

// WriteStatsFile writes the stats file to path.
func WriteStatsFile(path string, s Summary) error {
	return writeFile(path, func(w io.Writer) error { return WriteStats(w, s) })
}

// WriteJSON writes the full summary as indented JSON.
func WriteJSON(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// WriteJSONFile writes the JSON summary to path.
func WriteJSONFile(path string, s Summary) error {
	return writeFile(path, func(w io.Writer) error { return WriteJSON(w, s) })
}

// DumpLevel writes the data array of a level, one uppercase hex byte per
// line, line by line in index order. Lines that never held data dump as
// zeros.
func DumpLevel(w io.Writer, level *cache.Level) error {
	bw := bufio.NewWriter(w)

	for _, b := range level.Contents() {
		if _, err := fmt.Fprintf(bw, "%02X\n", b); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// DumpLevelFile writes the dump of level to path.
func DumpLevelFile(path string, level *cache.Level) error {
	return writeFile(path, func(w io.Writer) error { return DumpLevel(w, level) })
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return f.Close()
}
