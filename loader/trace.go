// Package loader reads the text inputs of a simulation run: request traces
// and main memory images.
package loader

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/memsim/timing/hierarchy"
)

// ErrTraceFormat is returned for trace lines that cannot be parsed.
var ErrTraceFormat = errors.New("bad trace line")

// Entry is one trace line: a memory request preceded by Gap cycles of
// non-memory work.
type Entry struct {
	Gap     uint64
	Request hierarchy.Request
	// Line is the 1-based line number in the trace file.
	Line int
}

// LoadTrace parses the trace file at path.
func LoadTrace(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseTrace(f)
}

// ParseTrace parses trace lines of the form
//
//	<gap> <L|S> <hex address> [<hex data>]
//
// Loads read one word. Store data is a big-endian 32-bit value and is
// stored little-endian. Blank lines and lines starting with # are skipped.
func ParseTrace(r io.Reader) ([]Entry, error) {
	var entries []Entry

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entry, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		entry.Line = lineNo

		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}

	return entries, nil
}

func parseLine(line string) (Entry, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return Entry{}, fmt.Errorf("%w: want at least 3 fields, got %d",
			ErrTraceFormat, len(fields))
	}

	gap, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: gap %q", ErrTraceFormat, fields[0])
	}

	addr, err := parseHex(fields[2], 64)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: address %q", ErrTraceFormat, fields[2])
	}

	switch strings.ToUpper(fields[1]) {
	case "L", "R":
		if len(fields) != 3 {
			return Entry{}, fmt.Errorf("%w: load takes no data", ErrTraceFormat)
		}
		return Entry{Gap: gap, Request: hierarchy.Read(addr, 0)}, nil

	case "S", "W":
		if len(fields) != 4 {
			return Entry{}, fmt.Errorf("%w: store needs one data word", ErrTraceFormat)
		}

		word, err := parseHex(fields[3], 32)
		if err != nil {
			return Entry{}, fmt.Errorf("%w: data %q", ErrTraceFormat, fields[3])
		}

		value := make([]byte, hierarchy.WordSize)
		binary.LittleEndian.PutUint32(value, uint32(word))

		return Entry{Gap: gap, Request: hierarchy.Write(addr, value)}, nil

	default:
		return Entry{}, fmt.Errorf("%w: unknown operation %q", ErrTraceFormat, fields[1])
	}
}

func parseHex(s string, bits int) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return strconv.ParseUint(s, 16, bits)
}

// WriteTrace writes entries in the format ParseTrace reads.
func WriteTrace(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)

	for _, e := range entries {
		var err error
		switch e.Request.Op {
		case hierarchy.OpWrite:
			value := make([]byte, hierarchy.WordSize)
			copy(value, e.Request.Value)
			_, err = fmt.Fprintf(bw, "%d S %06X %08X\n",
				e.Gap, e.Request.Address, binary.LittleEndian.Uint32(value))
		default:
			_, err = fmt.Fprintf(bw, "%d L %06X\n", e.Gap, e.Request.Address)
		}
		if err != nil {
			return err
		}
	}

	return bw.Flush()
}
