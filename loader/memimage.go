package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/memsim/timing/memory"
)

// imageChunk is the granularity at which images are read from memory.
const imageChunk = 4096

// LoadMemoryImageFile loads the image at path into m.
func LoadMemoryImageFile(path string, m *memory.Memory) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open memory image: %w", err)
	}
	defer func() { _ = f.Close() }()

	return LoadMemoryImage(f, m)
}

// LoadMemoryImage stores one hex byte per line into m, starting from address
// 0. Bytes past the end of the image keep their current value. It returns
// the number of bytes loaded.
func LoadMemoryImage(r io.Reader, m *memory.Memory) (uint64, error) {
	var (
		buf    []byte
		base   uint64
		lineNo int
	)

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		if err := m.Poke(base, buf); err != nil {
			return err
		}
		base += uint64(len(buf))
		buf = buf[:0]
		return nil
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		v, err := strconv.ParseUint(line, 16, 8)
		if err != nil {
			return base, fmt.Errorf("memory image line %d: bad byte %q", lineNo, line)
		}

		buf = append(buf, byte(v))
		if len(buf) == imageChunk {
			if err := flush(); err != nil {
				return base, err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return base, fmt.Errorf("failed to read memory image: %w", err)
	}

	if err := flush(); err != nil {
		return base, err
	}

	return base, nil
}

// WriteMemoryImageFile writes the image of m to path.
func WriteMemoryImageFile(path string, m *memory.Memory) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create memory image: %w", err)
	}

	if err := WriteMemoryImage(f, m); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}

// WriteMemoryImage writes m as two uppercase hex digits per line, from
// address 0 up to the last non-zero byte.
func WriteMemoryImage(w io.Writer, m *memory.Memory) error {
	extent, err := Extent(m)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	for addr := uint64(0); addr < extent; addr += imageChunk {
		n := min(imageChunk, extent-addr)

		data, err := m.Peek(addr, n)
		if err != nil {
			return err
		}

		for _, b := range data {
			if _, err := fmt.Fprintf(bw, "%02X\n", b); err != nil {
				return err
			}
		}
	}

	return bw.Flush()
}

// Extent returns one past the address of the last non-zero byte in m.
func Extent(m *memory.Memory) (uint64, error) {
	var extent uint64

	for addr := uint64(0); addr < m.Size(); addr += imageChunk {
		n := min(imageChunk, m.Size()-addr)

		data, err := m.Peek(addr, n)
		if err != nil {
			return 0, err
		}

		for i := len(data) - 1; i >= 0; i-- {
			if data[i] != 0 {
				extent = addr + uint64(i) + 1
				break
			}
		}
	}

	return extent, nil
}
