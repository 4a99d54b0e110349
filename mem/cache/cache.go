// Package cache models the contents of a set-associative L1 data cache.
//
// The package does not model timing. It only tracks which lines are resident,
// in which order, and what bytes they hold. Two variants are provided: the
// LRUCache, which has a fixed number of ways per set and evicts the least
// recently used line, and the UnboundedCache, which never evicts.
//
// A cache is driven inline by a single caller, typically an instruction
// emulator. On a read miss, the cache asks the Memory it is given for exactly
// one line of bytes.
package cache

import (
	"io"

	"github.com/sarchlab/l1dsim/instrumentation/hooking"
)

// Memory is the backing store consulted on a read miss.
type Memory interface {
	// Read returns length bytes starting at address.
	Read(address, length uint64) ([]byte, error)
}

// MemoryFunc adapts a function into a Memory.
type MemoryFunc func(address, length uint64) ([]byte, error)

// Read calls f(address, length).
func (f MemoryFunc) Read(address, length uint64) ([]byte, error) {
	return f(address, length)
}

// A Line is one resident block of the cache.
type Line struct {
	Tag  uint64
	Data []byte
}

// A Set is the ordered list of lines that an address may be stored at.
type Set struct {
	Lines []Line
}

// Len returns the number of resident lines.
func (s *Set) Len() int {
	return len(s.Lines)
}

func (s *Set) find(tag uint64) int {
	for i, line := range s.Lines {
		if line.Tag == tag {
			return i
		}
	}

	return -1
}

func (s *Set) remove(way int) Line {
	line := s.Lines[way]
	s.Lines = append(s.Lines[:way], s.Lines[way+1:]...)

	return line
}

func (s *Set) pushFront(line Line) {
	s.Lines = append(s.Lines, Line{})
	copy(s.Lines[1:], s.Lines)
	s.Lines[0] = line
}

func (s *Set) clone() Set {
	lines := make([]Line, len(s.Lines))
	for i, line := range s.Lines {
		lines[i] = Line{Tag: line.Tag, Data: cloneBytes(line.Data)}
	}

	return Set{Lines: lines}
}

// Cache is the capability shared by both cache variants.
type Cache interface {
	hooking.Hookable

	// Mapper returns the address decomposition used by the cache.
	Mapper() AddressMapper

	// IsCached tells whether the line holding address is resident. It never
	// changes the recency order.
	IsCached(address uint64) bool

	// Read returns the line holding address. On a miss, the line is fetched
	// from memory and installed. Errors from memory are returned unchanged
	// and leave the cache untouched.
	Read(address uint64, memory Memory) ([]byte, error)

	// Write installs data as the line holding address.
	Write(address uint64, data []byte)

	// Flush removes every line.
	Flush()

	// FlushAddress removes the line holding address, if any.
	FlushAddress(address uint64)

	// Reset brings the cache back to its freshly built state.
	Reset()

	// Sets returns a copy of every set, in set-index order.
	Sets() []Set

	// PrettyPrint writes a human-readable dump of the cache.
	PrettyPrint(w io.Writer, opts PrettyPrintOptions) error
}

func cloneBytes(data []byte) []byte {
	if data == nil {
		return nil
	}

	out := make([]byte, len(data))
	copy(out, data)

	return out
}

var (
	_ Cache = (*LRUCache)(nil)
	_ Cache = (*UnboundedCache)(nil)
)
