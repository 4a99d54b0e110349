package cache

import (
	"fmt"
	"io"
)

// LRUCache is a set-associative cache with a fixed number of ways per set.
// Lines within a set are kept from most to least recently used; when a new
// line arrives at a full set, the least recently used line is evicted.
//
// Reads and writes of a resident line make it the most recently used.
// IsCached does not.
type LRUCache struct {
	*directory

	numWays int
}

// NewLRUCache creates an LRUCache with the given geometry and default
// settings otherwise.
func NewLRUCache(numSets, numWays, lineSize int) (*LRUCache, error) {
	return MakeBuilder().
		WithNumSets(numSets).
		WithNumWays(numWays).
		WithLineSize(lineSize).
		BuildLRU()
}

// NumWays returns the associativity of the cache.
func (c *LRUCache) NumWays() int {
	return c.numWays
}

// Capacity returns the number of lines the cache can hold.
func (c *LRUCache) Capacity() int {
	return c.NumSets() * c.numWays
}

// PrettyPrint writes the occupancy of the cache and a preview of every
// resident line.
func (c *LRUCache) PrettyPrint(w io.Writer, opts PrettyPrintOptions) error {
	layout := dumpLayout{
		header: c.printHeader,
		occupancy: func(set *Set) string {
			return fmt.Sprintf("%d/%d ways occupied", set.Len(), c.numWays)
		},
		rowLabel: func(way int) string {
			return fmt.Sprintf("Way %2d (LRU %2d)", way, way)
		},
	}

	return c.prettyPrint(w, opts, layout)
}

func (c *LRUCache) printHeader(p *dumpWriter) {
	capacity := c.Capacity()
	occupancy := c.TotalLines()
	sizeKB := float64(c.mapper.CapacityBytes(uint64(c.numWays))) / 1024

	p.printf("L1D Cache Status:\n")
	p.printf("  Configuration: %d sets x %d ways x %d bytes\n",
		c.NumSets(), c.numWays, c.LineSize())
	p.printf("  Total Size: %.2f KB\n", sizeKB)
	p.printf("  Occupancy: %d/%d lines (%.1f%%)\n",
		occupancy, capacity, float64(occupancy)/float64(capacity)*100)
}

// lruPolicy keeps the most recently used line at the front of the set.
type lruPolicy struct {
	numWays int
}

func (p lruPolicy) visit(set *Set, way int) {
	set.pushFront(set.remove(way))
}

func (p lruPolicy) update(set *Set, way int, line Line) {
	set.remove(way)
	set.pushFront(line)
}

func (p lruPolicy) insert(set *Set, line Line) (victim Line, evicted bool) {
	if set.Len() >= p.numWays {
		victim = set.remove(set.Len() - 1)
		evicted = true
	}

	set.pushFront(line)

	return victim, evicted
}
