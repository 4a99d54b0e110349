package cache

import (
	"fmt"
	"io"
)

// UnboundedCache uses the same sets and tags as the LRUCache but lets every
// set grow without limit, so lines are never evicted. Lines stay in the order
// they were installed; there is no notion of recency.
type UnboundedCache struct {
	*directory
}

// NewUnboundedCache creates an UnboundedCache with the given geometry and
// default settings otherwise.
func NewUnboundedCache(numSets, lineSize int) (*UnboundedCache, error) {
	return MakeBuilder().
		WithNumSets(numSets).
		WithLineSize(lineSize).
		BuildUnbounded()
}

// UnboundedStats summarizes how far the sets of an UnboundedCache have grown.
type UnboundedStats struct {
	TotalLines   int `json:"total_lines"`
	MaxSetSize   int `json:"max_set_size"`
	NonEmptySets int `json:"non_empty_sets"`
	TotalSets    int `json:"total_sets"`
}

// Stats returns the current growth statistics.
func (c *UnboundedCache) Stats() UnboundedStats {
	stats := UnboundedStats{TotalSets: c.NumSets()}

	for i := range c.sets {
		n := c.sets[i].Len()

		stats.TotalLines += n
		if n > stats.MaxSetSize {
			stats.MaxSetSize = n
		}

		if n > 0 {
			stats.NonEmptySets++
		}
	}

	return stats
}

// PrettyPrint writes the growth statistics of the cache and a preview of
// every resident line.
func (c *UnboundedCache) PrettyPrint(
	w io.Writer,
	opts PrettyPrintOptions,
) error {
	layout := dumpLayout{
		header: c.printHeader,
		occupancy: func(set *Set) string {
			return fmt.Sprintf("%d lines", set.Len())
		},
		rowLabel: func(way int) string {
			return fmt.Sprintf("Line %2d", way)
		},
	}

	return c.prettyPrint(w, opts, layout)
}

func (c *UnboundedCache) printHeader(p *dumpWriter) {
	stats := c.Stats()

	p.printf("L1D Cache Status (Infinite Sets):\n")
	p.printf("  Configuration: %d sets x unlimited ways x %d bytes\n",
		c.NumSets(), c.LineSize())
	p.printf("  Total Lines: %d\n", stats.TotalLines)
	p.printf("  Largest Set: %d lines\n", stats.MaxSetSize)
	p.printf("  Non-empty Sets: %d/%d\n", stats.NonEmptySets, stats.TotalSets)
}

// appendPolicy appends new lines and updates resident ones in place.
type appendPolicy struct{}

func (appendPolicy) visit(*Set, int) {}

func (appendPolicy) update(set *Set, way int, line Line) {
	set.Lines[way] = line
}

func (appendPolicy) insert(set *Set, line Line) (Line, bool) {
	set.Lines = append(set.Lines, line)
	return Line{}, false
}
