package cache

import (
	"github.com/sarchlab/l1dsim/instrumentation/hooking"
)

// A replacementPolicy decides where lines are placed within a set.
type replacementPolicy interface {
	// visit is called when a resident line is read.
	visit(set *Set, way int)

	// update stores a new value for a resident line.
	update(set *Set, way int, line Line)

	// insert places a line whose tag is not resident, returning the line it
	// had to evict, if any.
	insert(set *Set, line Line) (victim Line, evicted bool)
}

// A directory keeps the sets of a cache and implements the operations that
// both cache variants share. The placement of lines within a set is left to
// the replacement policy.
type directory struct {
	*hooking.HookableBase

	domain hooking.Hookable
	mapper AddressMapper
	policy replacementPolicy
	sets   []Set
	debug  bool
}

func newDirectory(
	numSets, lineSize uint64,
	policy replacementPolicy,
) *directory {
	d := &directory{
		HookableBase: hooking.NewHookableBase(),
		mapper:       AddressMapper{NumSets: numSets, LineSize: lineSize},
		policy:       policy,
	}

	d.clear()

	return d
}

func (d *directory) clear() {
	d.sets = make([]Set, d.mapper.NumSets)
}

func (d *directory) locate(address uint64) (set *Set, setIndex, tag uint64) {
	setIndex, tag = d.mapper.Decompose(address)
	set = &d.sets[setIndex]

	return set, setIndex, tag
}

// Mapper returns the address decomposition used by the cache.
func (d *directory) Mapper() AddressMapper {
	return d.mapper
}

// NumSets returns the number of sets.
func (d *directory) NumSets() int {
	return int(d.mapper.NumSets)
}

// LineSize returns the number of bytes per line.
func (d *directory) LineSize() int {
	return int(d.mapper.LineSize)
}

// Debug tells whether the cache traces every operation.
func (d *directory) Debug() bool {
	return d.debug
}

// IsCached tells whether the line holding address is resident.
func (d *directory) IsCached(address uint64) bool {
	set, setIndex, tag := d.locate(address)
	way := set.find(tag)

	d.traceLookup(address, setIndex, tag, way)

	return way >= 0
}

// Read returns the bytes of the line holding address, fetching the line from
// memory on a miss.
func (d *directory) Read(address uint64, memory Memory) ([]byte, error) {
	set, setIndex, tag := d.locate(address)
	d.traceRead(address, setIndex, tag)

	way := set.find(tag)
	if way >= 0 {
		data := cloneBytes(set.Lines[way].Data)
		d.policy.visit(set, way)
		d.traceHit(address, setIndex, tag, way, data)

		return data, nil
	}

	d.traceMiss(address, setIndex, tag)

	data, err := memory.Read(address, d.mapper.LineSize)
	if err != nil {
		return nil, err
	}

	d.Write(address, data)

	return data, nil
}

// Write installs data as the line holding address.
func (d *directory) Write(address uint64, data []byte) {
	set, setIndex, tag := d.locate(address)
	line := Line{Tag: tag, Data: cloneBytes(data)}

	if way := set.find(tag); way >= 0 {
		d.policy.update(set, way, line)
		d.traceWrite(address, setIndex, tag, data, true)

		return
	}

	victim, evicted := d.policy.insert(set, line)
	if evicted {
		d.traceEvict(setIndex, victim)
	}

	d.traceWrite(address, setIndex, tag, data, false)
}

// Flush removes every line.
func (d *directory) Flush() {
	d.clear()
	d.traceFlush()
}

// FlushAddress removes the line holding address. It does nothing if the line
// is not resident.
func (d *directory) FlushAddress(address uint64) {
	set, setIndex, tag := d.locate(address)

	way := set.find(tag)
	if way >= 0 {
		set.remove(way)
	}

	d.traceFlushAddress(address, setIndex, tag, way)
}

// Reset brings the cache back to its freshly built state. As the sets are the
// only mutable state, this is a flush.
func (d *directory) Reset() {
	d.Flush()
	d.traceReset()
}

// Sets returns a copy of every set, in set-index order.
func (d *directory) Sets() []Set {
	sets := make([]Set, len(d.sets))
	for i := range d.sets {
		sets[i] = d.sets[i].clone()
	}

	return sets
}

// TotalLines returns the number of resident lines across all sets.
func (d *directory) TotalLines() int {
	total := 0
	for i := range d.sets {
		total += d.sets[i].Len()
	}

	return total
}
