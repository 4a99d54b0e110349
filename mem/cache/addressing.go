package cache

// An AddressMapper splits a byte address into the set that may hold it and
// the tag that identifies its line inside that set.
//
// Both cache variants share one mapper so that a given address decomposes the
// same way regardless of the replacement policy.
type AddressMapper struct {
	NumSets  uint64
	LineSize uint64
}

// SetIndex returns the set an address maps to.
func (m AddressMapper) SetIndex(address uint64) uint64 {
	return (address / m.LineSize) % m.NumSets
}

// Tag returns the tag of the line that contains the address.
func (m AddressMapper) Tag(address uint64) uint64 {
	return address / m.LineSize / m.NumSets
}

// Decompose returns the set index and the tag of an address.
func (m AddressMapper) Decompose(address uint64) (setIndex, tag uint64) {
	return m.SetIndex(address), m.Tag(address)
}

// LineBase reconstructs the line-aligned address of a line from its tag and
// its set index. The offset within the line is lost, so
// LineBase(Tag(a), SetIndex(a)) == a - a%LineSize.
func (m AddressMapper) LineBase(tag, setIndex uint64) uint64 {
	return (tag*m.NumSets + setIndex) * m.LineSize
}

// CapacityBytes returns the number of bytes a cache with the given number of
// ways per set can hold.
func (m AddressMapper) CapacityBytes(numWays uint64) uint64 {
	return m.NumSets * numWays * m.LineSize
}
