// Package storage provides a sparse byte-addressed memory that can back a
// cache.
package storage

import (
	"errors"
	"fmt"
)

// ErrOutOfRange is returned when an access reaches beyond the capacity of a
// Storage.
var ErrOutOfRange = errors.New("access beyond storage capacity")

// DefaultUnitSize is the allocation granularity of a Storage.
const DefaultUnitSize = 4096

// A Storage keeps the data of the emulated system.
//
// The storage manages the data in units, similar to pages. Units that are
// never touched by Read or Write are never allocated and read as zeros.
type Storage struct {
	unitSize uint64
	capacity uint64
	data     map[uint64][]byte
}

// New creates a storage with the specified capacity in bytes.
func New(capacity uint64) *Storage {
	return NewWithUnitSize(capacity, DefaultUnitSize)
}

// NewWithUnitSize creates a storage that allocates unitSize bytes at a time.
func NewWithUnitSize(capacity, unitSize uint64) *Storage {
	if unitSize == 0 {
		panic("storage unit size must be positive")
	}

	return &Storage{
		unitSize: unitSize,
		capacity: capacity,
		data:     make(map[uint64][]byte),
	}
}

// Capacity returns the number of addressable bytes.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

// NumAllocatedUnits returns how many units have been touched.
func (s *Storage) NumAllocatedUnits() int {
	return len(s.data)
}

func (s *Storage) checkRange(address, length uint64) error {
	if address >= s.capacity || length > s.capacity-address {
		return fmt.Errorf("%w: [0x%x, 0x%x) with capacity 0x%x",
			ErrOutOfRange, address, address+length, s.capacity)
	}

	return nil
}

func (s *Storage) unit(baseAddr uint64) []byte {
	unit, ok := s.data[baseAddr]
	if !ok {
		unit = make([]byte, s.unitSize)
		s.data[baseAddr] = unit
	}

	return unit
}

func (s *Storage) parseAddress(addr uint64) (baseAddr, inUnitAddr uint64) {
	inUnitAddr = addr % s.unitSize
	baseAddr = addr - inUnitAddr

	return baseAddr, inUnitAddr
}

// Read returns length bytes starting at address.
func (s *Storage) Read(address, length uint64) ([]byte, error) {
	if err := s.checkRange(address, length); err != nil {
		return nil, err
	}

	res := make([]byte, length)
	offset := uint64(0)

	for offset < length {
		baseAddr, inUnitAddr := s.parseAddress(address + offset)
		n := min(length-offset, s.unitSize-inUnitAddr)

		if unit, ok := s.data[baseAddr]; ok {
			copy(res[offset:offset+n], unit[inUnitAddr:inUnitAddr+n])
		}

		offset += n
	}

	return res, nil
}

// Write stores data starting at address.
func (s *Storage) Write(address uint64, data []byte) error {
	length := uint64(len(data))
	if err := s.checkRange(address, length); err != nil {
		return err
	}

	offset := uint64(0)

	for offset < length {
		baseAddr, inUnitAddr := s.parseAddress(address + offset)
		n := min(length-offset, s.unitSize-inUnitAddr)

		unit := s.unit(baseAddr)
		copy(unit[inUnitAddr:inUnitAddr+n], data[offset:offset+n])

		offset += n
	}

	return nil
}
