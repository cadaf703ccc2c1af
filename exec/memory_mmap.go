//go:build wamimmap && (linux || darwin)
// +build wamimmap
// +build linux darwin

package exec

import (
	"golang.org/x/sys/unix"
)

// Mapped memories reserve address space for the declared maximum up front and
// commit pages on Grow, so growing never moves the backing store and host
// pointers into memory stay valid across grows.

func reservationSize(max uint32) uint64 {
	pages := uint64(max)
	if pages > 65536 {
		pages = 65536
	}
	return pages * PageSize
}

// NewMemory creates a new mmap-backed linear memory with the given limits.
func NewMemory(min, max uint32) Memory {
	m := Memory{min: min, max: max}

	reserve := reservationSize(max)
	if reserve == 0 {
		return m
	}

	region, err := unix.Mmap(-1, 0, int(reserve), unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		panic(err)
	}
	m.reserved = region

	if min > 0 {
		if err := unix.Mprotect(region[:uint64(min)*PageSize], unix.PROT_READ|unix.PROT_WRITE); err != nil {
			panic(err)
		}
	}
	m.bytes = region[:uint64(min)*PageSize]
	return m
}

// Grow grows the memory by the given number of pages. It returns the old size of the memory in pages and an error if
// growing the memory by the requested amount would exceed the memory's maximum size.
func (m *Memory) Grow(pages uint32) (uint32, error) {
	currentSize := m.Size()
	newSize := uint64(currentSize) + uint64(pages)
	if newSize > uint64(m.max) || newSize > 65536 {
		return currentSize, ErrLimitExceeded
	}
	if pages == 0 {
		return currentSize, nil
	}

	if err := unix.Mprotect(m.reserved[uint64(currentSize)*PageSize:newSize*PageSize], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return currentSize, err
	}
	m.bytes = m.reserved[:newSize*PageSize]
	return currentSize, nil
}
