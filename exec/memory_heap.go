//go:build !wamimmap
// +build !wamimmap

package exec

// NewMemory creates a new heap-backed linear memory with the given limits.
func NewMemory(min, max uint32) Memory {
	return Memory{
		min:   min,
		max:   max,
		bytes: make([]byte, min*PageSize),
	}
}

// Grow grows the memory by the given number of pages. It returns the old size of the memory in pages and an error if
// growing the memory by the requested amount would exceed the memory's maximum size.
func (m *Memory) Grow(pages uint32) (uint32, error) {
	currentSize := m.Size()
	newSize := uint64(currentSize) + uint64(pages)
	if newSize > uint64(m.max) || newSize > 65536 {
		return currentSize, ErrLimitExceeded
	}
	newBytes := make([]byte, newSize*PageSize)
	copy(newBytes, m.bytes)
	m.bytes = newBytes
	return currentSize, nil
}
