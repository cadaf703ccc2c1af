package exec

import (
	"encoding/binary"
	"fmt"
	"math"
)

var ErrLimitExceeded = fmt.Errorf("memory limit exceeded")

// PageSize is the size of a linear memory page in bytes.
const PageSize = 65536

// Memory is a WASM linear memory. The backing store is either heap-allocated
// or a reserved mapping, depending on the build; all access goes through the
// bytes slice either way.
type Memory struct {
	min, max uint32
	bytes    []byte
	reserved []byte // full reservation for mapped memories, nil otherwise
}

// Limits returns the minimum and maximum size of the memory in pages.
func (m *Memory) Limits() (min, max uint32) {
	return m.min, m.max
}

// Size returns the current size of the memory in pages.
func (m *Memory) Size() uint32 {
	return uint32(len(m.bytes) / PageSize)
}

// Bytes returns the memory's bytes.
func (m *Memory) Bytes() []byte {
	return m.bytes
}

// check traps unless [addr, addr+size) lies within the memory.
func (m *Memory) check(addr, size uint64) {
	if addr+size > uint64(len(m.bytes)) {
		panic(TrapOutOfBoundsMemoryAccess)
	}
}

func effectiveAddress(base, offset uint32) uint64 {
	return uint64(base) + uint64(offset)
}

// Byte returns the byte stored at the given effective address.
func (m *Memory) Byte(base, offset uint32) byte {
	addr := effectiveAddress(base, offset)
	m.check(addr, 1)
	return m.bytes[addr]
}

// PutByte writes the given byte to the given effective address.
func (m *Memory) PutByte(v byte, base, offset uint32) {
	addr := effectiveAddress(base, offset)
	m.check(addr, 1)
	m.bytes[addr] = v
}

// Uint16 returns the uint16 stored at the given effective address.
func (m *Memory) Uint16(base, offset uint32) uint16 {
	addr := effectiveAddress(base, offset)
	m.check(addr, 2)
	return binary.LittleEndian.Uint16(m.bytes[addr:])
}

// PutUint16 writes the given uint16 to the given effective address.
func (m *Memory) PutUint16(v uint16, base, offset uint32) {
	addr := effectiveAddress(base, offset)
	m.check(addr, 2)
	binary.LittleEndian.PutUint16(m.bytes[addr:], v)
}

// Uint32 returns the uint32 stored at the given effective address.
func (m *Memory) Uint32(base, offset uint32) uint32 {
	addr := effectiveAddress(base, offset)
	m.check(addr, 4)
	return binary.LittleEndian.Uint32(m.bytes[addr:])
}

// PutUint32 writes the given uint32 to the given effective address.
func (m *Memory) PutUint32(v uint32, base, offset uint32) {
	addr := effectiveAddress(base, offset)
	m.check(addr, 4)
	binary.LittleEndian.PutUint32(m.bytes[addr:], v)
}

// Uint64 returns the uint64 stored at the given effective address.
func (m *Memory) Uint64(base, offset uint32) uint64 {
	addr := effectiveAddress(base, offset)
	m.check(addr, 8)
	return binary.LittleEndian.Uint64(m.bytes[addr:])
}

// PutUint64 writes the given uint64 to the given effective address.
func (m *Memory) PutUint64(v uint64, base, offset uint32) {
	addr := effectiveAddress(base, offset)
	m.check(addr, 8)
	binary.LittleEndian.PutUint64(m.bytes[addr:], v)
}

// Float32 returns the float32 stored at the given effective address.
func (m *Memory) Float32(base, offset uint32) float32 {
	return math.Float32frombits(m.Uint32(base, offset))
}

// PutFloat32 writes the given float32 to the given effective address.
func (m *Memory) PutFloat32(v float32, base, offset uint32) {
	m.PutUint32(math.Float32bits(v), base, offset)
}

// Float64 returns the float64 stored at the given effective address.
func (m *Memory) Float64(base, offset uint32) float64 {
	return math.Float64frombits(m.Uint64(base, offset))
}

// PutFloat64 writes the given float64 to the given effective address.
func (m *Memory) PutFloat64(v float64, base, offset uint32) {
	m.PutUint64(math.Float64bits(v), base, offset)
}

// Fill sets count bytes starting at dest to value.
func (m *Memory) Fill(dest, value, count uint32) {
	m.check(uint64(dest), uint64(count))
	b := m.bytes[dest : uint64(dest)+uint64(count)]
	for i := range b {
		b[i] = byte(value)
	}
}

// Copy copies count bytes from src to dest. Overlapping ranges behave as if
// copied through a temporary.
func (m *Memory) Copy(dest, src, count uint32) {
	m.check(uint64(dest), uint64(count))
	m.check(uint64(src), uint64(count))
	copy(m.bytes[dest:uint64(dest)+uint64(count)], m.bytes[src:uint64(src)+uint64(count)])
}

// ByteAt returns the byte stored at the given offset.
func (m *Memory) ByteAt(offset uint32) byte {
	return m.Byte(offset, 0)
}

// PutByteAt writes the given byte to the given offset.
func (m *Memory) PutByteAt(v byte, offset uint32) {
	m.PutByte(v, offset, 0)
}

// Uint16At returns the uint16 stored at the given offset.
func (m *Memory) Uint16At(offset uint32) uint16 {
	return m.Uint16(offset, 0)
}

// PutUint16At writes the given uint16 to the given offset.
func (m *Memory) PutUint16At(v uint16, offset uint32) {
	m.PutUint16(v, offset, 0)
}

// Uint32At returns the uint32 stored at the given offset.
func (m *Memory) Uint32At(offset uint32) uint32 {
	return m.Uint32(offset, 0)
}

// PutUint32At writes the given uint32 to the given offset.
func (m *Memory) PutUint32At(v uint32, offset uint32) {
	m.PutUint32(v, offset, 0)
}

// Uint64At returns the uint64 stored at the given offset.
func (m *Memory) Uint64At(offset uint32) uint64 {
	return m.Uint64(offset, 0)
}

// PutUint64At writes the given uint64 to the given offset.
func (m *Memory) PutUint64At(v uint64, offset uint32) {
	m.PutUint64(v, offset, 0)
}

// Float32At returns the float32 stored at the given offset.
func (m *Memory) Float32At(offset uint32) float32 {
	return math.Float32frombits(m.Uint32At(offset))
}

// PutFloat32At writes the given float32 to the given offset.
func (m *Memory) PutFloat32At(v float32, offset uint32) {
	m.PutUint32At(math.Float32bits(v), offset)
}

// Float64At returns the float64 stored at the given offset.
func (m *Memory) Float64At(offset uint32) float64 {
	return math.Float64frombits(m.Uint64At(offset))
}

// PutFloat64At writes the given float64 to the given offset.
func (m *Memory) PutFloat64At(v float64, offset uint32) {
	m.PutUint64At(math.Float64bits(v), offset)
}
