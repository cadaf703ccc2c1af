// Package leb128 provides bounded readers and writers for the variable-length
// integer encoding used throughout the WebAssembly binary format.
package leb128

import (
	"errors"
	"io"
)

// ErrOverflow is returned when an encoded value does not fit in the target
// width or uses a non-canonical final byte.
var ErrOverflow = errors.New("leb128: integer representation too long or too large")

func readByte(r io.Reader) (byte, error) {
	if br, ok := r.(io.ByteReader); ok {
		return br.ReadByte()
	}
	var buf [1]byte
	_, err := io.ReadFull(r, buf[:])
	return buf[0], err
}

// ReadVarUint32 reads an unsigned 32-bit varint from r.
func ReadVarUint32(r io.Reader) (uint32, error) {
	var result uint32
	var shift uint
	for {
		b, err := readByte(r)
		if err != nil {
			return 0, err
		}
		if shift == 28 && b > 0x0f {
			return 0, ErrOverflow
		}
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if shift > 28 {
			return 0, ErrOverflow
		}
	}
}

// ReadVarint32 reads a signed 32-bit varint from r.
func ReadVarint32(r io.Reader) (int32, error) {
	var result int32
	var shift uint
	for {
		b, err := readByte(r)
		if err != nil {
			return 0, err
		}
		if shift == 28 {
			// The final byte carries four value bits plus sign extension.
			if high := b & 0x78; high != 0 && high != 0x78 {
				return 0, ErrOverflow
			}
		}
		result |= int32(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 32 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, nil
		}
		if shift > 28 {
			return 0, ErrOverflow
		}
	}
}

// ReadVarint64 reads a signed 64-bit varint from r.
func ReadVarint64(r io.Reader) (int64, error) {
	var result int64
	var shift uint
	for {
		b, err := readByte(r)
		if err != nil {
			return 0, err
		}
		if shift == 63 {
			if low := b & 0x7f; low != 0 && low != 0x7f {
				return 0, ErrOverflow
			}
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, nil
		}
		if shift > 63 {
			return 0, ErrOverflow
		}
	}
}

// GetVarUint32 decodes an unsigned 32-bit varint from the front of buf and
// returns the value and the number of bytes consumed.
func GetVarUint32(buf []byte) (uint32, int, error) {
	var result uint32
	var shift uint
	for i, b := range buf {
		if shift == 28 && b > 0x0f {
			return 0, 0, ErrOverflow
		}
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
		if shift > 28 {
			return 0, 0, ErrOverflow
		}
	}
	return 0, 0, io.ErrUnexpectedEOF
}

// GetVarint32 decodes a signed 32-bit varint from the front of buf.
func GetVarint32(buf []byte) (int32, int, error) {
	var result int32
	var shift uint
	for i, b := range buf {
		if shift == 28 {
			if high := b & 0x78; high != 0 && high != 0x78 {
				return 0, 0, ErrOverflow
			}
		}
		result |= int32(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 32 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, i + 1, nil
		}
		if shift > 28 {
			return 0, 0, ErrOverflow
		}
	}
	return 0, 0, io.ErrUnexpectedEOF
}

// GetVarint64 decodes a signed 64-bit varint from the front of buf.
func GetVarint64(buf []byte) (int64, int, error) {
	var result int64
	var shift uint
	for i, b := range buf {
		if shift == 63 {
			if low := b & 0x7f; low != 0 && low != 0x7f {
				return 0, 0, ErrOverflow
			}
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, i + 1, nil
		}
		if shift > 63 {
			return 0, 0, ErrOverflow
		}
	}
	return 0, 0, io.ErrUnexpectedEOF
}

// WriteVarUint32 writes an unsigned 32-bit varint to w and returns the number
// of bytes written.
func WriteVarUint32(w io.Writer, v uint32) (int, error) {
	var buf [5]byte
	n := 0
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf[n] = b
		n++
		if v == 0 {
			break
		}
	}
	return w.Write(buf[:n])
}

// WriteVarint64 writes a signed 64-bit varint to w and returns the number of
// bytes written.
func WriteVarint64(w io.Writer, v int64) (int, error) {
	var buf [10]byte
	n := 0
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v != 0 || b&0x40 != 0) && (v != -1 || b&0x40 == 0) {
			b |= 0x80
		}
		buf[n] = b
		n++
		if b&0x80 == 0 {
			break
		}
	}
	return w.Write(buf[:n])
}

// WriteVarint32 writes a signed 32-bit varint to w.
func WriteVarint32(w io.Writer, v int32) (int, error) {
	return WriteVarint64(w, int64(v))
}
