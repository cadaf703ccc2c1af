// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import (
	"encoding/binary"
	"errors"
	"io"
	"unicode/utf8"

	"github.com/neri/wami/wasm/leb128"
)

// ErrInvalidUTF8 is returned when a decoded name is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("wasm: invalid UTF-8 in name")

// ErrEmptyInitExpr is returned when an initializer expression is empty.
var ErrEmptyInitExpr = errors.New("wasm: initializer expression produces no value")

// InvalidInitExprOpError is returned when an initializer expression contains
// an instruction outside of the constant subset.
type InvalidInitExprOpError byte

func (e InvalidInitExprOpError) Error() string {
	return "wasm: invalid opcode in initializer expression: " + opName(byte(e))
}

func opName(op byte) string {
	switch op {
	case 0x41:
		return "i32.const"
	case 0x42:
		return "i64.const"
	case 0x43:
		return "f32.const"
	case 0x44:
		return "f64.const"
	case 0x23:
		return "global.get"
	default:
		return "unknown"
	}
}

// ReadByte reads a single byte from r, using ReadByte if the reader provides
// one.
func ReadByte(r io.Reader) (byte, error) {
	if br, ok := r.(io.ByteReader); ok {
		return br.ReadByte()
	}
	var buf [1]byte
	_, err := io.ReadFull(r, buf[:])
	return buf[0], err
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readBytes(r io.Reader, n uint32) ([]byte, error) {
	// Grow incrementally so that a malformed length cannot allocate the full
	// requested size before the payload runs out.
	buf := make([]byte, 0, getInitialCap(n))
	var chunk [4096]byte
	for remaining := int(n); remaining > 0; {
		c := len(chunk)
		if remaining < c {
			c = remaining
		}
		if _, err := io.ReadFull(r, chunk[:c]); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		buf = append(buf, chunk[:c]...)
		remaining -= c
	}
	return buf, nil
}

func readBytesUint(r io.Reader) ([]byte, error) {
	n, err := leb128.ReadVarUint32(r)
	if err != nil {
		return nil, err
	}
	return readBytes(r, n)
}

func readUTF8StringUint(r io.Reader) (string, error) {
	b, err := readBytesUint(r)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}

func writeBytesUint(w io.Writer, b []byte) error {
	if _, err := leb128.WriteVarUint32(w, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func writeStringUint(w io.Writer, s string) error {
	return writeBytesUint(w, []byte(s))
}

// readInitExpr copies an initializer expression, delimited by the end opcode,
// out of r. The expression is validated later, against the module scope.
func readInitExpr(r io.Reader) ([]byte, error) {
	var expr exprBuffer
	for {
		op, err := ReadByte(r)
		if err != nil {
			return nil, err
		}
		expr.bytes = append(expr.bytes, op)

		switch op {
		case 0x41: // i32.const
			v, err := leb128.ReadVarint32(r)
			if err != nil {
				return nil, err
			}
			leb128.WriteVarint64(&expr, int64(v))
		case 0x42: // i64.const
			v, err := leb128.ReadVarint64(r)
			if err != nil {
				return nil, err
			}
			leb128.WriteVarint64(&expr, v)
		case 0x43: // f32.const
			var buf [4]byte
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				return nil, err
			}
			expr.bytes = append(expr.bytes, buf[:]...)
		case 0x44: // f64.const
			var buf [8]byte
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				return nil, err
			}
			expr.bytes = append(expr.bytes, buf[:]...)
		case 0x23: // global.get
			v, err := leb128.ReadVarUint32(r)
			if err != nil {
				return nil, err
			}
			leb128.WriteVarUint32(&expr, v)
		case 0x0b: // end
			return expr.bytes, nil
		default:
			return nil, InvalidInitExprOpError(op)
		}
	}
}

type exprBuffer struct {
	bytes []byte
}

func (b *exprBuffer) Write(p []byte) (int, error) {
	b.bytes = append(b.bytes, p...)
	return len(p), nil
}

// getInitialCap bounds the initial capacity of decoded vectors so that a
// malformed count cannot cause a huge allocation before the payload runs out.
func getInitialCap(count uint32) uint32 {
	const maxInitialCap = 1024
	if count > maxInitialCap {
		return maxInitialCap
	}
	return count
}
