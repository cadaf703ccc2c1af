// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import (
	"fmt"
	"io"

	"github.com/neri/wami/wasm/leb128"
)

// Marshaler is the interface implemented by types that can marshal themselves
// into valid WASM.
type Marshaler interface {
	MarshalWASM(w io.Writer) error
}

// Unmarshaler is the interface implemented by types that can unmarshal a WASM
// description of themselves.
type Unmarshaler interface {
	UnmarshalWASM(r io.Reader) error
}

// ValidationError describes an error that occurred while validating a module.
type ValidationError string

func (e ValidationError) Error() string {
	return "wasm: " + string(e)
}

// ValueType represents the type of a numeric value.
type ValueType uint8

const (
	ValueTypeI32 ValueType = 0x7f
	ValueTypeI64 ValueType = 0x7e
	ValueTypeF32 ValueType = 0x7d
	ValueTypeF64 ValueType = 0x7c

	// ValueTypeT is the polymorphic type assumed by values popped from the
	// operand stack in unreachable code.
	ValueTypeT ValueType = 0x00
)

func (t ValueType) String() string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	default:
		return fmt.Sprintf("<unknown value_type %#x>", uint8(t))
	}
}

func (t *ValueType) UnmarshalWASM(r io.Reader) error {
	v, err := ReadByte(r)
	if err != nil {
		return err
	}
	switch ValueType(v) {
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64:
		*t = ValueType(v)
		return nil
	default:
		return ValidationError("invalid value type")
	}
}

func (t ValueType) MarshalWASM(w io.Writer) error {
	_, err := w.Write([]byte{byte(t)})
	return err
}

// TypeFunc is the type constructor for function signatures.
const TypeFunc uint8 = 0x60

// FunctionSig describes the signature of a declared function in a WASM module.
type FunctionSig struct {
	// Form is the value for a function type constructor.
	Form uint8

	ParamTypes  []ValueType
	ReturnTypes []ValueType
}

func (f FunctionSig) String() string {
	return fmt.Sprintf("<func %v -> %v>", f.ParamTypes, f.ReturnTypes)
}

// Equals returns true if the receiver denotes the same type as other.
func (f FunctionSig) Equals(other FunctionSig) bool {
	if len(f.ParamTypes) != len(other.ParamTypes) || len(f.ReturnTypes) != len(other.ReturnTypes) {
		return false
	}
	for i, t := range f.ParamTypes {
		if other.ParamTypes[i] != t {
			return false
		}
	}
	for i, t := range f.ReturnTypes {
		if other.ReturnTypes[i] != t {
			return false
		}
	}
	return true
}

func (f *FunctionSig) UnmarshalWASM(r io.Reader) error {
	form, err := ReadByte(r)
	if err != nil {
		return err
	}
	if form != TypeFunc {
		return ValidationError("invalid function type constructor")
	}
	f.Form = form

	paramCount, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	f.ParamTypes = make([]ValueType, paramCount)
	for i := range f.ParamTypes {
		if err = f.ParamTypes[i].UnmarshalWASM(r); err != nil {
			return err
		}
	}

	returnCount, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	f.ReturnTypes = make([]ValueType, returnCount)
	for i := range f.ReturnTypes {
		if err = f.ReturnTypes[i].UnmarshalWASM(r); err != nil {
			return err
		}
	}
	return nil
}

func (f FunctionSig) MarshalWASM(w io.Writer) error {
	if _, err := w.Write([]byte{f.Form}); err != nil {
		return err
	}
	if _, err := leb128.WriteVarUint32(w, uint32(len(f.ParamTypes))); err != nil {
		return err
	}
	for _, t := range f.ParamTypes {
		if err := t.MarshalWASM(w); err != nil {
			return err
		}
	}
	if _, err := leb128.WriteVarUint32(w, uint32(len(f.ReturnTypes))); err != nil {
		return err
	}
	for _, t := range f.ReturnTypes {
		if err := t.MarshalWASM(w); err != nil {
			return err
		}
	}
	return nil
}

// ElemType describes the type of a table's elements.
type ElemType uint8

// ElemTypeAnyFunc is the only element type defined by the MVP: an untyped
// function reference.
const ElemTypeAnyFunc ElemType = 0x70

func (t ElemType) String() string {
	if t == ElemTypeAnyFunc {
		return "anyfunc"
	}
	return fmt.Sprintf("<unknown elem_type %#x>", uint8(t))
}

func (t *ElemType) UnmarshalWASM(r io.Reader) error {
	v, err := ReadByte(r)
	if err != nil {
		return err
	}
	if ElemType(v) != ElemTypeAnyFunc {
		return ValidationError("invalid element type")
	}
	*t = ElemType(v)
	return nil
}

func (t ElemType) MarshalWASM(w io.Writer) error {
	_, err := w.Write([]byte{byte(t)})
	return err
}

// ResizableLimits describe the limits of a table or linear memory.
type ResizableLimits struct {
	Flags   uint8  // 1 if the Maximum field is valid
	Initial uint32 // initial length (in units of table elements or pages)
	Maximum uint32 // If flags is 1, it describes the maximum size of the table or memory
}

func (lim *ResizableLimits) UnmarshalWASM(r io.Reader) error {
	f, err := ReadByte(r)
	if err != nil {
		return err
	}
	if f > 1 {
		return ValidationError("invalid limits flags")
	}
	lim.Flags = f

	lim.Initial, err = leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	if lim.Flags&0x1 != 0 {
		lim.Maximum, err = leb128.ReadVarUint32(r)
		if err != nil {
			return err
		}
	}
	return nil
}

func (lim ResizableLimits) MarshalWASM(w io.Writer) error {
	if _, err := w.Write([]byte{lim.Flags}); err != nil {
		return err
	}
	if _, err := leb128.WriteVarUint32(w, lim.Initial); err != nil {
		return err
	}
	if lim.Flags&0x1 != 0 {
		if _, err := leb128.WriteVarUint32(w, lim.Maximum); err != nil {
			return err
		}
	}
	return nil
}

// Table describes a table declared by a WASM module.
type Table struct {
	ElementType ElemType
	Limits      ResizableLimits
}

func (t *Table) UnmarshalWASM(r io.Reader) error {
	if err := t.ElementType.UnmarshalWASM(r); err != nil {
		return err
	}
	return t.Limits.UnmarshalWASM(r)
}

func (t Table) MarshalWASM(w io.Writer) error {
	if err := t.ElementType.MarshalWASM(w); err != nil {
		return err
	}
	return t.Limits.MarshalWASM(w)
}

// Memory describes a linear memory declared by a WASM module.
type Memory struct {
	Limits ResizableLimits
}

func (m *Memory) UnmarshalWASM(r io.Reader) error {
	return m.Limits.UnmarshalWASM(r)
}

func (m Memory) MarshalWASM(w io.Writer) error {
	return m.Limits.MarshalWASM(w)
}

// External describes the kind of an import or export.
type External uint8

const (
	ExternalFunction External = 0
	ExternalTable    External = 1
	ExternalMemory   External = 2
	ExternalGlobal   External = 3
)

func (e External) String() string {
	switch e {
	case ExternalFunction:
		return "function"
	case ExternalTable:
		return "table"
	case ExternalMemory:
		return "memory"
	case ExternalGlobal:
		return "global"
	default:
		return fmt.Sprintf("<unknown external_kind %d>", uint8(e))
	}
}

func (e *External) UnmarshalWASM(r io.Reader) error {
	v, err := ReadByte(r)
	if err != nil {
		return err
	}
	*e = External(v)
	return nil
}

func (e External) MarshalWASM(w io.Writer) error {
	_, err := w.Write([]byte{byte(e)})
	return err
}

// GlobalVar describes the type and mutability of a declared global variable.
type GlobalVar struct {
	Type    ValueType
	Mutable bool
}

func (g *GlobalVar) UnmarshalWASM(r io.Reader) error {
	if err := g.Type.UnmarshalWASM(r); err != nil {
		return err
	}
	m, err := ReadByte(r)
	if err != nil {
		return err
	}
	if m > 1 {
		return ValidationError("invalid global mutability")
	}
	g.Mutable = m == 1
	return nil
}

func (g GlobalVar) MarshalWASM(w io.Writer) error {
	if err := g.Type.MarshalWASM(w); err != nil {
		return err
	}
	m := byte(0)
	if g.Mutable {
		m = 1
	}
	_, err := w.Write([]byte{m})
	return err
}
