// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/neri/wami/wasm/internal/readpos"
)

// ErrInvalidMagic is returned when a module does not begin with "\0asm".
var ErrInvalidMagic = errors.New("wasm: magic header not detected")

// ErrInvalidVersion is returned when a module's version field is not 1.
var ErrInvalidVersion = errors.New("wasm: unknown binary version")

const (
	Magic   uint32 = 0x6d736100
	Version uint32 = 0x1
)

// Module represents a parsed WebAssembly module:
// http://webassembly.org/docs/modules/
type Module struct {
	Version  uint32
	Sections []Section

	Types     *SectionTypes
	Import    *SectionImports
	Function  *SectionFunctions
	Table     *SectionTables
	Memory    *SectionMemories
	Global    *SectionGlobals
	Export    *SectionExports
	Start     *SectionStartFunction
	Elements  *SectionElements
	DataCount *SectionDataCount
	Code      *SectionCode
	Data      *SectionData
	Customs   []*SectionCustom
}

// Names returns the names section. If no names section exists, this function
// returns a MissingSectionError.
func (m *Module) Names() (*NameSection, error) {
	s := m.Custom(CustomSectionName)
	if s == nil {
		return nil, MissingSectionError(0)
	}

	var names NameSection
	if err := names.UnmarshalWASM(bytes.NewReader(s.Data)); err != nil {
		return nil, err
	}

	return &names, nil
}

// Custom returns a custom section with a specific name, if it exists.
func (m *Module) Custom(name string) *SectionCustom {
	for _, s := range m.Customs {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// NewModule creates a new empty module.
func NewModule() *Module {
	return &Module{
		Types:    &SectionTypes{},
		Import:   &SectionImports{},
		Table:    &SectionTables{},
		Memory:   &SectionMemories{},
		Global:   &SectionGlobals{},
		Export:   &SectionExports{},
		Start:    &SectionStartFunction{},
		Elements: &SectionElements{},
		Data:     &SectionData{},
	}
}

// DecodeModule decodes a WASM module from its binary representation.
func DecodeModule(r io.Reader) (*Module, error) {
	reader := &readpos.ReadPos{
		R:      r,
		CurPos: 0,
	}
	m := &Module{}
	magic, err := readU32(reader)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}
	if m.Version, err = readU32(reader); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if m.Version != Version {
		return nil, ErrInvalidVersion
	}

	if err = newSectionsReader(m).readSections(reader); err != nil {
		return nil, err
	}

	if err = m.checkSectionLengths(); err != nil {
		return nil, err
	}

	return m, nil
}

// checkSectionLengths verifies the cross-section invariants that only hold
// once every section has been read.
func (m *Module) checkSectionLengths() error {
	funcs, bodies := 0, 0
	if m.Function != nil {
		funcs = len(m.Function.Types)
	}
	if m.Code != nil {
		bodies = len(m.Code.Bodies)
	}
	if funcs != bodies {
		return ValidationError("function and code section have inconsistent lengths")
	}
	if m.DataCount != nil {
		data := 0
		if m.Data != nil {
			data = len(m.Data.Entries)
		}
		if int(m.DataCount.Count) != data {
			return ValidationError("data count and data section have inconsistent lengths")
		}
	}
	return nil
}

// MustDecode decodes a WASM module and panics on failure.
func MustDecode(r io.Reader) *Module {
	m, err := DecodeModule(r)
	if err != nil {
		panic(fmt.Errorf("decoding module: %w", err))
	}
	return m
}
