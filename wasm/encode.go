package wasm

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/neri/wami/wasm/leb128"
)

// EncodeModule writes the binary encoding of a module to w. Sections are
// emitted in the canonical order regardless of the order in which they were
// attached to the module.
func EncodeModule(w io.Writer, m *Module) error {
	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:], Magic)
	version := m.Version
	if version == 0 {
		version = Version
	}
	binary.LittleEndian.PutUint32(header[4:], version)
	if _, err := w.Write(header[:]); err != nil {
		return err
	}

	sections := []Section{}
	if m.Types != nil {
		sections = append(sections, m.Types)
	}
	if m.Import != nil {
		sections = append(sections, m.Import)
	}
	if m.Function != nil {
		sections = append(sections, m.Function)
	}
	if m.Table != nil {
		sections = append(sections, m.Table)
	}
	if m.Memory != nil {
		sections = append(sections, m.Memory)
	}
	if m.Global != nil {
		sections = append(sections, m.Global)
	}
	if m.Export != nil {
		sections = append(sections, m.Export)
	}
	if m.Start != nil {
		sections = append(sections, m.Start)
	}
	if m.Elements != nil {
		sections = append(sections, m.Elements)
	}
	if m.DataCount != nil {
		sections = append(sections, m.DataCount)
	}
	if m.Code != nil {
		sections = append(sections, m.Code)
	}
	if m.Data != nil {
		sections = append(sections, m.Data)
	}

	for _, s := range sections {
		if err := writeSection(w, s); err != nil {
			return err
		}
	}

	for _, s := range m.Customs {
		if err := writeSection(w, s); err != nil {
			return err
		}
	}

	return nil
}

func writeSection(w io.Writer, s Section) error {
	var payload bytes.Buffer
	if err := s.WritePayload(&payload); err != nil {
		return err
	}

	if _, err := w.Write([]byte{byte(s.SectionID())}); err != nil {
		return err
	}
	if _, err := leb128.WriteVarUint32(w, uint32(payload.Len())); err != nil {
		return err
	}
	_, err := w.Write(payload.Bytes())
	return err
}
