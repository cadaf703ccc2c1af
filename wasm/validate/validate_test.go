package validate

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neri/wami/wasm"
	"github.com/neri/wami/wasm/code"
)

func expr(t *testing.T, instrs ...code.Instruction) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, code.Encode(&buf, instrs))
	return buf.Bytes()
}

func validModule(t *testing.T) *wasm.Module {
	return &wasm.Module{
		Version: wasm.Version,
		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{
				{Form: wasm.TypeFunc, ParamTypes: []wasm.ValueType{wasm.ValueTypeI32}, ReturnTypes: []wasm.ValueType{wasm.ValueTypeI32}},
			},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Memory: &wasm.SectionMemories{
			Entries: []wasm.Memory{{Limits: wasm.ResizableLimits{Initial: 1}}},
		},
		Global: &wasm.SectionGlobals{
			Globals: []wasm.GlobalEntry{
				{Type: wasm.GlobalVar{Type: wasm.ValueTypeI32, Mutable: true}, Init: expr(t, code.I32Const(0), code.End())},
			},
		},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{
				{FieldStr: "f", Kind: wasm.ExternalFunction, Index: 0},
			},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{
				{Code: expr(t, code.LocalGet(0), code.End())},
			},
		},
	}
}

func TestValidateModule(t *testing.T) {
	assert.NoError(t, ValidateModule(validModule(t), true))
}

func TestValidateBodyTypeError(t *testing.T) {
	m := validModule(t)
	m.Code.Bodies[0].Code = expr(t, code.I64Const(0), code.End())
	assert.Error(t, ValidateModule(m, true))

	// The same module passes when code validation is skipped.
	assert.NoError(t, ValidateModule(m, false))
}

func TestValidateInconsistentFunctionAndCode(t *testing.T) {
	m := validModule(t)
	m.Function.Types = append(m.Function.Types, 0)
	assert.Error(t, ValidateModule(m, false))
}

func TestValidateUnknownType(t *testing.T) {
	m := validModule(t)
	m.Function.Types[0] = 7
	assert.Error(t, ValidateModule(m, false))
}

func TestValidateLimits(t *testing.T) {
	m := validModule(t)
	m.Memory.Entries[0].Limits = wasm.ResizableLimits{Flags: 1, Initial: 4, Maximum: 2}
	assert.Error(t, ValidateModule(m, false))

	m = validModule(t)
	m.Memory.Entries[0].Limits = wasm.ResizableLimits{Initial: 65537}
	assert.Error(t, ValidateModule(m, false))
}

func TestValidateGlobalInitExpr(t *testing.T) {
	m := validModule(t)
	m.Global.Globals[0].Init = expr(t, code.I32Const(1), code.I32Const(2), code.I32Add(), code.End())
	assert.Error(t, ValidateModule(m, false))

	// Wrong type.
	m = validModule(t)
	m.Global.Globals[0].Init = expr(t, code.I64Const(1), code.End())
	assert.Error(t, ValidateModule(m, false))
}

func TestValidateMutableGlobalImport(t *testing.T) {
	m := validModule(t)
	m.Import = &wasm.SectionImports{
		Entries: []wasm.ImportEntry{
			{ModuleName: "env", FieldName: "g", Type: wasm.GlobalVarImport{Type: wasm.GlobalVar{Type: wasm.ValueTypeI32, Mutable: true}}},
		},
	}
	assert.Error(t, ValidateModule(m, false))
}

func TestValidateStartSignature(t *testing.T) {
	m := validModule(t)
	m.Start = &wasm.SectionStartFunction{Index: 0}
	// The only function takes a parameter, which a start function may not.
	assert.Error(t, ValidateModule(m, false))
}

func TestValidateExportIndices(t *testing.T) {
	m := validModule(t)
	m.Export.Entries[0].Index = 9
	assert.Error(t, ValidateModule(m, false))

	m = validModule(t)
	m.Export.Entries = append(m.Export.Entries, wasm.ExportEntry{FieldStr: "f", Kind: wasm.ExternalFunction, Index: 0})
	assert.Error(t, ValidateModule(m, false))
}

func TestValidateElementSegment(t *testing.T) {
	m := validModule(t)
	m.Elements = &wasm.SectionElements{
		Entries: []wasm.ElementSegment{
			{Index: 0, Offset: expr(t, code.I32Const(0), code.End()), Elems: []uint32{0}},
		},
	}
	// No table declared.
	assert.Error(t, ValidateModule(m, false))

	m.Table = &wasm.SectionTables{
		Entries: []wasm.Table{
			{ElementType: wasm.ElemTypeAnyFunc, Limits: wasm.ResizableLimits{Initial: 1}},
		},
	}
	assert.NoError(t, ValidateModule(m, false))

	// Unknown function in the segment.
	m.Elements.Entries[0].Elems = []uint32{5}
	assert.Error(t, ValidateModule(m, false))
}
