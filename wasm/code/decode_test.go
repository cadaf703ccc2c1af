package code

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neri/wami/wasm"
)

func encode(t *testing.T, instrs ...Instruction) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, instrs))
	return buf.Bytes()
}

type testScope struct {
	locals  []wasm.ValueType
	globals []wasm.GlobalVar
	funcs   []wasm.FunctionSig
	types   []wasm.FunctionSig
	memory  bool
	table   bool
}

func (s *testScope) GetLocalType(localidx uint32) (wasm.ValueType, bool) {
	if localidx >= uint32(len(s.locals)) {
		return 0, false
	}
	return s.locals[localidx], true
}

func (s *testScope) GetGlobalType(globalidx uint32) (wasm.GlobalVar, bool) {
	if globalidx >= uint32(len(s.globals)) {
		return wasm.GlobalVar{}, false
	}
	return s.globals[globalidx], true
}

func (s *testScope) GetFunctionSignature(funcidx uint32) (wasm.FunctionSig, bool) {
	if funcidx >= uint32(len(s.funcs)) {
		return wasm.FunctionSig{}, false
	}
	return s.funcs[funcidx], true
}

func (s *testScope) GetType(typeidx uint32) (wasm.FunctionSig, bool) {
	if typeidx >= uint32(len(s.types)) {
		return wasm.FunctionSig{}, false
	}
	return s.types[typeidx], true
}

func (s *testScope) HasTable(tableidx uint32) bool {
	return tableidx == 0 && s.table
}

func (s *testScope) HasMemory(memoryidx uint32) bool {
	return memoryidx == 0 && s.memory
}

func TestDecodeSimpleBody(t *testing.T) {
	scope := &testScope{locals: []wasm.ValueType{wasm.ValueTypeI32}}

	body, err := Decode(encode(t,
		LocalGet(0),
		I32Const(1),
		I32Add(),
		End(),
	), scope, []wasm.ValueType{wasm.ValueTypeI32})
	require.NoError(t, err)

	assert.Len(t, body.Instructions, 4)
	assert.Equal(t, 2, body.Metrics.MaxStackDepth)
	assert.False(t, body.Metrics.HasLoops)
}

func TestDecodeStackUnderflow(t *testing.T) {
	_, err := Decode(encode(t, I32Add(), End()), &testScope{}, nil)
	assert.Error(t, err)
}

func TestDecodeTypeMismatch(t *testing.T) {
	_, err := Decode(encode(t,
		I32Const(1),
		I64Const(1),
		I32Add(),
		End(),
	), &testScope{}, []wasm.ValueType{wasm.ValueTypeI32})
	assert.Error(t, err)
}

func TestDecodeResidualStack(t *testing.T) {
	// The residual stack must equal the function's results.
	_, err := Decode(encode(t,
		I32Const(1),
		I32Const(2),
		End(),
	), &testScope{}, []wasm.ValueType{wasm.ValueTypeI32})
	assert.Error(t, err)
}

func TestDecodeUnknownLocal(t *testing.T) {
	_, err := Decode(encode(t, LocalGet(3), Drop(), End()), &testScope{}, nil)
	assert.Error(t, err)
}

func TestDecodeUnknownGlobal(t *testing.T) {
	_, err := Decode(encode(t, GlobalGet(0), Drop(), End()), &testScope{}, nil)
	assert.Error(t, err)
}

func TestDecodeImmutableGlobalSet(t *testing.T) {
	scope := &testScope{globals: []wasm.GlobalVar{{Type: wasm.ValueTypeI32, Mutable: false}}}
	_, err := Decode(encode(t, I32Const(0), GlobalSet(0), End()), scope, nil)
	assert.Error(t, err)
}

func TestDecodeUnknownMemory(t *testing.T) {
	_, err := Decode(encode(t, I32Const(0), I32Load(0), Drop(), End()), &testScope{}, nil)
	assert.Error(t, err)
}

func TestDecodeLabelOutOfRange(t *testing.T) {
	_, err := Decode(encode(t, Br(2), End()), &testScope{}, nil)
	assert.Error(t, err)
}

func TestDecodeUnknownOpcode(t *testing.T) {
	_, err := Decode([]byte{0x25, 0x0b}, &testScope{}, nil)
	require.Error(t, err)
	assert.IsType(t, UnknownOpcodeError(0), err)
}

func TestDecodeSIMDUnsupported(t *testing.T) {
	_, err := Decode([]byte{0xfd, 0x00, 0x0b}, &testScope{}, nil)
	require.Error(t, err)
	assert.IsType(t, UnsupportedFeatureError(""), err)
}

func TestDecodeInvalidAlignment(t *testing.T) {
	scope := &testScope{memory: true}
	// i32.load with an alignment exponent of 3 exceeds the natural alignment
	// of 2.
	_, err := Decode([]byte{0x41, 0x00, 0x28, 0x03, 0x00, 0x1a, 0x0b}, scope, nil)
	assert.Error(t, err)
}

func TestDecodeUnreachableIsPolymorphic(t *testing.T) {
	// After unreachable, pops succeed with any requested type until the
	// enclosing block resumes.
	_, err := Decode(encode(t,
		Unreachable(),
		I32Add(),
		Drop(),
		End(),
	), &testScope{}, nil)
	assert.NoError(t, err)
}

func TestDecodeBranchLabelsResolved(t *testing.T) {
	scope := &testScope{locals: []wasm.ValueType{wasm.ValueTypeI32}}

	body, err := Decode(encode(t,
		Block(),
		LocalGet(0),
		BrIf(0),
		End(),
		End(),
	), scope, nil)
	require.NoError(t, err)

	// The block's continuation points one past its end instruction.
	block := &body.Instructions[0]
	assert.Equal(t, byte(OpBlock), block.Opcode)
	assert.Equal(t, 4, block.Continuation())
}

func TestDecodeLoopContinuation(t *testing.T) {
	scope := &testScope{locals: []wasm.ValueType{wasm.ValueTypeI32}}

	body, err := Decode(encode(t,
		Loop(),
		LocalGet(0),
		BrIf(0),
		End(),
		End(),
	), scope, nil)
	require.NoError(t, err)

	loop := &body.Instructions[0]
	assert.Equal(t, byte(OpLoop), loop.Opcode)
	assert.Equal(t, 0, loop.Continuation())
	assert.True(t, body.Metrics.HasLoops)
}

func TestDecodeIfElse(t *testing.T) {
	scope := &testScope{locals: []wasm.ValueType{wasm.ValueTypeI32}}

	body, err := Decode(encode(t,
		LocalGet(0),
		IfOf(wasm.ValueTypeI32),
		I32Const(1),
		Else(),
		I32Const(2),
		End(),
		Drop(),
		End(),
	), scope, nil)
	require.NoError(t, err)

	ifInstr := &body.Instructions[1]
	assert.Equal(t, byte(OpIf), ifInstr.Opcode)
	assert.Equal(t, 3, ifInstr.Else())
	assert.Equal(t, 6, ifInstr.Continuation())
}

func TestDecodeMemoryCopyFill(t *testing.T) {
	scope := &testScope{memory: true}

	body, err := Decode(encode(t,
		I32Const(0), I32Const(16), I32Const(8), MemoryCopy(),
		I32Const(0), I32Const(0xCC), I32Const(8), MemoryFill(),
		End(),
	), scope, nil)
	require.NoError(t, err)
	assert.Len(t, body.Instructions, 9)
}

func TestDecodeCallSignature(t *testing.T) {
	scope := &testScope{
		funcs: []wasm.FunctionSig{
			{ParamTypes: []wasm.ValueType{wasm.ValueTypeI32}, ReturnTypes: []wasm.ValueType{wasm.ValueTypeI64}},
		},
	}

	_, err := Decode(encode(t, I32Const(0), Call(0), Drop(), End()), scope, nil)
	assert.NoError(t, err)

	// Wrong argument type.
	_, err = Decode(encode(t, I64Const(0), Call(0), Drop(), End()), scope, nil)
	assert.Error(t, err)
}
