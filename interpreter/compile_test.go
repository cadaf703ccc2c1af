package interpreter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neri/wami/exec"
	"github.com/neri/wami/wasm"
	"github.com/neri/wami/wasm/code"
)

// compileBody lowers a standalone body with the given locals and results.
func compileBody(t *testing.T, locals []wasm.ValueType, results []wasm.ValueType, instrs ...code.Instruction) *function {
	t.Helper()

	mod := &module{name: "test"}
	fn := &function{
		module:    mod,
		signature: wasm.FunctionSig{Form: wasm.TypeFunc, ParamTypes: locals, ReturnTypes: results},
		bytecode:  expr(instrs...),
	}
	mod.functions = []function{*fn}
	fn = &mod.functions[0]

	fn.ensureCompiled()
	return fn
}

func opcodes(fn *function) []opcode {
	ops := make([]opcode, len(fn.body))
	for i := range fn.body {
		ops[i] = fn.body[i].op
	}
	return ops
}

func TestFoldConstLocalSet(t *testing.T) {
	fn := compileBody(t, []wasm.ValueType{wasm.ValueTypeI32}, nil,
		code.I32Const(7),
		code.LocalSet(0),
		code.End(),
	)

	require.Equal(t, []opcode{iopI32SetConst}, opcodes(fn))
	assert.Equal(t, uint32(0), fn.body[0].idx)
	assert.Equal(t, int32(7), fn.body[0].i32())
}

func TestFoldConstAdd(t *testing.T) {
	fn := compileBody(t, []wasm.ValueType{wasm.ValueTypeI32}, []wasm.ValueType{wasm.ValueTypeI32},
		code.LocalGet(0),
		code.I32Const(3),
		code.I32Add(),
		code.End(),
	)

	require.Equal(t, []opcode{iopLocalGet, iopI32AddI}, opcodes(fn))
	assert.Equal(t, int32(3), fn.body[1].i32())
}

func TestFoldConstSubNegates(t *testing.T) {
	fn := compileBody(t, []wasm.ValueType{wasm.ValueTypeI32}, []wasm.ValueType{wasm.ValueTypeI32},
		code.LocalGet(0),
		code.I32Const(3),
		code.I32Sub(),
		code.End(),
	)

	require.Equal(t, []opcode{iopLocalGet, iopI32AddI}, opcodes(fn))
	assert.Equal(t, int32(-3), fn.body[1].i32())
}

func TestFoldShiftAndBitwise(t *testing.T) {
	fn := compileBody(t, []wasm.ValueType{wasm.ValueTypeI64}, []wasm.ValueType{wasm.ValueTypeI64},
		code.LocalGet(0),
		code.I64Const(0xff),
		code.I64And(),
		code.I64Const(2),
		code.I64Shl(),
		code.End(),
	)

	require.Equal(t, []opcode{iopLocalGet, iopI64AndI, iopI64ShlI}, opcodes(fn))
}

func TestFoldCompareBranch(t *testing.T) {
	fn := compileBody(t, []wasm.ValueType{wasm.ValueTypeI32}, nil,
		code.Block(),
		code.LocalGet(0),
		code.I32Eqz(),
		code.BrIf(0),
		code.End(),
		code.End(),
	)

	require.Equal(t, []opcode{iopLocalGet, iopBrIfI32Eqz}, opcodes(fn))
}

func TestFoldLtBranch(t *testing.T) {
	fn := compileBody(t, []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, nil,
		code.Block(),
		code.LocalGet(0),
		code.LocalGet(1),
		code.I32LtU(),
		code.BrIf(0),
		code.End(),
		code.End(),
	)

	require.Equal(t, []opcode{iopLocalGet, iopLocalGet, iopBrIfI32LtU}, opcodes(fn))
}

func TestNoFoldAcrossBlockEnd(t *testing.T) {
	// A block boundary between the constant and the add ends the fold
	// window: branches to the block's label land between the two.
	fn := compileBody(t, []wasm.ValueType{wasm.ValueTypeI32}, []wasm.ValueType{wasm.ValueTypeI32},
		code.LocalGet(0),
		code.I32Const(3),
		code.Block(),
		code.End(),
		code.I32Add(),
		code.End(),
	)

	require.Equal(t, []opcode{iopLocalGet, iopI32Const, iopI32Add}, opcodes(fn))
}

func TestLabelsResolved(t *testing.T) {
	fn := compileBody(t, []wasm.ValueType{wasm.ValueTypeI32}, nil,
		code.Block(),
		code.Loop(),
		code.LocalGet(0),
		code.BrIf(1),
		code.Br(0),
		code.End(),
		code.End(),
		code.End(),
	)

	// body: local.get, br_if (to block end), br (to loop head)
	require.Equal(t, []opcode{iopLocalGet, iopBrIf, iopBr}, opcodes(fn))

	blockLabel := fn.labels[fn.body[1].idx]
	assert.Equal(t, 3, blockLabel.continuation)

	loopLabel := fn.labels[fn.body[2].idx]
	assert.Equal(t, 0, loopLabel.continuation)
}

func TestDeadCodeNotEmitted(t *testing.T) {
	fn := compileBody(t, nil, []wasm.ValueType{wasm.ValueTypeI32},
		code.I32Const(1),
		code.Return(),
		code.I32Const(2),
		code.I32Const(3),
		code.I32Add(),
		code.Drop(),
		code.End(),
	)

	require.Equal(t, []opcode{iopI32Const, iopReturn}, opcodes(fn))
}

func TestIfElseTargets(t *testing.T) {
	fn := compileBody(t, []wasm.ValueType{wasm.ValueTypeI32}, []wasm.ValueType{wasm.ValueTypeI32},
		code.LocalGet(0),
		code.IfOf(wasm.ValueTypeI32),
		code.I32Const(1),
		code.Else(),
		code.I32Const(2),
		code.End(),
		code.End(),
	)

	// body: local.get, if, const 1, br (to end), const 2
	require.Equal(t, []opcode{iopLocalGet, iopIf, iopI32Const, iopBr, iopI32Const}, opcodes(fn))

	ifInstr := &fn.body[1]
	assert.Equal(t, uint64(4), ifInstr.imm, "false branch jumps to the else arm")

	endLabel := fn.labels[ifInstr.idx]
	assert.Equal(t, 5, endLabel.continuation)
	assert.Equal(t, 1, endLabel.arity)
}

func TestRunCompiled(t *testing.T) {
	fn := compileBody(t, []wasm.ValueType{wasm.ValueTypeI32}, []wasm.ValueType{wasm.ValueTypeI32},
		code.LocalGet(0),
		code.I32Const(10),
		code.I32Add(),
		code.End(),
	)

	thread := exec.NewThread(0)
	returns := make([]uint64, 1)
	fn.UncheckedCall(&thread, []uint64{uint64(int32(32))}, returns)
	assert.Equal(t, int32(42), int32(returns[0]))
}
