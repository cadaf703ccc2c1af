package interpreter

import (
	"bytes"
	"fmt"
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neri/wami/exec"
	"github.com/neri/wami/wasm"
	"github.com/neri/wami/wasm/code"
)

func expr(instrs ...code.Instruction) []byte {
	var buf bytes.Buffer
	if err := code.Encode(&buf, instrs); err != nil {
		panic(fmt.Errorf("encoding expression: %w", err))
	}
	return buf.Bytes()
}

func i32Const(v int32) []byte {
	return expr(code.I32Const(v), code.End())
}

func u64(v int32) uint64 {
	return uint64(uint32(v))
}

func instantiate(t *testing.T, def exec.ModuleDefinition) exec.Module {
	t.Helper()

	store := exec.NewStore(exec.MapResolver{
		"test": def,
	})

	mod, err := store.InstantiateModule("test")
	require.NoError(t, err)
	return mod
}

// invoke calls an export and converts any trap into an error.
func invoke(mod exec.Module, entrypoint string, args []uint64, nresults int) (results []uint64, err error) {
	f, err := mod.GetFunction(entrypoint)
	if err != nil {
		return nil, err
	}

	defer func() {
		if x := recover(); x != nil {
			if trap, ok := x.(exec.Trap); ok {
				results, err = nil, trap
				return
			}
			if hostErr, ok := x.(*exec.HostError); ok {
				results, err = nil, hostErr
				return
			}
			panic(x)
		}
	}()

	thread := exec.NewThread(0)
	returns := make([]uint64, nresults)
	f.UncheckedCall(&thread, args, returns)
	return returns, nil
}

func testModule(t *testing.T, def exec.ModuleDefinition, entrypoint string, expected ...uint64) {
	t.Helper()

	mod := instantiate(t, def)

	if expected == nil {
		expected = []uint64{}
	}
	returns, err := invoke(mod, entrypoint, nil, len(expected))
	require.NoError(t, err)
	assert.Equal(t, expected, returns)
}

var sigI32toI32 = wasm.FunctionSig{Form: wasm.TypeFunc, ParamTypes: []wasm.ValueType{wasm.ValueTypeI32}, ReturnTypes: []wasm.ValueType{wasm.ValueTypeI32}}
var sigI32I32toI32 = wasm.FunctionSig{Form: wasm.TypeFunc, ParamTypes: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, ReturnTypes: []wasm.ValueType{wasm.ValueTypeI32}}

func TestEmptyFunction(t *testing.T) {
	def := NewModuleDefinition(&wasm.Module{
		Version: 1,

		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{
				{Form: wasm.TypeFunc, ParamTypes: []wasm.ValueType{}, ReturnTypes: []wasm.ValueType{}},
			},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{
				{FieldStr: "main", Kind: wasm.ExternalFunction, Index: 0},
			},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{{Code: expr(code.Return(), code.End())}},
		},
	})

	testModule(t, def, "main")
}

// fib is the recursive definition: fib(n) = n if n < 2 else fib(n-1)+fib(n-2).
func fibModule() exec.ModuleDefinition {
	return NewModuleDefinition(&wasm.Module{
		Version: 1,

		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{sigI32toI32},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{
				{FieldStr: "fib", Kind: wasm.ExternalFunction, Index: 0},
			},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{
				{
					Code: expr(
						code.LocalGet(0),
						code.I32Const(2),
						code.I32LtS(),
						code.IfOf(wasm.ValueTypeI32),
						code.LocalGet(0),
						code.Else(),
						code.LocalGet(0),
						code.I32Const(1),
						code.I32Sub(),
						code.Call(0),
						code.LocalGet(0),
						code.I32Const(2),
						code.I32Sub(),
						code.Call(0),
						code.I32Add(),
						code.End(),
						code.End(),
					),
				},
			},
		},
	})
}

func TestFibRecursive(t *testing.T) {
	mod := instantiate(t, fibModule())

	for _, c := range []struct{ n, expected int32 }{
		{5, 5},
		{10, 55},
		{20, 6765},
	} {
		results, err := invoke(mod, "fib", []uint64{uint64(c.n)}, 1)
		require.NoError(t, err)
		assert.Equal(t, c.expected, int32(results[0]), "fib(%d)", c.n)
	}
}

// fact is the loop-based definition. The body is shaped to exercise the
// peephole folds: the constant initializer folds into local.set, the eqz
// condition folds into br_if, and the constant decrement folds into i32.add.
func factModule() exec.ModuleDefinition {
	return NewModuleDefinition(&wasm.Module{
		Version: 1,

		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{sigI32toI32},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{
				{FieldStr: "fact", Kind: wasm.ExternalFunction, Index: 0},
			},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{
				{
					Locals: []wasm.LocalEntry{{Count: 1, Type: wasm.ValueTypeI32}},
					Code: expr(
						code.I32Const(1),
						code.LocalSet(1),
						code.Block(),
						code.Loop(),
						code.LocalGet(0),
						code.I32Eqz(),
						code.BrIf(1),
						code.LocalGet(1),
						code.LocalGet(0),
						code.I32Mul(),
						code.LocalSet(1),
						code.LocalGet(0),
						code.I32Const(1),
						code.I32Sub(),
						code.LocalSet(0),
						code.Br(0),
						code.End(),
						code.End(),
						code.LocalGet(1),
						code.End(),
					),
				},
			},
		},
	})
}

func TestFactorialLoop(t *testing.T) {
	mod := instantiate(t, factModule())

	for _, c := range []struct{ n, expected int32 }{
		{0, 1},
		{5, 120},
		{7, 5040},
		{10, 3628800},
	} {
		results, err := invoke(mod, "fact", []uint64{uint64(c.n)}, 1)
		require.NoError(t, err)
		assert.Equal(t, c.expected, int32(results[0]), "fact(%d)", c.n)
	}
}

// binI32Ops lists the binary i32 operators in the order their results are
// stored, starting at address 0x10.
var binI32Ops = []struct {
	name  string
	instr code.Instruction
	eval  func(lhs, rhs int32) int32
}{
	{"eq", code.I32Eq(), func(l, r int32) int32 { return b2i(l == r) }},
	{"ne", code.I32Ne(), func(l, r int32) int32 { return b2i(l != r) }},
	{"lt_s", code.I32LtS(), func(l, r int32) int32 { return b2i(l < r) }},
	{"lt_u", code.I32LtU(), func(l, r int32) int32 { return b2i(uint32(l) < uint32(r)) }},
	{"gt_s", code.I32GtS(), func(l, r int32) int32 { return b2i(l > r) }},
	{"gt_u", code.I32GtU(), func(l, r int32) int32 { return b2i(uint32(l) > uint32(r)) }},
	{"le_s", code.I32LeS(), func(l, r int32) int32 { return b2i(l <= r) }},
	{"le_u", code.I32LeU(), func(l, r int32) int32 { return b2i(uint32(l) <= uint32(r)) }},
	{"ge_s", code.I32GeS(), func(l, r int32) int32 { return b2i(l >= r) }},
	{"ge_u", code.I32GeU(), func(l, r int32) int32 { return b2i(uint32(l) >= uint32(r)) }},
	{"add", code.I32Add(), func(l, r int32) int32 { return l + r }},
	{"sub", code.I32Sub(), func(l, r int32) int32 { return l - r }},
	{"mul", code.I32Mul(), func(l, r int32) int32 { return l * r }},
	{"div_s", code.I32DivS(), func(l, r int32) int32 { return l / r }},
	{"div_u", code.I32DivU(), func(l, r int32) int32 { return int32(uint32(l) / uint32(r)) }},
	{"rem_s", code.I32RemS(), func(l, r int32) int32 { return l % r }},
	{"rem_u", code.I32RemU(), func(l, r int32) int32 { return int32(uint32(l) % uint32(r)) }},
	{"and", code.I32And(), func(l, r int32) int32 { return l & r }},
	{"or", code.I32Or(), func(l, r int32) int32 { return l | r }},
	{"xor", code.I32Xor(), func(l, r int32) int32 { return l ^ r }},
	{"shl", code.I32Shl(), func(l, r int32) int32 { return l << (uint32(r) & 31) }},
	{"shr_s", code.I32ShrS(), func(l, r int32) int32 { return l >> (uint32(r) & 31) }},
	{"shr_u", code.I32ShrU(), func(l, r int32) int32 { return int32(uint32(l) >> (uint32(r) & 31)) }},
	{"rotl", code.I32Rotl(), func(l, r int32) int32 { return int32(bits.RotateLeft32(uint32(l), int(r))) }},
	{"rotr", code.I32Rotr(), func(l, r int32) int32 { return int32(bits.RotateLeft32(uint32(l), -int(r))) }},
}

func b2i(v bool) int32 {
	if v {
		return 1
	}
	return 0
}

// binI32Module stores the result of every binary i32 operator on its two
// arguments to consecutive words starting at 0x10 and returns the number of
// bytes written.
func binI32Module() exec.ModuleDefinition {
	instrs := []code.Instruction{}
	addr := int32(0x10)
	for _, op := range binI32Ops {
		instrs = append(instrs,
			code.I32Const(addr),
			code.LocalGet(0),
			code.LocalGet(1),
			op.instr,
			code.I32Store(0),
		)
		addr += 4
	}
	instrs = append(instrs, code.I32Const(addr-0x10), code.End())

	return NewModuleDefinition(&wasm.Module{
		Version: 1,

		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{sigI32I32toI32},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Memory: &wasm.SectionMemories{
			Entries: []wasm.Memory{{Limits: wasm.ResizableLimits{Initial: 1}}},
		},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{
				{FieldStr: "memory", Kind: wasm.ExternalMemory, Index: 0},
				{FieldStr: "test_bin_i32", Kind: wasm.ExternalFunction, Index: 0},
			},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{{Code: expr(instrs...)}},
		},
	})
}

func TestBinaryI32Suite(t *testing.T) {
	mod := instantiate(t, binI32Module())
	memory, err := mod.GetMemory("memory")
	require.NoError(t, err)

	for _, c := range [][2]int32{
		{-7, 3},
		{1, 1},
		{1234, 5678},
		{-1234, 1234},
		{0x7FFFFFFF, -0x80000000},
		{0x55555555, -0x55555556},
	} {
		lhs, rhs := c[0], c[1]

		results, err := invoke(mod, "test_bin_i32", []uint64{uint64(lhs), uint64(rhs)}, 1)
		require.NoError(t, err)
		assert.Equal(t, int32(len(binI32Ops)*4), int32(results[0]))

		for i, op := range binI32Ops {
			got := int32(memory.Uint32At(uint32(0x10 + i*4)))
			assert.Equal(t, op.eval(lhs, rhs), got, "%s(%d, %d)", op.name, lhs, rhs)
		}
	}
}

func TestBinaryI32DivByZeroTrap(t *testing.T) {
	mod := instantiate(t, binI32Module())
	memory, err := mod.GetMemory("memory")
	require.NoError(t, err)

	// Poison the result area so untouched slots are observable.
	memory.Fill(0x10, 0xCC, uint32(len(binI32Ops)*4))

	_, err = invoke(mod, "test_bin_i32", []uint64{uint64(int32(1)), uint64(int32(0))}, 1)
	assert.Equal(t, exec.TrapIntegerDivideByZero, err)

	// Slots before div_s retain their computed values; the div_s slot and
	// everything after it are untouched.
	divSlot := 0
	for i, op := range binI32Ops {
		if op.name == "div_s" {
			divSlot = i
			break
		}
		got := memory.Uint32At(uint32(0x10 + i*4))
		assert.Equal(t, uint32(op.eval(1, 0)), got, "%s before trap", op.name)
	}
	for i := divSlot; i < len(binI32Ops); i++ {
		assert.Equal(t, uint32(0xCCCCCCCC), memory.Uint32At(uint32(0x10+i*4)), "%s after trap", binI32Ops[i].name)
	}
}

func TestMemoryGrow(t *testing.T) {
	def := NewModuleDefinition(&wasm.Module{
		Version: 1,

		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{sigI32toI32},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0, 0}},
		Memory: &wasm.SectionMemories{
			Entries: []wasm.Memory{{Limits: wasm.ResizableLimits{Flags: 1, Initial: 1, Maximum: 8}}},
		},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{
				{FieldStr: "grow", Kind: wasm.ExternalFunction, Index: 0},
				{FieldStr: "size", Kind: wasm.ExternalFunction, Index: 1},
			},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{
				{Code: expr(code.LocalGet(0), code.MemoryGrow(), code.End())},
				{Code: expr(code.LocalGet(0), code.Drop(), code.MemorySize(), code.End())},
			},
		},
	})

	mod := instantiate(t, def)

	results, err := invoke(mod, "grow", []uint64{2}, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(1), int32(results[0]))

	results, err = invoke(mod, "size", []uint64{0}, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(3), int32(results[0]))

	// Growing past the maximum returns -1 and does not trap.
	results, err = invoke(mod, "grow", []uint64{100}, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(-1), int32(results[0]))
}

// callIndirectModule builds a table with entries 1..3 populated: index 1 adds
// 123, index 2 subtracts 456, and index 3 has an incompatible signature.
// Index 0 stays null.
func callIndirectModule() exec.ModuleDefinition {
	sigNullary := wasm.FunctionSig{Form: wasm.TypeFunc, ParamTypes: []wasm.ValueType{}, ReturnTypes: []wasm.ValueType{wasm.ValueTypeI32}}

	return NewModuleDefinition(&wasm.Module{
		Version: 1,

		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{sigI32toI32, sigI32I32toI32, sigNullary},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0, 0, 2, 1}},
		Table: &wasm.SectionTables{
			Entries: []wasm.Table{
				{ElementType: wasm.ElemTypeAnyFunc, Limits: wasm.ResizableLimits{Flags: 1, Initial: 8, Maximum: 8}},
			},
		},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{
				{FieldStr: "call_indirect_test", Kind: wasm.ExternalFunction, Index: 3},
			},
		},
		Elements: &wasm.SectionElements{
			Entries: []wasm.ElementSegment{
				{Index: 0, Offset: i32Const(1), Elems: []uint32{0, 1, 2}},
			},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{
				// elem1: a1 + 123
				{Code: expr(code.LocalGet(0), code.I32Const(123), code.I32Add(), code.End())},
				// elem2: a1 - 456
				{Code: expr(code.LocalGet(0), code.I32Const(456), code.I32Sub(), code.End())},
				// elem3: () -> i32, for the type mismatch case
				{Code: expr(code.I32Const(789), code.End())},
				// call_indirect_test(sel, a1)
				{Code: expr(
					code.LocalGet(1),
					code.LocalGet(0),
					code.CallIndirect(0),
					code.End(),
				)},
			},
		},
	})
}

func TestCallIndirect(t *testing.T) {
	mod := instantiate(t, callIndirectModule())

	results, err := invoke(mod, "call_indirect_test", []uint64{1, 10}, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(133), int32(results[0]))

	results, err = invoke(mod, "call_indirect_test", []uint64{2, 10}, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(-446), int32(results[0]))

	// Out-of-bounds table index.
	_, err = invoke(mod, "call_indirect_test", []uint64{99, 10}, 1)
	assert.Equal(t, exec.TrapUndefinedElement, err)

	// Null entry.
	_, err = invoke(mod, "call_indirect_test", []uint64{0, 10}, 1)
	assert.Equal(t, exec.TrapUninitializedElement, err)

	// Populated entry with the wrong type.
	_, err = invoke(mod, "call_indirect_test", []uint64{3, 10}, 1)
	assert.Equal(t, exec.TrapIndirectCallTypeMismatch, err)
}

func TestBrTable(t *testing.T) {
	// select_const(i): 0 -> 123, 1 -> 456, otherwise 789.
	def := NewModuleDefinition(&wasm.Module{
		Version: 1,

		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{sigI32toI32},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{
				{FieldStr: "select_const", Kind: wasm.ExternalFunction, Index: 0},
			},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{
				{Code: expr(
					code.Block(), // @1: default
					code.Block(), // @2: case 1
					code.Block(), // @3: case 0
					code.LocalGet(0),
					code.BrTable([]int{0, 1}, 2),
					code.End(),
					code.I32Const(123),
					code.Return(),
					code.End(),
					code.I32Const(456),
					code.Return(),
					code.End(),
					code.I32Const(789),
					code.End(),
				)},
			},
		},
	})

	mod := instantiate(t, def)

	for _, c := range []struct{ n, expected int32 }{
		{0, 123},
		{1, 456},
		{2, 789},
		{5, 789},
		{-1, 789},
	} {
		results, err := invoke(mod, "select_const", []uint64{uint64(c.n)}, 1)
		require.NoError(t, err)
		assert.Equal(t, c.expected, int32(results[0]), "select_const(%d)", c.n)
	}
}

// Fused shifts take the shift amount modulo the operand width.
func TestFusedShiftModuloWidth(t *testing.T) {
	def := NewModuleDefinition(&wasm.Module{
		Version: 1,

		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{sigI32toI32},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0, 0}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{
				{FieldStr: "shr_s_35", Kind: wasm.ExternalFunction, Index: 0},
				{FieldStr: "shr_s_3", Kind: wasm.ExternalFunction, Index: 1},
			},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{
				{Code: expr(code.LocalGet(0), code.I32Const(35), code.I32ShrS(), code.End())},
				{Code: expr(code.LocalGet(0), code.I32Const(3), code.I32ShrS(), code.End())},
			},
		},
	})

	mod := instantiate(t, def)

	for _, x := range []int32{0, 1, -1, 0x12345678, -0x12345678, -0x80000000} {
		a, err := invoke(mod, "shr_s_35", []uint64{uint64(x)}, 1)
		require.NoError(t, err)
		b, err := invoke(mod, "shr_s_3", []uint64{uint64(x)}, 1)
		require.NoError(t, err)
		assert.Equal(t, int32(b[0]), int32(a[0]), "shr_s_35(%d) == shr_s_3(%d)", x, x)
	}
}

// Folding a constant add and its negation round-trips modulo 2^32.
func TestFusedAddInverse(t *testing.T) {
	const k = 0x1234567

	def := NewModuleDefinition(&wasm.Module{
		Version: 1,

		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{sigI32toI32},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{
				{FieldStr: "round_trip", Kind: wasm.ExternalFunction, Index: 0},
			},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{
				{Code: expr(
					code.LocalGet(0),
					code.I32Const(k),
					code.I32Add(),
					code.I32Const(k),
					code.I32Sub(),
					code.End(),
				)},
			},
		},
	})

	mod := instantiate(t, def)

	for _, x := range []int32{0, 1, -1, 0x7fffffff, -0x80000000, 42} {
		results, err := invoke(mod, "round_trip", []uint64{uint64(x)}, 1)
		require.NoError(t, err)
		assert.Equal(t, x, int32(results[0]))
	}
}

func TestFusedI64Ops(t *testing.T) {
	sig := wasm.FunctionSig{Form: wasm.TypeFunc, ParamTypes: []wasm.ValueType{wasm.ValueTypeI64}, ReturnTypes: []wasm.ValueType{wasm.ValueTypeI64}}

	def := NewModuleDefinition(&wasm.Module{
		Version: 1,

		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{sig},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{
				{FieldStr: "mix", Kind: wasm.ExternalFunction, Index: 0},
			},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{
				{
					Locals: []wasm.LocalEntry{{Count: 1, Type: wasm.ValueTypeI64}},
					Code: expr(
						// local1 = 0x1_0000_0001 (folds into local.set)
						code.I64Const(0x100000001),
						code.LocalSet(1),
						// ((x + 5) ^ -1) >> 1, all constants folded
						code.LocalGet(0),
						code.I64Const(5),
						code.I64Add(),
						code.I64Const(-1),
						code.I64Xor(),
						code.I64Const(1),
						code.I64ShrS(),
						code.LocalGet(1),
						code.I64And(),
						code.End(),
					),
				},
			},
		},
	})

	mod := instantiate(t, def)

	for _, x := range []int64{0, 1, -1, 0x123456789abcdef0, -42} {
		expected := (((x + 5) ^ -1) >> 1) & 0x100000001
		results, err := invoke(mod, "mix", []uint64{uint64(x)}, 1)
		require.NoError(t, err)
		assert.Equal(t, expected, int64(results[0]), "mix(%d)", x)
	}
}

// A constant emitted just before a block and loop header is not folded into
// anything past the label boundary: it stays on the operand stack beneath the
// loop across every back-edge and is consumed by the add after the blocks.
func TestNoFoldAcrossLabelBoundary(t *testing.T) {
	def := NewModuleDefinition(&wasm.Module{
		Version: 1,

		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{sigI32toI32},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{
				{FieldStr: "count", Kind: wasm.ExternalFunction, Index: 0},
			},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{
				{
					Locals: []wasm.LocalEntry{{Count: 1, Type: wasm.ValueTypeI32}},
					Code: expr(
						// A constant immediately before the block and loop
						// headers; only the add after the blocks consumes it.
						code.I32Const(7),
						code.Block(),
						code.Loop(),
						code.LocalGet(1),
						code.I32Const(1),
						code.I32Add(),
						code.LocalSet(1),
						code.LocalGet(0),
						code.I32Const(-1),
						code.I32Add(),
						code.LocalTee(0),
						code.I32Const(0),
						code.I32GtS(),
						code.BrIf(0),
						code.End(),
						code.End(),
						code.LocalGet(1),
						code.I32Add(),
						code.End(),
					),
				},
			},
		},
	})

	mod := instantiate(t, def)

	// count(n) = 7 + n iterations counted.
	results, err := invoke(mod, "count", []uint64{uint64(int32(5))}, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(12), int32(results[0]))
}

func TestUnreachableTrap(t *testing.T) {
	def := NewModuleDefinition(&wasm.Module{
		Version: 1,

		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{{Form: wasm.TypeFunc, ParamTypes: []wasm.ValueType{}, ReturnTypes: []wasm.ValueType{}}},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{
				{FieldStr: "boom", Kind: wasm.ExternalFunction, Index: 0},
			},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{{Code: expr(code.Unreachable(), code.End())}},
		},
	})

	mod := instantiate(t, def)

	_, err := invoke(mod, "boom", nil, 0)
	assert.Equal(t, exec.TrapUnreachable, err)
}

func TestCallStackExhausted(t *testing.T) {
	def := NewModuleDefinition(&wasm.Module{
		Version: 1,

		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{{Form: wasm.TypeFunc, ParamTypes: []wasm.ValueType{}, ReturnTypes: []wasm.ValueType{}}},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{
				{FieldStr: "recurse", Kind: wasm.ExternalFunction, Index: 0},
			},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{{Code: expr(code.Call(0), code.End())}},
		},
	})

	mod := instantiate(t, def)

	f, err := mod.GetFunction("recurse")
	require.NoError(t, err)

	thread := exec.NewThread(256)
	assert.PanicsWithValue(t, exec.TrapCallStackExhausted, func() {
		f.UncheckedCall(&thread, nil, nil)
	})
}

func TestOutOfBoundsLoadTrap(t *testing.T) {
	def := NewModuleDefinition(&wasm.Module{
		Version: 1,

		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{sigI32toI32},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Memory: &wasm.SectionMemories{
			Entries: []wasm.Memory{{Limits: wasm.ResizableLimits{Initial: 1}}},
		},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{
				{FieldStr: "peek", Kind: wasm.ExternalFunction, Index: 0},
			},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{
				{Code: expr(code.LocalGet(0), code.I32Load(0), code.End())},
			},
		},
	})

	mod := instantiate(t, def)

	results, err := invoke(mod, "peek", []uint64{0}, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(0), int32(results[0]))

	_, err = invoke(mod, "peek", []uint64{uint64(int32(65536))}, 1)
	assert.Equal(t, exec.TrapOutOfBoundsMemoryAccess, err)

	_, err = invoke(mod, "peek", []uint64{uint64(int32(65533))}, 1)
	assert.Equal(t, exec.TrapOutOfBoundsMemoryAccess, err)

	// A negative base is a large unsigned address.
	_, err = invoke(mod, "peek", []uint64{u64(-4)}, 1)
	assert.Equal(t, exec.TrapOutOfBoundsMemoryAccess, err)
}

func TestMemoryFillCopy(t *testing.T) {
	def := NewModuleDefinition(&wasm.Module{
		Version: 1,

		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{{Form: wasm.TypeFunc, ParamTypes: []wasm.ValueType{}, ReturnTypes: []wasm.ValueType{}}},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Memory: &wasm.SectionMemories{
			Entries: []wasm.Memory{{Limits: wasm.ResizableLimits{Initial: 1}}},
		},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{
				{FieldStr: "memory", Kind: wasm.ExternalMemory, Index: 0},
				{FieldStr: "scramble", Kind: wasm.ExternalFunction, Index: 0},
			},
		},
		Data: &wasm.SectionData{
			Entries: []wasm.DataSegment{
				{Index: 0, Offset: i32Const(0), Data: []byte("abcdefgh")},
			},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{
				{Code: expr(
					// fill [0x20, 0x24) with 0x5A
					code.I32Const(0x20), code.I32Const(0x5A), code.I32Const(4), code.MemoryFill(),
					// overlapping copy of the data segment: [2, 10) <- [0, 8)
					code.I32Const(2), code.I32Const(0), code.I32Const(8), code.MemoryCopy(),
					code.End(),
				)},
			},
		},
	})

	mod := instantiate(t, def)
	memory, err := mod.GetMemory("memory")
	require.NoError(t, err)

	_, err = invoke(mod, "scramble", nil, 0)
	require.NoError(t, err)

	for i := uint32(0); i < 4; i++ {
		assert.Equal(t, byte(0x5A), memory.ByteAt(0x20+i))
	}
	assert.Equal(t, []byte("ababcdefgh"), memory.Bytes()[:10])
}

type hostEnv struct {
	logged []int32
}

func (h *hostEnv) AddTwo(a, b int32) int32 {
	return a + b
}

func (h *hostEnv) Log(v int32) {
	h.logged = append(h.logged, v)
}

func TestHostImport(t *testing.T) {
	env := &hostEnv{}

	def := NewModuleDefinition(&wasm.Module{
		Version: 1,

		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{
				sigI32I32toI32,
				{Form: wasm.TypeFunc, ParamTypes: []wasm.ValueType{wasm.ValueTypeI32}, ReturnTypes: []wasm.ValueType{}},
				sigI32toI32,
			},
		},
		Import: &wasm.SectionImports{
			Entries: []wasm.ImportEntry{
				{ModuleName: "env", FieldName: "addTwo", Type: wasm.FuncImport{Type: 0}},
				{ModuleName: "env", FieldName: "log", Type: wasm.FuncImport{Type: 1}},
			},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{2}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{
				{FieldStr: "addAndLog", Kind: wasm.ExternalFunction, Index: 2},
			},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{
				{
					// addAndLog(x) = addTwo(x, 100); log(result); return result
					Locals: []wasm.LocalEntry{{Count: 1, Type: wasm.ValueTypeI32}},
					Code: expr(
						code.LocalGet(0),
						code.I32Const(100),
						code.Call(0),
						code.LocalTee(1),
						code.Call(1),
						code.LocalGet(1),
						code.End(),
					),
				},
			},
		},
	})

	store := exec.NewStore(exec.MapResolver{
		"test": def,
		"env": exec.NewHostModuleDefinition(func() (*hostEnv, error) {
			return env, nil
		}),
	})

	mod, err := store.InstantiateModule("test")
	require.NoError(t, err)

	results, err := invoke(mod, "addAndLog", []uint64{u64(-58)}, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(42), int32(results[0]))
	assert.Equal(t, []int32{42}, env.logged)
}

func TestGlobalsAndStart(t *testing.T) {
	def := NewModuleDefinition(&wasm.Module{
		Version: 1,

		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{
				{Form: wasm.TypeFunc, ParamTypes: []wasm.ValueType{}, ReturnTypes: []wasm.ValueType{}},
				{Form: wasm.TypeFunc, ParamTypes: []wasm.ValueType{}, ReturnTypes: []wasm.ValueType{wasm.ValueTypeI32}},
			},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0, 1}},
		Global: &wasm.SectionGlobals{
			Globals: []wasm.GlobalEntry{
				{Type: wasm.GlobalVar{Type: wasm.ValueTypeI32, Mutable: true}, Init: i32Const(10)},
			},
		},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{
				{FieldStr: "counter", Kind: wasm.ExternalGlobal, Index: 0},
				{FieldStr: "bump", Kind: wasm.ExternalFunction, Index: 1},
			},
		},
		Start: &wasm.SectionStartFunction{Index: 0},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{
				// start: counter += 5
				{Code: expr(
					code.GlobalGet(0),
					code.I32Const(5),
					code.I32Add(),
					code.GlobalSet(0),
					code.End(),
				)},
				// bump: counter += 1; return counter
				{Code: expr(
					code.GlobalGet(0),
					code.I32Const(1),
					code.I32Add(),
					code.GlobalSet(0),
					code.GlobalGet(0),
					code.End(),
				)},
			},
		},
	})

	mod := instantiate(t, def)

	// The start function ran during instantiation.
	g, err := mod.GetGlobal("counter")
	require.NoError(t, err)
	assert.Equal(t, int32(15), g.GetI32())

	results, err := invoke(mod, "bump", nil, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(16), int32(results[0]))
	assert.Equal(t, int32(16), g.GetI32())
}

func TestElementSegmentOutOfBounds(t *testing.T) {
	def := NewModuleDefinition(&wasm.Module{
		Version: 1,

		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{{Form: wasm.TypeFunc, ParamTypes: []wasm.ValueType{}, ReturnTypes: []wasm.ValueType{}}},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Table: &wasm.SectionTables{
			Entries: []wasm.Table{
				{ElementType: wasm.ElemTypeAnyFunc, Limits: wasm.ResizableLimits{Flags: 1, Initial: 2, Maximum: 2}},
			},
		},
		Elements: &wasm.SectionElements{
			Entries: []wasm.ElementSegment{
				{Index: 0, Offset: i32Const(2), Elems: []uint32{0}},
			},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{{Code: expr(code.End())}},
		},
	})

	store := exec.NewStore(exec.MapResolver{"test": def})
	_, err := store.InstantiateModule("test")
	require.Error(t, err)
	assert.ErrorIs(t, err, exec.TrapOutOfBoundsTableInit)
}

func TestDataSegmentOutOfBounds(t *testing.T) {
	def := NewModuleDefinition(&wasm.Module{
		Version: 1,

		Memory: &wasm.SectionMemories{
			Entries: []wasm.Memory{{Limits: wasm.ResizableLimits{Flags: 1, Initial: 1, Maximum: 1}}},
		},
		Data: &wasm.SectionData{
			Entries: []wasm.DataSegment{
				{Index: 0, Offset: i32Const(0x7f), Data: make([]byte, 65536)},
			},
		},
	})

	store := exec.NewStore(exec.MapResolver{"test": def})
	_, err := store.InstantiateModule("test")
	require.Error(t, err)
	assert.ErrorIs(t, err, exec.TrapOutOfBoundsMemoryInit)
}

func TestSelectAndConversions(t *testing.T) {
	sig := wasm.FunctionSig{Form: wasm.TypeFunc, ParamTypes: []wasm.ValueType{wasm.ValueTypeI32}, ReturnTypes: []wasm.ValueType{wasm.ValueTypeI64}}

	def := NewModuleDefinition(&wasm.Module{
		Version: 1,

		Types: &wasm.SectionTypes{
			Entries: []wasm.FunctionSig{sig},
		},
		Function: &wasm.SectionFunctions{Types: []uint32{0}},
		Export: &wasm.SectionExports{
			Entries: []wasm.ExportEntry{
				{FieldStr: "pick", Kind: wasm.ExternalFunction, Index: 0},
			},
		},
		Code: &wasm.SectionCode{
			Bodies: []wasm.FunctionBody{
				// pick(c) = i64(c != 0 ? -1 : 1) sign-extended from i32
				{Code: expr(
					code.I32Const(-1),
					code.I32Const(1),
					code.LocalGet(0),
					code.Select(),
					code.I64ExtendI32S(),
					code.End(),
				)},
			},
		},
	})

	mod := instantiate(t, def)

	results, err := invoke(mod, "pick", []uint64{1}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), int64(results[0]))

	results, err = invoke(mod, "pick", []uint64{0}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), int64(results[0]))
}
