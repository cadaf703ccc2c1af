package code

import (
	"math"

	"github.com/neri/wami/wasm"
)

// An Instruction is a single decoded WASM instruction. Branch-carrying
// instructions have their targets resolved to instruction offsets during
// decoding.
type Instruction struct {
	Opcode    byte   `json:"opcode"`
	Immediate uint64 `json:"immediate"`
	Labels    []int  `json:"labels"`
}

// Continuation returns the instruction offset that a block, loop, if, or else
// instruction transfers control to.
func (i *Instruction) Continuation() int {
	return i.Labels[0]
}

// Else returns the offset of an if instruction's else branch, or 0 if it has
// none.
func (i *Instruction) Else() int {
	return i.Labels[1]
}

// StackHeight returns the operand stack height at entry to a block, loop, or
// if instruction.
func (i *Instruction) StackHeight() int {
	return int((i.Immediate & StackHeightMask) >> 32)
}

// Default returns the default label of a br_table instruction.
func (i *Instruction) Default() int {
	return int(i.Immediate)
}

func (i *Instruction) Labelidx() int {
	return int(i.Immediate)
}

func (i *Instruction) Funcidx() uint32 {
	return uint32(i.Immediate)
}

func (i *Instruction) Localidx() uint32 {
	return uint32(i.Immediate)
}

func (i *Instruction) Globalidx() uint32 {
	return uint32(i.Immediate)
}

func (i *Instruction) Typeidx() uint32 {
	return uint32(i.Immediate)
}

func (i *Instruction) Memarg() (offset uint32, align uint32) {
	return uint32(i.Immediate), uint32(i.Immediate >> 32)
}

func (i *Instruction) Offset() uint32 {
	return uint32(i.Immediate)
}

func (i *Instruction) I32() int32 {
	return int32(i.Immediate)
}

func (i *Instruction) I64() int64 {
	return int64(i.Immediate)
}

func (i *Instruction) F32() float32 {
	return math.Float32frombits(uint32(i.Immediate))
}

func (i *Instruction) F64() float64 {
	return math.Float64frombits(uint64(i.Immediate))
}

// BlockType returns the input and output types of a block, loop, or if
// instruction.
func (i *Instruction) BlockType(scope Scope) (in, out []wasm.ValueType, ok bool) {
	switch i.Immediate & BlockTypeMask {
	case BlockTypeEmpty:
		return nil, nil, true
	case BlockTypeI32:
		return nil, []wasm.ValueType{wasm.ValueTypeI32}, true
	case BlockTypeI64:
		return nil, []wasm.ValueType{wasm.ValueTypeI64}, true
	case BlockTypeF32:
		return nil, []wasm.ValueType{wasm.ValueTypeF32}, true
	case BlockTypeF64:
		return nil, []wasm.ValueType{wasm.ValueTypeF64}, true
	default:
		sig, ok := scope.GetType(i.Typeidx())
		if !ok {
			return nil, nil, false
		}
		return sig.ParamTypes, sig.ReturnTypes, true
	}
}

// Constructors for building instruction streams in memory. These are used by
// tests and by embedders that synthesize modules.

func simple(op byte) Instruction {
	return Instruction{Opcode: op}
}

func indexed(op byte, index uint32) Instruction {
	return Instruction{Opcode: op, Immediate: uint64(index)}
}

func memory(op byte, offset, align uint32) Instruction {
	return Instruction{Opcode: op, Immediate: memarg(offset, align)}
}

func Unreachable() Instruction { return simple(OpUnreachable) }
func Nop() Instruction         { return simple(OpNop) }

// Block creates a block instruction with no inputs or outputs.
func Block() Instruction {
	return Instruction{Opcode: OpBlock, Immediate: BlockTypeEmpty, Labels: []int{0}}
}

// BlockOf creates a block instruction with the single given output type.
func BlockOf(out wasm.ValueType) Instruction {
	return Instruction{Opcode: OpBlock, Immediate: BlockTypeMask & (0x8000000000000000 | uint64(out)), Labels: []int{0}}
}

// Loop creates a loop instruction with no inputs or outputs.
func Loop() Instruction {
	return Instruction{Opcode: OpLoop, Immediate: BlockTypeEmpty, Labels: []int{0}}
}

// If creates an if instruction with no inputs or outputs.
func If() Instruction {
	return Instruction{Opcode: OpIf, Immediate: BlockTypeEmpty, Labels: []int{0, 0}}
}

// IfOf creates an if instruction with the single given output type.
func IfOf(out wasm.ValueType) Instruction {
	return Instruction{Opcode: OpIf, Immediate: BlockTypeMask & (0x8000000000000000 | uint64(out)), Labels: []int{0, 0}}
}

func Else() Instruction { return Instruction{Opcode: OpElse, Labels: []int{0}} }
func End() Instruction  { return simple(OpEnd) }

func Br(labelidx int) Instruction   { return indexed(OpBr, uint32(labelidx)) }
func BrIf(labelidx int) Instruction { return indexed(OpBrIf, uint32(labelidx)) }

func BrTable(labels []int, defaultLabel int) Instruction {
	return Instruction{Opcode: OpBrTable, Immediate: uint64(defaultLabel), Labels: labels}
}

func Return() Instruction { return simple(OpReturn) }

func Call(funcidx uint32) Instruction { return indexed(OpCall, funcidx) }

func CallIndirect(typeidx uint32) Instruction { return indexed(OpCallIndirect, typeidx) }

func Drop() Instruction   { return simple(OpDrop) }
func Select() Instruction { return simple(OpSelect) }

func LocalGet(localidx uint32) Instruction   { return indexed(OpLocalGet, localidx) }
func LocalSet(localidx uint32) Instruction   { return indexed(OpLocalSet, localidx) }
func LocalTee(localidx uint32) Instruction   { return indexed(OpLocalTee, localidx) }
func GlobalGet(globalidx uint32) Instruction { return indexed(OpGlobalGet, globalidx) }
func GlobalSet(globalidx uint32) Instruction { return indexed(OpGlobalSet, globalidx) }

func I32Load(offset uint32) Instruction  { return memory(OpI32Load, offset, 2) }
func I64Load(offset uint32) Instruction  { return memory(OpI64Load, offset, 3) }
func F32Load(offset uint32) Instruction  { return memory(OpF32Load, offset, 2) }
func F64Load(offset uint32) Instruction  { return memory(OpF64Load, offset, 3) }
func I32Load8U(offset uint32) Instruction  { return memory(OpI32Load8U, offset, 0) }
func I32Load8S(offset uint32) Instruction  { return memory(OpI32Load8S, offset, 0) }
func I32Load16U(offset uint32) Instruction { return memory(OpI32Load16U, offset, 1) }
func I32Load16S(offset uint32) Instruction { return memory(OpI32Load16S, offset, 1) }
func I32Store(offset uint32) Instruction { return memory(OpI32Store, offset, 2) }
func I64Store(offset uint32) Instruction { return memory(OpI64Store, offset, 3) }
func F32Store(offset uint32) Instruction { return memory(OpF32Store, offset, 2) }
func F64Store(offset uint32) Instruction { return memory(OpF64Store, offset, 3) }
func I32Store8(offset uint32) Instruction  { return memory(OpI32Store8, offset, 0) }
func I32Store16(offset uint32) Instruction { return memory(OpI32Store16, offset, 1) }

func MemorySize() Instruction { return simple(OpMemorySize) }
func MemoryGrow() Instruction { return simple(OpMemoryGrow) }

func MemoryCopy() Instruction {
	return Instruction{Opcode: OpPrefix, Immediate: OpMemoryCopy}
}

func MemoryFill() Instruction {
	return Instruction{Opcode: OpPrefix, Immediate: OpMemoryFill}
}

func I32Const(v int32) Instruction {
	return Instruction{Opcode: OpI32Const, Immediate: uint64(v)}
}

func I64Const(v int64) Instruction {
	return Instruction{Opcode: OpI64Const, Immediate: uint64(v)}
}

func F32Const(v float32) Instruction {
	return Instruction{Opcode: OpF32Const, Immediate: uint64(math.Float32bits(v))}
}

func F64Const(v float64) Instruction {
	return Instruction{Opcode: OpF64Const, Immediate: math.Float64bits(v)}
}

func I32Eqz() Instruction { return simple(OpI32Eqz) }
func I32Eq() Instruction  { return simple(OpI32Eq) }
func I32Ne() Instruction  { return simple(OpI32Ne) }
func I32LtS() Instruction { return simple(OpI32LtS) }
func I32LtU() Instruction { return simple(OpI32LtU) }
func I32GtS() Instruction { return simple(OpI32GtS) }
func I32GtU() Instruction { return simple(OpI32GtU) }
func I32LeS() Instruction { return simple(OpI32LeS) }
func I32LeU() Instruction { return simple(OpI32LeU) }
func I32GeS() Instruction { return simple(OpI32GeS) }
func I32GeU() Instruction { return simple(OpI32GeU) }

func I64Eqz() Instruction { return simple(OpI64Eqz) }
func I64Eq() Instruction  { return simple(OpI64Eq) }
func I64Ne() Instruction  { return simple(OpI64Ne) }
func I64LtS() Instruction { return simple(OpI64LtS) }
func I64LtU() Instruction { return simple(OpI64LtU) }
func I64GtS() Instruction { return simple(OpI64GtS) }
func I64GtU() Instruction { return simple(OpI64GtU) }

func I32Clz() Instruction    { return simple(OpI32Clz) }
func I32Ctz() Instruction    { return simple(OpI32Ctz) }
func I32Popcnt() Instruction { return simple(OpI32Popcnt) }
func I32Add() Instruction    { return simple(OpI32Add) }
func I32Sub() Instruction    { return simple(OpI32Sub) }
func I32Mul() Instruction    { return simple(OpI32Mul) }
func I32DivS() Instruction   { return simple(OpI32DivS) }
func I32DivU() Instruction   { return simple(OpI32DivU) }
func I32RemS() Instruction   { return simple(OpI32RemS) }
func I32RemU() Instruction   { return simple(OpI32RemU) }
func I32And() Instruction    { return simple(OpI32And) }
func I32Or() Instruction     { return simple(OpI32Or) }
func I32Xor() Instruction    { return simple(OpI32Xor) }
func I32Shl() Instruction    { return simple(OpI32Shl) }
func I32ShrS() Instruction   { return simple(OpI32ShrS) }
func I32ShrU() Instruction   { return simple(OpI32ShrU) }
func I32Rotl() Instruction   { return simple(OpI32Rotl) }
func I32Rotr() Instruction   { return simple(OpI32Rotr) }

func I64Clz() Instruction    { return simple(OpI64Clz) }
func I64Ctz() Instruction    { return simple(OpI64Ctz) }
func I64Popcnt() Instruction { return simple(OpI64Popcnt) }
func I64Add() Instruction    { return simple(OpI64Add) }
func I64Sub() Instruction    { return simple(OpI64Sub) }
func I64Mul() Instruction    { return simple(OpI64Mul) }
func I64DivS() Instruction   { return simple(OpI64DivS) }
func I64DivU() Instruction   { return simple(OpI64DivU) }
func I64RemS() Instruction   { return simple(OpI64RemS) }
func I64RemU() Instruction   { return simple(OpI64RemU) }
func I64And() Instruction    { return simple(OpI64And) }
func I64Or() Instruction     { return simple(OpI64Or) }
func I64Xor() Instruction    { return simple(OpI64Xor) }
func I64Shl() Instruction    { return simple(OpI64Shl) }
func I64ShrS() Instruction   { return simple(OpI64ShrS) }
func I64ShrU() Instruction   { return simple(OpI64ShrU) }
func I64Rotl() Instruction   { return simple(OpI64Rotl) }
func I64Rotr() Instruction   { return simple(OpI64Rotr) }

func F64Add() Instruction { return simple(OpF64Add) }
func F64Sub() Instruction { return simple(OpF64Sub) }
func F64Mul() Instruction { return simple(OpF64Mul) }
func F64Div() Instruction { return simple(OpF64Div) }
func F64Min() Instruction { return simple(OpF64Min) }
func F64Max() Instruction { return simple(OpF64Max) }

func I32WrapI64() Instruction    { return simple(OpI32WrapI64) }
func I64ExtendI32S() Instruction { return simple(OpI64ExtendI32S) }
func I64ExtendI32U() Instruction { return simple(OpI64ExtendI32U) }
func I32Extend8S() Instruction   { return simple(OpI32Extend8S) }
func I32Extend16S() Instruction  { return simple(OpI32Extend16S) }
func I64Extend32S() Instruction  { return simple(OpI64Extend32S) }

func I32TruncF64S() Instruction { return simple(OpI32TruncF64S) }
func F64ConvertI32S() Instruction { return simple(OpF64ConvertI32S) }

func I32TruncSatF64S() Instruction {
	return Instruction{Opcode: OpPrefix, Immediate: OpI32TruncSatF64S}
}
