package interpreter

import (
	"github.com/neri/wami/wasm/code"
)

// intcode is a compact internal code for WASM function bodies. Most WASM
// instructions pass through unchanged; eligible two-instruction sequences are
// folded into a single fused operation. For example, the sequence
//
//	local.get 0
//	i32.const -1
//	i32.add
//	local.set 0
//	local.get 0
//	br_if 0
//
// lowers to
//
//	local.get 0
//	i32.add.i -1
//	local.set 0
//	local.get 0
//	br_if l0
//
// The recognized fusions are constant folds into local.set and the integer
// binary operators (a constant subtrahend folds into i32.add.i/i64.add.i with
// the sign reversed), and compare-and-branch folds of eqz and the comparison
// operators into br_if. A fold is applied only when the producer's value is
// consumed solely by the folded consumer and no label boundary lies between
// the two instructions.
//
// Structured control disappears during lowering: branch targets are resolved
// to absolute instruction indices held in a side table of labels, each of
// which carries the continuation, the operand stack height to restore, and
// the branch arity.
type opcode uint16

const (
	iopUnreachable  opcode = code.OpUnreachable
	iopNop          opcode = code.OpNop
	iopIf           opcode = code.OpIf
	iopBr           opcode = code.OpBr
	iopBrIf         opcode = code.OpBrIf
	iopBrTable      opcode = code.OpBrTable
	iopReturn       opcode = code.OpReturn
	iopCall         opcode = code.OpCall
	iopCallIndirect opcode = code.OpCallIndirect

	iopDrop   opcode = code.OpDrop
	iopSelect opcode = code.OpSelect

	iopLocalGet  opcode = code.OpLocalGet
	iopLocalSet  opcode = code.OpLocalSet
	iopLocalTee  opcode = code.OpLocalTee
	iopGlobalGet opcode = code.OpGlobalGet
	iopGlobalSet opcode = code.OpGlobalSet

	iopI32Load    opcode = code.OpI32Load
	iopI64Load    opcode = code.OpI64Load
	iopF32Load    opcode = code.OpF32Load
	iopF64Load    opcode = code.OpF64Load
	iopI32Load8S  opcode = code.OpI32Load8S
	iopI32Load8U  opcode = code.OpI32Load8U
	iopI32Load16S opcode = code.OpI32Load16S
	iopI32Load16U opcode = code.OpI32Load16U
	iopI64Load8S  opcode = code.OpI64Load8S
	iopI64Load8U  opcode = code.OpI64Load8U
	iopI64Load16S opcode = code.OpI64Load16S
	iopI64Load16U opcode = code.OpI64Load16U
	iopI64Load32S opcode = code.OpI64Load32S
	iopI64Load32U opcode = code.OpI64Load32U
	iopI32Store   opcode = code.OpI32Store
	iopI64Store   opcode = code.OpI64Store
	iopF32Store   opcode = code.OpF32Store
	iopF64Store   opcode = code.OpF64Store
	iopI32Store8  opcode = code.OpI32Store8
	iopI32Store16 opcode = code.OpI32Store16
	iopI64Store8  opcode = code.OpI64Store8
	iopI64Store16 opcode = code.OpI64Store16
	iopI64Store32 opcode = code.OpI64Store32
	iopMemorySize opcode = code.OpMemorySize
	iopMemoryGrow opcode = code.OpMemoryGrow

	iopI32Const opcode = code.OpI32Const
	iopI64Const opcode = code.OpI64Const
	iopF32Const opcode = code.OpF32Const
	iopF64Const opcode = code.OpF64Const

	iopI32Eqz opcode = code.OpI32Eqz
	iopI32Eq  opcode = code.OpI32Eq
	iopI32Ne  opcode = code.OpI32Ne
	iopI32LtS opcode = code.OpI32LtS
	iopI32LtU opcode = code.OpI32LtU
	iopI32GtS opcode = code.OpI32GtS
	iopI32GtU opcode = code.OpI32GtU
	iopI32LeS opcode = code.OpI32LeS
	iopI32LeU opcode = code.OpI32LeU
	iopI32GeS opcode = code.OpI32GeS
	iopI32GeU opcode = code.OpI32GeU

	iopI64Eqz opcode = code.OpI64Eqz
	iopI64Eq  opcode = code.OpI64Eq
	iopI64Ne  opcode = code.OpI64Ne
	iopI64LtS opcode = code.OpI64LtS
	iopI64LtU opcode = code.OpI64LtU
	iopI64GtS opcode = code.OpI64GtS
	iopI64GtU opcode = code.OpI64GtU
	iopI64LeS opcode = code.OpI64LeS
	iopI64LeU opcode = code.OpI64LeU
	iopI64GeS opcode = code.OpI64GeS
	iopI64GeU opcode = code.OpI64GeU

	iopF32Eq opcode = code.OpF32Eq
	iopF32Ne opcode = code.OpF32Ne
	iopF32Lt opcode = code.OpF32Lt
	iopF32Gt opcode = code.OpF32Gt
	iopF32Le opcode = code.OpF32Le
	iopF32Ge opcode = code.OpF32Ge

	iopF64Eq opcode = code.OpF64Eq
	iopF64Ne opcode = code.OpF64Ne
	iopF64Lt opcode = code.OpF64Lt
	iopF64Gt opcode = code.OpF64Gt
	iopF64Le opcode = code.OpF64Le
	iopF64Ge opcode = code.OpF64Ge

	iopI32Clz    opcode = code.OpI32Clz
	iopI32Ctz    opcode = code.OpI32Ctz
	iopI32Popcnt opcode = code.OpI32Popcnt
	iopI32Add    opcode = code.OpI32Add
	iopI32Sub    opcode = code.OpI32Sub
	iopI32Mul    opcode = code.OpI32Mul
	iopI32DivS   opcode = code.OpI32DivS
	iopI32DivU   opcode = code.OpI32DivU
	iopI32RemS   opcode = code.OpI32RemS
	iopI32RemU   opcode = code.OpI32RemU
	iopI32And    opcode = code.OpI32And
	iopI32Or     opcode = code.OpI32Or
	iopI32Xor    opcode = code.OpI32Xor
	iopI32Shl    opcode = code.OpI32Shl
	iopI32ShrS   opcode = code.OpI32ShrS
	iopI32ShrU   opcode = code.OpI32ShrU
	iopI32Rotl   opcode = code.OpI32Rotl
	iopI32Rotr   opcode = code.OpI32Rotr

	iopI64Clz    opcode = code.OpI64Clz
	iopI64Ctz    opcode = code.OpI64Ctz
	iopI64Popcnt opcode = code.OpI64Popcnt
	iopI64Add    opcode = code.OpI64Add
	iopI64Sub    opcode = code.OpI64Sub
	iopI64Mul    opcode = code.OpI64Mul
	iopI64DivS   opcode = code.OpI64DivS
	iopI64DivU   opcode = code.OpI64DivU
	iopI64RemS   opcode = code.OpI64RemS
	iopI64RemU   opcode = code.OpI64RemU
	iopI64And    opcode = code.OpI64And
	iopI64Or     opcode = code.OpI64Or
	iopI64Xor    opcode = code.OpI64Xor
	iopI64Shl    opcode = code.OpI64Shl
	iopI64ShrS   opcode = code.OpI64ShrS
	iopI64ShrU   opcode = code.OpI64ShrU
	iopI64Rotl   opcode = code.OpI64Rotl
	iopI64Rotr   opcode = code.OpI64Rotr

	iopF32Abs      opcode = code.OpF32Abs
	iopF32Neg      opcode = code.OpF32Neg
	iopF32Ceil     opcode = code.OpF32Ceil
	iopF32Floor    opcode = code.OpF32Floor
	iopF32Trunc    opcode = code.OpF32Trunc
	iopF32Nearest  opcode = code.OpF32Nearest
	iopF32Sqrt     opcode = code.OpF32Sqrt
	iopF32Add      opcode = code.OpF32Add
	iopF32Sub      opcode = code.OpF32Sub
	iopF32Mul      opcode = code.OpF32Mul
	iopF32Div      opcode = code.OpF32Div
	iopF32Min      opcode = code.OpF32Min
	iopF32Max      opcode = code.OpF32Max
	iopF32Copysign opcode = code.OpF32Copysign

	iopF64Abs      opcode = code.OpF64Abs
	iopF64Neg      opcode = code.OpF64Neg
	iopF64Ceil     opcode = code.OpF64Ceil
	iopF64Floor    opcode = code.OpF64Floor
	iopF64Trunc    opcode = code.OpF64Trunc
	iopF64Nearest  opcode = code.OpF64Nearest
	iopF64Sqrt     opcode = code.OpF64Sqrt
	iopF64Add      opcode = code.OpF64Add
	iopF64Sub      opcode = code.OpF64Sub
	iopF64Mul      opcode = code.OpF64Mul
	iopF64Div      opcode = code.OpF64Div
	iopF64Min      opcode = code.OpF64Min
	iopF64Max      opcode = code.OpF64Max
	iopF64Copysign opcode = code.OpF64Copysign

	iopI32WrapI64        opcode = code.OpI32WrapI64
	iopI32TruncF32S      opcode = code.OpI32TruncF32S
	iopI32TruncF32U      opcode = code.OpI32TruncF32U
	iopI32TruncF64S      opcode = code.OpI32TruncF64S
	iopI32TruncF64U      opcode = code.OpI32TruncF64U
	iopI64ExtendI32S     opcode = code.OpI64ExtendI32S
	iopI64ExtendI32U     opcode = code.OpI64ExtendI32U
	iopI64TruncF32S      opcode = code.OpI64TruncF32S
	iopI64TruncF32U      opcode = code.OpI64TruncF32U
	iopI64TruncF64S      opcode = code.OpI64TruncF64S
	iopI64TruncF64U      opcode = code.OpI64TruncF64U
	iopF32ConvertI32S    opcode = code.OpF32ConvertI32S
	iopF32ConvertI32U    opcode = code.OpF32ConvertI32U
	iopF32ConvertI64S    opcode = code.OpF32ConvertI64S
	iopF32ConvertI64U    opcode = code.OpF32ConvertI64U
	iopF32DemoteF64      opcode = code.OpF32DemoteF64
	iopF64ConvertI32S    opcode = code.OpF64ConvertI32S
	iopF64ConvertI32U    opcode = code.OpF64ConvertI32U
	iopF64ConvertI64S    opcode = code.OpF64ConvertI64S
	iopF64ConvertI64U    opcode = code.OpF64ConvertI64U
	iopF64PromoteF32     opcode = code.OpF64PromoteF32
	iopI32ReinterpretF32 opcode = code.OpI32ReinterpretF32
	iopI64ReinterpretF64 opcode = code.OpI64ReinterpretF64
	iopF32ReinterpretI32 opcode = code.OpF32ReinterpretI32
	iopF64ReinterpretI64 opcode = code.OpF64ReinterpretI64

	iopI32Extend8S  opcode = code.OpI32Extend8S
	iopI32Extend16S opcode = code.OpI32Extend16S
	iopI64Extend8S  opcode = code.OpI64Extend8S
	iopI64Extend16S opcode = code.OpI64Extend16S
	iopI64Extend32S opcode = code.OpI64Extend32S

	// Fused constant forms. A constant producer has been folded into the
	// consuming instruction; the constant rides in the immediate.
	iopI32SetConst opcode = 0x0100 | code.OpI32Const
	iopI64SetConst opcode = 0x0100 | code.OpI64Const

	iopI32AddI  opcode = 0x0100 | code.OpI32Add
	iopI32AndI  opcode = 0x0100 | code.OpI32And
	iopI32OrI   opcode = 0x0100 | code.OpI32Or
	iopI32XorI  opcode = 0x0100 | code.OpI32Xor
	iopI32ShlI  opcode = 0x0100 | code.OpI32Shl
	iopI32ShrSI opcode = 0x0100 | code.OpI32ShrS
	iopI32ShrUI opcode = 0x0100 | code.OpI32ShrU

	iopI64AddI  opcode = 0x0100 | code.OpI64Add
	iopI64AndI  opcode = 0x0100 | code.OpI64And
	iopI64OrI   opcode = 0x0100 | code.OpI64Or
	iopI64XorI  opcode = 0x0100 | code.OpI64Xor
	iopI64ShlI  opcode = 0x0100 | code.OpI64Shl
	iopI64ShrSI opcode = 0x0100 | code.OpI64ShrS
	iopI64ShrUI opcode = 0x0100 | code.OpI64ShrU

	// Fused compare-and-branch forms.
	iopBrIfI32Eqz opcode = 0x0100 | code.OpI32Eqz
	iopBrIfI32Eq  opcode = 0x0100 | code.OpI32Eq
	iopBrIfI32Ne  opcode = 0x0100 | code.OpI32Ne
	iopBrIfI32LtS opcode = 0x0100 | code.OpI32LtS
	iopBrIfI32LtU opcode = 0x0100 | code.OpI32LtU
	iopBrIfI32GtS opcode = 0x0100 | code.OpI32GtS
	iopBrIfI32GtU opcode = 0x0100 | code.OpI32GtU
	iopBrIfI32LeS opcode = 0x0100 | code.OpI32LeS
	iopBrIfI32LeU opcode = 0x0100 | code.OpI32LeU
	iopBrIfI32GeS opcode = 0x0100 | code.OpI32GeS
	iopBrIfI32GeU opcode = 0x0100 | code.OpI32GeU

	iopBrIfI64Eqz opcode = 0x0100 | code.OpI64Eqz
	iopBrIfI64Eq  opcode = 0x0100 | code.OpI64Eq
	iopBrIfI64Ne  opcode = 0x0100 | code.OpI64Ne
	iopBrIfI64LtS opcode = 0x0100 | code.OpI64LtS
	iopBrIfI64LtU opcode = 0x0100 | code.OpI64LtU
	iopBrIfI64GtS opcode = 0x0100 | code.OpI64GtS
	iopBrIfI64GtU opcode = 0x0100 | code.OpI64GtU
	iopBrIfI64LeS opcode = 0x0100 | code.OpI64LeS
	iopBrIfI64LeU opcode = 0x0100 | code.OpI64LeU
	iopBrIfI64GeS opcode = 0x0100 | code.OpI64GeS
	iopBrIfI64GeU opcode = 0x0100 | code.OpI64GeU

	// Two-byte opcodes.
	iopI32TruncSatF32S opcode = 0x0200 | code.OpI32TruncSatF32S
	iopI32TruncSatF32U opcode = 0x0200 | code.OpI32TruncSatF32U
	iopI32TruncSatF64S opcode = 0x0200 | code.OpI32TruncSatF64S
	iopI32TruncSatF64U opcode = 0x0200 | code.OpI32TruncSatF64U
	iopI64TruncSatF32S opcode = 0x0200 | code.OpI64TruncSatF32S
	iopI64TruncSatF32U opcode = 0x0200 | code.OpI64TruncSatF32U
	iopI64TruncSatF64S opcode = 0x0200 | code.OpI64TruncSatF64S
	iopI64TruncSatF64U opcode = 0x0200 | code.OpI64TruncSatF64U

	iopMemoryCopy opcode = 0x0200 | code.OpMemoryCopy
	iopMemoryFill opcode = 0x0200 | code.OpMemoryFill
)

// An instruction is a single intcode operation. idx addresses a local,
// global, function, type, label, or switch table depending on the opcode; imm
// holds a constant, a memory offset, or the else target of an if.
type instruction struct {
	op  opcode
	idx uint32
	imm uint64
}

func (i *instruction) i32() int32 {
	return int32(i.imm)
}

func (i *instruction) i64() int64 {
	return int64(i.imm)
}

func (i *instruction) offset() uint32 {
	return uint32(i.imm)
}

// A label is a pre-resolved branch target. A branch to the label copies the
// top arity values down to stackHeight, truncates the stack, and jumps to the
// continuation.
type label struct {
	continuation int
	stackHeight  int
	arity        int
}

// A switchTable holds the resolved label indices of a br_table. The final
// entry is the default label.
type switchTable struct {
	labels []int
}
