package interpreter

import (
	"github.com/willf/bitset"

	"github.com/neri/wami/wasm/code"
)

// An importer lowers a validated instruction stream to intcode. Structured
// control is flattened: every block, loop, and if allocates a label whose
// continuation is patched when its extent is known, and branches refer to
// labels by absolute index. Dead code after an unconditional transfer is not
// emitted.
//
// The boundaries set tracks intcode positions that begin a basic block (block
// entries, loop headers, else arms, and block ends). The peephole folder
// consults it so that a fold never spans a label boundary: a producer
// immediately followed by a boundary stays unfused, since a branch may land
// between the producer and its consumer.
type importer struct {
	fn *function

	body     []instruction
	labels   []label
	switches []switchTable

	blocks     []loweredBlock
	boundaries *bitset.BitSet
}

type loweredBlock struct {
	labelidx         int
	isLoop           bool
	isIf             bool
	ifIndex          int // position of the if instruction, for else patching
	sawElse          bool
	entryUnreachable bool
	unreachable      bool
}

func (fn *function) compile(body []code.Instruction) {
	imp := importer{
		fn:         fn,
		body:       make([]instruction, 0, len(body)),
		labels:     make([]label, 1, fn.metrics.LabelCount),
		blocks:     make([]loweredBlock, 1, fn.metrics.MaxNesting),
		boundaries: bitset.New(uint(len(body))),
	}

	imp.labels[0] = label{arity: len(fn.signature.ReturnTypes)}
	imp.blocks[0] = loweredBlock{labelidx: 0}

	for i := range body {
		imp.emitInstruction(&body[i])
	}

	fn.body = imp.body
	fn.labels = imp.labels
	fn.switches = imp.switches
}

func (imp *importer) block() *loweredBlock {
	return &imp.blocks[len(imp.blocks)-1]
}

// boundary marks the next emission position as a basic block start.
func (imp *importer) boundary() {
	imp.boundaries.Set(uint(len(imp.body)))
}

func (imp *importer) emit(i instruction) {
	imp.body = append(imp.body, i)
}

// prev returns the most recently emitted instruction if folding into the next
// emission position is legal, i.e. nothing was emitted in between and no
// label boundary separates the two.
func (imp *importer) prev() *instruction {
	if len(imp.body) == 0 || imp.boundaries.Test(uint(len(imp.body))) {
		return nil
	}
	return &imp.body[len(imp.body)-1]
}

// replacePrev overwrites the producer with its fused form.
func (imp *importer) replacePrev(i instruction) {
	imp.body[len(imp.body)-1] = i
}

// labelFor resolves a relative label index to an absolute label index.
func (imp *importer) labelFor(relative int) int {
	return imp.blocks[len(imp.blocks)-1-relative].labelidx
}

func (imp *importer) pushBlock(instr *code.Instruction, isLoop, isIf bool) *loweredBlock {
	ins, outs := imp.fn.module.blockType(instr)

	l := label{stackHeight: instr.StackHeight()}
	if isLoop {
		l.continuation, l.arity = len(imp.body), len(ins)
	} else {
		l.arity = len(outs)
	}

	labelidx := len(imp.labels)
	imp.labels = append(imp.labels, l)
	imp.blocks = append(imp.blocks, loweredBlock{
		labelidx: labelidx,
		isLoop:   isLoop,
		isIf:     isIf,
		ifIndex:  -1,
	})
	return imp.block()
}

// mergeConditionalBranch attempts to fold the producer of a br_if condition
// into the branch itself.
func (imp *importer) mergeConditionalBranch(labelidx int) bool {
	prev := imp.prev()
	if prev == nil {
		return false
	}

	var op opcode
	switch prev.op {
	case iopI32Eqz:
		op = iopBrIfI32Eqz
	case iopI32Eq:
		op = iopBrIfI32Eq
	case iopI32Ne:
		op = iopBrIfI32Ne
	case iopI32LtS:
		op = iopBrIfI32LtS
	case iopI32LtU:
		op = iopBrIfI32LtU
	case iopI32GtS:
		op = iopBrIfI32GtS
	case iopI32GtU:
		op = iopBrIfI32GtU
	case iopI32LeS:
		op = iopBrIfI32LeS
	case iopI32LeU:
		op = iopBrIfI32LeU
	case iopI32GeS:
		op = iopBrIfI32GeS
	case iopI32GeU:
		op = iopBrIfI32GeU

	case iopI64Eqz:
		op = iopBrIfI64Eqz
	case iopI64Eq:
		op = iopBrIfI64Eq
	case iopI64Ne:
		op = iopBrIfI64Ne
	case iopI64LtS:
		op = iopBrIfI64LtS
	case iopI64LtU:
		op = iopBrIfI64LtU
	case iopI64GtS:
		op = iopBrIfI64GtS
	case iopI64GtU:
		op = iopBrIfI64GtU
	case iopI64LeS:
		op = iopBrIfI64LeS
	case iopI64LeU:
		op = iopBrIfI64LeU
	case iopI64GeS:
		op = iopBrIfI64GeS
	case iopI64GeU:
		op = iopBrIfI64GeU

	default:
		return false
	}

	imp.replacePrev(instruction{op: op, idx: uint32(labelidx)})
	return true
}

// mergeConstBinOp attempts to fold a constant right operand into an integer
// binary operator. i32.sub/i64.sub fold into the add form with the sign of
// the constant reversed.
func (imp *importer) mergeConstBinOp(op byte) bool {
	prev := imp.prev()
	if prev == nil {
		return false
	}

	switch prev.op {
	case iopI32Const:
		k := prev.i32()
		var fused opcode
		switch op {
		case code.OpI32Add:
			fused = iopI32AddI
		case code.OpI32Sub:
			fused, k = iopI32AddI, -k
		case code.OpI32And:
			fused = iopI32AndI
		case code.OpI32Or:
			fused = iopI32OrI
		case code.OpI32Xor:
			fused = iopI32XorI
		case code.OpI32Shl:
			fused = iopI32ShlI
		case code.OpI32ShrS:
			fused = iopI32ShrSI
		case code.OpI32ShrU:
			fused = iopI32ShrUI
		default:
			return false
		}
		imp.replacePrev(instruction{op: fused, imm: uint64(k)})
		return true

	case iopI64Const:
		k := prev.i64()
		var fused opcode
		switch op {
		case code.OpI64Add:
			fused = iopI64AddI
		case code.OpI64Sub:
			fused, k = iopI64AddI, -k
		case code.OpI64And:
			fused = iopI64AndI
		case code.OpI64Or:
			fused = iopI64OrI
		case code.OpI64Xor:
			fused = iopI64XorI
		case code.OpI64Shl:
			fused = iopI64ShlI
		case code.OpI64ShrS:
			fused = iopI64ShrSI
		case code.OpI64ShrU:
			fused = iopI64ShrUI
		default:
			return false
		}
		imp.replacePrev(instruction{op: fused, imm: uint64(k)})
		return true
	}

	return false
}

// mergeConstLocalSet attempts to fold a constant into local.set.
func (imp *importer) mergeConstLocalSet(localidx uint32) bool {
	prev := imp.prev()
	if prev == nil {
		return false
	}

	switch prev.op {
	case iopI32Const:
		imp.replacePrev(instruction{op: iopI32SetConst, idx: localidx, imm: prev.imm})
		return true
	case iopI64Const:
		imp.replacePrev(instruction{op: iopI64SetConst, idx: localidx, imm: prev.imm})
		return true
	}
	return false
}

func (imp *importer) emitInstruction(instr *code.Instruction) {
	// else and end transition out of unreachable code; handle them first.
	switch instr.Opcode {
	case code.OpElse:
		imp.emitElse()
		return
	case code.OpEnd:
		imp.emitEnd()
		return
	}

	// Inside dead code, only the block structure is tracked.
	if imp.block().unreachable {
		switch instr.Opcode {
		case code.OpBlock, code.OpLoop, code.OpIf:
			imp.blocks = append(imp.blocks, loweredBlock{
				labelidx:         imp.block().labelidx,
				isIf:             instr.Opcode == code.OpIf,
				ifIndex:          -1,
				entryUnreachable: true,
				unreachable:      true,
			})
		}
		return
	}

	switch instr.Opcode {
	case code.OpUnreachable:
		imp.emit(instruction{op: iopUnreachable})
		imp.block().unreachable = true

	case code.OpNop:

	case code.OpBlock:
		imp.boundary()
		imp.pushBlock(instr, false, false)

	case code.OpLoop:
		imp.boundary()
		imp.pushBlock(instr, true, false)

	case code.OpIf:
		imp.boundary()
		b := imp.pushBlock(instr, false, true)
		b.ifIndex = len(imp.body)
		imp.emit(instruction{op: iopIf, idx: uint32(b.labelidx)})
		imp.boundary()

	case code.OpBr:
		imp.emit(instruction{op: iopBr, idx: uint32(imp.labelFor(instr.Labelidx()))})
		imp.block().unreachable = true

	case code.OpBrIf:
		labelidx := imp.labelFor(instr.Labelidx())
		if !imp.mergeConditionalBranch(labelidx) {
			imp.emit(instruction{op: iopBrIf, idx: uint32(labelidx)})
		}

	case code.OpBrTable:
		t := switchTable{labels: make([]int, len(instr.Labels)+1)}
		for i, l := range instr.Labels {
			t.labels[i] = imp.labelFor(l)
		}
		t.labels[len(instr.Labels)] = imp.labelFor(instr.Default())
		switchidx := len(imp.switches)
		imp.switches = append(imp.switches, t)

		imp.emit(instruction{op: iopBrTable, idx: uint32(switchidx)})
		imp.block().unreachable = true

	case code.OpReturn:
		imp.emit(instruction{op: iopReturn})
		imp.block().unreachable = true

	case code.OpCall:
		imp.emit(instruction{op: iopCall, idx: instr.Funcidx()})
	case code.OpCallIndirect:
		imp.emit(instruction{op: iopCallIndirect, idx: instr.Typeidx()})

	case code.OpDrop:
		imp.emit(instruction{op: iopDrop})
	case code.OpSelect:
		imp.emit(instruction{op: iopSelect})

	case code.OpLocalGet:
		imp.emit(instruction{op: iopLocalGet, idx: instr.Localidx()})
	case code.OpLocalSet:
		if !imp.mergeConstLocalSet(instr.Localidx()) {
			imp.emit(instruction{op: iopLocalSet, idx: instr.Localidx()})
		}
	case code.OpLocalTee:
		imp.emit(instruction{op: iopLocalTee, idx: instr.Localidx()})
	case code.OpGlobalGet:
		imp.emit(instruction{op: iopGlobalGet, idx: instr.Globalidx()})
	case code.OpGlobalSet:
		imp.emit(instruction{op: iopGlobalSet, idx: instr.Globalidx()})

	case code.OpI32Load, code.OpI64Load, code.OpF32Load, code.OpF64Load,
		code.OpI32Load8S, code.OpI32Load8U, code.OpI32Load16S, code.OpI32Load16U,
		code.OpI64Load8S, code.OpI64Load8U, code.OpI64Load16S, code.OpI64Load16U,
		code.OpI64Load32S, code.OpI64Load32U,
		code.OpI32Store, code.OpI64Store, code.OpF32Store, code.OpF64Store,
		code.OpI32Store8, code.OpI32Store16, code.OpI64Store8, code.OpI64Store16, code.OpI64Store32:
		imp.emit(instruction{op: opcode(instr.Opcode), imm: uint64(instr.Offset())})

	case code.OpMemorySize:
		imp.emit(instruction{op: iopMemorySize})
	case code.OpMemoryGrow:
		imp.emit(instruction{op: iopMemoryGrow})

	case code.OpI32Const, code.OpI64Const, code.OpF32Const, code.OpF64Const:
		imp.emit(instruction{op: opcode(instr.Opcode), imm: instr.Immediate})

	case code.OpI32Add, code.OpI32Sub, code.OpI32And, code.OpI32Or, code.OpI32Xor,
		code.OpI32Shl, code.OpI32ShrS, code.OpI32ShrU,
		code.OpI64Add, code.OpI64Sub, code.OpI64And, code.OpI64Or, code.OpI64Xor,
		code.OpI64Shl, code.OpI64ShrS, code.OpI64ShrU:
		if !imp.mergeConstBinOp(instr.Opcode) {
			imp.emit(instruction{op: opcode(instr.Opcode)})
		}

	case code.OpPrefix:
		switch instr.Immediate {
		case code.OpMemoryCopy:
			imp.emit(instruction{op: iopMemoryCopy})
		case code.OpMemoryFill:
			imp.emit(instruction{op: iopMemoryFill})
		default:
			imp.emit(instruction{op: 0x0200 | opcode(instr.Immediate)})
		}

	default:
		imp.emit(instruction{op: opcode(instr.Opcode)})
	}
}

func (imp *importer) emitElse() {
	b := imp.block()

	if b.entryUnreachable {
		b.unreachable = true
		b.sawElse = true
		return
	}

	// Jump over the else arm unless the then arm already diverted.
	if !b.unreachable {
		imp.emit(instruction{op: iopBr, idx: uint32(b.labelidx)})
	}
	b.unreachable = false
	b.sawElse = true

	imp.boundary()
	imp.body[b.ifIndex].imm = uint64(len(imp.body))
}

func (imp *importer) emitEnd() {
	b := *imp.block()
	imp.blocks = imp.blocks[:len(imp.blocks)-1]

	if b.entryUnreachable {
		return
	}

	imp.boundary()

	if !b.isLoop {
		imp.labels[b.labelidx].continuation = len(imp.body)
	}
	if b.isIf && !b.sawElse {
		// An if with no else arm falls through to the end when the condition
		// is false.
		imp.body[b.ifIndex].imm = uint64(len(imp.body))
	}
}
