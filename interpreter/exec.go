package interpreter

import (
	"math"
	"math/bits"

	"github.com/neri/wami/exec"
)

type machine struct {
	thread *exec.Thread
}

// A frame holds the execution state of one activation: the function's locals
// and its operand stack. Values are stored in their 64-bit bit patterns;
// a 32-bit value occupies the low 32 bits, and its upper 32 bits are not
// significant (they hold either a sign or a zero extension).
type frame struct {
	m      *machine
	module *module
	locals []uint64
	stack  []uint64
}

func (f *frame) trap(t exec.Trap) {
	panic(t)
}

func (f *frame) push(v uint64) {
	f.stack = append(f.stack, v)
}

func (f *frame) pop() uint64 {
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

func (f *frame) pop2() (v2, v1 uint64) {
	v1, v2 = f.stack[len(f.stack)-2], f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-2]
	return v2, v1
}

func (f *frame) pushI(v int) {
	f.push(uint64(v))
}

func (f *frame) pushU32(v uint32) {
	f.push(uint64(v))
}

func (f *frame) pushU64(v uint64) {
	f.push(v)
}

func (f *frame) pushI32(v int32) {
	f.push(uint64(v))
}

func (f *frame) pushI64(v int64) {
	f.push(uint64(v))
}

func (f *frame) pushF32(v float32) {
	f.push(uint64(math.Float32bits(v)))
}

func (f *frame) pushF64(v float64) {
	f.push(math.Float64bits(v))
}

func (f *frame) pushBool(v bool) {
	i := 0
	if v {
		i = 1
	}
	f.pushI32(int32(i))
}

func (f *frame) popI() int {
	return int(f.pop())
}

func (f *frame) popU32() uint32 {
	return uint32(f.pop())
}

func (f *frame) popU64() uint64 {
	return f.pop()
}

func (f *frame) popI32() int32 {
	return int32(f.pop())
}

func (f *frame) popI64() int64 {
	return int64(f.pop())
}

func (f *frame) popF32() float32 {
	return math.Float32frombits(uint32(f.pop()))
}

func (f *frame) popF64() float64 {
	return math.Float64frombits(f.pop())
}

func (f *frame) popBool() bool {
	return f.popI32() != 0
}

func (f *frame) popBase() uint32 {
	return uint32(f.pop())
}

func (f *frame) pop2U32() (v2, v1 uint32) {
	u2, u1 := f.pop2()
	return uint32(u2), uint32(u1)
}

func (f *frame) pop2U64() (v2, v1 uint64) {
	return f.pop2()
}

func (f *frame) pop2I32() (v2, v1 int32) {
	u2, u1 := f.pop2()
	return int32(u2), int32(u1)
}

func (f *frame) pop2I64() (v2, v1 int64) {
	u2, u1 := f.pop2()
	return int64(u2), int64(u1)
}

func (f *frame) pop2F32() (v2, v1 float32) {
	u2, u1 := f.pop2()
	return math.Float32frombits(uint32(u2)), math.Float32frombits(uint32(u1))
}

func (f *frame) pop2F64() (v2, v1 float64) {
	u2, u1 := f.pop2()
	return math.Float64frombits(u2), math.Float64frombits(u1)
}

// branch transfers control to the given label: the label's arity of values
// move down to its recorded stack height, anything in between is dropped, and
// execution resumes at the continuation.
func (f *frame) branch(fn *function, labelidx int) int {
	l := &fn.labels[labelidx]
	copy(f.stack[l.stackHeight:], f.stack[len(f.stack)-l.arity:])
	f.stack = f.stack[:l.stackHeight+l.arity]
	return l.continuation
}

// invoke calls a function from within this frame: arguments are popped from
// the operand stack and results pushed in their place.
func (f *frame) invoke(fn exec.Function) {
	if fn, ok := fn.(*function); ok {
		f.invokeDirect(fn)
		return
	}

	sig := fn.GetSignature()
	nparams, nresults := len(sig.ParamTypes), len(sig.ReturnTypes)

	args := make([]uint64, nparams)
	copy(args, f.stack[len(f.stack)-nparams:])
	returns := make([]uint64, nresults)

	f.m.thread.Enter()
	fn.UncheckedCall(f.m.thread, args, returns)
	f.m.thread.Leave()

	f.stack = f.stack[:len(f.stack)-nparams]
	f.stack = append(f.stack, returns...)
}

func (f *frame) invokeDirect(fn *function) {
	fn.ensureCompiled()

	nparams, nresults := len(fn.signature.ParamTypes), len(fn.signature.ReturnTypes)

	callee := frame{m: f.m, module: fn.module}
	callee.locals = make([]uint64, fn.numLocals)
	copy(callee.locals, f.stack[len(f.stack)-nparams:])
	callee.stack = make([]uint64, 0, fn.metrics.MaxStackDepth)

	f.m.thread.Enter()
	callee.run(fn)
	f.m.thread.Leave()

	f.stack = f.stack[:len(f.stack)-nparams]
	f.stack = append(f.stack, callee.stack[len(callee.stack)-nresults:]...)
}

func (f *frame) run(fn *function) {
	body := fn.body
	for ip := 0; ip < len(body); {
		instr := &body[ip]
		switch instr.op {
		case iopUnreachable:
			f.trap(exec.TrapUnreachable)

		case iopNop:
			// no-op

		case iopIf:
			if !f.popBool() {
				ip = int(instr.imm)
				continue
			}

		case iopBr:
			ip = f.branch(fn, int(instr.idx))
			continue
		case iopBrIf:
			if f.popBool() {
				ip = f.branch(fn, int(instr.idx))
				continue
			}
		case iopBrTable:
			t := &fn.switches[instr.idx]
			li := len(t.labels) - 1
			if i := int(f.popI32()); i >= 0 && i < li {
				li = i
			}
			ip = f.branch(fn, t.labels[li])
			continue

		case iopReturn:
			ip = f.branch(fn, 0)
			continue

		case iopCall:
			function, ok := f.module.getFunction(instr.idx)
			if !ok {
				f.trap(exec.TrapGeneric)
			}
			f.invoke(function)
		case iopCallIndirect:
			table := f.module.table0.Entries()

			tableidx := f.popI32()
			if uint32(tableidx) >= uint32(len(table)) {
				f.trap(exec.TrapUndefinedElement)
			}

			function := table[int(tableidx)]
			if function == nil {
				f.trap(exec.TrapUninitializedElement)
			}

			expectedSig := f.module.types[int(instr.idx)]
			actualSig := function.GetSignature()
			if !actualSig.Equals(expectedSig) {
				f.trap(exec.TrapIndirectCallTypeMismatch)
			}

			f.invoke(function)

		case iopDrop:
			f.pop()

		case iopSelect:
			condition, v2, v1 := f.popBool(), f.pop(), f.pop()
			if condition {
				f.push(v1)
			} else {
				f.push(v2)
			}

		case iopLocalGet:
			f.push(f.locals[instr.idx])
		case iopLocalSet:
			f.locals[instr.idx] = f.pop()
		case iopLocalTee:
			f.locals[instr.idx] = f.stack[len(f.stack)-1]

		case iopGlobalGet:
			global, _ := f.module.getGlobal(instr.idx)
			f.push(global.Get())
		case iopGlobalSet:
			global, _ := f.module.getGlobal(instr.idx)
			global.Set(f.pop())

		case iopI32SetConst, iopI64SetConst:
			f.locals[instr.idx] = instr.imm

		case iopI32Load:
			f.pushI32(int32(f.module.mem0.Uint32(f.popBase(), instr.offset())))
		case iopI64Load:
			f.pushI64(int64(f.module.mem0.Uint64(f.popBase(), instr.offset())))
		case iopF32Load:
			f.pushF32(f.module.mem0.Float32(f.popBase(), instr.offset()))
		case iopF64Load:
			f.pushF64(f.module.mem0.Float64(f.popBase(), instr.offset()))

		case iopI32Load8S:
			f.pushI32(int32(int8(f.module.mem0.Byte(f.popBase(), instr.offset()))))
		case iopI32Load8U:
			f.pushI32(int32(f.module.mem0.Byte(f.popBase(), instr.offset())))
		case iopI32Load16S:
			f.pushI32(int32(int16(f.module.mem0.Uint16(f.popBase(), instr.offset()))))
		case iopI32Load16U:
			f.pushI32(int32(f.module.mem0.Uint16(f.popBase(), instr.offset())))

		case iopI64Load8S:
			f.pushI64(int64(int8(f.module.mem0.Byte(f.popBase(), instr.offset()))))
		case iopI64Load8U:
			f.pushI64(int64(f.module.mem0.Byte(f.popBase(), instr.offset())))
		case iopI64Load16S:
			f.pushI64(int64(int16(f.module.mem0.Uint16(f.popBase(), instr.offset()))))
		case iopI64Load16U:
			f.pushI64(int64(f.module.mem0.Uint16(f.popBase(), instr.offset())))
		case iopI64Load32S:
			f.pushI64(int64(int32(f.module.mem0.Uint32(f.popBase(), instr.offset()))))
		case iopI64Load32U:
			f.pushI64(int64(f.module.mem0.Uint32(f.popBase(), instr.offset())))

		case iopI32Store:
			v := f.popU32()
			f.module.mem0.PutUint32(v, f.popBase(), instr.offset())
		case iopI64Store:
			v := f.popU64()
			f.module.mem0.PutUint64(v, f.popBase(), instr.offset())
		case iopF32Store:
			v := f.popF32()
			f.module.mem0.PutFloat32(v, f.popBase(), instr.offset())
		case iopF64Store:
			v := f.popF64()
			f.module.mem0.PutFloat64(v, f.popBase(), instr.offset())

		case iopI32Store8:
			v := byte(f.popI32())
			f.module.mem0.PutByte(v, f.popBase(), instr.offset())
		case iopI32Store16:
			v := uint16(f.popI32())
			f.module.mem0.PutUint16(v, f.popBase(), instr.offset())

		case iopI64Store8:
			v := byte(f.popI64())
			f.module.mem0.PutByte(v, f.popBase(), instr.offset())
		case iopI64Store16:
			v := uint16(f.popI64())
			f.module.mem0.PutUint16(v, f.popBase(), instr.offset())
		case iopI64Store32:
			v := uint32(f.popI64())
			f.module.mem0.PutUint32(v, f.popBase(), instr.offset())

		case iopMemorySize:
			f.pushI32(int32(f.module.mem0.Size()))
		case iopMemoryGrow:
			result, err := f.module.mem0.Grow(uint32(f.popI32()))
			if err != nil {
				f.pushI32(-1)
			} else {
				f.pushI32(int32(result))
			}
		case iopMemoryCopy:
			count, src := f.popU32(), f.popU32()
			f.module.mem0.Copy(f.popU32(), src, count)
		case iopMemoryFill:
			count, value := f.popU32(), f.popU32()
			f.module.mem0.Fill(f.popU32(), value, count)

		case iopI32Const, iopI64Const, iopF32Const, iopF64Const:
			f.push(instr.imm)

		case iopI32Eqz:
			f.pushBool(f.popI32() == 0)
		case iopI32Eq:
			v2, v1 := f.pop2I32()
			f.pushBool(v1 == v2)
		case iopI32Ne:
			v2, v1 := f.pop2I32()
			f.pushBool(v1 != v2)
		case iopI32LtS:
			v2, v1 := f.pop2I32()
			f.pushBool(v1 < v2)
		case iopI32LtU:
			v2, v1 := f.pop2U32()
			f.pushBool(v1 < v2)
		case iopI32GtS:
			v2, v1 := f.pop2I32()
			f.pushBool(v1 > v2)
		case iopI32GtU:
			v2, v1 := f.pop2U32()
			f.pushBool(v1 > v2)
		case iopI32LeS:
			v2, v1 := f.pop2I32()
			f.pushBool(v1 <= v2)
		case iopI32LeU:
			v2, v1 := f.pop2U32()
			f.pushBool(v1 <= v2)
		case iopI32GeS:
			v2, v1 := f.pop2I32()
			f.pushBool(v1 >= v2)
		case iopI32GeU:
			v2, v1 := f.pop2U32()
			f.pushBool(v1 >= v2)

		case iopI64Eqz:
			f.pushBool(f.popI64() == 0)
		case iopI64Eq:
			v2, v1 := f.pop2I64()
			f.pushBool(v1 == v2)
		case iopI64Ne:
			v2, v1 := f.pop2I64()
			f.pushBool(v1 != v2)
		case iopI64LtS:
			v2, v1 := f.pop2I64()
			f.pushBool(v1 < v2)
		case iopI64LtU:
			v2, v1 := f.pop2U64()
			f.pushBool(v1 < v2)
		case iopI64GtS:
			v2, v1 := f.pop2I64()
			f.pushBool(v1 > v2)
		case iopI64GtU:
			v2, v1 := f.pop2U64()
			f.pushBool(v1 > v2)
		case iopI64LeS:
			v2, v1 := f.pop2I64()
			f.pushBool(v1 <= v2)
		case iopI64LeU:
			v2, v1 := f.pop2U64()
			f.pushBool(v1 <= v2)
		case iopI64GeS:
			v2, v1 := f.pop2I64()
			f.pushBool(v1 >= v2)
		case iopI64GeU:
			v2, v1 := f.pop2U64()
			f.pushBool(v1 >= v2)

		case iopF32Eq:
			v2, v1 := f.pop2F32()
			f.pushBool(v1 == v2)
		case iopF32Ne:
			v2, v1 := f.pop2F32()
			f.pushBool(v1 != v2)
		case iopF32Lt:
			v2, v1 := f.pop2F32()
			f.pushBool(v1 < v2)
		case iopF32Gt:
			v2, v1 := f.pop2F32()
			f.pushBool(v1 > v2)
		case iopF32Le:
			v2, v1 := f.pop2F32()
			f.pushBool(v1 <= v2)
		case iopF32Ge:
			v2, v1 := f.pop2F32()
			f.pushBool(v1 >= v2)

		case iopF64Eq:
			v2, v1 := f.pop2F64()
			f.pushBool(v1 == v2)
		case iopF64Ne:
			v2, v1 := f.pop2F64()
			f.pushBool(v1 != v2)
		case iopF64Lt:
			v2, v1 := f.pop2F64()
			f.pushBool(v1 < v2)
		case iopF64Gt:
			v2, v1 := f.pop2F64()
			f.pushBool(v1 > v2)
		case iopF64Le:
			v2, v1 := f.pop2F64()
			f.pushBool(v1 <= v2)
		case iopF64Ge:
			v2, v1 := f.pop2F64()
			f.pushBool(v1 >= v2)

		case iopI32Clz:
			f.pushI(bits.LeadingZeros32(f.popU32()))
		case iopI32Ctz:
			f.pushI(bits.TrailingZeros32(f.popU32()))
		case iopI32Popcnt:
			f.pushI(bits.OnesCount32(f.popU32()))
		case iopI32Add:
			v2, v1 := f.pop2I32()
			f.pushI32(v1 + v2)
		case iopI32Sub:
			v2, v1 := f.pop2I32()
			f.pushI32(v1 - v2)
		case iopI32Mul:
			v2, v1 := f.pop2I32()
			f.pushI32(v1 * v2)
		case iopI32DivS:
			v2, v1 := f.pop2I32()
			f.pushI32(exec.I32DivS(v1, v2))
		case iopI32DivU:
			v2, v1 := f.pop2U32()
			f.pushU32(exec.I32DivU(v1, v2))
		case iopI32RemS:
			v2, v1 := f.pop2I32()
			f.pushI32(exec.I32RemS(v1, v2))
		case iopI32RemU:
			v2, v1 := f.pop2U32()
			f.pushU32(exec.I32RemU(v1, v2))
		case iopI32And:
			v2, v1 := f.pop2I32()
			f.pushI32(v1 & v2)
		case iopI32Or:
			v2, v1 := f.pop2I32()
			f.pushI32(v1 | v2)
		case iopI32Xor:
			v2, v1 := f.pop2I32()
			f.pushI32(v1 ^ v2)
		case iopI32Shl:
			v2, v1 := f.pop2I32()
			f.pushI32(v1 << (v2 & 31))
		case iopI32ShrS:
			v2, v1 := f.pop2I32()
			f.pushI32(v1 >> (v2 & 31))
		case iopI32ShrU:
			v2, v1 := f.pop2U32()
			f.pushU32(v1 >> (v2 & 31))
		case iopI32Rotl:
			v2, v1 := f.popI(), f.popU32()
			f.pushU32(bits.RotateLeft32(v1, v2))
		case iopI32Rotr:
			v2, v1 := f.popI(), f.popU32()
			f.pushU32(bits.RotateLeft32(v1, -v2))

		case iopI64Clz:
			f.pushI(bits.LeadingZeros64(f.popU64()))
		case iopI64Ctz:
			f.pushI(bits.TrailingZeros64(f.popU64()))
		case iopI64Popcnt:
			f.pushI(bits.OnesCount64(f.popU64()))
		case iopI64Add:
			v2, v1 := f.pop2I64()
			f.pushI64(v1 + v2)
		case iopI64Sub:
			v2, v1 := f.pop2I64()
			f.pushI64(v1 - v2)
		case iopI64Mul:
			v2, v1 := f.pop2I64()
			f.pushI64(v1 * v2)
		case iopI64DivS:
			v2, v1 := f.pop2I64()
			f.pushI64(exec.I64DivS(v1, v2))
		case iopI64DivU:
			v2, v1 := f.pop2U64()
			f.pushU64(exec.I64DivU(v1, v2))
		case iopI64RemS:
			v2, v1 := f.pop2I64()
			f.pushI64(exec.I64RemS(v1, v2))
		case iopI64RemU:
			v2, v1 := f.pop2U64()
			f.pushU64(exec.I64RemU(v1, v2))
		case iopI64And:
			v2, v1 := f.pop2I64()
			f.pushI64(v1 & v2)
		case iopI64Or:
			v2, v1 := f.pop2I64()
			f.pushI64(v1 | v2)
		case iopI64Xor:
			v2, v1 := f.pop2I64()
			f.pushI64(v1 ^ v2)
		case iopI64Shl:
			v2, v1 := f.pop2I64()
			f.pushI64(v1 << (v2 & 63))
		case iopI64ShrS:
			v2, v1 := f.pop2I64()
			f.pushI64(v1 >> (v2 & 63))
		case iopI64ShrU:
			v2, v1 := f.pop2U64()
			f.pushU64(v1 >> (v2 & 63))
		case iopI64Rotl:
			v2, v1 := f.popI(), f.popU64()
			f.pushU64(bits.RotateLeft64(v1, v2))
		case iopI64Rotr:
			v2, v1 := f.popI(), f.popU64()
			f.pushU64(bits.RotateLeft64(v1, -v2))

		case iopI32AddI:
			f.pushI32(f.popI32() + instr.i32())
		case iopI32AndI:
			f.pushI32(f.popI32() & instr.i32())
		case iopI32OrI:
			f.pushI32(f.popI32() | instr.i32())
		case iopI32XorI:
			f.pushI32(f.popI32() ^ instr.i32())
		case iopI32ShlI:
			f.pushI32(f.popI32() << (instr.i32() & 31))
		case iopI32ShrSI:
			f.pushI32(f.popI32() >> (instr.i32() & 31))
		case iopI32ShrUI:
			f.pushU32(f.popU32() >> (uint32(instr.imm) & 31))

		case iopI64AddI:
			f.pushI64(f.popI64() + instr.i64())
		case iopI64AndI:
			f.pushI64(f.popI64() & instr.i64())
		case iopI64OrI:
			f.pushI64(f.popI64() | instr.i64())
		case iopI64XorI:
			f.pushI64(f.popI64() ^ instr.i64())
		case iopI64ShlI:
			f.pushI64(f.popI64() << (instr.i64() & 63))
		case iopI64ShrSI:
			f.pushI64(f.popI64() >> (instr.i64() & 63))
		case iopI64ShrUI:
			f.pushU64(f.popU64() >> (instr.imm & 63))

		case iopBrIfI32Eqz:
			if f.popI32() == 0 {
				ip = f.branch(fn, int(instr.idx))
				continue
			}
		case iopBrIfI32Eq:
			if v2, v1 := f.pop2I32(); v1 == v2 {
				ip = f.branch(fn, int(instr.idx))
				continue
			}
		case iopBrIfI32Ne:
			if v2, v1 := f.pop2I32(); v1 != v2 {
				ip = f.branch(fn, int(instr.idx))
				continue
			}
		case iopBrIfI32LtS:
			if v2, v1 := f.pop2I32(); v1 < v2 {
				ip = f.branch(fn, int(instr.idx))
				continue
			}
		case iopBrIfI32LtU:
			if v2, v1 := f.pop2U32(); v1 < v2 {
				ip = f.branch(fn, int(instr.idx))
				continue
			}
		case iopBrIfI32GtS:
			if v2, v1 := f.pop2I32(); v1 > v2 {
				ip = f.branch(fn, int(instr.idx))
				continue
			}
		case iopBrIfI32GtU:
			if v2, v1 := f.pop2U32(); v1 > v2 {
				ip = f.branch(fn, int(instr.idx))
				continue
			}
		case iopBrIfI32LeS:
			if v2, v1 := f.pop2I32(); v1 <= v2 {
				ip = f.branch(fn, int(instr.idx))
				continue
			}
		case iopBrIfI32LeU:
			if v2, v1 := f.pop2U32(); v1 <= v2 {
				ip = f.branch(fn, int(instr.idx))
				continue
			}
		case iopBrIfI32GeS:
			if v2, v1 := f.pop2I32(); v1 >= v2 {
				ip = f.branch(fn, int(instr.idx))
				continue
			}
		case iopBrIfI32GeU:
			if v2, v1 := f.pop2U32(); v1 >= v2 {
				ip = f.branch(fn, int(instr.idx))
				continue
			}

		case iopBrIfI64Eqz:
			if f.popI64() == 0 {
				ip = f.branch(fn, int(instr.idx))
				continue
			}
		case iopBrIfI64Eq:
			if v2, v1 := f.pop2I64(); v1 == v2 {
				ip = f.branch(fn, int(instr.idx))
				continue
			}
		case iopBrIfI64Ne:
			if v2, v1 := f.pop2I64(); v1 != v2 {
				ip = f.branch(fn, int(instr.idx))
				continue
			}
		case iopBrIfI64LtS:
			if v2, v1 := f.pop2I64(); v1 < v2 {
				ip = f.branch(fn, int(instr.idx))
				continue
			}
		case iopBrIfI64LtU:
			if v2, v1 := f.pop2U64(); v1 < v2 {
				ip = f.branch(fn, int(instr.idx))
				continue
			}
		case iopBrIfI64GtS:
			if v2, v1 := f.pop2I64(); v1 > v2 {
				ip = f.branch(fn, int(instr.idx))
				continue
			}
		case iopBrIfI64GtU:
			if v2, v1 := f.pop2U64(); v1 > v2 {
				ip = f.branch(fn, int(instr.idx))
				continue
			}
		case iopBrIfI64LeS:
			if v2, v1 := f.pop2I64(); v1 <= v2 {
				ip = f.branch(fn, int(instr.idx))
				continue
			}
		case iopBrIfI64LeU:
			if v2, v1 := f.pop2U64(); v1 <= v2 {
				ip = f.branch(fn, int(instr.idx))
				continue
			}
		case iopBrIfI64GeS:
			if v2, v1 := f.pop2I64(); v1 >= v2 {
				ip = f.branch(fn, int(instr.idx))
				continue
			}
		case iopBrIfI64GeU:
			if v2, v1 := f.pop2U64(); v1 >= v2 {
				ip = f.branch(fn, int(instr.idx))
				continue
			}

		case iopF32Abs:
			f.pushF32(float32(math.Abs(float64(f.popF32()))))
		case iopF32Neg:
			f.pushF32(-f.popF32())
		case iopF32Ceil:
			f.pushF32(float32(math.Ceil(float64(f.popF32()))))
		case iopF32Floor:
			f.pushF32(float32(math.Floor(float64(f.popF32()))))
		case iopF32Trunc:
			f.pushF32(float32(math.Trunc(float64(f.popF32()))))
		case iopF32Nearest:
			f.pushF32(float32(math.RoundToEven(float64(f.popF32()))))
		case iopF32Sqrt:
			f.pushF32(float32(math.Sqrt(float64(f.popF32()))))
		case iopF32Add:
			v2, v1 := f.pop2F32()
			f.pushF32(v1 + v2)
		case iopF32Sub:
			v2, v1 := f.pop2F32()
			f.pushF32(v1 - v2)
		case iopF32Mul:
			v2, v1 := f.pop2F32()
			f.pushF32(v1 * v2)
		case iopF32Div:
			v2, v1 := f.pop2F32()
			f.pushF32(v1 / v2)
		case iopF32Min:
			v2, v1 := f.pop2F32()
			f.pushF32(float32(exec.Fmin(float64(v1), float64(v2))))
		case iopF32Max:
			v2, v1 := f.pop2F32()
			f.pushF32(float32(exec.Fmax(float64(v1), float64(v2))))
		case iopF32Copysign:
			v2, v1 := f.pop2F32()
			f.pushF32(float32(math.Copysign(float64(v1), float64(v2))))

		case iopF64Abs:
			f.pushF64(math.Abs(f.popF64()))
		case iopF64Neg:
			f.pushF64(-f.popF64())
		case iopF64Ceil:
			f.pushF64(math.Ceil(f.popF64()))
		case iopF64Floor:
			f.pushF64(math.Floor(f.popF64()))
		case iopF64Trunc:
			f.pushF64(math.Trunc(f.popF64()))
		case iopF64Nearest:
			f.pushF64(math.RoundToEven(f.popF64()))
		case iopF64Sqrt:
			f.pushF64(math.Sqrt(f.popF64()))
		case iopF64Add:
			v2, v1 := f.pop2F64()
			f.pushF64(v1 + v2)
		case iopF64Sub:
			v2, v1 := f.pop2F64()
			f.pushF64(v1 - v2)
		case iopF64Mul:
			v2, v1 := f.pop2F64()
			f.pushF64(v1 * v2)
		case iopF64Div:
			v2, v1 := f.pop2F64()
			f.pushF64(v1 / v2)
		case iopF64Min:
			v2, v1 := f.pop2F64()
			f.pushF64(exec.Fmin(v1, v2))
		case iopF64Max:
			v2, v1 := f.pop2F64()
			f.pushF64(exec.Fmax(v1, v2))
		case iopF64Copysign:
			v2, v1 := f.pop2F64()
			f.pushF64(math.Copysign(v1, v2))

		case iopI32WrapI64:
			f.pushI32(int32(f.popI64()))
		case iopI32TruncF32S:
			f.pushI32(exec.I32TruncS(float64(f.popF32())))
		case iopI32TruncF32U:
			f.pushU32(exec.I32TruncU(float64(f.popF32())))
		case iopI32TruncF64S:
			f.pushI32(exec.I32TruncS(f.popF64()))
		case iopI32TruncF64U:
			f.pushU32(exec.I32TruncU(f.popF64()))

		case iopI64ExtendI32S:
			f.pushI64(int64(f.popI32()))
		case iopI64ExtendI32U:
			f.pushI64(int64(f.popU32()))
		case iopI64TruncF32S:
			f.pushI64(exec.I64TruncS(float64(f.popF32())))
		case iopI64TruncF32U:
			f.pushU64(exec.I64TruncU(float64(f.popF32())))
		case iopI64TruncF64S:
			f.pushI64(exec.I64TruncS(f.popF64()))
		case iopI64TruncF64U:
			f.pushU64(exec.I64TruncU(f.popF64()))

		case iopF32ConvertI32S:
			f.pushF32(float32(f.popI32()))
		case iopF32ConvertI32U:
			f.pushF32(float32(f.popU32()))
		case iopF32ConvertI64S:
			f.pushF32(float32(f.popI64()))
		case iopF32ConvertI64U:
			f.pushF32(float32(f.popU64()))
		case iopF32DemoteF64:
			f.pushF32(float32(f.popF64()))

		case iopF64ConvertI32S:
			f.pushF64(float64(f.popI32()))
		case iopF64ConvertI32U:
			f.pushF64(float64(f.popU32()))
		case iopF64ConvertI64S:
			f.pushF64(float64(f.popI64()))
		case iopF64ConvertI64U:
			f.pushF64(float64(f.popU64()))
		case iopF64PromoteF32:
			f.pushF64(float64(f.popF32()))

		case iopI32ReinterpretF32:
			f.pushU32(math.Float32bits(f.popF32()))
		case iopI64ReinterpretF64:
			f.pushU64(math.Float64bits(f.popF64()))
		case iopF32ReinterpretI32:
			f.pushF32(math.Float32frombits(f.popU32()))
		case iopF64ReinterpretI64:
			f.pushF64(math.Float64frombits(f.popU64()))

		case iopI32Extend8S:
			f.pushI32(int32(int8(f.popI32())))
		case iopI32Extend16S:
			f.pushI32(int32(int16(f.popI32())))
		case iopI64Extend8S:
			f.pushI64(int64(int8(f.popI64())))
		case iopI64Extend16S:
			f.pushI64(int64(int16(f.popI64())))
		case iopI64Extend32S:
			f.pushI64(int64(int32(f.popI64())))

		case iopI32TruncSatF32S:
			f.pushI32(exec.I32TruncSatS(float64(f.popF32())))
		case iopI32TruncSatF32U:
			f.pushU32(exec.I32TruncSatU(float64(f.popF32())))
		case iopI32TruncSatF64S:
			f.pushI32(exec.I32TruncSatS(f.popF64()))
		case iopI32TruncSatF64U:
			f.pushU32(exec.I32TruncSatU(f.popF64()))
		case iopI64TruncSatF32S:
			f.pushI64(exec.I64TruncSatS(float64(f.popF32())))
		case iopI64TruncSatF32U:
			f.pushU64(exec.I64TruncSatU(float64(f.popF32())))
		case iopI64TruncSatF64S:
			f.pushI64(exec.I64TruncSatS(f.popF64()))
		case iopI64TruncSatF64U:
			f.pushU64(exec.I64TruncSatU(f.popF64()))

		default:
			f.trap(exec.TrapGeneric)
		}

		ip++
	}
}
