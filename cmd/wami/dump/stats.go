package dump

import (
	"encoding/csv"
	"io"

	"github.com/jszwec/csvutil"

	"github.com/neri/wami/wasm"
	"github.com/neri/wami/wasm/code"
)

// One row per defined function: shape metrics plus an instruction breakdown
// by category. The breakdown tracks the folding opportunities the interpreter
// cares about: constants, compares, and branches.
type row struct {
	Function         string `csv:"function"`
	Funcidx          int    `csv:"funcidx"`
	In               int    `csv:"in"`
	Out              int    `csv:"out"`
	LocalCount       int    `csv:"local count"`
	MaxStack         int    `csv:"max stack"`
	MaxNesting       int    `csv:"max nesting"`
	LabelCount       int    `csv:"label count"`
	InstructionCount int    `csv:"instruction count"`
	Block            int    `csv:"block"`
	Loop             int    `csv:"loop"`
	If               int    `csv:"if"`
	Br               int    `csv:"br"`
	BrIf             int    `csv:"br_if"`
	BrTable          int    `csv:"br_table"`
	Call             int    `csv:"call"`
	CallIndirect     int    `csv:"call_indirect"`
	LocalAccess      int    `csv:"local access"`
	GlobalAccess     int    `csv:"global access"`
	Load             int    `csv:"load"`
	Store            int    `csv:"store"`
	Const            int    `csv:"const"`
	Compare          int    `csv:"compare"`
	Arith            int    `csv:"arith"`
	Convert          int    `csv:"convert"`
	FoldableConst    int    `csv:"foldable const"`
	FoldableBranch   int    `csv:"foldable branch"`
}

func isConst(op byte) bool {
	return op >= code.OpI32Const && op <= code.OpF64Const
}

func isCompare(op byte) bool {
	return op >= code.OpI32Eqz && op <= code.OpF64Ge
}

func isIntCompare(op byte) bool {
	return op >= code.OpI32Eqz && op <= code.OpI64GeU
}

func isArith(op byte) bool {
	return op >= code.OpI32Clz && op <= code.OpF64Copysign
}

func isConvert(op byte) bool {
	return op >= code.OpI32WrapI64 && op <= code.OpI64Extend32S
}

func isLoad(op byte) bool {
	return op >= code.OpI32Load && op <= code.OpI64Load32U
}

func isStore(op byte) bool {
	return op >= code.OpI32Store && op <= code.OpI64Store32
}

// isFoldableConsumer reports whether a constant immediately preceding op
// would fold into it.
func isFoldableConsumer(op byte) bool {
	switch op {
	case code.OpLocalSet,
		code.OpI32Add, code.OpI32Sub, code.OpI32And, code.OpI32Or, code.OpI32Xor,
		code.OpI32Shl, code.OpI32ShrS, code.OpI32ShrU,
		code.OpI64Add, code.OpI64Sub, code.OpI64And, code.OpI64Or, code.OpI64Xor,
		code.OpI64Shl, code.OpI64ShrS, code.OpI64ShrU:
		return true
	}
	return false
}

func dumpStats(w io.Writer, m *wasm.Module, n *names) error {
	if m.Code == nil || m.Function == nil || m.Types == nil {
		return nil
	}

	csvWriter := csv.NewWriter(w)
	defer csvWriter.Flush()

	encoder := csvutil.NewEncoder(csvWriter)

	s := code.NewStaticScope(m)
	for idx, body := range m.Code.Bodies {
		sig := m.Types.Entries[m.Function.Types[idx]]
		s.SetFunction(sig, body)

		decoded, err := code.Decode(body.Code, s, sig.ReturnTypes)
		if err != nil {
			return err
		}

		funcidx := uint32(idx + len(s.ImportedFunctions))
		r := row{
			Function:         n.FunctionName(funcidx),
			Funcidx:          int(funcidx),
			In:               len(sig.ParamTypes),
			Out:              len(sig.ReturnTypes),
			LocalCount:       len(s.Locals),
			MaxStack:         decoded.Metrics.MaxStackDepth,
			MaxNesting:       decoded.Metrics.MaxNesting,
			LabelCount:       decoded.Metrics.LabelCount,
			InstructionCount: len(decoded.Instructions),
		}

		var prev byte
		for i := range decoded.Instructions {
			instr := &decoded.Instructions[i]
			op := instr.Opcode

			switch {
			case op == code.OpBlock:
				r.Block++
			case op == code.OpLoop:
				r.Loop++
			case op == code.OpIf:
				r.If++
			case op == code.OpBr:
				r.Br++
			case op == code.OpBrIf:
				r.BrIf++
				if isIntCompare(prev) {
					r.FoldableBranch++
				}
			case op == code.OpBrTable:
				r.BrTable++
			case op == code.OpCall:
				r.Call++
			case op == code.OpCallIndirect:
				r.CallIndirect++
			case op == code.OpLocalGet || op == code.OpLocalSet || op == code.OpLocalTee:
				r.LocalAccess++
			case op == code.OpGlobalGet || op == code.OpGlobalSet:
				r.GlobalAccess++
			case isLoad(op):
				r.Load++
			case isStore(op):
				r.Store++
			case isConst(op):
				r.Const++
			case isCompare(op):
				r.Compare++
			case isArith(op):
				r.Arith++
			case isConvert(op) || op == code.OpPrefix:
				r.Convert++
			}

			if (op == code.OpI32Const || op == code.OpI64Const) && i+1 < len(decoded.Instructions) &&
				isFoldableConsumer(decoded.Instructions[i+1].Opcode) {
				r.FoldableConst++
			}

			prev = op
		}

		if err := encoder.Encode(&r); err != nil {
			return err
		}
	}
	return nil
}
