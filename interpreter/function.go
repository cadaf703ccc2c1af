package interpreter

import (
	"fmt"
	"math"
	"runtime"

	"github.com/neri/wami/exec"
	"github.com/neri/wami/wasm"
	"github.com/neri/wami/wasm/code"
)

// A function holds a WASM function and its lazily-lowered body.
type function struct {
	module       *module           // The function's module.
	index        uint32            // The function's index.
	signature    wasm.FunctionSig  // The function signature.
	localEntries []wasm.LocalEntry // The raw local entries for the function.
	numLocals    int               // The total number of locals for the function.
	metrics      code.Metrics      // Metrics for this function's body.
	bytecode     []byte            // The raw bytecode for the function. Discarded after lowering.

	body     []instruction // The lowered body of the function.
	labels   []label       // The function's labels.
	switches []switchTable // The function's switch tables.
}

// ensureCompiled lowers the function's bytecode to intcode on first use.
func (fn *function) ensureCompiled() {
	if fn.bytecode == nil {
		return
	}

	locals := append([]wasm.ValueType(nil), fn.signature.ParamTypes...)
	for _, entry := range fn.localEntries {
		for i := 0; i < int(entry.Count); i++ {
			locals = append(locals, entry.Type)
		}
	}
	fn.numLocals = len(locals)

	decoded, err := code.Decode(fn.bytecode, &scope{
		module: fn.module,
		locals: locals,
	}, fn.signature.ReturnTypes)
	if err != nil {
		panic(err)
	}
	fn.metrics = decoded.Metrics

	fn.compile(decoded.Instructions)
	fn.bytecode = nil
}

func (f *function) GetSignature() wasm.FunctionSig {
	return f.signature
}

func (f *function) Call(thread *exec.Thread, args ...interface{}) []interface{} {
	if len(args) != len(f.signature.ParamTypes) {
		panic(fmt.Errorf("expected %v args; got %v", len(f.signature.ParamTypes), len(args)))
	}

	rawArgs, rawReturns := make([]uint64, len(args)), make([]uint64, len(f.signature.ReturnTypes))
	for i, v := range args {
		paramType := f.signature.ParamTypes[i]

		switch v := v.(type) {
		case int32:
			if paramType != wasm.ValueTypeI32 {
				panic(fmt.Errorf("cannot assign int32 argument to a parameter of type %v", paramType))
			}
			rawArgs[i] = uint64(v)
		case int64:
			if paramType != wasm.ValueTypeI64 {
				panic(fmt.Errorf("cannot assign int64 argument to a parameter of type %v", paramType))
			}
			rawArgs[i] = uint64(v)
		case float32:
			if paramType != wasm.ValueTypeF32 {
				panic(fmt.Errorf("cannot assign float32 argument to a parameter of type %v", paramType))
			}
			rawArgs[i] = uint64(math.Float32bits(v))
		case float64:
			if paramType != wasm.ValueTypeF64 {
				panic(fmt.Errorf("cannot assign float64 argument to a parameter of type %v", paramType))
			}
			rawArgs[i] = math.Float64bits(v)
		default:
			panic(fmt.Errorf("cannot assign %T argument to a parameter of type %v", v, f.signature.ParamTypes[i]))
		}
	}

	f.UncheckedCall(thread, rawArgs, rawReturns)

	returns := make([]interface{}, len(f.signature.ReturnTypes))
	for i, t := range f.signature.ReturnTypes {
		switch t {
		case wasm.ValueTypeI32:
			returns[i] = int32(rawReturns[i])
		case wasm.ValueTypeI64:
			returns[i] = int64(rawReturns[i])
		case wasm.ValueTypeF32:
			returns[i] = math.Float32frombits(uint32(rawReturns[i]))
		case wasm.ValueTypeF64:
			returns[i] = math.Float64frombits(rawReturns[i])
		default:
			panic("unreachable")
		}
	}
	return returns
}

func (f *function) UncheckedCall(thread *exec.Thread, args, returns []uint64) {
	m := machine{thread: thread}

	caller := frame{m: &m, module: f.module}
	caller.stack = make([]uint64, 0, len(args)+len(returns))

	defer func() {
		if x := recover(); x != nil {
			err, _ := x.(runtime.Error)
			if trap, ok := exec.TranslateRuntimeError(err); ok {
				panic(trap)
			}
			panic(x)
		}
	}()

	caller.stack = append(caller.stack, args...)
	caller.invokeDirect(f)
	copy(returns, caller.stack[len(caller.stack)-len(returns):])
}
