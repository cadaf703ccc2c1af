package exec

import (
	"github.com/neri/wami/wasm"
)

// A Frame records a single WASM activation record.
type Frame struct {
	Caller            *Frame
	ModuleName        string
	FunctionIndex     uint32
	FunctionSignature wasm.FunctionSig
	Locals            []uint64
}

// A Thread carries information about a single WASM thread. Execution within
// one thread is strictly sequential; embedders must serialize concurrent
// invocations on the same instance.
type Thread struct {
	active   *Frame
	depth    uint
	maxDepth uint
}

// NewThread creates a new thread with the given max call depth, if any.
func NewThread(maxDepth uint) Thread {
	if maxDepth == 0 {
		maxDepth = (1 << 32) - 1
	}
	return Thread{maxDepth: maxDepth}
}

// MaxDepth returns the maximum call stack depth, if any.
func (t *Thread) MaxDepth() uint {
	return t.maxDepth
}

// Enter pushes a new call onto the thread's stack. Each call to Enter must be balanced with a call to Leave.
func (t *Thread) Enter() {
	if t.depth >= t.maxDepth {
		panic(TrapCallStackExhausted)
	}
	t.depth++
}

// EnterFrame pushes a new frame onto the thread's stack. Each call to EnterFrame must be balanced with a call to LeaveFrame.
func (t *Thread) EnterFrame(f *Frame) {
	t.Enter()
	f.Caller, t.active = t.active, f
}

// Leave pops the top of the thread's stack.
func (t *Thread) Leave() {
	t.depth--
}

// LeaveFrame pops the top of the thread's stack.
func (t *Thread) LeaveFrame() {
	t.Leave()
	t.active = t.active.Caller
}

// Active returns the thread's innermost frame, if frames are being recorded.
func (t *Thread) Active() *Frame {
	return t.active
}
