package exec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neri/wami/wasm"
)

func u64(v int32) uint64 {
	return uint64(uint32(v))
}

type testHost struct {
	Mem  Memory
	Base Global

	calls []int32
}

func (h *testHost) AddTwo(a, b int32) int32 {
	return a + b
}

func (h *testHost) Record(v int32) {
	h.calls = append(h.calls, v)
}

func (h *testHost) Fail(v int32) (int32, error) {
	if v < 0 {
		return 0, errors.New("negative input")
	}
	return v, nil
}

func newTestHost() *testHost {
	return &testHost{
		Mem:  NewMemory(1, 1),
		Base: NewGlobalI32(true, 0x1000),
	}
}

func TestHostModuleExports(t *testing.T) {
	m := NewHostModule("env", newTestHost())

	f, err := m.GetFunction("addTwo")
	require.NoError(t, err)
	assert.Equal(t, []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, f.GetSignature().ParamTypes)
	assert.Equal(t, []wasm.ValueType{wasm.ValueTypeI32}, f.GetSignature().ReturnTypes)

	_, err = m.GetMemory("mem")
	require.NoError(t, err)

	g, err := m.GetGlobal("base")
	require.NoError(t, err)
	assert.Equal(t, int32(0x1000), g.GetI32())

	_, err = m.GetFunction("missing")
	assert.Error(t, err)

	// A name bound to a non-function export is not a function.
	_, err = m.GetFunction("mem")
	assert.Error(t, err)
}

func TestHostFunctionCall(t *testing.T) {
	host := newTestHost()
	m := NewHostModule("env", host)

	f, err := m.GetFunction("addTwo")
	require.NoError(t, err)

	thread := NewThread(0)
	returns := make([]uint64, 1)
	f.UncheckedCall(&thread, []uint64{uint64(int32(40)), uint64(int32(2))}, returns)
	assert.Equal(t, int32(42), int32(returns[0]))

	record, err := m.GetFunction("record")
	require.NoError(t, err)
	record.UncheckedCall(&thread, []uint64{u64(-7)}, nil)
	assert.Equal(t, []int32{-7}, host.calls)
}

func TestHostFunctionErrorTraps(t *testing.T) {
	m := NewHostModule("env", newTestHost())

	f, err := m.GetFunction("fail")
	require.NoError(t, err)
	// The error result is stripped from the WASM signature.
	assert.Equal(t, []wasm.ValueType{wasm.ValueTypeI32}, f.GetSignature().ReturnTypes)

	thread := NewThread(0)
	returns := make([]uint64, 1)

	f.UncheckedCall(&thread, []uint64{uint64(int32(5))}, returns)
	assert.Equal(t, int32(5), int32(returns[0]))

	assert.Panics(t, func() {
		f.UncheckedCall(&thread, []uint64{u64(-1)}, returns)
	})

	defer func() {
		x := recover()
		require.NotNil(t, x)
		hostErr, ok := x.(*HostError)
		require.True(t, ok)
		assert.EqualError(t, hostErr.Err, "negative input")
	}()
	f.UncheckedCall(&thread, []uint64{u64(-1)}, returns)
}

func TestThreadDepthLimit(t *testing.T) {
	thread := NewThread(2)
	thread.Enter()
	thread.Enter()
	assert.PanicsWithValue(t, TrapCallStackExhausted, func() {
		thread.Enter()
	})
}
