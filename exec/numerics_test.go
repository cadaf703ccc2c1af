package exec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDivTraps(t *testing.T) {
	assert.Equal(t, int32(-2), I32DivS(-7, 3))
	assert.PanicsWithValue(t, TrapIntegerDivideByZero, func() { I32DivS(1, 0) })
	assert.PanicsWithValue(t, TrapIntegerOverflow, func() { I32DivS(math.MinInt32, -1) })

	assert.PanicsWithValue(t, TrapIntegerDivideByZero, func() { I64DivS(1, 0) })
	assert.PanicsWithValue(t, TrapIntegerOverflow, func() { I64DivS(math.MinInt64, -1) })

	assert.PanicsWithValue(t, TrapIntegerDivideByZero, func() { I32DivU(1, 0) })
	assert.PanicsWithValue(t, TrapIntegerDivideByZero, func() { I32RemU(1, 0) })
	assert.PanicsWithValue(t, TrapIntegerDivideByZero, func() { I64DivU(1, 0) })
	assert.PanicsWithValue(t, TrapIntegerDivideByZero, func() { I64RemU(1, 0) })
}

func TestRemSOverflowIsZero(t *testing.T) {
	// rem_s of INT_MIN and -1 yields 0 rather than trapping.
	assert.Equal(t, int32(0), I32RemS(math.MinInt32, -1))
	assert.Equal(t, int64(0), I64RemS(math.MinInt64, -1))
	assert.Equal(t, int32(-1), I32RemS(-7, 3))
	assert.PanicsWithValue(t, TrapIntegerDivideByZero, func() { I32RemS(1, 0) })
}

func TestFminFmax(t *testing.T) {
	nan := math.NaN()

	assert.True(t, math.IsNaN(Fmin(nan, 1)))
	assert.True(t, math.IsNaN(Fmax(1, nan)))

	// -0 orders below +0.
	negZero := math.Copysign(0, -1)
	assert.True(t, math.Signbit(Fmin(negZero, 0)))
	assert.False(t, math.Signbit(Fmax(negZero, 0)))
}

func TestTruncTraps(t *testing.T) {
	assert.Equal(t, int32(-3), I32TruncS(-3.9))
	assert.PanicsWithValue(t, TrapInvalidConversionToInteger, func() { I32TruncS(math.NaN()) })
	assert.PanicsWithValue(t, TrapIntegerOverflow, func() { I32TruncS(math.MaxInt32 + 4096.0) })
	assert.PanicsWithValue(t, TrapIntegerOverflow, func() { I32TruncU(-1.0) })
	assert.Equal(t, uint32(0), I32TruncU(-0.75))
	assert.PanicsWithValue(t, TrapIntegerOverflow, func() { I64TruncS(math.Inf(1)) })
}

func TestTruncSat(t *testing.T) {
	assert.Equal(t, int32(0), I32TruncSatS(math.NaN()))
	assert.Equal(t, int32(math.MinInt32), I32TruncSatS(math.Inf(-1)))
	assert.Equal(t, int32(math.MaxInt32), I32TruncSatS(math.Inf(1)))
	assert.Equal(t, int32(-3), I32TruncSatS(-3.5))

	assert.Equal(t, uint32(0), I32TruncSatU(-123.0))
	assert.Equal(t, uint32(math.MaxUint32), I32TruncSatU(1e20))

	assert.Equal(t, int64(0), I64TruncSatS(math.NaN()))
	assert.Equal(t, int64(math.MinInt64), I64TruncSatS(math.Inf(-1)))
	assert.Equal(t, int64(math.MaxInt64), I64TruncSatS(1e30))
	assert.Equal(t, uint64(math.MaxUint64), I64TruncSatU(1e30))
	assert.Equal(t, uint64(0), I64TruncSatU(math.Inf(-1)))
}
