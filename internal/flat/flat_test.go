package flat

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoin(t *testing.T) {
	assert.Equal(t, I32, Join(I32, I32))
	assert.Equal(t, I32, Join(I32, F32))
	assert.Equal(t, I32, Join(F32, I32))
	assert.Equal(t, I64, Join(I32, I64))
	assert.Equal(t, I64, Join(F32, F64))
	assert.Equal(t, F64, Join(F64, F64))
}

func TestCoerceRoundTrip(t *testing.T) {
	v := F32Value(3.5)
	i := Coerce(v, I32)
	require.Equal(t, I32, i.Type)
	assert.Equal(t, math.Float32bits(3.5), i.U32())

	back := Coerce(i, F32)
	assert.Equal(t, float32(3.5), back.F32())
}

func TestCoerceI32ToI64ZeroExtends(t *testing.T) {
	v := I32Value(-1)
	wide := Coerce(v, I64)
	require.Equal(t, I64, wide.Type)
	assert.Equal(t, uint64(0xFFFFFFFF), wide.U64())
}

func TestCoerceI64ToI32TrapsOnOverflow(t *testing.T) {
	v := U64Value(1 << 33)
	assert.Panics(t, func() { Coerce(v, I32) })
}

func TestCoerceI64ToF32Composition(t *testing.T) {
	v := U64Value(uint64(math.Float32bits(2.25)))
	f := Coerce(v, F32)
	assert.Equal(t, float32(2.25), f.F32())
}

func TestCanonicalizeNaN(t *testing.T) {
	nan32 := CanonicalizeF32(float32(math.NaN()))
	assert.Equal(t, uint32(0x7fc00000), math.Float32bits(nan32))

	nan64 := CanonicalizeF64(math.NaN())
	assert.Equal(t, uint64(0x7ff8000000000000), math.Float64bits(nan64))

	assert.Equal(t, float32(1.5), CanonicalizeF32(1.5))
}

func TestIterConsumesExactly(t *testing.T) {
	it := NewIter([]Value{U32Value(1), U32Value(2), U64Value(3)})
	assert.Equal(t, uint32(1), it.Next(I32).U32())
	assert.Equal(t, uint32(2), it.Next(I32).U32())
	assert.Equal(t, 1, it.Remaining())
	it.Skip(1)
	assert.Equal(t, 0, it.Remaining())
}

func TestIterOverReadPanics(t *testing.T) {
	it := NewIter(nil)
	assert.Panics(t, func() { it.Next(I32) })
}

func TestOutPadTo(t *testing.T) {
	var out Out
	base := len(out.Values)
	out.Push(U32Value(9))
	out.PadTo(base, 3, I32)
	require.Len(t, out.Values, 3)
	assert.Equal(t, uint32(0), out.Values[1].U32())
	assert.Equal(t, uint32(0), out.Values[2].U32())
}
