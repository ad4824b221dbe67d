package cm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/componentize-go/canon/internal/flat"
	"github.com/componentize-go/canon/internal/linear"
)

func TestRecordLayoutAndRoundTrip(t *testing.T) {
	ty := NewRecordType(
		Field{Name: "a", Type: U8Type{}},
		Field{Name: "b", Type: U32Type{}},
		Field{Name: "c", Type: U8Type{}},
	)
	// u8 at 0, pad to 4 for u32 at 4, u8 at 8, size rounded to align 4 -> 12.
	assert.Equal(t, uint32(4), ty.Alignment())
	assert.Equal(t, uint32(12), ty.Size())

	mem := linear.NewBytesMemory(64)
	r, err := mem.Alloc(ty.Alignment(), ty.Size())
	require.NoError(t, err)

	v := Record{"a": uint8(1), "b": uint32(1000), "c": uint8(2)}
	require.NoError(t, ty.Store(mem, r.Ptr, v, nil))

	got, err := ty.Load(mem, r.Ptr, nil)
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestRecordFlatRoundTrip(t *testing.T) {
	ty := NewRecordType(
		Field{Name: "x", Type: S32Type{}},
		Field{Name: "y", Type: F64Type{}},
	)
	v := Record{"x": int32(-5), "y": float64(2.5)}

	mem := linear.NewBytesMemory(64)
	out := &flat.Out{}
	require.NoError(t, ty.LowerFlat(out, mem, v, nil))
	assert.Len(t, out.Values, len(ty.FlatTypes()))

	it := flat.NewIter(out.Values)
	got, err := ty.LiftFlat(mem, it, nil)
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestTupleRoundTrip(t *testing.T) {
	ty := NewTupleType(U8Type{}, U64Type{}, BoolType{})
	v := Tuple{uint8(9), uint64(123456789), true}

	mem := linear.NewBytesMemory(64)
	r, err := mem.Alloc(ty.Alignment(), ty.Size())
	require.NoError(t, err)
	require.NoError(t, ty.Store(mem, r.Ptr, v, nil))

	got, err := ty.Load(mem, r.Ptr, nil)
	require.NoError(t, err)
	assert.Equal(t, v, got)
}
