package cm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/componentize-go/canon/internal/flat"
	"github.com/componentize-go/canon/internal/linear"
)

func TestVariantDiscriminantSizing(t *testing.T) {
	small := NewVariantType(Case{Name: "a"}, Case{Name: "b"})
	assert.Equal(t, uint32(1), small.discSize)

	many := make([]Case, 300)
	for i := range many {
		many[i] = Case{Name: "c"}
	}
	wide := NewVariantType(many...)
	assert.Equal(t, uint32(2), wide.discSize)
}

func TestVariantLoadStoreRoundTrip(t *testing.T) {
	ty := NewVariantType(
		Case{Name: "none"},
		Case{Name: "num", Type: U32Type{}},
	)
	mem := linear.NewBytesMemory(64)
	r, err := mem.Alloc(ty.Alignment(), ty.Size())
	require.NoError(t, err)

	v := Variant{Case: "num", Value: uint32(7)}
	require.NoError(t, ty.Store(mem, r.Ptr, v, nil))

	got, err := ty.Load(mem, r.Ptr, nil)
	require.NoError(t, err)
	assert.Equal(t, v, got)

	none := Variant{Case: "none"}
	require.NoError(t, ty.Store(mem, r.Ptr, none, nil))
	got2, err := ty.Load(mem, r.Ptr, nil)
	require.NoError(t, err)
	assert.Equal(t, none, got2)
}

func TestVariantJoinF32I32(t *testing.T) {
	ty := NewVariantType(
		Case{Name: "f", Type: F32Type{}},
		Case{Name: "i", Type: S32Type{}},
	)
	// {i32,f32} joins to i32.
	require.Len(t, ty.joined, 1)
	assert.Equal(t, flat.I32, ty.joined[0])

	mem := linear.NewBytesMemory(64)
	out := &flat.Out{}
	require.NoError(t, ty.LowerFlat(out, mem, Variant{Case: "f", Value: float32(2.5)}, nil))
	require.Len(t, out.Values, 2)

	it := flat.NewIter(out.Values)
	got, err := ty.LiftFlat(mem, it, nil)
	require.NoError(t, err)
	assert.Equal(t, Variant{Case: "f", Value: float32(2.5)}, got)
}

func TestVariantJoinWidensToI64(t *testing.T) {
	ty := NewVariantType(
		Case{Name: "a", Type: U64Type{}},
		Case{Name: "b", Type: U32Type{}},
	)
	require.Len(t, ty.joined, 1)
	assert.Equal(t, flat.I64, ty.joined[0])

	mem := linear.NewBytesMemory(64)
	out := &flat.Out{}
	require.NoError(t, ty.LowerFlat(out, mem, Variant{Case: "b", Value: uint32(9)}, nil))
	it := flat.NewIter(out.Values)
	got, err := ty.LiftFlat(mem, it, nil)
	require.NoError(t, err)
	assert.Equal(t, Variant{Case: "b", Value: uint32(9)}, got)
}

func TestVariantUnknownCaseErrors(t *testing.T) {
	ty := NewVariantType(Case{Name: "only"})
	mem := linear.NewBytesMemory(16)
	r, err := mem.Alloc(ty.Alignment(), ty.Size())
	require.NoError(t, err)

	err = ty.Store(mem, r.Ptr, Variant{Case: "missing"}, nil)
	assert.Error(t, err)
}

func TestVariantBadDiscriminantTraps(t *testing.T) {
	ty := NewVariantType(Case{Name: "only"})
	mem := linear.NewBytesMemory(16)
	r, err := mem.Alloc(ty.Alignment(), ty.Size())
	require.NoError(t, err)
	require.NoError(t, r.SetU8(0, 77))

	_, err = ty.Load(mem, r.Ptr, nil)
	assert.Error(t, err)
}

func TestEnumRoundTrip(t *testing.T) {
	ty := NewEnumType("red", "green", "blue")
	mem := linear.NewBytesMemory(16)
	r, err := mem.Alloc(ty.Alignment(), ty.Size())
	require.NoError(t, err)

	require.NoError(t, ty.Store(mem, r.Ptr, "green", nil))
	got, err := ty.Load(mem, r.Ptr, nil)
	require.NoError(t, err)
	assert.Equal(t, "green", got)
}
