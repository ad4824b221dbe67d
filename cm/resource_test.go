package cm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/componentize-go/canon/internal/flat"
	"github.com/componentize-go/canon/internal/linear"
	"github.com/componentize-go/canon/internal/restable"
)

func TestOwnResourceTransfersOwnership(t *testing.T) {
	tbl := restable.New(nil, nil, nil)
	ty := ResourceType{HandleKind: ResourceOwn, Table: tbl}

	h, err := tbl.Register("payload", 0)
	require.NoError(t, err)

	mem := linear.NewBytesMemory(16)
	r, err := mem.Alloc(4, 4)
	require.NoError(t, err)
	require.NoError(t, r.SetU32(0, h))

	v, err := ty.Load(mem, r.Ptr, nil)
	require.NoError(t, err)
	hv := v.(handleValue)
	assert.Equal(t, h, hv.Handle)

	// Ownership transfer removes the handle from the table.
	_, err = tbl.Get(h)
	assert.Error(t, err)
}

func TestOwnResourceLowerRegistersNewHandle(t *testing.T) {
	tbl := restable.New(nil, nil, nil)
	ty := ResourceType{HandleKind: ResourceOwn, Table: tbl}

	out := &flat.Out{}
	require.NoError(t, ty.LowerFlat(out, nil, handleValue{Obj: "fresh"}, nil))
	require.Len(t, out.Values, 1)

	h := out.Values[0].U32()
	obj, err := tbl.Get(h)
	require.NoError(t, err)
	assert.Equal(t, "fresh", obj)
}

func TestOwnResourceRoundTripsGuestRepresentation(t *testing.T) {
	tbl := restable.New(nil, nil, nil)
	ty := ResourceType{HandleKind: ResourceOwn, Table: tbl}

	// A handle minted via [resource-new] carries a guest-supplied
	// representation with no host object attached.
	h := tbl.NewHandle(42)

	v, err := ty.LiftFlat(nil, flat.NewIter([]flat.Value{flat.U32Value(h)}), nil)
	require.NoError(t, err)
	hv := v.(handleValue)
	assert.Equal(t, uint32(42), hv.Rep)
	assert.Nil(t, hv.Obj)

	out := &flat.Out{}
	require.NoError(t, ty.LowerFlat(out, nil, hv, nil))
	require.Len(t, out.Values, 1)

	rep, err := tbl.Representation(out.Values[0].U32())
	require.NoError(t, err)
	assert.Equal(t, uint32(42), rep)
}

func TestBorrowResourceMarksLoanAndReleases(t *testing.T) {
	tbl := restable.New(nil, nil, nil)
	ty := ResourceType{HandleKind: ResourceBorrow, Table: tbl}

	h := tbl.NewHandle(99)

	v, err := ty.LiftFlat(nil, flat.NewIter([]flat.Value{flat.U32Value(h)}), nil)
	require.NoError(t, err)
	hv := v.(handleValue)
	assert.True(t, hv.Borrowed)

	require.NoError(t, ty.EndBorrow(h))
	assert.Error(t, ty.EndBorrow(h))
}

func TestResourceHandleFlatRoundTrip(t *testing.T) {
	tbl := restable.New(nil, nil, nil)
	ty := ResourceType{HandleKind: ResourceHandle, Table: tbl}
	h := tbl.NewHandle(3)

	out := &flat.Out{}
	require.NoError(t, ty.LowerFlat(out, nil, handleValue{Handle: h, Rep: 3}, nil))

	v, err := ty.LiftFlat(nil, flat.NewIter(out.Values), nil)
	require.NoError(t, err)
	assert.Equal(t, h, v.(handleValue).Handle)
}
