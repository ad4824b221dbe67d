package cm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/componentize-go/canon/internal/linear"
)

func TestOptionCollapsedByDefault(t *testing.T) {
	ty := NewOptionType(U32Type{})
	mem := linear.NewBytesMemory(16)
	r, err := mem.Alloc(ty.Alignment(), ty.Size())
	require.NoError(t, err)

	require.NoError(t, ty.Store(mem, r.Ptr, uint32(5), nil))
	got, err := ty.Load(mem, r.Ptr, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), got)

	require.NoError(t, ty.Store(mem, r.Ptr, nil, nil))
	got2, err := ty.Load(mem, r.Ptr, nil)
	require.NoError(t, err)
	assert.Nil(t, got2)
}

func TestOptionKeepOptionWrapped(t *testing.T) {
	ty := NewOptionType(U32Type{})
	ctx := &Context{KeepOption: true}
	mem := linear.NewBytesMemory(16)
	r, err := mem.Alloc(ty.Alignment(), ty.Size())
	require.NoError(t, err)

	require.NoError(t, ty.Store(mem, r.Ptr, Option{HasValue: true, Value: uint32(9)}, ctx))
	got, err := ty.Load(mem, r.Ptr, ctx)
	require.NoError(t, err)
	assert.Equal(t, Option{HasValue: true, Value: uint32(9)}, got)

	require.NoError(t, ty.Store(mem, r.Ptr, Option{HasValue: false}, ctx))
	got2, err := ty.Load(mem, r.Ptr, ctx)
	require.NoError(t, err)
	assert.Equal(t, Option{HasValue: false}, got2)
}

func TestResultOkAndErr(t *testing.T) {
	ty := NewResultType(U32Type{}, StringType{})
	ctx := &Context{Encoding: EncodingUTF8}
	mem := linear.NewBytesMemory(64)
	r, err := mem.Alloc(ty.Alignment(), ty.Size())
	require.NoError(t, err)

	require.NoError(t, ty.Store(mem, r.Ptr, Result{Value: uint32(10)}, ctx))
	got, err := ty.Load(mem, r.Ptr, ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{IsErr: false, Value: uint32(10)}, got)

	require.NoError(t, ty.Store(mem, r.Ptr, Result{IsErr: true, Value: "bad input"}, ctx))
	got2, err := ty.Load(mem, r.Ptr, ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{IsErr: true, Value: "bad input"}, got2)
}

func TestResultPayloadlessErr(t *testing.T) {
	ty := NewResultType(U32Type{}, nil)
	mem := linear.NewBytesMemory(16)
	r, err := mem.Alloc(ty.Alignment(), ty.Size())
	require.NoError(t, err)

	require.NoError(t, ty.Store(mem, r.Ptr, Result{IsErr: true}, nil))
	got, err := ty.Load(mem, r.Ptr, nil)
	require.NoError(t, err)
	assert.Equal(t, Result{IsErr: true}, got)
}
