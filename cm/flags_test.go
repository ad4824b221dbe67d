package cm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/componentize-go/canon/internal/flat"
	"github.com/componentize-go/canon/internal/linear"
)

func TestFlagsSizing(t *testing.T) {
	assert.Equal(t, uint32(1), NewFlagsType("a", "b", "c").Size())
	assert.Equal(t, uint32(2), NewFlagsType(namesN(9)...).Size())
	assert.Equal(t, uint32(4), NewFlagsType(namesN(17)...).Size())
	assert.Equal(t, uint32(8), NewFlagsType(namesN(33)...).Size())
}

func namesN(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "flag" + string(rune('A'+i/26)) + string(rune('a'+i%26))
	}
	return out
}

func TestFlagsRoundTrip(t *testing.T) {
	ty := NewFlagsType("read", "write", "execute")
	mem := linear.NewBytesMemory(16)
	r, err := mem.Alloc(ty.Alignment(), ty.Size())
	require.NoError(t, err)

	v := Flags{"read": true, "execute": true}
	require.NoError(t, ty.Store(mem, r.Ptr, v, nil))

	got, err := ty.Load(mem, r.Ptr, nil)
	require.NoError(t, err)
	assert.Equal(t, true, got.(Flags)["read"])
	assert.Equal(t, true, got.(Flags)["execute"])
	assert.False(t, got.(Flags)["write"])
}

func TestFlagsOverflowWords(t *testing.T) {
	names := namesN(40)
	ty := NewFlagsType(names...)
	assert.Equal(t, uint32(8), ty.Size())
	assert.Len(t, ty.FlatTypes(), 2)

	v := Flags{names[0]: true, names[33]: true}
	mem := linear.NewBytesMemory(16)
	out := &flat.Out{}
	require.NoError(t, ty.LowerFlat(out, mem, v, nil))
	require.Len(t, out.Values, 2)

	it := flat.NewIter(out.Values)
	got, err := ty.LiftFlat(mem, it, nil)
	require.NoError(t, err)
	assert.True(t, got.(Flags)[names[0]])
	assert.True(t, got.(Flags)[names[33]])
}
