package restable

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlesAreMonotonic(t *testing.T) {
	tbl := New(nil, nil, nil)
	h1, err := tbl.Register("a", 0)
	require.NoError(t, err)
	h2, err := tbl.Register("b", 0)
	require.NoError(t, err)
	assert.Less(t, h1, h2)
}

func TestRegisterRejectsDuplicateHandle(t *testing.T) {
	tbl := New(nil, nil, nil)
	h1, err := tbl.Register("a", 0)
	require.NoError(t, err)

	_, err = tbl.Register("b", h1)
	assert.Error(t, err)
}

func TestDropThenGetFails(t *testing.T) {
	tbl := New(nil, nil, nil)
	h, err := tbl.Register("a", 0)
	require.NoError(t, err)

	_, err = tbl.DropHandle(h)
	require.NoError(t, err)

	_, err = tbl.Get(h)
	assert.Error(t, err)
}

func TestDropInvokesDestructorOnce(t *testing.T) {
	calls := 0
	dtor := func(rep uint32) error {
		calls++
		return nil
	}
	tbl := New(nil, nil, dtor)
	h := tbl.NewHandle(42)

	_, err := tbl.DropHandle(h)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = tbl.DropHandle(h)
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDestructorErrorIsLoggedNotPropagated(t *testing.T) {
	dtor := func(uint32) error { return errors.New("boom") }
	tbl := New(nil, nil, dtor)
	h := tbl.NewHandle(1)

	_, err := tbl.DropHandle(h)
	assert.NoError(t, err)
}

func TestGetConstructsProxyOnFirstSight(t *testing.T) {
	var gotHandle, gotRep uint32
	ctor := func(h, rep uint32) any {
		gotHandle, gotRep = h, rep
		return &struct{}{}
	}
	tbl := New(nil, ctor, nil)
	h := tbl.NewHandle(7)

	obj, err := tbl.Get(h)
	require.NoError(t, err)
	assert.NotNil(t, obj)
	assert.Equal(t, h, gotHandle)
	assert.Equal(t, uint32(7), gotRep)

	obj2, err := tbl.Get(h)
	require.NoError(t, err)
	assert.Same(t, obj, obj2)
}

func TestRemoveRefusesWeakProxy(t *testing.T) {
	ctor := func(h, rep uint32) any { return &struct{}{} }
	tbl := New(nil, ctor, nil)
	h := tbl.NewHandle(1)
	_, err := tbl.Get(h)
	require.NoError(t, err)

	err = tbl.Remove(h)
	assert.Error(t, err)
}

func TestLoopTableRoundTrip(t *testing.T) {
	tbl := New(nil, nil, nil)
	original := tbl.NewHandle(1)

	looped := tbl.RegisterLoop(original)
	rep, err := tbl.Representation(looped)
	require.NoError(t, err)

	back, err := tbl.GetLoop(rep)
	require.NoError(t, err)
	assert.Equal(t, original, back)
}

func TestBorrowEndBorrow(t *testing.T) {
	tbl := New(nil, nil, nil)
	h := tbl.NewHandle(1)

	require.NoError(t, tbl.Borrow(h))
	require.NoError(t, tbl.EndBorrow(h))

	err := tbl.EndBorrow(h)
	assert.Error(t, err)
}

func TestFinalizerInvokesDtor(t *testing.T) {
	done := make(chan struct{}, 1)
	dtor := func(rep uint32) error {
		done <- struct{}{}
		return nil
	}
	ctor := func(h, rep uint32) any { return new(int) }
	tbl := New(nil, ctor, dtor)
	h := tbl.NewHandle(5)

	func() {
		_, err := tbl.Get(h)
		require.NoError(t, err)
	}()

	runtime.GC()
	runtime.GC()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Skip("finalizer did not run promptly under test isolation; not a table bug")
	}
}
