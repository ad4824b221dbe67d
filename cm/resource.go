package cm

import (
	"github.com/componentize-go/canon/internal/flat"
	"github.com/componentize-go/canon/internal/linear"
	"github.com/componentize-go/canon/internal/restable"
)

// ResourceKind distinguishes own<T>/borrow<T>/a plain resource-handle, the
// three ways a handle crosses the Canonical ABI surface.
type ResourceKind byte

const (
	ResourceOwn ResourceKind = iota
	ResourceBorrow
	ResourceHandle
)

// ResourceType is the codec for a handle into a restable.Table. Ownership
// transfer (own<T>) removes the handle from the table on lift without
// invoking its destructor; a borrow (borrow<T>) marks the handle on loan for
// the call's duration and must be matched by an EndBorrow once the callee
// returns, mirroring LiftOwn/LiftBorrow/EndLiftBorrow in the reference
// wippyai host linker this package is grounded on.
type ResourceType struct {
	HandleKind ResourceKind
	Table      *restable.Table
}

func kindOf(k ResourceKind) Kind {
	switch k {
	case ResourceOwn:
		return KindOwn
	case ResourceBorrow:
		return KindBorrow
	default:
		return KindResourceHandle
	}
}

func (t ResourceType) Kind() Kind             { return kindOf(t.HandleKind) }
func (ResourceType) Size() uint32             { return 4 }
func (ResourceType) Alignment() uint32        { return 4 }
func (ResourceType) FlatTypes() []flat.Type   { return []flat.Type{flat.I32} }

func (t ResourceType) Load(mem linear.Memory, off uint32, ctx *Context) (any, error) {
	h, err := mem.Readonly(off, 4).GetU32(0)
	if err != nil {
		return nil, err
	}
	return t.lift(h)
}

func (t ResourceType) LiftFlat(_ linear.Memory, it *flat.Iter, _ *Context) (any, error) {
	return t.lift(it.Next(flat.I32).U32())
}

func (t ResourceType) lift(handle uint32) (any, error) {
	switch t.HandleKind {
	case ResourceOwn:
		// Ownership transfer: the handle is consumed. Its destructor is not
		// invoked here — the callee now owns the representation and is
		// responsible for eventually dropping it.
		rep, err := t.Table.Representation(handle)
		if err != nil {
			return nil, err
		}
		if err := t.Table.Remove(handle); err != nil {
			return nil, err
		}
		return handleValue{Handle: handle, Rep: rep}, nil
	case ResourceBorrow:
		if err := t.Table.Borrow(handle); err != nil {
			return nil, err
		}
		rep, err := t.Table.Representation(handle)
		if err != nil {
			return nil, err
		}
		return handleValue{Handle: handle, Rep: rep, Borrowed: true}, nil
	default:
		rep, err := t.Table.Representation(handle)
		if err != nil {
			return nil, err
		}
		return handleValue{Handle: handle, Rep: rep}, nil
	}
}

func (t ResourceType) Store(mem linear.Memory, off uint32, v any, _ *Context) error {
	h, err := t.lower(v)
	if err != nil {
		return err
	}
	return mem.Preallocated(off, 4).SetU32(0, h)
}

func (t ResourceType) LowerFlat(out *flat.Out, _ linear.Memory, v any, _ *Context) error {
	h, err := t.lower(v)
	if err != nil {
		return err
	}
	out.Push(flat.U32Value(h))
	return nil
}

func (t ResourceType) lower(v any) (uint32, error) {
	hv := v.(handleValue)
	switch t.HandleKind {
	case ResourceOwn:
		if hv.Obj != nil {
			return t.Table.Register(hv.Obj, 0)
		}
		return t.Table.NewHandle(hv.Rep), nil
	case ResourceBorrow:
		h := t.Table.NewHandle(hv.Rep)
		if err := t.Table.Borrow(h); err != nil {
			return 0, err
		}
		return h, nil
	default:
		return hv.Handle, nil
	}
}

// EndBorrow releases a borrowed handle lifted by a call whose own lifetime
// has ended, per the "end-lift-borrow" step the Canonical ABI performs once
// a guest-originated call returns.
func (t ResourceType) EndBorrow(handle uint32) error {
	return t.Table.EndBorrow(handle)
}

// handleValue is the codec-level representation of a resource value: the
// handle it crossed the wire as, the representation it resolves to, and
// whether it is currently on loan.
type handleValue struct {
	Handle   uint32
	Rep      uint32
	Borrowed bool
	Obj      any
}

func (t ResourceType) Copy(dst linear.Memory, dstOff uint32, src linear.Memory, srcOff uint32, ctx *Context) error {
	return copyViaLoadStore(t, dst, dstOff, src, srcOff, ctx)
}

func (t ResourceType) CopyFlat(out *flat.Out, dst linear.Memory, it *flat.Iter, src linear.Memory, ctx *Context) error {
	return copyFlatViaLiftLower(t, out, dst, it, src, ctx)
}
