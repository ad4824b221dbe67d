package cm

import (
	"github.com/componentize-go/canon/internal/flat"
	"github.com/componentize-go/canon/internal/linear"
)

// ListType is the list<T> codec: an out-of-line (pointer, length) pair over
// a contiguous run of elements, each of type Elem.
type ListType struct {
	Elem Type
}

func (ListType) Kind() Kind             { return KindList }
func (ListType) Size() uint32           { return 8 }
func (ListType) Alignment() uint32      { return 4 }
func (ListType) FlatTypes() []flat.Type { return []flat.Type{flat.I32, flat.I32} }

func (t ListType) elemSize() uint32 { return sizeRoundedTo(t.Elem.Size(), t.Elem.Alignment()) }

func (t ListType) Load(mem linear.Memory, off uint32, ctx *Context) (any, error) {
	h := mem.Readonly(off, 8)
	ptr, err := h.GetU32(0)
	if err != nil {
		return nil, err
	}
	length, err := h.GetU32(4)
	if err != nil {
		return nil, err
	}
	return t.loadElements(mem, ptr, length, ctx)
}

func (t ListType) LiftFlat(mem linear.Memory, it *flat.Iter, ctx *Context) (any, error) {
	ptr := it.Next(flat.I32).U32()
	length := it.Next(flat.I32).U32()
	return t.loadElements(mem, ptr, length, ctx)
}

func (t ListType) loadElements(mem linear.Memory, ptr, length uint32, ctx *Context) ([]any, error) {
	stride := t.elemSize()
	vals := make([]any, length)
	for i := uint32(0); i < length; i++ {
		v, err := t.Elem.Load(mem, ptr+i*stride, ctx)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func (t ListType) Store(mem linear.Memory, off uint32, v any, ctx *Context) error {
	ptr, length, err := t.storeElements(mem, v.([]any), ctx)
	if err != nil {
		return err
	}
	h := mem.Preallocated(off, 8)
	if err := h.SetU32(0, ptr); err != nil {
		return err
	}
	return h.SetU32(4, length)
}

func (t ListType) LowerFlat(out *flat.Out, mem linear.Memory, v any, ctx *Context) error {
	ptr, length, err := t.storeElements(mem, v.([]any), ctx)
	if err != nil {
		return err
	}
	out.Push(flat.U32Value(ptr))
	out.Push(flat.U32Value(length))
	return nil
}

func (t ListType) storeElements(mem linear.Memory, vals []any, ctx *Context) (uint32, uint32, error) {
	stride := t.elemSize()
	if len(vals) == 0 {
		return 0, 0, nil
	}
	r, err := mem.Alloc(t.Elem.Alignment(), stride*uint32(len(vals)))
	if err != nil {
		return 0, 0, err
	}
	for i, v := range vals {
		if err := t.Elem.Store(mem, r.Ptr+uint32(i)*stride, v, ctx); err != nil {
			return 0, 0, err
		}
	}
	return r.Ptr, uint32(len(vals)), nil
}

// isBulkCopyable reports whether k is one of the fixed-width numeric kinds a
// typed array (Int8Array, Uint8Array, ..., Float64Array) holds: for these,
// copy/copy_flat short-circuits to a raw byte-range transfer instead of
// per-element load/store, since every element's in-memory representation is
// already byte-identical between source and destination.
func isBulkCopyable(k Kind) bool {
	switch k {
	case KindU8, KindU16, KindU32, KindU64, KindS8, KindS16, KindS32, KindS64, KindF32, KindF64:
		return true
	default:
		return false
	}
}

// copyBulkBytes transfers a list's backing bytes directly, without lifting
// or storing individual elements, and returns the destination pointer.
func (t ListType) copyBulkBytes(dst linear.Memory, src linear.Memory, ptr, length uint32) (uint32, error) {
	if length == 0 {
		return 0, nil
	}
	stride := t.elemSize()
	n := stride * length
	raw, err := src.Readonly(ptr, n).Bytes(0, n)
	if err != nil {
		return 0, err
	}
	r, err := dst.Alloc(t.Elem.Alignment(), n)
	if err != nil {
		return 0, err
	}
	if err := r.Write(0, raw); err != nil {
		return 0, err
	}
	return r.Ptr, nil
}

func (t ListType) Copy(dst linear.Memory, dstOff uint32, src linear.Memory, srcOff uint32, ctx *Context) error {
	if !isBulkCopyable(t.Elem.Kind()) {
		return copyViaLoadStore(t, dst, dstOff, src, srcOff, ctx)
	}
	h := src.Readonly(srcOff, 8)
	ptr, err := h.GetU32(0)
	if err != nil {
		return err
	}
	length, err := h.GetU32(4)
	if err != nil {
		return err
	}
	destPtr, err := t.copyBulkBytes(dst, src, ptr, length)
	if err != nil {
		return err
	}
	out := dst.Preallocated(dstOff, 8)
	if err := out.SetU32(0, destPtr); err != nil {
		return err
	}
	return out.SetU32(4, length)
}

func (t ListType) CopyFlat(out *flat.Out, dst linear.Memory, it *flat.Iter, src linear.Memory, ctx *Context) error {
	if !isBulkCopyable(t.Elem.Kind()) {
		return copyFlatViaLiftLower(t, out, dst, it, src, ctx)
	}
	ptr := it.Next(flat.I32).U32()
	length := it.Next(flat.I32).U32()
	destPtr, err := t.copyBulkBytes(dst, src, ptr, length)
	if err != nil {
		return err
	}
	out.Push(flat.U32Value(destPtr))
	out.Push(flat.U32Value(length))
	return nil
}
