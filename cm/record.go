package cm

import (
	"github.com/componentize-go/canon/internal/flat"
	"github.com/componentize-go/canon/internal/linear"
)

// Field is one named member of a RecordType, in declaration order.
type Field struct {
	Name string
	Type Type
}

// layout computes each member's byte offset, the overall size, and the
// overall alignment (the max of every member's alignment), shared by
// RecordType and TupleType.
type layout struct {
	offsets []uint32
	size    uint32
	align   uint32
}

func computeLayout(members []Type) layout {
	var l layout
	l.align = 1
	var off uint32
	for _, m := range members {
		off = alignUp(off, m.Alignment())
		l.offsets = append(l.offsets, off)
		off += m.Size()
		if m.Alignment() > l.align {
			l.align = m.Alignment()
		}
	}
	l.size = sizeRoundedTo(off, l.align)
	return l
}

func flattenAll(members []Type) []flat.Type {
	var out []flat.Type
	for _, m := range members {
		out = append(out, m.FlatTypes()...)
	}
	return out
}

// RecordType is the record codec: an ordered set of named fields, each
// stored at its own aligned offset and flattened by concatenation.
type RecordType struct {
	Fields []Field
	lay    layout
}

// NewRecordType builds a RecordType and precomputes its layout.
func NewRecordType(fields ...Field) RecordType {
	types := make([]Type, len(fields))
	for i, f := range fields {
		types[i] = f.Type
	}
	return RecordType{Fields: fields, lay: computeLayout(types)}
}

func (RecordType) Kind() Kind        { return KindRecord }
func (r RecordType) Size() uint32      { return r.lay.size }
func (r RecordType) Alignment() uint32 { return r.lay.align }

func (r RecordType) FlatTypes() []flat.Type {
	types := make([]Type, len(r.Fields))
	for i, f := range r.Fields {
		types[i] = f.Type
	}
	return flattenAll(types)
}

// Record is a codec-level record value: a map from field name to lifted
// value. The map itself is unordered; field order comes from r.Fields.
type Record map[string]any

func (r RecordType) Load(mem linear.Memory, off uint32, ctx *Context) (any, error) {
	rec := make(Record, len(r.Fields))
	for i, f := range r.Fields {
		v, err := f.Type.Load(mem, off+r.lay.offsets[i], ctx)
		if err != nil {
			return nil, err
		}
		rec[f.Name] = v
	}
	return rec, nil
}

func (r RecordType) LiftFlat(mem linear.Memory, it *flat.Iter, ctx *Context) (any, error) {
	rec := make(Record, len(r.Fields))
	for _, f := range r.Fields {
		v, err := f.Type.LiftFlat(mem, it, ctx)
		if err != nil {
			return nil, err
		}
		rec[f.Name] = v
	}
	return rec, nil
}

func (r RecordType) Store(mem linear.Memory, off uint32, v any, ctx *Context) error {
	rec := v.(Record)
	for i, f := range r.Fields {
		if err := f.Type.Store(mem, off+r.lay.offsets[i], rec[f.Name], ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r RecordType) LowerFlat(out *flat.Out, mem linear.Memory, v any, ctx *Context) error {
	rec := v.(Record)
	for _, f := range r.Fields {
		if err := f.Type.LowerFlat(out, mem, rec[f.Name], ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r RecordType) Copy(dst linear.Memory, dstOff uint32, src linear.Memory, srcOff uint32, ctx *Context) error {
	for i, f := range r.Fields {
		if err := f.Type.Copy(dst, dstOff+r.lay.offsets[i], src, srcOff+r.lay.offsets[i], ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r RecordType) CopyFlat(out *flat.Out, dst linear.Memory, it *flat.Iter, src linear.Memory, ctx *Context) error {
	for _, f := range r.Fields {
		if err := f.Type.CopyFlat(out, dst, it, src, ctx); err != nil {
			return err
		}
	}
	return nil
}

// TupleType is a RecordType with positional rather than named fields;
// structurally identical at the wire level, kept distinct so a caller can
// tell the two apart (e.g. the synthetic tuple construction for a
// multi-parameter Callable).
type TupleType struct {
	Elems []Type
	lay   layout
}

// NewTupleType builds a TupleType and precomputes its layout.
func NewTupleType(elems ...Type) TupleType {
	return TupleType{Elems: elems, lay: computeLayout(elems)}
}

// Tuple is a codec-level tuple value, one entry per TupleType.Elems.
type Tuple []any

func (TupleType) Kind() Kind        { return KindTuple }
func (t TupleType) Size() uint32      { return t.lay.size }
func (t TupleType) Alignment() uint32 { return t.lay.align }
func (t TupleType) FlatTypes() []flat.Type { return flattenAll(t.Elems) }

func (t TupleType) Load(mem linear.Memory, off uint32, ctx *Context) (any, error) {
	out := make(Tuple, len(t.Elems))
	for i, e := range t.Elems {
		v, err := e.Load(mem, off+t.lay.offsets[i], ctx)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (t TupleType) LiftFlat(mem linear.Memory, it *flat.Iter, ctx *Context) (any, error) {
	out := make(Tuple, len(t.Elems))
	for i, e := range t.Elems {
		v, err := e.LiftFlat(mem, it, ctx)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (t TupleType) Store(mem linear.Memory, off uint32, v any, ctx *Context) error {
	tup := v.(Tuple)
	for i, e := range t.Elems {
		if err := e.Store(mem, off+t.lay.offsets[i], tup[i], ctx); err != nil {
			return err
		}
	}
	return nil
}

func (t TupleType) LowerFlat(out *flat.Out, mem linear.Memory, v any, ctx *Context) error {
	tup := v.(Tuple)
	for i, e := range t.Elems {
		if err := e.LowerFlat(out, mem, tup[i], ctx); err != nil {
			return err
		}
	}
	return nil
}

func (t TupleType) Copy(dst linear.Memory, dstOff uint32, src linear.Memory, srcOff uint32, ctx *Context) error {
	for i, e := range t.Elems {
		if err := e.Copy(dst, dstOff+t.lay.offsets[i], src, srcOff+t.lay.offsets[i], ctx); err != nil {
			return err
		}
	}
	return nil
}

func (t TupleType) CopyFlat(out *flat.Out, dst linear.Memory, it *flat.Iter, src linear.Memory, ctx *Context) error {
	for _, e := range t.Elems {
		if err := e.CopyFlat(out, dst, it, src, ctx); err != nil {
			return err
		}
	}
	return nil
}
