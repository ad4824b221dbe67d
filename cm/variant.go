package cm

import (
	"github.com/componentize-go/canon/internal/flat"
	"github.com/componentize-go/canon/internal/linear"
)

// Case is one arm of a VariantType. Type is nil for a payload-less case.
type Case struct {
	Name string
	Type Type
}

// Variant is a codec-level variant value: the name of the selected case and
// its payload (nil if that case carries none).
type Variant struct {
	Case  string
	Value any
}

// VariantType is the variant codec. The discriminant is
// stored in memory using the narrowest of u8/u16/u32 that can index every
// case, but always crosses the flat calling surface as a single i32; the
// payload's flat representation is the element-wise join across every
// case's own flat types.
type VariantType struct {
	Cases []Case

	discSize     uint32 // 1, 2, or 4
	payloadOff   uint32
	payloadAlign uint32
	payloadSize  uint32
	align        uint32
	size         uint32
	joined       []flat.Type
}

// NewVariantType builds a VariantType and precomputes its layout.
func NewVariantType(cases ...Case) VariantType {
	v := VariantType{Cases: cases}

	n := len(cases)
	switch {
	case n <= 1<<8:
		v.discSize = 1
	case n <= 1<<16:
		v.discSize = 2
	default:
		v.discSize = 4
	}

	v.payloadAlign = 1
	for _, c := range cases {
		if c.Type == nil {
			continue
		}
		if c.Type.Alignment() > v.payloadAlign {
			v.payloadAlign = c.Type.Alignment()
		}
		if c.Type.Size() > v.payloadSize {
			v.payloadSize = c.Type.Size()
		}
	}
	v.align = v.discSize
	if v.payloadAlign > v.align {
		v.align = v.payloadAlign
	}
	v.payloadOff = alignUp(v.discSize, v.payloadAlign)
	v.size = sizeRoundedTo(v.payloadOff+v.payloadSize, v.align)

	maxLen := 0
	perCase := make([][]flat.Type, n)
	for i, c := range cases {
		if c.Type != nil {
			perCase[i] = c.Type.FlatTypes()
		}
		if len(perCase[i]) > maxLen {
			maxLen = len(perCase[i])
		}
	}
	v.joined = make([]flat.Type, maxLen)
	for i := 0; i < maxLen; i++ {
		var t flat.Type
		first := true
		for _, ft := range perCase {
			if i >= len(ft) {
				continue
			}
			if first {
				t = ft[i]
				first = false
			} else {
				t = flat.Join(t, ft[i])
			}
		}
		v.joined[i] = t
	}
	return v
}

func (VariantType) Kind() Kind          { return KindVariant }
func (v VariantType) Size() uint32      { return v.size }
func (v VariantType) Alignment() uint32 { return v.align }

func (v VariantType) FlatTypes() []flat.Type {
	out := make([]flat.Type, 0, len(v.joined)+1)
	out = append(out, flat.I32)
	return append(out, v.joined...)
}

func (v VariantType) indexOf(name string) (int, error) {
	for i, c := range v.Cases {
		if c.Name == name {
			return i, nil
		}
	}
	return 0, trap(TrapBadDiscriminant, "unknown variant case %q", name)
}

func (v VariantType) loadDiscriminant(mem linear.Memory, off uint32) (uint32, error) {
	ro := mem.Readonly(off, v.discSize)
	switch v.discSize {
	case 1:
		b, err := ro.GetU8(0)
		return uint32(b), err
	case 2:
		b, err := ro.GetU16(0)
		return uint32(b), err
	default:
		return ro.GetU32(0)
	}
}

func (v VariantType) storeDiscriminant(mem linear.Memory, off, idx uint32) error {
	r := mem.Preallocated(off, v.discSize)
	switch v.discSize {
	case 1:
		return r.SetU8(0, uint8(idx))
	case 2:
		return r.SetU16(0, uint16(idx))
	default:
		return r.SetU32(0, idx)
	}
}

func (v VariantType) Load(mem linear.Memory, off uint32, ctx *Context) (any, error) {
	idx, err := v.loadDiscriminant(mem, off)
	if err != nil {
		return nil, err
	}
	if idx >= uint32(len(v.Cases)) {
		return nil, trap(TrapBadDiscriminant, "discriminant %d is out of range for %d cases", idx, len(v.Cases))
	}
	c := v.Cases[idx]
	if c.Type == nil {
		return Variant{Case: c.Name}, nil
	}
	payload, err := c.Type.Load(mem, off+v.payloadOff, ctx)
	if err != nil {
		return nil, err
	}
	return Variant{Case: c.Name, Value: payload}, nil
}

func (v VariantType) Store(mem linear.Memory, off uint32, val any, ctx *Context) error {
	vv := val.(Variant)
	idx, err := v.indexOf(vv.Case)
	if err != nil {
		return err
	}
	if err := v.storeDiscriminant(mem, off, uint32(idx)); err != nil {
		return err
	}
	c := v.Cases[idx]
	if c.Type == nil {
		return nil
	}
	return c.Type.Store(mem, off+v.payloadOff, vv.Value, ctx)
}

func (v VariantType) LiftFlat(mem linear.Memory, it *flat.Iter, ctx *Context) (any, error) {
	idx := it.Next(flat.I32).U32()
	if idx >= uint32(len(v.Cases)) {
		return nil, trap(TrapBadDiscriminant, "discriminant %d is out of range for %d cases", idx, len(v.Cases))
	}
	c := v.Cases[idx]

	if c.Type == nil {
		it.Skip(len(v.joined))
		return Variant{Case: c.Name}, nil
	}

	own := c.Type.FlatTypes()
	payloadVals := make([]flat.Value, len(own))
	for i, want := range own {
		payloadVals[i] = it.Next(want)
	}
	it.Skip(len(v.joined) - len(own))

	payload, err := c.Type.LiftFlat(mem, flat.NewIter(payloadVals), ctx)
	if err != nil {
		return nil, err
	}
	return Variant{Case: c.Name, Value: payload}, nil
}

func (v VariantType) LowerFlat(out *flat.Out, mem linear.Memory, val any, ctx *Context) error {
	vv := val.(Variant)
	idx, err := v.indexOf(vv.Case)
	if err != nil {
		return err
	}
	out.Push(flat.U32Value(uint32(idx)))

	c := v.Cases[idx]
	base := len(out.Values)
	if c.Type != nil {
		if err := c.Type.LowerFlat(out, mem, vv.Value, ctx); err != nil {
			return err
		}
		own := out.Values[base:]
		for i := range own {
			out.Values[base+i] = flat.Coerce(own[i], v.joined[i])
		}
	}
	// Positions beyond this case's own flat types are padded with
	// zero values of the joined type, so every case produces the same
	// number of flat values.
	for i := len(out.Values) - base; i < len(v.joined); i++ {
		out.Push(flat.Value{Type: v.joined[i]})
	}
	return nil
}

func (v VariantType) Copy(dst linear.Memory, dstOff uint32, src linear.Memory, srcOff uint32, ctx *Context) error {
	return copyViaLoadStore(v, dst, dstOff, src, srcOff, ctx)
}

func (v VariantType) CopyFlat(out *flat.Out, dst linear.Memory, it *flat.Iter, src linear.Memory, ctx *Context) error {
	return copyFlatViaLiftLower(v, out, dst, it, src, ctx)
}

// EnumType is a VariantType restricted to payload-less cases, stored and
// flattened identically but exposing plain case names instead of Variant
// wrappers.
type EnumType struct {
	Names   []string
	variant VariantType
}

// NewEnumType builds an EnumType from its ordered case names.
func NewEnumType(names ...string) EnumType {
	cases := make([]Case, len(names))
	for i, n := range names {
		cases[i] = Case{Name: n}
	}
	return EnumType{Names: names, variant: NewVariantType(cases...)}
}

func (EnumType) Kind() Kind             { return KindEnum }
func (e EnumType) Size() uint32         { return e.variant.Size() }
func (e EnumType) Alignment() uint32    { return e.variant.Alignment() }
func (e EnumType) FlatTypes() []flat.Type { return e.variant.FlatTypes() }

func (e EnumType) Load(mem linear.Memory, off uint32, ctx *Context) (any, error) {
	v, err := e.variant.Load(mem, off, ctx)
	if err != nil {
		return nil, err
	}
	return v.(Variant).Case, nil
}

func (e EnumType) LiftFlat(mem linear.Memory, it *flat.Iter, ctx *Context) (any, error) {
	v, err := e.variant.LiftFlat(mem, it, ctx)
	if err != nil {
		return nil, err
	}
	return v.(Variant).Case, nil
}

func (e EnumType) Store(mem linear.Memory, off uint32, v any, ctx *Context) error {
	return e.variant.Store(mem, off, Variant{Case: v.(string)}, ctx)
}

func (e EnumType) LowerFlat(out *flat.Out, mem linear.Memory, v any, ctx *Context) error {
	return e.variant.LowerFlat(out, mem, Variant{Case: v.(string)}, ctx)
}

func (e EnumType) Copy(dst linear.Memory, dstOff uint32, src linear.Memory, srcOff uint32, ctx *Context) error {
	return copyViaLoadStore(e, dst, dstOff, src, srcOff, ctx)
}

func (e EnumType) CopyFlat(out *flat.Out, dst linear.Memory, it *flat.Iter, src linear.Memory, ctx *Context) error {
	return copyFlatViaLiftLower(e, out, dst, it, src, ctx)
}
