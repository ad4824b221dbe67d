package cm

import (
	"github.com/componentize-go/canon/internal/flat"
	"github.com/componentize-go/canon/internal/linear"
)

// BoolType is the bool codec: stored as a single byte, any non-zero value
// lifts to true.
type BoolType struct{}

func (BoolType) Kind() Kind                  { return KindBool }
func (BoolType) Size() uint32                { return 1 }
func (BoolType) Alignment() uint32           { return 1 }
func (BoolType) FlatTypes() []flat.Type      { return []flat.Type{flat.I32} }

func (BoolType) Load(mem linear.Memory, off uint32, _ *Context) (any, error) {
	b, err := mem.Readonly(off, 1).GetU8(0)
	if err != nil {
		return nil, err
	}
	return b != 0, nil
}

func (BoolType) LiftFlat(_ linear.Memory, it *flat.Iter, _ *Context) (any, error) {
	return it.Next(flat.I32).U32() != 0, nil
}

func (BoolType) Store(mem linear.Memory, off uint32, v any, _ *Context) error {
	var b uint8
	if v.(bool) {
		b = 1
	}
	return Range(mem, off, 1).SetU8(0, b)
}

func (BoolType) LowerFlat(out *flat.Out, _ linear.Memory, v any, _ *Context) error {
	var i uint32
	if v.(bool) {
		i = 1
	}
	out.Push(flat.U32Value(i))
	return nil
}

func (t BoolType) Copy(dst linear.Memory, dstOff uint32, src linear.Memory, srcOff uint32, ctx *Context) error {
	return copyViaLoadStore(t, dst, dstOff, src, srcOff, ctx)
}

func (t BoolType) CopyFlat(out *flat.Out, dst linear.Memory, it *flat.Iter, src linear.Memory, ctx *Context) error {
	return copyFlatViaLiftLower(t, out, dst, it, src, ctx)
}

// Range is a small helper constructing a mutable linear.Range over mem,
// shared by every primitive codec's Store implementation.
func Range(mem linear.Memory, off, size uint32) linear.Range {
	return mem.Preallocated(off, size)
}

// copyViaLoadStore is the generic Copy fallback used by every type whose
// Load/Store pair already performs the necessary re-allocation, including
// the resource handle types, whose Load/Store go through the resource table.
func copyViaLoadStore(t Type, dst linear.Memory, dstOff uint32, src linear.Memory, srcOff uint32, ctx *Context) error {
	v, err := t.Load(src, srcOff, ctx)
	if err != nil {
		return err
	}
	return t.Store(dst, dstOff, v, ctx)
}

// copyFlatViaLiftLower is the generic CopyFlat fallback: lift from the
// source flat stream against src's memory, then lower against dst's memory.
func copyFlatViaLiftLower(t Type, out *flat.Out, dst linear.Memory, it *flat.Iter, src linear.Memory, ctx *Context) error {
	v, err := t.LiftFlat(src, it, ctx)
	if err != nil {
		return err
	}
	return t.LowerFlat(out, dst, v, ctx)
}

// --- unsigned integers ---

type U8Type struct{}

func (U8Type) Kind() Kind             { return KindU8 }
func (U8Type) Size() uint32           { return 1 }
func (U8Type) Alignment() uint32      { return 1 }
func (U8Type) FlatTypes() []flat.Type { return []flat.Type{flat.I32} }

func (U8Type) Load(mem linear.Memory, off uint32, _ *Context) (any, error) {
	return mem.Readonly(off, 1).GetU8(0)
}
func (U8Type) LiftFlat(_ linear.Memory, it *flat.Iter, _ *Context) (any, error) {
	return uint8(it.Next(flat.I32).U32()), nil
}
func (U8Type) Store(mem linear.Memory, off uint32, v any, _ *Context) error {
	return Range(mem, off, 1).SetU8(0, v.(uint8))
}
func (U8Type) LowerFlat(out *flat.Out, _ linear.Memory, v any, _ *Context) error {
	out.Push(flat.U32Value(uint32(v.(uint8))))
	return nil
}
func (t U8Type) Copy(dst linear.Memory, dstOff uint32, src linear.Memory, srcOff uint32, ctx *Context) error {
	return copyViaLoadStore(t, dst, dstOff, src, srcOff, ctx)
}
func (t U8Type) CopyFlat(out *flat.Out, dst linear.Memory, it *flat.Iter, src linear.Memory, ctx *Context) error {
	return copyFlatViaLiftLower(t, out, dst, it, src, ctx)
}

type U16Type struct{}

func (U16Type) Kind() Kind             { return KindU16 }
func (U16Type) Size() uint32           { return 2 }
func (U16Type) Alignment() uint32      { return 2 }
func (U16Type) FlatTypes() []flat.Type { return []flat.Type{flat.I32} }
func (U16Type) Load(mem linear.Memory, off uint32, _ *Context) (any, error) {
	return mem.Readonly(off, 2).GetU16(0)
}
func (U16Type) LiftFlat(_ linear.Memory, it *flat.Iter, _ *Context) (any, error) {
	return uint16(it.Next(flat.I32).U32()), nil
}
func (U16Type) Store(mem linear.Memory, off uint32, v any, _ *Context) error {
	return Range(mem, off, 2).SetU16(0, v.(uint16))
}
func (U16Type) LowerFlat(out *flat.Out, _ linear.Memory, v any, _ *Context) error {
	out.Push(flat.U32Value(uint32(v.(uint16))))
	return nil
}
func (t U16Type) Copy(dst linear.Memory, dstOff uint32, src linear.Memory, srcOff uint32, ctx *Context) error {
	return copyViaLoadStore(t, dst, dstOff, src, srcOff, ctx)
}
func (t U16Type) CopyFlat(out *flat.Out, dst linear.Memory, it *flat.Iter, src linear.Memory, ctx *Context) error {
	return copyFlatViaLiftLower(t, out, dst, it, src, ctx)
}

type U32Type struct{}

func (U32Type) Kind() Kind             { return KindU32 }
func (U32Type) Size() uint32           { return 4 }
func (U32Type) Alignment() uint32      { return 4 }
func (U32Type) FlatTypes() []flat.Type { return []flat.Type{flat.I32} }
func (U32Type) Load(mem linear.Memory, off uint32, _ *Context) (any, error) {
	return mem.Readonly(off, 4).GetU32(0)
}
func (U32Type) LiftFlat(_ linear.Memory, it *flat.Iter, _ *Context) (any, error) {
	return it.Next(flat.I32).U32(), nil
}
func (U32Type) Store(mem linear.Memory, off uint32, v any, _ *Context) error {
	return Range(mem, off, 4).SetU32(0, v.(uint32))
}
func (U32Type) LowerFlat(out *flat.Out, _ linear.Memory, v any, _ *Context) error {
	out.Push(flat.U32Value(v.(uint32)))
	return nil
}
func (t U32Type) Copy(dst linear.Memory, dstOff uint32, src linear.Memory, srcOff uint32, ctx *Context) error {
	return copyViaLoadStore(t, dst, dstOff, src, srcOff, ctx)
}
func (t U32Type) CopyFlat(out *flat.Out, dst linear.Memory, it *flat.Iter, src linear.Memory, ctx *Context) error {
	return copyFlatViaLiftLower(t, out, dst, it, src, ctx)
}

type U64Type struct{}

func (U64Type) Kind() Kind             { return KindU64 }
func (U64Type) Size() uint32           { return 8 }
func (U64Type) Alignment() uint32      { return 8 }
func (U64Type) FlatTypes() []flat.Type { return []flat.Type{flat.I64} }
func (U64Type) Load(mem linear.Memory, off uint32, _ *Context) (any, error) {
	return mem.Readonly(off, 8).GetU64(0)
}
func (U64Type) LiftFlat(_ linear.Memory, it *flat.Iter, _ *Context) (any, error) {
	return it.Next(flat.I64).U64(), nil
}
func (U64Type) Store(mem linear.Memory, off uint32, v any, _ *Context) error {
	return Range(mem, off, 8).SetU64(0, v.(uint64))
}
func (U64Type) LowerFlat(out *flat.Out, _ linear.Memory, v any, _ *Context) error {
	out.Push(flat.U64Value(v.(uint64)))
	return nil
}
func (t U64Type) Copy(dst linear.Memory, dstOff uint32, src linear.Memory, srcOff uint32, ctx *Context) error {
	return copyViaLoadStore(t, dst, dstOff, src, srcOff, ctx)
}
func (t U64Type) CopyFlat(out *flat.Out, dst linear.Memory, it *flat.Iter, src linear.Memory, ctx *Context) error {
	return copyFlatViaLiftLower(t, out, dst, it, src, ctx)
}

// --- signed integers ---
//
// Every signed lift adopts the "wider-then-subtract" convention uniformly:
// a lift accepts the full
// unsigned range of the backing flat/memory width, then subtracts 2^W if the
// value exceeds HIGH. There is deliberately only one code path for this
// (signedFromBits), so a narrower clamp-based convention can never sneak
// back in through a second call site.

func signedFromBits(bits uint64, width uint8) int64 {
	high := int64(1) << (width - 1)
	v := int64(bits)
	if v >= high<<1 {
		v -= int64(1) << width
	} else if v >= high {
		v -= int64(1) << width
	}
	return v
}

func bitsFromSigned(v int64, width uint8) uint64 {
	mask := uint64(1)<<width - 1
	return uint64(v) & mask
}

type S8Type struct{}

func (S8Type) Kind() Kind             { return KindS8 }
func (S8Type) Size() uint32           { return 1 }
func (S8Type) Alignment() uint32      { return 1 }
func (S8Type) FlatTypes() []flat.Type { return []flat.Type{flat.I32} }
func (S8Type) Load(mem linear.Memory, off uint32, _ *Context) (any, error) {
	b, err := mem.Readonly(off, 1).GetU8(0)
	if err != nil {
		return nil, err
	}
	return int8(signedFromBits(uint64(b), 8)), nil
}
func (S8Type) LiftFlat(_ linear.Memory, it *flat.Iter, _ *Context) (any, error) {
	return int8(signedFromBits(uint64(it.Next(flat.I32).U32()&0xff), 8)), nil
}
func (S8Type) Store(mem linear.Memory, off uint32, v any, _ *Context) error {
	return Range(mem, off, 1).SetU8(0, uint8(bitsFromSigned(int64(v.(int8)), 8)))
}
func (S8Type) LowerFlat(out *flat.Out, _ linear.Memory, v any, _ *Context) error {
	out.Push(flat.U32Value(uint32(bitsFromSigned(int64(v.(int8)), 8))))
	return nil
}
func (t S8Type) Copy(dst linear.Memory, dstOff uint32, src linear.Memory, srcOff uint32, ctx *Context) error {
	return copyViaLoadStore(t, dst, dstOff, src, srcOff, ctx)
}
func (t S8Type) CopyFlat(out *flat.Out, dst linear.Memory, it *flat.Iter, src linear.Memory, ctx *Context) error {
	return copyFlatViaLiftLower(t, out, dst, it, src, ctx)
}

type S16Type struct{}

func (S16Type) Kind() Kind             { return KindS16 }
func (S16Type) Size() uint32           { return 2 }
func (S16Type) Alignment() uint32      { return 2 }
func (S16Type) FlatTypes() []flat.Type { return []flat.Type{flat.I32} }
func (S16Type) Load(mem linear.Memory, off uint32, _ *Context) (any, error) {
	b, err := mem.Readonly(off, 2).GetU16(0)
	if err != nil {
		return nil, err
	}
	return int16(signedFromBits(uint64(b), 16)), nil
}
func (S16Type) LiftFlat(_ linear.Memory, it *flat.Iter, _ *Context) (any, error) {
	return int16(signedFromBits(uint64(it.Next(flat.I32).U32()&0xffff), 16)), nil
}
func (S16Type) Store(mem linear.Memory, off uint32, v any, _ *Context) error {
	return Range(mem, off, 2).SetU16(0, uint16(bitsFromSigned(int64(v.(int16)), 16)))
}
func (S16Type) LowerFlat(out *flat.Out, _ linear.Memory, v any, _ *Context) error {
	out.Push(flat.U32Value(uint32(bitsFromSigned(int64(v.(int16)), 16))))
	return nil
}
func (t S16Type) Copy(dst linear.Memory, dstOff uint32, src linear.Memory, srcOff uint32, ctx *Context) error {
	return copyViaLoadStore(t, dst, dstOff, src, srcOff, ctx)
}
func (t S16Type) CopyFlat(out *flat.Out, dst linear.Memory, it *flat.Iter, src linear.Memory, ctx *Context) error {
	return copyFlatViaLiftLower(t, out, dst, it, src, ctx)
}

type S32Type struct{}

func (S32Type) Kind() Kind             { return KindS32 }
func (S32Type) Size() uint32           { return 4 }
func (S32Type) Alignment() uint32      { return 4 }
func (S32Type) FlatTypes() []flat.Type { return []flat.Type{flat.I32} }
func (S32Type) Load(mem linear.Memory, off uint32, _ *Context) (any, error) {
	b, err := mem.Readonly(off, 4).GetU32(0)
	if err != nil {
		return nil, err
	}
	return int32(signedFromBits(uint64(b), 32)), nil
}
func (S32Type) LiftFlat(_ linear.Memory, it *flat.Iter, _ *Context) (any, error) {
	return int32(signedFromBits(uint64(it.Next(flat.I32).U32()), 32)), nil
}
func (S32Type) Store(mem linear.Memory, off uint32, v any, _ *Context) error {
	return Range(mem, off, 4).SetU32(0, uint32(bitsFromSigned(int64(v.(int32)), 32)))
}
func (S32Type) LowerFlat(out *flat.Out, _ linear.Memory, v any, _ *Context) error {
	out.Push(flat.U32Value(uint32(bitsFromSigned(int64(v.(int32)), 32))))
	return nil
}
func (t S32Type) Copy(dst linear.Memory, dstOff uint32, src linear.Memory, srcOff uint32, ctx *Context) error {
	return copyViaLoadStore(t, dst, dstOff, src, srcOff, ctx)
}
func (t S32Type) CopyFlat(out *flat.Out, dst linear.Memory, it *flat.Iter, src linear.Memory, ctx *Context) error {
	return copyFlatViaLiftLower(t, out, dst, it, src, ctx)
}

type S64Type struct{}

func (S64Type) Kind() Kind             { return KindS64 }
func (S64Type) Size() uint32           { return 8 }
func (S64Type) Alignment() uint32      { return 8 }
func (S64Type) FlatTypes() []flat.Type { return []flat.Type{flat.I64} }
func (S64Type) Load(mem linear.Memory, off uint32, _ *Context) (any, error) {
	b, err := mem.Readonly(off, 8).GetU64(0)
	if err != nil {
		return nil, err
	}
	return int64(b), nil
}
func (S64Type) LiftFlat(_ linear.Memory, it *flat.Iter, _ *Context) (any, error) {
	return int64(it.Next(flat.I64).U64()), nil
}
func (S64Type) Store(mem linear.Memory, off uint32, v any, _ *Context) error {
	return Range(mem, off, 8).SetU64(0, uint64(v.(int64)))
}
func (S64Type) LowerFlat(out *flat.Out, _ linear.Memory, v any, _ *Context) error {
	out.Push(flat.U64Value(uint64(v.(int64))))
	return nil
}
func (t S64Type) Copy(dst linear.Memory, dstOff uint32, src linear.Memory, srcOff uint32, ctx *Context) error {
	return copyViaLoadStore(t, dst, dstOff, src, srcOff, ctx)
}
func (t S64Type) CopyFlat(out *flat.Out, dst linear.Memory, it *flat.Iter, src linear.Memory, ctx *Context) error {
	return copyFlatViaLiftLower(t, out, dst, it, src, ctx)
}

// --- floats ---

type F32Type struct{}

func (F32Type) Kind() Kind             { return KindF32 }
func (F32Type) Size() uint32           { return 4 }
func (F32Type) Alignment() uint32      { return 4 }
func (F32Type) FlatTypes() []flat.Type { return []flat.Type{flat.F32} }
func (F32Type) Load(mem linear.Memory, off uint32, _ *Context) (any, error) {
	v, err := mem.Readonly(off, 4).GetF32(0)
	if err != nil {
		return nil, err
	}
	return flat.CanonicalizeF32(v), nil
}
func (F32Type) LiftFlat(_ linear.Memory, it *flat.Iter, _ *Context) (any, error) {
	return flat.CanonicalizeF32(it.Next(flat.F32).F32()), nil
}
func (F32Type) Store(mem linear.Memory, off uint32, v any, _ *Context) error {
	return Range(mem, off, 4).SetF32(0, flat.CanonicalizeF32(v.(float32)))
}
func (F32Type) LowerFlat(out *flat.Out, _ linear.Memory, v any, _ *Context) error {
	out.Push(flat.F32Value(flat.CanonicalizeF32(v.(float32))))
	return nil
}
func (t F32Type) Copy(dst linear.Memory, dstOff uint32, src linear.Memory, srcOff uint32, ctx *Context) error {
	return copyViaLoadStore(t, dst, dstOff, src, srcOff, ctx)
}
func (t F32Type) CopyFlat(out *flat.Out, dst linear.Memory, it *flat.Iter, src linear.Memory, ctx *Context) error {
	return copyFlatViaLiftLower(t, out, dst, it, src, ctx)
}

type F64Type struct{}

func (F64Type) Kind() Kind             { return KindF64 }
func (F64Type) Size() uint32           { return 8 }
func (F64Type) Alignment() uint32      { return 8 }
func (F64Type) FlatTypes() []flat.Type { return []flat.Type{flat.F64} }
func (F64Type) Load(mem linear.Memory, off uint32, _ *Context) (any, error) {
	v, err := mem.Readonly(off, 8).GetF64(0)
	if err != nil {
		return nil, err
	}
	return flat.CanonicalizeF64(v), nil
}
func (F64Type) LiftFlat(_ linear.Memory, it *flat.Iter, _ *Context) (any, error) {
	return flat.CanonicalizeF64(it.Next(flat.F64).F64()), nil
}
func (F64Type) Store(mem linear.Memory, off uint32, v any, _ *Context) error {
	return Range(mem, off, 8).SetF64(0, flat.CanonicalizeF64(v.(float64)))
}
func (F64Type) LowerFlat(out *flat.Out, _ linear.Memory, v any, _ *Context) error {
	out.Push(flat.F64Value(flat.CanonicalizeF64(v.(float64))))
	return nil
}
func (t F64Type) Copy(dst linear.Memory, dstOff uint32, src linear.Memory, srcOff uint32, ctx *Context) error {
	return copyViaLoadStore(t, dst, dstOff, src, srcOff, ctx)
}
func (t F64Type) CopyFlat(out *flat.Out, dst linear.Memory, it *flat.Iter, src linear.Memory, ctx *Context) error {
	return copyFlatViaLiftLower(t, out, dst, it, src, ctx)
}

// --- char ---

type CharType struct{}

func (CharType) Kind() Kind             { return KindChar }
func (CharType) Size() uint32           { return 4 }
func (CharType) Alignment() uint32      { return 4 }
func (CharType) FlatTypes() []flat.Type { return []flat.Type{flat.I32} }

func validateChar(v uint32) (rune, error) {
	if v >= 0xD800 && v <= 0xDFFF {
		return 0, trap(TrapBadChar, "code point %#x is a surrogate", v)
	}
	if v >= 0x110000 {
		return 0, trap(TrapBadChar, "code point %#x exceeds the Unicode range", v)
	}
	return rune(v), nil
}

func (CharType) Load(mem linear.Memory, off uint32, _ *Context) (any, error) {
	v, err := mem.Readonly(off, 4).GetU32(0)
	if err != nil {
		return nil, err
	}
	return validateChar(v)
}
func (CharType) LiftFlat(_ linear.Memory, it *flat.Iter, _ *Context) (any, error) {
	return validateChar(it.Next(flat.I32).U32())
}
func (CharType) Store(mem linear.Memory, off uint32, v any, _ *Context) error {
	r := v.(rune)
	if _, err := validateChar(uint32(r)); err != nil {
		return err
	}
	return Range(mem, off, 4).SetU32(0, uint32(r))
}
func (CharType) LowerFlat(out *flat.Out, _ linear.Memory, v any, _ *Context) error {
	r := v.(rune)
	if _, err := validateChar(uint32(r)); err != nil {
		return err
	}
	out.Push(flat.U32Value(uint32(r)))
	return nil
}
func (t CharType) Copy(dst linear.Memory, dstOff uint32, src linear.Memory, srcOff uint32, ctx *Context) error {
	return copyViaLoadStore(t, dst, dstOff, src, srcOff, ctx)
}
func (t CharType) CopyFlat(out *flat.Out, dst linear.Memory, it *flat.Iter, src linear.Memory, ctx *Context) error {
	return copyFlatViaLiftLower(t, out, dst, it, src, ctx)
}
