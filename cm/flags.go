package cm

import (
	"github.com/componentize-go/canon/internal/flat"
	"github.com/componentize-go/canon/internal/linear"
)

// FlagsType is the flags codec: a fixed, ordered set of named bits. N<=32
// flags pack into a single unsigned integer sized to the
// narrowest of u8/u16/u32 that fits N bits; N>32 spills into
// ceil(N/32) separate u32 words. Bit i lives at word i/32, mask 1<<(i%32).
// Every word crosses the flat surface as its own i32, regardless of its
// in-memory width.
type FlagsType struct {
	Names []string
	words int
	size  uint32
	align uint32
}

// NewFlagsType builds a FlagsType for the given ordered flag names.
func NewFlagsType(names ...string) FlagsType {
	n := len(names)
	f := FlagsType{Names: names}
	switch {
	case n == 0:
		f.words, f.size, f.align = 0, 0, 1
	case n <= 8:
		f.words, f.size, f.align = 1, 1, 1
	case n <= 16:
		f.words, f.size, f.align = 1, 2, 2
	case n <= 32:
		f.words, f.size, f.align = 1, 4, 4
	default:
		f.words = (n + 31) / 32
		f.size, f.align = uint32(f.words)*4, 4
	}
	return f
}

// Flags is a codec-level flags value: the set of flag names currently set.
type Flags map[string]bool

func (FlagsType) Kind() Kind          { return KindFlags }
func (f FlagsType) Size() uint32      { return f.size }
func (f FlagsType) Alignment() uint32 { return f.align }

func (f FlagsType) FlatTypes() []flat.Type {
	out := make([]flat.Type, f.words)
	for i := range out {
		out[i] = flat.I32
	}
	return out
}

func (f FlagsType) toWords(v Flags) []uint32 {
	words := make([]uint32, f.words)
	for i, name := range f.Names {
		if v[name] {
			words[i/32] |= 1 << (uint(i) % 32)
		}
	}
	return words
}

func (f FlagsType) fromWords(words []uint32) Flags {
	v := make(Flags, len(f.Names))
	for i, name := range f.Names {
		if words[i/32]&(1<<(uint(i)%32)) != 0 {
			v[name] = true
		}
	}
	return v
}

func (f FlagsType) Load(mem linear.Memory, off uint32, _ *Context) (any, error) {
	if f.words == 0 {
		return Flags{}, nil
	}
	ro := mem.Readonly(off, f.size)
	words := make([]uint32, f.words)
	if f.words == 1 {
		var w uint32
		var err error
		switch f.size {
		case 1:
			var b uint8
			b, err = ro.GetU8(0)
			w = uint32(b)
		case 2:
			var b uint16
			b, err = ro.GetU16(0)
			w = uint32(b)
		default:
			w, err = ro.GetU32(0)
		}
		if err != nil {
			return nil, err
		}
		words[0] = w
		return f.fromWords(words), nil
	}
	for i := range words {
		w, err := ro.GetU32(uint32(i) * 4)
		if err != nil {
			return nil, err
		}
		words[i] = w
	}
	return f.fromWords(words), nil
}

func (f FlagsType) LiftFlat(_ linear.Memory, it *flat.Iter, _ *Context) (any, error) {
	words := make([]uint32, f.words)
	for i := range words {
		words[i] = it.Next(flat.I32).U32()
	}
	return f.fromWords(words), nil
}

func (f FlagsType) Store(mem linear.Memory, off uint32, v any, _ *Context) error {
	if f.words == 0 {
		return nil
	}
	words := f.toWords(v.(Flags))
	r := mem.Preallocated(off, f.size)
	if f.words == 1 {
		switch f.size {
		case 1:
			return r.SetU8(0, uint8(words[0]))
		case 2:
			return r.SetU16(0, uint16(words[0]))
		default:
			return r.SetU32(0, words[0])
		}
	}
	for i, w := range words {
		if err := r.SetU32(uint32(i)*4, w); err != nil {
			return err
		}
	}
	return nil
}

func (f FlagsType) LowerFlat(out *flat.Out, _ linear.Memory, v any, _ *Context) error {
	for _, w := range f.toWords(v.(Flags)) {
		out.Push(flat.U32Value(w))
	}
	return nil
}

func (f FlagsType) Copy(dst linear.Memory, dstOff uint32, src linear.Memory, srcOff uint32, ctx *Context) error {
	return copyViaLoadStore(f, dst, dstOff, src, srcOff, ctx)
}

func (f FlagsType) CopyFlat(out *flat.Out, dst linear.Memory, it *flat.Iter, src linear.Memory, ctx *Context) error {
	return copyFlatViaLiftLower(f, out, dst, it, src, ctx)
}
