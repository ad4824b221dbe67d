package cm

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/componentize-go/canon/internal/flat"
	"github.com/componentize-go/canon/internal/linear"
)

// utf16LE is the code-unit codec for the "utf-16" string encoding: the
// wire format is little-endian UTF-16 with no byte-order mark, matching the
// Component Model's fixed-endianness convention for linear memory.
var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// StringType is the string codec. Its in-memory representation is always a
// (pointer, length) pair; the encoding that governs how the pointed-to bytes
// are interpreted comes from ctx.Encoding, not from the type itself.
type StringType struct{}

func (StringType) Kind() Kind             { return KindString }
func (StringType) Size() uint32           { return 8 }
func (StringType) Alignment() uint32      { return 4 }
func (StringType) FlatTypes() []flat.Type { return []flat.Type{flat.I32, flat.I32} }

// codeUnitSize reports, for a given encoding, the bytes per code unit.
func codeUnitSize(enc Encoding) uint32 {
	switch enc {
	case EncodingUTF16:
		return 2
	default:
		return 1
	}
}

func (StringType) Load(mem linear.Memory, off uint32, ctx *Context) (any, error) {
	h := mem.Readonly(off, 8)
	ptr, err := h.GetU32(0)
	if err != nil {
		return nil, err
	}
	length, err := h.GetU32(4)
	if err != nil {
		return nil, err
	}
	return decodeString(mem, ptr, length, ctx)
}

func (StringType) LiftFlat(mem linear.Memory, it *flat.Iter, ctx *Context) (any, error) {
	ptr := it.Next(flat.I32).U32()
	length := it.Next(flat.I32).U32()
	return decodeString(mem, ptr, length, ctx)
}

func decodeString(mem linear.Memory, ptr, codeUnits uint32, ctx *Context) (string, error) {
	enc := ctx.encoding()
	if enc == EncodingLatin1UTF16 {
		return "", trap(TrapUnsupported, "latin1+utf-16 string encoding is not supported by this runtime")
	}
	unit := codeUnitSize(enc)
	byteLen := codeUnits * unit
	raw, err := mem.Readonly(ptr, byteLen).Bytes(0, byteLen)
	if err != nil {
		return "", err
	}
	switch enc {
	case EncodingUTF8:
		if !utf8.Valid(raw) {
			return "", trap(TrapBadEncoding, "string bytes at %#x are not valid utf-8", ptr)
		}
		return string(raw), nil
	case EncodingUTF16:
		out, _, err := transform.Bytes(utf16LE.NewDecoder(), raw)
		if err != nil {
			return "", trap(TrapBadEncoding, "string bytes at %#x are not valid utf-16: %v", ptr, err)
		}
		return string(out), nil
	default:
		return "", trap(TrapBadEncoding, "unknown string encoding %s", enc)
	}
}

func (StringType) Store(mem linear.Memory, off uint32, v any, ctx *Context) error {
	ptr, length, err := encodeString(mem, v.(string), ctx)
	if err != nil {
		return err
	}
	h := mem.Preallocated(off, 8)
	if err := h.SetU32(0, ptr); err != nil {
		return err
	}
	return h.SetU32(4, length)
}

func (StringType) LowerFlat(out *flat.Out, mem linear.Memory, v any, ctx *Context) error {
	ptr, length, err := encodeString(mem, v.(string), ctx)
	if err != nil {
		return err
	}
	out.Push(flat.U32Value(ptr))
	out.Push(flat.U32Value(length))
	return nil
}

// encodeString allocates an out-of-line buffer in mem for s, encoded per
// ctx.Encoding, and returns (pointer, code-unit count).
func encodeString(mem linear.Memory, s string, ctx *Context) (uint32, uint32, error) {
	enc := ctx.encoding()
	switch enc {
	case EncodingUTF8:
		raw := []byte(s)
		if len(raw) == 0 {
			return 0, 0, nil
		}
		r, err := mem.Alloc(1, uint32(len(raw)))
		if err != nil {
			return 0, 0, err
		}
		if err := r.Write(0, raw); err != nil {
			return 0, 0, err
		}
		return r.Ptr, uint32(len(raw)), nil
	case EncodingUTF16:
		if len(s) == 0 {
			return 0, 0, nil
		}
		raw, _, err := transform.Bytes(utf16LE.NewEncoder(), []byte(s))
		if err != nil {
			return 0, 0, trap(TrapBadEncoding, "cannot encode string as utf-16: %v", err)
		}
		r, err := mem.Alloc(2, uint32(len(raw)))
		if err != nil {
			return 0, 0, err
		}
		if err := r.Write(0, raw); err != nil {
			return 0, 0, err
		}
		return r.Ptr, uint32(len(raw) / 2), nil
	case EncodingLatin1UTF16:
		return 0, 0, trap(TrapUnsupported, "latin1+utf-16 string encoding is not supported by this runtime")
	default:
		return 0, 0, trap(TrapBadEncoding, "unknown string encoding %s", enc)
	}
}

func (StringType) Copy(dst linear.Memory, dstOff uint32, src linear.Memory, srcOff uint32, ctx *Context) error {
	return copyViaLoadStore(StringType{}, dst, dstOff, src, srcOff, ctx)
}

func (StringType) CopyFlat(out *flat.Out, dst linear.Memory, it *flat.Iter, src linear.Memory, ctx *Context) error {
	return copyFlatViaLiftLower(StringType{}, out, dst, it, src, ctx)
}

// encoding returns the effective encoding, defaulting to utf-8 for a nil
// Context just like the other codec operations do.
func (c *Context) encoding() Encoding {
	if c == nil {
		return EncodingUTF8
	}
	return c.Encoding
}
