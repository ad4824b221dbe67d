// Package cm implements the Component Model's typed codec: one
// ComponentModelType-shaped Go type per Canonical ABI type, each exposing
// size, alignment, flat representation, and the six load/lift_flat/
// store/lower_flat/copy/copy_flat operations.
//
// The package name mirrors the "cm" helper package bytecodealliance's own Go
// component tooling exports for the same concept, since this is the
// idiomatic name for this concern in the Go WebAssembly Component Model
// ecosystem.
package cm

import (
	"fmt"

	"github.com/componentize-go/canon/internal/flat"
	"github.com/componentize-go/canon/internal/linear"
	"go.uber.org/zap"
)

// Kind is the closed set of Component Model type tags.
type Kind byte

const (
	KindBool Kind = iota
	KindU8
	KindU16
	KindU32
	KindU64
	KindS8
	KindS16
	KindS32
	KindS64
	KindF32
	KindF64
	KindChar
	KindString
	KindList
	KindRecord
	KindTuple
	KindVariant
	KindEnum
	KindFlags
	KindOption
	KindResult
	KindResource
	KindResourceHandle
	KindBorrow
	KindOwn
)

func (k Kind) String() string {
	names := [...]string{
		"bool", "u8", "u16", "u32", "u64", "s8", "s16", "s32", "s64",
		"f32", "f64", "char", "string", "list", "record", "tuple",
		"variant", "enum", "flags", "option", "result", "resource",
		"resource-handle", "borrow", "own",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return fmt.Sprintf("cm.Kind(%d)", byte(k))
}

// Encoding selects the string encoding used by StringType.
type Encoding byte

const (
	EncodingUTF8 Encoding = iota
	EncodingUTF16
	EncodingLatin1UTF16
)

func (e Encoding) String() string {
	switch e {
	case EncodingUTF8:
		return "utf-8"
	case EncodingUTF16:
		return "utf-16"
	case EncodingLatin1UTF16:
		return "latin1+utf-16"
	default:
		return "unknown"
	}
}

// Context carries the ambient configuration every codec operation needs:
// the string encoding, whether options stay wrapped, and a logger for
// diagnostics. It is the "ctx" parameter threaded through every codec method.
type Context struct {
	Encoding   Encoding
	KeepOption bool
	Logger     *zap.Logger
}

// logger returns a non-nil logger, falling back to a no-op one so codec code
// never has to nil-check.
func (c *Context) logger() *zap.Logger {
	if c == nil || c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Trap is the codec-level error type: a malformed flat value, an
// out-of-range enum, a variant tag mismatch, a payload/flat-type count
// mismatch, or a string length/encoding violation. Every Trap is fatal to
// the containing call.
type Trap struct {
	Kind TrapKind
	Msg  string
}

// TrapKind classifies a Trap for callers that want to branch on it (e.g. the
// bridge, which reports a distinct error-code for a rejection vs. a trap).
type TrapKind byte

const (
	TrapAlignment TrapKind = iota
	TrapOutOfBounds
	TrapBadDiscriminant
	TrapBadEncoding
	TrapFlatCountMismatch
	TrapBadChar
	TrapUnsupported
)

func (t *Trap) Error() string { return fmt.Sprintf("cm: %s: %s", t.Kind, t.Msg) }

func (k TrapKind) String() string {
	switch k {
	case TrapAlignment:
		return "alignment"
	case TrapOutOfBounds:
		return "out-of-bounds"
	case TrapBadDiscriminant:
		return "bad-discriminant"
	case TrapBadEncoding:
		return "bad-encoding"
	case TrapFlatCountMismatch:
		return "flat-count-mismatch"
	case TrapBadChar:
		return "bad-char"
	case TrapUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

func trap(kind TrapKind, format string, args ...any) error {
	return &Trap{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Type is the interface every Component Model type codec implements.
type Type interface {
	// Kind identifies which case of the closed type family this is.
	Kind() Kind

	// Size is this type's linear-memory footprint, in bytes.
	Size() uint32

	// Alignment is this type's required linear-memory alignment.
	Alignment() uint32

	// FlatTypes is the ordered sequence of flat.Type values used when this
	// type crosses the flat calling surface.
	FlatTypes() []flat.Type

	// Load reads a value out of linear memory at off, which must satisfy
	// Alignment().
	Load(mem linear.Memory, off uint32, ctx *Context) (any, error)

	// LiftFlat reads a value from the flat calling convention, consuming
	// exactly len(FlatTypes()) values from it.
	LiftFlat(mem linear.Memory, it *flat.Iter, ctx *Context) (any, error)

	// Store writes v into linear memory at off, which must satisfy
	// Alignment().
	Store(mem linear.Memory, off uint32, v any, ctx *Context) error

	// LowerFlat appends exactly len(FlatTypes()) values representing v to
	// out.
	LowerFlat(out *flat.Out, mem linear.Memory, v any, ctx *Context) error

	// Copy deep-copies the linear-memory representation of a value from
	// (src, srcOff) to (dst, dstOff), re-allocating any out-of-line buffers
	// (strings, lists) in dst.
	Copy(dst linear.Memory, dstOff uint32, src linear.Memory, srcOff uint32, ctx *Context) error

	// CopyFlat is Copy's flat-surface counterpart, used by the shared-memory
	// bridge to ferry parameters between two memories without an
	// intermediate linear-memory round trip.
	CopyFlat(out *flat.Out, dst linear.Memory, it *flat.Iter, src linear.Memory, ctx *Context) error
}

// alignUp rounds offset up to a multiple of align.
func alignUp(offset, align uint32) uint32 { return linear.Align(offset, align) }

// sizeRoundedTo rounds size up to a multiple of align, satisfying the
// "size % alignment == 0" invariant for primitive, record, tuple, and
// container types.
func sizeRoundedTo(size, align uint32) uint32 { return linear.Align(size, align) }
