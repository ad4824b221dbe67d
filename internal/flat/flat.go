// Package flat implements the flat calling-convention kernel shared by every
// Component Model codec: the four flat value types, the reinterpret casts
// between them, and the coercion iterator used when a variant's cases don't
// all agree on their flat representation.
package flat

import (
	"fmt"
	"math"
)

// Type is one of the four values a Component Model value can take on the
// WebAssembly value stack.
type Type byte

const (
	I32 Type = iota
	I64
	F32
	F64
)

// String implements fmt.Stringer.
func (t Type) String() string {
	switch t {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return fmt.Sprintf("flat.Type(%d)", byte(t))
	}
}

// Value is a single flat value, tagged with its Type. The bit pattern is
// always held in Bits, reinterpreted according to Type: this avoids a
// sum-type allocation per value on what is the hottest path in the codec.
type Value struct {
	Type Type
	Bits uint64
}

func I32Value(v int32) Value  { return Value{Type: I32, Bits: uint64(uint32(v))} }
func U32Value(v uint32) Value { return Value{Type: I32, Bits: uint64(v)} }
func I64Value(v int64) Value  { return Value{Type: I64, Bits: uint64(v)} }
func U64Value(v uint64) Value { return Value{Type: I64, Bits: v} }
func F32Value(v float32) Value {
	return Value{Type: F32, Bits: uint64(math.Float32bits(v))}
}
func F64Value(v float64) Value { return Value{Type: F64, Bits: math.Float64bits(v)} }

func (v Value) U32() uint32   { return uint32(v.Bits) }
func (v Value) I32() int32    { return int32(uint32(v.Bits)) }
func (v Value) U64() uint64   { return v.Bits }
func (v Value) I64() int64    { return int64(v.Bits) }
func (v Value) F32() float32  { return math.Float32frombits(uint32(v.Bits)) }
func (v Value) F64() float64  { return math.Float64frombits(v.Bits) }

// Join implements the pairwise join rule used to compute the flat_types of a
// variant across its cases: equal types join to themselves, {i32,f32} joins
// to i32, and every other combination joins to i64.
func Join(a, b Type) Type {
	if a == b {
		return a
	}
	if (a == I32 && b == F32) || (a == F32 && b == I32) {
		return I32
	}
	return I64
}

// Coerce reinterprets v's bits as want, following the closed set of casts the
// Canonical ABI allows: i32<->f32, i64<->f64, i32->i64 (zero-extend), and
// i64->i32 (only when the value fits in a u32; otherwise this traps, since a
// wider join silently truncating a result would forge a value the guest
// never produced).
func Coerce(v Value, want Type) Value {
	if v.Type == want {
		return v
	}
	switch {
	case v.Type == I32 && want == F32:
		return Value{Type: F32, Bits: v.Bits}
	case v.Type == F32 && want == I32:
		return Value{Type: I32, Bits: v.Bits}
	case v.Type == I64 && want == F64:
		return Value{Type: F64, Bits: v.Bits}
	case v.Type == F64 && want == I64:
		return Value{Type: I64, Bits: v.Bits}
	case v.Type == I32 && want == I64:
		return Value{Type: I64, Bits: uint64(uint32(v.Bits))}
	case v.Type == I64 && want == I32:
		if v.Bits > math.MaxUint32 {
			panic(fmt.Sprintf("flat: i64 value %#x does not fit in i32 coercion target", v.Bits))
		}
		return Value{Type: I32, Bits: v.Bits}
	case v.Type == F32 && want == I64:
		// i64 -> f32 is defined via i64 -> i32 -> f32; the inverse direction
		// composes the same way.
		return Coerce(Coerce(v, I32), I64)
	case v.Type == F64 && want == I32:
		return Coerce(Coerce(v, I64), I32)
	case v.Type == I32 && want == F64:
		return Coerce(Coerce(v, I64), F64)
	case v.Type == I64 && want == F32:
		return Coerce(Coerce(v, I32), F32)
	default:
		panic(fmt.Sprintf("flat: unreachable coercion %s -> %s", v.Type, want))
	}
}

// CanonicalizeF32 and CanonicalizeF64 substitute the canonical NaN bit
// pattern for any NaN value, as required on both lift and lower of f32/f64.
func CanonicalizeF32(v float32) float32 {
	if v != v { // NaN check without importing math twice
		return math.Float32frombits(0x7fc00000)
	}
	return v
}

func CanonicalizeF64(v float64) float64 {
	if v != v {
		return math.Float64frombits(0x7ff8000000000000)
	}
	return v
}

// Iter is a coercion iterator: it walks an underlying slice of flat Values,
// yielding each one coerced to a caller-supplied "want" type. It is used by
// lift_flat to read exactly the number of flat values a type declares,
// leaving the cursor positioned for the next sibling (e.g. the remaining
// arms of a variant's joined flat_types).
type Iter struct {
	have []Value
	pos  int
}

// NewIter wraps have for reading.
func NewIter(have []Value) *Iter { return &Iter{have: have} }

// Remaining reports how many flat values are left unread.
func (it *Iter) Remaining() int { return len(it.have) - it.pos }

// Next consumes and coerces the next flat value to want. It panics if the
// iterator is exhausted: callers must size their reads against flat_types
// lengths before calling Next, per the Canonical ABI's "never over-read"
// invariant.
func (it *Iter) Next(want Type) Value {
	if it.pos >= len(it.have) {
		panic("flat: coercion iterator over-read past the end of the flat value stream")
	}
	v := Coerce(it.have[it.pos], want)
	it.pos++
	return v
}

// Skip discards n flat values without coercing them, used to drain unread
// variant-case padding back into lock-step with the stream.
func (it *Iter) Skip(n int) {
	it.pos += n
	if it.pos > len(it.have) {
		panic("flat: coercion iterator skipped past the end of the flat value stream")
	}
}

// Out is an append-only sink for lower_flat, mirroring Iter on the write
// side.
type Out struct {
	Values []Value
}

func (o *Out) Push(v Value) { o.Values = append(o.Values, v) }

// PadTo appends zero-valued entries of type t until Values has exactly n
// elements more than base. Every padding entry has the single type t.
func (o *Out) PadTo(base int, n int, t Type) {
	for len(o.Values)-base < n {
		o.Push(Value{Type: t, Bits: 0})
	}
}
