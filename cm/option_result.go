package cm

import (
	"github.com/componentize-go/canon/internal/flat"
	"github.com/componentize-go/canon/internal/linear"
)

// OptionType is option<T>, modelled as a two-case variant {none, some(T)}.
// When ctx.KeepOption is false, Load/LiftFlat collapse the
// wrapper to a plain Go value (nil for none, T's own value for some),
// a host-binding convenience mode; Store/
// LowerFlat accept either an Option wrapper or the same collapsed form.
type OptionType struct {
	Elem    Type
	variant VariantType
}

// NewOptionType builds an OptionType over elem.
func NewOptionType(elem Type) OptionType {
	return OptionType{
		Elem: elem,
		variant: NewVariantType(
			Case{Name: "none"},
			Case{Name: "some", Type: elem},
		),
	}
}

// Option is the non-collapsed wrapper form of an option value.
type Option struct {
	HasValue bool
	Value    any
}

func (OptionType) Kind() Kind             { return KindOption }
func (o OptionType) Size() uint32         { return o.variant.Size() }
func (o OptionType) Alignment() uint32    { return o.variant.Alignment() }
func (o OptionType) FlatTypes() []flat.Type { return o.variant.FlatTypes() }

func (o OptionType) wrap(v any) Variant {
	if opt, ok := v.(Option); ok {
		if !opt.HasValue {
			return Variant{Case: "none"}
		}
		return Variant{Case: "some", Value: opt.Value}
	}
	if v == nil {
		return Variant{Case: "none"}
	}
	return Variant{Case: "some", Value: v}
}

func (o OptionType) unwrap(vv Variant, ctx *Context) any {
	if vv.Case == "none" {
		if ctx.keepOption() {
			return Option{HasValue: false}
		}
		return nil
	}
	if ctx.keepOption() {
		return Option{HasValue: true, Value: vv.Value}
	}
	return vv.Value
}

func (c *Context) keepOption() bool { return c != nil && c.KeepOption }

func (o OptionType) Load(mem linear.Memory, off uint32, ctx *Context) (any, error) {
	v, err := o.variant.Load(mem, off, ctx)
	if err != nil {
		return nil, err
	}
	return o.unwrap(v.(Variant), ctx), nil
}

func (o OptionType) LiftFlat(mem linear.Memory, it *flat.Iter, ctx *Context) (any, error) {
	v, err := o.variant.LiftFlat(mem, it, ctx)
	if err != nil {
		return nil, err
	}
	return o.unwrap(v.(Variant), ctx), nil
}

func (o OptionType) Store(mem linear.Memory, off uint32, v any, ctx *Context) error {
	return o.variant.Store(mem, off, o.wrap(v), ctx)
}

func (o OptionType) LowerFlat(out *flat.Out, mem linear.Memory, v any, ctx *Context) error {
	return o.variant.LowerFlat(out, mem, o.wrap(v), ctx)
}

func (o OptionType) Copy(dst linear.Memory, dstOff uint32, src linear.Memory, srcOff uint32, ctx *Context) error {
	return o.variant.Copy(dst, dstOff, src, srcOff, ctx)
}

func (o OptionType) CopyFlat(out *flat.Out, dst linear.Memory, it *flat.Iter, src linear.Memory, ctx *Context) error {
	return o.variant.CopyFlat(out, dst, it, src, ctx)
}

// ResultType is result<Ok, Err>, modelled as a two-case variant
// {ok(Ok), error(Err)}. Either Ok or Err (not both) may be nil, representing
// a result<_,E> or result<T,_> payload-less arm.
type ResultType struct {
	Ok, Err Type
	variant VariantType
}

// NewResultType builds a ResultType. Either ok or errT may be nil.
func NewResultType(ok, errT Type) ResultType {
	return ResultType{
		Ok:  ok,
		Err: errT,
		variant: NewVariantType(
			Case{Name: "ok", Type: ok},
			Case{Name: "error", Type: errT},
		),
	}
}

// Result is the codec-level result value.
type Result struct {
	IsErr bool
	Value any
}

func (ResultType) Kind() Kind             { return KindResult }
func (r ResultType) Size() uint32         { return r.variant.Size() }
func (r ResultType) Alignment() uint32    { return r.variant.Alignment() }
func (r ResultType) FlatTypes() []flat.Type { return r.variant.FlatTypes() }

func (r ResultType) wrap(v any) Variant {
	res := v.(Result)
	if res.IsErr {
		return Variant{Case: "error", Value: res.Value}
	}
	return Variant{Case: "ok", Value: res.Value}
}

func (r ResultType) unwrap(vv Variant) Result {
	return Result{IsErr: vv.Case == "error", Value: vv.Value}
}

func (r ResultType) Load(mem linear.Memory, off uint32, ctx *Context) (any, error) {
	v, err := r.variant.Load(mem, off, ctx)
	if err != nil {
		return nil, err
	}
	return r.unwrap(v.(Variant)), nil
}

func (r ResultType) LiftFlat(mem linear.Memory, it *flat.Iter, ctx *Context) (any, error) {
	v, err := r.variant.LiftFlat(mem, it, ctx)
	if err != nil {
		return nil, err
	}
	return r.unwrap(v.(Variant)), nil
}

func (r ResultType) Store(mem linear.Memory, off uint32, v any, ctx *Context) error {
	return r.variant.Store(mem, off, r.wrap(v), ctx)
}

func (r ResultType) LowerFlat(out *flat.Out, mem linear.Memory, v any, ctx *Context) error {
	return r.variant.LowerFlat(out, mem, r.wrap(v), ctx)
}

func (r ResultType) Copy(dst linear.Memory, dstOff uint32, src linear.Memory, srcOff uint32, ctx *Context) error {
	return r.variant.Copy(dst, dstOff, src, srcOff, ctx)
}

func (r ResultType) CopyFlat(out *flat.Out, dst linear.Memory, it *flat.Iter, src linear.Memory, ctx *Context) error {
	return r.variant.CopyFlat(out, dst, it, src, ctx)
}
