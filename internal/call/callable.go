// Package call implements callable dispatch: building the synthetic
// parameter/result types a function signature reduces to, spilling
// over-large flat signatures into memory, and the direction-specific entry
// points that drive a call across the host/guest boundary.
package call

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/componentize-go/canon/cm"
	"github.com/componentize-go/canon/internal/flat"
	"github.com/componentize-go/canon/internal/linear"
)

// MaxFlatParams and MaxFlatResults bound how many flat values may cross the
// calling surface directly; beyond these, the Canonical ABI spills into a
// caller-allocated memory region and passes a single pointer instead.
const (
	MaxFlatParams  = 16
	MaxFlatResults = 1
)

// Param is one named, typed parameter of a Callable, in declaration order.
type Param struct {
	Name string
	Type cm.Type
}

// Callable is a function signature reduced to the synthetic param/result
// types the Canonical ABI actually marshals.
type Callable struct {
	Name    string
	Params  []Param
	Return  cm.Type // nil for a function with no return value

	paramType cm.Type // nil (0 args), Params[0].Type (1 arg), or a Tuple
}

// New builds a Callable and its synthetic parameter type.
func New(name string, params []Param, ret cm.Type) *Callable {
	c := &Callable{Name: name, Params: params, Return: ret}
	switch len(params) {
	case 0:
		c.paramType = nil
	case 1:
		c.paramType = params[0].Type
	default:
		types := make([]cm.Type, len(params))
		for i, p := range params {
			types[i] = p.Type
		}
		c.paramType = cm.NewTupleType(types...)
	}
	return c
}

func (c *Callable) paramFlatTypes() []flat.Type {
	if c.paramType == nil {
		return nil
	}
	return c.paramType.FlatTypes()
}

func (c *Callable) returnFlatTypes() []flat.Type {
	if c.Return == nil {
		return nil
	}
	return c.Return.FlatTypes()
}

// ParamsSpill reports whether the parameter surface exceeds MaxFlatParams
// and must be passed as a single pointer into a pre-allocated struct-layout
// region instead.
func (c *Callable) ParamsSpill() bool { return len(c.paramFlatTypes()) > MaxFlatParams }

// ResultSpills reports whether the return value exceeds MaxFlatResults and
// must be written through a trailing out-pointer instead of returned
// directly.
func (c *Callable) ResultSpills() bool { return len(c.returnFlatTypes()) > MaxFlatResults }

// WasmSignature returns the flat.Type sequence a host adapter (e.g.
// internal/wazeroadapter) must register this Callable's underlying wasm
// function under: the parameter surface collapsed to a single pointer when
// ParamsSpill, with a trailing i32 out-pointer appended when ResultSpills,
// and the result surface collapsed to nothing when ResultSpills (the value
// is written through that out-pointer instead).
func (c *Callable) WasmSignature() (params, results []flat.Type) {
	if c.ParamsSpill() {
		params = []flat.Type{flat.I32}
	} else {
		params = append([]flat.Type(nil), c.paramFlatTypes()...)
	}
	if c.ResultSpills() {
		params = append(params, flat.I32)
		return params, nil
	}
	return params, append([]flat.Type(nil), c.returnFlatTypes()...)
}

// argsToParamValue packs positional argument values into the value shape
// c.paramType expects (nil, the bare value, or a cm.Tuple).
func (c *Callable) argsToParamValue(args []any) any {
	switch len(c.Params) {
	case 0:
		return nil
	case 1:
		return args[0]
	default:
		return cm.Tuple(args)
	}
}

// paramValueToArgs is argsToParamValue's inverse.
func (c *Callable) paramValueToArgs(v any) []any {
	switch len(c.Params) {
	case 0:
		return nil
	case 1:
		return []any{v}
	default:
		return []any(v.(cm.Tuple))
	}
}

// LowerParams lowers args (one per c.Params, in order) onto the flat calling
// surface, spilling into mem when the signature is too wide to pass
// directly. It returns the flat values to place on the actual call (which,
// in the spill case, is the single pointer to the spilled region).
func (c *Callable) LowerParams(mem linear.Memory, args []any, ctx *cm.Context) ([]flat.Value, error) {
	if c.paramType == nil {
		return nil, nil
	}
	v := c.argsToParamValue(args)
	if !c.ParamsSpill() {
		out := &flat.Out{}
		if err := c.paramType.LowerFlat(out, mem, v, ctx); err != nil {
			return nil, err
		}
		return out.Values, nil
	}
	r, err := mem.Alloc(c.paramType.Alignment(), c.paramType.Size())
	if err != nil {
		return nil, err
	}
	if err := c.paramType.Store(mem, r.Ptr, v, ctx); err != nil {
		return nil, err
	}
	return []flat.Value{flat.U32Value(r.Ptr)}, nil
}

// LiftParams is LowerParams's inverse, used on the receiving side of a call.
func (c *Callable) LiftParams(mem linear.Memory, values []flat.Value, ctx *cm.Context) ([]any, error) {
	if c.paramType == nil {
		return nil, nil
	}
	if !c.ParamsSpill() {
		it := flat.NewIter(values)
		v, err := c.paramType.LiftFlat(mem, it, ctx)
		if err != nil {
			return nil, err
		}
		return c.paramValueToArgs(v), nil
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("call: spilled parameter surface expects exactly one pointer, got %d flat values", len(values))
	}
	ptr := values[0].U32()
	v, err := c.paramType.Load(mem, ptr, ctx)
	if err != nil {
		return nil, err
	}
	return c.paramValueToArgs(v), nil
}

// LowerResult lowers a return value onto the flat surface, spilling into a
// caller-provided out-pointer (resultPtr) when the signature requires it.
func (c *Callable) LowerResult(mem linear.Memory, v any, resultPtr uint32, ctx *cm.Context) ([]flat.Value, error) {
	if c.Return == nil {
		return nil, nil
	}
	if !c.ResultSpills() {
		out := &flat.Out{}
		if err := c.Return.LowerFlat(out, mem, v, ctx); err != nil {
			return nil, err
		}
		return out.Values, nil
	}
	if err := c.Return.Store(mem, resultPtr, v, ctx); err != nil {
		return nil, err
	}
	return nil, nil
}

// LiftResult is LowerResult's inverse.
func (c *Callable) LiftResult(mem linear.Memory, values []flat.Value, resultPtr uint32, ctx *cm.Context) (any, error) {
	if c.Return == nil {
		return nil, nil
	}
	if !c.ResultSpills() {
		it := flat.NewIter(values)
		return c.Return.LiftFlat(mem, it, ctx)
	}
	return c.Return.Load(mem, resultPtr, ctx)
}

// LowerResultError implements result<_,E> error routing: when
// Return is a cm.ResultType and err is non-nil, it reports handled=true and
// a Result{IsErr:true} value instead of letting the error propagate as a
// trap. Any other Return/err combination is left for the caller to handle
// (handled=false).
func LowerResultError(ret cm.Type, err error) (handled bool, value any) {
	if err == nil {
		return false, nil
	}
	if _, ok := ret.(cm.ResultType); !ok {
		return false, nil
	}
	return true, cm.Result{IsErr: true, Value: err.Error()}
}

// Logger returns a component-scoped logger for the call package's own
// diagnostics (dispatch failures, destructor errors surfaced through a
// result<_,E> instead of a trap).
func Logger(base *zap.Logger) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return base.Named("call")
}
