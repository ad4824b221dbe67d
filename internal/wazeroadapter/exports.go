package wazeroadapter

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/componentize-go/canon/cm"
	"github.com/componentize-go/canon/internal/call"
	"github.com/componentize-go/canon/internal/flat"
	"github.com/componentize-go/canon/internal/linear"
	"github.com/componentize-go/canon/internal/witmeta"
)

// Exports implements witmeta.GuestExports over a real, instantiated wazero
// module: CallExported lowers Go arguments onto the flat calling
// convention, invokes the module's export, and lifts the result back.
//
// Functions named in world.Exports (free or interface-grouped) dispatch
// through their resolved Callable, so records/variants/strings/etc. marshal
// correctly. Names outside that set (the "[constructor]"/"[method]"
// conventions bind_exports generates for exported resources) have no
// Callable metadata in this world's schema; those dispatch as a bare
// pass-through of i32 handles, matching the resource table's own
// handle-only surface.
type Exports struct {
	ctx       context.Context
	mod       api.Module
	mem       *linear.ExternalMemory
	callables map[string]*call.Callable
	cctx      *cm.Context
}

// NewExports builds an Exports bound to mod, resolving every function
// Callable named in world.Exports.
func NewExports(ctx context.Context, mod api.Module, world *witmeta.World, cctx *cm.Context) (*Exports, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	mem, err := GuestMemory(ctx, mod)
	if err != nil {
		return nil, err
	}
	e := &Exports{ctx: ctx, mod: mod, mem: mem, callables: map[string]*call.Callable{}, cctx: cctx}
	for name, f := range world.Exports.Functions {
		e.callables[name] = f.Callable
	}
	for _, iface := range world.Exports.Interfaces {
		for name, f := range iface.Functions {
			e.callables[name] = f.Callable
		}
	}
	return e, nil
}

// CallExported implements witmeta.GuestExports.
func (e *Exports) CallExported(name string, args []any) (any, error) {
	fn := e.mod.ExportedFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("wazeroadapter: module %q has no exported function %q", e.mod.Name(), name)
	}
	c, ok := e.callables[name]
	if !ok {
		return e.callRawHandles(fn, args)
	}

	params, results := c.WasmSignature()
	flatArgs, err := c.LowerParams(e.mem, args, e.cctx)
	if err != nil {
		return nil, err
	}

	var resultPtr uint32
	if c.ResultSpills() {
		r, err := e.mem.Alloc(c.Return.Alignment(), c.Return.Size())
		if err != nil {
			return nil, err
		}
		resultPtr = r.Ptr
		flatArgs = append(flatArgs, flat.U32Value(resultPtr))
	}

	stack := make([]uint64, len(flatArgs))
	for i, v := range flatArgs {
		stack[i] = v.Bits
	}
	if len(stack) != len(params) {
		return nil, fmt.Errorf("wazeroadapter: %q expects %d flat params, got %d", name, len(params), len(stack))
	}

	rawResults, err := fn.Call(e.ctx, stack...)
	if err != nil {
		return nil, fmt.Errorf("wazeroadapter: calling %q: %w", name, err)
	}
	if len(rawResults) != len(results) {
		return nil, fmt.Errorf("wazeroadapter: %q returned %d values, expected %d", name, len(rawResults), len(results))
	}

	resultValues := make([]flat.Value, len(results))
	for i, t := range results {
		resultValues[i] = flat.Value{Type: t, Bits: rawResults[i]}
	}
	return c.LiftResult(e.mem, resultValues, resultPtr, e.cctx)
}

// callRawHandles serves resource constructor/method/destructor exports,
// whose args and return are always bare u32 handles/representations.
func (e *Exports) callRawHandles(fn api.Function, args []any) (any, error) {
	stack := make([]uint64, len(args))
	for i, a := range args {
		h, ok := a.(uint32)
		if !ok {
			return nil, fmt.Errorf("wazeroadapter: resource call argument %d is %T, want uint32", i, a)
		}
		stack[i] = uint64(h)
	}
	results, err := fn.Call(e.ctx, stack...)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return uint32(results[0]), nil
}
