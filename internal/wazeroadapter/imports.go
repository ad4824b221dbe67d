package wazeroadapter

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/componentize-go/canon/cm"
	"github.com/componentize-go/canon/internal/call"
	"github.com/componentize-go/canon/internal/flat"
	"github.com/componentize-go/canon/internal/linear"
	"github.com/componentize-go/canon/internal/witmeta"
)

func valueType(t flat.Type) api.ValueType {
	switch t {
	case flat.I32:
		return api.ValueTypeI32
	case flat.I64:
		return api.ValueTypeI64
	case flat.F32:
		return api.ValueTypeF32
	case flat.F64:
		return api.ValueTypeF64
	default:
		panic(fmt.Sprintf("wazeroadapter: unknown flat type %v", t))
	}
}

func valueTypes(ts []flat.Type) []api.ValueType {
	out := make([]api.ValueType, len(ts))
	for i, t := range ts {
		out[i] = valueType(t)
	}
	return out
}

func callables(world *witmeta.World) map[string]*call.Callable {
	m := map[string]*call.Callable{}
	for name, f := range world.Imports.Functions {
		m[name] = f.Callable
	}
	for _, iface := range world.Imports.Interfaces {
		for name, f := range iface.Functions {
			m[name] = f.Callable
		}
	}
	return m
}

// RegisterImports builds a wazero host module named moduleName exposing
// every binding in it as a guest-importable function. Free functions and
// interface functions are marshalled through their resolved Callable
// (world supplies the signatures); resource shims are registered as bare
// u32-handle functions under the "[resource-new]"/"[resource-rep]"/
// "[resource-drop]" naming convention.
func RegisterImports(rt wazero.Runtime, moduleName string, world *witmeta.World, it *witmeta.ImportTable, mem *linear.ExternalMemory, cctx *cm.Context) wazero.HostModuleBuilder {
	builder := rt.NewHostModuleBuilder(moduleName)
	cs := callables(world)

	for _, b := range it.Bindings {
		b := b
		c, ok := cs[b.WitName]
		if !ok {
			continue // metadata gap; nothing this adapter can marshal without a Callable
		}
		params, results := c.WasmSignature()
		fn := func(ctx context.Context, mod api.Module, stack []uint64) {
			callImport(ctx, c, b, mem, cctx, stack)
		}
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(fn), valueTypes(params), valueTypes(results)).
			Export(b.WitName)
	}

	for _, shim := range it.Shims {
		shim := shim
		newFn := func(ctx context.Context, rep uint32) uint32 {
			h, err := shim.New(rep)
			if err != nil {
				panic(err)
			}
			return h
		}
		repFn := func(ctx context.Context, handle uint32) uint32 {
			rep, err := shim.Rep(handle)
			if err != nil {
				panic(err)
			}
			return rep
		}
		dropFn := func(ctx context.Context, handle uint32) {
			if err := shim.Drop(handle); err != nil {
				panic(err)
			}
		}
		builder = builder.NewFunctionBuilder().WithFunc(newFn).
			Export(fmt.Sprintf("[resource-new]%s", shim.ResourceName))
		builder = builder.NewFunctionBuilder().WithFunc(repFn).
			Export(fmt.Sprintf("[resource-rep]%s", shim.ResourceName))
		builder = builder.NewFunctionBuilder().WithFunc(dropFn).
			Export(fmt.Sprintf("[resource-drop]%s", shim.ResourceName))
	}

	return builder
}

func callImport(ctx context.Context, c *call.Callable, b witmeta.ImportBinding, mem *linear.ExternalMemory, cctx *cm.Context, stack []uint64) {
	paramFlat, _ := c.WasmSignature()
	flatArgs := make([]flat.Value, len(paramFlat))
	for i, t := range paramFlat {
		flatArgs[i] = flat.Value{Type: t, Bits: stack[i]}
	}

	var resultPtr uint32
	if c.ResultSpills() {
		resultPtr = uint32(stack[len(stack)-1])
		flatArgs = flatArgs[:len(flatArgs)-1]
	}

	args, err := c.LiftParams(mem, flatArgs, cctx)
	if err != nil {
		panic(err)
	}

	result, callErr := b.Invoke(args)
	if handled, v := call.LowerResultError(c.Return, callErr); handled {
		result, callErr = v, nil
	}
	if callErr != nil {
		panic(callErr)
	}

	out, err := c.LowerResult(mem, result, resultPtr, cctx)
	if err != nil {
		panic(err)
	}
	for i, v := range out {
		stack[i] = v.Bits
	}
}
