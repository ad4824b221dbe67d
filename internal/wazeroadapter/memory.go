// Package wazeroadapter bridges the Canonical ABI codec to a real
// instantiated wazero module: it implements linear.Memory over wazero's
// api.Memory, and witmeta.GuestExports/HostService plumbing over
// api.Module, so the rest of this repository never imports wazero's api
// package directly.
package wazeroadapter

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/componentize-go/canon/internal/linear"
)

// memoryAdapter holds the wazero handles an ExternalMemory's closures need.
// wazero's accessors take a context.Context and report out-of-range access
// by returning false rather than an error; memoryAdapter translates that
// into a linear.Trap so callers only ever see one error convention.
type memoryAdapter struct {
	ctx     context.Context
	mem     api.Memory
	realloc api.Function // guest-exported cabi_realloc, or nil
	self    *linear.ExternalMemory
}

// New wraps mem into a linear.Memory. realloc, if
// non-nil, is the guest's cabi_realloc export used to service
// Alloc/Realloc/Free.
func New(ctx context.Context, mem api.Memory, realloc api.Function) *linear.ExternalMemory {
	if ctx == nil {
		ctx = context.Background()
	}
	a := &memoryAdapter{ctx: ctx, mem: mem, realloc: realloc}
	em := &linear.ExternalMemory{
		RawFunc:          a.raw,
		SizeFunc:         a.size,
		AllocFunc:        a.alloc,
		ReallocFunc:      a.doRealloc,
		PreallocatedFunc: a.preallocated,
		ReadonlyFunc:     a.readonly,
		FreeFunc:         a.free,
	}
	a.self = em
	return em
}

// GuestMemory resolves mod's exported memory and cabi_realloc function in
// one step, the shape every guest call entry point needs.
func GuestMemory(ctx context.Context, mod api.Module) (*linear.ExternalMemory, error) {
	mem := mod.Memory()
	if mem == nil {
		return nil, fmt.Errorf("wazeroadapter: module %q exports no memory", mod.Name())
	}
	realloc := mod.ExportedFunction("cabi_realloc")
	return New(ctx, mem, realloc), nil
}

func (a *memoryAdapter) raw() []byte {
	buf, ok := a.mem.Read(a.ctx, 0, a.mem.Size(a.ctx))
	if !ok {
		return nil
	}
	return buf
}

func (a *memoryAdapter) size() uint32 { return a.mem.Size(a.ctx) }

func (a *memoryAdapter) callRealloc(oldPtr, oldSize, align, newSize uint32) (uint32, error) {
	if a.realloc == nil {
		return 0, &linear.Trap{Op: "Alloc", Msg: "module exports no cabi_realloc"}
	}
	results, err := a.realloc.Call(a.ctx, uint64(oldPtr), uint64(oldSize), uint64(align), uint64(newSize))
	if err != nil {
		return 0, fmt.Errorf("wazeroadapter: cabi_realloc: %w", err)
	}
	return uint32(results[0]), nil
}

func (a *memoryAdapter) alloc(align, size uint32) (linear.Range, error) {
	ptr, err := a.callRealloc(0, 0, align, size)
	if err != nil {
		return linear.Range{}, err
	}
	return linear.Range{Mem: a.self, Ptr: ptr, Size: size, Align: align}, nil
}

func (a *memoryAdapter) doRealloc(r linear.Range, newSize uint32) (linear.Range, error) {
	ptr, err := a.callRealloc(r.Ptr, r.Size, r.Align, newSize)
	if err != nil {
		return linear.Range{}, err
	}
	return linear.Range{Mem: a.self, Ptr: ptr, Size: newSize, Align: r.Align}, nil
}

func (a *memoryAdapter) preallocated(ptr, size uint32) linear.Range {
	return linear.Range{Mem: a.self, Ptr: ptr, Size: size, Align: 1}
}

func (a *memoryAdapter) readonly(ptr, size uint32) linear.ReadonlyRange {
	return linear.ReadonlyRange{Mem: a.self, Ptr: ptr, Size: size}
}

// free reallocates the range down to zero bytes, cabi_realloc's
// deallocation convention (there is no separate guest export for it).
func (a *memoryAdapter) free(r linear.Range) error {
	_, err := a.callRealloc(r.Ptr, r.Size, r.Align, 0)
	return err
}
