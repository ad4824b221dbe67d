package wazeroadapter_test

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental/wazerotest"

	"github.com/componentize-go/canon/cm"
)

// newBumpRealloc builds a fake cabi_realloc export backed by a simple bump
// allocator over the calling module's own memory, copying old contents to
// the new location the way a guest's real allocator would.
func newBumpRealloc() *wazerotest.Function {
	var next uint32 = 16
	fn := func(ctx context.Context, mod api.Module, oldPtr, oldSize, align, newSize uint32) uint32 {
		if newSize == 0 {
			return 0
		}
		if align == 0 {
			align = 1
		}
		start := (next + align - 1) &^ (align - 1)
		next = start + newSize
		if oldSize > 0 {
			if buf, ok := mod.Memory().Read(ctx, oldPtr, oldSize); ok {
				mod.Memory().Write(ctx, start, buf)
			}
		}
		return start
	}
	f := wazerotest.NewFunction(fn)
	f.FunctionName = "cabi_realloc"
	f.ExportNames = []string{"cabi_realloc"}
	return f
}

// resolveAdapterType is the TypeResolver the adapter tests' world YAML
// fixtures are resolved against.
func resolveAdapterType(name string) (cm.Type, error) {
	switch name {
	case "string":
		return cm.StringType{}, nil
	case "u32":
		return cm.U32Type{}, nil
	}
	return nil, fmt.Errorf("unknown type: %s", name)
}
