package wazeroadapter_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental/wazerotest"

	"github.com/componentize-go/canon/internal/wazeroadapter"
	"github.com/componentize-go/canon/internal/witmeta"
)

const exportsWorldYAML = `
id: adapter-exports
wit-name: test:exports
exports:
  functions:
    - name: add
      params:
        - {name: a, type: u32}
        - {name: b, type: u32}
      return: u32
`

func TestCallExportedDispatchesThroughCallable(t *testing.T) {
	ctx := context.Background()
	meta, err := witmeta.LoadWorldMeta(strings.NewReader(exportsWorldYAML))
	require.NoError(t, err)
	world, err := witmeta.Resolve(meta, resolveAdapterType)
	require.NoError(t, err)

	addFn := wazerotest.NewFunction(func(ctx context.Context, mod api.Module, a, b uint32) uint32 { return a + b })
	addFn.ExportNames = []string{"add"}

	mem := wazerotest.NewMemory(65536)
	mod := wazerotest.NewModule(mem, newBumpRealloc(), addFn)

	ex, err := wazeroadapter.NewExports(ctx, mod, world, nil)
	require.NoError(t, err)

	v, err := ex.CallExported("add", []any{uint32(2), uint32(3)})
	require.NoError(t, err)
	assert.Equal(t, uint32(5), v)
}

func TestCallExportedFallsBackToRawHandlesForResourceConventions(t *testing.T) {
	ctx := context.Background()
	meta, err := witmeta.LoadWorldMeta(strings.NewReader(exportsWorldYAML))
	require.NoError(t, err)
	world, err := witmeta.Resolve(meta, resolveAdapterType)
	require.NoError(t, err)

	ctorFn := wazerotest.NewFunction(func(ctx context.Context, mod api.Module, rep uint32) uint32 { return rep + 1 })
	ctorFn.ExportNames = []string{"[constructor]counter"}

	mem := wazerotest.NewMemory(65536)
	mod := wazerotest.NewModule(mem, newBumpRealloc(), ctorFn)

	ex, err := wazeroadapter.NewExports(ctx, mod, world, nil)
	require.NoError(t, err)

	v, err := ex.CallExported("[constructor]counter", []any{uint32(41)})
	require.NoError(t, err)
	assert.Equal(t, uint32(42), v)
}

func TestCallExportedUnknownNameErrors(t *testing.T) {
	ctx := context.Background()
	meta, err := witmeta.LoadWorldMeta(strings.NewReader(exportsWorldYAML))
	require.NoError(t, err)
	world, err := witmeta.Resolve(meta, resolveAdapterType)
	require.NoError(t, err)

	mem := wazerotest.NewMemory(65536)
	mod := wazerotest.NewModule(mem, newBumpRealloc())

	ex, err := wazeroadapter.NewExports(ctx, mod, world, nil)
	require.NoError(t, err)

	_, err = ex.CallExported("missing", nil)
	assert.Error(t, err)
}
