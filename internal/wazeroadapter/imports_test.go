package wazeroadapter_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/experimental/wazerotest"

	"github.com/componentize-go/canon/cm"
	"github.com/componentize-go/canon/internal/call"
	"github.com/componentize-go/canon/internal/wazeroadapter"
	"github.com/componentize-go/canon/internal/witmeta"
)

const importsWorldYAML = `
id: adapter-imports
wit-name: test:imports
imports:
  functions:
    - name: log
      params:
        - {name: msg, type: string}
`

type capturingService struct {
	calls []string
	args  [][]any
}

func (s *capturingService) Invoke(iface, name string, args []any) (any, error) {
	s.calls = append(s.calls, iface+"/"+name)
	s.args = append(s.args, args)
	return nil, nil
}

func TestRegisterImportsDispatchesFreeFunction(t *testing.T) {
	ctx := context.Background()
	meta, err := witmeta.LoadWorldMeta(strings.NewReader(importsWorldYAML))
	require.NoError(t, err)
	world, err := witmeta.Resolve(meta, resolveAdapterType)
	require.NoError(t, err)

	svc := &capturingService{}
	it, err := witmeta.CreateImports(world, svc, nil)
	require.NoError(t, err)

	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	mem := wazerotest.NewMemory(65536)
	hostMod := wazerotest.NewModule(mem, newBumpRealloc())
	lm, err := wazeroadapter.GuestMemory(ctx, hostMod)
	require.NoError(t, err)

	builder := wazeroadapter.RegisterImports(rt, "host", world, it, lm, nil)
	instance, err := builder.Instantiate(ctx)
	require.NoError(t, err)
	defer instance.Close(ctx)

	logFn := instance.ExportedFunction("log")
	require.NotNil(t, logFn)

	c := call.New("log", []call.Param{{Name: "msg", Type: cm.StringType{}}}, nil)
	flatArgs, err := c.LowerParams(lm, []any{"hi"}, nil)
	require.NoError(t, err)
	stack := make([]uint64, len(flatArgs))
	for i, v := range flatArgs {
		stack[i] = v.Bits
	}

	_, err = logFn.Call(ctx, stack...)
	require.NoError(t, err)
	assert.Equal(t, []string{"/log"}, svc.calls)
	require.Len(t, svc.args, 1)
	assert.Equal(t, "hi", svc.args[0][0])
}
