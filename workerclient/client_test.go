package workerclient

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/componentize-go/canon/internal/bridge"
	"github.com/componentize-go/canon/internal/witmeta"
)

func TestFutureWaitReturnsResolvedValue(t *testing.T) {
	f := newFuture[int]()
	go f.resolve(42)
	v, err := f.Wait()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestFutureWaitReturnsRejection(t *testing.T) {
	f := newFuture[int]()
	sentinel := errors.New("boom")
	go f.reject(sentinel)
	_, err := f.Wait()
	assert.ErrorIs(t, err, sentinel)
}

func newTestClient() *Client {
	return &Client{
		handlers: make(map[string]Handler),
		registry: bridge.NewRegistry(),
		postCh:   make(chan bridge.Message, 8),
		timeout:  time.Second,
	}
}

// TestClientOnRoutesThroughBridge exercises the full worker-to-host path a
// guest's import call takes: Invoke posts a Message onto the dispatch loop,
// which looks the method up in the Registry On registered it under and runs
// the embedder's Handler, completing the TransferBuffer the call is blocked
// on.
func TestClientOnRoutesThroughBridge(t *testing.T) {
	c := newTestClient()
	go c.dispatchLoop()
	defer close(c.postCh)

	c.On("math", "double", func(args []any) (any, error) {
		return args[0].(int) * 2, nil
	})

	v, err := c.Invoke("math", "double", []any{21})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestClientOnPropagatesHandlerError(t *testing.T) {
	c := newTestClient()
	go c.dispatchLoop()
	defer close(c.postCh)

	c.On("", "fails", func(args []any) (any, error) {
		return nil, errors.New("handler refused")
	})

	_, err := c.Invoke("", "fails", nil)
	assert.ErrorIs(t, err, bridge.ErrRejected)
}

func TestClientInvokeWithNoHandlerReportsNoHandler(t *testing.T) {
	c := newTestClient()
	go c.dispatchLoop()
	defer close(c.postCh)

	_, err := c.Invoke("", "missing", nil)
	assert.ErrorIs(t, err, bridge.ErrNoHandler)
}

func TestClientCallWorkerBeforeInitializeRejects(t *testing.T) {
	c := newTestClient()

	_, err := c.CallWorker("run", nil).Wait()
	assert.Error(t, err)
}

// fakeProxy lets CallWorker be exercised without a real wazero
// instance, mirroring how witmeta.GuestProxy.Functions is populated by
// BindExports.
func fakeProxy(fn func(args []any) (any, error)) map[string]func(args []any) (any, error) {
	return map[string]func(args []any) (any, error){"run": fn}
}

func TestClientCallWorkerRejectsOverlappingCalls(t *testing.T) {
	c := newTestClient()
	release := make(chan struct{})
	entered := make(chan struct{})
	c.mu.Lock()
	c.proxy = &witmeta.GuestProxy{Functions: fakeProxy(func(args []any) (any, error) {
		close(entered)
		<-release
		return "done", nil
	})}
	c.mu.Unlock()

	first := c.CallWorker("run", nil)
	<-entered

	_, err := c.CallWorker("run", nil).Wait()
	assert.Error(t, err)

	close(release)
	v, err := first.Wait()
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}

func TestClientDisposeIsIdempotent(t *testing.T) {
	c := newTestClient()
	go c.dispatchLoop()

	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Dispose(nil))
		}()
	}
	wg.Wait()
}
