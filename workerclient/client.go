// Package workerclient implements the asynchronous worker client: the
// main-thread handle onto a guest module that runs its own single-threaded
// event loop. A worker's calls back into host code are routed through
// internal/bridge's shared-memory protocol rather than a plain Go call, so
// the two loops stay coupled with every suspension point made explicit via
// a futex wait; the reverse direction, main calling into the worker's
// exports, is guarded by a bridge.CallQueue enforcing a single-in-flight-call
// rule.
package workerclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/componentize-go/canon/internal/bridge"
	"github.com/componentize-go/canon/internal/linear"
	"github.com/componentize-go/canon/internal/wazeroadapter"
	"github.com/componentize-go/canon/internal/witmeta"
)

// Future is a one-shot result cell, resolved exactly once by the goroutine
// that owns it. It plays the role of the JS Promise Initialize/CallWorker
// return in the source protocol.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] { return &Future[T]{done: make(chan struct{})} }

func (f *Future[T]) resolve(v T) {
	f.val = v
	close(f.done)
}

func (f *Future[T]) reject(err error) {
	f.err = err
	close(f.done)
}

// Wait blocks until the future settles and returns its value or error.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.val, f.err
}

// Done exposes the future's completion channel for use in a select.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Handler serves one method a worker's guest calls back into main through.
// Returning an error completes the call with bridge.ErrorRejection.
type Handler func(args []any) (any, error)

// Options configures Initialize.
type Options struct {
	// FutexTimeout bounds a worker-to-host call; zero waits forever.
	FutexTimeout time.Duration

	// TransferBufferSize sizes each worker-to-host call's buffer. Zero
	// selects a 64 KiB default.
	TransferBufferSize uint32

	// SharedMemory, if set, records a pre-supplied memory buffer the guest
	// imports instead of defining its own (the SharedArrayBuffer case).
	// This implementation always resolves the guest's actual linear memory
	// from its instantiated module: worker and main are goroutines in one
	// Go process and address space, so there is no independently-owned
	// buffer to import ahead of instantiation the way a genuinely separate
	// worker thread would need. The field is kept so callers migrating
	// from that model have somewhere to put it; see DESIGN.md.
	SharedMemory []byte

	// Logger receives bridge handshake diagnostics, tagged with the
	// "bridge" scope; nil logs nowhere.
	Logger *zap.Logger
}

const defaultTransferBufferSize = 64 * 1024

// Client is one worker connection: it owns the guest's module instance once
// Initialize completes, serves the worker's calls back into main via
// Handlers registered with On, and dispatches main's calls into the
// worker's exports via CallWorker, single-flight-guarded by a CallQueue.
type Client struct {
	rt    wazero.Runtime
	world *witmeta.World

	mu       sync.Mutex
	handlers map[string]Handler
	registry *bridge.Registry
	postCh   chan bridge.Message
	timeout  time.Duration
	bufSize  uint32
	queue    bridge.CallQueue

	proxy    *witmeta.GuestProxy
	mem      *linear.ExternalMemory
	instance wazeroExportsCloser
	disposed bool
}

// wazeroExportsCloser is the subset of api.Module Client needs to tear a
// worker down; kept narrow so tests can supply a fake.
type wazeroExportsCloser interface {
	Close(ctx context.Context) error
}

// New returns a Client bound to world's import/export surface. The guest's
// calls into world.Imports are served by Handlers registered with On
// (looked up by the interface-qualified WIT name), not by a HostService
// supplied up front: On is this package's counterpart to the source
// protocol's on(name, handler).
func New(rt wazero.Runtime, world *witmeta.World) *Client {
	c := &Client{
		rt:       rt,
		world:    world,
		handlers: make(map[string]Handler),
		registry: bridge.NewRegistry(),
		postCh:   make(chan bridge.Message, 8),
	}
	go c.dispatchLoop()
	return c
}

// On registers the handler a worker's guest call to (iface, name) — or just
// name, for a free function — is served by. iface is empty for a free
// function, matching witmeta.HostService.Invoke's own convention.
func (c *Client) On(iface, name string, h Handler) {
	method := name
	if iface != "" {
		method = iface + "." + name
	}
	c.mu.Lock()
	c.handlers[method] = h
	c.mu.Unlock()
	c.registry.Handle(method, func(msg bridge.Message) {
		v, err := h(msg.Args)
		if err != nil {
			msg.Buffer.CompleteError(bridge.ErrorRejection)
			return
		}
		msg.Buffer.CompleteValue(v)
	})
}

// dispatchLoop is main's event loop: it drains posted calls and dispatches
// them to the registered handler, one at a time, for as long as the Client
// lives.
func (c *Client) dispatchLoop() {
	for msg := range c.postCh {
		c.registry.Dispatch(msg)
	}
}

func (c *Client) post(msg bridge.Message) {
	c.postCh <- msg
}

// Invoke implements witmeta.HostService by routing the call through the
// shared-memory bridge instead of calling a handler directly: this is what
// makes a guest's host import, when the guest runs as this Client's worker,
// actually cross the futex-guarded boundary.
func (c *Client) Invoke(iface, name string, args []any) (any, error) {
	method := name
	if iface != "" {
		method = iface + "." + name
	}
	size := c.bufSize
	if size == 0 {
		size = defaultTransferBufferSize
	}
	tb, err := bridge.NewTransferBuffer(size)
	if err != nil {
		return nil, err
	}
	return tb.Call(method, args, c.post, c.timeout)
}

// Initialize compiles and instantiates moduleBytes as this Client's worker,
// wiring world.Imports to Invoke (and so, transitively, to every handler
// registered with On) and binding world.Exports for CallWorker. It mirrors
// the source protocol's initializeWorker handshake: the returned future
// settles when the worker reports it is ready, the same role the
// protocol's distinguished $initializeWorker reply channel plays.
func (c *Client) Initialize(ctx context.Context, moduleBytes []byte, opts Options) *Future[struct{}] {
	fut := newFuture[struct{}]()
	c.mu.Lock()
	c.timeout = opts.FutexTimeout
	c.bufSize = opts.TransferBufferSize
	c.mu.Unlock()
	c.registry.WithLogger(opts.Logger)

	go func() {
		it, err := witmeta.CreateImports(c.world, c, nil)
		if err != nil {
			fut.reject(fmt.Errorf("workerclient: building import table: %w", err))
			return
		}

		mem := &linear.ExternalMemory{}
		builder := wazeroadapter.RegisterImports(c.rt, "host", c.world, it, mem, nil)
		instance, err := builder.Instantiate(ctx)
		if err != nil {
			fut.reject(fmt.Errorf("workerclient: instantiating host imports: %w", err))
			return
		}

		compiled, err := c.rt.CompileModule(ctx, moduleBytes)
		if err != nil {
			_ = instance.Close(ctx)
			fut.reject(fmt.Errorf("workerclient: compiling worker module: %w", err))
			return
		}
		guest, err := c.rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
		if err != nil {
			_ = instance.Close(ctx)
			fut.reject(fmt.Errorf("workerclient: instantiating worker module: %w", err))
			return
		}

		resolved, err := wazeroadapter.GuestMemory(ctx, guest)
		if err != nil {
			_ = guest.Close(ctx)
			_ = instance.Close(ctx)
			fut.reject(fmt.Errorf("workerclient: resolving worker memory: %w", err))
			return
		}
		*mem = *resolved

		exports, err := wazeroadapter.NewExports(ctx, guest, c.world, nil)
		if err != nil {
			_ = guest.Close(ctx)
			_ = instance.Close(ctx)
			fut.reject(fmt.Errorf("workerclient: binding worker exports: %w", err))
			return
		}

		c.mu.Lock()
		c.proxy = witmeta.BindExports(c.world, exports)
		c.mem = mem
		c.instance = guest
		c.mu.Unlock()

		fut.resolve(struct{}{})
	}()
	return fut
}

// CallWorker invokes the worker's exported function name, single-flight
// guarded by a CallQueue: an overlapping call traps rather than queuing.
func (c *Client) CallWorker(name string, params []any) *Future[any] {
	fut := newFuture[any]()
	go func() {
		release, err := c.queue.Enter()
		if err != nil {
			fut.reject(err)
			return
		}
		defer release()

		c.mu.Lock()
		proxy := c.proxy
		disposed := c.disposed
		c.mu.Unlock()
		if disposed {
			fut.reject(fmt.Errorf("workerclient: CallWorker after Dispose"))
			return
		}
		if proxy == nil {
			fut.reject(fmt.Errorf("workerclient: CallWorker before Initialize completed"))
			return
		}
		fn, ok := proxy.Functions[name]
		if !ok {
			fut.reject(fmt.Errorf("workerclient: worker has no exported function %q", name))
			return
		}
		v, err := fn(params)
		if err != nil {
			fut.reject(err)
			return
		}
		fut.resolve(v)
	}()
	return fut
}

// Dispose tears the worker connection down: the guest module instance is
// closed and the dispatch loop is stopped. A disposed Client rejects any
// further CallWorker.
func (c *Client) Dispose(ctx context.Context) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil
	}
	c.disposed = true
	instance := c.instance
	c.mu.Unlock()

	close(c.postCh)
	if instance != nil {
		return instance.Close(ctx)
	}
	return nil
}
