package bridge

import (
	"sync"

	"go.uber.org/zap"
)

// Message is what a worker posts to main's loop to start a call: the method
// name, its parameters, and the buffer the reply is written back through.
// Args is left as []any rather than flattened into Buffer's bump area: both
// loops run in the same Go process and address space, so there is no real
// serialization boundary to cross the way there would be between a JS
// worker and its main thread. Buffer.Memory() remains available (wired to
// the codec's Copy/CopyFlat) for a caller that wants byte-exact out-of-line
// transfer anyway. There is no separate memory_id/memory_buffer pair here
// (the wire format for a non-shared-memory guest) for the same reason.
type Message struct {
	Method string
	Args   []any
	Buffer *TransferBuffer
}

// PostFunc delivers a Message from the worker side to main's loop. A
// workerclient typically implements this as a channel send consumed by a
// goroutine running Registry.Dispatch.
type PostFunc func(Message)

// Handler serves one registered method. It must eventually call either
// msg.Buffer.Complete/CompleteValue or msg.Buffer.CompleteError exactly
// once: synchronously before returning for an immediate result, or later
// from its own goroutine for an asynchronous one. Dispatch does not enforce
// this; a handler that never completes the buffer leaves its caller
// blocked until timeout.
type Handler func(msg Message)

// Registry is main's table of method handlers.
type Registry struct {
	mu       sync.Mutex
	handlers map[string]Handler
	logger   *zap.Logger
}

// NewRegistry returns an empty Registry with a no-op logger.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler), logger: Logger(nil)}
}

// WithLogger sets the logger Dispatch reports no-handler calls through and
// returns r for chaining. A Registry from NewRegistry logs nowhere until
// WithLogger is called.
func (r *Registry) WithLogger(base *zap.Logger) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = Logger(base)
	return r
}

// Handle registers h under method, replacing any previous registration.
func (r *Registry) Handle(method string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = h
}

// Dispatch looks up msg.Method and invokes its handler. An absent handler
// completes the call with error-code = no-handler itself.
func (r *Registry) Dispatch(msg Message) {
	r.mu.Lock()
	h, ok := r.handlers[msg.Method]
	logger := r.logger
	r.mu.Unlock()
	if !ok {
		logger.Warn("no handler registered for method", zap.String("method", msg.Method))
		msg.Buffer.CompleteError(ErrorNoHandler)
		return
	}
	h(msg)
}
