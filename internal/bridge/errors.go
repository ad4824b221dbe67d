package bridge

import "errors"

// Sentinel errors AwaitReply returns, matching the header's error-code values
// plus the futex timeout. Wrap with fmt.Errorf("%w: ...") to attach remote
// error text when the caller has it.
var (
	ErrTimeout   = errors.New("bridge: call timed out")
	ErrNoHandler = errors.New("bridge: no handler registered for method")
	ErrRejected  = errors.New("bridge: asynchronous call rejected")
)
