package bridge

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/componentize-go/canon/internal/linear"
)

// TransferBuffer is the shared-memory call bridge's wire: a Header followed
// by a bump area that the codec's Copy/CopyFlat allocate out-of-line data
// into. It is its own linear.Memory (via linear.ExternalMemory) so a
// cm.Type's Copy/CopyFlat can target it directly, the same way
// internal/linear.BytesMemory serves a self-contained scratch arena.
type TransferBuffer struct {
	buf    []byte
	hdr    *Header
	lock   *int32
	mem    *linear.ExternalMemory
	result any
}

// NewTransferBuffer allocates a TransferBuffer with the given total capacity,
// which must be at least HeaderSize.
func NewTransferBuffer(capacity uint32) (*TransferBuffer, error) {
	if capacity < HeaderSize {
		return nil, trap("NewTransferBuffer", "capacity %d is smaller than header size %d", capacity, HeaderSize)
	}
	buf := make([]byte, capacity)
	hdr, err := NewHeader(buf)
	if err != nil {
		return nil, err
	}
	tb := &TransferBuffer{buf: buf, hdr: hdr, lock: hdr.lockWord()}
	tb.mem = &linear.ExternalMemory{
		RawFunc:          func() []byte { return tb.buf },
		SizeFunc:         func() uint32 { return uint32(len(tb.buf)) },
		AllocFunc:        tb.alloc,
		ReallocFunc:      tb.realloc,
		PreallocatedFunc: func(ptr, size uint32) linear.Range { return linear.Range{Mem: tb.mem, Ptr: ptr, Size: size, Align: 1} },
		ReadonlyFunc:     func(ptr, size uint32) linear.ReadonlyRange { return linear.ReadonlyRange{Mem: tb.mem, Ptr: ptr, Size: size} },
		FreeFunc:         func(linear.Range) error { return trap("Free", "transfer buffer is a bump allocator and does not support deallocation") },
	}
	hdr.ResetNextFree()
	return tb, nil
}

// Memory is the bump-allocated view of the buffer past the header, the
// destination a Callable.LowerParams/CopyFlat call writes into.
func (tb *TransferBuffer) Memory() linear.Memory { return tb.mem }

// Header is the fixed-layout prefix: lock word, error code, result.
func (tb *TransferBuffer) Header() *Header { return tb.hdr }

func (tb *TransferBuffer) alloc(align, size uint32) (linear.Range, error) {
	if !linear.ValidAlignment(align) {
		return linear.Range{}, trap("Alloc", "invalid alignment %d", align)
	}
	start := linear.Align(tb.hdr.NextFree(), align)
	if uint64(start)+uint64(size) > uint64(len(tb.buf)) {
		return linear.Range{}, trap("Alloc", "transfer buffer exhausted: need [%d,%d) of %d", start, uint64(start)+uint64(size), len(tb.buf))
	}
	tb.hdr.SetNextFree(start + size)
	return linear.Range{Mem: tb.mem, Ptr: start, Size: size, Align: align}, nil
}

func (tb *TransferBuffer) realloc(r linear.Range, newSize uint32) (linear.Range, error) {
	out, err := tb.alloc(r.Align, newSize)
	if err != nil {
		return linear.Range{}, err
	}
	n := newSize
	if r.Size < n {
		n = r.Size
	}
	if n > 0 {
		if err := out.Write(0, tb.buf[r.Ptr:r.Ptr+n]); err != nil {
			return linear.Range{}, err
		}
	}
	return out, nil
}

// BeginCall resets the buffer for a new outgoing call: rewinds the bump
// pointer past the header, clears the error code, and sets the futex word
// to pending. The caller packs parameters into Memory() afterwards.
func (tb *TransferBuffer) BeginCall() {
	tb.hdr.ResetNextFree()
	tb.hdr.SetErrorCode(ErrorNone)
	atomic.StoreInt32(tb.lock, int32(LockPending))
}

// Complete writes a synchronous or completed-asynchronous result into the
// header and releases the waiting side. tag/bits are the result's flat
// encoding as produced by the codec's lower_flat (float/signed/
// unsigned split, since the header's result field has no type information
// of its own).
func (tb *TransferBuffer) Complete(tag ResultTypeTag, bits uint64) {
	tb.hdr.SetResultTypeTag(tag)
	tb.hdr.SetResultBits(bits)
	tb.hdr.SetErrorCode(ErrorNone)
	tb.release()
}

// CompleteError records a failed call (no handler, or an asynchronous
// rejection) and releases the waiting side.
func (tb *TransferBuffer) CompleteError(code ErrorCode) {
	tb.hdr.SetErrorCode(code)
	tb.release()
}

// CompleteValue completes the call with an arbitrary Go result, stored
// alongside (not instead of) the byte-accurate header fields: numeric and
// boolean results also get a ResultTypeTag/bits encoding, for a caller that
// only cares about the wire-faithful surface. v is retrieved afterwards
// with Result.
func (tb *TransferBuffer) CompleteValue(v any) {
	tb.result = v
	tag, bits := encodeResult(v)
	tb.Complete(tag, bits)
}

// Result returns the value most recently completed with CompleteValue,
// valid after AwaitReply/AwaitValue returns a nil error.
func (tb *TransferBuffer) Result() any { return tb.result }

func encodeResult(v any) (ResultTypeTag, uint64) {
	switch n := v.(type) {
	case nil:
		return ResultVoid, 0
	case bool:
		if n {
			return ResultUnsigned, 1
		}
		return ResultUnsigned, 0
	case float32:
		return ResultFloat, math.Float64bits(float64(n))
	case float64:
		return ResultFloat, math.Float64bits(n)
	case int:
		return ResultSigned, uint64(int64(n))
	case int8:
		return ResultSigned, uint64(int64(n))
	case int16:
		return ResultSigned, uint64(int64(n))
	case int32:
		return ResultSigned, uint64(int64(n))
	case int64:
		return ResultSigned, uint64(n)
	case uint:
		return ResultUnsigned, uint64(n)
	case uint8:
		return ResultUnsigned, uint64(n)
	case uint16:
		return ResultUnsigned, uint64(n)
	case uint32:
		return ResultUnsigned, uint64(n)
	case uint64:
		return ResultUnsigned, n
	default:
		// A value too complex to carry in 8 bytes (a string, a record, a
		// resource handle): the tag is void and Result() is the only way
		// to recover it.
		return ResultVoid, 0
	}
}

func (tb *TransferBuffer) release() {
	atomic.StoreInt32(tb.lock, int32(LockDone))
	if err := futexNotify(tb.lock, 1); err != nil {
		panic(trap("release", "futex notify failed: %v", err))
	}
}

// AwaitReply blocks until the call this buffer carries is completed, or
// timeout elapses (zero waits forever). It reports the result as written by
// Complete, or ErrTimeout / ErrNoHandler / ErrRejected per the header's
// error-code.
func (tb *TransferBuffer) AwaitReply(timeout time.Duration) (ResultTypeTag, uint64, error) {
	woke, err := futexWait(tb.lock, int32(LockPending), timeout)
	if err != nil {
		return 0, 0, trap("AwaitReply", "futex wait failed: %v", err)
	}
	if !woke {
		return 0, 0, ErrTimeout
	}
	if lock := atomic.LoadInt32(tb.lock); lock != int32(LockDone) {
		return 0, 0, trap("AwaitReply", "unexpected lock word %d after wake", lock)
	}
	switch tb.hdr.ErrorCode() {
	case ErrorNoHandler:
		return 0, 0, ErrNoHandler
	case ErrorRejection:
		return 0, 0, ErrRejected
	}
	return tb.hdr.ResultTypeTag(), tb.hdr.ResultBits(), nil
}

// AwaitValue is AwaitReply's native-value counterpart: it waits for
// completion and returns whatever CompleteValue stored, rather than the raw
// tag/bits pair.
func (tb *TransferBuffer) AwaitValue(timeout time.Duration) (any, error) {
	if _, _, err := tb.AwaitReply(timeout); err != nil {
		return nil, err
	}
	return tb.result, nil
}

// Call runs one worker-blocks-on-main synchronous call:
// BeginCall, post the message, then AwaitValue.
func (tb *TransferBuffer) Call(method string, args []any, post PostFunc, timeout time.Duration) (any, error) {
	tb.BeginCall()
	post(Message{Method: method, Args: args, Buffer: tb})
	return tb.AwaitValue(timeout)
}
