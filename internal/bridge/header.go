// Package bridge implements the shared-memory call bridge: a
// fixed-layout header at the front of a transfer buffer, the futex
// protocol a worker uses to block on a host's reply, and the inverse,
// call-queue-guarded direction used for host-in-worker calls.
package bridge

import (
	"encoding/binary"
	"fmt"
)

// Header field offsets and the fixed header size.
const (
	offLock          = 0
	offErrorCode     = 4
	offResultTypeTag = 8
	offResultValue   = 12
	offNextFree      = 20

	HeaderSize uint32 = 24
)

// Lock word states.
const (
	LockPending uint32 = 0
	LockDone    uint32 = 1
)

// ErrorCode values written into the header's error-code field.
type ErrorCode uint32

const (
	ErrorNone      ErrorCode = 0
	ErrorNoHandler ErrorCode = 1
	ErrorRejection ErrorCode = 2
)

// ResultTypeTag tags how result-value's 8 bytes should be interpreted.
type ResultTypeTag uint32

const (
	ResultVoid     ResultTypeTag = 0
	ResultFloat    ResultTypeTag = 1
	ResultSigned   ResultTypeTag = 2
	ResultUnsigned ResultTypeTag = 3
)

// Trap is raised for any fatal bridge condition: a malformed header or an
// overlapping call on a single-flight connection. A futex timeout is
// reported as ErrTimeout instead.
type Trap struct {
	Op  string
	Msg string
}

func (t *Trap) Error() string { return fmt.Sprintf("bridge: %s: %s", t.Op, t.Msg) }

func trap(op, format string, args ...any) error {
	return &Trap{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Header is a typed view over a transfer buffer's fixed-layout prefix.
// Every accessor except lockWord (the futex word, accessed only via the
// sequentially-consistent primitives in futex_linux.go / futex_other.go) is a plain little-endian
// load/store, fenced against the lock-word store that releases or
// acquires the buffer.
type Header struct {
	buf []byte
}

// NewHeader wraps buf, which must be at least HeaderSize bytes.
func NewHeader(buf []byte) (*Header, error) {
	if uint32(len(buf)) < HeaderSize {
		return nil, trap("NewHeader", "buffer of %d bytes is smaller than header size %d", len(buf), HeaderSize)
	}
	return &Header{buf: buf}, nil
}

func (h *Header) lockWord() *int32 {
	return (*int32)(lockPointer(h.buf))
}

func (h *Header) ErrorCode() ErrorCode {
	return ErrorCode(binary.LittleEndian.Uint32(h.buf[offErrorCode:]))
}

func (h *Header) SetErrorCode(c ErrorCode) {
	binary.LittleEndian.PutUint32(h.buf[offErrorCode:], uint32(c))
}

func (h *Header) ResultTypeTag() ResultTypeTag {
	return ResultTypeTag(binary.LittleEndian.Uint32(h.buf[offResultTypeTag:]))
}

func (h *Header) SetResultTypeTag(t ResultTypeTag) {
	binary.LittleEndian.PutUint32(h.buf[offResultTypeTag:], uint32(t))
}

// ResultBits returns the raw 8 result-value bytes, interpreted by the
// caller according to ResultTypeTag.
func (h *Header) ResultBits() uint64 {
	return binary.LittleEndian.Uint64(h.buf[offResultValue:])
}

func (h *Header) SetResultBits(v uint64) {
	binary.LittleEndian.PutUint64(h.buf[offResultValue:], v)
}

func (h *Header) NextFree() uint32 {
	return binary.LittleEndian.Uint32(h.buf[offNextFree:])
}

func (h *Header) SetNextFree(v uint32) {
	binary.LittleEndian.PutUint32(h.buf[offNextFree:], v)
}

// ResetNextFree rewinds the bump pointer to just past the header, the
// state a transfer buffer starts a new call in.
func (h *Header) ResetNextFree() { h.SetNextFree(HeaderSize) }

// BumpArea returns the byte slice past the header, for the codec's
// copy/copy_flat to write parameters and out-of-line data into.
func (h *Header) BumpArea() []byte { return h.buf[HeaderSize:] }
