//go:build linux

package bridge

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

func lockPointer(buf []byte) unsafe.Pointer {
	return unsafe.Pointer(&buf[offLock])
}

// futexWait blocks while *addr == want, waking on a matching futexNotify or
// when timeout elapses (zero means wait forever). It reports whether the
// wait woke because the value changed (true) or because it timed out
// (false).
func futexWait(addr *int32, want int32, timeout time.Duration) (woke bool, err error) {
	var ts *unix.Timespec
	if timeout > 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}
	_, err = unix.Futex(addr, unix.FUTEX_WAIT, want, ts, nil, 0)
	if err == nil {
		return true, nil
	}
	if err == unix.ETIMEDOUT {
		return false, nil
	}
	if err == unix.EAGAIN {
		// *addr had already changed before we started waiting.
		return true, nil
	}
	return false, err
}

// futexNotify wakes up to n waiters blocked on addr.
func futexNotify(addr *int32, n int32) error {
	_, err := unix.Futex(addr, unix.FUTEX_WAKE, n, nil, nil, 0)
	return err
}
