// Package queue implements the buffer reclamation core shared by input and
// output device sessions: the header (buffer descriptor) lifecycle, the
// thread-safe header queue, the completion signal, and the reclamation
// worker that drains the queue as the driver finishes transfers.
package queue

import (
	"sync/atomic"
)

// Header pairs a caller-owned byte buffer with the driver bookkeeping for
// one in-flight long-message transfer. The header borrows the buffer; the
// caller must keep it alive until the header is released.
//
// Lifecycle: constructed around an already-prepared driver record,
// submitted by the session, completed by the driver, and released exactly
// once by either the reclamation worker or a teardown drain.
type Header struct {
	buf       []byte
	unprepare func() error
	onRelease func()
	released  atomic.Bool
}

// NewHeader wraps a prepared transfer. unprepare undoes the driver
// preparation and is called at most once, when the header is released.
// onRelease, if non-nil, runs after a successful release; it exists for
// metrics and test instrumentation.
func NewHeader(buf []byte, unprepare func() error, onRelease func()) *Header {
	return &Header{
		buf:       buf,
		unprepare: unprepare,
		onRelease: onRelease,
	}
}

// Bytes returns the borrowed buffer.
func (h *Header) Bytes() []byte { return h.buf }

// Release unprepares the driver record and marks the header dead. The
// unprepare error is swallowed: at release time the transfer is already
// finished or aborted and there is nothing the caller can do about it.
// Release is idempotent, so a spurious completion arriving after a
// teardown drain cannot double-free.
func (h *Header) Release() {
	if !h.released.CompareAndSwap(false, true) {
		return
	}
	if h.unprepare != nil {
		h.unprepare() // best effort
	}
	if h.onRelease != nil {
		h.onRelease()
	}
}

// Released reports whether the header has been released.
func (h *Header) Released() bool { return h.released.Load() }
