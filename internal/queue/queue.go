package queue

import "sync"

// HeaderQueue is a FIFO of submitted-but-unreclaimed headers. It is the
// only structure shared between the submitting caller, the driver
// callback, and the reclamation worker; every operation holds the lock for
// exactly one push, pop, or drain.
type HeaderQueue struct {
	mu   sync.Mutex
	hdrs []*Header
}

// NewHeaderQueue returns an empty queue.
func NewHeaderQueue() *HeaderQueue {
	return &HeaderQueue{}
}

// Push appends a header to the back of the queue.
func (q *HeaderQueue) Push(h *Header) {
	q.mu.Lock()
	q.hdrs = append(q.hdrs, h)
	q.mu.Unlock()
}

// PopOne removes and returns the front header, or nil if the queue is
// empty.
func (q *HeaderQueue) PopOne() *Header {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.hdrs) == 0 {
		return nil
	}
	h := q.hdrs[0]
	q.hdrs[0] = nil
	q.hdrs = q.hdrs[1:]
	return h
}

// DrainAll removes and releases every queued header. The release happens
// under the queue lock so a concurrent Push lands strictly before or after
// the drain; a header can never be lost or released twice.
func (q *HeaderQueue) DrainAll() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.hdrs)
	for i, h := range q.hdrs {
		h.Release()
		q.hdrs[i] = nil
	}
	q.hdrs = q.hdrs[:0]
	return n
}

// IsEmpty reports whether the queue held no headers at the moment of the
// call.
func (q *HeaderQueue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.hdrs) == 0
}

// Len returns a snapshot of the queue depth.
func (q *HeaderQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.hdrs)
}
