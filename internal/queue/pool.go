package queue

import "sync"

// BufferPool provides pooled byte slices for long message transfers so
// that repeated buffer add/reclaim cycles do not allocate on every round.
// Uses size-bucketed pools (256B, 1KB, 4KB, 64KB); 64KB is the maximum
// transfer size, so larger requests are rare and fall back to plain
// allocation.
//
// Uses *[]byte pattern to avoid sync.Pool interface allocation overhead.

// Buffer size thresholds
const (
	size256 = 256
	size1k  = 1024
	size4k  = 4 * 1024
	size64k = 64 * 1024
)

// globalPool is the shared buffer pool for all sessions.
// Uses pointer-to-slice pattern for efficient sync.Pool usage.
var globalPool = struct {
	pool256 sync.Pool
	pool1k  sync.Pool
	pool4k  sync.Pool
	pool64k sync.Pool
}{
	pool256: sync.Pool{New: func() any { b := make([]byte, size256); return &b }},
	pool1k:  sync.Pool{New: func() any { b := make([]byte, size1k); return &b }},
	pool4k:  sync.Pool{New: func() any { b := make([]byte, size4k); return &b }},
	pool64k: sync.Pool{New: func() any { b := make([]byte, size64k); return &b }},
}

// GetBuffer returns a buffer of the requested size, pooled when the size
// fits a bucket and freshly allocated otherwise.
// Caller must call PutBuffer when done.
func GetBuffer(size int) []byte {
	switch {
	case size <= size256:
		return (*globalPool.pool256.Get().(*[]byte))[:size]
	case size <= size1k:
		return (*globalPool.pool1k.Get().(*[]byte))[:size]
	case size <= size4k:
		return (*globalPool.pool4k.Get().(*[]byte))[:size]
	case size <= size64k:
		return (*globalPool.pool64k.Get().(*[]byte))[:size]
	default:
		return make([]byte, size)
	}
}

// PutBuffer returns a buffer to the pool.
// The buffer's capacity determines which pool it goes to.
func PutBuffer(buf []byte) {
	c := cap(buf)
	// Restore full capacity before returning to pool
	buf = buf[:c]
	switch c {
	case size256:
		globalPool.pool256.Put(&buf)
	case size1k:
		globalPool.pool1k.Put(&buf)
	case size4k:
		globalPool.pool4k.Put(&buf)
	case size64k:
		globalPool.pool64k.Put(&buf)
		// Buffers with non-standard capacity are not returned to pool
	}
}
