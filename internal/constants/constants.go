package constants

import "time"

// Default configuration constants
const (
	// DefaultBufferSize is the default length of a long-message receive
	// buffer in bytes
	DefaultBufferSize = 256

	// DefaultBufferCount is the default number of receive buffers armed
	// when a helper opens an input session
	DefaultBufferCount = 4

	// MaxSysExBytes caps the size of a single long message transfer (64KB)
	MaxSysExBytes = 64 * 1024
)

// Completion signal constants
const (
	// CountingSignalCapacity is the buffered capacity of a counting
	// completion signal. Raises beyond this are coalesced, so it bounds
	// the number of completions that may be outstanding before the
	// reclamation worker runs.
	CountingSignalCapacity = 1024
)

// Timing constants for session teardown
const (
	// WorkerJoinTimeout is how long Close and StopStreaming wait for the
	// reclamation worker to exit before giving up
	WorkerJoinTimeout = 5 * time.Second
)
