package mididev

import "github.com/miditools/go-mididev/internal/constants"

// Re-export constants for public API
const (
	DefaultBufferSize  = constants.DefaultBufferSize
	DefaultBufferCount = constants.DefaultBufferCount
	MaxSysExBytes      = constants.MaxSysExBytes
	WorkerJoinTimeout  = constants.WorkerJoinTimeout
)
