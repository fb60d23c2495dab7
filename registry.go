// Package mididev provides streaming MIDI device sessions: input sessions
// that record short and long (SysEx) messages into caller-owned buffers,
// and output sessions that send them, over a pluggable driver Registry.
//
// The package coordinates three execution contexts around each session:
// the caller's control goroutine (Open/Close/Start/Stop/submit), the
// driver's callback goroutine, and one reclamation worker per open
// direction. See InDevice and OutDevice for the session APIs, Registry for
// the driver contract, and MockRegistry for a hardware-free
// implementation.
package mididev

import "time"

// Direction distinguishes input (recording) from output (sending) device
// ports.
type Direction int

const (
	DirectionInput Direction = iota
	DirectionOutput
)

func (d Direction) String() string {
	switch d {
	case DirectionInput:
		return "in"
	case DirectionOutput:
		return "out"
	default:
		return "unknown"
	}
}

// DeviceInfo is the capability record for one device port known to a
// Registry.
type DeviceInfo struct {
	ID            int
	Name          string
	Manufacturer  uint16
	Product       uint16
	DriverVersion string
	Direction     Direction
}

// EventKind identifies one driver callback notification.
type EventKind int

const (
	// EventShort is a fixed-size message delivered by value.
	EventShort EventKind = iota

	// EventShortError is a malformed fixed-size message.
	EventShortError

	// EventLong is a completed long-message transfer: on input, bytes
	// recorded into the oldest submitted buffer; on output, a submitted
	// buffer fully transmitted.
	EventLong

	// EventLongError is a malformed or aborted long-message transfer.
	EventLongError
)

func (k EventKind) String() string {
	switch k {
	case EventShort:
		return "short"
	case EventShortError:
		return "short-error"
	case EventLong:
		return "long"
	case EventLongError:
		return "long-error"
	default:
		return "unknown"
	}
}

// Event is one driver notification. For long events Data aliases the
// submitted buffer, sliced to the number of bytes transferred; it is valid
// only until the corresponding header is released.
type Event struct {
	Kind      EventKind
	Raw       uint32 // short message, EventShort/EventShortError only
	Data      []byte // long payload, EventLong/EventLongError only
	Timestamp time.Duration
}

// EventFunc receives driver events. The registry invokes it on its own
// goroutine with arbitrary timing; implementations must not block and must
// not allocate without bound.
type EventFunc func(Event)

// Registry is the driver collaborator: it enumerates device ports and
// opens them. Implementations include the ALSA rawmidi registry
// (registry/alsa) and MockRegistry.
type Registry interface {
	// Inputs lists the input device ports, ordered by ID.
	Inputs() ([]DeviceInfo, error)

	// Outputs lists the output device ports, ordered by ID.
	Outputs() ([]DeviceInfo, error)

	// OpenInput opens input device deviceID for recording. Events are
	// delivered to cb until the port is closed.
	OpenInput(deviceID int, cb EventFunc) (Port, error)

	// OpenOutput opens output device deviceID for sending. Transfer
	// completions are delivered to cb until the port is closed.
	OpenOutput(deviceID int, cb EventFunc) (Port, error)
}

// Buffer is a driver-prepared record pairing a caller-owned byte slice
// with the driver bookkeeping for one long-message transfer. It stays
// valid from Prepare until Unprepare.
type Buffer interface {
	// Bytes returns the borrowed slice the record was prepared around.
	Bytes() []byte
}

// Port is one open driver endpoint. All methods may fail with a
// driver-level error, which sessions wrap into *Error.
//
// Prepare, Submit, and Unprepare manage long-message transfers: Prepare
// registers a caller-owned buffer with the driver, Submit arms a receive
// (input) or begins a send (output), and Unprepare releases the driver
// record after the transfer completed or was aborted by Reset.
type Port interface {
	// Start begins event delivery on an input port.
	Start() error

	// Stop pauses event delivery without aborting pending transfers.
	Stop() error

	// Reset aborts pending long-message transfers. Buffers already
	// submitted are abandoned by the driver; the session releases their
	// headers through its teardown drain.
	Reset() error

	// Close invalidates the port. Pending transfers must be reset or
	// unprepared first.
	Close() error

	Prepare(buf []byte) (Buffer, error)
	Unprepare(b Buffer) error
	Submit(b Buffer) error

	// SendShort transmits a fixed-size message by value. Input ports
	// return ErrNotSupported.
	SendShort(raw uint32) error
}
