package mididev

import "time"

// Receiver consumes messages and errors recorded by a device session.
// Exactly one receiver is active per session; SetReceiver swaps it at
// runtime and returns the previous one.
//
// All methods are invoked from the driver callback context and must not
// block. For the long-message methods, data is valid only for the duration
// of the call: the buffer is reclaimed by the session afterwards, so a
// receiver that needs the bytes longer must copy them.
type Receiver interface {
	// OnShortMessage delivers a packed fixed-size message; unpack it
	// with midimsg.UnpackShort or midimsg.UnpackChannel.
	OnShortMessage(raw uint32, timestamp time.Duration)

	// OnLongMessage delivers a completed long-message transfer. len(data)
	// is the number of bytes recorded (input) or transmitted (output).
	OnLongMessage(data []byte, timestamp time.Duration)

	// OnShortError delivers a malformed fixed-size message.
	OnShortError(raw uint32, timestamp time.Duration)

	// OnLongError delivers a malformed or aborted long-message transfer.
	OnLongError(data []byte, timestamp time.Duration)
}

// NopReceiver discards everything. It is the default receiver for output
// sessions opened without one.
type NopReceiver struct{}

func (NopReceiver) OnShortMessage(uint32, time.Duration) {}
func (NopReceiver) OnLongMessage([]byte, time.Duration)  {}
func (NopReceiver) OnShortError(uint32, time.Duration)   {}
func (NopReceiver) OnLongError([]byte, time.Duration)    {}

var _ Receiver = NopReceiver{}
