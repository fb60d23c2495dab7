package mididev

import (
	"sync"

	"github.com/miditools/go-mididev/internal/constants"
	"github.com/miditools/go-mididev/internal/logging"
)

// InDevice records messages from one input device port. Short messages
// are forwarded to the Receiver as they arrive; long (SysEx) messages are
// recorded into caller-supplied buffers added with AddBuffer and delivered
// once a transfer completes while streaming.
//
// Control methods (Open, Close, AddBuffer, StartStreaming, StopStreaming)
// may be called from any goroutine; they serialize against each other.
// Receiver callbacks run on the registry's goroutine.
type InDevice struct {
	*session
	mu sync.Mutex
}

// NewInDevice creates an input session on registry delivering to recv.
// The receiver is required: an input session without one would record
// into the void.
func NewInDevice(registry Registry, recv Receiver) (*InDevice, error) {
	return NewInDeviceOptions(registry, recv, nil)
}

// NewInDeviceOptions is NewInDevice with explicit Options.
func NewInDeviceOptions(registry Registry, recv Receiver, options *Options) (*InDevice, error) {
	if recv == nil {
		return nil, NewError("NEW_IN_DEVICE", ErrCodeInvalidParameters, "nil receiver")
	}
	s, err := newSession(registry, DirectionInput, recv, options)
	if err != nil {
		return nil, err
	}
	return &InDevice{session: s}, nil
}

// OpenInput creates an input session and opens deviceID in one call.
func OpenInput(registry Registry, deviceID int, recv Receiver) (*InDevice, error) {
	d, err := NewInDevice(registry, recv)
	if err != nil {
		return nil, err
	}
	if err := d.Open(deviceID); err != nil {
		return nil, err
	}
	return d, nil
}

// Open acquires a handle on input device deviceID. If the session is
// already open, the previous device is closed first; a close failure
// aborts the reopen.
func (d *InDevice) Open(deviceID int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.IsOpen() {
		if err := d.closeLocked(); err != nil {
			return err
		}
	}

	d.deviceID = deviceID
	d.logger = logging.Default().WithDirection(DirectionInput.String()).WithDevice(deviceID)

	port, err := d.registry.OpenInput(deviceID, d.dispatch)
	if err != nil {
		d.deviceID = -1
		return WrapDeviceError("OPEN", deviceID, err)
	}

	d.port = port
	d.setState(StateOpen)
	d.logger.Info("input device opened")
	return nil
}

// Close stops streaming if needed, reclaims every queued buffer, and
// releases the device handle. The session is Closed afterwards even when
// the driver reports a failure; the failure is still returned. Closing a
// closed session is a no-op.
func (d *InDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeLocked()
}

func (d *InDevice) closeLocked() error {
	if !d.IsOpen() {
		return nil
	}

	if d.State() == StateStreaming {
		d.setState(StateOpen)
		if err := d.port.Stop(); err != nil {
			d.logger.WithError(err).Warn("driver stop failed during close")
		}
	}
	d.stopWorker()

	err := d.teardown("CLOSE")
	d.logger.Info("input device closed")
	return err
}

// AddBuffer registers buf with the driver and arms it to receive one long
// message. The session borrows buf until its header is reclaimed, either
// by the worker after a completion or by the teardown drain. Buffers may
// be added before or during streaming.
func (d *InDevice) AddBuffer(buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.IsOpen() {
		return NewError("ADD_BUFFER", ErrCodeClosed, "device not open")
	}
	return d.submitLong("ADD_BUFFER", buf)
}

// AddBuffers arms count fresh receive buffers of size bytes each.
// Non-positive arguments fall back to DefaultBufferCount and
// DefaultBufferSize.
func (d *InDevice) AddBuffers(count, size int) error {
	if count <= 0 {
		count = constants.DefaultBufferCount
	}
	if size <= 0 {
		size = constants.DefaultBufferSize
	}
	for i := 0; i < count; i++ {
		if err := d.AddBuffer(make([]byte, size)); err != nil {
			return err
		}
	}
	return nil
}

// StartStreaming begins event delivery and spawns the reclamation worker.
// A no-op unless the session is open and not yet streaming.
func (d *InDevice) StartStreaming() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.State() != StateOpen {
		return nil
	}

	d.startWorker(func() bool { return d.State() == StateStreaming })

	// Streaming must be visible before the driver starts delivering, or
	// the first long completions would be discarded.
	d.setState(StateStreaming)

	if err := d.port.Start(); err != nil {
		d.setState(StateOpen)
		d.stopWorker()
		return WrapDeviceError("START", d.deviceID, err)
	}

	d.logger.Info("streaming started")
	return nil
}

// StopStreaming halts event delivery, aborts pending transfers, and
// reclaims every queued buffer. The session returns to Open; buffers can
// be added again and streaming restarted. A no-op unless streaming.
func (d *InDevice) StopStreaming() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.State() != StateStreaming {
		return nil
	}

	d.setState(StateOpen)
	d.stopWorker()

	var firstErr error
	if err := d.port.Stop(); err != nil {
		firstErr = WrapDeviceError("STOP", d.deviceID, err)
	}
	if err := d.port.Reset(); err != nil && firstErr == nil {
		firstErr = WrapDeviceError("STOP", d.deviceID, err)
	}

	if drained := d.hdrs.DrainAll(); drained > 0 {
		d.observer.ObserveTeardownDrain(DirectionInput, uint32(drained))
	}

	d.logger.Info("streaming stopped")
	return firstErr
}

// IsStreaming reports whether events are being delivered.
func (d *InDevice) IsStreaming() bool { return d.State() == StateStreaming }
