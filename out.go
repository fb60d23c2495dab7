package mididev

import (
	"sync"

	"github.com/miditools/go-mididev/internal/logging"
	"github.com/miditools/go-mididev/midimsg"
)

// OutDevice sends messages to one output device port. Short messages go
// out synchronously with Send; long (SysEx) messages go out with SendLong,
// which borrows the buffer until the driver signals the transfer complete
// and the reclamation worker releases it.
//
// The worker runs for the whole time the device is open, since output
// transfers can complete at any point after SendLong.
type OutDevice struct {
	*session
	mu sync.Mutex
}

// NewOutDevice creates an output session on registry. Transfer
// notifications are discarded; use NewOutDeviceOptions to observe them.
func NewOutDevice(registry Registry) (*OutDevice, error) {
	return NewOutDeviceOptions(registry, nil, nil)
}

// NewOutDeviceOptions creates an output session delivering transfer
// notifications to recv. A nil recv discards them.
func NewOutDeviceOptions(registry Registry, recv Receiver, options *Options) (*OutDevice, error) {
	s, err := newSession(registry, DirectionOutput, recv, options)
	if err != nil {
		return nil, err
	}
	return &OutDevice{session: s}, nil
}

// OpenOutput creates an output session and opens deviceID in one call.
func OpenOutput(registry Registry, deviceID int) (*OutDevice, error) {
	d, err := NewOutDevice(registry)
	if err != nil {
		return nil, err
	}
	if err := d.Open(deviceID); err != nil {
		return nil, err
	}
	return d, nil
}

// Open acquires a handle on output device deviceID and spawns the
// reclamation worker. If the session is already open, the previous device
// is closed first; a close failure aborts the reopen.
func (d *OutDevice) Open(deviceID int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.IsOpen() {
		if err := d.closeLocked(); err != nil {
			return err
		}
	}

	d.deviceID = deviceID
	d.logger = logging.Default().WithDirection(DirectionOutput.String()).WithDevice(deviceID)

	port, err := d.registry.OpenOutput(deviceID, d.dispatch)
	if err != nil {
		d.deviceID = -1
		return WrapDeviceError("OPEN", deviceID, err)
	}

	d.port = port
	d.startWorker(d.IsOpen)
	d.setState(StateOpen)
	d.logger.Info("output device opened")
	return nil
}

// Close reclaims every in-flight long message buffer and releases the
// device handle. The session is Closed afterwards even when the driver
// reports a failure; the failure is still returned. Closing a closed
// session is a no-op.
func (d *OutDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeLocked()
}

func (d *OutDevice) closeLocked() error {
	if !d.IsOpen() {
		return nil
	}

	d.stopWorker()

	err := d.teardown("CLOSE")
	d.logger.Info("output device closed")
	return err
}

// Send transmits a short message. Sending on a closed session is a
// silent no-op.
func (d *OutDevice) Send(raw uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.IsOpen() {
		return nil
	}

	if err := d.port.SendShort(raw); err != nil {
		d.observer.ObserveShortMessage(DirectionOutput, false)
		return WrapDeviceError("SEND_SHORT", d.deviceID, err)
	}
	d.observer.ObserveShortMessage(DirectionOutput, true)
	return nil
}

// Send3 packs status and data bytes and transmits them as a short
// message.
func (d *OutDevice) Send3(status, data1, data2 byte) error {
	return d.Send(midimsg.PackShort(status, data1, data2))
}

// SendLong transmits a long (SysEx) message. The session borrows buf
// until the driver completes the transfer and the worker reclaims it, or
// until teardown. Unlike Send, calling SendLong on a closed session is an
// error.
func (d *OutDevice) SendLong(buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.IsOpen() {
		return NewError("SEND_LONG", ErrCodeClosed, "device not open")
	}
	return d.submitLong("SEND_LONG", buf)
}
