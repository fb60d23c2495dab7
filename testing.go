package mididev

import (
	"errors"
	"sync"
	"time"
)

// MockRegistry provides a mock implementation of Registry for testing.
// Devices are registered with AddInput/AddOutput; opened ports are
// MockPorts whose driver side is scripted from the test with
// CompleteShort/CompleteLong.
type MockRegistry struct {
	mu      sync.RWMutex
	inputs  []DeviceInfo
	outputs []DeviceInfo
	openErr error
	ports   []*MockPort

	// Method call tracking
	openInputCalls  int
	openOutputCalls int
}

// NewMockRegistry creates an empty mock registry.
// This is useful for unit testing applications against device sessions.
func NewMockRegistry() *MockRegistry {
	return &MockRegistry{}
}

// AddInput registers a mock input device and returns its ID.
func (r *MockRegistry) AddInput(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := len(r.inputs)
	r.inputs = append(r.inputs, DeviceInfo{
		ID:        id,
		Name:      name,
		Direction: DirectionInput,
	})
	return id
}

// AddOutput registers a mock output device and returns its ID.
func (r *MockRegistry) AddOutput(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := len(r.outputs)
	r.outputs = append(r.outputs, DeviceInfo{
		ID:        id,
		Name:      name,
		Direction: DirectionOutput,
	})
	return id
}

// Inputs implements the Registry interface
func (r *MockRegistry) Inputs() ([]DeviceInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]DeviceInfo(nil), r.inputs...), nil
}

// Outputs implements the Registry interface
func (r *MockRegistry) Outputs() ([]DeviceInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]DeviceInfo(nil), r.outputs...), nil
}

// OpenInput implements the Registry interface
func (r *MockRegistry) OpenInput(deviceID int, cb EventFunc) (Port, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.openInputCalls++
	if r.openErr != nil {
		return nil, r.openErr
	}
	if deviceID < 0 || deviceID >= len(r.inputs) {
		return nil, ErrDeviceNotFound
	}

	p := &MockPort{direction: DirectionInput, cb: cb}
	r.ports = append(r.ports, p)
	return p, nil
}

// OpenOutput implements the Registry interface
func (r *MockRegistry) OpenOutput(deviceID int, cb EventFunc) (Port, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.openOutputCalls++
	if r.openErr != nil {
		return nil, r.openErr
	}
	if deviceID < 0 || deviceID >= len(r.outputs) {
		return nil, ErrDeviceNotFound
	}

	p := &MockPort{direction: DirectionOutput, cb: cb}
	r.ports = append(r.ports, p)
	return p, nil
}

// Testing utility methods

// SetOpenError makes subsequent OpenInput/OpenOutput calls fail with err.
func (r *MockRegistry) SetOpenError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openErr = err
}

// LastPort returns the most recently opened port, or nil.
func (r *MockRegistry) LastPort() *MockPort {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.ports) == 0 {
		return nil
	}
	return r.ports[len(r.ports)-1]
}

// OpenCalls returns the number of OpenInput and OpenOutput calls.
func (r *MockRegistry) OpenCalls() (inputs, outputs int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.openInputCalls, r.openOutputCalls
}

// MockPort is the Port handed out by MockRegistry. Tests drive its driver
// side: CompleteLong pops the oldest submitted buffer, fills it, and
// invokes the session callback the way real driver delivery would.
type MockPort struct {
	mu        sync.Mutex
	direction Direction
	cb        EventFunc

	started   bool
	closed    bool
	submitted []*mockBuffer
	abandoned []*mockBuffer // reset before completion
	prepared  int           // currently prepared records
	sent      []uint32

	prepareErr error
	submitErr  error
	startErr   error
	stopErr    error
	resetErr   error
	closeErr   error
	sendErr    error

	unpreparedWhileQueued int
	startCalls            int
	stopCalls             int
	resetCalls            int
}

type mockBuffer struct {
	buf    []byte
	queued bool
}

// Bytes implements the Buffer interface
func (b *mockBuffer) Bytes() []byte { return b.buf }

// Start implements the Port interface
func (p *MockPort) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startCalls++
	if p.startErr != nil {
		return p.startErr
	}
	p.started = true
	return nil
}

// Stop implements the Port interface
func (p *MockPort) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopCalls++
	if p.stopErr != nil {
		return p.stopErr
	}
	p.started = false
	return nil
}

// Reset implements the Port interface. Pending transfers are abandoned,
// which makes their records unpreparable again.
func (p *MockPort) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.resetCalls++
	if p.resetErr != nil {
		return p.resetErr
	}
	for _, b := range p.submitted {
		b.queued = false
		p.abandoned = append(p.abandoned, b)
	}
	p.submitted = nil
	return nil
}

// Close implements the Port interface
func (p *MockPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closeErr != nil {
		return p.closeErr
	}
	p.closed = true
	return nil
}

// Prepare implements the Port interface
func (p *MockPort) Prepare(buf []byte) (Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.prepareErr != nil {
		return nil, p.prepareErr
	}
	if p.closed {
		return nil, errors.New("mock: port closed")
	}
	p.prepared++
	return &mockBuffer{buf: buf}, nil
}

// Unprepare implements the Port interface
func (p *MockPort) Unprepare(b Buffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	mb, ok := b.(*mockBuffer)
	if !ok {
		return errors.New("mock: foreign buffer")
	}
	if mb.queued {
		// A real driver refuses to unprepare an in-flight record.
		p.unpreparedWhileQueued++
	}
	p.prepared--
	return nil
}

// Submit implements the Port interface
func (p *MockPort) Submit(b Buffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.submitErr != nil {
		return p.submitErr
	}
	if p.closed {
		return errors.New("mock: port closed")
	}
	mb := b.(*mockBuffer)
	mb.queued = true
	p.submitted = append(p.submitted, mb)
	return nil
}

// SendShort implements the Port interface
func (p *MockPort) SendShort(raw uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.direction == DirectionInput {
		return ErrNotSupported
	}
	if p.sendErr != nil {
		return p.sendErr
	}
	if p.closed {
		return errors.New("mock: port closed")
	}
	p.sent = append(p.sent, raw)
	return nil
}

// Driver-side harness

// CompleteShort delivers a short message event to the session callback.
func (p *MockPort) CompleteShort(raw uint32, ts time.Duration) {
	p.cb(Event{Kind: EventShort, Raw: raw, Timestamp: ts})
}

// CompleteShortError delivers a malformed short message event.
func (p *MockPort) CompleteShortError(raw uint32, ts time.Duration) {
	p.cb(Event{Kind: EventShortError, Raw: raw, Timestamp: ts})
}

// CompleteLong fills the oldest submitted buffer with data and delivers
// the completion event. Returns an error when nothing is submitted.
func (p *MockPort) CompleteLong(data []byte, ts time.Duration) error {
	return p.completeLong(EventLong, data, ts)
}

// CompleteLongError delivers a failed transfer for the oldest submitted
// buffer.
func (p *MockPort) CompleteLongError(data []byte, ts time.Duration) error {
	return p.completeLong(EventLongError, data, ts)
}

func (p *MockPort) completeLong(kind EventKind, data []byte, ts time.Duration) error {
	p.mu.Lock()
	if len(p.submitted) == 0 {
		p.mu.Unlock()
		return errors.New("mock: no submitted buffer")
	}
	mb := p.submitted[0]
	p.submitted = p.submitted[1:]
	mb.queued = false
	n := copy(mb.buf, data)
	cb := p.cb
	p.mu.Unlock()

	// Deliver outside the lock, as a real driver callback would run
	// concurrently with port calls.
	cb(Event{Kind: kind, Data: mb.buf[:n], Timestamp: ts})
	return nil
}

// Testing utility methods

// SetPrepareError makes subsequent Prepare calls fail with err.
func (p *MockPort) SetPrepareError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prepareErr = err
}

// SetSubmitError makes subsequent Submit calls fail with err.
func (p *MockPort) SetSubmitError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submitErr = err
}

// SetStartError makes subsequent Start calls fail with err.
func (p *MockPort) SetStartError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startErr = err
}

// SetCloseError makes Close fail with err. The port is not marked closed.
func (p *MockPort) SetCloseError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeErr = err
}

// SetSendError makes subsequent SendShort calls fail with err.
func (p *MockPort) SetSendError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sendErr = err
}

// IsStarted returns true while the port is delivering events.
func (p *MockPort) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// IsClosed returns true if the port has been closed.
func (p *MockPort) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// PendingSubmitted returns the number of in-flight buffers.
func (p *MockPort) PendingSubmitted() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.submitted)
}

// PreparedCount returns the number of currently prepared records. A
// leak-free session ends at zero.
func (p *MockPort) PreparedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prepared
}

// UnpreparedWhileQueued returns how many records were unprepared while
// still in flight. A correct session keeps this at zero.
func (p *MockPort) UnpreparedWhileQueued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unpreparedWhileQueued
}

// SentShort returns the short messages sent through the port, in order.
func (p *MockPort) SentShort() []uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uint32(nil), p.sent...)
}

// CallCounts returns the number of times each lifecycle method was called.
func (p *MockPort) CallCounts() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return map[string]int{
		"start": p.startCalls,
		"stop":  p.stopCalls,
		"reset": p.resetCalls,
	}
}

// RecordingReceiver is a Receiver that records everything it is handed,
// copying long payloads so they survive buffer reclamation.
type RecordingReceiver struct {
	mu         sync.Mutex
	shorts     []uint32
	longs      [][]byte
	shortErrs  []uint32
	longErrs   [][]byte
	timestamps []time.Duration
}

// NewRecordingReceiver creates an empty recording receiver.
func NewRecordingReceiver() *RecordingReceiver {
	return &RecordingReceiver{}
}

// OnShortMessage implements the Receiver interface
func (r *RecordingReceiver) OnShortMessage(raw uint32, ts time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shorts = append(r.shorts, raw)
	r.timestamps = append(r.timestamps, ts)
}

// OnLongMessage implements the Receiver interface
func (r *RecordingReceiver) OnLongMessage(data []byte, ts time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.longs = append(r.longs, append([]byte(nil), data...))
	r.timestamps = append(r.timestamps, ts)
}

// OnShortError implements the Receiver interface
func (r *RecordingReceiver) OnShortError(raw uint32, ts time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shortErrs = append(r.shortErrs, raw)
}

// OnLongError implements the Receiver interface
func (r *RecordingReceiver) OnLongError(data []byte, ts time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.longErrs = append(r.longErrs, append([]byte(nil), data...))
}

// Shorts returns the short messages received, in order.
func (r *RecordingReceiver) Shorts() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint32(nil), r.shorts...)
}

// Longs returns copies of the long messages received, in order.
func (r *RecordingReceiver) Longs() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([][]byte, len(r.longs))
	for i, b := range r.longs {
		out[i] = append([]byte(nil), b...)
	}
	return out
}

// ShortErrors returns the malformed short messages received.
func (r *RecordingReceiver) ShortErrors() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint32(nil), r.shortErrs...)
}

// LongErrors returns copies of the failed long messages received.
func (r *RecordingReceiver) LongErrors() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([][]byte, len(r.longErrs))
	for i, b := range r.longErrs {
		out[i] = append([]byte(nil), b...)
	}
	return out
}

// WaitLongs polls until at least n long messages were received or the
// timeout elapses.
func (r *RecordingReceiver) WaitLongs(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		got := len(r.longs)
		r.mu.Unlock()
		if got >= n {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

// Compile-time interface checks
var (
	_ Registry = (*MockRegistry)(nil)
	_ Port     = (*MockPort)(nil)
	_ Buffer   = (*mockBuffer)(nil)
	_ Receiver = (*RecordingReceiver)(nil)
)
