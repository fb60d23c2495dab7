package mididev

import (
	"sync/atomic"

	"github.com/miditools/go-mididev/internal/constants"
	"github.com/miditools/go-mididev/internal/logging"
	"github.com/miditools/go-mididev/internal/queue"
)

// State is the device session state.
type State int32

const (
	// StateClosed means no device handle exists.
	StateClosed State = iota

	// StateOpen means a handle exists; long sends are permitted on
	// output sessions.
	StateOpen

	// StateStreaming means an input session is actively delivering
	// events. Only reachable from StateOpen; output sessions never
	// enter it.
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// WakePolicy selects how the completion signal behaves under bursts of
// completions. See the queue package for the exact semantics.
type WakePolicy int

const (
	// WakeCounting remembers one wake per completion. Default.
	WakeCounting WakePolicy = iota

	// WakeSingleSlot collapses raises that arrive before the worker
	// runs into a single wake. Faithful to the original auto-reset
	// event but loses wakes under back-to-back completions; queued
	// buffers then wait for the next completion or teardown.
	WakeSingleSlot
)

// Options configures optional session behavior.
type Options struct {
	// Observer receives metric callbacks. If nil, the session records
	// into its own Metrics instance, available via Metrics().
	Observer Observer

	// WakePolicy selects the completion signal behavior.
	WakePolicy WakePolicy
}

type receiverRef struct{ r Receiver }

// session carries the machinery both directions share: the state machine,
// the header queue, the completion signal, the reclamation worker, and the
// callback dispatcher.
//
// State transitions happen only on the control goroutine. The dispatcher
// and worker read the state without further synchronization to decide
// whether to act; a stale read self-corrects on the next event.
type session struct {
	registry  Registry
	direction Direction

	// longActive is the state in which long-message completions are
	// acted upon: StateStreaming for input, StateOpen for output.
	longActive State

	state    atomic.Int32
	port     Port // control goroutine only
	deviceID int

	receiver atomic.Pointer[receiverRef]
	hdrs     *queue.HeaderQueue
	signal   atomic.Pointer[queue.Signal]
	worker   *queue.Worker // control goroutine only

	wakePolicy queue.SignalPolicy
	metrics    *Metrics
	observer   Observer
	logger     *logging.Logger
}

func newSession(registry Registry, direction Direction, recv Receiver, options *Options) (*session, error) {
	if registry == nil {
		return nil, NewError("NEW_SESSION", ErrCodeInvalidParameters, "nil registry")
	}
	if options == nil {
		options = &Options{}
	}
	if recv == nil {
		recv = NopReceiver{}
	}

	wakePolicy := queue.SignalCounting
	if options.WakePolicy == WakeSingleSlot {
		wakePolicy = queue.SignalSingleSlot
	}

	longActive := StateStreaming
	if direction == DirectionOutput {
		longActive = StateOpen
	}

	metrics := NewMetrics()
	var observer Observer = NewMetricsObserver(metrics)
	if options.Observer != nil {
		observer = options.Observer
	}

	s := &session{
		registry:   registry,
		direction:  direction,
		longActive: longActive,
		deviceID:   -1,
		hdrs:       queue.NewHeaderQueue(),
		wakePolicy: wakePolicy,
		metrics:    metrics,
		observer:   observer,
		logger:     logging.Default().WithDirection(direction.String()),
	}
	s.receiver.Store(&receiverRef{recv})
	return s, nil
}

// State returns the current session state.
func (s *session) State() State { return State(s.state.Load()) }

func (s *session) setState(st State) { s.state.Store(int32(st)) }

// IsOpen reports whether a device handle exists.
func (s *session) IsOpen() bool {
	st := s.State()
	return st == StateOpen || st == StateStreaming
}

// DeviceID returns the id passed to the last successful Open, or -1.
func (s *session) DeviceID() int {
	if !s.IsOpen() {
		return -1
	}
	return s.deviceID
}

// SetReceiver installs r as the active receiver and returns the previous
// one. A nil r installs NopReceiver.
func (s *session) SetReceiver(r Receiver) Receiver {
	if r == nil {
		r = NopReceiver{}
	}
	prev := s.receiver.Swap(&receiverRef{r})
	return prev.r
}

func (s *session) currentReceiver() Receiver { return s.receiver.Load().r }

// Metrics returns the session's built-in metrics. When a custom Observer
// was supplied the built-in counters stay at zero.
func (s *session) Metrics() *Metrics { return s.metrics }

// PendingBuffers returns the number of submitted-but-unreclaimed long
// message buffers.
func (s *session) PendingBuffers() int { return s.hdrs.Len() }

// dispatch is the driver callback entry point. It runs on the registry's
// goroutine, which must never block: every branch is a receiver call plus
// at most one non-blocking signal raise.
func (s *session) dispatch(ev Event) {
	switch ev.Kind {
	case EventShort:
		s.observer.ObserveShortMessage(s.direction, true)
		s.currentReceiver().OnShortMessage(ev.Raw, ev.Timestamp)

	case EventShortError:
		s.observer.ObserveShortMessage(s.direction, false)
		s.currentReceiver().OnShortError(ev.Raw, ev.Timestamp)

	case EventLong:
		if s.State() != s.longActive {
			// Not streaming (input) or not open (output): the buffer
			// is reclaimed by the teardown drain instead.
			return
		}
		s.observer.ObserveLongMessage(s.direction, uint64(len(ev.Data)), true)
		s.currentReceiver().OnLongMessage(ev.Data, ev.Timestamp)
		s.raise()

	case EventLongError:
		if s.State() != s.longActive {
			return
		}
		s.observer.ObserveLongMessage(s.direction, uint64(len(ev.Data)), false)
		s.currentReceiver().OnLongError(ev.Data, ev.Timestamp)
		s.raise()
	}
}

// raise records exactly one completion on the signal.
func (s *session) raise() {
	sig := s.signal.Load()
	if sig == nil {
		return
	}
	stored := sig.Raise()
	s.observer.ObserveSignalRaise(!stored)
}

// startWorker creates a fresh signal and spawns the reclamation worker.
// The signal is recreated rather than reused so wakes from a previous
// streaming interval cannot release buffers of the new one.
func (s *session) startWorker(active func() bool) {
	sig := queue.NewSignal(s.wakePolicy)
	s.signal.Store(sig)
	s.worker = queue.NewWorker(queue.Config{
		Queue:  s.hdrs,
		Signal: sig,
		Active: active,
		Logger: s.logger,
	})
	s.worker.Start()
}

// stopWorker makes the worker exit and joins it.
func (s *session) stopWorker() {
	if s.worker == nil {
		return
	}
	s.worker.Stop()
	s.worker.Join(constants.WorkerJoinTimeout)
	s.worker = nil
	s.signal.Store(nil)
}

// submitLong prepares a header around buf, submits it, and queues it. On
// submission failure the just-prepared header is released through the same
// path the worker uses, so neither direction leaks a driver record.
func (s *session) submitLong(op string, buf []byte) error {
	if len(buf) == 0 {
		return NewDeviceError(op, s.deviceID, ErrCodeInvalidParameters, "empty buffer")
	}
	if len(buf) > constants.MaxSysExBytes {
		return NewDeviceError(op, s.deviceID, ErrCodeInvalidParameters, "buffer exceeds max transfer size")
	}

	port := s.port
	prepared, err := port.Prepare(buf)
	if err != nil {
		return WrapDeviceError(op, s.deviceID, err)
	}

	hdr := queue.NewHeader(buf,
		func() error { return port.Unprepare(prepared) },
		func() { s.observer.ObserveRelease(s.direction) })

	if err := port.Submit(prepared); err != nil {
		hdr.Release()
		return WrapDeviceError(op, s.deviceID, err)
	}

	s.hdrs.Push(hdr)
	s.observer.ObserveSubmit(s.direction)
	s.observer.ObserveQueueDepth(uint32(s.hdrs.Len()))
	return nil
}

// teardown aborts pending transfers, drains the queue, and closes the
// port. The worker must already be stopped. The session ends Closed even
// if the driver close fails; the error is still reported.
func (s *session) teardown(op string) error {
	port := s.port

	// Abort transfers still in flight so their records can be
	// unprepared. Reset failure is not actionable here.
	if err := port.Reset(); err != nil {
		s.logger.WithError(err).Warn("driver reset failed during teardown")
	}

	drained := s.hdrs.DrainAll()
	if drained > 0 {
		s.observer.ObserveTeardownDrain(s.direction, uint32(drained))
	}

	err := port.Close()
	s.port = nil
	s.setState(StateClosed)

	if err != nil {
		return WrapDeviceError(op, s.deviceID, err)
	}
	return nil
}
