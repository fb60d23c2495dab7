package queue

import "github.com/miditools/go-mididev/internal/constants"

// SignalPolicy selects how completion raises are remembered between worker
// wakes.
type SignalPolicy int

const (
	// SignalCounting remembers one wake per raise, up to the channel
	// capacity. A burst of completions produces a matching burst of
	// wakes, so no header waits for an unrelated later completion.
	SignalCounting SignalPolicy = iota

	// SignalSingleSlot remembers at most one pending wake no matter how
	// many raises arrive before the worker runs. This matches the
	// original auto-reset event semantics; under back-to-back
	// completions wakes are lost and queued headers linger until the
	// next completion or teardown.
	SignalSingleSlot
)

// Signal is the wake primitive between the driver callback context and the
// reclamation worker. Raise never blocks, which is what lets it run inside
// the callback.
type Signal struct {
	ch chan struct{}
}

// NewSignal creates a signal with the given policy.
func NewSignal(policy SignalPolicy) *Signal {
	capacity := constants.CountingSignalCapacity
	if policy == SignalSingleSlot {
		capacity = 1
	}
	return &Signal{ch: make(chan struct{}, capacity)}
}

// Raise records one completion. It reports whether the wake was stored;
// false means the raise coalesced into an already-pending wake.
func (s *Signal) Raise() bool {
	select {
	case s.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Wait blocks until a wake is pending or stop is closed. It returns false
// when the wait ended because of stop.
func (s *Signal) Wait(stop <-chan struct{}) bool {
	select {
	case <-s.ch:
		return true
	case <-stop:
		return false
	}
}

// Pending returns the number of stored wakes. Single-slot signals report
// at most 1.
func (s *Signal) Pending() int { return len(s.ch) }
