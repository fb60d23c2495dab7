package queue

import (
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWorkerReclaimsOnePerWake(t *testing.T) {
	q := NewHeaderQueue()
	s := NewSignal(SignalCounting)
	var releases atomic.Int32
	var active atomic.Bool
	active.Store(true)

	w := NewWorker(Config{
		Queue:  q,
		Signal: s,
		Active: active.Load,
	})
	w.Start()
	defer func() {
		w.Stop()
		w.Join(time.Second)
	}()

	for i := 0; i < 3; i++ {
		q.Push(countingHeader(&releases, new(atomic.Int32)))
		s.Raise()
	}

	waitFor(t, "all headers released", func() bool { return releases.Load() == 3 })
	if !q.IsEmpty() {
		t.Error("queue not empty after three wakes")
	}
}

func TestWorkerExitsWhenInactive(t *testing.T) {
	q := NewHeaderQueue()
	s := NewSignal(SignalCounting)
	var releases atomic.Int32
	var active atomic.Bool
	active.Store(true)

	w := NewWorker(Config{Queue: q, Signal: s, Active: active.Load})
	w.Start()

	q.Push(countingHeader(&releases, new(atomic.Int32)))

	// The session went inactive before the wake: the worker must exit
	// without popping, leaving the header for the teardown drain.
	active.Store(false)
	s.Raise()

	if !w.Join(2 * time.Second) {
		t.Fatal("worker did not exit after inactive wake")
	}
	if releases.Load() != 0 {
		t.Error("worker released a header while inactive")
	}
	if q.Len() != 1 {
		t.Errorf("queue length = %d, want 1", q.Len())
	}
}

func TestWorkerStopWhileBlocked(t *testing.T) {
	q := NewHeaderQueue()
	s := NewSignal(SignalCounting)

	w := NewWorker(Config{
		Queue:  q,
		Signal: s,
		Active: func() bool { return true },
	})
	w.Start()

	w.Stop()
	w.Stop() // idempotent
	if !w.Join(2 * time.Second) {
		t.Fatal("worker did not exit on Stop")
	}
}

func TestSingleSlotBurstLosesWakes(t *testing.T) {
	// Faithful single-slot behavior: N completions before the worker
	// runs collapse into one wake, so only one of N headers is
	// reclaimed until something raises again.
	q := NewHeaderQueue()
	s := NewSignal(SignalSingleSlot)
	var releases atomic.Int32

	const n = 4
	for i := 0; i < n; i++ {
		q.Push(countingHeader(&releases, new(atomic.Int32)))
		s.Raise()
	}

	w := NewWorker(Config{Queue: q, Signal: s, Active: func() bool { return true }})
	w.Start()
	defer func() {
		w.Stop()
		w.Join(time.Second)
	}()

	waitFor(t, "first release", func() bool { return releases.Load() == 1 })
	time.Sleep(20 * time.Millisecond)
	if got := releases.Load(); got != 1 {
		t.Fatalf("released %d of %d after a coalesced burst, want 1", got, n)
	}

	// Each further raise reclaims exactly one more.
	for want := int32(2); want <= n; want++ {
		s.Raise()
		waitFor(t, "next release", func() bool { return releases.Load() == want })
	}
}

func TestCountingBurstDrainsAll(t *testing.T) {
	// Hardened behavior: the counting signal preserves one wake per
	// completion, so a burst fired before the worker ever runs is fully
	// reclaimed with no extra nudging.
	q := NewHeaderQueue()
	s := NewSignal(SignalCounting)
	var releases atomic.Int32

	const n = 16
	for i := 0; i < n; i++ {
		q.Push(countingHeader(&releases, new(atomic.Int32)))
		s.Raise()
	}

	w := NewWorker(Config{Queue: q, Signal: s, Active: func() bool { return true }})
	w.Start()
	defer func() {
		w.Stop()
		w.Join(time.Second)
	}()

	waitFor(t, "burst fully reclaimed", func() bool { return releases.Load() == n })
	if !q.IsEmpty() {
		t.Error("queue not empty after counting burst")
	}
}
