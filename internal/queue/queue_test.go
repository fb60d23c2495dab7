package queue

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

// countingHeader builds a header whose release and unprepare calls are
// counted, for single-release assertions.
func countingHeader(releases, unprepares *atomic.Int32) *Header {
	return NewHeader(make([]byte, 8),
		func() error {
			unprepares.Add(1)
			return nil
		},
		func() {
			releases.Add(1)
		})
}

func TestHeaderReleaseExactlyOnce(t *testing.T) {
	var releases, unprepares atomic.Int32
	h := countingHeader(&releases, &unprepares)

	if h.Released() {
		t.Fatal("new header reports released")
	}

	h.Release()
	h.Release()
	h.Release()

	if !h.Released() {
		t.Error("header not marked released")
	}
	if got := releases.Load(); got != 1 {
		t.Errorf("onRelease ran %d times, want 1", got)
	}
	if got := unprepares.Load(); got != 1 {
		t.Errorf("unprepare ran %d times, want 1", got)
	}
}

func TestHeaderReleaseConcurrent(t *testing.T) {
	var releases, unprepares atomic.Int32
	h := countingHeader(&releases, &unprepares)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Release()
		}()
	}
	wg.Wait()

	if got := releases.Load(); got != 1 {
		t.Errorf("onRelease ran %d times, want 1", got)
	}
}

func TestQueueFIFO(t *testing.T) {
	q := NewHeaderQueue()
	if !q.IsEmpty() {
		t.Fatal("new queue not empty")
	}
	if q.PopOne() != nil {
		t.Fatal("PopOne on empty queue returned a header")
	}

	a := NewHeader(nil, nil, nil)
	b := NewHeader(nil, nil, nil)
	c := NewHeader(nil, nil, nil)
	q.Push(a)
	q.Push(b)
	q.Push(c)

	if q.Len() != 3 {
		t.Fatalf("Len = %d, want 3", q.Len())
	}
	for i, want := range []*Header{a, b, c} {
		if got := q.PopOne(); got != want {
			t.Fatalf("pop %d returned wrong header", i)
		}
	}
	if !q.IsEmpty() {
		t.Error("queue not empty after popping all")
	}
}

func TestDrainAllReleasesEverything(t *testing.T) {
	q := NewHeaderQueue()
	var releases, unprepares atomic.Int32
	for i := 0; i < 5; i++ {
		q.Push(countingHeader(&releases, &unprepares))
	}

	n := q.DrainAll()
	if n != 5 {
		t.Errorf("DrainAll returned %d, want 5", n)
	}
	if got := releases.Load(); got != 5 {
		t.Errorf("released %d headers, want 5", got)
	}
	if !q.IsEmpty() {
		t.Error("queue not empty after drain")
	}

	// Draining again is a no-op.
	if n := q.DrainAll(); n != 0 {
		t.Errorf("second DrainAll returned %d, want 0", n)
	}
}

func TestDrainAllConcurrentWithPush(t *testing.T) {
	// A push racing a drain must land strictly before or after it: every
	// header ends up either drained or still queued, released at most
	// once, and none lost.
	q := NewHeaderQueue()
	var releases atomic.Int32
	const pushers = 8
	const perPusher = 50

	var wg sync.WaitGroup
	for p := 0; p < pushers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perPusher; i++ {
				q.Push(countingHeader(&releases, new(atomic.Int32)))
			}
		}()
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			q.DrainAll()
			select {
			case <-stop:
				return
			default:
				runtime.Gosched()
			}
		}
	}()

	wg.Wait()
	close(stop)
	<-done
	q.DrainAll()

	if got := releases.Load(); got != pushers*perPusher {
		t.Errorf("released %d headers, want %d", got, pushers*perPusher)
	}
}
