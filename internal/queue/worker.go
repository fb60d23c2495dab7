package queue

import (
	"time"

	"github.com/miditools/go-mididev/internal/logging"
)

// Worker is the reclamation task for one open session direction. It blocks
// on the completion signal; each wake that finds the session still active
// pops exactly one header and releases it. A wake that finds the session
// inactive makes the worker exit without popping, leaving the remaining
// headers to the teardown drain.
type Worker struct {
	queue  *HeaderQueue
	signal *Signal
	active func() bool
	logger *logging.Logger

	stop chan struct{}
	done chan struct{}
}

// Config wires a worker to its session.
type Config struct {
	Queue  *HeaderQueue
	Signal *Signal

	// Active reports whether the session is still in the state that
	// permits reclamation. It is read from the worker goroutine without
	// synchronization against state transitions; a stale answer only
	// delays the exit by one wake.
	Active func() bool

	Logger *logging.Logger
}

// NewWorker creates a worker; call Start to spawn its goroutine.
func NewWorker(config Config) *Worker {
	logger := config.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{
		queue:  config.Queue,
		signal: config.Signal,
		active: config.Active,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start spawns the reclamation goroutine.
func (w *Worker) Start() {
	go w.run()
}

// Stop makes the worker exit at its next scheduling opportunity, including
// while blocked on the signal. It is safe to call more than once.
func (w *Worker) Stop() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
}

// Join blocks until the worker goroutine has exited or the timeout
// elapses. It reports whether the worker exited in time.
func (w *Worker) Join(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-w.done:
		return true
	case <-timer.C:
		w.logger.Warn("reclamation worker did not exit", "timeout", timeout)
		return false
	}
}

func (w *Worker) run() {
	defer close(w.done)
	for {
		if !w.signal.Wait(w.stop) {
			return
		}
		if !w.active() {
			return
		}
		if h := w.queue.PopOne(); h != nil {
			h.Release()
		}
	}
}
