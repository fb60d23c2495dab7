//go:build linux

package alsa

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/miditools/go-mididev"
	"github.com/miditools/go-mididev/internal/logging"
	"github.com/miditools/go-mididev/internal/queue"
	"github.com/miditools/go-mididev/midimsg"
)

const defaultSndDir = "/dev/snd"

// Registry enumerates rawmidi device nodes (midiC<card>D<dev>) and opens
// them as session ports.
type Registry struct {
	root   string
	logger *logging.Logger
}

// New creates a registry over /dev/snd.
func New() *Registry {
	return NewWithRoot(defaultSndDir)
}

// NewWithRoot creates a registry over an alternate device directory.
func NewWithRoot(root string) *Registry {
	return &Registry{
		root:   root,
		logger: logging.Default(),
	}
}

func (r *Registry) enumerate(direction mididev.Direction) ([]mididev.DeviceInfo, error) {
	nodes, err := filepath.Glob(filepath.Join(r.root, "midiC*D*"))
	if err != nil {
		return nil, mididev.WrapError("ENUMERATE", err)
	}
	sort.Strings(nodes)

	infos := make([]mididev.DeviceInfo, 0, len(nodes))
	for i, node := range nodes {
		infos = append(infos, mididev.DeviceInfo{
			ID:        i,
			Name:      filepath.Base(node),
			Direction: direction,
		})
	}
	return infos, nil
}

// Inputs implements the mididev.Registry interface. Rawmidi nodes are
// bidirectional, so inputs and outputs enumerate the same nodes.
func (r *Registry) Inputs() ([]mididev.DeviceInfo, error) {
	return r.enumerate(mididev.DirectionInput)
}

// Outputs implements the mididev.Registry interface.
func (r *Registry) Outputs() ([]mididev.DeviceInfo, error) {
	return r.enumerate(mididev.DirectionOutput)
}

func (r *Registry) node(direction mididev.Direction, deviceID int) (string, error) {
	infos, err := r.enumerate(direction)
	if err != nil {
		return "", err
	}
	if deviceID < 0 || deviceID >= len(infos) {
		return "", mididev.NewDeviceError("OPEN", deviceID, mididev.ErrCodeDeviceNotFound,
			fmt.Sprintf("no rawmidi node for device %d", deviceID))
	}
	return filepath.Join(r.root, infos[deviceID].Name), nil
}

// OpenInput implements the mididev.Registry interface.
func (r *Registry) OpenInput(deviceID int, cb mididev.EventFunc) (mididev.Port, error) {
	node, err := r.node(mididev.DirectionInput, deviceID)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Open(node, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, mididev.WrapDeviceError("OPEN", deviceID, err)
	}

	p := &inPort{
		fd:     fd,
		cb:     cb,
		opened: time.Now(),
		logger: r.logger.WithDevice(deviceID).WithDirection(mididev.DirectionInput.String()),
	}
	p.parser = NewParser(Sink{
		Short:      p.deliverShort,
		ShortError: p.deliverShortError,
		Long:       p.deliverLong,
		LongError:  p.deliverLongError,
	})
	return p, nil
}

// OpenOutput implements the mididev.Registry interface.
func (r *Registry) OpenOutput(deviceID int, cb mididev.EventFunc) (mididev.Port, error) {
	node, err := r.node(mididev.DirectionOutput, deviceID)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Open(node, unix.O_WRONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, mididev.WrapDeviceError("OPEN", deviceID, err)
	}

	p := &outPort{
		fd:          fd,
		cb:          cb,
		opened:      time.Now(),
		completions: make(chan completion, 64),
		done:        make(chan struct{}),
		logger:      r.logger.WithDevice(deviceID).WithDirection(mididev.DirectionOutput.String()),
	}
	go p.completer()
	return p, nil
}

// record is the driver-side buffer descriptor for both port directions.
type record struct {
	buf    []byte
	queued bool
}

func (r *record) Bytes() []byte { return r.buf }

// inPort reads a rawmidi node. A pump goroutine, running between Start
// and Stop, polls the descriptor and feeds the stream parser; assembled
// long messages land in the oldest submitted record.
type inPort struct {
	fd     int
	cb     mididev.EventFunc
	parser *Parser
	opened time.Time
	logger *logging.Logger

	mu       sync.Mutex
	pending  []*record
	closed   bool
	started  bool
	dropped  uint64 // long messages with no buffer to land in
	cancelW  int
	pumpDone chan struct{}
}

func (p *inPort) timestamp() time.Duration { return time.Since(p.opened) }

func (p *inPort) deliverShort(raw uint32) {
	p.cb(mididev.Event{Kind: mididev.EventShort, Raw: raw, Timestamp: p.timestamp()})
}

func (p *inPort) deliverShortError(raw uint32) {
	p.cb(mididev.Event{Kind: mididev.EventShortError, Raw: raw, Timestamp: p.timestamp()})
}

// deliverLong copies an assembled SysEx into the oldest submitted record
// and completes it. With no record armed the message is dropped, matching
// driver behavior when the application supplies no buffers.
func (p *inPort) deliverLong(data []byte) {
	rec := p.popPending()
	if rec == nil {
		p.mu.Lock()
		p.dropped++
		p.mu.Unlock()
		p.logger.Warn("long message dropped, no receive buffer armed", "bytes", len(data))
		return
	}
	n := copy(rec.buf, data)
	p.cb(mididev.Event{Kind: mididev.EventLong, Data: rec.buf[:n], Timestamp: p.timestamp()})
}

func (p *inPort) deliverLongError(data []byte) {
	rec := p.popPending()
	if rec == nil {
		return
	}
	n := copy(rec.buf, data)
	p.cb(mididev.Event{Kind: mididev.EventLongError, Data: rec.buf[:n], Timestamp: p.timestamp()})
}

func (p *inPort) popPending() *record {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		return nil
	}
	rec := p.pending[0]
	p.pending = p.pending[1:]
	rec.queued = false
	return rec
}

// Start implements the mididev.Port interface.
func (p *inPort) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return unix.EBADF
	}
	if p.started {
		return nil
	}

	var pipeFds [2]int
	if err := unix.Pipe2(pipeFds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		return err
	}
	p.cancelW = pipeFds[1]
	p.pumpDone = make(chan struct{})
	p.started = true

	go p.pump(pipeFds[0])
	return nil
}

// Stop implements the mididev.Port interface.
func (p *inPort) Stop() error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	cancelW := p.cancelW
	done := p.pumpDone
	p.mu.Unlock()

	_, _ = unix.Write(cancelW, []byte{0})
	<-done
	_ = unix.Close(cancelW)
	return nil
}

// pump reads the stream until the cancel pipe fires or the descriptor
// errors out. It owns cancelR and closes it on exit.
func (p *inPort) pump(cancelR int) {
	defer close(p.pumpDone)
	defer unix.Close(cancelR)

	buf := queue.GetBuffer(4096)
	defer queue.PutBuffer(buf)

	fds := []unix.PollFd{
		{Fd: int32(p.fd), Events: unix.POLLIN},
		{Fd: int32(cancelR), Events: unix.POLLIN},
	}

	for {
		fds[0].Revents = 0
		fds[1].Revents = 0

		_, err := unix.Poll(fds, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			p.logger.WithError(err).Error("poll failed, stopping stream pump")
			return
		}
		if fds[1].Revents != 0 {
			return
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLHUP) != 0 {
			p.logger.Warn("device descriptor hung up")
			return
		}
		if fds[0].Revents&unix.POLLIN == 0 {
			continue
		}

		n, err := unix.Read(p.fd, buf)
		if n > 0 {
			p.parser.Feed(buf[:n])
		}
		if err != nil && err != unix.EAGAIN {
			p.logger.WithError(err).Error("read failed, stopping stream pump")
			return
		}
	}
}

// Reset implements the mididev.Port interface.
func (p *inPort) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, rec := range p.pending {
		rec.queued = false
	}
	p.pending = nil
	return nil
}

// Close implements the mididev.Port interface.
func (p *inPort) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return unix.Close(p.fd)
}

// Prepare implements the mididev.Port interface.
func (p *inPort) Prepare(buf []byte) (mididev.Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, unix.EBADF
	}
	return &record{buf: buf}, nil
}

// Unprepare implements the mididev.Port interface.
func (p *inPort) Unprepare(b mididev.Buffer) error {
	rec, ok := b.(*record)
	if !ok {
		return unix.EINVAL
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if rec.queued {
		return unix.EBUSY
	}
	return nil
}

// Submit implements the mididev.Port interface.
func (p *inPort) Submit(b mididev.Buffer) error {
	rec, ok := b.(*record)
	if !ok {
		return unix.EINVAL
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return unix.EBADF
	}
	rec.queued = true
	p.pending = append(p.pending, rec)
	return nil
}

// SendShort implements the mididev.Port interface.
func (p *inPort) SendShort(uint32) error {
	return unix.EOPNOTSUPP
}

type completion struct {
	kind mididev.EventKind
	data []byte
	ts   time.Duration
}

// outPort writes to a rawmidi node. Long message completions are
// delivered from a dedicated goroutine, keeping the write path free of
// session callbacks.
type outPort struct {
	fd     int
	cb     mididev.EventFunc
	opened time.Time
	logger *logging.Logger

	completions chan completion
	done        chan struct{}

	mu     sync.Mutex
	closed bool
}

func (p *outPort) completer() {
	defer close(p.done)
	for c := range p.completions {
		p.cb(mididev.Event{Kind: c.kind, Data: c.data, Timestamp: c.ts})
	}
}

func (p *outPort) timestamp() time.Duration { return time.Since(p.opened) }

// Start implements the mididev.Port interface. Output nodes need no
// explicit start.
func (p *outPort) Start() error { return nil }

// Stop implements the mididev.Port interface.
func (p *outPort) Stop() error { return nil }

// Reset implements the mididev.Port interface. Writes are synchronous, so
// there is nothing in flight to abort.
func (p *outPort) Reset() error { return nil }

// Close implements the mididev.Port interface.
func (p *outPort) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.completions)
	<-p.done
	return unix.Close(p.fd)
}

// Prepare implements the mididev.Port interface.
func (p *outPort) Prepare(buf []byte) (mididev.Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, unix.EBADF
	}
	return &record{buf: buf}, nil
}

// Unprepare implements the mididev.Port interface.
func (p *outPort) Unprepare(b mididev.Buffer) error {
	if _, ok := b.(*record); !ok {
		return unix.EINVAL
	}
	return nil
}

// Submit implements the mididev.Port interface: the whole buffer is
// written out, then its completion is queued for asynchronous delivery.
func (p *outPort) Submit(b mididev.Buffer) error {
	rec, ok := b.(*record)
	if !ok {
		return unix.EINVAL
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return unix.EBADF
	}
	if err := writeAll(p.fd, rec.buf); err != nil {
		return err
	}

	select {
	case p.completions <- completion{kind: mididev.EventLong, data: rec.buf, ts: p.timestamp()}:
	default:
		p.logger.Warn("completion queue full, delivering inline")
		p.cb(mididev.Event{Kind: mididev.EventLong, Data: rec.buf, Timestamp: p.timestamp()})
	}
	return nil
}

// SendShort implements the mididev.Port interface.
func (p *outPort) SendShort(raw uint32) error {
	status, d1, d2 := midimsg.UnpackShort(raw)

	var msg [3]byte
	msg[0] = status
	n := midimsg.DataLen(status)
	if n < 0 {
		return unix.EINVAL
	}
	msg[1] = d1
	msg[2] = d2

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return unix.EBADF
	}
	return writeAll(p.fd, msg[:1+n])
}

func writeAll(fd int, buf []byte) error {
	for len(buf) > 0 {
		n, err := unix.Write(fd, buf)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

var (
	_ mididev.Registry = (*Registry)(nil)
	_ mididev.Port     = (*inPort)(nil)
	_ mididev.Port     = (*outPort)(nil)
	_ mididev.Buffer   = (*record)(nil)
)
