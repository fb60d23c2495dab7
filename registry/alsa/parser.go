// Package alsa implements the mididev.Registry contract over raw ALSA
// rawmidi device nodes. Raw byte streams are assembled into messages by
// Parser; device nodes under /dev/snd are enumerated by Registry.
package alsa

import (
	"github.com/miditools/go-mididev/internal/constants"
	"github.com/miditools/go-mididev/midimsg"
)

// Sink receives assembled messages from a Parser. Callbacks run on the
// goroutine calling Feed.
type Sink struct {
	Short      func(raw uint32)
	ShortError func(raw uint32)
	Long       func(data []byte)
	LongError  func(data []byte)
}

// Parser assembles a raw MIDI byte stream into complete messages. It
// handles running status, real-time bytes interleaved anywhere in the
// stream (including inside SysEx), and SysEx payloads up to the maximum
// transfer size.
type Parser struct {
	sink Sink

	status byte // running status, 0 when none
	need   int  // data bytes the current message still needs
	data   [2]byte
	have   int

	inSysEx bool
	sysex   []byte
}

func NewParser(sink Sink) *Parser {
	return &Parser{sink: sink}
}

// Feed consumes one chunk of the stream. Complete messages are handed to
// the sink as they are recognized; partial state carries over to the next
// chunk.
func (p *Parser) Feed(chunk []byte) {
	for _, b := range chunk {
		p.feedByte(b)
	}
}

func (p *Parser) feedByte(b byte) {
	// Real-time bytes stand alone and may interrupt anything.
	if midimsg.IsRealTime(b) {
		p.emitShort(uint32(b))
		return
	}

	if b == midimsg.SysExStart {
		p.beginSysEx()
		return
	}
	if b == midimsg.SysExEnd {
		p.endSysEx()
		return
	}

	if midimsg.IsStatus(b) {
		// A new status byte aborts an unterminated SysEx.
		if p.inSysEx {
			p.abortSysEx()
		}
		p.beginMessage(b)
		return
	}

	// Data byte
	if p.inSysEx {
		p.appendSysEx(b)
		return
	}
	if p.status == 0 {
		// Stray data with no status to attach to
		if p.sink.ShortError != nil {
			p.sink.ShortError(uint32(b))
		}
		return
	}

	p.data[p.have] = b
	p.have++
	if p.have == p.need {
		// Pack only the bytes this message has; data[1] may still
		// hold a byte from the previous message.
		d2 := byte(0)
		if p.need == 2 {
			d2 = p.data[1]
		}
		p.emitShort(midimsg.PackShort(p.status, p.data[0], d2))
		p.have = 0
		// System common messages do not establish running status
		if p.status >= midimsg.SysExStart {
			p.status = 0
		}
	}
}

func (p *Parser) beginMessage(status byte) {
	n := midimsg.DataLen(status)
	if n <= 0 {
		// Zero-data system common message (TuneRequest)
		p.emitShort(uint32(status))
		p.status = 0
		p.have = 0
		p.need = 0
		return
	}
	p.status = status
	p.need = n
	p.have = 0
}

func (p *Parser) beginSysEx() {
	p.inSysEx = true
	p.status = 0
	p.have = 0
	if p.sysex == nil {
		p.sysex = make([]byte, 0, 256)
	}
	p.sysex = append(p.sysex[:0], midimsg.SysExStart)
}

func (p *Parser) appendSysEx(b byte) {
	if len(p.sysex) >= constants.MaxSysExBytes {
		p.abortSysEx()
		return
	}
	p.sysex = append(p.sysex, b)
}

func (p *Parser) endSysEx() {
	if !p.inSysEx {
		// EOX without a start
		if p.sink.ShortError != nil {
			p.sink.ShortError(uint32(midimsg.SysExEnd))
		}
		return
	}
	p.inSysEx = false
	p.sysex = append(p.sysex, midimsg.SysExEnd)
	if p.sink.Long != nil {
		p.sink.Long(p.sysex)
	}
}

func (p *Parser) abortSysEx() {
	p.inSysEx = false
	if p.sink.LongError != nil {
		p.sink.LongError(p.sysex)
	}
}

func (p *Parser) emitShort(raw uint32) {
	if p.sink.Short != nil {
		p.sink.Short(raw)
	}
}
