// Package midimsg packs and unpacks fixed-size MIDI messages.
//
// A short message travels by value as a single uint32: the status byte in
// the low byte, the first data byte shifted up 8 bits, the second shifted
// up 16. Channel messages split the status byte into a command high nibble
// and a channel low nibble. All functions here are pure; round-tripping a
// message through Pack and Unpack returns the original bytes for every
// input value.
package midimsg

// Status bytes for channel voice messages. The low nibble carries the
// channel and is zero in these constants.
const (
	NoteOff         uint8 = 0x80
	NoteOn          uint8 = 0x90
	PolyPressure    uint8 = 0xA0
	ControlChange   uint8 = 0xB0
	ProgramChange   uint8 = 0xC0
	ChannelPressure uint8 = 0xD0
	PitchBend       uint8 = 0xE0
)

// System common and real-time status bytes.
const (
	SysExStart    uint8 = 0xF0
	SysExEnd      uint8 = 0xF7
	TimingClock   uint8 = 0xF8
	Start         uint8 = 0xFA
	Continue      uint8 = 0xFB
	Stop          uint8 = 0xFC
	ActiveSensing uint8 = 0xFE
	SystemReset   uint8 = 0xFF
)

const (
	// shift is the bit offset between consecutive bytes of a packed
	// short message.
	shift = 8

	// channelMask selects the channel nibble of a status byte.
	channelMask = 0x0F
)

// PackShort packs a status byte and two data bytes into a raw short
// message.
func PackShort(status, data1, data2 uint8) uint32 {
	return uint32(status) |
		uint32(data1)<<shift |
		uint32(data2)<<(shift*2)
}

// UnpackShort splits a raw short message into its status byte and two data
// bytes.
func UnpackShort(raw uint32) (status, data1, data2 uint8) {
	status = uint8(raw)
	data1 = uint8(raw >> shift)
	data2 = uint8(raw >> (shift * 2))
	return
}

// PackChannel packs a channel voice message. Only the high nibble of
// command and the low nibble of channel contribute to the status byte.
func PackChannel(command, channel, data1, data2 uint8) uint32 {
	status := (command &^ channelMask) | (channel & channelMask)
	return PackShort(status, data1, data2)
}

// UnpackChannel splits a raw short message into command, channel, and the
// two data bytes.
func UnpackChannel(raw uint32) (command, channel, data1, data2 uint8) {
	status, data1, data2 := UnpackShort(raw)
	command = status &^ channelMask
	channel = status & channelMask
	return
}

// IsStatus reports whether b is a status byte rather than a data byte.
func IsStatus(b uint8) bool { return b&0x80 != 0 }

// IsRealTime reports whether b is a system real-time status byte. Real-time
// bytes may appear in the middle of any message, including SysEx.
func IsRealTime(b uint8) bool { return b >= TimingClock }

// DataLen returns the number of data bytes that follow the given status
// byte, or -1 for SysEx start, whose length is determined by a trailing
// SysExEnd byte.
func DataLen(status uint8) int {
	switch status & 0xF0 {
	case NoteOff, NoteOn, PolyPressure, ControlChange, PitchBend:
		return 2
	case ProgramChange, ChannelPressure:
		return 1
	}
	switch status {
	case SysExStart:
		return -1
	case 0xF1, 0xF3: // MTC quarter frame, song select
		return 1
	case 0xF2: // song position pointer
		return 2
	}
	return 0
}
