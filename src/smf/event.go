package smf

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ----- Event Kind ----- //

// Kind is the category of a track event.
type Kind uint8

const (
	KindNoteOff Kind = iota
	KindNoteOn
	KindPolyAftertouch
	KindControlChange
	KindProgramChange
	KindChannelPressure
	KindPitchBend
	KindMeta
	KindSysEx
)

var kindNames = [...]string{
	KindNoteOff:         "note-off",
	KindNoteOn:          "note-on",
	KindPolyAftertouch:  "poly-aftertouch",
	KindControlChange:   "control-change",
	KindProgramChange:   "program-change",
	KindChannelPressure: "channel-pressure",
	KindPitchBend:       "pitch-bend",
	KindMeta:            "meta",
	KindSysEx:           "sysex",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// IsChannel reports whether k is a channel voice message.
func (k Kind) IsChannel() bool {
	return k <= KindPitchBend
}

// kindFromStatus maps the high nibble of a channel status byte.
func kindFromStatus(status byte) Kind {
	return Kind(status>>4 - 0x8)
}

// dataLen is the number of data bytes following a channel status.
func (k Kind) dataLen() int {
	switch k {
	case KindProgramChange, KindChannelPressure:
		return 1
	default:
		return 2
	}
}

// ----- Meta Kind ----- //

// MetaKind is the type byte of a meta event.
type MetaKind uint8

const (
	MetaSequenceNumber    MetaKind = 0x00
	MetaText              MetaKind = 0x01
	MetaCopyright         MetaKind = 0x02
	MetaTrackName         MetaKind = 0x03
	MetaInstrumentName    MetaKind = 0x04
	MetaLyric             MetaKind = 0x05
	MetaMarker            MetaKind = 0x06
	MetaCuePoint          MetaKind = 0x07
	MetaChannelPrefix     MetaKind = 0x20
	MetaEndOfTrack        MetaKind = 0x2F
	MetaTempo             MetaKind = 0x51
	MetaSMPTEOffset       MetaKind = 0x54
	MetaTimeSignature     MetaKind = 0x58
	MetaKeySignature      MetaKind = 0x59
	MetaSequencerSpecific MetaKind = 0x7F
)

// IsText reports whether the payload of m is text.
func (m MetaKind) IsText() bool {
	return m >= MetaText && m <= MetaCuePoint
}

func (m MetaKind) String() string {
	switch m {
	case MetaSequenceNumber:
		return "sequence-number"
	case MetaText:
		return "text"
	case MetaCopyright:
		return "copyright"
	case MetaTrackName:
		return "track-name"
	case MetaInstrumentName:
		return "instrument-name"
	case MetaLyric:
		return "lyric"
	case MetaMarker:
		return "marker"
	case MetaCuePoint:
		return "cue-point"
	case MetaChannelPrefix:
		return "channel-prefix"
	case MetaEndOfTrack:
		return "end-of-track"
	case MetaTempo:
		return "tempo"
	case MetaSMPTEOffset:
		return "smpte-offset"
	case MetaTimeSignature:
		return "time-signature"
	case MetaKeySignature:
		return "key-signature"
	case MetaSequencerSpecific:
		return "sequencer-specific"
	}
	return fmt.Sprintf("meta(0x%02x)", uint8(m))
}

// ----- Event ----- //

// Event is one decoded track event. Events are never modified after decoding.
type Event struct {
	Delta   uint32 // ticks since the previous event on the same track
	Kind    Kind
	Channel uint8    // 0-15, channel kinds only
	Meta    MetaKind // KindMeta only
	// Data holds the data bytes of a channel message, or the payload of a
	// meta or sysex event.
	Data []byte
}

func (e *Event) data(i int) uint8 {
	if i < len(e.Data) {
		return e.Data[i]
	}
	return 0
}

// Note is the key of a note or aftertouch event.
func (e *Event) Note() uint8 {
	return e.data(0)
}

// Velocity is the velocity of a note event or the pressure of an aftertouch event.
func (e *Event) Velocity() uint8 {
	if e.Kind == KindChannelPressure {
		return e.data(0)
	}
	return e.data(1)
}

// Controller is the controller number of a control change.
func (e *Event) Controller() uint8 {
	return e.data(0)
}

// Value is the controller value of a control change.
func (e *Event) Value() uint8 {
	return e.data(1)
}

// Program is the program number of a program change.
func (e *Event) Program() uint8 {
	return e.data(0)
}

// PitchBend returns the bend amount centered on zero (-8192 to 8191).
func (e *Event) PitchBend() int {
	return (int(e.data(1)&0x7F)<<7 | int(e.data(0)&0x7F)) - 8192
}

// IsNoteOn reports a Note-On with non-zero velocity.
func (e *Event) IsNoteOn() bool {
	return e.Kind == KindNoteOn && e.Velocity() > 0
}

// IsNoteOff reports a Note-Off, including Note-On with zero velocity.
func (e *Event) IsNoteOff() bool {
	return e.Kind == KindNoteOff || e.Kind == KindNoteOn && e.Velocity() == 0
}

// IsEndOfTrack reports the End-of-Track meta event.
func (e *Event) IsEndOfTrack() bool {
	return e.Kind == KindMeta && e.Meta == MetaEndOfTrack
}

// Tempo returns microseconds per quarter note of a Set-Tempo event.
func (e *Event) Tempo() (uint32, bool) {
	if e.Kind != KindMeta || e.Meta != MetaTempo || len(e.Data) != 3 {
		return 0, false
	}
	var b [4]byte
	copy(b[1:], e.Data)
	return binary.BigEndian.Uint32(b[:]), true
}

// Text returns the payload of a text meta event as printable ASCII.
func (e *Event) Text() string {
	if e.Kind != KindMeta || !e.Meta.IsText() {
		return ""
	}
	return escapeASCII(e.Data)
}

func (e Event) String() string {
	switch {
	case e.Kind.IsChannel():
		return fmt.Sprintf("+%d %v ch=%d %v", e.Delta, e.Kind, e.Channel, e.Data)
	case e.Kind == KindMeta && e.Meta.IsText():
		return fmt.Sprintf("+%d %v %q", e.Delta, e.Meta, e.Text())
	case e.Kind == KindMeta:
		return fmt.Sprintf("+%d %v % x", e.Delta, e.Meta, e.Data)
	default:
		return fmt.Sprintf("+%d %v %d bytes", e.Delta, e.Kind, len(e.Data))
	}
}

func escapeASCII(data []byte) string {
	var sb strings.Builder
	for _, c := range data {
		switch c {
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		case '\n':
			sb.WriteString(`\n`)
		case '\\':
			sb.WriteString(`\\`)
		case '\'':
			sb.WriteString(`\'`)
		case '"':
			sb.WriteString(`\"`)
		default:
			if c >= 0x20 && c < 0x7F {
				sb.WriteByte(c)
			} else {
				fmt.Fprintf(&sb, `\x%02x`, c)
			}
		}
	}
	return sb.String()
}

// ----- Track / File ----- //

// Track is the ordered event list of one MTrk chunk.
type Track struct {
	Events []Event
}

// Name returns the first track name meta event, if any.
func (t *Track) Name() string {
	for i := range t.Events {
		if t.Events[i].Kind == KindMeta && t.Events[i].Meta == MetaTrackName {
			return t.Events[i].Text()
		}
	}
	return ""
}

// Division is the time base of a file.
type Division struct {
	TicksPerQuarter uint16 // metrical time; zero when SMPTE
	FramesPerSecond int    // 24, 25, 29 (drop frame) or 30
	TicksPerFrame   int
}

// IsSMPTE reports timecode-based division.
func (d Division) IsSMPTE() bool {
	return d.FramesPerSecond != 0
}

// MicrosPerTick returns the tick length for SMPTE division, which does not depend on tempo.
func (d Division) MicrosPerTick() float64 {
	fps := float64(d.FramesPerSecond)
	if d.FramesPerSecond == 29 {
		fps = 29.97
	}
	return 1e6 / (fps * float64(d.TicksPerFrame))
}

func (d Division) String() string {
	if d.IsSMPTE() {
		return fmt.Sprintf("%d fps x %d ticks", d.FramesPerSecond, d.TicksPerFrame)
	}
	return fmt.Sprintf("%d ticks/quarter", d.TicksPerQuarter)
}

// File is a decoded Standard MIDI File. It is immutable once returned from Decode.
type File struct {
	Format   uint16 // 0, 1 or 2
	Division Division
	Tracks   []Track
}
