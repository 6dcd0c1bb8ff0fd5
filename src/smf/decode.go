package smf

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const (
	chunkHeaderLen  = 8
	headerMinLength = 6
)

var (
	headerID = [4]byte{'M', 'T', 'h', 'd'}
	trackID  = [4]byte{'M', 'T', 'r', 'k'}
)

// Decode reads a whole Standard MIDI File from r and decodes it.
// On failure no partial File is returned.
func Decode(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read MIDI data")
	}
	return DecodeBytes(data)
}

// DecodeBytes decodes a Standard MIDI File held in memory.
func DecodeBytes(data []byte) (*File, error) {
	d := &decoder{data: data, track: -1}
	f, err := d.decodeFile()
	if err != nil {
		return nil, err
	}
	return f, nil
}

type decoder struct {
	data  []byte
	pos   int
	track int
}

func (d *decoder) fail(offset int, err error) error {
	return &DecodeError{Track: d.track, Offset: offset, Err: err}
}

func (d *decoder) failf(offset int, format string, args ...interface{}) error {
	return d.fail(offset, errors.Errorf(format, args...))
}

func (d *decoder) readChunkHeader() ([4]byte, []byte, int, error) {
	var id [4]byte
	start := d.pos
	if len(d.data)-d.pos < chunkHeaderLen {
		return id, nil, start, d.failf(start, "truncated chunk header")
	}
	copy(id[:], d.data[d.pos:d.pos+4])
	length := binary.BigEndian.Uint32(d.data[d.pos+4 : d.pos+8])
	d.pos += chunkHeaderLen
	if uint64(length) > uint64(len(d.data)-d.pos) {
		return id, nil, start, d.failf(start, "chunk %q declares %d bytes but only %d remain", id[:], length, len(d.data)-d.pos)
	}
	body := d.data[d.pos : d.pos+int(length)]
	d.pos += int(length)
	return id, body, start + chunkHeaderLen, nil
}

func (d *decoder) decodeFile() (*File, error) {
	id, body, bodyOffset, err := d.readChunkHeader()
	if err != nil {
		return nil, err
	}
	if id != headerID {
		return nil, d.failf(0, "expected MThd, got %q", id[:])
	}
	if len(body) < headerMinLength {
		return nil, d.failf(bodyOffset, "header length %d is shorter than %d", len(body), headerMinLength)
	}
	format := binary.BigEndian.Uint16(body[0:2])
	if format > 2 {
		return nil, d.failf(bodyOffset, "unsupported format %d", format)
	}
	ntrks := int(binary.BigEndian.Uint16(body[2:4]))
	division, err := parseDivision(binary.BigEndian.Uint16(body[4:6]))
	if err != nil {
		return nil, d.fail(bodyOffset+4, err)
	}
	f := &File{
		Format:   format,
		Division: division,
		Tracks:   make([]Track, 0, ntrks),
	}
	for len(f.Tracks) < ntrks {
		if d.pos >= len(d.data) {
			d.track = len(f.Tracks)
			return nil, d.failf(d.pos, "expected %d tracks, found %d", ntrks, len(f.Tracks))
		}
		d.track = len(f.Tracks)
		id, body, bodyOffset, err := d.readChunkHeader()
		if err != nil {
			return nil, err
		}
		if id != trackID {
			// alien chunk
			continue
		}
		events, err := d.decodeTrack(body, bodyOffset)
		if err != nil {
			return nil, err
		}
		f.Tracks = append(f.Tracks, Track{Events: events})
	}
	return f, nil
}

func parseDivision(raw uint16) (Division, error) {
	if raw&0x8000 == 0 {
		if raw == 0 {
			return Division{}, errors.New("division is zero")
		}
		return Division{TicksPerQuarter: raw}, nil
	}
	fps := -int(int8(raw >> 8))
	tpf := int(raw & 0xFF)
	switch fps {
	case 24, 25, 29, 30:
	default:
		return Division{}, errors.Errorf("unsupported SMPTE format %d", fps)
	}
	if tpf == 0 {
		return Division{}, errors.New("SMPTE ticks per frame is zero")
	}
	return Division{FramesPerSecond: fps, TicksPerFrame: tpf}, nil
}

// decodeTrack parses the body of one MTrk chunk. Running status is carried
// across meta and sysex events.
func (d *decoder) decodeTrack(body []byte, base int) ([]Event, error) {
	events := make([]Event, 0, len(body)/3)
	var status byte
	pos := 0
	for pos < len(body) {
		delta, n, err := ReadVLV(body[pos:])
		if err != nil {
			return nil, d.fail(base+pos, errors.Wrap(err, "delta time"))
		}
		pos += n
		if pos >= len(body) {
			return nil, d.failf(base+pos, "event missing after delta time")
		}
		eventOffset := pos
		c := body[pos]
		var ev Event
		switch {
		case c < 0x80:
			if status == 0 {
				return nil, d.failf(base+pos, "data byte 0x%02x without running status", c)
			}
			ev, n, err = decodeChannel(status, body[pos:])
		case c < 0xF0:
			status = c
			ev, n, err = decodeChannel(status, body[pos+1:])
			n++
		case c == 0xFF:
			ev, n, err = decodeMeta(body[pos+1:])
			n++
		case c == 0xF0 || c == 0xF7:
			ev, n, err = decodeSysEx(body[pos+1:])
			n++
		default:
			return nil, d.failf(base+pos, "unsupported system status 0x%02x", c)
		}
		if err != nil {
			return nil, d.fail(base+eventOffset, err)
		}
		pos += n
		ev.Delta = delta
		events = append(events, ev)
		if ev.IsEndOfTrack() {
			break
		}
	}
	return events, nil
}

func decodeChannel(status byte, b []byte) (Event, int, error) {
	kind := kindFromStatus(status)
	n := kind.dataLen()
	if len(b) < n {
		return Event{}, 0, errors.Errorf("truncated %v", kind)
	}
	data := make([]byte, n)
	for i := 0; i < n; i++ {
		if b[i] >= 0x80 {
			return Event{}, 0, errors.Errorf("%v: 0x%02x is not a data byte", kind, b[i])
		}
		data[i] = b[i]
	}
	return Event{Kind: kind, Channel: status & 0x0F, Data: data}, n, nil
}

func decodeMeta(b []byte) (Event, int, error) {
	if len(b) < 1 {
		return Event{}, 0, errors.New("truncated meta event")
	}
	meta := MetaKind(b[0])
	payload, n, err := readBlock(b[1:])
	if err != nil {
		return Event{}, 0, errors.Wrapf(err, "meta %v", meta)
	}
	if meta == MetaTempo && len(payload) != 3 {
		return Event{}, 0, errors.Errorf("tempo payload has %d bytes", len(payload))
	}
	return Event{Kind: KindMeta, Meta: meta, Data: payload}, n + 1, nil
}

func decodeSysEx(b []byte) (Event, int, error) {
	payload, n, err := readBlock(b)
	if err != nil {
		return Event{}, 0, errors.Wrap(err, "sysex")
	}
	return Event{Kind: KindSysEx, Data: payload}, n, nil
}

// readBlock reads a VLV length followed by that many bytes.
func readBlock(b []byte) ([]byte, int, error) {
	length, n, err := ReadVLV(b)
	if err != nil {
		return nil, 0, err
	}
	if uint64(length) > uint64(len(b)-n) {
		return nil, 0, errors.Errorf("block of %d bytes truncated", length)
	}
	payload := make([]byte, length)
	copy(payload, b[n:n+int(length)])
	return payload, n + int(length), nil
}
