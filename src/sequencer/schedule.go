package sequencer

import (
	"sort"
	"time"

	"github.com/jinjor/desktop-synth/src/audio"
	"github.com/jinjor/desktop-synth/src/smf"
	"github.com/pkg/errors"
)

// ScheduledEvent is a track event placed on the output sample timeline.
type ScheduledEvent struct {
	Offset int64  // absolute sample offset
	Tick   uint64 // absolute tick within its track
	Track  int
	Index  int // position within the track
	Event  *smf.Event
}

// Schedule is the merged, time-ordered event list of a file.
type Schedule struct {
	SampleRate int
	Events     []ScheduledEvent
	// End is the sample offset of the last End-of-Track.
	End int64
}

// NewSchedule converts every event of f to an absolute sample offset and
// merges the tracks. Events at the same offset keep (track, index) order.
//
// Tracks of format 0 and 1 files share one tempo map built from the
// Set-Tempo events of all tracks. Tracks of format 2 files are independent
// sequences and are played one after another, each with its own tempo map.
func NewSchedule(f *smf.File, sampleRate int) (*Schedule, error) {
	if f == nil {
		return nil, errors.New("no file to schedule")
	}
	if sampleRate <= 0 {
		return nil, errors.Wrapf(audio.ErrInvalidParameter, "sample rate %d", sampleRate)
	}
	s := &Schedule{SampleRate: sampleRate}
	n := 0
	for i := range f.Tracks {
		n += len(f.Tracks[i].Events)
	}
	s.Events = make([]ScheduledEvent, 0, n)

	var shared *smf.TempoMap
	if f.Format != 2 {
		shared = f.TempoMap()
	}
	start := int64(0)
	for ti := range f.Tracks {
		tm := shared
		if tm == nil {
			tm = f.TrackTempoMap(ti)
		}
		end := start + s.appendTrack(f, ti, tm, start)
		if f.Format == 2 {
			start = end
		}
		if end > s.End {
			s.End = end
		}
	}
	sort.Slice(s.Events, func(i, j int) bool {
		a, b := &s.Events[i], &s.Events[j]
		if a.Offset != b.Offset {
			return a.Offset < b.Offset
		}
		if a.Track != b.Track {
			return a.Track < b.Track
		}
		return a.Index < b.Index
	})
	return s, nil
}

// appendTrack schedules one track starting at start and returns the
// length of the track in samples.
func (s *Schedule) appendTrack(f *smf.File, track int, tm *smf.TempoMap, start int64) int64 {
	events := f.Tracks[track].Events
	tick := uint64(0)
	for i := range events {
		ev := &events[i]
		tick += uint64(ev.Delta)
		s.Events = append(s.Events, ScheduledEvent{
			Offset: start + tm.SampleOffset(tick, s.SampleRate),
			Tick:   tick,
			Track:  track,
			Index:  i,
			Event:  ev,
		})
	}
	// a track without End-of-Track ends at its last event
	return tm.SampleOffset(tick, s.SampleRate)
}

// Duration returns the playback time up to the last End-of-Track.
func (s *Schedule) Duration() time.Duration {
	return time.Duration(float64(s.End) / float64(s.SampleRate) * float64(time.Second))
}

// maxEventsWithin returns the largest number of events whose offsets fall
// inside any window of the given number of frames.
func (s *Schedule) maxEventsWithin(frames int64) int {
	max := 0
	lo := 0
	for hi := range s.Events {
		for s.Events[hi].Offset-s.Events[lo].Offset >= frames {
			lo++
		}
		if n := hi - lo + 1; n > max {
			max = n
		}
	}
	return max
}

// commandFromEvent converts a channel event into an engine command.
// Meta and sysex events have no command.
func commandFromEvent(ev *smf.Event) (audio.Command, bool) {
	switch ev.Kind {
	case smf.KindNoteOn:
		return audio.NoteOn(ev.Channel, ev.Note(), ev.Velocity()), true
	case smf.KindNoteOff:
		return audio.NoteOff(ev.Channel, ev.Note()), true
	case smf.KindControlChange:
		return audio.ControlChange(ev.Channel, ev.Controller(), ev.Value()), true
	case smf.KindProgramChange:
		return audio.ProgramChange(ev.Channel, ev.Program()), true
	case smf.KindPitchBend:
		return audio.PitchBend(ev.Channel, ev.PitchBend()), true
	case smf.KindChannelPressure:
		return audio.Command{Kind: audio.CmdChannelPressure, Channel: ev.Channel, Data1: ev.Velocity()}, true
	case smf.KindPolyAftertouch:
		return audio.Command{Kind: audio.CmdPolyAftertouch, Channel: ev.Channel, Data1: ev.Note(), Data2: ev.Velocity()}, true
	}
	return audio.Command{}, false
}
