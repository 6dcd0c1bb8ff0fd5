package smf

import (
	"math"
	"sort"
)

// DefaultTempo is the tempo in effect before any Set-Tempo event (120 BPM).
const DefaultTempo = 500000

// TempoChange is a Set-Tempo event at an absolute tick.
type TempoChange struct {
	Tick             uint64
	MicrosPerQuarter uint32
}

type tempoSegment struct {
	tick             uint64
	micros           float64 // elapsed time at tick
	microsPerQuarter uint32
}

// TempoMap converts absolute ticks to elapsed time.
type TempoMap struct {
	division Division
	segments []tempoSegment
}

// NewTempoMap builds a map from tempo changes in any order. When several
// changes share a tick, the one listed last wins.
func NewTempoMap(division Division, changes []TempoChange) *TempoMap {
	sorted := make([]TempoChange, len(changes))
	copy(sorted, changes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Tick < sorted[j].Tick
	})
	m := &TempoMap{
		division: division,
		segments: []tempoSegment{{tick: 0, micros: 0, microsPerQuarter: DefaultTempo}},
	}
	for _, c := range sorted {
		last := &m.segments[len(m.segments)-1]
		if c.Tick == last.tick {
			last.microsPerQuarter = c.MicrosPerQuarter
			continue
		}
		m.segments = append(m.segments, tempoSegment{
			tick:             c.Tick,
			micros:           last.micros + m.span(c.Tick-last.tick, last.microsPerQuarter),
			microsPerQuarter: c.MicrosPerQuarter,
		})
	}
	return m
}

func (m *TempoMap) span(ticks uint64, microsPerQuarter uint32) float64 {
	return float64(ticks) * float64(microsPerQuarter) / float64(m.division.TicksPerQuarter)
}

// Micros returns the time elapsed from tick 0 to tick.
func (m *TempoMap) Micros(tick uint64) float64 {
	if m.division.IsSMPTE() {
		return float64(tick) * m.division.MicrosPerTick()
	}
	i := sort.Search(len(m.segments), func(i int) bool {
		return m.segments[i].tick > tick
	}) - 1
	seg := m.segments[i]
	return seg.micros + m.span(tick-seg.tick, seg.microsPerQuarter)
}

// SampleOffset returns the sample index at which tick falls.
func (m *TempoMap) SampleOffset(tick uint64, sampleRate int) int64 {
	return int64(math.Round(m.Micros(tick) * float64(sampleRate) / 1e6))
}

// TempoAt returns microseconds per quarter note in effect at tick.
func (m *TempoMap) TempoAt(tick uint64) uint32 {
	i := sort.Search(len(m.segments), func(i int) bool {
		return m.segments[i].tick > tick
	}) - 1
	return m.segments[i].microsPerQuarter
}

// TempoChanges collects Set-Tempo events of the given tracks at absolute ticks.
func (f *File) TempoChanges(tracks ...int) []TempoChange {
	var changes []TempoChange
	for _, ti := range tracks {
		tick := uint64(0)
		for i := range f.Tracks[ti].Events {
			ev := &f.Tracks[ti].Events[i]
			tick += uint64(ev.Delta)
			if us, ok := ev.Tempo(); ok {
				changes = append(changes, TempoChange{Tick: tick, MicrosPerQuarter: us})
			}
		}
	}
	return changes
}

// TempoMap returns the map shared by all tracks of a format 0 or 1 file.
func (f *File) TempoMap() *TempoMap {
	all := make([]int, len(f.Tracks))
	for i := range all {
		all[i] = i
	}
	return NewTempoMap(f.Division, f.TempoChanges(all...))
}

// TrackTempoMap returns the map of a single track, as used by format 2 files.
func (f *File) TrackTempoMap(track int) *TempoMap {
	return NewTempoMap(f.Division, f.TempoChanges(track))
}
