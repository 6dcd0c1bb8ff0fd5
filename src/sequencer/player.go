package sequencer

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jinjor/desktop-synth/src/audio"
	"github.com/pkg/errors"
)

// DefaultMaxTail bounds the release tail rendered after the last End-of-Track.
const DefaultMaxTail = 5 * time.Second

// ----- Player ----- //

// Player feeds a Schedule into an Engine. Render belongs to the audio
// context; Stop and Done may be called from any goroutine.
type Player struct {
	ID       uuid.UUID
	engine   *audio.Engine
	schedule *Schedule
	next     int   // next event to dispatch
	pos      int64 // frames rendered so far
	maxTail  int64
	pending  []audio.Command
	stopping bool
	stopAt   int64
	stopped  atomic.Bool
	done     atomic.Bool
}

// NewPlayer prepares s for playback on e. Voices still sounding maxTail
// after the end of the schedule are cut off.
func NewPlayer(e *audio.Engine, s *Schedule, maxTail time.Duration) (*Player, error) {
	if s.SampleRate != e.SampleRate() {
		return nil, errors.Wrapf(audio.ErrInvalidParameter, "schedule is for %d Hz, engine runs at %d Hz", s.SampleRate, e.SampleRate())
	}
	if maxTail < 0 {
		return nil, errors.Wrapf(audio.ErrInvalidParameter, "max tail %v", maxTail)
	}
	return &Player{
		ID:       uuid.New(),
		engine:   e,
		schedule: s,
		maxTail:  int64(maxTail.Seconds() * float64(e.SampleRate())),
		// one extra slot for the stop command
		pending: make([]audio.Command, 0, s.maxEventsWithin(int64(e.BlockSize()))+1),
	}, nil
}

// Render renders the next len(out) interleaved samples.
func (p *Player) Render(out []float32) {
	channels := p.engine.Channels()
	blockSize := p.engine.BlockSize()
	frames := len(out) / channels
	for base := 0; base < frames; base += blockSize {
		n := frames - base
		if n > blockSize {
			n = blockSize
		}
		p.renderBlock(out[base*channels:(base+n)*channels], n)
	}
}

func (p *Player) renderBlock(out []float32, frames int) {
	events := p.schedule.Events
	pending := p.pending[:0]
	if p.stopped.Load() && !p.stopping {
		p.stopping = true
		p.stopAt = p.pos
		p.next = len(events)
		pending = append(pending, audio.Stop(audio.StopSoft))
	}
	if p.tailExpired() {
		pending = append(pending, audio.Stop(audio.StopHard))
	}
	end := p.pos + int64(frames)
	for p.next < len(events) && events[p.next].Offset < end {
		se := &events[p.next]
		p.next++
		c, ok := commandFromEvent(se.Event)
		if !ok {
			continue
		}
		c.Offset = int(se.Offset - p.pos)
		pending = append(pending, c)
	}
	p.engine.RenderEvents(out, pending)
	p.pending = pending[:0]
	p.pos = end

	if p.done.Load() || p.next < len(events) || p.pos < p.tailFrom() {
		return
	}
	if p.engine.ActiveVoices() == 0 {
		p.done.Store(true)
	}
}

// tailFrom is the frame where the release tail starts.
func (p *Player) tailFrom() int64 {
	if p.stopping && p.stopAt < p.schedule.End {
		return p.stopAt
	}
	return p.schedule.End
}

// tailExpired reports voices still sounding maxTail after the tail started.
func (p *Player) tailExpired() bool {
	if p.done.Load() || p.next < len(p.schedule.Events) {
		return false
	}
	from := p.tailFrom()
	return p.pos >= from && p.pos-from >= p.maxTail && p.engine.ActiveVoices() > 0
}

// Stop releases all voices and skips the rest of the schedule. The release
// tail is still rendered until Done reports true.
func (p *Player) Stop() {
	p.stopped.Store(true)
}

// Done reports whether playback and its release tail have finished.
func (p *Player) Done() bool {
	return p.done.Load()
}

// Position returns the number of frames rendered so far. It must be called
// from the goroutine that calls Render.
func (p *Player) Position() int64 {
	return p.pos
}
