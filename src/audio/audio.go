package audio

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

const (
	maxBlockSize = 8192
	maxPolyphony = 1024
)

// ErrInvalidParameter is returned for configuration or parameter values
// outside their valid range.
var ErrInvalidParameter = errors.New("invalid parameter")

// ----- Stats ----- //

// Stats is a snapshot of the engine counters.
type Stats struct {
	Frames          int64
	ActiveVoices    int
	Steals          uint64
	ClippedSamples  uint64
	Underruns       uint64
	DroppedCommands uint64
	Faults          uint64
}

type counters struct {
	frames       atomic.Int64
	activeVoices atomic.Int64
	steals       atomic.Uint64
	clipped      atomic.Uint64
	underruns    atomic.Uint64
	faults       atomic.Uint64
}

// ----- Voice Events ----- //

// VoiceEvent reports a voice slot starting or ending a note.
type VoiceEvent struct {
	Activated bool
	Voice     int
	Channel   uint8
	Note      uint8
	Frame     int64 // absolute frame at which it happened
}

// VoiceListener is called on the render goroutine and must not block.
type VoiceListener func(VoiceEvent)

// ----- Engine ----- //

// Engine renders audio from a fixed voice pool. Render and RenderEvents must
// be called from one goroutine; Send may be called from one other goroutine.
type Engine struct {
	sampleRate     float64
	channels       int
	blockSize      int
	tuning         float64
	velSense       float64
	pitchBendRange float64
	masterGain     float64
	patches        []Patch
	pool           *voicePool
	chans          [numChannels]channelState
	effects        []Effect
	queue          *commandQueue
	mix            [][]float64 // per output channel, blockSize frames
	scratch        []float64
	frame          int64 // frames rendered so far
	stats          counters
	listener       VoiceListener
}

// NewEngine validates cfg and allocates everything the render path needs.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sr := float64(cfg.SampleRate)
	effects, err := newEffectsChain(cfg.Effects, sr, cfg.Channels)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		sampleRate:     sr,
		channels:       cfg.Channels,
		blockSize:      cfg.BlockSize,
		tuning:         cfg.Tuning,
		velSense:       cfg.VelSense,
		pitchBendRange: cfg.PitchBendRange,
		masterGain:     cfg.MasterGain,
		patches:        cfg.patches(),
		pool:           newVoicePool(cfg.Polyphony, sr),
		effects:        effects,
		queue:          newCommandQueue(cfg.CommandQueueSize),
		mix:            make([][]float64, cfg.Channels),
		scratch:        make([]float64, cfg.BlockSize),
	}
	for i := range e.mix {
		e.mix[i] = make([]float64, cfg.BlockSize)
	}
	for i := range e.chans {
		e.chans[i].number = uint8(i)
		e.chans[i].reset()
	}
	return e, nil
}

// SampleRate returns the output sample rate in Hz.
func (e *Engine) SampleRate() int {
	return int(e.sampleRate)
}

// Channels returns the number of interleaved output channels.
func (e *Engine) Channels() int {
	return e.channels
}

// BlockSize returns the number of frames rendered per internal block.
func (e *Engine) BlockSize() int {
	return e.blockSize
}

// SetVoiceListener installs l. It must be called before rendering starts.
func (e *Engine) SetVoiceListener(l VoiceListener) {
	e.listener = l
}

// Send enqueues a live command. It never blocks; it returns false and
// counts a drop when the queue is full.
func (e *Engine) Send(c Command) bool {
	return e.queue.push(c)
}

// ReportUnderrun records that the sink ran out of samples.
func (e *Engine) ReportUnderrun() {
	e.stats.underruns.Add(1)
}

// ActiveVoices returns the number of sounding voices after the last render.
func (e *Engine) ActiveVoices() int {
	return int(e.stats.activeVoices.Load())
}

// Stats returns a snapshot of the counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Frames:          e.stats.frames.Load(),
		ActiveVoices:    int(e.stats.activeVoices.Load()),
		Steals:          e.stats.steals.Load(),
		ClippedSamples:  e.stats.clipped.Load(),
		Underruns:       e.stats.underruns.Load(),
		DroppedCommands: e.queue.dropped.Load(),
		Faults:          e.stats.faults.Load(),
	}
}

// Render fills out with interleaved samples. Live commands are applied at
// the start of each block.
func (e *Engine) Render(out []float32) {
	e.RenderEvents(out, nil)
}

// RenderEvents is Render with scheduled commands. events must be sorted by
// Offset, which is a frame index into out. Each command takes effect exactly
// at its frame.
func (e *Engine) RenderEvents(out []float32, events []Command) {
	frames := len(out) / e.channels
	for base := 0; base < frames; base += e.blockSize {
		n := frames - base
		if n > e.blockSize {
			n = e.blockSize
		}
		events = e.renderBlock(out[base*e.channels:(base+n)*e.channels], n, base, events)
	}
	// commands past the end of out take effect at the current frame
	for i := range events {
		e.apply(events[i], e.frame)
	}
}

func (e *Engine) renderBlock(out []float32, frames int, base int, events []Command) []Command {
	for {
		c, ok := e.queue.pop()
		if !ok {
			break
		}
		e.apply(c, e.frame)
	}
	for ch := range e.mix {
		mix := e.mix[ch][:frames]
		for i := range mix {
			mix[i] = 0
		}
	}
	pos := 0
	for len(events) > 0 {
		offset := events[0].Offset - base
		if offset >= frames {
			break
		}
		if offset > pos {
			e.renderVoices(pos, offset)
			pos = offset
		}
		e.apply(events[0], e.frame+int64(pos))
		events = events[1:]
	}
	if pos < frames {
		e.renderVoices(pos, frames)
	}
	e.finishBlock(out, frames)
	e.frame += int64(frames)
	e.stats.frames.Store(e.frame)
	e.stats.activeVoices.Store(int64(e.pool.activeCount()))
	return events
}

// renderVoices mixes frames [from, to) of the current block.
func (e *Engine) renderVoices(from int, to int) {
	scratch := e.scratch[:to-from]
	for i := range e.pool.voices {
		v := &e.pool.voices[i]
		if !v.active {
			continue
		}
		if !v.render(scratch) {
			e.stats.faults.Add(1)
		}
		ch := &e.chans[v.channel]
		for c := range e.mix {
			g := ch.gain(c, e.channels)
			mix := e.mix[c][from:to]
			for j, s := range scratch {
				mix[j] += s * g
			}
		}
		if !v.active {
			e.notify(false, v, e.frame+int64(to))
		}
	}
}

// finishBlock runs master gain, the effects chain and the hard clipper.
func (e *Engine) finishBlock(out []float32, frames int) {
	buf := e.mix
	for c := range buf {
		buf[c] = buf[c][:frames]
		for i := range buf[c] {
			buf[c][i] *= e.masterGain
		}
	}
	for _, fx := range e.effects {
		fx.Process(buf)
	}
	clipped := uint64(0)
	for c := range buf {
		for i, v := range buf[c] {
			if v > 1 {
				v = 1
				clipped++
			} else if v < -1 {
				v = -1
				clipped++
			} else if v != v {
				v = 0
				clipped++
			}
			out[i*e.channels+c] = float32(v)
		}
		buf[c] = buf[c][:e.blockSize]
	}
	if clipped > 0 {
		e.stats.clipped.Add(clipped)
	}
}

func (e *Engine) notify(activated bool, v *voice, frame int64) {
	if e.listener == nil {
		return
	}
	e.listener(VoiceEvent{
		Activated: activated,
		Voice:     v.id,
		Channel:   v.channel,
		Note:      v.note,
		Frame:     frame,
	})
}

// ----- Commands ----- //

func (e *Engine) apply(c Command, frame int64) {
	if c.Channel >= numChannels && c.Kind != CmdStop {
		e.stats.faults.Add(1)
		return
	}
	switch c.Kind {
	case CmdNoteOn:
		if c.Data2 == 0 {
			e.noteOff(c.Channel, c.Data1)
		} else {
			e.noteOn(c.Channel, c.Data1, c.Data2, frame)
		}
	case CmdNoteOff:
		e.noteOff(c.Channel, c.Data1)
	case CmdControlChange:
		e.controlChange(c.Channel, c.Data1, c.Data2, frame)
	case CmdProgramChange:
		e.chans[c.Channel].program = int(c.Data1) % len(e.patches)
	case CmdPitchBend:
		ch := &e.chans[c.Channel]
		ch.bend = c.Value / 8192 * e.pitchBendRange
		e.forChannel(c.Channel, func(v *voice) {
			v.retune(e.tuning, ch.bend)
		})
	case CmdChannelPressure, CmdPolyAftertouch:
		// accepted without effect
	case CmdStop:
		if StopMode(c.Data1) == StopHard {
			e.hardStop(-1, frame)
		} else {
			e.softStop(-1)
		}
	case CmdSetParam:
		e.setParam(c)
	}
}

func (e *Engine) forChannel(channel uint8, f func(v *voice)) {
	for i := range e.pool.voices {
		v := &e.pool.voices[i]
		if v.active && v.channel == channel {
			f(v)
		}
	}
}

func (e *Engine) noteOn(channel uint8, note uint8, velocity uint8, frame int64) {
	if note > 127 || velocity > 127 {
		e.stats.faults.Add(1)
		return
	}
	if prev := e.pool.find(channel, note); prev != nil {
		prev.noteOff(e.pool.nextSeq())
	}
	v, stolen := e.pool.allocate()
	if stolen {
		e.stats.steals.Add(1)
		e.notify(false, v, frame)
		v.kill()
	}
	ch := &e.chans[channel]
	v.noteOn(&e.patches[ch.program], ch, note, velocity, e.velSense, e.tuning, e.pool.nextSeq())
	e.notify(true, v, frame)
}

func (e *Engine) noteOff(channel uint8, note uint8) {
	v := e.pool.find(channel, note)
	if v == nil {
		return
	}
	if e.chans[channel].sustain {
		v.sustained = true
		return
	}
	v.noteOff(e.pool.nextSeq())
}

func (e *Engine) controlChange(channel uint8, controller uint8, value uint8, frame int64) {
	ch := &e.chans[channel]
	switch controller {
	case CCVolume:
		ch.volume = float64(value) / 127
		ch.updateGains()
	case CCPan:
		ch.pan = controllerPan(value)
		ch.updateGains()
	case CCExpression:
		ch.expression = float64(value) / 127
		ch.updateGains()
	case CCSustain:
		ch.sustain = value >= 64
		if !ch.sustain {
			e.forChannel(channel, func(v *voice) {
				if v.sustained {
					v.noteOff(e.pool.nextSeq())
				}
			})
		}
	case CCBrightness:
		ch.cutoffRatio = controllerCutoffRatio(value)
		e.forChannel(channel, func(v *voice) {
			v.modulateCutoff(ch.cutoffRatio)
		})
	case CCAllSoundOff:
		e.hardStop(int(channel), frame)
	case CCResetControllers:
		ch.reset()
		e.forChannel(channel, func(v *voice) {
			v.retune(e.tuning, 0)
			v.modulateCutoff(1)
			if v.sustained {
				v.noteOff(e.pool.nextSeq())
			}
		})
	case CCAllNotesOff:
		e.softStop(int(channel))
	}
}

// softStop releases every voice of channel, or of all channels if channel < 0.
func (e *Engine) softStop(channel int) {
	for i := range e.pool.voices {
		v := &e.pool.voices[i]
		if !v.active || channel >= 0 && int(v.channel) != channel {
			continue
		}
		v.noteOff(e.pool.nextSeq())
	}
	for i := range e.chans {
		if channel < 0 || i == channel {
			e.chans[i].sustain = false
		}
	}
}

// hardStop silences every voice of channel, or of all channels if channel < 0.
func (e *Engine) hardStop(channel int, frame int64) {
	for i := range e.pool.voices {
		v := &e.pool.voices[i]
		if !v.active || channel >= 0 && int(v.channel) != channel {
			continue
		}
		v.kill()
		e.notify(false, v, frame)
	}
	for i := range e.chans {
		if channel < 0 || i == channel {
			e.chans[i].sustain = false
		}
	}
	e.stats.activeVoices.Store(int64(e.pool.activeCount()))
}

func (e *Engine) setParam(c Command) {
	switch c.Param {
	case ParamMasterGain:
		e.masterGain = c.Value
		return
	case ParamVelSense:
		e.velSense = c.Value
		return
	}
	ch := &e.chans[c.Channel]
	patch := e.patches[ch.program]
	patch.apply(c.Param, c.Value)
	if err := patch.validate(e.sampleRate); err != nil {
		e.stats.faults.Add(1)
		return
	}
	e.patches[ch.program] = patch
	for i := range e.pool.voices {
		v := &e.pool.voices[i]
		if v.active && e.chans[v.channel].program == ch.program {
			v.applyPatch(&e.patches[ch.program], &e.chans[v.channel], e.velSense)
		}
	}
}
