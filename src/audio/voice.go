package audio

import "math"

// ----- Voice ----- //

type voice struct {
	id         int
	sampleRate float64
	channel    uint8
	note       uint8
	velocity   uint8
	gain       float64 // patch level x velocity gain
	baseCutoff float64
	inc        float64 // phase increment per sample
	osc        osc
	filter     filter
	adsr       adsr
	active     bool
	released   bool
	sustained  bool // note-off held back by the sustain pedal
	startSeq   uint64
	releaseSeq uint64
}

func velocityGain(velocity uint8, sense float64) float64 {
	return (1 - sense) + sense*float64(velocity)/127
}

func noteToFreq(tuning float64, note float64) float64 {
	return tuning * math.Pow(2, (note-69)/12)
}

// clampCutoff keeps modulated cutoffs inside the valid range of a filter.
func clampCutoff(hz float64, sampleRate float64) float64 {
	lo := 10.0
	hi := sampleRate * 0.49
	if hz < lo {
		return lo
	}
	if hz > hi {
		return hi
	}
	return hz
}

// noteOn (re)initializes the slot for a new note.
func (v *voice) noteOn(p *Patch, ch *channelState, note uint8, velocity uint8, velSense float64, tuning float64, seq uint64) {
	v.channel = ch.number
	v.note = note
	v.velocity = velocity
	v.gain = p.Level * velocityGain(velocity, velSense)
	v.osc.init(p.Wave, p.Duty, uint32(seq)*2654435761+uint32(v.id)+1)
	v.filter = newFilter(v.sampleRate)
	v.baseCutoff = p.Filter.Cutoff
	if err := v.filter.configure(p.Filter); err != nil {
		v.filter = newFilter(v.sampleRate)
	}
	v.retune(tuning, ch.bend)
	v.modulateCutoff(ch.cutoffRatio)
	v.adsr.init(&p.Envelope, v.sampleRate)
	v.adsr.noteOn()
	v.active = true
	v.released = false
	v.sustained = false
	v.startSeq = seq
	v.releaseSeq = 0
}

func (v *voice) noteOff(seq uint64) {
	if !v.active || v.released {
		return
	}
	v.released = true
	v.sustained = false
	v.releaseSeq = seq
	v.adsr.noteOff()
}

// kill deactivates the voice without a release tail.
func (v *voice) kill() {
	v.active = false
	v.released = true
	v.sustained = false
	v.filter.reset()
	v.adsr.phase = phaseIdle
	v.adsr.tvalue.init(0)
}

func (v *voice) retune(tuning float64, bend float64) {
	v.inc = noteToFreq(tuning, float64(v.note)+bend) / v.sampleRate
}

func (v *voice) modulateCutoff(ratio float64) {
	if v.filter.kind == FilterNone {
		return
	}
	// clamped, so setCutoff cannot fail
	_ = v.filter.setCutoff(clampCutoff(v.baseCutoff*ratio, v.sampleRate))
}

// applyPatch follows parameter changes while the note is sounding.
func (v *voice) applyPatch(p *Patch, ch *channelState, velSense float64) {
	v.osc.wave = p.Wave
	v.osc.duty = p.Duty
	v.gain = p.Level * velocityGain(v.velocity, velSense)
	if p.Filter.Kind != v.filter.kind || p.Filter.Q != v.filter.q {
		past := v.filter.past
		if err := v.filter.configure(p.Filter); err == nil {
			v.filter.past = past
		}
	}
	v.baseCutoff = p.Filter.Cutoff
	v.modulateCutoff(ch.cutoffRatio)
	v.adsr.setParams(&p.Envelope, v.sampleRate)
}

func (v *voice) isActive() bool {
	return v.active
}

// render writes the voice output to out. It returns false if the voice
// produced a non-finite sample, in which case it has been silenced.
func (v *voice) render(out []float64) bool {
	filtered := v.filter.kind != FilterNone
	for i := range out {
		s := v.osc.step(v.inc)
		if filtered {
			s = v.filter.step(s)
		}
		s *= v.adsr.step() * v.gain
		if math.IsNaN(s) || math.IsInf(s, 0) {
			for j := 0; j < i; j++ {
				out[j] = 0
			}
			v.kill()
			return false
		}
		out[i] = s
		if v.adsr.idle() {
			for j := i + 1; j < len(out); j++ {
				out[j] = 0
			}
			v.active = false
			return true
		}
	}
	return true
}
