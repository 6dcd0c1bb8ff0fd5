package audio

import "github.com/pkg/errors"

const maxDelayMs = 5000

// ----- Delay ----- //

type delay struct {
	cursor int
	past   []float64
}

func newDelay(sampleRate float64, millis float64) *delay {
	length := int(sampleRate * millis / 1000)
	if length < 1 {
		length = 1
	}
	return &delay{past: make([]float64, length)}
}

func (d *delay) step(in float64) {
	d.past[d.cursor] = in
	d.cursor++
	if d.cursor >= len(d.past) {
		d.cursor = 0
	}
}

func (d *delay) getDelayed() float64 {
	return d.past[d.cursor]
}

func (d *delay) reset() {
	for i := range d.past {
		d.past[i] = 0
	}
	d.cursor = 0
}

// ----- Echo ----- //

type echo struct {
	delays       []*delay // one per output channel
	feedbackGain float64  // [0,1)
	mix          float64  // [0,1]
}

func newEcho(c *EffectConfig, sampleRate float64, channels int) (*echo, error) {
	if !(c.Delay > 0 && c.Delay <= maxDelayMs) {
		return nil, errors.Wrapf(ErrInvalidParameter, "delay %v ms", c.Delay)
	}
	if !(c.Feedback >= 0 && c.Feedback < 1) {
		return nil, errors.Wrapf(ErrInvalidParameter, "feedback %v is outside [0, 1)", c.Feedback)
	}
	if !(c.Mix >= 0 && c.Mix <= 1) {
		return nil, errors.Wrapf(ErrInvalidParameter, "mix %v is outside [0, 1]", c.Mix)
	}
	e := &echo{
		delays:       make([]*delay, channels),
		feedbackGain: c.Feedback,
		mix:          c.Mix,
	}
	for i := range e.delays {
		e.delays[i] = newDelay(sampleRate, c.Delay)
	}
	return e, nil
}

func (e *echo) Process(buf [][]float64) {
	for ch, samples := range buf {
		d := e.delays[ch]
		for i, in := range samples {
			delayed := d.getDelayed()
			d.step(in + delayed*e.feedbackGain)
			samples[i] = in + delayed*e.mix
		}
	}
}

func (e *echo) Reset() {
	for _, d := range e.delays {
		d.reset()
	}
}
