package audio

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Effect processes the mixed block in place. buf holds one slice per
// output channel. Each effect owns its state.
type Effect interface {
	Process(buf [][]float64)
	Reset()
}

func newEffect(c *EffectConfig, sampleRate float64, channels int) (Effect, error) {
	switch strings.ToLower(c.Kind) {
	case "gain":
		return newGainEffect(c)
	case "delay", "echo":
		return newEcho(c, sampleRate, channels)
	case "drive":
		return newDriveEffect(c)
	case "filter":
		return newFilterEffect(c, sampleRate, channels)
	}
	return nil, errors.Wrapf(ErrInvalidParameter, "unknown effect %q", c.Kind)
}

func newEffectsChain(configs []EffectConfig, sampleRate float64, channels int) ([]Effect, error) {
	chain := make([]Effect, 0, len(configs))
	for i := range configs {
		e, err := newEffect(&configs[i], sampleRate, channels)
		if err != nil {
			return nil, errors.Wrapf(err, "effect %d", i)
		}
		chain = append(chain, e)
	}
	return chain, nil
}

// ----- Gain ----- //

type gainEffect struct {
	gain float64
}

func newGainEffect(c *EffectConfig) (*gainEffect, error) {
	gain := c.Gain
	switch strings.ToLower(c.Unit) {
	case "", "linear":
	case "db":
		gain = math.Pow(10, c.Gain/20)
	default:
		return nil, errors.Wrapf(ErrInvalidParameter, "unknown gain unit %q", c.Unit)
	}
	if !(gain >= 0) || math.IsInf(gain, 0) {
		return nil, errors.Wrapf(ErrInvalidParameter, "gain %v", c.Gain)
	}
	return &gainEffect{gain: gain}, nil
}

func (g *gainEffect) Process(buf [][]float64) {
	for _, samples := range buf {
		for i := range samples {
			samples[i] *= g.gain
		}
	}
}

func (g *gainEffect) Reset() {}

// ----- Drive ----- //

// driveEffect is a tanh waveshaper normalized so that full scale stays at 1.
type driveEffect struct {
	drive float64
	norm  float64
}

func newDriveEffect(c *EffectConfig) (*driveEffect, error) {
	if !(c.Drive > 0 && c.Drive <= 100) {
		return nil, errors.Wrapf(ErrInvalidParameter, "drive %v is outside (0, 100]", c.Drive)
	}
	return &driveEffect{drive: c.Drive, norm: 1 / math.Tanh(c.Drive)}, nil
}

func (d *driveEffect) Process(buf [][]float64) {
	for _, samples := range buf {
		for i, in := range samples {
			samples[i] = math.Tanh(in*d.drive) * d.norm
		}
	}
}

func (d *driveEffect) Reset() {}

// ----- Filter ----- //

type filterEffect struct {
	filters []filter // one per output channel
}

func newFilterEffect(c *EffectConfig, sampleRate float64, channels int) (*filterEffect, error) {
	if c.Filter.Kind == FilterNone {
		return nil, errors.Wrap(ErrInvalidParameter, "filter effect without a filter kind")
	}
	e := &filterEffect{filters: make([]filter, channels)}
	for i := range e.filters {
		e.filters[i] = newFilter(sampleRate)
		if err := e.filters[i].configure(c.Filter); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *filterEffect) Process(buf [][]float64) {
	for ch, samples := range buf {
		f := &e.filters[ch]
		for i, in := range samples {
			samples[i] = f.step(in)
		}
	}
}

func (e *filterEffect) Reset() {
	for i := range e.filters {
		e.filters[i].reset()
	}
}
