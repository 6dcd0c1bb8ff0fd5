package audio

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// ----- Curve ----- //

// Curve is the shape of envelope segments.
type Curve int

const (
	CurveLinear Curve = iota
	CurveExponential
)

func (c Curve) String() string {
	if c == CurveExponential {
		return "exponential"
	}
	return "linear"
}

// ParseCurve converts a curve name into a Curve.
func ParseCurve(s string) (Curve, error) {
	switch strings.ToLower(s) {
	case "linear":
		return CurveLinear, nil
	case "exponential", "exp":
		return CurveExponential, nil
	}
	return 0, errors.Wrapf(ErrInvalidParameter, "unknown curve %q", s)
}

func (c Curve) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Curve) UnmarshalText(text []byte) error {
	value, err := ParseCurve(string(text))
	if err != nil {
		return err
	}
	*c = value
	return nil
}

func (c Curve) transition() int {
	if c == CurveExponential {
		return transitionExponential
	}
	return transitionLinear
}

// ----- ADSR ----- //

const (
	phaseIdle = iota
	phaseAttack
	phaseDecay
	phaseSustain
	phaseRelease
)

/*
  1 +     x
    |    / \
    |   /   \
  s +  /     x------x
    | /              \
    |/                \
  0 +-----+--+------+---
    |a    |d |      |r |
*/
type adsr struct {
	attack  int // samples
	decay   int // samples
	sustain float64
	release int // samples
	curve   Curve
	phase   int
	tvalue  transitiveValue
}

func msToSamples(ms float64, sampleRate float64) int {
	return int(math.Round(ms * sampleRate / 1000))
}

func (a *adsr) init(p *EnvelopeParams, sampleRate float64) {
	a.setParams(p, sampleRate)
	a.phase = phaseIdle
	a.tvalue.init(0)
}

func (a *adsr) setParams(p *EnvelopeParams, sampleRate float64) {
	a.attack = msToSamples(p.Attack, sampleRate)
	a.decay = msToSamples(p.Decay, sampleRate)
	a.sustain = p.Sustain
	a.release = msToSamples(p.Release, sampleRate)
	a.curve = p.Curve
	if a.phase == phaseSustain {
		a.tvalue.init(a.sustain)
	}
}

// noteOn restarts the attack from the current level.
func (a *adsr) noteOn() {
	a.phase = phaseAttack
	a.tvalue.start(a.curve.transition(), a.attack, 1)
	a.settle()
}

// noteOff releases from the current level.
func (a *adsr) noteOff() {
	if a.phase == phaseIdle || a.phase == phaseRelease {
		return
	}
	a.phase = phaseRelease
	a.tvalue.start(a.curve.transition(), a.release, 0)
	a.settle()
}

// settle performs every stage transition that is due now, so zero-length
// stages are passed through within the same sample.
func (a *adsr) settle() {
	for {
		switch a.phase {
		case phaseAttack:
			if !a.tvalue.done() {
				return
			}
			a.phase = phaseDecay
			a.tvalue.start(a.curve.transition(), a.decay, a.sustain)
		case phaseDecay:
			if !a.tvalue.done() {
				return
			}
			a.phase = phaseSustain
		case phaseRelease:
			if !a.tvalue.done() {
				return
			}
			a.phase = phaseIdle
		default:
			return
		}
	}
}

func (a *adsr) step() float64 {
	switch a.phase {
	case phaseAttack, phaseDecay, phaseRelease:
		a.tvalue.step()
		a.settle()
	}
	return a.tvalue.value
}

func (a *adsr) value() float64 {
	return a.tvalue.value
}

func (a *adsr) idle() bool {
	return a.phase == phaseIdle
}
