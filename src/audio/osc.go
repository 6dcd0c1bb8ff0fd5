package audio

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// ----- Wave Kind ----- //

// Wave selects the waveform of an oscillator.
type Wave int

const (
	WaveSine Wave = iota
	WaveSaw
	WaveTriangle
	WaveSquare
	WaveNoise
)

var waveNames = []string{"sine", "saw", "triangle", "square", "noise"}

func (w Wave) String() string {
	if w >= 0 && int(w) < len(waveNames) {
		return waveNames[w]
	}
	return "unknown"
}

// ParseWave converts a wave name into a Wave.
func ParseWave(s string) (Wave, error) {
	for i, name := range waveNames {
		if strings.EqualFold(s, name) {
			return Wave(i), nil
		}
	}
	return 0, errors.Wrapf(ErrInvalidParameter, "unknown wave %q", s)
}

func (w Wave) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

func (w *Wave) UnmarshalText(text []byte) error {
	value, err := ParseWave(string(text))
	if err != nil {
		return err
	}
	*w = value
	return nil
}

// ----- Shape ----- //

// shape evaluates a waveform at phase in [0,1).
func shape(w Wave, phase float64, duty float64) float64 {
	switch w {
	case WaveSine:
		return math.Sin(2 * math.Pi * phase)
	case WaveSaw:
		return 2*phase - 1
	case WaveTriangle:
		return 4*math.Abs(phase-0.5) - 1
	case WaveSquare:
		if phase < duty {
			return 1
		}
		return -1
	}
	return 0
}

// ----- OSC ----- //

type osc struct {
	wave  Wave
	duty  float64
	phase float64
	noise uint32 // xorshift state
}

func (o *osc) init(wave Wave, duty float64, seed uint32) {
	o.wave = wave
	o.duty = duty
	o.phase = 0
	if seed == 0 {
		seed = 0x9E3779B9
	}
	o.noise = seed
}

// advance returns the sample at the current phase, then moves the phase
// forward by freq/sampleRate.
func (o *osc) advance(freq float64, sampleRate float64) (float64, error) {
	if !(freq > 0) || math.IsInf(freq, 0) {
		return 0, errors.Wrapf(ErrInvalidParameter, "frequency %v", freq)
	}
	if !(sampleRate > 0) {
		return 0, errors.Wrapf(ErrInvalidParameter, "sample rate %v", sampleRate)
	}
	return o.step(freq / sampleRate), nil
}

// step is advance with a precomputed phase increment.
func (o *osc) step(inc float64) float64 {
	if o.wave == WaveNoise {
		return o.nextNoise()
	}
	value := shape(o.wave, o.phase, o.duty)
	o.phase += inc
	o.phase -= math.Floor(o.phase)
	return value
}

func (o *osc) nextNoise() float64 {
	x := o.noise
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	o.noise = x
	return float64(int32(x)) / (1 << 31)
}
