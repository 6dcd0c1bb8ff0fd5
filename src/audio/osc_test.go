package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func circularDistance(a float64, b float64) float64 {
	d := math.Abs(a - b)
	return math.Min(d, 1-d)
}

func TestWaveformRange(t *testing.T) {
	for _, w := range []Wave{WaveSine, WaveSaw, WaveTriangle, WaveSquare, WaveNoise} {
		t.Run(w.String(), func(t *testing.T) {
			var o osc
			o.init(w, 0.3, 7)
			for i := 0; i < 20000; i++ {
				v, err := o.advance(1234.5, 48000)
				require.NoError(t, err)
				require.True(t, v >= -1 && v <= 1, "sample %d = %v", i, v)
				require.True(t, o.phase >= 0 && o.phase < 1)
			}
		})
	}
}

func TestPhaseReturnsAfterOnePeriod(t *testing.T) {
	const sampleRate = 48000.0
	for _, n := range []int{48, 480, 441, 1000} {
		freq := sampleRate / float64(n)
		for _, w := range []Wave{WaveSine, WaveSaw, WaveTriangle, WaveSquare} {
			var o osc
			o.init(w, 0.5, 1)
			start := o.phase
			first, err := o.advance(freq, sampleRate)
			require.NoError(t, err)
			for i := 1; i < n; i++ {
				_, err := o.advance(freq, sampleRate)
				require.NoError(t, err)
			}
			require.InDelta(t, 0, circularDistance(start, o.phase), 1e-9, "wave %v, N=%d", w, n)
			again, err := o.advance(freq, sampleRate)
			require.NoError(t, err)
			// saw and square jump at phase 0
			if w == WaveSine || w == WaveTriangle {
				require.InDelta(t, first, again, 1e-6)
			}
		}
	}
}

func TestWaveShapes(t *testing.T) {
	require.InDelta(t, 0, shape(WaveSine, 0, 0.5), 1e-12)
	require.InDelta(t, 1, shape(WaveSine, 0.25, 0.5), 1e-12)
	require.InDelta(t, -1, shape(WaveSaw, 0, 0.5), 1e-12)
	require.InDelta(t, 0, shape(WaveSaw, 0.5, 0.5), 1e-12)
	require.InDelta(t, 1, shape(WaveTriangle, 0, 0.5), 1e-12)
	require.InDelta(t, -1, shape(WaveTriangle, 0.5, 0.5), 1e-12)
	require.Equal(t, 1.0, shape(WaveSquare, 0.2, 0.25))
	require.Equal(t, -1.0, shape(WaveSquare, 0.3, 0.25))
}

func TestSquareDuty(t *testing.T) {
	var o osc
	o.init(WaveSquare, 0.25, 1)
	high := 0
	for i := 0; i < 400; i++ {
		v, err := o.advance(120, 48000)
		require.NoError(t, err)
		if v > 0 {
			high++
		}
	}
	require.InDelta(t, 100, high, 1)
}

func TestNoiseIsDeterministic(t *testing.T) {
	var a, b osc
	a.init(WaveNoise, 0.5, 42)
	b.init(WaveNoise, 0.5, 42)
	different := false
	prev := 0.0
	for i := 0; i < 1000; i++ {
		va, _ := a.advance(440, 48000)
		vb, _ := b.advance(440, 48000)
		require.Equal(t, va, vb)
		if i > 0 && va != prev {
			different = true
		}
		prev = va
	}
	require.True(t, different)
	require.Equal(t, 0.0, a.phase)
}

func TestInvalidFrequency(t *testing.T) {
	var o osc
	o.init(WaveSine, 0.5, 1)
	for _, freq := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := o.advance(freq, 48000)
		require.ErrorIs(t, err, ErrInvalidParameter)
	}
	require.Equal(t, 0.0, o.phase)
}

func TestParseWave(t *testing.T) {
	w, err := ParseWave("Triangle")
	require.NoError(t, err)
	require.Equal(t, WaveTriangle, w)
	_, err = ParseWave("wavetable")
	require.ErrorIs(t, err, ErrInvalidParameter)
}
