package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestFilter(t *testing.T, kind FilterKind, cutoff float64) *filter {
	f := newFilter(48000)
	require.NoError(t, f.configure(FilterParams{Kind: kind, Cutoff: cutoff, Q: defaultQ}))
	return &f
}

// magnitude at the cutoff frequency
const halfPower = 1 / math.Sqrt2

func TestFilterResponse(t *testing.T) {
	cases := []struct {
		kind FilterKind
		freq float64
		want float64
		tol  float64
	}{
		{FilterLowpass, 50, 1, 0.01},
		{FilterLowpass, 1000, halfPower, 0.01},
		{FilterLowpass, 16000, 0, 0.02},
		{FilterHighpass, 16000, 1, 0.01},
		{FilterHighpass, 1000, halfPower, 0.01},
		{FilterHighpass, 50, 0, 0.01},
		{FilterLowpass1, 1000, halfPower, 0.001},
		{FilterLowpass1, 10, 1, 0.01},
		{FilterHighpass1, 1000, halfPower, 0.001},
		{FilterHighpass1, 20, 0.02, 0.005},
		{FilterNone, 1000, 1, 1e-12},
	}
	for _, c := range cases {
		f := newTestFilter(t, c.kind, 1000)
		require.InDelta(t, c.want, f.response(c.freq), c.tol, "%v at %v Hz", c.kind, c.freq)
	}
}

func TestFilterStepResponse(t *testing.T) {
	for _, kind := range []FilterKind{FilterLowpass1, FilterLowpass} {
		f := newTestFilter(t, kind, 500)
		out := 0.0
		for i := 0; i < 48000; i++ {
			out = f.step(1)
		}
		require.InDelta(t, 1, out, 1e-6, kind.String())
	}
	for _, kind := range []FilterKind{FilterHighpass1, FilterHighpass} {
		f := newTestFilter(t, kind, 500)
		out := 0.0
		for i := 0; i < 48000; i++ {
			out = f.step(1)
		}
		require.InDelta(t, 0, out, 1e-6, kind.String())
	}
}

func TestFilterCutoffValidation(t *testing.T) {
	f := newTestFilter(t, FilterLowpass, 1000)
	for _, hz := range []float64{0, -10, 24000, 30000, math.NaN()} {
		require.ErrorIs(t, f.setCutoff(hz), ErrInvalidParameter)
		require.Equal(t, 1000.0, f.cutoff)
	}
	_, err := f.process(0.5, 24000)
	require.ErrorIs(t, err, ErrInvalidParameter)

	f2 := newFilter(48000)
	require.ErrorIs(t, f2.configure(FilterParams{Kind: FilterHighpass, Cutoff: 25000, Q: 1}), ErrInvalidParameter)
	require.Equal(t, FilterNone, f2.kind)
}

func TestFilterCoefficientsAreLazy(t *testing.T) {
	f := newTestFilter(t, FilterLowpass, 1000)
	f.step(0)
	require.False(t, f.dirty)
	a := f.a
	require.NoError(t, f.setCutoff(1000))
	require.False(t, f.dirty)
	require.NoError(t, f.setCutoff(2000))
	require.True(t, f.dirty)
	require.Equal(t, a, f.a)
	v, err := f.process(0, 2000)
	require.NoError(t, err)
	require.Equal(t, 0.0, v)
	require.False(t, f.dirty)
	require.NotEqual(t, a, f.a)
}
