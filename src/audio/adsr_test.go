package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestADSR(p EnvelopeParams) *adsr {
	a := &adsr{}
	a.init(&p, 48000)
	return a
}

func TestADSRPhases(t *testing.T) {
	a := newTestADSR(EnvelopeParams{Attack: 10, Decay: 10, Sustain: 0.5, Release: 10})
	require.True(t, a.idle())
	a.noteOn()
	for i := 0; i < 480; i++ {
		require.Equal(t, phaseAttack, a.phase)
		a.step()
	}
	require.Equal(t, phaseDecay, a.phase)
	require.Equal(t, 1.0, a.value())
	for i := 0; i < 480; i++ {
		a.step()
	}
	require.Equal(t, phaseSustain, a.phase)
	require.Equal(t, 0.5, a.value())
	for i := 0; i < 1000; i++ {
		require.Equal(t, 0.5, a.step())
	}
	a.noteOff()
	for i := 0; i < 480; i++ {
		require.Equal(t, phaseRelease, a.phase)
		a.step()
	}
	require.True(t, a.idle())
	require.Equal(t, 0.0, a.value())
}

func TestADSRNoteOffDuringAttack(t *testing.T) {
	const attack, release = 480, 960
	a := newTestADSR(EnvelopeParams{Attack: 10, Decay: 50, Sustain: 0.8, Release: 20})
	maxStep := math.Max(1.0/attack, 1.0/release) + 1e-12

	a.noteOn()
	prev := a.value()
	for i := 0; i < attack/2; i++ {
		v := a.step()
		require.LessOrEqual(t, math.Abs(v-prev), maxStep)
		prev = v
	}
	require.InDelta(t, 0.5, prev, 1e-9)

	a.noteOff()
	require.Equal(t, phaseRelease, a.phase)
	require.Equal(t, prev, a.value())
	for i := 0; i < release; i++ {
		v := a.step()
		require.LessOrEqual(t, math.Abs(v-prev), maxStep, "sample %d", i)
		require.LessOrEqual(t, v, prev)
		prev = v
	}
	require.True(t, a.idle())
	require.Equal(t, 0.0, a.value())
}

func TestADSRZeroLengthStages(t *testing.T) {
	a := newTestADSR(EnvelopeParams{Attack: 0, Decay: 0, Sustain: 0.6, Release: 0})
	a.noteOn()
	require.Equal(t, phaseSustain, a.phase)
	require.Equal(t, 0.6, a.value())
	require.Equal(t, 0.6, a.step())
	a.noteOff()
	require.True(t, a.idle())
	require.Equal(t, 0.0, a.value())
}

func TestADSRExponential(t *testing.T) {
	a := newTestADSR(EnvelopeParams{Attack: 10, Decay: 10, Sustain: 0.25, Release: 10, Curve: CurveExponential})
	a.noteOn()
	prev := 0.0
	for i := 0; i < 480; i++ {
		v := a.step()
		require.GreaterOrEqual(t, v, prev)
		prev = v
	}
	require.Equal(t, 1.0, a.value())
	for i := 0; i < 480; i++ {
		v := a.step()
		require.LessOrEqual(t, v, prev)
		prev = v
	}
	require.Equal(t, phaseSustain, a.phase)
	require.Equal(t, 0.25, a.value())
}

func TestADSRRetriggerStartsFromCurrentLevel(t *testing.T) {
	a := newTestADSR(EnvelopeParams{Attack: 10, Decay: 0, Sustain: 0.7, Release: 100})
	a.noteOn()
	for i := 0; i < 480; i++ {
		a.step()
	}
	require.Equal(t, phaseSustain, a.phase)
	a.noteOff()
	for i := 0; i < 100; i++ {
		a.step()
	}
	level := a.value()
	a.noteOn()
	require.Equal(t, phaseAttack, a.phase)
	require.Equal(t, level, a.value())
	require.Greater(t, a.step(), level)
}

func TestADSRNoteOffWhenIdle(t *testing.T) {
	a := newTestADSR(EnvelopeParams{Attack: 1, Decay: 1, Sustain: 1, Release: 1})
	a.noteOff()
	require.True(t, a.idle())
	require.Equal(t, 0.0, a.step())
}
