package audio

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BlockSize = 64
	cfg.Polyphony = 4
	cfg.Patch = Patch{
		Wave:     WaveSquare,
		Duty:     0.5,
		Level:    0.1,
		Filter:   FilterParams{Kind: FilterNone},
		Envelope: EnvelopeParams{Attack: 0, Decay: 0, Sustain: 1, Release: 100},
	}
	return cfg
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *[]VoiceEvent) {
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	var events []VoiceEvent
	e.SetVoiceListener(func(ev VoiceEvent) {
		events = append(events, ev)
	})
	return e, &events
}

func at(offset int, c Command) Command {
	c.Offset = offset
	return c
}

func firstNonZeroFrame(out []float32, channels int) int {
	for i, v := range out {
		if v != 0 {
			return i / channels
		}
	}
	return -1
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Polyphony = 0
	_, err := NewEngine(cfg)
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestScheduledEventsAreSampleAccurate(t *testing.T) {
	for _, offset := range []int{0, 37, 64, 100} {
		e, _ := newTestEngine(t, testConfig())
		out := make([]float32, 256*2)
		e.RenderEvents(out, []Command{at(offset, NoteOn(0, 69, 100))})
		require.Equal(t, offset, firstNonZeroFrame(out, 2), "offset %d", offset)
		require.Equal(t, 1, e.ActiveVoices())
	}
}

func TestEventsPastTheBufferUseAbsoluteFrame(t *testing.T) {
	e, events := newTestEngine(t, testConfig())
	out := make([]float32, 256*2)
	e.Render(out)
	e.Render(out)
	e.RenderEvents(out, []Command{at(10000, NoteOn(0, 60, 100))})
	require.Len(t, *events, 1)
	require.True(t, (*events)[0].Activated)
	require.Equal(t, int64(768), (*events)[0].Frame)
}

func TestLiveCommandsApplyAtBlockStart(t *testing.T) {
	e, events := newTestEngine(t, testConfig())
	require.True(t, e.Send(NoteOn(0, 60, 100)))
	out := make([]float32, 64*2)
	e.Render(out)
	require.Equal(t, 0, firstNonZeroFrame(out, 2))
	require.Len(t, *events, 1)
	require.Equal(t, int64(0), (*events)[0].Frame)

	require.True(t, e.Send(NoteOn(0, 64, 100)))
	e.Render(out)
	require.Len(t, *events, 2)
	require.Equal(t, int64(64), (*events)[1].Frame)
	require.Equal(t, int64(128), e.Stats().Frames)
}

func TestVoiceStealingOldestActive(t *testing.T) {
	e, events := newTestEngine(t, testConfig())
	out := make([]float32, 64*2)
	e.RenderEvents(out, []Command{
		at(0, NoteOn(0, 60, 100)),
		at(1, NoteOn(0, 61, 100)),
		at(2, NoteOn(0, 62, 100)),
		at(3, NoteOn(0, 63, 100)),
		at(4, NoteOn(0, 64, 100)),
	})
	require.Equal(t, 4, e.ActiveVoices())
	require.Equal(t, uint64(1), e.Stats().Steals)

	evs := *events
	require.Len(t, evs, 6)
	require.Equal(t, VoiceEvent{Activated: false, Voice: 0, Channel: 0, Note: 60, Frame: 4}, evs[4])
	require.Equal(t, VoiceEvent{Activated: true, Voice: 0, Channel: 0, Note: 64, Frame: 4}, evs[5])
	require.Nil(t, e.pool.find(0, 60))
	require.NotNil(t, e.pool.find(0, 64))
}

func TestVoiceStealingPrefersReleased(t *testing.T) {
	e, events := newTestEngine(t, testConfig())
	out := make([]float32, 64*2)
	e.RenderEvents(out, []Command{
		at(0, NoteOn(0, 60, 100)),
		at(1, NoteOn(0, 61, 100)),
		at(2, NoteOn(0, 62, 100)),
		at(3, NoteOn(0, 63, 100)),
		at(4, NoteOff(0, 62)),
		at(5, NoteOn(0, 64, 100)),
	})
	require.Equal(t, 4, e.ActiveVoices())
	evs := *events
	require.Equal(t, uint8(62), evs[4].Note)
	require.False(t, evs[4].Activated)
	require.Equal(t, 2, evs[5].Voice)
	require.NotNil(t, e.pool.find(0, 60))
}

func TestDuplicateNoteOnReleasesPreviousVoice(t *testing.T) {
	e, _ := newTestEngine(t, testConfig())
	out := make([]float32, 64*2)
	e.RenderEvents(out, []Command{
		at(0, NoteOn(2, 60, 100)),
		at(10, NoteOn(2, 60, 90)),
	})
	require.Equal(t, 2, e.ActiveVoices())
	require.True(t, e.pool.voices[0].released)
	v := e.pool.find(2, 60)
	require.NotNil(t, v)
	require.Equal(t, 1, v.id)
	require.Equal(t, uint8(90), v.velocity)
}

func TestNoteOnWithZeroVelocityIsNoteOff(t *testing.T) {
	e, _ := newTestEngine(t, testConfig())
	out := make([]float32, 64*2)
	e.RenderEvents(out, []Command{
		at(0, NoteOn(0, 60, 100)),
		at(1, NoteOn(0, 60, 0)),
	})
	require.True(t, e.pool.voices[0].released)
}

func TestVoicesEndAfterRelease(t *testing.T) {
	cfg := testConfig()
	cfg.Patch.Envelope.Release = 1 // 48 samples
	e, events := newTestEngine(t, cfg)
	out := make([]float32, 64*2)
	e.RenderEvents(out, []Command{
		at(0, NoteOn(0, 60, 100)),
		at(10, NoteOff(0, 60)),
	})
	require.Equal(t, 0, e.ActiveVoices())
	require.Len(t, *events, 2)
	require.False(t, (*events)[1].Activated)
	for _, v := range out[60*2:] {
		require.Equal(t, float32(0), v)
	}
}

func TestStopSoftAndHard(t *testing.T) {
	cfg := testConfig()
	cfg.Patch.Envelope.Release = 50
	out := make([]float32, 64*2)

	t.Run("soft", func(t *testing.T) {
		e, _ := newTestEngine(t, cfg)
		e.RenderEvents(out, []Command{at(0, NoteOn(0, 60, 100)), at(0, NoteOn(1, 64, 100))})
		require.True(t, e.Send(Stop(StopSoft)))
		e.Render(out)
		require.Equal(t, 2, e.ActiveVoices())
		for i := range e.pool.voices[:2] {
			require.True(t, e.pool.voices[i].released)
		}
		for i := 0; i < 48000*60/1000/64+1; i++ {
			e.Render(out)
		}
		require.Equal(t, 0, e.ActiveVoices())
	})
	t.Run("hard", func(t *testing.T) {
		e, _ := newTestEngine(t, cfg)
		e.RenderEvents(out, []Command{at(0, NoteOn(0, 60, 100)), at(0, NoteOn(1, 64, 100))})
		require.True(t, e.Send(Stop(StopHard)))
		e.Render(out)
		require.Equal(t, 0, e.ActiveVoices())
		for _, v := range out {
			require.Equal(t, float32(0), v)
		}
	})
	t.Run("all sound off on one channel", func(t *testing.T) {
		e, _ := newTestEngine(t, cfg)
		e.RenderEvents(out, []Command{
			at(0, NoteOn(0, 60, 100)),
			at(0, NoteOn(1, 64, 100)),
			at(5, ControlChange(1, CCAllSoundOff, 0)),
		})
		require.Equal(t, 1, e.ActiveVoices())
		require.NotNil(t, e.pool.find(0, 60))
	})
}

func TestSustainPedal(t *testing.T) {
	e, _ := newTestEngine(t, testConfig())
	out := make([]float32, 64*2)
	e.RenderEvents(out, []Command{
		at(0, ControlChange(0, CCSustain, 127)),
		at(0, NoteOn(0, 60, 100)),
		at(10, NoteOff(0, 60)),
	})
	v := e.pool.find(0, 60)
	require.NotNil(t, v)
	require.True(t, v.sustained)
	e.RenderEvents(out, []Command{at(0, ControlChange(0, CCSustain, 0))})
	require.True(t, e.pool.voices[0].released)
}

func TestCommandQueueFullDropsNewest(t *testing.T) {
	cfg := testConfig()
	cfg.CommandQueueSize = 4
	e, _ := newTestEngine(t, cfg)
	for i := 0; i < 4; i++ {
		require.True(t, e.Send(NoteOn(0, uint8(60+i), 100)))
	}
	require.False(t, e.Send(NoteOn(0, 70, 100)))
	require.Equal(t, uint64(1), e.Stats().DroppedCommands)

	e.Render(make([]float32, 64*2))
	require.Equal(t, 4, e.ActiveVoices())
	require.Nil(t, e.pool.find(0, 70))
	require.True(t, e.Send(NoteOn(0, 70, 100)))
}

func TestClippingIsCounted(t *testing.T) {
	cfg := testConfig()
	cfg.MasterGain = 4
	cfg.Patch.Level = 1
	e, _ := newTestEngine(t, cfg)
	out := make([]float32, 64*2)
	e.RenderEvents(out, []Command{at(0, NoteOn(0, 60, 127))})
	for _, v := range out {
		require.True(t, v >= -1 && v <= 1)
	}
	require.Greater(t, e.Stats().ClippedSamples, uint64(0))
}

func TestMonoOutput(t *testing.T) {
	cfg := testConfig()
	cfg.Channels = 1
	e, _ := newTestEngine(t, cfg)
	out := make([]float32, 100)
	e.RenderEvents(out, []Command{at(70, NoteOn(0, 60, 100))})
	require.Equal(t, 70, firstNonZeroFrame(out, 1))
	require.Equal(t, int64(100), e.Stats().Frames)
}

func TestPanAndVolume(t *testing.T) {
	e, _ := newTestEngine(t, testConfig())
	out := make([]float32, 64*2)
	e.RenderEvents(out, []Command{
		at(0, ControlChange(0, CCPan, 0)),
		at(0, NoteOn(0, 60, 100)),
	})
	for i := 0; i < 64; i++ {
		require.Equal(t, float32(0), out[2*i+1])
	}
	require.NotEqual(t, float32(0), out[0])

	e.RenderEvents(out, []Command{at(0, ControlChange(0, CCVolume, 0))})
	for _, v := range out {
		require.Equal(t, float32(0), v)
	}
}

func TestPitchBendRetunesVoices(t *testing.T) {
	e, _ := newTestEngine(t, testConfig())
	out := make([]float32, 64*2)
	e.RenderEvents(out, []Command{
		at(0, NoteOn(0, 60, 100)),
		at(1, PitchBend(0, 8192/2)),
	})
	v := e.pool.find(0, 60)
	require.InDelta(t, noteToFreq(440, 61)/48000, v.inc, 1e-12)
	e.RenderEvents(out, []Command{at(0, ControlChange(0, CCResetControllers, 0))})
	require.InDelta(t, noteToFreq(440, 60)/48000, v.inc, 1e-12)
}

func TestProgramChangeSelectsPatch(t *testing.T) {
	cfg := testConfig()
	sine := cfg.Patch
	sine.Wave = WaveSine
	cfg.Programs = []Patch{cfg.Patch, sine}
	e, _ := newTestEngine(t, cfg)
	out := make([]float32, 64*2)
	e.RenderEvents(out, []Command{
		at(0, NoteOn(0, 60, 100)),
		at(0, ProgramChange(1, 1)),
		at(0, NoteOn(1, 60, 100)),
		at(0, ProgramChange(2, 3)),
		at(0, NoteOn(2, 60, 100)),
	})
	require.Equal(t, WaveSquare, e.pool.find(0, 60).osc.wave)
	require.Equal(t, WaveSine, e.pool.find(1, 60).osc.wave)
	require.Equal(t, WaveSine, e.pool.find(2, 60).osc.wave)
}

func TestSetParam(t *testing.T) {
	cfg := testConfig()
	e, _ := newTestEngine(t, cfg)
	cmd, err := cfg.ParseParam(0, "adsr", "attack", "50")
	require.NoError(t, err)
	require.True(t, e.Send(cmd))
	cmd, err = cfg.ParseParam(0, "master", "gain", "0.5")
	require.NoError(t, err)
	require.True(t, e.Send(cmd))
	e.Render(make([]float32, 64*2))
	require.Equal(t, 50.0, e.patches[0].Envelope.Attack)
	require.Equal(t, 0.5, e.masterGain)

	// enabling a filter with no cutoff is rejected on the render side
	require.True(t, e.Send(Command{Kind: CmdSetParam, Param: ParamFilterKind, Value: float64(FilterLowpass)}))
	e.Render(make([]float32, 64*2))
	require.Equal(t, FilterNone, e.patches[0].Filter.Kind)
	require.Equal(t, uint64(1), e.Stats().Faults)
}

func TestEffectsChainOrder(t *testing.T) {
	cfg := testConfig()
	cfg.Effects = []EffectConfig{
		{Kind: "gain", Gain: 0},
		{Kind: "delay", Delay: 1, Feedback: 0.5, Mix: 1},
	}
	e, _ := newTestEngine(t, cfg)
	out := make([]float32, 64*2)
	e.RenderEvents(out, []Command{at(0, NoteOn(0, 60, 100))})
	for _, v := range out {
		require.Equal(t, float32(0), v)
	}

	cfg.Effects = []EffectConfig{{Kind: "distortion"}}
	_, err := NewEngine(cfg)
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestBenchmark(t *testing.T) {
	polyphony := 10
	times := 1000

	cfg := DefaultConfig()
	cfg.Effects = []EffectConfig{{Kind: "delay", Delay: 300, Feedback: 0.3, Mix: 0.2}}
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	out := make([]float32, cfg.BlockSize*cfg.Channels)
	for n := 0; n < polyphony; n++ {
		require.True(t, e.Send(NoteOn(0, uint8(48+n), 100)))
	}
	start := time.Now()
	for n := 0; n < times; n++ {
		e.Render(out)
	}
	averageProcessTime := float64(time.Since(start).Microseconds()) / float64(times) / 1000
	fmt.Printf("average process time: %.3fms\n", averageProcessTime)
	require.Equal(t, polyphony, e.ActiveVoices())
}
