package output

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// rampRenderer writes a running sample counter scaled to [0, 1).
type rampRenderer struct {
	n       int
	renders int
	limit   int // Done after limit renders, 0 for never
	delay   time.Duration
}

func (r *rampRenderer) Render(out []float32) {
	time.Sleep(r.delay)
	for i := range out {
		out[i] = float32(r.n%1000) / 1000
		r.n++
	}
	r.renders++
}

func (r *rampRenderer) Done() bool {
	return r.limit > 0 && r.renders >= r.limit
}

type memorySink struct {
	blocks [][]float32
	err    error
}

func (s *memorySink) Submit(block []float32, channels int, sampleRate int) error {
	if s.err != nil {
		return s.err
	}
	s.blocks = append(s.blocks, append([]float32(nil), block...))
	return nil
}

func (s *memorySink) Close() error {
	return nil
}

func TestWriteBuffer(t *testing.T) {
	buf := make([]byte, 8)
	writeBuffer([]float32{0.5, -1, 2, 0}, buf)
	require.Equal(t, []byte{0xFF, 0x3F, 0x01, 0x80, 0xFF, 0x7F, 0x00, 0x00}, buf)
}

func TestWavSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	s, err := NewWavSink(path, 48000, 2)
	require.NoError(t, err)
	block := []float32{0, 0.5, -0.5, 1, -1, 1.5, 0.25, -0.25}
	require.NoError(t, s.Submit(block, 2, 48000))
	require.NoError(t, s.Submit(block[:4], 2, 48000))
	require.Error(t, s.Submit(block, 1, 48000))
	require.Error(t, s.Submit(block, 2, 44100))
	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	require.Equal(t, 2, buf.Format.NumChannels)
	require.Equal(t, 48000, buf.Format.SampleRate)
	var want []int
	for _, v := range append(block, block[:4]...) {
		want = append(want, int(toInt16(v)))
	}
	require.Equal(t, want, buf.Data)
}

func TestPump(t *testing.T) {
	opts := PumpOptions{BlockFrames: 16, Channels: 2, SampleRate: 48000}

	t.Run("until done", func(t *testing.T) {
		r := &rampRenderer{limit: 3}
		s := &memorySink{}
		o := opts
		o.Done = r.Done
		require.NoError(t, Pump(context.Background(), r, s, o))
		require.Len(t, s.blocks, 3)
		require.Len(t, s.blocks[0], 32)
		require.Equal(t, float32(0.032), s.blocks[1][0])
	})
	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		s := &memorySink{}
		require.NoError(t, Pump(ctx, &rampRenderer{}, s, opts))
		require.Empty(t, s.blocks)
	})
	t.Run("submit error", func(t *testing.T) {
		s := &memorySink{err: errors.New("device lost")}
		err := Pump(context.Background(), &rampRenderer{}, s, opts)
		require.ErrorContains(t, err, "device lost")
	})
	t.Run("render overrun", func(t *testing.T) {
		r := &rampRenderer{limit: 3, delay: 5 * time.Millisecond}
		underruns := 0
		o := opts
		o.Done = r.Done
		o.Realtime = true
		o.OnUnderrun = func() { underruns++ }
		require.NoError(t, Pump(context.Background(), r, &memorySink{}, o))
		require.Equal(t, 3, underruns)
	})
	t.Run("invalid format", func(t *testing.T) {
		require.Error(t, Pump(context.Background(), &rampRenderer{}, &memorySink{}, PumpOptions{}))
	})
}

func TestStreamer(t *testing.T) {
	r := &rampRenderer{limit: 2}
	s := NewStreamer(r, 2)
	samples := make([][2]float64, 10)
	n, ok := beep.Take(10, s).Stream(samples)
	require.True(t, ok)
	require.Equal(t, 10, n)
	require.InDelta(t, 0.018, samples[9][0], 1e-6)
	require.InDelta(t, 0.019, samples[9][1], 1e-6)
	require.NoError(t, s.Err())

	n, ok = s.Stream(samples)
	require.True(t, ok)
	require.Equal(t, 10, n)
	_, ok = s.Stream(samples)
	require.False(t, ok)

	mono := NewStreamer(&rampRenderer{}, 1)
	n, ok = mono.Stream(samples[:4])
	require.True(t, ok)
	require.Equal(t, 4, n)
	require.Equal(t, samples[3][0], samples[3][1])
	require.InDelta(t, 0.003, samples[3][0], 1e-6)

	format := s.Format(48000)
	require.Equal(t, beep.SampleRate(48000), format.SampleRate)
	require.Equal(t, 2, format.NumChannels)
}
