package output

import (
	"github.com/faiface/beep"
)

// Streamer adapts a Renderer to beep.Streamer. It ends when the Renderer
// has a Done method that reports true.
type Streamer struct {
	r        Renderer
	channels int
	buf      []float32
}

var _ beep.Streamer = (*Streamer)(nil)

// NewStreamer returns a Streamer for a Renderer producing channels
// interleaved channels (1 or 2).
func NewStreamer(r Renderer, channels int) *Streamer {
	return &Streamer{r: r, channels: channels}
}

// Stream implements beep.Streamer.
func (s *Streamer) Stream(samples [][2]float64) (int, bool) {
	if d, ok := s.r.(interface{ Done() bool }); ok && d.Done() {
		return 0, false
	}
	need := len(samples) * s.channels
	if cap(s.buf) < need {
		s.buf = make([]float32, need)
	}
	buf := s.buf[:need]
	s.r.Render(buf)
	for i := range samples {
		if s.channels == 1 {
			samples[i][0] = float64(buf[i])
			samples[i][1] = float64(buf[i])
		} else {
			samples[i][0] = float64(buf[2*i])
			samples[i][1] = float64(buf[2*i+1])
		}
	}
	return len(samples), true
}

// Err implements beep.Streamer.
func (s *Streamer) Err() error {
	return nil
}

// Format returns the beep format of the stream at sampleRate.
func (s *Streamer) Format(sampleRate int) beep.Format {
	return beep.Format{
		SampleRate:  beep.SampleRate(sampleRate),
		NumChannels: 2,
		Precision:   bitDepthInBytes,
	}
}
