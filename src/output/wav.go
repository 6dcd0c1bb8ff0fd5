package output

import (
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
)

// WavSink writes blocks to a 16 bit PCM WAV file.
type WavSink struct {
	f          *os.File
	enc        *wav.Encoder
	intBuf     *audio.IntBuffer
	channels   int
	sampleRate int
}

var _ Sink = (*WavSink)(nil)

// NewWavSink creates path, truncating any existing file.
func NewWavSink(path string, sampleRate int, channels int) (*WavSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", path)
	}
	return &WavSink{
		f:   f,
		enc: wav.NewEncoder(f, sampleRate, 16, channels, 1),
		intBuf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: 16,
		},
		channels:   channels,
		sampleRate: sampleRate,
	}, nil
}

// Submit appends block to the file.
func (s *WavSink) Submit(block []float32, channels int, sampleRate int) error {
	if err := checkFormat(channels, sampleRate, s.channels, s.sampleRate); err != nil {
		return err
	}
	if cap(s.intBuf.Data) < len(block) {
		s.intBuf.Data = make([]int, len(block))
	}
	s.intBuf.Data = s.intBuf.Data[:len(block)]
	for i, value := range block {
		s.intBuf.Data[i] = int(toInt16(value))
	}
	if err := s.enc.Write(s.intBuf); err != nil {
		return errors.Wrap(err, "failed to write wav data")
	}
	return nil
}

// Close finalizes the WAV header and closes the file.
func (s *WavSink) Close() error {
	err := s.enc.Close()
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrap(err, "failed to close wav file")
	}
	return nil
}
