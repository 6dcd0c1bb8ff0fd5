package output

import (
	"log"
	"time"

	"github.com/hajimehoshi/oto"
	"github.com/pkg/errors"
)

// OtoSink plays blocks on the default audio device.
type OtoSink struct {
	otoContext *oto.Context
	player     *oto.Player
	channels   int
	sampleRate int
	buf        []byte
	buffered   time.Duration // audio held by the device buffer
	lastSubmit time.Time
	onUnderrun func()
}

var _ Sink = (*OtoSink)(nil)

// NewOtoSink opens the device. onUnderrun is called when the device buffer
// ran dry between two submits; it may be nil.
func NewOtoSink(sampleRate int, channels int, blockFrames int, onUnderrun func()) (*OtoSink, error) {
	bufferSizeInBytes := blockFrames * channels * bitDepthInBytes * 4
	if bufferSizeInBytes < 4096 {
		bufferSizeInBytes = 4096
	}
	otoContext, err := oto.NewContext(sampleRate, channels, bitDepthInBytes, bufferSizeInBytes)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open audio device")
	}
	bytesPerSecond := float64(sampleRate * channels * bitDepthInBytes)
	return &OtoSink{
		otoContext: otoContext,
		player:     otoContext.NewPlayer(),
		channels:   channels,
		sampleRate: sampleRate,
		buf:        make([]byte, blockFrames*channels*bitDepthInBytes),
		buffered:   time.Duration(float64(bufferSizeInBytes) / bytesPerSecond * float64(time.Second)),
		onUnderrun: onUnderrun,
	}, nil
}

// Submit blocks until the device accepted the whole block.
func (s *OtoSink) Submit(block []float32, channels int, sampleRate int) error {
	if err := checkFormat(channels, sampleRate, s.channels, s.sampleRate); err != nil {
		return err
	}
	now := time.Now()
	if !s.lastSubmit.IsZero() && now.Sub(s.lastSubmit) > s.buffered && s.onUnderrun != nil {
		s.onUnderrun()
	}
	n := len(block) * bitDepthInBytes
	if n > len(s.buf) {
		s.buf = make([]byte, n)
	}
	writeBuffer(block, s.buf[:n])
	if _, err := s.player.Write(s.buf[:n]); err != nil {
		return errors.Wrap(err, "failed to write to audio device")
	}
	s.lastSubmit = time.Now()
	return nil
}

// Close releases the device.
func (s *OtoSink) Close() error {
	log.Println("Closing audio device...")
	if err := s.player.Close(); err != nil {
		log.Printf("error while closing player: %v", err)
	}
	return s.otoContext.Close()
}
