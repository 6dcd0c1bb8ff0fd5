package output

import (
	"github.com/pkg/errors"
)

// Renderer produces interleaved float32 samples, one block at a time.
type Renderer interface {
	Render(out []float32)
}

// Sink consumes fixed-size blocks of interleaved samples.
type Sink interface {
	Submit(block []float32, channels int, sampleRate int) error
	Close() error
}

const bitDepthInBytes = 2

func checkFormat(channels int, sampleRate int, wantChannels int, wantSampleRate int) error {
	if channels != wantChannels || sampleRate != wantSampleRate {
		return errors.Errorf("block format %d ch / %d Hz does not match sink format %d ch / %d Hz",
			channels, sampleRate, wantChannels, wantSampleRate)
	}
	return nil
}

func toInt16(value float32) int16 {
	const max = 32767
	if value > 1 {
		value = 1
	} else if value < -1 {
		value = -1
	}
	return int16(value * max)
}

// writeBuffer encodes samples as 16 bit little endian PCM into buf.
func writeBuffer(samples []float32, buf []byte) {
	for i, value := range samples {
		b := toInt16(value)
		buf[bitDepthInBytes*i] = byte(b)
		buf[bitDepthInBytes*i+1] = byte(b >> 8)
	}
}
