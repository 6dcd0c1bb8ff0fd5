package output

import (
	"context"
	"log"
	"time"

	"github.com/pkg/errors"
)

// PumpOptions describes the block format and the end of a stream.
type PumpOptions struct {
	BlockFrames int
	Channels    int
	SampleRate  int
	// OnUnderrun is called when a block took longer to render than it
	// takes to play. Only checked when Realtime is set.
	OnUnderrun func()
	// Done ends the stream when it returns true. Nil means run until ctx is done.
	Done     func() bool
	Realtime bool
}

// Pump renders blocks from r and submits them to s until ctx is done or
// opts.Done reports true. It does not close s.
func Pump(ctx context.Context, r Renderer, s Sink, opts PumpOptions) error {
	if opts.BlockFrames <= 0 || opts.Channels <= 0 || opts.SampleRate <= 0 {
		return errors.Errorf("invalid block format: %d frames, %d channels, %d Hz", opts.BlockFrames, opts.Channels, opts.SampleRate)
	}
	block := make([]float32, opts.BlockFrames*opts.Channels)
	budget := time.Duration(float64(opts.BlockFrames) / float64(opts.SampleRate) * float64(time.Second))
loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("Pump() interrupted")
			break loop
		default:
		}
		if opts.Done != nil && opts.Done() {
			break loop
		}
		start := time.Now()
		r.Render(block)
		if opts.Realtime && opts.OnUnderrun != nil && time.Since(start) > budget {
			opts.OnUnderrun()
		}
		if err := s.Submit(block, opts.Channels, opts.SampleRate); err != nil {
			return errors.Wrap(err, "failed to submit block")
		}
	}
	log.Println("Pump() ended.")
	return nil
}
