package audio

import (
	"context"
	"log"
	"time"
)

// ReportStats logs counter changes every interval until ctx is done.
// It runs outside the render path.
func ReportStats(ctx context.Context, e *Engine, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	var last Stats
loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("ReportStats() interrupted")
			break loop
		case <-t.C:
			s := e.Stats()
			if s.Steals != last.Steals {
				log.Printf("voice pool exhausted: %d voices stolen (total %d)\n", s.Steals-last.Steals, s.Steals)
			}
			if s.ClippedSamples != last.ClippedSamples {
				log.Printf("[WARN] %d samples clipped (total %d)\n", s.ClippedSamples-last.ClippedSamples, s.ClippedSamples)
			}
			if s.Underruns != last.Underruns {
				log.Printf("[WARN] audio underrun x%d (total %d)\n", s.Underruns-last.Underruns, s.Underruns)
			}
			if s.DroppedCommands != last.DroppedCommands {
				log.Printf("[WARN] command queue full: %d commands dropped (total %d)\n", s.DroppedCommands-last.DroppedCommands, s.DroppedCommands)
			}
			if s.Faults != last.Faults {
				log.Printf("[WARN] %d rejected commands or voice faults (total %d)\n", s.Faults-last.Faults, s.Faults)
			}
			last = s
		}
	}
	log.Println("ReportStats() ended.")
	return nil
}
