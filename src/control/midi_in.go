package control

import (
	"context"
	"log"
	"strings"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi"
	"gitlab.com/gomidi/rtmididrv"
)

// selectInput returns the first port whose name contains name, or the
// first port if name is empty.
func selectInput(ins []midi.In, name string) (midi.In, error) {
	if len(ins) == 0 {
		return nil, errors.New("MIDI IN not found")
	}
	if name == "" {
		return ins[0], nil
	}
	for _, in := range ins {
		if strings.Contains(strings.ToLower(in.String()), strings.ToLower(name)) {
			return in, nil
		}
	}
	return nil, errors.Errorf("MIDI IN %q not found in %v", name, ins)
}

// ListenToMidiIn opens the MIDI input port matching name and streams its
// raw messages until ctx is done. The channel is closed afterwards.
func ListenToMidiIn(ctx context.Context, name string) <-chan []byte {
	ch := make(chan []byte, 65536)
	go func() {
		defer close(ch)
		drv, err := rtmididrv.New()
		if err != nil {
			log.Printf("failed to initialize MIDI driver: %v\n", err)
			return
		}
		defer func() {
			err := drv.Close()
			if err != nil {
				log.Printf("failed to close MIDI driver: %v\n", err)
			}
		}()
		ins, err := drv.Ins()
		if err != nil {
			log.Printf("failed to get MIDI IN: %v\n", err)
			return
		}
		log.Printf("MIDI IN: %v\n", ins)
		in, err := selectInput(ins, name)
		if err != nil {
			log.Printf("[WARN] %v\n", err)
			return
		}
		if err := in.Open(); err != nil {
			log.Printf("failed to open MIDI IN: %v\n", err)
			return
		}
		log.Println("opened " + in.String())
		defer func() {
			err := in.Close()
			if err != nil {
				log.Printf("failed to close MIDI IN: %v\n", err)
			}
		}()
		log.Println("start listening MIDI IN...")
		if err := in.SetListener(func(data []byte, deltaMicroseconds int64) {
			msg := append([]byte(nil), data...)
			select {
			case ch <- msg:
			default:
				log.Println("[WARN] MIDI IN buffer full")
			}
		}); err != nil {
			log.Println("failed to set listener: " + err.Error())
			return
		}
		defer func() {
			log.Println("stop listening MIDI IN...")
			err := in.StopListening()
			if err != nil {
				log.Printf("failed to stop listening: %v\n", err)
			}
		}()
		<-ctx.Done()
	}()
	return ch
}

// ForwardMIDI sends every message from ch to d until ch is closed or ctx is done.
func ForwardMIDI(ctx context.Context, ch <-chan []byte, d *Dispatcher) error {
loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("ForwardMIDI() interrupted")
			break loop
		case data, ok := <-ch:
			if !ok {
				break loop
			}
			// clock, active sensing and other system messages
			if len(data) == 0 || data[0] >= 0xF0 {
				continue
			}
			if !d.SendMIDI(data) {
				log.Printf("MIDI message % X not sent\n", data)
			}
		}
	}
	log.Println("ForwardMIDI() ended.")
	return nil
}
