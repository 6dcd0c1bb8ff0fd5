package control

import (
	"log"
	"sync"

	"github.com/jinjor/desktop-synth/src/audio"
)

// Sender accepts live commands without blocking. *audio.Engine is a Sender.
type Sender interface {
	Send(c audio.Command) bool
}

// Dispatcher lets several control surfaces share the single producer side
// of the engine command queue.
type Dispatcher struct {
	mu     sync.Mutex
	sender Sender
	cfg    *audio.Config
}

// NewDispatcher returns a Dispatcher sending to s. cfg is used to validate
// parameter changes.
func NewDispatcher(s Sender, cfg *audio.Config) *Dispatcher {
	return &Dispatcher{sender: s, cfg: cfg}
}

// Send forwards c. It returns false if the engine queue was full.
func (d *Dispatcher) Send(c audio.Command) bool {
	d.mu.Lock()
	ok := d.sender.Send(c)
	d.mu.Unlock()
	if !ok {
		log.Printf("[WARN] command queue full, dropped %v\n", c)
	}
	return ok
}

// Exec parses a text protocol line and sends the command.
func (d *Dispatcher) Exec(line string) (audio.Command, error) {
	c, err := ParseCommand(d.cfg, line)
	if err != nil {
		return c, err
	}
	d.Send(c)
	return c, nil
}

// SendMIDI forwards a raw MIDI channel message. Other messages are ignored.
func (d *Dispatcher) SendMIDI(data []byte) bool {
	c, ok := audio.CommandFromMIDI(data)
	if !ok {
		return false
	}
	return d.Send(c)
}
