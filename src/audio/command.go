package audio

import (
	"fmt"
	"sync/atomic"
)

// ----- Command ----- //

// CommandKind is the type of a control command.
type CommandKind uint8

const (
	CmdNoteOn CommandKind = iota
	CmdNoteOff
	CmdControlChange
	CmdProgramChange
	CmdPitchBend
	CmdChannelPressure
	CmdPolyAftertouch
	CmdStop
	CmdSetParam
)

// StopMode is carried in Data1 of CmdStop.
type StopMode uint8

const (
	// StopSoft moves every voice to release.
	StopSoft StopMode = iota
	// StopHard silences every voice immediately.
	StopHard
)

// Controllers handled by the engine.
const (
	CCVolume           = 7
	CCPan              = 10
	CCExpression       = 11
	CCSustain          = 64
	CCBrightness       = 74
	CCAllSoundOff      = 120
	CCResetControllers = 121
	CCAllNotesOff      = 123
)

// Command is a control event for the engine. It is a plain value so it can
// pass through the command queue without allocation.
type Command struct {
	Kind    CommandKind
	Channel uint8 // 0-15
	Data1   uint8 // note, controller, program or stop mode
	Data2   uint8 // velocity or controller value
	Param   Param
	Value   float64 // parameter value, or pitch bend in [-8192, 8191]
	// Offset is the frame within the rendered buffer at which a scheduled
	// command takes effect. Live commands ignore it.
	Offset int
}

// NoteOn returns a note-on command.
func NoteOn(channel, note, velocity uint8) Command {
	return Command{Kind: CmdNoteOn, Channel: channel, Data1: note, Data2: velocity}
}

// NoteOff returns a note-off command.
func NoteOff(channel, note uint8) Command {
	return Command{Kind: CmdNoteOff, Channel: channel, Data1: note}
}

// ControlChange returns a control change command.
func ControlChange(channel, controller, value uint8) Command {
	return Command{Kind: CmdControlChange, Channel: channel, Data1: controller, Data2: value}
}

// ProgramChange returns a program change command.
func ProgramChange(channel, program uint8) Command {
	return Command{Kind: CmdProgramChange, Channel: channel, Data1: program}
}

// PitchBend returns a pitch bend command. value is in [-8192, 8191].
func PitchBend(channel uint8, value int) Command {
	return Command{Kind: CmdPitchBend, Channel: channel, Value: float64(value)}
}

// Stop returns a stop command.
func Stop(mode StopMode) Command {
	return Command{Kind: CmdStop, Data1: uint8(mode)}
}

func (c Command) String() string {
	switch c.Kind {
	case CmdNoteOn:
		return fmt.Sprintf("note-on ch=%d note=%d vel=%d", c.Channel, c.Data1, c.Data2)
	case CmdNoteOff:
		return fmt.Sprintf("note-off ch=%d note=%d", c.Channel, c.Data1)
	case CmdControlChange:
		return fmt.Sprintf("cc ch=%d %d=%d", c.Channel, c.Data1, c.Data2)
	case CmdProgramChange:
		return fmt.Sprintf("program ch=%d %d", c.Channel, c.Data1)
	case CmdPitchBend:
		return fmt.Sprintf("bend ch=%d %v", c.Channel, c.Value)
	case CmdStop:
		if StopMode(c.Data1) == StopHard {
			return "stop hard"
		}
		return "stop soft"
	case CmdSetParam:
		return fmt.Sprintf("set ch=%d param=%d %v", c.Channel, c.Param, c.Value)
	}
	return fmt.Sprintf("command(%d)", c.Kind)
}

// ----- Command Queue ----- //

// commandQueue is a bounded single-producer single-consumer ring.
// When full, the newest command is rejected.
type commandQueue struct {
	buf     []Command
	mask    uint64
	head    atomic.Uint64 // next slot to read
	tail    atomic.Uint64 // next slot to write
	dropped atomic.Uint64
}

func newCommandQueue(size int) *commandQueue {
	n := 1
	for n < size {
		n <<= 1
	}
	return &commandQueue{
		buf:  make([]Command, n),
		mask: uint64(n - 1),
	}
}

func (q *commandQueue) push(c Command) bool {
	tail := q.tail.Load()
	if tail-q.head.Load() >= uint64(len(q.buf)) {
		q.dropped.Add(1)
		return false
	}
	q.buf[tail&q.mask] = c
	q.tail.Store(tail + 1)
	return true
}

func (q *commandQueue) pop() (Command, bool) {
	head := q.head.Load()
	if head == q.tail.Load() {
		return Command{}, false
	}
	c := q.buf[head&q.mask]
	q.head.Store(head + 1)
	return c, true
}

func (q *commandQueue) len() int {
	return int(q.tail.Load() - q.head.Load())
}
