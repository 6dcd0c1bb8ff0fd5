package audio

// CommandFromMIDI converts one raw channel voice message into a command.
// System messages and incomplete messages are rejected.
func CommandFromMIDI(data []byte) (Command, bool) {
	if len(data) == 0 || data[0] < 0x80 || data[0] >= 0xF0 {
		return Command{}, false
	}
	status := data[0] >> 4
	channel := data[0] & 0x0F
	need := 3
	if status == 0xC || status == 0xD {
		need = 2
	}
	if len(data) < need {
		return Command{}, false
	}
	for _, b := range data[1:need] {
		if b >= 0x80 {
			return Command{}, false
		}
	}
	switch status {
	case 0x8:
		return NoteOff(channel, data[1]), true
	case 0x9:
		if data[2] == 0 {
			return NoteOff(channel, data[1]), true
		}
		return NoteOn(channel, data[1], data[2]), true
	case 0xA:
		return Command{Kind: CmdPolyAftertouch, Channel: channel, Data1: data[1], Data2: data[2]}, true
	case 0xB:
		return ControlChange(channel, data[1], data[2]), true
	case 0xC:
		return ProgramChange(channel, data[1]), true
	case 0xD:
		return Command{Kind: CmdChannelPressure, Channel: channel, Data1: data[1]}, true
	case 0xE:
		return PitchBend(channel, (int(data[2])<<7|int(data[1]))-8192), true
	}
	return Command{}, false
}
