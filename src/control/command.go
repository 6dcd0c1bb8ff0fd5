package control

import (
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"

	"github.com/jinjor/desktop-synth/src/audio"
	"github.com/pkg/errors"
)

const defaultVelocity = 100

// parseLine splits a line of the text protocol into URL-unescaped words.
func parseLine(line string) ([]string, error) {
	words := strings.Fields(line)
	for i, item := range words {
		escaped, err := url.QueryUnescape(item)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to unescape %q", item)
		}
		words[i] = escaped
	}
	return words, nil
}

func parseInt(value string, min int, max int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrapf(audio.ErrInvalidParameter, "%q is not an integer", value)
	}
	if v < min || v > max {
		return 0, errors.Wrapf(audio.ErrInvalidParameter, "%d is outside [%d, %d]", v, min, max)
	}
	return v, nil
}

// optional returns args[i] if present.
func optional(args []string, i int, def string) string {
	if i < len(args) {
		return args[i]
	}
	return def
}

func parseChannel(args []string, i int) (uint8, error) {
	ch, err := parseInt(optional(args, i, "0"), 0, 15)
	return uint8(ch), err
}

func expectArgs(args []string, min int, max int) error {
	if n := len(args) - 1; n < min || n > max {
		return errors.Wrapf(audio.ErrInvalidParameter, "%s takes %d to %d arguments, got %d", args[0], min, max, n)
	}
	return nil
}

// ParseCommand converts one line of the text protocol to an engine command:
//
//	note_on <note> [velocity] [channel]
//	note_off <note> [channel]
//	cc <controller> <value> [channel]
//	program <program> [channel]
//	bend <-8192..8191> [channel]
//	stop [soft|hard]
//	set <section> <key> <value> [channel]
//	midi <hex bytes>
func ParseCommand(cfg *audio.Config, line string) (audio.Command, error) {
	args, err := parseLine(line)
	if err != nil {
		return audio.Command{}, err
	}
	if len(args) == 0 {
		return audio.Command{}, errors.Wrap(audio.ErrInvalidParameter, "empty command")
	}
	switch args[0] {
	case "note_on":
		if err := expectArgs(args, 1, 3); err != nil {
			return audio.Command{}, err
		}
		note, err := parseInt(args[1], 0, 127)
		if err != nil {
			return audio.Command{}, err
		}
		velocity, err := parseInt(optional(args, 2, strconv.Itoa(defaultVelocity)), 0, 127)
		if err != nil {
			return audio.Command{}, err
		}
		ch, err := parseChannel(args, 3)
		if err != nil {
			return audio.Command{}, err
		}
		return audio.NoteOn(ch, uint8(note), uint8(velocity)), nil
	case "note_off":
		if err := expectArgs(args, 1, 2); err != nil {
			return audio.Command{}, err
		}
		note, err := parseInt(args[1], 0, 127)
		if err != nil {
			return audio.Command{}, err
		}
		ch, err := parseChannel(args, 2)
		if err != nil {
			return audio.Command{}, err
		}
		return audio.NoteOff(ch, uint8(note)), nil
	case "cc":
		if err := expectArgs(args, 2, 3); err != nil {
			return audio.Command{}, err
		}
		controller, err := parseInt(args[1], 0, 127)
		if err != nil {
			return audio.Command{}, err
		}
		value, err := parseInt(args[2], 0, 127)
		if err != nil {
			return audio.Command{}, err
		}
		ch, err := parseChannel(args, 3)
		if err != nil {
			return audio.Command{}, err
		}
		return audio.ControlChange(ch, uint8(controller), uint8(value)), nil
	case "program":
		if err := expectArgs(args, 1, 2); err != nil {
			return audio.Command{}, err
		}
		program, err := parseInt(args[1], 0, 127)
		if err != nil {
			return audio.Command{}, err
		}
		ch, err := parseChannel(args, 2)
		if err != nil {
			return audio.Command{}, err
		}
		return audio.ProgramChange(ch, uint8(program)), nil
	case "bend":
		if err := expectArgs(args, 1, 2); err != nil {
			return audio.Command{}, err
		}
		value, err := parseInt(args[1], -8192, 8191)
		if err != nil {
			return audio.Command{}, err
		}
		ch, err := parseChannel(args, 2)
		if err != nil {
			return audio.Command{}, err
		}
		return audio.PitchBend(ch, value), nil
	case "stop":
		if err := expectArgs(args, 0, 1); err != nil {
			return audio.Command{}, err
		}
		switch optional(args, 1, "soft") {
		case "soft":
			return audio.Stop(audio.StopSoft), nil
		case "hard":
			return audio.Stop(audio.StopHard), nil
		}
		return audio.Command{}, errors.Wrapf(audio.ErrInvalidParameter, "unknown stop mode %q", args[1])
	case "set":
		if err := expectArgs(args, 3, 4); err != nil {
			return audio.Command{}, err
		}
		ch, err := parseChannel(args, 4)
		if err != nil {
			return audio.Command{}, err
		}
		return cfg.ParseParam(ch, args[1], args[2], args[3])
	case "midi":
		data, err := hex.DecodeString(strings.Join(args[1:], ""))
		if err != nil {
			return audio.Command{}, errors.Wrapf(audio.ErrInvalidParameter, "invalid MIDI bytes: %v", err)
		}
		c, ok := audio.CommandFromMIDI(data)
		if !ok {
			return audio.Command{}, errors.Wrapf(audio.ErrInvalidParameter, "unsupported MIDI message % X", data)
		}
		return c, nil
	}
	return audio.Command{}, errors.Wrapf(audio.ErrInvalidParameter, "unknown command %q", args[0])
}
