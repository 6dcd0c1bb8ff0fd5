package audio

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ----- Patch ----- //

// FilterParams configures a filter stage.
type FilterParams struct {
	Kind   FilterKind `json:"kind" yaml:"kind"`
	Cutoff float64    `json:"cutoff" yaml:"cutoff"` // Hz
	Q      float64    `json:"q" yaml:"q"`
}

// EnvelopeParams configures an ADSR envelope. Times are in milliseconds.
type EnvelopeParams struct {
	Attack  float64 `json:"attack" yaml:"attack"`
	Decay   float64 `json:"decay" yaml:"decay"`
	Sustain float64 `json:"sustain" yaml:"sustain"` // 0-1
	Release float64 `json:"release" yaml:"release"`
	Curve   Curve   `json:"curve" yaml:"curve"`
}

// Patch is the sound of a voice.
type Patch struct {
	Name     string         `json:"name,omitempty" yaml:"name,omitempty"`
	Wave     Wave           `json:"wave" yaml:"wave"`
	Duty     float64        `json:"duty" yaml:"duty"`   // square only, (0,1)
	Level    float64        `json:"level" yaml:"level"` // per-voice output level
	Filter   FilterParams   `json:"filter" yaml:"filter"`
	Envelope EnvelopeParams `json:"envelope" yaml:"envelope"`
}

func (p *Patch) validate(sampleRate float64) error {
	if p.Wave < WaveSine || p.Wave > WaveNoise {
		return errors.Wrapf(ErrInvalidParameter, "wave %d", p.Wave)
	}
	if !(p.Duty > 0 && p.Duty < 1) {
		return errors.Wrapf(ErrInvalidParameter, "duty %v is outside (0, 1)", p.Duty)
	}
	if !(p.Level >= 0) || math.IsInf(p.Level, 0) {
		return errors.Wrapf(ErrInvalidParameter, "level %v", p.Level)
	}
	if p.Filter.Kind < FilterNone || p.Filter.Kind > FilterHighpass {
		return errors.Wrapf(ErrInvalidParameter, "filter kind %d", p.Filter.Kind)
	}
	if p.Filter.Kind != FilterNone {
		if err := validateCutoff(p.Filter.Cutoff, sampleRate); err != nil {
			return err
		}
		if !(p.Filter.Q > 0) {
			return errors.Wrapf(ErrInvalidParameter, "q %v", p.Filter.Q)
		}
	}
	e := &p.Envelope
	for _, ms := range []float64{e.Attack, e.Decay, e.Release} {
		if !(ms >= 0) || math.IsInf(ms, 0) {
			return errors.Wrapf(ErrInvalidParameter, "envelope time %v ms", ms)
		}
	}
	if !(e.Sustain >= 0 && e.Sustain <= 1) {
		return errors.Wrapf(ErrInvalidParameter, "sustain %v is outside [0, 1]", e.Sustain)
	}
	if e.Curve != CurveLinear && e.Curve != CurveExponential {
		return errors.Wrapf(ErrInvalidParameter, "curve %d", e.Curve)
	}
	return nil
}

// ----- Effects ----- //

// EffectConfig describes one node of the effects chain.
type EffectConfig struct {
	Kind string `json:"kind" yaml:"kind"` // gain, delay, drive, filter
	// gain
	Gain float64 `json:"gain,omitempty" yaml:"gain,omitempty"`
	Unit string  `json:"unit,omitempty" yaml:"unit,omitempty"` // "linear" (default) or "db"
	// delay
	Delay    float64 `json:"delay,omitempty" yaml:"delay,omitempty"` // ms
	Feedback float64 `json:"feedback,omitempty" yaml:"feedback,omitempty"`
	Mix      float64 `json:"mix,omitempty" yaml:"mix,omitempty"`
	// drive
	Drive float64 `json:"drive,omitempty" yaml:"drive,omitempty"`
	// filter
	Filter FilterParams `json:"filter,omitempty" yaml:"filter,omitempty"`
}

// ----- Config ----- //

// Config is the static configuration of an Engine.
type Config struct {
	SampleRate       int            `json:"sampleRate" yaml:"sampleRate"`
	Channels         int            `json:"channels" yaml:"channels"` // 1 or 2
	BlockSize        int            `json:"blockSize" yaml:"blockSize"`
	Polyphony        int            `json:"polyphony" yaml:"polyphony"`
	MasterGain       float64        `json:"masterGain" yaml:"masterGain"`
	Tuning           float64        `json:"tuning" yaml:"tuning"`     // Hz of A4
	VelSense         float64        `json:"velSense" yaml:"velSense"` // 0-1
	PitchBendRange   float64        `json:"pitchBendRange" yaml:"pitchBendRange"`
	CommandQueueSize int            `json:"commandQueueSize" yaml:"commandQueueSize"`
	Patch            Patch          `json:"patch" yaml:"patch"`
	Programs         []Patch        `json:"programs,omitempty" yaml:"programs,omitempty"`
	Effects          []EffectConfig `json:"effects,omitempty" yaml:"effects,omitempty"`
}

// DefaultConfig returns a configuration that passes Validate.
func DefaultConfig() Config {
	return Config{
		SampleRate:       48000,
		Channels:         2,
		BlockSize:        256,
		Polyphony:        32,
		MasterGain:       0.8,
		Tuning:           440,
		VelSense:         0.5,
		PitchBendRange:   2,
		CommandQueueSize: 1024,
		Patch: Patch{
			Name:     "default",
			Wave:     WaveSaw,
			Duty:     0.5,
			Level:    0.2,
			Filter:   FilterParams{Kind: FilterLowpass, Cutoff: 8000, Q: defaultQ},
			Envelope: EnvelopeParams{Attack: 5, Decay: 100, Sustain: 0.7, Release: 200, Curve: CurveLinear},
		},
	}
}

// Validate reports the first invalid field, wrapped around ErrInvalidParameter.
func (c *Config) Validate() error {
	if c.SampleRate < 8000 || c.SampleRate > 384000 {
		return errors.Wrapf(ErrInvalidParameter, "sample rate %d", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return errors.Wrapf(ErrInvalidParameter, "channels %d", c.Channels)
	}
	if c.BlockSize <= 0 || c.BlockSize > maxBlockSize {
		return errors.Wrapf(ErrInvalidParameter, "block size %d", c.BlockSize)
	}
	if c.Polyphony <= 0 || c.Polyphony > maxPolyphony {
		return errors.Wrapf(ErrInvalidParameter, "polyphony %d", c.Polyphony)
	}
	if !(c.MasterGain >= 0) || math.IsInf(c.MasterGain, 0) {
		return errors.Wrapf(ErrInvalidParameter, "master gain %v", c.MasterGain)
	}
	if !(c.Tuning > 0) || math.IsInf(c.Tuning, 0) {
		return errors.Wrapf(ErrInvalidParameter, "tuning %v", c.Tuning)
	}
	if !(c.VelSense >= 0 && c.VelSense <= 1) {
		return errors.Wrapf(ErrInvalidParameter, "velocity sensitivity %v", c.VelSense)
	}
	if !(c.PitchBendRange >= 0 && c.PitchBendRange <= 48) {
		return errors.Wrapf(ErrInvalidParameter, "pitch bend range %v", c.PitchBendRange)
	}
	if c.CommandQueueSize <= 0 {
		return errors.Wrapf(ErrInvalidParameter, "command queue size %d", c.CommandQueueSize)
	}
	sr := float64(c.SampleRate)
	if err := c.Patch.validate(sr); err != nil {
		return errors.Wrap(err, "patch")
	}
	for i := range c.Programs {
		if err := c.Programs[i].validate(sr); err != nil {
			return errors.Wrapf(err, "program %d", i)
		}
	}
	for i := range c.Effects {
		if _, err := newEffect(&c.Effects[i], sr, c.Channels); err != nil {
			return errors.Wrapf(err, "effect %d", i)
		}
	}
	return nil
}

// patches returns the program table. An empty table means Patch for every program.
func (c *Config) patches() []Patch {
	if len(c.Programs) == 0 {
		return []Patch{c.Patch}
	}
	patches := make([]Patch, len(c.Programs))
	copy(patches, c.Programs)
	return patches
}

// ----- Params ----- //

// Param identifies a patch field that can be changed while running.
type Param uint8

const (
	ParamMasterGain Param = iota
	ParamVelSense
	ParamWave
	ParamDuty
	ParamLevel
	ParamFilterKind
	ParamCutoff
	ParamQ
	ParamAttack
	ParamDecay
	ParamSustain
	ParamRelease
	ParamCurve
)

func parseFloat(value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidParameter, "%q is not a number", value)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Wrapf(ErrInvalidParameter, "%q is not finite", value)
	}
	return v, nil
}

func parseRange(value string, min float64, max float64) (float64, error) {
	v, err := parseFloat(value)
	if err != nil {
		return 0, err
	}
	if v < min || v > max {
		return 0, errors.Wrapf(ErrInvalidParameter, "%v is outside [%v, %v]", v, min, max)
	}
	return v, nil
}

// ParseParam validates a "set <section> <key> <value>" request and turns it
// into a command for channel.
func (c *Config) ParseParam(channel uint8, section string, key string, value string) (Command, error) {
	cmd := Command{Kind: CmdSetParam, Channel: channel}
	var err error
	switch section {
	case "master":
		switch key {
		case "gain":
			cmd.Param = ParamMasterGain
			cmd.Value, err = parseRange(value, 0, 4)
		case "velSense":
			cmd.Param = ParamVelSense
			cmd.Value, err = parseRange(value, 0, 1)
		default:
			err = errors.Wrapf(ErrInvalidParameter, "unknown key master.%s", key)
		}
	case "osc":
		switch key {
		case "wave", "kind":
			var w Wave
			w, err = ParseWave(value)
			cmd.Param = ParamWave
			cmd.Value = float64(w)
		case "duty":
			cmd.Param = ParamDuty
			cmd.Value, err = parseRange(value, 0.001, 0.999)
		case "level":
			cmd.Param = ParamLevel
			cmd.Value, err = parseRange(value, 0, 1)
		default:
			err = errors.Wrapf(ErrInvalidParameter, "unknown key osc.%s", key)
		}
	case "filter":
		switch key {
		case "kind":
			var k FilterKind
			k, err = ParseFilterKind(value)
			cmd.Param = ParamFilterKind
			cmd.Value = float64(k)
		case "cutoff", "freq":
			cmd.Param = ParamCutoff
			cmd.Value, err = parseFloat(value)
			if err == nil {
				err = validateCutoff(cmd.Value, float64(c.SampleRate))
			}
		case "q":
			cmd.Param = ParamQ
			cmd.Value, err = parseRange(value, 0.01, 100)
		default:
			err = errors.Wrapf(ErrInvalidParameter, "unknown key filter.%s", key)
		}
	case "adsr":
		switch key {
		case "attack":
			cmd.Param = ParamAttack
			cmd.Value, err = parseRange(value, 0, 60000)
		case "decay":
			cmd.Param = ParamDecay
			cmd.Value, err = parseRange(value, 0, 60000)
		case "sustain":
			cmd.Param = ParamSustain
			cmd.Value, err = parseRange(value, 0, 1)
		case "release":
			cmd.Param = ParamRelease
			cmd.Value, err = parseRange(value, 0, 60000)
		case "curve":
			var curve Curve
			curve, err = ParseCurve(value)
			cmd.Param = ParamCurve
			cmd.Value = float64(curve)
		default:
			err = errors.Wrapf(ErrInvalidParameter, "unknown key adsr.%s", key)
		}
	default:
		err = errors.Wrapf(ErrInvalidParameter, "unknown section %q", strings.TrimSpace(section))
	}
	if err != nil {
		return Command{}, err
	}
	return cmd, nil
}

// apply writes a validated parameter into p.
func (p *Patch) apply(param Param, value float64) {
	switch param {
	case ParamWave:
		p.Wave = Wave(value)
	case ParamDuty:
		p.Duty = value
	case ParamLevel:
		p.Level = value
	case ParamFilterKind:
		p.Filter.Kind = FilterKind(value)
		if p.Filter.Q == 0 {
			p.Filter.Q = defaultQ
		}
	case ParamCutoff:
		p.Filter.Cutoff = value
	case ParamQ:
		p.Filter.Q = value
	case ParamAttack:
		p.Envelope.Attack = value
	case ParamDecay:
		p.Envelope.Decay = value
	case ParamSustain:
		p.Envelope.Sustain = value
	case ParamRelease:
		p.Envelope.Release = value
	case ParamCurve:
		p.Envelope.Curve = Curve(value)
	}
}
