package audio

import "math"

const numChannels = 16

// channelState holds the controller state of one MIDI channel.
type channelState struct {
	number      uint8
	program     int
	volume      float64 // CC7, 0-1
	expression  float64 // CC11, 0-1
	pan         float64 // CC10, -1 (left) to 1 (right)
	sustain     bool    // CC64
	bend        float64 // semitones
	cutoffRatio float64 // CC74
	gains       [2]float64
}

func (c *channelState) reset() {
	c.volume = 100.0 / 127
	c.expression = 1
	c.pan = 0
	c.sustain = false
	c.bend = 0
	c.cutoffRatio = 1
	c.updateGains()
}

// updateGains applies an equal-power pan law.
func (c *channelState) updateGains() {
	level := c.volume * c.expression
	angle := (c.pan + 1) * math.Pi / 4
	c.gains[0] = level * math.Cos(angle)
	c.gains[1] = level * math.Sin(angle)
}

// gain returns the output gain for output channel out of outputs.
func (c *channelState) gain(out int, outputs int) float64 {
	if outputs == 1 {
		return c.volume * c.expression
	}
	return c.gains[out]
}

func controllerPan(value uint8) float64 {
	if value <= 64 {
		return (float64(value) - 64) / 64
	}
	return (float64(value) - 64) / 63
}

// controllerCutoffRatio maps CC74 to +-4 octaves around the patch cutoff.
func controllerCutoffRatio(value uint8) float64 {
	return math.Pow(2, (float64(value)-64)/16)
}
