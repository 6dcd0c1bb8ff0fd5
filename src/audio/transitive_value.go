package audio

import "math"

// ----- Transition Kind ----- //

const (
	transitionNone = iota
	transitionLinear
	transitionExponential
)

// steepness of exponential transitions
const expCurvature = 5.0

// ----- Transitive Value ----- //

type transitiveValue struct {
	kind         int
	duration     int // samples
	initialValue float64
	targetValue  float64
	value        float64
	pos          int
}

func (tv *transitiveValue) init(value float64) {
	tv.kind = transitionNone
	tv.duration = 0
	tv.initialValue = value
	tv.targetValue = value
	tv.value = value
	tv.pos = 0
}

// start moves from the current value to targetValue over duration samples.
func (tv *transitiveValue) start(kind int, duration int, targetValue float64) {
	tv.kind = kind
	tv.duration = duration
	tv.pos = 0
	tv.initialValue = tv.value
	tv.targetValue = targetValue
	if duration <= 0 || kind == transitionNone {
		tv.end()
	}
}

func (tv *transitiveValue) step() {
	if tv.kind == transitionNone {
		return
	}
	tv.pos++
	if tv.pos >= tv.duration {
		tv.end()
		return
	}
	t := float64(tv.pos) / float64(tv.duration)
	switch tv.kind {
	case transitionLinear:
		tv.value = tv.initialValue + (tv.targetValue-tv.initialValue)*t
	case transitionExponential:
		tv.value = setTargetAtTime(tv.initialValue, tv.targetValue, t)
	}
}

func (tv *transitiveValue) done() bool {
	return tv.kind == transitionNone
}

func (tv *transitiveValue) end() {
	tv.kind = transitionNone
	tv.value = tv.targetValue
	tv.pos = 0
}

// setTargetAtTime is an exponential approach rescaled so that it reaches
// targetValue exactly at pos=1.0.
func setTargetAtTime(initialValue float64, targetValue float64, pos float64) float64 {
	tail := math.Exp(-expCurvature)
	return targetValue + (initialValue-targetValue)*(math.Exp(-expCurvature*pos)-tail)/(1-tail)
}
