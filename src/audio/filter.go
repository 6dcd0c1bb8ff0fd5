package audio

import (
	"math"
	"math/cmplx"
	"strings"

	"github.com/pkg/errors"
)

// ----- Filter Kind ----- //

// FilterKind selects the response of a filter stage.
type FilterKind int

const (
	FilterNone FilterKind = iota
	FilterLowpass1
	FilterHighpass1
	FilterLowpass
	FilterHighpass
)

var filterKindNames = []string{"none", "lowpass1", "highpass1", "lowpass", "highpass"}

func (k FilterKind) String() string {
	if k >= 0 && int(k) < len(filterKindNames) {
		return filterKindNames[k]
	}
	return "unknown"
}

// ParseFilterKind converts a filter name into a FilterKind.
func ParseFilterKind(s string) (FilterKind, error) {
	for i, name := range filterKindNames {
		if strings.EqualFold(s, name) {
			return FilterKind(i), nil
		}
	}
	return 0, errors.Wrapf(ErrInvalidParameter, "unknown filter %q", s)
}

func (k FilterKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *FilterKind) UnmarshalText(text []byte) error {
	value, err := ParseFilterKind(string(text))
	if err != nil {
		return err
	}
	*k = value
	return nil
}

const defaultQ = 1 / math.Sqrt2

// ----- Coefficients ----- //

// fc is normalized by the sample rate in all makers below.
// a is feedforward, b is feedback (a0 normalized away).

func makeNoFilterH() ([3]float64, [2]float64) {
	return [3]float64{1, 0, 0}, [2]float64{}
}

func makeOnePoleLowpassH(fc float64) ([3]float64, [2]float64) {
	// bilinear transform of 1/(1+s/wc)
	k := math.Tan(math.Pi * fc)
	n := 1 / (1 + k)
	return [3]float64{k * n, k * n, 0}, [2]float64{(k - 1) * n, 0}
}

func makeOnePoleHighpassH(fc float64) ([3]float64, [2]float64) {
	k := math.Tan(math.Pi * fc)
	n := 1 / (1 + k)
	return [3]float64{n, -n, 0}, [2]float64{(k - 1) * n, 0}
}

func makeBiquadLowpassH(fc float64, q float64) ([3]float64, [2]float64) {
	// from RBJ's cookbook
	w0 := 2 * math.Pi * fc
	alpha := math.Sin(w0) / (2 * q)
	b0 := (1 - math.Cos(w0)) / 2
	b1 := (1 - math.Cos(w0))
	b2 := (1 - math.Cos(w0)) / 2
	a0 := 1 + alpha
	a1 := -2 * math.Cos(w0)
	a2 := 1 - alpha
	return [3]float64{b0 / a0, b1 / a0, b2 / a0}, [2]float64{a1 / a0, a2 / a0}
}

func makeBiquadHighpassH(fc float64, q float64) ([3]float64, [2]float64) {
	// from RBJ's cookbook
	w0 := 2 * math.Pi * fc
	alpha := math.Sin(w0) / (2 * q)
	b0 := (1 + math.Cos(w0)) / 2
	b1 := -(1 + math.Cos(w0))
	b2 := (1 + math.Cos(w0)) / 2
	a0 := 1 + alpha
	a1 := -2 * math.Cos(w0)
	a2 := 1 - alpha
	return [3]float64{b0 / a0, b1 / a0, b2 / a0}, [2]float64{a1 / a0, a2 / a0}
}

// ----- Filter ----- //

type filter struct {
	kind       FilterKind
	sampleRate float64
	cutoff     float64
	q          float64
	dirty      bool
	a          [3]float64 // feedforward
	b          [2]float64 // feedback
	past       [2]float64
}

func newFilter(sampleRate float64) filter {
	f := filter{
		kind:       FilterNone,
		sampleRate: sampleRate,
		cutoff:     sampleRate / 4,
		q:          defaultQ,
	}
	f.a, f.b = makeNoFilterH()
	return f
}

func validateCutoff(hz float64, sampleRate float64) error {
	if !(hz > 0 && hz < sampleRate/2) {
		return errors.Wrapf(ErrInvalidParameter, "cutoff %v Hz is outside (0, %v)", hz, sampleRate/2)
	}
	return nil
}

func (f *filter) configure(p FilterParams) error {
	if p.Kind < FilterNone || p.Kind > FilterHighpass {
		return errors.Wrapf(ErrInvalidParameter, "filter kind %d", p.Kind)
	}
	q := p.Q
	if q == 0 {
		q = defaultQ
	}
	if !(q > 0) {
		return errors.Wrapf(ErrInvalidParameter, "q %v", p.Q)
	}
	if p.Kind != FilterNone {
		if err := validateCutoff(p.Cutoff, f.sampleRate); err != nil {
			return err
		}
		f.cutoff = p.Cutoff
	}
	f.kind = p.Kind
	f.q = q
	f.dirty = true
	return nil
}

// setCutoff keeps the previous cutoff when hz is out of range.
func (f *filter) setCutoff(hz float64) error {
	if err := validateCutoff(hz, f.sampleRate); err != nil {
		return err
	}
	if hz != f.cutoff {
		f.cutoff = hz
		f.dirty = true
	}
	return nil
}

func (f *filter) reset() {
	f.past = [2]float64{}
}

func (f *filter) update() {
	fc := f.cutoff / f.sampleRate
	switch f.kind {
	case FilterLowpass1:
		f.a, f.b = makeOnePoleLowpassH(fc)
	case FilterHighpass1:
		f.a, f.b = makeOnePoleHighpassH(fc)
	case FilterLowpass:
		f.a, f.b = makeBiquadLowpassH(fc, f.q)
	case FilterHighpass:
		f.a, f.b = makeBiquadHighpassH(fc, f.q)
	default:
		f.a, f.b = makeNoFilterH()
	}
	f.dirty = false
}

// process filters one sample after applying cutoff.
func (f *filter) process(in float64, cutoff float64) (float64, error) {
	if err := f.setCutoff(cutoff); err != nil {
		return 0, err
	}
	return f.step(in), nil
}

// step runs the direct form II recursion.
func (f *filter) step(in float64) float64 {
	if f.dirty {
		f.update()
	}
	w := in - f.past[0]*f.b[0] - f.past[1]*f.b[1]
	o := w*f.a[0] + f.past[0]*f.a[1] + f.past[1]*f.a[2]
	f.past[1] = f.past[0]
	f.past[0] = w
	return o
}

// response returns the magnitude response at freq Hz.
func (f *filter) response(freq float64) float64 {
	if f.dirty {
		f.update()
	}
	z := cmplx.Exp(complex(0, -2*math.Pi*freq/f.sampleRate))
	num := complex(f.a[0], 0) + complex(f.a[1], 0)*z + complex(f.a[2], 0)*z*z
	den := 1 + complex(f.b[0], 0)*z + complex(f.b[1], 0)*z*z
	return cmplx.Abs(num / den)
}
