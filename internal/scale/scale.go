package scale

import (
	"errors"
	"fmt"
	"math"
)

// StepCount is the resolution shared by every control in the panel.
const StepCount = 2048

// ErrInvalidRange reports bounds the requested curve cannot map.
var ErrInvalidRange = errors.New("invalid scale range")

// Mapper converts between a discrete control position in [0, StepCount] and an
// engine parameter, using either a logarithmic or a linear response curve.
type Mapper struct {
	min   float64
	slope float64
	log   bool
	value float64
}

// New builds a mapper over [min, max] holding the initial value. For
// logarithmic curves, degenerate bounds are normalized so that min is a usable
// reference for the exponent.
func New(min, max, initial float64, logarithmic bool) (*Mapper, error) {
	if !finite(min) || !finite(max) || !finite(initial) {
		return nil, fmt.Errorf("%w: non-finite bound (min=%v max=%v value=%v)", ErrInvalidRange, min, max, initial)
	}

	var slope float64
	if logarithmic {
		min, max = normalize(min, max)
		if min == 0 {
			return nil, fmt.Errorf("%w: logarithmic curve needs a non-zero lower bound (max=%v)", ErrInvalidRange, max)
		}
		ratio := max / min
		if ratio <= 0 {
			return nil, fmt.Errorf("%w: logarithmic bounds %v and %v differ in sign", ErrInvalidRange, min, max)
		}
		slope = math.Log(ratio) / StepCount
	} else {
		slope = (max - min) / StepCount
	}

	if slope == 0 || !finite(slope) {
		return nil, fmt.Errorf("%w: empty range [%v, %v]", ErrInvalidRange, min, max)
	}

	return &Mapper{
		min:   min,
		slope: slope,
		log:   logarithmic,
		value: initial,
	}, nil
}

// normalize applies the logarithmic bound fixups.
func normalize(min, max float64) (float64, float64) {
	if min == 0 && max == 0 {
		max = 1
	}
	if max > 0 {
		if min <= 0 {
			min = 0.01 * max
		}
	} else if min > 0 {
		max = 0.01 * min
	}
	return min, max
}

// FromStep maps a control position to an engine value. Steps outside
// [0, StepCount] are not clamped.
func (m *Mapper) FromStep(step int) float64 {
	if m.log {
		return math.Exp(m.slope*float64(step)) * m.min
	}
	return m.slope*float64(step) + m.min
}

// ToStep maps the current value back to a control position, truncating toward
// zero. A value the curve cannot reach (zero or opposite sign on a logarithmic
// curve) maps to step 0.
func (m *Mapper) ToStep() int {
	var pos float64
	if m.log {
		pos = math.Log(m.value/m.min) / m.slope
	} else {
		pos = (m.value - m.min) / m.slope
	}
	if !finite(pos) {
		return 0
	}
	return int(pos)
}

// SetFromStep stores and returns the value for step.
func (m *Mapper) SetFromStep(step int) float64 {
	m.value = m.FromStep(step)
	return m.value
}

// Value returns the current engine value.
func (m *Mapper) Value() float64 { return m.value }

// SetValue stores v without range checks; see Contains.
func (m *Mapper) SetValue(v float64) { m.value = v }

// Min reports the value at step 0, after normalization.
func (m *Mapper) Min() float64 { return m.min }

// Slope reports the per-step increment (linear) or exponent (logarithmic).
func (m *Mapper) Slope() float64 { return m.slope }

// Logarithmic reports the curve kind.
func (m *Mapper) Logarithmic() bool { return m.log }

// Max reports the value at StepCount.
func (m *Mapper) Max() float64 { return m.FromStep(StepCount) }

// Contains reports whether v lies between the values at step 0 and
// StepCount, in either order. The bound at StepCount is compared with a
// small relative tolerance since it is computed.
func (m *Mapper) Contains(v float64) bool {
	if !finite(v) {
		return false
	}
	lo, hi := m.min, m.Max()
	if lo > hi {
		lo, hi = hi, lo
	}
	tol := 1e-9 * math.Max(math.Abs(lo), math.Abs(hi))
	return v >= lo-tol && v <= hi+tol
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
