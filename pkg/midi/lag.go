package midi

import (
	"math"

	"github.com/sapf-lang/sapf/pkg/value"
)

// LagFilter is a one-pole smoother applied to control-rate MIDI values
// read at audio rate, avoiding audible step artifacts when an update
// arrives between audio blocks (§5). y[n] = y[n-1] + a*(x[n]-y[n-1]).
type LagFilter struct {
	a value.Z
	y value.Z
}

// NewLagFilter builds a filter with time constant lagSeconds at the
// given sample rate. A zero or negative lagSeconds disables smoothing
// (the filter tracks its input exactly).
func NewLagFilter(lagSeconds, sampleRate value.Z) *LagFilter {
	if lagSeconds <= 0 || sampleRate <= 0 {
		return &LagFilter{a: 1}
	}
	// Standard one-pole coefficient for a given time constant.
	a := 1 - math.Exp(-1/(lagSeconds*sampleRate))
	return &LagFilter{a: a}
}

func (f *LagFilter) Step(target value.Z) value.Z {
	f.y += f.a * (target - f.y)
	return f.y
}

func (f *LagFilter) Reset(v value.Z) { f.y = v }
