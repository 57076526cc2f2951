package varray

import (
	"github.com/sapf-lang/sapf/pkg/value"
	"github.com/sapf-lang/sapf/pkg/verr"
)

// ZArray stores plain scalars (value.Z), the audio-rate counterpart of
// Array, kept as a distinct type because element type is fixed at
// creation and never mixed (§4.5, §3).
type ZArray struct {
	value.RefCounted
	data []value.Z
}

func NewZArray(capacityHint int) *ZArray {
	return &ZArray{data: make([]value.Z, 0, capacityHint)}
}

func FromZSlice(zs []value.Z) *ZArray {
	return &ZArray{data: append([]value.Z(nil), zs...)}
}

func (a *ZArray) Kind() value.Kind { return value.KindArray }
func (a *ZArray) Len() int         { return len(a.data) }

func (a *ZArray) AddZ(z value.Z) {
	if len(a.data) == cap(a.data) {
		grown := make([]value.Z, len(a.data), growCap(cap(a.data)))
		copy(grown, a.data)
		a.data = grown
	}
	a.data = append(a.data, z)
}

func (a *ZArray) At(i int) (value.V, error) {
	if i < 0 || i >= len(a.data) {
		return value.V{}, verr.OutOfRangef("zarray index %d out of [0,%d)", i, len(a.data))
	}
	return value.FromZ(a.data[i]), nil
}

func (a *ZArray) WrapAt(i int) value.V {
	n := len(a.data)
	if n == 0 {
		return value.Zero
	}
	m := i % n
	if m < 0 {
		m += n
	}
	return value.FromZ(a.data[m])
}

func (a *ZArray) ClipAt(i int) value.V {
	n := len(a.data)
	if n == 0 {
		return value.Zero
	}
	if i < 0 {
		i = 0
	} else if i >= n {
		i = n - 1
	}
	return value.FromZ(a.data[i])
}

func (a *ZArray) FoldAt(i int) value.V {
	n := len(a.data)
	if n == 0 {
		return value.Zero
	}
	if n == 1 {
		return value.FromZ(a.data[0])
	}
	period := 2 * (n - 1)
	m := i % period
	if m < 0 {
		m += period
	}
	if m >= n {
		m = period - m
	}
	return value.FromZ(a.data[m])
}

func (a *ZArray) EqualV(other value.V) bool {
	o, ok := other.Obj.(*ZArray)
	if !ok || len(o.data) != len(a.data) {
		return false
	}
	for i := range a.data {
		if a.data[i] != o.data[i] {
			return false
		}
	}
	return true
}

func (a *ZArray) CompareV(other value.V) int {
	o, ok := other.Obj.(*ZArray)
	if !ok {
		return 1
	}
	n := len(a.data)
	if len(o.data) < n {
		n = len(o.data)
	}
	for i := 0; i < n; i++ {
		switch {
		case a.data[i] < o.data[i]:
			return -1
		case a.data[i] > o.data[i]:
			return 1
		}
	}
	switch {
	case len(a.data) < len(o.data):
		return -1
	case len(a.data) > len(o.data):
		return 1
	default:
		return 0
	}
}

func (a *ZArray) Slice() []value.Z { return a.data }
